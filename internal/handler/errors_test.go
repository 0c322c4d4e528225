package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
)

func newContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantField  string
		wantMsg    string
	}{
		{"validation", apperr.Validation("budget", "must be a non-negative number"), http.StatusBadRequest, "validation", "budget", "must be a non-negative number"},
		{"wrapped conflict", fmt.Errorf("accept: %w", apperr.Conflict("project already assigned")), http.StatusConflict, "conflict", "", "project already assigned"},
		{"not found", apperr.NotFound("proposal not found"), http.StatusNotFound, "not_found", "", "proposal not found"},
		{"forbidden", apperr.Forbidden("only clients can create projects"), http.StatusForbidden, "forbidden", "", "only clients can create projects"},
		{"plain error hides cause", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal", "", "internal server error"},
		{"internal hides cause", apperr.Internal("failed to accept proposal", errors.New("deadlock")), http.StatusInternalServerError, "internal", "", "failed to accept proposal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext("/")
			writeError(c, zap.NewNop(), tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["kind"] != tt.wantKind || body["field"] != tt.wantField || body["error"] != tt.wantMsg {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestQueryIDs(t *testing.T) {
	c, _ := newContext("/?skills=1,2&skills=3&skills=")
	ids, err := queryIDs(c, "skills")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Errorf("ids = %v", ids)
	}

	c, _ = newContext("/?skills=go")
	if _, err := queryIDs(c, "skills"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestQueryBounds(t *testing.T) {
	c, _ := newContext("/?min_budget=100.5&max_work_hours=abc")
	v, err := queryFloat(c, "min_budget")
	if err != nil || v == nil || *v != 100.5 {
		t.Errorf("min_budget = %v, %v", v, err)
	}
	if v, err := queryFloat(c, "max_budget"); err != nil || v != nil {
		t.Errorf("expected absent max_budget, got %v, %v", v, err)
	}
	if _, err := queryInt(c, "max_work_hours"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestBadBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"string for number", `{"budget":"lots"}`, "budget"},
		{"string in id list", `{"skill_ids":["go"]}`, "skill_ids"},
		{"malformed json", `{"budget":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext("/")
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req struct {
				Budget   float64 `json:"budget"`
				SkillIDs []int64 `json:"skill_ids"`
			}
			err := c.ShouldBindJSON(&req)
			if err == nil {
				t.Fatal("expected bind error")
			}
			badBody(c, err)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["kind"] != "validation" || body["field"] != tt.wantField {
				t.Errorf("body = %v", body)
			}
		})
	}
}
