package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/handler"
	"freelancehub/internal/model"
	"freelancehub/internal/service/auth"
	"freelancehub/internal/service/catalog"
	"freelancehub/internal/service/lifecycle"
	"freelancehub/internal/service/recommend"
	"freelancehub/internal/store"
	"freelancehub/internal/store/storetest"
	"freelancehub/pkg/outbox"
	"freelancehub/pkg/util"
)

const (
	testSecret     = "test-secret"
	testAdminToken = "admin-token"
)

type fakeUsers struct {
	byEmail map[string]*model.User
	nextID  int64
}

func (f *fakeUsers) CreateUser(ctx context.Context, u *model.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return store.ErrDuplicate
	}
	f.nextID++
	u.ID = 1000 + f.nextID
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

type fakeNotifications struct{}

func (fakeNotifications) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	return []model.Notification{{ID: 1, UserID: userID, Type: "proposal_accepted"}}, nil
}

func (fakeNotifications) MarkRead(ctx context.Context, userID, id int64) error {
	if id != 1 {
		return store.ErrNotFound
	}
	return nil
}

type fakeReplayer struct {
	replayed []int64
}

func (f *fakeReplayer) ReplayEvent(ctx context.Context, eventID int64) (*outbox.Event, error) {
	f.replayed = append(f.replayed, eventID)
	return outbox.NewEvent("e-1", "proposal", 3, "proposal.accepted", map[string]int64{"proposal_id": 3})
}

func (f *fakeReplayer) ReplayFailedEvents(ctx context.Context, limit int) (*outbox.ReplayReport, error) {
	return &outbox.ReplayReport{FailedIDs: []int64{}, ByRoutingKey: map[string]int{}}, nil
}

type testServer struct {
	engine   *gin.Engine
	st       *storetest.Store
	replayer *fakeReplayer
	client   int64
	bob      int64
	carol    int64
}

func newTestServer(t *testing.T, checks map[string]ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	st := storetest.New()
	ts := &testServer{
		st:       st,
		replayer: &fakeReplayer{},
		client:   st.AddUser("Alice", "client"),
		bob:      st.AddUser("Bob", "freelancer"),
		carol:    st.AddUser("Carol", "freelancer"),
	}

	engine := lifecycle.NewEngine(st, nil, logger)
	cat := catalog.NewService(st, logger)
	rec := recommend.NewService(st, st, nil, recommend.DefaultConfig(), logger)
	authSvc := auth.NewService(&fakeUsers{byEmail: map[string]*model.User{}}, testSecret, time.Hour, logger)

	ts.engine = NewRouter(Handlers{
		Auth:           handler.NewAuthHandler(authSvc, logger),
		Project:        handler.NewProjectHandler(engine, cat, logger),
		Proposal:       handler.NewProposalHandler(engine, cat, logger),
		Recommendation: handler.NewRecommendationHandler(rec, logger),
		Notification:   handler.NewNotificationHandler(fakeNotifications{}, logger),
		Dashboard:      handler.NewDashboardHandler(cat, logger),
		Admin:          handler.NewAdminHandler(ts.replayer, logger),
	}, RouterConfig{
		Authorizer: auth.NewAuthorizer(testSecret),
		AdminToken: testAdminToken,
		Checks:     checks,
		Logger:     logger,
	})
	return ts
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field"`
}

var coverLetter = strings.Repeat("I have shipped this kind of system before. ", 3)

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, map[string]ReadinessCheck{
		"db": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	if w := ts.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", w.Code)
	}

	w := ts.do(t, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from /readyz, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "db_not_ready") {
		t.Errorf("expected db_not_ready, got %s", w.Body.String())
	}

	if w := ts.do(t, http.MethodGet, "/healthz", "", nil); w.Header().Get("X-Trace-ID") == "" {
		t.Error("expected X-Trace-ID response header")
	}
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/projects/available", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	var body errorBody
	decode(t, w, &body)
	if body.Kind != "unauthorized" {
		t.Errorf("expected kind unauthorized, got %q", body.Kind)
	}

	if w := ts.do(t, http.MethodGet, "/api/projects/available", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", w.Code)
	}

	// 角色不符
	if w := ts.do(t, http.MethodGet, "/api/projects/available", token(t, ts.client, "client"), nil); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for client browsing available projects, got %d", w.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t, nil)

	reg := map[string]string{"name": "Dana", "email": "dana@example.com", "password": "longenough", "role": "freelancer"}
	if w := ts.do(t, http.MethodPost, "/register", "", reg); w.Code != http.StatusCreated {
		t.Fatalf("expected 201 from register, got %d: %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodPost, "/register", "", reg); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", w.Code)
	}

	w := ts.do(t, http.MethodPost, "/login", "", map[string]string{"email": "dana@example.com", "password": "longenough"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d", w.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	if resp.Token == "" {
		t.Error("expected token in login response")
	}

	if w := ts.do(t, http.MethodPost, "/login", "", map[string]string{"email": "dana@example.com", "password": "wrong-password"}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", w.Code)
	}
}

func TestProposalFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	clientTok := token(t, ts.client, "client")
	bobTok := token(t, ts.bob, "freelancer")
	carolTok := token(t, ts.carol, "freelancer")

	w := ts.do(t, http.MethodPost, "/api/projects", clientTok, map[string]any{
		"title":       "Inventory dashboard",
		"description": "Dashboard over the warehouse stock tables",
		"budget":      1500,
		"deadline":    time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		"categories":  []string{"Web"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating project, got %d: %s", w.Code, w.Body.String())
	}
	var project model.Project
	decode(t, w, &project)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/proposals", project.ID), bobTok, map[string]any{
		"cover_letter": "too short", "proposed_amount": 1000,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short cover letter, got %d", w.Code)
	}
	var verr errorBody
	decode(t, w, &verr)
	if verr.Field != "cover_letter" || verr.Kind != "validation" {
		t.Errorf("expected validation on cover_letter, got %+v", verr)
	}

	var bobProposal, carolProposal model.Proposal
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/proposals", project.ID), bobTok, map[string]any{
		"cover_letter": coverLetter, "proposed_amount": 1200,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for bob's proposal, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &bobProposal)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/proposals", project.ID), carolTok, map[string]any{
		"cover_letter": coverLetter, "proposed_amount": 900,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for carol's proposal, got %d", w.Code)
	}
	decode(t, w, &carolProposal)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/proposals?sort=price", project.ID), clientTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 listing proposals, got %d", w.Code)
	}
	var listed struct {
		Proposals []model.ProposalView `json:"proposals"`
	}
	decode(t, w, &listed)
	if len(listed.Proposals) != 2 || listed.Proposals[0].ID != carolProposal.ID {
		t.Errorf("expected carol's cheaper proposal first, got %+v", listed.Proposals)
	}

	if w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/proposals?sort=stars", project.ID), clientTok, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown sort, got %d", w.Code)
	}

	// freelancer 不能接受提案
	if w := ts.do(t, http.MethodPut, fmt.Sprintf("/api/proposals/%d/accept", bobProposal.ID), bobTok, nil); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for freelancer accept, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/api/proposals/%d/accept", bobProposal.ID), clientTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 accepting, got %d: %s", w.Code, w.Body.String())
	}
	var accepted lifecycle.AcceptResult
	decode(t, w, &accepted)
	if accepted.Project.Status != model.ProjectInProgress || len(accepted.Rejected) != 1 {
		t.Errorf("unexpected accept result %+v", accepted)
	}

	if w := ts.do(t, http.MethodPut, fmt.Sprintf("/api/proposals/%d/accept", carolProposal.ID), clientTok, nil); w.Code != http.StatusConflict {
		t.Errorf("expected 409 accepting on assigned project, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/proposals/%d", carolProposal.ID), carolTok, nil); w.Code != http.StatusConflict {
		t.Errorf("expected 409 withdrawing rejected proposal, got %d", w.Code)
	}

	if w := ts.do(t, http.MethodPut, fmt.Sprintf("/api/projects/%d/complete", project.ID), clientTok, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 completing, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/rating", project.ID), clientTok, map[string]any{"score": 5}); w.Code != http.StatusCreated {
		t.Errorf("expected 201 rating, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/proposals/my", bobTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 listing own proposals, got %d", w.Code)
	}
	var mine struct {
		Proposals []model.MyProposal `json:"proposals"`
	}
	decode(t, w, &mine)
	if len(mine.Proposals) != 1 || mine.Proposals[0].ProjectStatus != model.ProjectCompleted {
		t.Errorf("expected bob's proposal on a completed project, got %+v", mine.Proposals)
	}
}

func TestRecommendationEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	bobTok := token(t, ts.bob, "freelancer")

	w := ts.do(t, http.MethodPost, "/api/recommendations/preferences", bobTok, map[string]any{"min_budget": 500, "max_budget": 100})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted budget range, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/recommendations/preferences", bobTok, map[string]any{"min_budget": 100, "max_budget": 500})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 setting preferences, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/recommendations/projects", bobTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for recommendations, got %d", w.Code)
	}
	var result recommend.Result
	decode(t, w, &result)
	if result.RecommendedProjects == nil || len(result.RecommendedProjects) != 0 {
		t.Errorf("expected empty non-null list, got %+v", result.RecommendedProjects)
	}
	if !result.Factors.BudgetPreference {
		t.Error("expected budget_preference factor to be set")
	}
}

func TestNotificationsAndAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	bobTok := token(t, ts.bob, "freelancer")

	if w := ts.do(t, http.MethodGet, "/api/notifications", bobTok, nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 listing notifications, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPut, "/api/notifications/9/read", bobTok, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown notification, got %d", w.Code)
	}

	if w := ts.do(t, http.MethodPost, "/admin/outbox/replay?id=7", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without admin token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/outbox/replay?id=7", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 replaying, got %d", w.Code)
	}
	if len(ts.replayer.replayed) != 1 || ts.replayer.replayed[0] != 7 {
		t.Errorf("expected event 7 replayed, got %v", ts.replayer.replayed)
	}
	if !strings.Contains(w.Body.String(), `"routing_key":"proposal.accepted"`) {
		t.Errorf("expected routing key in replay response, got %s", w.Body.String())
	}
}

func TestDashboardEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	clientTok := token(t, ts.client, "client")
	bobTok := token(t, ts.bob, "freelancer")
	carolTok := token(t, ts.carol, "freelancer")

	w := ts.do(t, http.MethodPost, "/api/projects", clientTok, map[string]any{
		"title":       "Billing export",
		"description": "Nightly export of invoices to the ledger",
		"budget":      800,
		"deadline":    time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating project, got %d: %s", w.Code, w.Body.String())
	}
	var project model.Project
	decode(t, w, &project)
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/proposals", project.ID), bobTok, map[string]any{
		"cover_letter": coverLetter, "proposed_amount": 700,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for proposal, got %d: %s", w.Code, w.Body.String())
	}

	stats := func(tok string) model.DashboardStats {
		t.Helper()
		w := ts.do(t, http.MethodGet, "/api/dashboard/stats", tok, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for dashboard, got %d: %s", w.Code, w.Body.String())
		}
		var st model.DashboardStats
		decode(t, w, &st)
		return st
	}
	if st := stats(clientTok); st.Role != "client" || st.OpenProjects != 1 || st.PendingProposals != 1 {
		t.Errorf("unexpected client stats %+v", st)
	}
	if st := stats(bobTok); st.AvailableProjects != 0 || st.PendingProposals != 1 {
		t.Errorf("unexpected bob stats %+v", st)
	}
	if st := stats(carolTok); st.AvailableProjects != 1 || st.PendingProposals != 0 {
		t.Errorf("unexpected carol stats %+v", st)
	}

	w = ts.do(t, http.MethodGet, "/api/dashboard/activity", clientTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for activity, got %d", w.Code)
	}
	var feed struct {
		Activity []model.ActivityItem `json:"activity"`
	}
	decode(t, w, &feed)
	if len(feed.Activity) != 2 {
		t.Errorf("expected project and proposal in client feed, got %+v", feed.Activity)
	}

	w = ts.do(t, http.MethodGet, "/api/dashboard/activity?limit=0", clientTok, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", w.Code)
	}
	var verr errorBody
	decode(t, w, &verr)
	if verr.Field != "limit" {
		t.Errorf("expected validation on limit, got %+v", verr)
	}
}
