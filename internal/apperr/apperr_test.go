package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("accept: %w", Conflict("project already assigned"))
	if KindOf(wrapped) != KindConflict {
		t.Errorf("expected conflict through wrapping, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain errors must map to internal")
	}
	if !Is(wrapped, KindConflict) || Is(nil, KindConflict) {
		t.Error("Is mismatch")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindValidation:   http.StatusBadRequest,
		KindConflict:     http.StatusConflict,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation("cover_letter", "must be at least 50 characters")
	if err.Error() != "cover_letter: must be at least 50 characters" {
		t.Errorf("unexpected message %q", err.Error())
	}
	cause := errors.New("db down")
	ierr := Internal("failed to accept proposal", cause)
	if !errors.Is(ierr, cause) {
		t.Error("Internal must unwrap to its cause")
	}
}
