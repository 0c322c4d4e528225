package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             10 * time.Second,
		HalfOpenMaxRequests: 1,
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := newTestBreaker(&clock)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: expected errBoom, got %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("expected ErrCircuitBreakerOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while open")
	}
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := newTestBreaker(&clock)
	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return errBoom })

	clock = clock.Add(11 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := newTestBreaker(&clock)
	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return errBoom })

	clock = clock.Add(11 * time.Second)
	_ = cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := newTestBreaker(&clock)
	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateClosed {
		t.Errorf("non-consecutive failures must not trip, got %s", cb.GetState())
	}
}
