package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []*Event
	sent    []int64
	failed  []int64
}

func (f *fakeStore) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeStore) MarkAsSent(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeStore) MarkAsFailed(ctx context.Context, id int64, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type published struct {
	routingKey string
	messageID  string
	body       string
}

type fakePublisher struct {
	failKeys map[string]bool
	got      []published
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error {
	if p.failKeys[routingKey] {
		return errors.New("broker down")
	}
	p.got = append(p.got, published{routingKey, messageID, string(body)})
	return nil
}

func TestDispatcher_PublishesAndMarks(t *testing.T) {
	ev1, _ := NewEvent("e-1", "proposal", 1, "proposal.accepted", map[string]int{"proposal_id": 1})
	ev1.ID = 10
	ev2, _ := NewEvent("e-2", "proposal", 2, "proposal.rejected", map[string]int{"proposal_id": 2})
	ev2.ID = 11

	store := &fakeStore{pending: []*Event{ev1, ev2}}
	pub := &fakePublisher{failKeys: map[string]bool{"proposal.rejected": true}}

	d := NewDispatcher(store, pub, zap.NewNop())
	if n := d.ProcessPendingEvents(context.Background()); n != 1 {
		t.Fatalf("expected 1 sent, got %d", n)
	}

	if len(pub.got) != 1 || pub.got[0].messageID != "e-1" {
		t.Fatalf("unexpected publishes: %+v", pub.got)
	}
	if pub.got[0].body != `{"proposal_id":1}` {
		t.Errorf("payload must be forwarded unchanged, got %s", pub.got[0].body)
	}
	if len(store.sent) != 1 || store.sent[0] != 10 {
		t.Errorf("expected event 10 marked sent, got %v", store.sent)
	}
	if len(store.failed) != 1 || store.failed[0] != 11 {
		t.Errorf("expected event 11 marked failed, got %v", store.failed)
	}
}

func TestDispatcher_NoPendingEvents(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, &fakePublisher{}, zap.NewNop())
	if n := d.ProcessPendingEvents(context.Background()); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}

func TestNewEvent_GeneratesEventID(t *testing.T) {
	ev, err := NewEvent("", "project", 3, "project.completed", struct{}{})
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	if ev.EventID == "" {
		t.Error("expected generated event id")
	}
	if ev.Status != StatusPending {
		t.Errorf("expected pending status, got %s", ev.Status)
	}
	if ev.AggregateID == nil || *ev.AggregateID != 3 {
		t.Errorf("unexpected aggregate id %v", ev.AggregateID)
	}
}

func TestTraceIDFromPayload(t *testing.T) {
	if got := traceIDFromPayload([]byte(`{"trace_id":"abc"}`)); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
	if got := traceIDFromPayload([]byte(`not json`)); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
