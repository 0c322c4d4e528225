package outbox

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

type fakeReplayStore struct {
	fakeStore
	byID map[int64]*Event
}

func (f *fakeReplayStore) GetEventByID(ctx context.Context, id int64) (*Event, error) {
	ev, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return ev, nil
}

func (f *fakeReplayStore) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	var out []*Event
	for id := int64(1); id <= int64(len(f.byID)) && len(out) < limit; id++ {
		out = append(out, f.byID[id])
	}
	return out, nil
}

func newReplayStore(t *testing.T, keys ...string) *fakeReplayStore {
	t.Helper()
	st := &fakeReplayStore{byID: map[int64]*Event{}}
	for i, key := range keys {
		ev, err := NewEvent(fmt.Sprintf("e-%d", i+1), "proposal", int64(i+1), key, map[string]string{"trace_id": "t-1"})
		if err != nil {
			t.Fatal(err)
		}
		ev.ID = int64(i + 1)
		ev.Status = StatusFailed
		st.byID[ev.ID] = ev
	}
	return st
}

func TestReplayEvent(t *testing.T) {
	st := newReplayStore(t, "proposal.accepted")
	pub := &fakePublisher{}
	svc := NewReplayService(st, pub, zap.NewNop())

	ev, err := svc.ReplayEvent(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReplayEvent failed: %v", err)
	}
	if ev.RoutingKey != "proposal.accepted" || ev.AggregateType != "proposal" {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(pub.got) != 1 || pub.got[0].messageID != "e-1" {
		t.Errorf("expected e-1 republished with its original id, got %+v", pub.got)
	}
	if len(st.sent) != 1 || st.sent[0] != 1 {
		t.Errorf("expected event marked sent, got %v", st.sent)
	}

	if _, err := svc.ReplayEvent(context.Background(), 99); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestReplayFailedEvents_Report(t *testing.T) {
	st := newReplayStore(t, "proposal.accepted", "proposal.rejected", "proposal.rejected", "project.completed")
	pub := &fakePublisher{failKeys: map[string]bool{"project.completed": true}}
	svc := NewReplayService(st, pub, zap.NewNop())

	report, err := svc.ReplayFailedEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReplayFailedEvents failed: %v", err)
	}
	if report.Replayed != 3 {
		t.Errorf("expected 3 replayed, got %d", report.Replayed)
	}
	if report.ByRoutingKey["proposal.rejected"] != 2 || report.ByRoutingKey["proposal.accepted"] != 1 {
		t.Errorf("unexpected per-key counts %v", report.ByRoutingKey)
	}
	if len(report.FailedIDs) != 1 || report.FailedIDs[0] != 4 {
		t.Errorf("expected event 4 to stay failed, got %v", report.FailedIDs)
	}
	if len(st.failed) != 1 || st.failed[0] != 4 {
		t.Errorf("expected event 4 marked failed again, got %v", st.failed)
	}

	report, err = svc.ReplayFailedEvents(context.Background(), 1)
	if err != nil || report.Replayed+len(report.FailedIDs) != 1 {
		t.Errorf("limit must bound the batch, got %+v %v", report, err)
	}
}
