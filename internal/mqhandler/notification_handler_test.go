package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	mqcontracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/pkg/mq"
)

type fakeWriter struct {
	rows map[string]*model.Notification
	err  error
}

func (f *fakeWriter) Insert(ctx context.Context, n *model.Notification) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := fmt.Sprintf("%s/%d", n.EventID, n.UserID)
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	f.rows[key] = n
	return true, nil
}

type fakeDeduper struct {
	seen     map[string]bool
	released []string
}

func (f *fakeDeduper) AcquireOnce(ctx context.Context, handler, eventID string) bool {
	key := handler + ":" + eventID
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

func (f *fakeDeduper) Release(ctx context.Context, handler, eventID string) {
	key := handler + ":" + eventID
	delete(f.seen, key)
	f.released = append(f.released, key)
}

func newHandler() (*NotificationHandler, *fakeWriter, *fakeDeduper) {
	w := &fakeWriter{rows: map[string]*model.Notification{}}
	d := &fakeDeduper{seen: map[string]bool{}}
	return NewNotificationHandler(w, d, zap.NewNop()), w, d
}

func message(t *testing.T, routingKey string, payload any) mq.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return mq.Message{RoutingKey: routingKey, MessageID: "msg-1", Body: body}
}

func TestHandle_Recipients(t *testing.T) {
	proposal := mqcontracts.ProposalEventPayload{ProjectTitle: "Storefront", ClientID: 1, FreelancerID: 2}
	project := mqcontracts.ProjectEventPayload{ProjectTitle: "Storefront", ClientID: 1, FreelancerID: 2, Score: 4}

	tests := []struct {
		routingKey string
		payload    any
		wantUser   int64
		wantType   string
		wantText   string
	}{
		{mqcontracts.RoutingProposalSubmitted, proposal, 1, "proposal_submitted", "New proposal"},
		{mqcontracts.RoutingProposalAccepted, proposal, 2, "proposal_accepted", "accepted"},
		{mqcontracts.RoutingProposalRejected, mqcontracts.ProposalEventPayload{ProjectTitle: "Storefront", FreelancerID: 2, Reason: "budget too high"}, 2, "proposal_rejected", "budget too high"},
		{mqcontracts.RoutingProjectCompleted, project, 2, "project_completed", "completed"},
		{mqcontracts.RoutingProjectRated, project, 2, "project_rated", "4-star"},
	}
	for _, tt := range tests {
		t.Run(tt.routingKey, func(t *testing.T) {
			h, w, _ := newHandler()
			if err := h.Handle(context.Background(), message(t, tt.routingKey, tt.payload)); err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if len(w.rows) != 1 {
				t.Fatalf("expected 1 notification, got %d", len(w.rows))
			}
			for _, n := range w.rows {
				if n.UserID != tt.wantUser || n.Type != tt.wantType || !strings.Contains(n.Message, tt.wantText) {
					t.Errorf("unexpected notification %+v", n)
				}
				if n.EventID != "msg-1" {
					t.Errorf("expected message id fallback for event id, got %q", n.EventID)
				}
			}
		})
	}
}

func TestHandle_DuplicateEventSkipped(t *testing.T) {
	h, w, _ := newHandler()
	msg := message(t, mqcontracts.RoutingProposalAccepted, mqcontracts.ProposalEventPayload{EventID: "ev-1", FreelancerID: 2})

	for i := 0; i < 3; i++ {
		if err := h.Handle(context.Background(), msg); err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
	}
	if len(w.rows) != 1 {
		t.Errorf("expected one notification for a redelivered event, got %d", len(w.rows))
	}
}

func TestHandle_InsertFailureReleasesDedup(t *testing.T) {
	h, w, d := newHandler()
	w.err = errors.New("connection reset")
	msg := message(t, mqcontracts.RoutingProposalAccepted, mqcontracts.ProposalEventPayload{EventID: "ev-2", FreelancerID: 2})

	if err := h.Handle(context.Background(), msg); err == nil {
		t.Fatal("expected insert error to be returned for redelivery")
	}
	if len(d.released) != 1 {
		t.Fatalf("expected dedup key released, got %v", d.released)
	}

	w.err = nil
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(w.rows) != 1 {
		t.Errorf("expected notification after retry, got %d", len(w.rows))
	}
}

func TestHandle_BadPayloadAndUnknownKey(t *testing.T) {
	h, w, _ := newHandler()

	err := h.Handle(context.Background(), mq.Message{RoutingKey: mqcontracts.RoutingProposalAccepted, Body: []byte("{not json")})
	if err == nil {
		t.Error("expected decode error")
	}
	if err := h.Handle(context.Background(), mq.Message{RoutingKey: "task.created", Body: []byte("{}")}); err != nil {
		t.Errorf("expected unknown routing key to be acked, got %v", err)
	}
	if len(w.rows) != 0 {
		t.Errorf("expected no notifications, got %d", len(w.rows))
	}
}
