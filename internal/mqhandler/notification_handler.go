package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/mq"
	"freelancehub/pkg/trace"
)

const handlerName = "notification"

// NotificationWriter 写入站内通知，(event_id, user_id) 重复时返回 false
type NotificationWriter interface {
	Insert(ctx context.Context, n *model.Notification) (bool, error)
}

// Deduper is satisfied by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, eventID string) bool
	Release(ctx context.Context, handler string, eventID string)
}

type NotificationHandler struct {
	repo   NotificationWriter
	dedup  Deduper
	logger *zap.Logger
}

func NewNotificationHandler(repo NotificationWriter, dedup Deduper, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		repo:   repo,
		dedup:  dedup,
		logger: logger,
	}
}

// RoutingKeys 通知消费者绑定的 routing key
func RoutingKeys() []string {
	return []string{
		mqcontracts.RoutingProposalSubmitted,
		mqcontracts.RoutingProposalAccepted,
		mqcontracts.RoutingProposalRejected,
		mqcontracts.RoutingProjectCompleted,
		mqcontracts.RoutingProjectRated,
	}
}

// Handle -- 把 proposal.* / project.* 事件写成 notifications 站内通知
func (h *NotificationHandler) Handle(ctx context.Context, msg mq.Message) error {
	n, eventID, traceID, err := buildNotification(msg)
	if err != nil {
		h.logger.Error("Failed to unmarshal event payload",
			zap.String("routing_key", msg.RoutingKey),
			zap.Error(err),
		)
		return err
	}
	if n == nil {
		h.logger.Warn("Ignoring event with unknown routing key", zap.String("routing_key", msg.RoutingKey))
		return nil
	}
	if eventID == "" {
		eventID = msg.MessageID
	}
	n.EventID = eventID
	if traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	log := logger.WithTrace(ctx, h.logger)

	if !h.dedup.AcquireOnce(ctx, handlerName, eventID) {
		metrics.IncrementNotification("duplicate")
		return nil
	}

	inserted, err := h.repo.Insert(ctx, n)
	if err != nil {
		h.dedup.Release(ctx, handlerName, eventID)
		metrics.IncrementNotification("failed")
		log.Error("Failed to insert notification",
			zap.String("event_id", eventID),
			zap.Int64("user_id", n.UserID),
			zap.Error(err),
		)
		return err
	}
	if !inserted {
		metrics.IncrementNotification("duplicate")
		return nil
	}

	metrics.IncrementNotification("created")
	log.Info("Notification created",
		zap.String("event_id", eventID),
		zap.String("type", n.Type),
		zap.Int64("user_id", n.UserID),
	)
	return nil
}

// buildNotification 返回 nil 表示该 routing key 不产生通知
func buildNotification(msg mq.Message) (*model.Notification, string, string, error) {
	switch msg.RoutingKey {
	case mqcontracts.RoutingProposalSubmitted,
		mqcontracts.RoutingProposalAccepted,
		mqcontracts.RoutingProposalRejected:
		var p mqcontracts.ProposalEventPayload
		if err := json.Unmarshal(msg.Body, &p); err != nil {
			return nil, "", "", err
		}
		return proposalNotification(msg.RoutingKey, p), p.EventID, p.TraceID, nil

	case mqcontracts.RoutingProjectCompleted, mqcontracts.RoutingProjectRated:
		var p mqcontracts.ProjectEventPayload
		if err := json.Unmarshal(msg.Body, &p); err != nil {
			return nil, "", "", err
		}
		return projectNotification(msg.RoutingKey, p), p.EventID, p.TraceID, nil
	}
	return nil, "", "", nil
}

func proposalNotification(routingKey string, p mqcontracts.ProposalEventPayload) *model.Notification {
	switch routingKey {
	case mqcontracts.RoutingProposalSubmitted:
		return &model.Notification{
			UserID:  p.ClientID,
			Type:    "proposal_submitted",
			Message: fmt.Sprintf("New proposal received for %q", p.ProjectTitle),
		}
	case mqcontracts.RoutingProposalAccepted:
		return &model.Notification{
			UserID:  p.FreelancerID,
			Type:    "proposal_accepted",
			Message: fmt.Sprintf("Your proposal for %q has been accepted", p.ProjectTitle),
		}
	default:
		msg := fmt.Sprintf("Your proposal for %q has been rejected", p.ProjectTitle)
		if p.Reason != "" {
			msg += ": " + p.Reason
		}
		return &model.Notification{UserID: p.FreelancerID, Type: "proposal_rejected", Message: msg}
	}
}

func projectNotification(routingKey string, p mqcontracts.ProjectEventPayload) *model.Notification {
	if routingKey == mqcontracts.RoutingProjectRated {
		return &model.Notification{
			UserID:  p.FreelancerID,
			Type:    "project_rated",
			Message: fmt.Sprintf("You received a %d-star rating for %q", p.Score, p.ProjectTitle),
		}
	}
	return &model.Notification{
		UserID:  p.FreelancerID,
		Type:    "project_completed",
		Message: fmt.Sprintf("Project %q has been marked as completed", p.ProjectTitle),
	}
}
