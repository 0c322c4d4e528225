package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"freelancehub/pkg/trace"
)

// ReplayStore 重放所需的存储操作
type ReplayStore interface {
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error
}

// ReplayService 提供重放 Outbox 事件的服务
type ReplayService struct {
	repo      ReplayStore
	publisher Publisher
	logger    *zap.Logger
}

// NewReplayService 创建新的 ReplayService
func NewReplayService(repo ReplayStore, publisher Publisher, logger *zap.Logger) *ReplayService {
	return &ReplayService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// ReplayReport 批量重放的结果
type ReplayReport struct {
	Replayed int `json:"replayed"`
	// FailedIDs 仍然发布失败的 outbox 行
	FailedIDs []int64 `json:"failed_ids"`
	// ByRoutingKey 成功重放的数量，如 proposal.accepted: 3
	ByRoutingKey map[string]int `json:"by_routing_key"`
}

// ReplayEvent 立即重新发布指定的事件，返回被重放的事件
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) (*Event, error) {
	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if traceID := traceIDFromPayload(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	if err := s.publisher.PublishWithContext(ctx, event.RoutingKey, event.EventID, event.Payload); err != nil {
		if markErr := s.repo.MarkAsFailed(ctx, eventID, 5); markErr != nil {
			return event, fmt.Errorf("publish %s: %w (mark failed: %v)", event.RoutingKey, err, markErr)
		}
		return event, fmt.Errorf("publish %s: %w", event.RoutingKey, err)
	}

	if err := s.repo.MarkAsSent(ctx, eventID); err != nil {
		return event, fmt.Errorf("mark event %d sent: %w", eventID, err)
	}

	s.logger.Info("Replayed outbox event",
		zap.Int64("id", eventID),
		zap.String("routing_key", event.RoutingKey),
		zap.String("aggregate_type", event.AggregateType),
	)
	return event, nil
}

// ReplayFailedEvents 重放最多 limit 个失败事件；单个失败不会中断整批
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (*ReplayReport, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed events: %w", err)
	}

	report := &ReplayReport{FailedIDs: []int64{}, ByRoutingKey: map[string]int{}}
	for _, event := range events {
		if _, err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Replay failed", zap.Int64("id", event.ID), zap.Error(err))
			report.FailedIDs = append(report.FailedIDs, event.ID)
			continue
		}
		report.Replayed++
		report.ByRoutingKey[event.RoutingKey]++
	}
	return report, nil
}
