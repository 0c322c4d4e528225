package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/pkg/outbox"
)

const (
	defaultReplayLimit = 100
	maxReplayLimit     = 1000
)

// OutboxReplayer re-publishes proposal and project events stuck in the outbox.
type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) (*outbox.Event, error)
	ReplayFailedEvents(ctx context.Context, limit int) (*outbox.ReplayReport, error)
}

type AdminHandler struct {
	replayer OutboxReplayer
	logger   *zap.Logger
}

func NewAdminHandler(replayer OutboxReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{replayer: replayer, logger: logger}
}

// ReplayOutboxEvent handles POST /admin/outbox/replay?id=42
//
// 响应带上事件的 routing key 和聚合，便于确认补发的是哪条 proposal / project 通知
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || eventID <= 0 {
		writeError(c, h.logger, apperr.Validation("id", "must be a positive integer"))
		return
	}

	ev, err := h.replayer.ReplayEvent(c.Request.Context(), eventID)
	switch {
	case errors.Is(err, outbox.ErrEventNotFound):
		writeError(c, h.logger, apperr.NotFound("outbox event not found"))
		return
	case err != nil:
		writeError(c, h.logger, apperr.Internal("failed to replay event", err))
		return
	}

	body := gin.H{
		"status":         "replayed",
		"event_id":       ev.ID,
		"message_id":     ev.EventID,
		"routing_key":    ev.RoutingKey,
		"aggregate_type": ev.AggregateType,
	}
	if ev.AggregateID != nil {
		body["aggregate_id"] = *ev.AggregateID
	}
	c.JSON(http.StatusOK, body)
}

// ReplayFailedEvents handles POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	n := defaultReplayLimit
	if limit != nil {
		if *limit < 1 || *limit > maxReplayLimit {
			writeError(c, h.logger, apperr.Validation("limit", "must be between 1 and 1000"))
			return
		}
		n = *limit
	}

	report, err := h.replayer.ReplayFailedEvents(c.Request.Context(), n)
	if err != nil {
		writeError(c, h.logger, apperr.Internal("failed to replay failed events", err))
		return
	}
	h.logger.Info("Replayed failed outbox events",
		zap.Int("replayed", report.Replayed),
		zap.Int("still_failed", len(report.FailedIDs)),
	)
	c.JSON(http.StatusOK, report)
}
