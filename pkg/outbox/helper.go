package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewEvent 构造待插入的 pending 事件
// eventID 为空时自动生成
func NewEvent(eventID, aggregateType string, aggregateID int64, routingKey string, payload interface{}) (*Event, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	id := aggregateID
	return &Event{
		EventID:       eventID,
		AggregateType: aggregateType,
		AggregateID:   &id,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}, nil
}

// traceIDFromPayload 从 payload 中提取 trace_id（如果存在）
func traceIDFromPayload(payload json.RawMessage) string {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.TraceID
}
