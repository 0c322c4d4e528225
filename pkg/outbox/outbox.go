package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// ErrEventNotFound 事件不存在
var ErrEventNotFound = errors.New("outbox event not found")

// Event 表示一个待发布的事件
type Event struct {
	ID            int64
	EventID       string // 全局唯一，作为 MQ MessageId 供消费端去重
	AggregateType string
	AggregateID   *int64
	RoutingKey    string
	Payload       json.RawMessage
	Status        string
	RetryCount    int
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository 提供 Outbox 操作
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository 创建新的 Outbox Repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, event_id, aggregate_type, aggregate_id, routing_key, payload, status,
	       retry_count, next_retry_at, created_at, updated_at`

// InsertEvent 在事务中插入事件到 outbox
// 必须在事务中调用，确保与业务数据的一致性
func InsertEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	query := `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, routing_key, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		event.EventID,
		event.AggregateType,
		event.AggregateID,
		event.RoutingKey,
		event.Payload,
		event.Status,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// GetPendingEvents 获取待发送的事件（用于 Dispatcher）
func (r *Repository) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM outbox_events
		WHERE status = 'pending'
		AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkAsSent 标记事件为已发送
func (r *Repository) MarkAsSent(ctx context.Context, eventID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'sent', updated_at = NOW()
		WHERE id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}
	return nil
}

// MarkAsFailed 增加重试次数并设置下次重试时间，达到上限后置为 failed
// 退避：retry_count * 5s
func (r *Repository) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
		    status = CASE WHEN retry_count + 1 >= $2 THEN 'failed' ELSE 'pending' END,
		    next_retry_at = CASE WHEN retry_count + 1 >= $2 THEN NULL
		                         ELSE NOW() + (retry_count + 1) * INTERVAL '5 seconds' END,
		    updated_at = NOW()
		WHERE id = $1
	`, eventID, maxRetries)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

// GetEventByID 根据 ID 获取事件（用于 Replay）
func (r *Repository) GetEventByID(ctx context.Context, eventID int64) (*Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM outbox_events WHERE id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	return events[0], nil
}

// GetFailedEvents 获取所有失败的事件
func (r *Repository) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM outbox_events
		WHERE status = 'failed'
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteSentBefore 清理早于 cutoff 的已发送事件，返回删除行数
func (r *Repository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM outbox_events WHERE status = 'sent' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEvents(rows pgx.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var e Event
		err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.AggregateType,
			&e.AggregateID,
			&e.RoutingKey,
			&e.Payload,
			&e.Status,
			&e.RetryCount,
			&e.NextRetryAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
