package model

import "time"

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"` // proposal_submitted / proposal_accepted / ...
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
