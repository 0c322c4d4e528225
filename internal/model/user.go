package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // client / freelancer
	CreatedAt    time.Time `json:"created_at"`
}

type Rating struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	RaterID   int64     `json:"rater_id"`
	RateeID   int64     `json:"ratee_id"`
	Score     int       `json:"score"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
