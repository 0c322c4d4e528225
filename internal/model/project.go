package model

import "time"

type ProjectStatus string

const (
	ProjectOpen       ProjectStatus = "open"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	// ProjectAssigned is written by older clients; read as in_progress.
	ProjectAssigned ProjectStatus = "assigned"
)

// Normalize folds legacy aliases into the canonical status.
func (s ProjectStatus) Normalize() ProjectStatus {
	if s == ProjectAssigned {
		return ProjectInProgress
	}
	return s
}

type Project struct {
	ID                int64         `json:"id"`
	ClientID          int64         `json:"client_id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Budget            float64       `json:"budget"`
	Deadline          time.Time     `json:"deadline"`
	ExpectedWorkHours *int          `json:"expected_work_hours,omitempty"`
	Categories        []string      `json:"categories"`
	SkillIDs          []int64       `json:"skill_ids"`
	Status            ProjectStatus `json:"status"` // open / in_progress / completed
	FreelancerID      *int64        `json:"freelancer_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ProjectSummary is a client's view of one of their projects.
type ProjectSummary struct {
	Project
	ProposalCount int `json:"proposal_count"`
}

// ProjectFilter is the set of independently optional bounds on the
// available-projects listing. Bounds are AND-combined.
type ProjectFilter struct {
	FreelancerID int64
	MinBudget    *float64
	MaxBudget    *float64
	MinWorkHours *int
	MaxWorkHours *int
	SkillIDs     []int64
}

type Skill struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
