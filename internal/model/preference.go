package model

import "time"

// Preference is a freelancer's recommendation preferences. Every field is
// optional.
type Preference struct {
	UserID              int64     `json:"user_id"`
	MinBudget           *float64  `json:"min_budget,omitempty"`
	MaxBudget           *float64  `json:"max_budget,omitempty"`
	ExpectedWorkHours   *int      `json:"expected_work_hours,omitempty"`
	PreferredCategories []string  `json:"preferred_categories"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HistoryEntry records how well a past application worked out, 1..10.
type HistoryEntry struct {
	UserID       int64     `json:"user_id"`
	ProjectID    int64     `json:"project_id"`
	SuccessScore int       `json:"success_score"`
	AppliedAt    time.Time `json:"applied_at"`
}

// SuccessfulProject is a project from a freelancer's history whose success
// score met the threshold.
type SuccessfulProject struct {
	ProjectID         int64
	Categories        []string
	SkillIDs          []int64
	ExpectedWorkHours *int
}

// Candidate is an open project in a freelancer's recommendation pool with
// its skill overlap precomputed.
type Candidate struct {
	Project        Project
	MatchingSkills int
	TotalSkills    int
}

// CandidateQuery selects a freelancer's recommendation pool: open projects
// the freelancer has not proposed to, with budget inside the bounds.
type CandidateQuery struct {
	FreelancerID int64
	SkillIDs     []int64
	MinBudget    float64
	MaxBudget    *float64 // nil is unbounded
}
