package model

import "time"

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

type Proposal struct {
	ID             int64          `json:"id"`
	ProjectID      int64          `json:"project_id"`
	FreelancerID   int64          `json:"freelancer_id"`
	CoverLetter    string         `json:"cover_letter"`
	ProposedAmount float64        `json:"proposed_amount"`
	EstimatedDays  *int           `json:"estimated_days,omitempty"`
	Status         ProposalStatus `json:"status"` // pending / accepted / rejected
	SubmittedAt    time.Time      `json:"submitted_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ProposalView joins the freelancer's public profile onto a proposal for
// the owning client.
type ProposalView struct {
	Proposal
	FreelancerName string   `json:"freelancer_name"`
	AverageRating  *float64 `json:"average_rating,omitempty"`
	RatingCount    int      `json:"rating_count"`
	Skills         []string `json:"skills"`
}

// MyProposal is a freelancer's view of one of their own proposals.
type MyProposal struct {
	Proposal
	ProjectTitle  string        `json:"project_title"`
	ProjectStatus ProjectStatus `json:"project_status"`
}

// ProposalSort orders the owner's proposal listing.
type ProposalSort string

const (
	SortByRating ProposalSort = "rating"
	SortByPrice  ProposalSort = "price"
)
