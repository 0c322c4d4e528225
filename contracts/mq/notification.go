package mq

import "time"

// Routing keys on the events exchange
const (
	RoutingProposalSubmitted = "proposal.submitted"
	RoutingProposalAccepted  = "proposal.accepted"
	RoutingProposalRejected  = "proposal.rejected"
	RoutingProjectCompleted  = "project.completed"
	RoutingProjectRated      = "project.rated"
)

// ProposalEventPayload proposal.* 事件的 payload
type ProposalEventPayload struct {
	EventID      string    `json:"event_id"`
	TraceID      string    `json:"trace_id,omitempty"`
	ProposalID   int64     `json:"proposal_id"`
	ProjectID    int64     `json:"project_id"`
	ProjectTitle string    `json:"project_title"`
	FreelancerID int64     `json:"freelancer_id"`
	ClientID     int64     `json:"client_id"`
	Reason       string    `json:"reason,omitempty"` // 仅 proposal.rejected
	OccurredAt   time.Time `json:"occurred_at"`
}

// ProjectEventPayload project.* 事件的 payload
type ProjectEventPayload struct {
	EventID      string    `json:"event_id"`
	TraceID      string    `json:"trace_id,omitempty"`
	ProjectID    int64     `json:"project_id"`
	ProjectTitle string    `json:"project_title"`
	ClientID     int64     `json:"client_id"`
	FreelancerID int64     `json:"freelancer_id"`
	Score        int       `json:"score,omitempty"` // 仅 project.rated
	OccurredAt   time.Time `json:"occurred_at"`
}
