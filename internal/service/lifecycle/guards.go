// Package lifecycle owns every state transition of projects and proposals.
// Guards are pure functions evaluated against rows loaded inside the
// transaction; the engine turns a refused guard into an apperr.Error.
package lifecycle

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
)

const (
	MinCoverLetterLength = 50
	MinTitleLength       = 5
	MinDescriptionLength = 20
	DeadlineLayout       = "2006-01-02"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Kind    apperr.Kind
	Field   string
	Reason  string
}

// Err converts the guard result to an error if not allowed.
func (r GuardResult) Err() error {
	if r.Allowed {
		return nil
	}
	return &apperr.Error{Kind: r.Kind, Field: r.Field, Message: r.Reason}
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func invalid(field, reason string) GuardResult {
	return GuardResult{Kind: apperr.KindValidation, Field: field, Reason: reason}
}

func conflict(reason string) GuardResult {
	return GuardResult{Kind: apperr.KindConflict, Reason: reason}
}

func notFound(reason string) GuardResult {
	return GuardResult{Kind: apperr.KindNotFound, Reason: reason}
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ProposalInput is the caller-supplied part of a proposal.
type ProposalInput struct {
	ProjectID      int64
	CoverLetter    string
	ProposedAmount float64
	EstimatedDays  *int
}

// ValidateProposal checks the proposal fields.
// Rules:
// - cover letter at least 50 characters after trimming
// - proposed amount finite and > 0
// - estimated days, if present, > 0
func ValidateProposal(in ProposalInput) GuardResult {
	letter := strings.TrimSpace(in.CoverLetter)
	if letter == "" {
		return invalid("cover_letter", "is required")
	}
	if utf8.RuneCountInString(letter) < MinCoverLetterLength {
		return invalid("cover_letter", fmt.Sprintf("must be at least %d characters", MinCoverLetterLength))
	}
	if !validAmount(in.ProposedAmount) || in.ProposedAmount <= 0 {
		return invalid("proposed_amount", "must be a positive number")
	}
	if in.EstimatedDays != nil && *in.EstimatedDays <= 0 {
		return invalid("estimated_days", "must be a positive integer")
	}
	return allow()
}

// ProjectInput is the caller-supplied part of a new project.
type ProjectInput struct {
	Title             string
	Description       string
	Budget            float64
	Deadline          string // YYYY-MM-DD
	ExpectedWorkHours *int
	Categories        []string
	SkillIDs          []int64
}

// ValidateProject checks the project fields and returns the parsed deadline.
func ValidateProject(in ProjectInput) (time.Time, GuardResult) {
	if utf8.RuneCountInString(strings.TrimSpace(in.Title)) < MinTitleLength {
		return time.Time{}, invalid("title", fmt.Sprintf("must be at least %d characters", MinTitleLength))
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Description)) < MinDescriptionLength {
		return time.Time{}, invalid("description", fmt.Sprintf("must be at least %d characters", MinDescriptionLength))
	}
	if !validAmount(in.Budget) || in.Budget < 0 {
		return time.Time{}, invalid("budget", "must be a non-negative number")
	}
	deadline, err := time.Parse(DeadlineLayout, strings.TrimSpace(in.Deadline))
	if err != nil {
		return time.Time{}, invalid("deadline", "must be a date in YYYY-MM-DD format")
	}
	if in.ExpectedWorkHours != nil && *in.ExpectedWorkHours < 0 {
		return time.Time{}, invalid("expected_work_hours", "must be a non-negative integer")
	}
	for _, id := range in.SkillIDs {
		if id <= 0 {
			return time.Time{}, invalid("skill_ids", "must contain positive ids")
		}
	}
	return deadline, allow()
}

// ValidateRating checks a client's rating of the assigned freelancer.
func ValidateRating(score int) GuardResult {
	if score < 1 || score > 5 {
		return invalid("score", "must be an integer between 1 and 5")
	}
	return allow()
}

// CanSubmit evaluates whether a freelancer may propose on a project.
// Rules:
// - project must be open
// - freelancer must not already have a proposal on it
func CanSubmit(project *model.Project, existing *model.Proposal) GuardResult {
	if project.Status.Normalize() != model.ProjectOpen {
		return conflict("project is not open for proposals")
	}
	if existing != nil {
		return conflict("proposal already submitted for this project")
	}
	return allow()
}

// CanDecide evaluates whether callerID owns the project a proposal belongs
// to. A project owned by someone else is reported as not found.
func CanDecide(callerID int64, project *model.Project) GuardResult {
	if project.ClientID != callerID {
		return notFound("proposal not found")
	}
	return allow()
}

// CanAccept evaluates whether a proposal can be accepted.
// Rules:
// - project must still be open
// - proposal must be pending
func CanAccept(project *model.Project, proposal *model.Proposal) GuardResult {
	if project.Status.Normalize() != model.ProjectOpen {
		return conflict("project already assigned")
	}
	if proposal.Status != model.ProposalPending {
		return conflict(fmt.Sprintf("proposal is %s, only pending proposals can be accepted", proposal.Status))
	}
	return allow()
}

// CanReject evaluates whether a proposal can be rejected. Rejecting an
// already rejected proposal is allowed and changes nothing.
func CanReject(proposal *model.Proposal) GuardResult {
	if proposal.Status == model.ProposalAccepted {
		return conflict("accepted proposal cannot be rejected")
	}
	return allow()
}

// CanWithdraw evaluates whether a freelancer may withdraw a proposal.
// Rules:
// - caller must be the submitting freelancer
// - proposal must be pending
func CanWithdraw(callerID int64, proposal *model.Proposal) GuardResult {
	if proposal.FreelancerID != callerID {
		return notFound("proposal not found")
	}
	if proposal.Status != model.ProposalPending {
		return conflict(fmt.Sprintf("proposal is %s, only pending proposals can be withdrawn", proposal.Status))
	}
	return allow()
}

// CanComplete evaluates whether a project can be marked completed.
func CanComplete(callerID int64, project *model.Project) GuardResult {
	if project.ClientID != callerID {
		return notFound("project not found")
	}
	if project.Status.Normalize() != model.ProjectInProgress {
		return conflict(fmt.Sprintf("project is %s, only in_progress projects can be completed", project.Status.Normalize()))
	}
	return allow()
}

// CanRate evaluates whether the client may rate the project's freelancer.
func CanRate(callerID int64, project *model.Project) GuardResult {
	if project.ClientID != callerID {
		return notFound("project not found")
	}
	if project.Status.Normalize() != model.ProjectCompleted {
		return conflict("only completed projects can be rated")
	}
	if project.FreelancerID == nil {
		return conflict("project has no assigned freelancer")
	}
	return allow()
}
