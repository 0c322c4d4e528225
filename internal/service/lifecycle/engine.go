package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	mqcontracts "freelancehub/contracts/mq"
	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/service/auth"
	"freelancehub/internal/store"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	otelpkg "freelancehub/pkg/otel"
	"freelancehub/pkg/outbox"
	"freelancehub/pkg/rbac"
	"freelancehub/pkg/trace"
)

// CacheInvalidator drops cached recommendations. Invalidate covers changes
// that only one freelancer's results depend on; InvalidatePool covers a
// project entering or leaving the open pool, which every freelancer sees.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, freelancerID int64)
	InvalidatePool(ctx context.Context)
}

type noopCache struct{}

func (noopCache) Invalidate(context.Context, int64) {}
func (noopCache) InvalidatePool(context.Context)    {}

// Engine runs every project and proposal state transition inside a single
// store transaction, with domain events written to the outbox alongside.
type Engine struct {
	store  store.Store
	cache  CacheInvalidator
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates the lifecycle engine. cache may be nil.
func NewEngine(st store.Store, cache CacheInvalidator, logger *zap.Logger) *Engine {
	if cache == nil {
		cache = noopCache{}
	}
	return &Engine{
		store:  st,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// AcceptResult is what an accepted proposal changed.
type AcceptResult struct {
	Proposal *model.Proposal  `json:"proposal"`
	Project  *model.Project   `json:"project"`
	Rejected []model.Proposal `json:"rejected"`
}

// CreateProject inserts a new open project owned by the calling client.
func (e *Engine) CreateProject(ctx context.Context, caller auth.Identity, in ProjectInput) (*model.Project, error) {
	const op = "create_project"
	ctx, span := otelpkg.StartSpan(ctx, "lifecycle.CreateProject")
	defer span.End()

	if err := requireRole(caller, rbac.PermissionCreateProject); err != nil {
		return nil, e.fail(ctx, op, err)
	}
	deadline, guard := ValidateProject(in)
	if err := guard.Err(); err != nil {
		return nil, e.fail(ctx, op, err)
	}

	project := &model.Project{
		ClientID:          caller.UserID,
		Title:             strings.TrimSpace(in.Title),
		Description:       strings.TrimSpace(in.Description),
		Budget:            in.Budget,
		Deadline:          deadline,
		ExpectedWorkHours: in.ExpectedWorkHours,
		Categories:        normalizeCategories(in.Categories),
		SkillIDs:          dedupIDs(in.SkillIDs),
		Status:            model.ProjectOpen,
	}
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		err := tx.InsertProject(ctx, project)
		if errors.Is(err, store.ErrInvalidReference) {
			return apperr.Validation("skill_ids", "unknown skill id")
		}
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, op, storeError(err, "failed to create project"))
	}

	e.cache.InvalidatePool(ctx)
	span.SetAttributes(attribute.Int64("project.id", project.ID))
	metrics.IncrementTransition("project_created")
	logger.WithTrace(ctx, e.logger).Info("Project created",
		zap.Int64("project_id", project.ID),
		zap.Int64("client_id", caller.UserID))
	return project, nil
}

// SubmitProposal records a pending proposal from the calling freelancer.
func (e *Engine) SubmitProposal(ctx context.Context, caller auth.Identity, in ProposalInput) (*model.Proposal, error) {
	const op = "submit_proposal"
	ctx, span := otelpkg.StartSpan(ctx, "lifecycle.SubmitProposal")
	defer span.End()
	span.SetAttributes(attribute.Int64("project.id", in.ProjectID))

	if err := requireRole(caller, rbac.PermissionSubmitProposal); err != nil {
		return nil, e.fail(ctx, op, err)
	}
	if err := ValidateProposal(in).Err(); err != nil {
		return nil, e.fail(ctx, op, err)
	}

	proposal := &model.Proposal{
		ProjectID:      in.ProjectID,
		FreelancerID:   caller.UserID,
		CoverLetter:    strings.TrimSpace(in.CoverLetter),
		ProposedAmount: in.ProposedAmount,
		EstimatedDays:  in.EstimatedDays,
		Status:         model.ProposalPending,
	}
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		project, err := tx.GetProjectForUpdate(ctx, in.ProjectID)
		if err != nil {
			return notFoundOr(err, "project not found")
		}
		existing, err := tx.FindProposal(ctx, in.ProjectID, caller.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := CanSubmit(project, existing).Err(); err != nil {
			return err
		}
		if err := tx.InsertProposal(ctx, proposal); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("proposal already submitted for this project")
			}
			return err
		}
		return e.enqueueProposalEvent(ctx, tx, mqcontracts.RoutingProposalSubmitted, project, proposal, "")
	})
	if err != nil {
		return nil, e.fail(ctx, op, storeError(err, "failed to submit proposal"))
	}

	e.cache.Invalidate(ctx, caller.UserID)
	metrics.IncrementTransition("proposal_submitted")
	logger.WithTrace(ctx, e.logger).Info("Proposal submitted",
		zap.Int64("proposal_id", proposal.ID),
		zap.Int64("project_id", proposal.ProjectID),
		zap.Int64("freelancer_id", caller.UserID))
	return proposal, nil
}

// AcceptProposal accepts one pending proposal, rejects every other pending
// proposal on the same project and moves the project to in_progress. Either
// all of it happens or none of it does.
func (e *Engine) AcceptProposal(ctx context.Context, caller auth.Identity, proposalID int64) (*AcceptResult, error) {
	const op = "accept_proposal"
	ctx, span := otelpkg.StartSpan(ctx, "lifecycle.AcceptProposal")
	defer span.End()
	span.SetAttributes(attribute.Int64("proposal.id", proposalID))

	if err := requireRole(caller, rbac.PermissionDecideProposal); err != nil {
		return nil, e.fail(ctx, op, err)
	}

	var result AcceptResult
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		project, proposal, err := e.loadForDecision(ctx, tx, caller, proposalID)
		if err != nil {
			return err
		}
		if err := CanAccept(project, proposal).Err(); err != nil {
			return err
		}

		if err := tx.UpdateProposalStatus(ctx, proposal.ID, model.ProposalAccepted); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("project already assigned")
			}
			return err
		}
		rejected, err := tx.RejectPendingExcept(ctx, project.ID, proposal.ID)
		if err != nil {
			return err
		}
		freelancerID := proposal.FreelancerID
		if err := tx.UpdateProjectStatus(ctx, project.ID, model.ProjectInProgress, &freelancerID); err != nil {
			return err
		}

		// postcondition: exactly one accepted proposal on the project
		accepted, err := tx.CountAccepted(ctx, project.ID)
		if err != nil {
			return err
		}
		if accepted != 1 {
			return apperr.Internal("accept postcondition failed",
				fmt.Errorf("project %d has %d accepted proposals", project.ID, accepted))
		}

		proposal.Status = model.ProposalAccepted
		project.Status = model.ProjectInProgress
		project.FreelancerID = &freelancerID

		if err := e.enqueueProposalEvent(ctx, tx, mqcontracts.RoutingProposalAccepted, project, proposal, ""); err != nil {
			return err
		}
		for i := range rejected {
			if err := e.enqueueProposalEvent(ctx, tx, mqcontracts.RoutingProposalRejected, project, &rejected[i], ""); err != nil {
				return err
			}
		}

		result = AcceptResult{Proposal: proposal, Project: project, Rejected: rejected}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, op, storeError(err, "failed to accept proposal"))
	}

	e.cache.InvalidatePool(ctx)
	metrics.IncrementTransition("proposal_accepted")
	for range result.Rejected {
		metrics.IncrementTransition("proposal_rejected")
	}
	logger.WithTrace(ctx, e.logger).Info("Proposal accepted",
		zap.Int64("proposal_id", proposalID),
		zap.Int64("project_id", result.Project.ID),
		zap.Int64("freelancer_id", result.Proposal.FreelancerID),
		zap.Int("rejected", len(result.Rejected)))
	return &result, nil
}

// RejectProposal rejects a pending proposal. Rejecting an already rejected
// proposal succeeds without changing anything. reason is carried only in the
// proposal.rejected event.
func (e *Engine) RejectProposal(ctx context.Context, caller auth.Identity, proposalID int64, reason string) (*model.Proposal, error) {
	const op = "reject_proposal"
	ctx, span := otelpkg.StartSpan(ctx, "lifecycle.RejectProposal")
	defer span.End()
	span.SetAttributes(attribute.Int64("proposal.id", proposalID))

	if err := requireRole(caller, rbac.PermissionDecideProposal); err != nil {
		return nil, e.fail(ctx, op, err)
	}

	var (
		result  *model.Proposal
		changed bool
	)
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		project, proposal, err := e.loadForDecision(ctx, tx, caller, proposalID)
		if err != nil {
			return err
		}
		if err := CanReject(proposal).Err(); err != nil {
			return err
		}
		result = proposal
		if proposal.Status == model.ProposalRejected {
			return nil
		}

		if err := tx.UpdateProposalStatus(ctx, proposal.ID, model.ProposalRejected); err != nil {
			return err
		}
		proposal.Status = model.ProposalRejected
		changed = true
		return e.enqueueProposalEvent(ctx, tx, mqcontracts.RoutingProposalRejected, project, proposal, strings.TrimSpace(reason))
	})
	if err != nil {
		return nil, e.fail(ctx, op, storeError(err, "failed to reject proposal"))
	}

	if changed {
		metrics.IncrementTransition("proposal_rejected")
		logger.WithTrace(ctx, e.logger).Info("Proposal rejected",
			zap.Int64("proposal_id", proposalID),
			zap.Int64("project_id", result.ProjectID))
	}
	return result, nil
}

// WithdrawProposal deletes a pending proposal on behalf of its freelancer.
func (e *Engine) WithdrawProposal(ctx context.Context, caller auth.Identity, proposalID int64) error {
	const op = "withdraw_proposal"
	ctx, span := otelpkg.StartSpan(ctx, "lifecycle.WithdrawProposal")
	defer span.End()
	span.SetAttributes(attribute.Int64("proposal.id", proposalID))

	if err := requireRole(caller, rbac.PermissionWithdrawProposal); err != nil {
		return e.fail(ctx, op, err)
	}

	var projectID int64
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		proposal, err := tx.GetProposal(ctx, proposalID)
		if err != nil {
			return notFoundOr(err, "proposal not found")
		}
		if proposal.FreelancerID != caller.UserID {
			return apperr.NotFound("proposal not found")
		}
		// lock the parent project, then re-read the proposal under the lock
		if _, err := tx.GetProjectForUpdate(ctx, proposal.ProjectID); err != nil {
			return notFoundOr(err, "proposal not found")
		}
		proposal, err = tx.GetProposal(ctx, proposalID)
		if err != nil {
			return notFoundOr(err, "proposal not found")
		}
		if err := CanWithdraw(caller.UserID, proposal).Err(); err != nil {
			return err
		}
		projectID = proposal.ProjectID
		return tx.DeleteProposal(ctx, proposal.ID)
	})
	if err != nil {
		return e.fail(ctx, op, storeError(err, "failed to withdraw proposal"))
	}

	e.cache.Invalidate(ctx, caller.UserID)
	metrics.IncrementTransition("proposal_withdrawn")
	logger.WithTrace(ctx, e.logger).Info("Proposal withdrawn",
		zap.Int64("proposal_id", proposalID),
		zap.Int64("project_id", projectID),
		zap.Int64("freelancer_id", caller.UserID))
	return nil
}

// CompleteProject moves an in_progress project owned by the caller to
// completed.
func (e *Engine) CompleteProject(ctx context.Context, caller auth.Identity, projectID int64) (*model.Project, error) {
	const op = "complete_project"
	ctx, span := otelpkg.StartSpan(ctx, "lifecycle.CompleteProject")
	defer span.End()
	span.SetAttributes(attribute.Int64("project.id", projectID))

	if err := requireRole(caller, rbac.PermissionCompleteProject); err != nil {
		return nil, e.fail(ctx, op, err)
	}

	var project *model.Project
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProjectForUpdate(ctx, projectID)
		if err != nil {
			return notFoundOr(err, "project not found")
		}
		if err := CanComplete(caller.UserID, p).Err(); err != nil {
			return err
		}
		if err := tx.UpdateProjectStatus(ctx, p.ID, model.ProjectCompleted, nil); err != nil {
			return err
		}
		p.Status = model.ProjectCompleted
		project = p

		payload := mqcontracts.ProjectEventPayload{
			ProjectID:    p.ID,
			ProjectTitle: p.Title,
			ClientID:     p.ClientID,
			FreelancerID: derefID(p.FreelancerID),
		}
		return e.enqueueProjectEvent(ctx, tx, mqcontracts.RoutingProjectCompleted, payload)
	})
	if err != nil {
		return nil, e.fail(ctx, op, storeError(err, "failed to complete project"))
	}

	e.cache.InvalidatePool(ctx)
	metrics.IncrementTransition("project_completed")
	logger.WithTrace(ctx, e.logger).Info("Project completed",
		zap.Int64("project_id", projectID),
		zap.Int64("client_id", caller.UserID))
	return project, nil
}

// RateFreelancer records the client's rating of the freelancer assigned to a
// completed project and feeds it into the freelancer's application history
// as success_score = score * 2.
func (e *Engine) RateFreelancer(ctx context.Context, caller auth.Identity, projectID int64, score int, review string) (*model.Rating, error) {
	const op = "rate_freelancer"
	ctx, span := otelpkg.StartSpan(ctx, "lifecycle.RateFreelancer")
	defer span.End()
	span.SetAttributes(attribute.Int64("project.id", projectID))

	if err := requireRole(caller, rbac.PermissionRateFreelancer); err != nil {
		return nil, e.fail(ctx, op, err)
	}
	if err := ValidateRating(score).Err(); err != nil {
		return nil, e.fail(ctx, op, err)
	}

	var rating *model.Rating
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProjectForUpdate(ctx, projectID)
		if err != nil {
			return notFoundOr(err, "project not found")
		}
		if err := CanRate(caller.UserID, p).Err(); err != nil {
			return err
		}

		r := &model.Rating{
			ProjectID: p.ID,
			RaterID:   caller.UserID,
			RateeID:   *p.FreelancerID,
			Score:     score,
			Review:    strings.TrimSpace(review),
		}
		if err := tx.InsertRating(ctx, r); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("project already rated")
			}
			return err
		}
		if err := tx.InsertHistory(ctx, &model.HistoryEntry{
			UserID:       r.RateeID,
			ProjectID:    p.ID,
			SuccessScore: score * 2,
			AppliedAt:    e.now(),
		}); err != nil {
			return err
		}
		rating = r

		payload := mqcontracts.ProjectEventPayload{
			ProjectID:    p.ID,
			ProjectTitle: p.Title,
			ClientID:     p.ClientID,
			FreelancerID: r.RateeID,
			Score:        score,
		}
		return e.enqueueProjectEvent(ctx, tx, mqcontracts.RoutingProjectRated, payload)
	})
	if err != nil {
		return nil, e.fail(ctx, op, storeError(err, "failed to rate freelancer"))
	}

	e.cache.Invalidate(ctx, rating.RateeID)
	metrics.IncrementTransition("project_rated")
	logger.WithTrace(ctx, e.logger).Info("Freelancer rated",
		zap.Int64("project_id", projectID),
		zap.Int64("freelancer_id", rating.RateeID),
		zap.Int("score", score))
	return rating, nil
}

// loadForDecision loads a proposal and locks its project for the owning
// client. The proposal is read again after the lock is held so its status
// cannot change underneath the caller.
func (e *Engine) loadForDecision(ctx context.Context, tx store.Tx, caller auth.Identity, proposalID int64) (*model.Project, *model.Proposal, error) {
	proposal, err := tx.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, nil, notFoundOr(err, "proposal not found")
	}
	project, err := tx.GetProjectForUpdate(ctx, proposal.ProjectID)
	if err != nil {
		return nil, nil, notFoundOr(err, "proposal not found")
	}
	if err := CanDecide(caller.UserID, project).Err(); err != nil {
		return nil, nil, err
	}
	proposal, err = tx.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, nil, notFoundOr(err, "proposal not found")
	}
	return project, proposal, nil
}

func (e *Engine) enqueueProposalEvent(ctx context.Context, tx store.Tx, routingKey string, project *model.Project, p *model.Proposal, reason string) error {
	eventID := uuid.NewString()
	payload := mqcontracts.ProposalEventPayload{
		EventID:      eventID,
		TraceID:      trace.FromContext(ctx),
		ProposalID:   p.ID,
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		FreelancerID: p.FreelancerID,
		ClientID:     project.ClientID,
		Reason:       reason,
		OccurredAt:   e.now().UTC(),
	}
	ev, err := outbox.NewEvent(eventID, "proposal", p.ID, routingKey, payload)
	if err != nil {
		return err
	}
	return tx.EnqueueEvent(ctx, ev)
}

func (e *Engine) enqueueProjectEvent(ctx context.Context, tx store.Tx, routingKey string, payload mqcontracts.ProjectEventPayload) error {
	payload.EventID = uuid.NewString()
	payload.TraceID = trace.FromContext(ctx)
	payload.OccurredAt = e.now().UTC()
	ev, err := outbox.NewEvent(payload.EventID, "project", payload.ProjectID, routingKey, payload)
	if err != nil {
		return err
	}
	return tx.EnqueueEvent(ctx, ev)
}

// fail records a refused or failed operation and returns err unchanged.
func (e *Engine) fail(ctx context.Context, op string, err error) error {
	kind := apperr.KindOf(err)
	metrics.IncrementLifecycleRejection(op, string(kind))

	log := logger.WithTrace(ctx, e.logger)
	if kind == apperr.KindInternal {
		log.Error("Lifecycle operation failed", zap.String("operation", op), zap.Error(err))
		span := oteltrace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		log.Warn("Lifecycle operation refused", zap.String("operation", op), zap.String("kind", string(kind)), zap.Error(err))
	}
	return err
}

func requireRole(caller auth.Identity, permission string) error {
	if !rbac.HasPermission(caller.Role, permission) {
		return apperr.Forbidden("role " + caller.Role + " cannot perform this action")
	}
	return nil
}

// storeError passes apperr errors through and wraps anything else as an
// internal error.
func storeError(err error, msg string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Internal("request cancelled", err)
	}
	return apperr.Internal(msg, err)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func dedupIDs(in []int64) []int64 {
	out := make([]int64, 0, len(in))
	seen := make(map[int64]bool, len(in))
	for _, id := range in {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
