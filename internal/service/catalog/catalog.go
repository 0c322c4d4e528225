// Package catalog serves the read-only project and proposal listings.
package catalog

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/service/auth"
	"freelancehub/internal/store"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/rbac"
)

// Reader is the query side of the project store.
type Reader interface {
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	ListAvailable(ctx context.Context, f model.ProjectFilter) ([]model.Project, error)
	ListClientProjects(ctx context.Context, clientID int64) ([]model.ProjectSummary, error)
	ListProjectProposals(ctx context.Context, projectID int64, by model.ProposalSort) ([]model.ProposalView, error)
	ListFreelancerProposals(ctx context.Context, freelancerID int64) ([]model.MyProposal, error)

	ClientDashboard(ctx context.Context, clientID int64) (*model.DashboardStats, error)
	FreelancerDashboard(ctx context.Context, freelancerID int64) (*model.DashboardStats, error)
	ClientActivity(ctx context.Context, clientID int64, limit int) ([]model.ActivityItem, error)
	FreelancerActivity(ctx context.Context, freelancerID int64, limit int) ([]model.ActivityItem, error)
}

const (
	DefaultActivityLimit = 5
	MaxActivityLimit     = 50
)

type Service struct {
	reader Reader
	logger *zap.Logger
}

func NewService(reader Reader, logger *zap.Logger) *Service {
	return &Service{reader: reader, logger: logger}
}

// AvailableFilter is the caller-supplied filter for the available-projects
// listing. Every bound is optional.
type AvailableFilter struct {
	MinBudget    *float64
	MaxBudget    *float64
	MinWorkHours *int
	MaxWorkHours *int
	SkillIDs     []int64
}

func validateFilter(f AvailableFilter) error {
	for field, v := range map[string]*float64{"min_budget": f.MinBudget, "max_budget": f.MaxBudget} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0) {
			return apperr.Validation(field, "must be a non-negative number")
		}
	}
	for field, v := range map[string]*int{"min_work_hours": f.MinWorkHours, "max_work_hours": f.MaxWorkHours} {
		if v != nil && *v < 0 {
			return apperr.Validation(field, "must be a non-negative integer")
		}
	}
	if f.MinBudget != nil && f.MaxBudget != nil && *f.MinBudget > *f.MaxBudget {
		return apperr.Validation("max_budget", "must not be less than min_budget")
	}
	if f.MinWorkHours != nil && f.MaxWorkHours != nil && *f.MinWorkHours > *f.MaxWorkHours {
		return apperr.Validation("max_work_hours", "must not be less than min_work_hours")
	}
	return nil
}

// ListAvailable returns open projects the calling freelancer has not yet
// proposed to. Bounds are AND-combined; a project matches the skills filter
// when it requires any of the listed skills.
func (s *Service) ListAvailable(ctx context.Context, caller auth.Identity, f AvailableFilter) ([]model.Project, error) {
	if !rbac.HasPermission(caller.Role, rbac.PermissionBrowseAvailable) {
		return nil, apperr.Forbidden("only freelancers can browse available projects")
	}
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	projects, err := s.reader.ListAvailable(ctx, model.ProjectFilter{
		FreelancerID: caller.UserID,
		MinBudget:    f.MinBudget,
		MaxBudget:    f.MaxBudget,
		MinWorkHours: f.MinWorkHours,
		MaxWorkHours: f.MaxWorkHours,
		SkillIDs:     f.SkillIDs,
	})
	if err != nil {
		return nil, s.internal(ctx, "failed to list available projects", err)
	}
	if projects == nil {
		projects = []model.Project{}
	}
	return projects, nil
}

// ListClientProjects returns the caller's projects with proposal counts.
func (s *Service) ListClientProjects(ctx context.Context, caller auth.Identity) ([]model.ProjectSummary, error) {
	if !rbac.HasPermission(caller.Role, rbac.PermissionListOwnProjects) {
		return nil, apperr.Forbidden("only clients own projects")
	}
	projects, err := s.reader.ListClientProjects(ctx, caller.UserID)
	if err != nil {
		return nil, s.internal(ctx, "failed to list projects", err)
	}
	if projects == nil {
		projects = []model.ProjectSummary{}
	}
	return projects, nil
}

// GetProject returns a single project. Any authenticated role may read it.
func (s *Service) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	p, err := s.reader.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("project not found")
		}
		return nil, s.internal(ctx, "failed to load project", err)
	}
	return p, nil
}

// ParseSort maps the sort query parameter. Empty means newest first.
func ParseSort(raw string) (model.ProposalSort, error) {
	switch model.ProposalSort(raw) {
	case "":
		return "", nil
	case model.SortByRating, model.SortByPrice:
		return model.ProposalSort(raw), nil
	default:
		return "", apperr.Validation("sort", "must be rating or price")
	}
}

// ListProjectProposals returns the proposals on a project to its owner.
// Projects owned by someone else are reported as not found.
func (s *Service) ListProjectProposals(ctx context.Context, caller auth.Identity, projectID int64, by model.ProposalSort) ([]model.ProposalView, error) {
	if !rbac.HasPermission(caller.Role, rbac.PermissionViewProposals) {
		return nil, apperr.Forbidden("only clients can view project proposals")
	}
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.ClientID != caller.UserID {
		return nil, apperr.NotFound("project not found")
	}
	proposals, err := s.reader.ListProjectProposals(ctx, projectID, by)
	if err != nil {
		return nil, s.internal(ctx, "failed to list proposals", err)
	}
	if proposals == nil {
		proposals = []model.ProposalView{}
	}
	return proposals, nil
}

// ListMyProposals returns the calling freelancer's proposals, newest first.
func (s *Service) ListMyProposals(ctx context.Context, caller auth.Identity) ([]model.MyProposal, error) {
	if !rbac.HasPermission(caller.Role, rbac.PermissionListOwnProposals) {
		return nil, apperr.Forbidden("only freelancers submit proposals")
	}
	proposals, err := s.reader.ListFreelancerProposals(ctx, caller.UserID)
	if err != nil {
		return nil, s.internal(ctx, "failed to list proposals", err)
	}
	if proposals == nil {
		proposals = []model.MyProposal{}
	}
	return proposals, nil
}

// Dashboard returns the caller's role-specific counters.
func (s *Service) Dashboard(ctx context.Context, caller auth.Identity) (*model.DashboardStats, error) {
	var (
		st  *model.DashboardStats
		err error
	)
	switch caller.Role {
	case rbac.RoleClient:
		st, err = s.reader.ClientDashboard(ctx, caller.UserID)
	case rbac.RoleFreelancer:
		st, err = s.reader.FreelancerDashboard(ctx, caller.UserID)
	default:
		return nil, apperr.Forbidden("no dashboard for role " + caller.Role)
	}
	if err != nil {
		return nil, s.internal(ctx, "failed to load dashboard", err)
	}
	st.Role = caller.Role
	return st, nil
}

// RecentActivity 最近的项目/投标状态变化，按时间倒序；limit 为 nil 时取默认值
func (s *Service) RecentActivity(ctx context.Context, caller auth.Identity, limit *int) ([]model.ActivityItem, error) {
	n := DefaultActivityLimit
	if limit != nil {
		if *limit < 1 || *limit > MaxActivityLimit {
			return nil, apperr.Validation("limit", "must be between 1 and 50")
		}
		n = *limit
	}

	var (
		items []model.ActivityItem
		err   error
	)
	switch caller.Role {
	case rbac.RoleClient:
		items, err = s.reader.ClientActivity(ctx, caller.UserID, n)
	case rbac.RoleFreelancer:
		items, err = s.reader.FreelancerActivity(ctx, caller.UserID, n)
	default:
		return nil, apperr.Forbidden("no activity feed for role " + caller.Role)
	}
	if err != nil {
		return nil, s.internal(ctx, "failed to load activity", err)
	}
	if items == nil {
		items = []model.ActivityItem{}
	}
	return items, nil
}

func (s *Service) internal(ctx context.Context, msg string, err error) error {
	logger.WithTrace(ctx, s.logger).Error(msg, zap.Error(err))
	return apperr.Internal(msg, err)
}
