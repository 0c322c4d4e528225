package recommend

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/service/auth"
	"freelancehub/internal/store"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	otelpkg "freelancehub/pkg/otel"
	"freelancehub/pkg/rbac"
)

// SuccessScoreThreshold marks a past application as successful.
const SuccessScoreThreshold = 7

// Source is the read side the scorer pulls its inputs from.
type Source interface {
	UserSkillIDs(ctx context.Context, userID int64) ([]int64, error)
	GetPreference(ctx context.Context, userID int64) (*model.Preference, error)
	SuccessfulProjects(ctx context.Context, userID int64, minScore int) ([]model.SuccessfulProject, error)
	CandidateProjects(ctx context.Context, q model.CandidateQuery) ([]model.Candidate, error)
}

// Config 推荐配置
type Config struct {
	Weights         Weights       `yaml:"weights"`
	PageSize        int           `yaml:"page_size"`
	MinSuccessScore int           `yaml:"min_success_score"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		PageSize:        20,
		MinSuccessScore: SuccessScoreThreshold,
		CacheTTL:        60 * time.Second,
	}
}

// Factors reports which signals were available for this freelancer.
type Factors struct {
	SkillMatch                bool `json:"skill_match"`
	BudgetPreference          bool `json:"budget_preference"`
	ProjectHistory            bool `json:"project_history"`
	CategoryOrHoursPreference bool `json:"category_or_hours_preference"`
}

// Result is the recommendation response for one freelancer.
type Result struct {
	RecommendedProjects []Recommendation `json:"recommended_projects"`
	Factors             Factors          `json:"factors"`
}

type Service struct {
	source Source
	store  store.Store
	cache  Cache
	cfg    Config
	logger *zap.Logger
}

// NewService cache may be nil, in which case nothing is cached.
func NewService(source Source, st store.Store, cache Cache, cfg Config, logger *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MinSuccessScore <= 0 {
		cfg.MinSuccessScore = def.MinSuccessScore
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{source: source, store: st, cache: cache, cfg: cfg, logger: logger}
}

// GetRecommendations returns ranked open projects for the calling
// freelancer. An empty pool is not an error.
func (s *Service) GetRecommendations(ctx context.Context, caller auth.Identity) (*Result, error) {
	if !rbac.HasPermission(caller.Role, rbac.PermissionRecommendations) {
		return nil, apperr.Forbidden("only freelancers receive recommendations")
	}
	start := time.Now()
	ctx, span := otelpkg.StartSpan(ctx, "recommend.GetRecommendations")
	defer span.End()
	span.SetAttributes(attribute.Int64("freelancer.id", caller.UserID))

	// stamp 必须在读取任何输入之前获取：期间发生的失效会换掉 key，本次结果不会再被读到
	stamp, cacheable := s.cache.Stamp(ctx, caller.UserID)
	if cacheable {
		if cached, ok := s.cache.Get(ctx, caller.UserID, stamp); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			metrics.RecordRecommendation("hit", len(cached.RecommendedProjects), time.Since(start))
			return cached, nil
		}
	}

	sig, factors, err := s.signals(ctx, caller.UserID)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to load recommendation signals",
			zap.Int64("freelancer_id", caller.UserID), zap.Error(err))
		return nil, apperr.Internal("failed to generate recommendations", err)
	}

	candidates, err := s.source.CandidateProjects(ctx, model.CandidateQuery{
		FreelancerID: caller.UserID,
		SkillIDs:     sig.SkillIDs,
		MinBudget:    sig.MinBudget,
		MaxBudget:    sig.MaxBudget,
	})
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to load candidate projects",
			zap.Int64("freelancer_id", caller.UserID), zap.Error(err))
		return nil, apperr.Internal("failed to generate recommendations", err)
	}

	result := &Result{
		RecommendedProjects: Rank(candidates, sig, s.cfg.Weights, s.cfg.PageSize),
		Factors:             factors,
	}
	if cacheable {
		s.cache.Set(ctx, caller.UserID, stamp, result, s.cfg.CacheTTL)
	}

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	metrics.RecordRecommendation("miss", len(candidates), time.Since(start))
	logger.WithTrace(ctx, s.logger).Debug("Recommendations generated",
		zap.Int64("freelancer_id", caller.UserID),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(result.RecommendedProjects)))
	return result, nil
}

// signals gathers skills, preference and successful history.
// Hours target: explicit preference wins, else the average over distinct
// successful projects that declare hours.
func (s *Service) signals(ctx context.Context, freelancerID int64) (Signals, Factors, error) {
	var (
		sig     = Signals{Categories: map[string]bool{}}
		factors Factors
	)

	skills, err := s.source.UserSkillIDs(ctx, freelancerID)
	if err != nil {
		return sig, factors, err
	}
	sig.SkillIDs = skills
	factors.SkillMatch = len(skills) > 0

	pref, err := s.source.GetPreference(ctx, freelancerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		pref = nil
	case err != nil:
		return sig, factors, err
	}
	if pref != nil {
		factors.BudgetPreference = true
		if pref.MinBudget != nil {
			sig.MinBudget = *pref.MinBudget
		}
		sig.MaxBudget = pref.MaxBudget
		if pref.ExpectedWorkHours != nil {
			h := float64(*pref.ExpectedWorkHours)
			sig.TargetHours = &h
		}
		for _, c := range pref.PreferredCategories {
			sig.Categories[strings.ToLower(c)] = true
		}
	}

	history, err := s.source.SuccessfulProjects(ctx, freelancerID, s.cfg.MinSuccessScore)
	if err != nil {
		return sig, factors, err
	}
	factors.ProjectHistory = len(history) > 0

	var (
		hoursSum   float64
		hoursCount int
	)
	for _, p := range history {
		for _, c := range p.Categories {
			sig.Categories[strings.ToLower(c)] = true
		}
		if p.ExpectedWorkHours != nil {
			hoursSum += float64(*p.ExpectedWorkHours)
			hoursCount++
		}
	}
	if sig.TargetHours == nil && hoursCount > 0 {
		avg := hoursSum / float64(hoursCount)
		sig.TargetHours = &avg
	}

	factors.CategoryOrHoursPreference = sig.TargetHours != nil || len(sig.Categories) > 0
	return sig, factors, nil
}

// PreferenceInput 所有字段可选
type PreferenceInput struct {
	MinBudget           *float64
	MaxBudget           *float64
	ExpectedWorkHours   *int
	PreferredCategories []string
}

func validatePreference(in PreferenceInput) error {
	if in.MinBudget != nil && (math.IsNaN(*in.MinBudget) || math.IsInf(*in.MinBudget, 0) || *in.MinBudget < 0) {
		return apperr.Validation("min_budget", "must be a non-negative number")
	}
	if in.MaxBudget != nil && (math.IsNaN(*in.MaxBudget) || math.IsInf(*in.MaxBudget, 0) || *in.MaxBudget < 0) {
		return apperr.Validation("max_budget", "must be a non-negative number")
	}
	if in.MinBudget != nil && in.MaxBudget != nil && *in.MinBudget > *in.MaxBudget {
		return apperr.Validation("max_budget", "must not be less than min_budget")
	}
	if in.ExpectedWorkHours != nil && *in.ExpectedWorkHours < 0 {
		return apperr.Validation("expected_work_hours", "must be a non-negative integer")
	}
	return nil
}

// SetPreferences replaces the calling freelancer's preferences.
func (s *Service) SetPreferences(ctx context.Context, caller auth.Identity, in PreferenceInput) (*model.Preference, error) {
	if !rbac.HasPermission(caller.Role, rbac.PermissionSetPreferences) {
		return nil, apperr.Forbidden("only freelancers can set preferences")
	}
	if err := validatePreference(in); err != nil {
		return nil, err
	}

	pref := &model.Preference{
		UserID:              caller.UserID,
		MinBudget:           in.MinBudget,
		MaxBudget:           in.MaxBudget,
		ExpectedWorkHours:   in.ExpectedWorkHours,
		PreferredCategories: normalizeCategories(in.PreferredCategories),
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpsertPreference(ctx, pref)
	})
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to save preferences",
			zap.Int64("freelancer_id", caller.UserID), zap.Error(err))
		return nil, apperr.Internal("failed to save preferences", err)
	}

	s.cache.Invalidate(ctx, caller.UserID)
	logger.WithTrace(ctx, s.logger).Info("Preferences updated", zap.Int64("freelancer_id", caller.UserID))
	return pref, nil
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
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
