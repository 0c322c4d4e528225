// Package recommend ranks open projects for a freelancer from skill overlap,
// budget preference and past successful work.
package recommend

import (
	"math"
	"sort"
	"strings"

	"freelancehub/internal/model"
)

// Weights are the maximum contribution of each score term.
type Weights struct {
	SkillMatch       float64 `yaml:"skill_match"`
	CategoryAffinity float64 `yaml:"category_affinity"`
	BudgetFit        float64 `yaml:"budget_fit"`
	HoursNear        float64 `yaml:"hours_near"` // |diff| < 10
	HoursFar         float64 `yaml:"hours_far"`  // |diff| < 20
}

func DefaultWeights() Weights {
	return Weights{
		SkillMatch:       50,
		CategoryAffinity: 10,
		BudgetFit:        10,
		HoursNear:        10,
		HoursFar:         5,
	}
}

// Signals are the freelancer-side inputs to scoring.
type Signals struct {
	SkillIDs    []int64
	MinBudget   float64
	MaxBudget   *float64 // nil is unbounded
	TargetHours *float64
	// Categories is the union of successful-history and preferred
	// categories, lower-cased.
	Categories map[string]bool
}

// InBudget reports whether budget lies inside [MinBudget, MaxBudget].
func (s Signals) InBudget(budget float64) bool {
	if budget < s.MinBudget {
		return false
	}
	return s.MaxBudget == nil || budget <= *s.MaxBudget
}

// Breakdown is the per-term score of one candidate.
type Breakdown struct {
	SkillMatch float64 `json:"skill_match"`
	Affinity   float64 `json:"affinity"`
	BudgetFit  float64 `json:"budget_fit"`
}

func (b Breakdown) Total() float64 {
	return b.SkillMatch + b.Affinity + b.BudgetFit
}

// Recommendation is one ranked project.
type Recommendation struct {
	model.Project
	MatchingSkills       int       `json:"matching_skills"`
	TotalSkills          int       `json:"total_skills"`
	SkillMatchPercentage float64   `json:"skill_match_percentage"`
	Score                float64   `json:"score"`
	Breakdown            Breakdown `json:"score_breakdown"`
}

// Score computes the breakdown for one candidate. ok is false when the
// candidate's budget is outside the freelancer's bounds.
func Score(c model.Candidate, sig Signals, w Weights) (b Breakdown, ok bool) {
	if !sig.InBudget(c.Project.Budget) {
		return Breakdown{}, false
	}

	if c.TotalSkills > 0 {
		b.SkillMatch = float64(c.MatchingSkills) / float64(c.TotalSkills) * w.SkillMatch
	}

	var category float64
	for _, cat := range c.Project.Categories {
		if sig.Categories[strings.ToLower(cat)] {
			category = w.CategoryAffinity
			break
		}
	}
	b.Affinity = math.Max(category, hoursBonus(c.Project.ExpectedWorkHours, sig.TargetHours, w))

	// every pooled candidate is inside the bounds
	b.BudgetFit = w.BudgetFit
	return b, true
}

func hoursBonus(projectHours *int, target *float64, w Weights) float64 {
	if projectHours == nil || target == nil {
		return 0
	}
	diff := math.Abs(float64(*projectHours) - *target)
	switch {
	case diff < 10:
		return w.HoursNear
	case diff < 20:
		return w.HoursFar
	default:
		return 0
	}
}

// Rank scores every candidate, drops those outside the budget bounds, sorts
// by total score descending with ties broken by project id, and keeps at
// most limit entries.
func Rank(candidates []model.Candidate, sig Signals, w Weights, limit int) []Recommendation {
	out := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		b, ok := Score(c, sig, w)
		if !ok {
			continue
		}
		rec := Recommendation{
			Project:        c.Project,
			MatchingSkills: c.MatchingSkills,
			TotalSkills:    c.TotalSkills,
			Score:          b.Total(),
			Breakdown:      b,
		}
		if c.TotalSkills > 0 {
			rec.SkillMatchPercentage = float64(c.MatchingSkills) / float64(c.TotalSkills) * 100
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
