package recommend

import (
	"testing"

	"freelancehub/internal/model"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int { return &v }

func candidate(id int64, budget float64, matching, total int) model.Candidate {
	return model.Candidate{
		Project:        model.Project{ID: id, Budget: budget, Status: model.ProjectOpen},
		MatchingSkills: matching,
		TotalSkills:    total,
	}
}

func TestScore_Terms(t *testing.T) {
	w := DefaultWeights()
	sig := Signals{Categories: map[string]bool{"design": true}}

	tests := []struct {
		name string
		c    model.Candidate
		sig  Signals
		want Breakdown
	}{
		{
			name: "no required skills",
			c:    candidate(1, 100, 0, 0),
			sig:  sig,
			want: Breakdown{SkillMatch: 0, Affinity: 0, BudgetFit: 10},
		},
		{
			name: "two of four skills",
			c:    candidate(2, 100, 2, 4),
			sig:  sig,
			want: Breakdown{SkillMatch: 25, Affinity: 0, BudgetFit: 10},
		},
		{
			name: "category hit",
			c: model.Candidate{
				Project:        model.Project{ID: 3, Budget: 100, Categories: []string{"Design"}},
				MatchingSkills: 1, TotalSkills: 1,
			},
			sig:  sig,
			want: Breakdown{SkillMatch: 50, Affinity: 10, BudgetFit: 10},
		},
		{
			name: "hours within 10",
			c:    model.Candidate{Project: model.Project{ID: 4, ExpectedWorkHours: ptrI(45)}},
			sig:  Signals{TargetHours: ptrF(40)},
			want: Breakdown{Affinity: 10, BudgetFit: 10},
		},
		{
			name: "hours within 20",
			c:    model.Candidate{Project: model.Project{ID: 5, ExpectedWorkHours: ptrI(55)}},
			sig:  Signals{TargetHours: ptrF(40)},
			want: Breakdown{Affinity: 5, BudgetFit: 10},
		},
		{
			name: "hours exactly 10 apart",
			c:    model.Candidate{Project: model.Project{ID: 6, ExpectedWorkHours: ptrI(50)}},
			sig:  Signals{TargetHours: ptrF(40)},
			want: Breakdown{Affinity: 5, BudgetFit: 10},
		},
		{
			name: "hours far",
			c:    model.Candidate{Project: model.Project{ID: 7, ExpectedWorkHours: ptrI(80)}},
			sig:  Signals{TargetHours: ptrF(40)},
			want: Breakdown{Affinity: 0, BudgetFit: 10},
		},
		{
			name: "affinity takes the max, not the sum",
			c: model.Candidate{Project: model.Project{
				ID: 8, Categories: []string{"design"}, ExpectedWorkHours: ptrI(55),
			}},
			sig:  Signals{TargetHours: ptrF(40), Categories: map[string]bool{"design": true}},
			want: Breakdown{Affinity: 10, BudgetFit: 10},
		},
		{
			name: "project without hours",
			c:    model.Candidate{Project: model.Project{ID: 9}},
			sig:  Signals{TargetHours: ptrF(40)},
			want: Breakdown{BudgetFit: 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Score(tt.c, tt.sig, w)
			if !ok {
				t.Fatal("expected candidate in budget")
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestScore_MonotonicInSkillOverlap(t *testing.T) {
	w := DefaultWeights()
	sig := Signals{TargetHours: ptrF(30), Categories: map[string]bool{"web": true}}
	base := model.Project{Budget: 300, Categories: []string{"web"}, ExpectedWorkHours: ptrI(35)}

	for total := 1; total <= 6; total++ {
		prev := -1.0
		for matching := 0; matching <= total; matching++ {
			p := base
			p.ID = int64(matching + 1)
			b, ok := Score(model.Candidate{Project: p, MatchingSkills: matching, TotalSkills: total}, sig, w)
			if !ok {
				t.Fatal("expected candidate in budget")
			}
			if b.Total() < prev {
				t.Fatalf("total=%d: %d matching scored %.2f, lower than %.2f for fewer", total, matching, b.Total(), prev)
			}
			prev = b.Total()
		}
	}
}

func TestRank_BudgetIsHardFilter(t *testing.T) {
	sig := Signals{MinBudget: 100, MaxBudget: ptrF(1000)}
	candidates := []model.Candidate{
		candidate(1, 50, 3, 3),   // below min, perfect skills
		candidate(2, 100, 0, 3),  // at min
		candidate(3, 1000, 1, 3), // at max
		candidate(4, 1001, 3, 3), // above max
		candidate(5, 500, 2, 3),
	}
	got := Rank(candidates, sig, DefaultWeights(), 20)

	ids := map[int64]bool{}
	for _, r := range got {
		ids[r.ID] = true
		if !sig.InBudget(r.Budget) {
			t.Errorf("project %d with budget %.0f is outside the bounds", r.ID, r.Budget)
		}
	}
	if ids[1] || ids[4] {
		t.Errorf("out-of-budget projects leaked into results: %v", ids)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 results, got %d", len(got))
	}
}

func TestRank_OrderAndLimit(t *testing.T) {
	var candidates []model.Candidate
	for i := int64(1); i <= 30; i++ {
		candidates = append(candidates, candidate(i, 100, int(i%4), 3))
	}
	got := Rank(candidates, Signals{}, DefaultWeights(), 20)
	if len(got) != 20 {
		t.Fatalf("expected 20 results, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		a, b := got[i-1], got[i]
		if a.Score < b.Score || (a.Score == b.Score && a.ID > b.ID) {
			t.Fatalf("results out of order at %d: %d(%.2f) before %d(%.2f)", i, a.ID, a.Score, b.ID, b.Score)
		}
	}
	if got[0].SkillMatchPercentage != 100 {
		t.Errorf("expected best match first, got %.1f%%", got[0].SkillMatchPercentage)
	}
}

func TestRank_Empty(t *testing.T) {
	got := Rank(nil, Signals{}, DefaultWeights(), 20)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}
