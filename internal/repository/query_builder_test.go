package repository

import (
	"strings"
	"testing"

	"freelancehub/internal/model"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func TestAvailableQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   model.ProjectFilter
		contains []string
		args     int
	}{
		{
			name:     "no bounds",
			filter:   model.ProjectFilter{FreelancerID: 4},
			contains: []string{"WHERE p.status = 'open' AND NOT EXISTS", "pr.freelancer_id = $1", "ORDER BY p.created_at DESC, p.id DESC"},
			args:     1,
		},
		{
			name: "every bound",
			filter: model.ProjectFilter{
				FreelancerID: 4,
				MinBudget:    ptrF(100),
				MaxBudget:    ptrF(900),
				MinWorkHours: ptrI(5),
				MaxWorkHours: ptrI(40),
				SkillIDs:     []int64{1, 2},
			},
			contains: []string{
				"p.budget >= $2", "p.budget <= $3",
				"p.expected_work_hours >= $4", "p.expected_work_hours <= $5",
				"ps.skill_id = ANY($6)",
			},
			args: 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := availableQuery(tt.filter).ToSql()
			if err != nil {
				t.Fatalf("ToSql failed: %v", err)
			}
			for _, frag := range tt.contains {
				if !strings.Contains(sql, frag) {
					t.Errorf("expected %q in\n%s", frag, sql)
				}
			}
			if strings.Contains(sql, "?") {
				t.Errorf("unconverted placeholder in\n%s", sql)
			}
			if len(args) != tt.args {
				t.Fatalf("expected %d args, got %d: %#v", tt.args, len(args), args)
			}
			if len(tt.filter.SkillIDs) > 0 {
				if ids, ok := args[len(args)-1].([]int64); !ok || len(ids) != 2 {
					t.Errorf("skill ids must bind as one array argument, got %#v", args[len(args)-1])
				}
			}
		})
	}
}

func TestCandidateQuery(t *testing.T) {
	sql, args, err := candidateQuery(model.CandidateQuery{FreelancerID: 9, MinBudget: 50}).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}
	// 匹配数子查询在 SELECT 列表里，占位符编号排在 WHERE 之前
	for _, frag := range []string{"ps.skill_id = ANY($1)", "pr.freelancer_id = $2", "p.budget >= $3", "ORDER BY p.id"} {
		if !strings.Contains(sql, frag) {
			t.Errorf("expected %q in\n%s", frag, sql)
		}
	}
	if strings.Contains(sql, "p.budget <=") {
		t.Error("unbounded max budget must not add a filter")
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %#v", args)
	}
	if ids, ok := args[0].([]int64); !ok || ids == nil {
		t.Errorf("nil skills must bind as an empty array, got %#v", args[0])
	}

	_, args, err = candidateQuery(model.CandidateQuery{FreelancerID: 9, MaxBudget: ptrF(500), SkillIDs: []int64{3}}).ToSql()
	if err != nil || len(args) != 4 {
		t.Fatalf("expected 4 args with max budget, got %#v (%v)", args, err)
	}
}
