package repository

import (
	sq "github.com/Masterminds/squirrel"

	"freelancehub/internal/model"
)

// psql 生成 $n 占位符，pgx 直接可用
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func notProposedBy(freelancerID int64) sq.Sqlizer {
	return sq.Expr("NOT EXISTS (SELECT 1 FROM proposals pr WHERE pr.project_id = p.id AND pr.freelancer_id = ?)", freelancerID)
}

// availableQuery AND-combines every bound present in f. The skills bound
// matches projects requiring any of the listed skills.
func availableQuery(f model.ProjectFilter) sq.SelectBuilder {
	q := psql.Select(projectColumns).
		From("projects p").
		Where("p.status = 'open'").
		Where(notProposedBy(f.FreelancerID))
	if f.MinBudget != nil {
		q = q.Where(sq.GtOrEq{"p.budget": *f.MinBudget})
	}
	if f.MaxBudget != nil {
		q = q.Where(sq.LtOrEq{"p.budget": *f.MaxBudget})
	}
	if f.MinWorkHours != nil {
		q = q.Where(sq.GtOrEq{"p.expected_work_hours": *f.MinWorkHours})
	}
	if f.MaxWorkHours != nil {
		q = q.Where(sq.LtOrEq{"p.expected_work_hours": *f.MaxWorkHours})
	}
	if len(f.SkillIDs) > 0 {
		// slice 作为单个数组参数传给 pgx，不展开成 IN
		q = q.Where(sq.Expr("EXISTS (SELECT 1 FROM project_skills ps WHERE ps.project_id = p.id AND ps.skill_id = ANY(?))", f.SkillIDs))
	}
	return q.OrderBy("p.created_at DESC", "p.id DESC")
}

// candidateQuery selects the recommendation pool with skill overlap counted
// in SQL. MinBudget is always bound; MaxBudget only when set.
func candidateQuery(c model.CandidateQuery) sq.SelectBuilder {
	skills := c.SkillIDs
	if skills == nil {
		skills = []int64{}
	}
	q := psql.Select(projectColumns).
		Column(sq.Expr("(SELECT COUNT(DISTINCT ps.skill_id) FROM project_skills ps WHERE ps.project_id = p.id AND ps.skill_id = ANY(?))", skills)).
		Column("(SELECT COUNT(DISTINCT ps.skill_id) FROM project_skills ps WHERE ps.project_id = p.id)").
		From("projects p").
		Where("p.status = 'open'").
		Where(notProposedBy(c.FreelancerID)).
		Where(sq.GtOrEq{"p.budget": c.MinBudget})
	if c.MaxBudget != nil {
		q = q.Where(sq.LtOrEq{"p.budget": *c.MaxBudget})
	}
	return q.OrderBy("p.id")
}
