package repository

import (
	"context"

	"freelancehub/internal/model"
	otelpkg "freelancehub/pkg/otel"
)

func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return getProject(ctx, s.db, id, false)
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ListAvailable returns open projects the freelancer has not proposed to.
func (s *Store) ListAvailable(ctx context.Context, f model.ProjectFilter) ([]model.Project, error) {
	query, args, err := availableQuery(f).ToSql()
	if err != nil {
		return nil, mapError(err, "build available projects query")
	}
	projects, err := s.queryProjects(ctx, query, args...)
	return projects, mapError(err, "list available projects")
}

func (s *Store) ListClientProjects(ctx context.Context, clientID int64) ([]model.ProjectSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+projectColumns+`,
		       (SELECT COUNT(*) FROM proposals pr WHERE pr.project_id = p.id)
		FROM projects p
		WHERE p.client_id = $1
		ORDER BY p.created_at DESC, p.id DESC`, clientID)
	if err != nil {
		return nil, mapError(err, "list projects of client %d", clientID)
	}
	defer rows.Close()

	out := []model.ProjectSummary{}
	for rows.Next() {
		var (
			p model.Project
			s model.ProjectSummary
		)
		err := rows.Scan(
			&p.ID, &p.ClientID, &p.Title, &p.Description, &p.Budget, &p.Deadline,
			&p.ExpectedWorkHours, &p.Categories, &p.Status, &p.FreelancerID, &p.CreatedAt, &p.UpdatedAt,
			&p.SkillIDs, &s.ProposalCount,
		)
		if err != nil {
			return nil, mapError(err, "scan client project")
		}
		p.Status = p.Status.Normalize()
		s.Project = p
		out = append(out, s)
	}
	return out, mapError(rows.Err(), "list projects of client %d", clientID)
}

// ListProjectProposals joins each proposal with the freelancer's name,
// average rating and skills. Rating sort puts unrated freelancers last;
// price sort is cheapest first; default is newest first.
func (s *Store) ListProjectProposals(ctx context.Context, projectID int64, by model.ProposalSort) ([]model.ProposalView, error) {
	order := "pr.submitted_at DESC, pr.id DESC"
	switch by {
	case model.SortByRating:
		order = "COALESCE(r.avg_score, 0) DESC, pr.submitted_at DESC, pr.id DESC"
	case model.SortByPrice:
		order = "pr.proposed_amount ASC, pr.submitted_at DESC, pr.id DESC"
	}

	rows, err := s.db.Query(ctx, `
		SELECT pr.id, pr.project_id, pr.freelancer_id, pr.cover_letter, pr.proposed_amount, pr.estimated_days,
		       pr.status, pr.submitted_at, pr.updated_at,
		       u.name, r.avg_score, COALESCE(r.cnt, 0),
		       ARRAY(SELECT sk.name FROM user_skills us JOIN skills sk ON sk.id = us.skill_id
		             WHERE us.user_id = pr.freelancer_id ORDER BY sk.name)
		FROM proposals pr
		JOIN users u ON u.id = pr.freelancer_id
		LEFT JOIN (
			SELECT ratee_id, AVG(score)::float8 AS avg_score, COUNT(*) AS cnt
			FROM ratings GROUP BY ratee_id
		) r ON r.ratee_id = pr.freelancer_id
		WHERE pr.project_id = $1
		ORDER BY `+order, projectID)
	if err != nil {
		return nil, mapError(err, "list proposals of project %d", projectID)
	}
	defer rows.Close()

	out := []model.ProposalView{}
	for rows.Next() {
		var v model.ProposalView
		err := rows.Scan(
			&v.ID, &v.ProjectID, &v.FreelancerID, &v.CoverLetter, &v.ProposedAmount, &v.EstimatedDays,
			&v.Status, &v.SubmittedAt, &v.UpdatedAt,
			&v.FreelancerName, &v.AverageRating, &v.RatingCount, &v.Skills,
		)
		if err != nil {
			return nil, mapError(err, "scan proposal view")
		}
		out = append(out, v)
	}
	return out, mapError(rows.Err(), "list proposals of project %d", projectID)
}

func (s *Store) ListFreelancerProposals(ctx context.Context, freelancerID int64) ([]model.MyProposal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pr.id, pr.project_id, pr.freelancer_id, pr.cover_letter, pr.proposed_amount, pr.estimated_days,
		       pr.status, pr.submitted_at, pr.updated_at, p.title, p.status
		FROM proposals pr
		JOIN projects p ON p.id = pr.project_id
		WHERE pr.freelancer_id = $1
		ORDER BY pr.submitted_at DESC, pr.id DESC`, freelancerID)
	if err != nil {
		return nil, mapError(err, "list proposals of freelancer %d", freelancerID)
	}
	defer rows.Close()

	out := []model.MyProposal{}
	for rows.Next() {
		var m model.MyProposal
		err := rows.Scan(
			&m.ID, &m.ProjectID, &m.FreelancerID, &m.CoverLetter, &m.ProposedAmount, &m.EstimatedDays,
			&m.Status, &m.SubmittedAt, &m.UpdatedAt, &m.ProjectTitle, &m.ProjectStatus,
		)
		if err != nil {
			return nil, mapError(err, "scan freelancer proposal")
		}
		m.ProjectStatus = m.ProjectStatus.Normalize()
		out = append(out, m)
	}
	return out, mapError(rows.Err(), "list proposals of freelancer %d", freelancerID)
}

func (s *Store) UserSkillIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.QueryRow(ctx,
		`SELECT ARRAY(SELECT skill_id FROM user_skills WHERE user_id = $1 ORDER BY skill_id)`, userID,
	).Scan(&ids)
	return ids, mapError(err, "skills of user %d", userID)
}

func (s *Store) GetPreference(ctx context.Context, userID int64) (*model.Preference, error) {
	var p model.Preference
	err := s.db.QueryRow(ctx, `
		SELECT user_id, min_budget, max_budget, expected_work_hours, preferred_categories, updated_at
		FROM freelancer_preferences
		WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.MinBudget, &p.MaxBudget, &p.ExpectedWorkHours, &p.PreferredCategories, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "preferences of user %d", userID)
	}
	return &p, nil
}

// SuccessfulProjects returns each distinct project from the user's history
// with a success score of at least minScore.
func (s *Store) SuccessfulProjects(ctx context.Context, userID int64, minScore int) ([]model.SuccessfulProject, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.categories, p.expected_work_hours,
		       ARRAY(SELECT ps.skill_id FROM project_skills ps WHERE ps.project_id = p.id ORDER BY ps.skill_id)
		FROM projects p
		WHERE p.id IN (
			SELECT project_id FROM project_applications_history
			WHERE user_id = $1 AND success_score >= $2
		)
		ORDER BY p.id`, userID, minScore)
	if err != nil {
		return nil, mapError(err, "successful projects of user %d", userID)
	}
	defer rows.Close()

	var out []model.SuccessfulProject
	for rows.Next() {
		var sp model.SuccessfulProject
		if err := rows.Scan(&sp.ProjectID, &sp.Categories, &sp.ExpectedWorkHours, &sp.SkillIDs); err != nil {
			return nil, mapError(err, "scan successful project")
		}
		out = append(out, sp)
	}
	return out, mapError(rows.Err(), "successful projects of user %d", userID)
}

// CandidateProjects returns the recommendation pool with skill overlap
// counted in SQL.
func (s *Store) CandidateProjects(ctx context.Context, q model.CandidateQuery) ([]model.Candidate, error) {
	var out []model.Candidate
	err := otelpkg.WithDBSpan(ctx, "SELECT", "projects", func(ctx context.Context) error {
		query, args, err := candidateQuery(q).ToSql()
		if err != nil {
			return err
		}
		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c model.Candidate
			p := &c.Project
			err := rows.Scan(
				&p.ID, &p.ClientID, &p.Title, &p.Description, &p.Budget, &p.Deadline,
				&p.ExpectedWorkHours, &p.Categories, &p.Status, &p.FreelancerID, &p.CreatedAt, &p.UpdatedAt,
				&p.SkillIDs, &c.MatchingSkills, &c.TotalSkills,
			)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, mapError(err, "candidate projects for freelancer %d", q.FreelancerID)
}
