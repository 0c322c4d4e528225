package repository

import (
	"context"

	"freelancehub/internal/model"
)

func (s *Store) ClientDashboard(ctx context.Context, clientID int64) (*model.DashboardStats, error) {
	var st model.DashboardStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE p.status = 'open'),
		       COUNT(*) FILTER (WHERE p.status IN ('in_progress', 'assigned')),
		       COUNT(*) FILTER (WHERE p.status = 'completed'),
		       (SELECT COUNT(*) FROM proposals pr
		        JOIN projects pp ON pp.id = pr.project_id
		        WHERE pp.client_id = $1 AND pr.status = 'pending')
		FROM projects p
		WHERE p.client_id = $1`, clientID,
	).Scan(&st.OpenProjects, &st.InProgressProjects, &st.CompletedProjects, &st.PendingProposals)
	if err != nil {
		return nil, mapError(err, "dashboard of client %d", clientID)
	}
	return &st, nil
}

func (s *Store) FreelancerDashboard(ctx context.Context, freelancerID int64) (*model.DashboardStats, error) {
	var st model.DashboardStats
	err := s.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM projects o
		        WHERE o.status = 'open'
		          AND NOT EXISTS (SELECT 1 FROM proposals pr WHERE pr.project_id = o.id AND pr.freelancer_id = $1)),
		       COUNT(*) FILTER (WHERE p.status IN ('in_progress', 'assigned')),
		       COUNT(*) FILTER (WHERE p.status = 'completed'),
		       (SELECT COUNT(*) FROM proposals pr WHERE pr.freelancer_id = $1 AND pr.status = 'pending')
		FROM projects p
		WHERE p.freelancer_id = $1`, freelancerID,
	).Scan(&st.AvailableProjects, &st.InProgressProjects, &st.CompletedProjects, &st.PendingProposals)
	if err != nil {
		return nil, mapError(err, "dashboard of freelancer %d", freelancerID)
	}
	return &st, nil
}

// ClientActivity 客户自己项目及其投标的最近状态变化
func (s *Store) ClientActivity(ctx context.Context, clientID int64, limit int) ([]model.ActivityItem, error) {
	return s.activity(ctx, `
		SELECT 'proposal', pr.id, p.id, p.title, pr.status, pr.updated_at
		FROM proposals pr
		JOIN projects p ON p.id = pr.project_id
		WHERE p.client_id = $1
		UNION ALL
		SELECT 'project', p.id, p.id, p.title, p.status, p.updated_at
		FROM projects p
		WHERE p.client_id = $1`, clientID, limit)
}

// FreelancerActivity 自己的投标以及分配给自己的项目
func (s *Store) FreelancerActivity(ctx context.Context, freelancerID int64, limit int) ([]model.ActivityItem, error) {
	return s.activity(ctx, `
		SELECT 'proposal', pr.id, p.id, p.title, pr.status, pr.updated_at
		FROM proposals pr
		JOIN projects p ON p.id = pr.project_id
		WHERE pr.freelancer_id = $1
		UNION ALL
		SELECT 'project', p.id, p.id, p.title, p.status, p.updated_at
		FROM projects p
		WHERE p.freelancer_id = $1`, freelancerID, limit)
}

func (s *Store) activity(ctx context.Context, union string, userID int64, limit int) ([]model.ActivityItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT kind, id, project_id, title, status, at
		FROM (`+union+`) AS a(kind, id, project_id, title, status, at)
		ORDER BY at DESC, kind, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapError(err, "activity of user %d", userID)
	}
	defer rows.Close()

	out := []model.ActivityItem{}
	for rows.Next() {
		var it model.ActivityItem
		if err := rows.Scan(&it.Type, &it.ID, &it.ProjectID, &it.Title, &it.Status, &it.Date); err != nil {
			return nil, mapError(err, "scan activity")
		}
		if it.Type == model.ActivityProject {
			it.Status = string(model.ProjectStatus(it.Status).Normalize())
		}
		out = append(out, it)
	}
	return out, mapError(rows.Err(), "activity of user %d", userID)
}
