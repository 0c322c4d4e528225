package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"freelancehub/internal/model"
	"freelancehub/internal/store"
	otelpkg "freelancehub/pkg/otel"
	"freelancehub/pkg/outbox"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store is the Postgres implementation of store.Store and of the read-side
// interfaces used by the catalog and recommendation services.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(db *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// WithTx runs fn in a read-committed transaction. Any error from fn, or a
// cancelled context, rolls the transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return otelpkg.WithDBSpan(ctx, "TRANSACTION", "lifecycle", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			// no-op after a successful commit
			_ = tx.Rollback(ctx)
		}()

		if err := fn(ctx, &pgTx{tx: tx}); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

const projectColumns = `p.id, p.client_id, p.title, p.description, p.budget, p.deadline,
	p.expected_work_hours, p.categories, p.status, p.freelancer_id, p.created_at, p.updated_at,
	ARRAY(SELECT ps.skill_id FROM project_skills ps WHERE ps.project_id = p.id ORDER BY ps.skill_id)`

func scanProject(row scanner) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID, &p.ClientID, &p.Title, &p.Description, &p.Budget, &p.Deadline,
		&p.ExpectedWorkHours, &p.Categories, &p.Status, &p.FreelancerID, &p.CreatedAt, &p.UpdatedAt,
		&p.SkillIDs,
	)
	if err != nil {
		return nil, err
	}
	p.Status = p.Status.Normalize()
	return &p, nil
}

func getProject(ctx context.Context, q querier, id int64, forUpdate bool) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF p`
	}
	p, err := scanProject(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get project %d", id)
	}
	return p, nil
}

const proposalColumns = `id, project_id, freelancer_id, cover_letter, proposed_amount, estimated_days,
	status, submitted_at, updated_at`

func scanProposal(row scanner) (*model.Proposal, error) {
	var p model.Proposal
	err := row.Scan(
		&p.ID, &p.ProjectID, &p.FreelancerID, &p.CoverLetter, &p.ProposedAmount, &p.EstimatedDays,
		&p.Status, &p.SubmittedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// pgTx implements store.Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return getProject(ctx, t.tx, id, false)
}

func (t *pgTx) GetProjectForUpdate(ctx context.Context, id int64) (*model.Project, error) {
	return getProject(ctx, t.tx, id, true)
}

func (t *pgTx) InsertProject(ctx context.Context, p *model.Project) error {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO projects (client_id, title, description, budget, deadline, expected_work_hours, categories, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		p.ClientID, p.Title, p.Description, p.Budget, p.Deadline, p.ExpectedWorkHours, categories, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError(err, "insert project")
	}

	if len(p.SkillIDs) > 0 {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO project_skills (project_id, skill_id)
			SELECT $1, s FROM unnest($2::bigint[]) AS s
			ON CONFLICT DO NOTHING`,
			p.ID, p.SkillIDs)
		if err != nil {
			return mapError(err, "insert project skills for %d", p.ID)
		}
	}
	return nil
}

func (t *pgTx) UpdateProjectStatus(ctx context.Context, id int64, status model.ProjectStatus, freelancerID *int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE projects
		SET status = $2, freelancer_id = COALESCE($3, freelancer_id), updated_at = NOW()
		WHERE id = $1`,
		id, status, freelancerID)
	if err != nil {
		return mapError(err, "update project %d status", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project %d status: %w", id, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) GetProposal(ctx context.Context, id int64) (*model.Proposal, error) {
	p, err := scanProposal(t.tx.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get proposal %d", id)
	}
	return p, nil
}

func (t *pgTx) FindProposal(ctx context.Context, projectID, freelancerID int64) (*model.Proposal, error) {
	p, err := scanProposal(t.tx.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE project_id = $1 AND freelancer_id = $2`,
		projectID, freelancerID))
	if err != nil {
		return nil, mapError(err, "find proposal on project %d", projectID)
	}
	return p, nil
}

func (t *pgTx) InsertProposal(ctx context.Context, p *model.Proposal) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO proposals (project_id, freelancer_id, cover_letter, proposed_amount, estimated_days, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, submitted_at, updated_at`,
		p.ProjectID, p.FreelancerID, p.CoverLetter, p.ProposedAmount, p.EstimatedDays, p.Status,
	).Scan(&p.ID, &p.SubmittedAt, &p.UpdatedAt)
	return mapError(err, "insert proposal")
}

func (t *pgTx) UpdateProposalStatus(ctx context.Context, id int64, status model.ProposalStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE proposals SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapError(err, "update proposal %d status", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update proposal %d status: %w", id, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) RejectPendingExcept(ctx context.Context, projectID, keepID int64) ([]model.Proposal, error) {
	rows, err := t.tx.Query(ctx, `
		UPDATE proposals
		SET status = 'rejected', updated_at = NOW()
		WHERE project_id = $1 AND id <> $2 AND status = 'pending'
		RETURNING `+proposalColumns,
		projectID, keepID)
	if err != nil {
		return nil, mapError(err, "reject pending proposals on project %d", projectID)
	}
	defer rows.Close()

	var out []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, mapError(err, "scan rejected proposal")
		}
		out = append(out, *p)
	}
	return out, mapError(rows.Err(), "reject pending proposals on project %d", projectID)
}

func (t *pgTx) DeleteProposal(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete proposal %d", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete proposal %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) CountAccepted(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM proposals WHERE project_id = $1 AND status = 'accepted'`, projectID,
	).Scan(&n)
	return n, mapError(err, "count accepted proposals on project %d", projectID)
}

func (t *pgTx) UpsertPreference(ctx context.Context, p *model.Preference) error {
	categories := p.PreferredCategories
	if categories == nil {
		categories = []string{}
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO freelancer_preferences (user_id, min_budget, max_budget, expected_work_hours, preferred_categories, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			min_budget = EXCLUDED.min_budget,
			max_budget = EXCLUDED.max_budget,
			expected_work_hours = EXCLUDED.expected_work_hours,
			preferred_categories = EXCLUDED.preferred_categories,
			updated_at = NOW()
		RETURNING updated_at`,
		p.UserID, p.MinBudget, p.MaxBudget, p.ExpectedWorkHours, categories,
	).Scan(&p.UpdatedAt)
	return mapError(err, "upsert preferences for %d", p.UserID)
}

func (t *pgTx) InsertRating(ctx context.Context, r *model.Rating) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ratings (project_id, rater_id, ratee_id, score, review)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		r.ProjectID, r.RaterID, r.RateeID, r.Score, r.Review,
	).Scan(&r.ID, &r.CreatedAt)
	return mapError(err, "insert rating for project %d", r.ProjectID)
}

func (t *pgTx) InsertHistory(ctx context.Context, h *model.HistoryEntry) error {
	var appliedAt *time.Time
	if !h.AppliedAt.IsZero() {
		appliedAt = &h.AppliedAt
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO project_applications_history (user_id, project_id, success_score, applied_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
		RETURNING applied_at`,
		h.UserID, h.ProjectID, h.SuccessScore, appliedAt,
	).Scan(&h.AppliedAt)
	return mapError(err, "insert history for user %d", h.UserID)
}

func (t *pgTx) EnqueueEvent(ctx context.Context, ev *outbox.Event) error {
	return mapError(outbox.InsertEvent(ctx, t.tx, ev), "enqueue %s", ev.RoutingKey)
}
