package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"freelancehub/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user. A taken email maps to store.ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (name, email, password_hash, role, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, u.Name, u.Email, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
	return mapError(err, "create user %s", u.Email)
}

// FindByEmail returns user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
        SELECT id, name, email, password_hash, role, created_at
        FROM users
        WHERE email = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, "find user %s", email)
	}
	return &u, nil
}

// EnsureSkill returns the id of the named skill, creating it if needed.
func (r *UserRepository) EnsureSkill(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
        INSERT INTO skills (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id
    `, name).Scan(&id)
	return id, mapError(err, "ensure skill %s", name)
}

// SetUserSkills replaces the skill set of a user.
func (r *UserRepository) SetUserSkills(ctx context.Context, userID int64, skillIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapError(err, "begin set skills")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_skills WHERE user_id = $1`, userID); err != nil {
		return mapError(err, "clear skills of user %d", userID)
	}
	if len(skillIDs) > 0 {
		_, err := tx.Exec(ctx, `
            INSERT INTO user_skills (user_id, skill_id)
            SELECT $1, unnest($2::bigint[])
            ON CONFLICT DO NOTHING
        `, userID, skillIDs)
		if err != nil {
			return mapError(err, "set skills of user %d", userID)
		}
	}
	return mapError(tx.Commit(ctx), "commit skills of user %d", userID)
}
