package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// schema: pkg/database/migrations/00001_users.sql

// UserRepo provides data access for users and user_roles using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, email, password_hash, image, enabled, provider, provider_id, version, created_at, updated_at`

// FindByEmail matches the email exactly (case-sensitive).
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*entity.Identity, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) findOne(ctx context.Context, q string, arg any) (*entity.Identity, error) {
	var u entity.Identity
	if err := r.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	roles, err := r.rolesOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (r *UserRepo) rolesOf(ctx context.Context, userID string) ([]string, error) {
	roles := []string{}
	if err := r.db.SelectContext(ctx, &roles, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID); err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	return roles, nil
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email); err != nil {
		return false, fmt.Errorf("exists by email: %w", err)
	}
	return ok, nil
}

func (r *UserRepo) ExistsByRole(ctx context.Context, role string) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM user_roles WHERE role = $1)`, role); err != nil {
		return false, fmt.Errorf("exists by role: %w", err)
	}
	return ok, nil
}

// email is never rewritten on conflict
const upsertUser = `INSERT INTO users (` + userColumns + `)
	VALUES (:id, :name, :email, :password_hash, :image, :enabled, :provider, :provider_id, :version, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash,
		image = EXCLUDED.image, enabled = EXCLUDED.enabled, provider = EXCLUDED.provider,
		provider_id = EXCLUDED.provider_id, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`

// Save upserts the identity and replaces its role set in one transaction.
func (r *UserRepo) Save(ctx context.Context, u *entity.Identity) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExecContext(ctx, upsertUser, u); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return common.ErrDuplicateEmail
		}
		return fmt.Errorf("upsert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, u.ID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, u.ID, role); err != nil {
			return fmt.Errorf("insert role %s: %w", role, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save user: %w", err)
	}
	return nil
}

// List pages users ordered by creation time and loads their roles in one extra query.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]entity.Identity, error) {
	users := []entity.Identity{}
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &users, q, limit, offset); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
		users[i].Roles = []string{}
	}
	var rows []struct {
		UserID string `db:"user_id"`
		Role   string `db:"role"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT user_id, role FROM user_roles WHERE user_id = ANY($1) ORDER BY role`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	byID := make(map[string]*entity.Identity, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, row := range rows {
		if u, ok := byID[row.UserID]; ok {
			u.Roles = append(u.Roles, row.Role)
		}
	}
	return users, nil
}

// Delete removes the user; user_roles and refresh_tokens cascade.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
