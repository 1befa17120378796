package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// schema: pkg/database/migrations/00002_refresh_tokens.sql

// RefreshRepo is the PostgreSQL ledger.
type RefreshRepo struct {
	db    *sqlx.DB
	now   func() time.Time
	newID func() int64
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo {
	return &RefreshRepo{db: db, now: time.Now, newID: utilities.NewSnowflakeID}
}

var _ ledger.Ledger = (*RefreshRepo)(nil)

const insertRefresh = `INSERT INTO refresh_tokens (id, jti, user_id, created_at, expires_at, revoked, replaced_by)
	VALUES (:id, :jti, :user_id, :created_at, :expires_at, :revoked, :replaced_by)`

func (r *RefreshRepo) Create(ctx context.Context, userID, jti string, ttl time.Duration) (*ledger.Record, error) {
	rec := r.newRecord(userID, jti, ttl)
	if _, err := r.db.NamedExecContext(ctx, insertRefresh, rec); err != nil {
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}
	return rec, nil
}

func (r *RefreshRepo) FindByJTI(ctx context.Context, jti string) (*ledger.Record, error) {
	const q = `SELECT id, jti, user_id, created_at, expires_at, revoked, replaced_by FROM refresh_tokens WHERE jti = $1`
	var rec ledger.Record
	if err := r.db.GetContext(ctx, &rec, q, jti); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	return &rec, nil
}

// an empty replacement (logout) keeps any successor link already recorded
const revokeRefresh = `UPDATE refresh_tokens SET revoked = true, replaced_by = COALESCE($2, replaced_by) WHERE jti = $1`

func (r *RefreshRepo) Revoke(ctx context.Context, rec *ledger.Record, replacedBy string) error {
	if _, err := r.db.ExecContext(ctx, revokeRefresh, rec.JTI, nullable(replacedBy)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	markRevoked(rec, replacedBy)
	return nil
}

// Rotate runs revoke + insert in one transaction.
func (r *RefreshRepo) Rotate(ctx context.Context, current *ledger.Record, newJTI string, ttl time.Duration) (*ledger.Record, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rotate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, revokeRefresh, current.JTI, newJTI); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	next := r.newRecord(current.UserID, newJTI, ttl)
	if _, err := tx.NamedExecContext(ctx, insertRefresh, next); err != nil {
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rotate: %w", err)
	}
	markRevoked(current, newJTI)
	return next, nil
}

func (r *RefreshRepo) newRecord(userID, jti string, ttl time.Duration) *ledger.Record {
	now := r.now().UTC()
	return &ledger.Record{
		ID:        r.newID(),
		JTI:       jti,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func markRevoked(rec *ledger.Record, replacedBy string) {
	rec.Revoked = true
	if replacedBy != "" {
		rec.ReplacedBy = &replacedBy
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
