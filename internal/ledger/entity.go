package ledger

import "time"

// Record is a persisted refresh-token registration.
type Record struct {
	ID         int64     `db:"id"`
	JTI        string    `db:"jti"`
	UserID     string    `db:"user_id"`
	CreatedAt  time.Time `db:"created_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	Revoked    bool      `db:"revoked"`
	ReplacedBy *string   `db:"replaced_by"`
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
