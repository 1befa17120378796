// Package ledger tracks issued refresh tokens by jti together with their
// revoke/rotate state. Expired records are never swept; callers treat them as
// invalid when they look them up.
package ledger

import (
	"context"
	"time"
)

// Ledger is the durable registry behind refresh-token rotation.
//
// FindByJTI returns common.ErrNotFound for unknown jtis. Revoke is idempotent:
// revoking a revoked record only overwrites ReplacedBy. Rotate revokes current
// (pointing at newJTI) and then creates the successor record as one ordered
// unit; the successor is never written when the revoke fails.
type Ledger interface {
	Create(ctx context.Context, userID, jti string, ttl time.Duration) (*Record, error)
	FindByJTI(ctx context.Context, jti string) (*Record, error)
	Revoke(ctx context.Context, rec *Record, replacedBy string) error
	Rotate(ctx context.Context, current *Record, newJTI string, ttl time.Duration) (*Record, error)
}
