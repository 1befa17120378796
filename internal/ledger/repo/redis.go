package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// RedisRepo keeps one hash per jti. Keys outlive expires_at by the retention
// window so an expired token is still reported as expired rather than unknown.
type RedisRepo struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
	newID     func() int64
}

func NewRedisRepo(rdb redis.UniversalClient, prefix string, retention time.Duration) *RedisRepo {
	if retention < 0 {
		retention = 0
	}
	return &RedisRepo{rdb: rdb, prefix: prefix, retention: retention, now: time.Now, newID: utilities.NewSnowflakeID}
}

var _ ledger.Ledger = (*RedisRepo)(nil)

var errMissingRecord = errors.New("redis ledger: record vanished")

// KEYS[1]=record; ARGV[1]=replaced_by (may be empty)
var revokeLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
if ARGV[1] ~= "" then
  redis.call("HSET", KEYS[1], "replaced_by", ARGV[1])
end
return 1
`)

// KEYS[1]=current, KEYS[2]=successor
// ARGV: next jti, id, user_id, created_at, expires_at, key expiry (unix ms)
var rotateLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "replaced_by", ARGV[1])
redis.call("HSET", KEYS[2], "jti", ARGV[1], "id", ARGV[2], "user_id", ARGV[3], "created_at", ARGV[4], "expires_at", ARGV[5], "revoked", "0")
redis.call("PEXPIREAT", KEYS[2], ARGV[6])
return 1
`)

func (r *RedisRepo) key(jti string) string {
	return r.prefix + ":rt:" + jti
}

func (r *RedisRepo) Create(ctx context.Context, userID, jti string, ttl time.Duration) (*ledger.Record, error) {
	rec := r.newRecord(userID, jti, ttl)
	k := r.key(jti)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k,
			"jti", rec.JTI,
			"id", strconv.FormatInt(rec.ID, 10),
			"user_id", rec.UserID,
			"created_at", strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
			"expires_at", strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
			"revoked", "0",
		)
		p.PExpireAt(ctx, k, rec.ExpiresAt.Add(r.retention))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis create refresh token: %w", err)
	}
	return rec, nil
}

func (r *RedisRepo) FindByJTI(ctx context.Context, jti string) (*ledger.Record, error) {
	m, err := r.rdb.HGetAll(ctx, r.key(jti)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find refresh token: %w", err)
	}
	if len(m) == 0 {
		return nil, common.ErrNotFound
	}
	return decodeRecord(m)
}

func (r *RedisRepo) Revoke(ctx context.Context, rec *ledger.Record, replacedBy string) error {
	n, err := revokeLua.Run(ctx, r.rdb, []string{r.key(rec.JTI)}, replacedBy).Int()
	if err != nil {
		return fmt.Errorf("redis revoke refresh token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", errMissingRecord, rec.JTI)
	}
	markRevoked(rec, replacedBy)
	return nil
}

// Rotate is a single script, so revoke and successor creation are applied
// atomically and in order.
func (r *RedisRepo) Rotate(ctx context.Context, current *ledger.Record, newJTI string, ttl time.Duration) (*ledger.Record, error) {
	next := r.newRecord(current.UserID, newJTI, ttl)
	n, err := rotateLua.Run(ctx, r.rdb,
		[]string{r.key(current.JTI), r.key(newJTI)},
		newJTI,
		strconv.FormatInt(next.ID, 10),
		next.UserID,
		strconv.FormatInt(next.CreatedAt.UnixMilli(), 10),
		strconv.FormatInt(next.ExpiresAt.UnixMilli(), 10),
		strconv.FormatInt(next.ExpiresAt.Add(r.retention).UnixMilli(), 10),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("redis rotate refresh token: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", errMissingRecord, current.JTI)
	}
	markRevoked(current, newJTI)
	return next, nil
}

func (r *RedisRepo) newRecord(userID, jti string, ttl time.Duration) *ledger.Record {
	now := r.now().UTC().Truncate(time.Millisecond)
	return &ledger.Record{
		ID:        r.newID(),
		JTI:       jti,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func decodeRecord(m map[string]string) (*ledger.Record, error) {
	id, err := strconv.ParseInt(m["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis ledger: bad id: %w", err)
	}
	created, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis ledger: bad created_at: %w", err)
	}
	expires, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis ledger: bad expires_at: %w", err)
	}
	rec := &ledger.Record{
		ID:        id,
		JTI:       m["jti"],
		UserID:    m["user_id"],
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
		Revoked:   m["revoked"] == "1",
	}
	if v := m["replaced_by"]; v != "" {
		rec.ReplacedBy = &v
	}
	return rec, nil
}
