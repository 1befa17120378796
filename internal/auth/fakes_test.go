package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/events"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// memUsers implements user.Store (and so CredentialStore) in memory.
type memUsers struct {
	mu    sync.Mutex
	users map[string]entity.Identity
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]entity.Identity{}} }

func clone(u entity.Identity) *entity.Identity {
	u.Roles = append([]string(nil), u.Roles...)
	return &u
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(u), nil
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) ExistsByRole(_ context.Context, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.HasRole(role) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) Save(_ context.Context, u *entity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *clone(*u)
	return nil
}

func (m *memUsers) List(_ context.Context, _, _ int) ([]entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entity.Identity{}
	for _, u := range m.users {
		out = append(out, *clone(u))
	}
	return out, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

type memLedger struct {
	mu        sync.Mutex
	recs      map[string]*ledger.Record
	rotateErr error
}

func newMemLedger() *memLedger { return &memLedger{recs: map[string]*ledger.Record{}} }

func (l *memLedger) Create(_ context.Context, userID, jti string, ttl time.Duration) (*ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.create(userID, jti, ttl), nil
}

func (l *memLedger) create(userID, jti string, ttl time.Duration) *ledger.Record {
	now := time.Now().UTC()
	rec := &ledger.Record{ID: int64(len(l.recs) + 1), JTI: jti, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	cp := *rec
	l.recs[jti] = &cp
	return rec
}

func (l *memLedger) FindByJTI(_ context.Context, jti string) (*ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.recs[jti]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (l *memLedger) Revoke(_ context.Context, rec *ledger.Record, replacedBy string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revoke(rec, replacedBy)
}

func (l *memLedger) revoke(rec *ledger.Record, replacedBy string) error {
	r, ok := l.recs[rec.JTI]
	if !ok {
		return common.ErrNotFound
	}
	r.Revoked = true
	rec.Revoked = true
	if replacedBy != "" {
		r.ReplacedBy = &replacedBy
		rec.ReplacedBy = &replacedBy
	}
	return nil
}

func (l *memLedger) Rotate(_ context.Context, current *ledger.Record, newJTI string, ttl time.Duration) (*ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotateErr != nil {
		return nil, l.rotateErr
	}
	if err := l.revoke(current, newJTI); err != nil {
		return nil, err
	}
	return l.create(current.UserID, newJTI, ttl), nil
}

func (l *memLedger) get(jti string) ledger.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.recs[jti]
}

func (l *memLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recs)
}

type recordingPublisher struct {
	mu  sync.Mutex
	evs []events.SecurityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, v.(events.SecurityEvent))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.evs))
	for _, e := range p.evs {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	users  *memUsers
	ledger *memLedger
	codec  *token.Codec
	pub    *recordingPublisher
	hasher user.BcryptHasher
}

var testCookies = CookieConfig{Name: "refresh_token", HTTPOnly: true, Secure: true, SameSite: http.SameSiteLaxMode}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := token.NewCodec(token.Config{
		Secret:     testSecret,
		Issuer:     "auth-backend",
		AccessTTL:  time.Hour,
		RefreshTTL: 14 * 24 * time.Hour,
	})
	require.NoError(t, err)
	f := &fixture{
		users:  newMemUsers(),
		ledger: newMemLedger(),
		codec:  codec,
		pub:    &recordingPublisher{},
		hasher: user.BcryptHasher{Cost: 4},
	}
	f.svc = NewService(Deps{
		Store:   f.users,
		Ledger:  f.ledger,
		Codec:   codec,
		Hasher:  f.hasher,
		Cookies: testCookies,
		Events:  f.pub,
	})
	return f
}

func (f *fixture) addUser(t *testing.T, id, email, password string, enabled bool, roles ...string) *entity.Identity {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u := &entity.Identity{ID: id, Email: email, PasswordHash: hash, Enabled: enabled, Provider: entity.ProviderLocal, Roles: roles}
	require.NoError(t, f.users.Save(context.Background(), u))
	return u
}

// refreshCookie returns the refresh cookie set on rec, if any.
func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookies.Name {
			return c
		}
	}
	return nil
}

func setCookieHeader(rec *httptest.ResponseRecorder) string {
	return strings.Join(rec.Header().Values("Set-Cookie"), "\n")
}
