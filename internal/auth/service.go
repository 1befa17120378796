// Package auth orchestrates login, registration, refresh-token rotation and
// logout on top of the token codec, the refresh ledger and the credential store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/events"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// CredentialStore resolves and persists identities.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*entity.Identity, error)
	FindByID(ctx context.Context, id string) (*entity.Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, u *entity.Identity) error
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        entity.View `json:"user"`
}

// Deps groups the collaborators of Service. Events and Logger are optional.
type Deps struct {
	Store   CredentialStore
	Ledger  ledger.Ledger
	Codec   *token.Codec
	Hasher  user.PasswordHasher
	Cookies CookieConfig
	Events  events.Publisher
	Logger  *zap.SugaredLogger
}

type Service struct {
	store   CredentialStore
	ledger  ledger.Ledger
	codec   *token.Codec
	hasher  user.PasswordHasher
	cookies CookieConfig
	events  events.Publisher
	logger  *zap.SugaredLogger
	now     func() time.Time
	newJTI  func() string
	newID   func() string
}

func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.Hasher == nil {
		d.Hasher = user.BcryptHasher{Cost: 12}
	}
	return &Service{
		store:   d.Store,
		ledger:  d.Ledger,
		codec:   d.Codec,
		hasher:  d.Hasher,
		cookies: d.Cookies,
		events:  d.Events,
		logger:  d.Logger,
		now:     time.Now,
		newJTI:  utilities.NewUUID,
		newID:   utilities.NewUUID,
	}
}

// Login verifies credentials and issues a token pair. Unknown email and wrong
// password both yield ErrAuthenticationFailed.
func (s *Service) Login(ctx context.Context, req LoginRequest, resp Response) (*TokenResponse, error) {
	u, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAuthenticationFailed
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, req.Password) {
		return nil, common.ErrAuthenticationFailed
	}
	if !u.Enabled {
		return nil, common.ErrAccountDisabled
	}
	s.rehashIfNeeded(ctx, u, req.Password)

	out, jti, err := s.issue(ctx, u, resp)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("login", "user_id", u.ID, "jti", jti)
	s.publish(ctx, events.TypeLogin, u.ID, u.Email, jti)
	return out, nil
}

func (s *Service) rehashIfNeeded(ctx context.Context, u *entity.Identity, password string) {
	if !s.hasher.NeedsRehash(u.PasswordHash) {
		return
	}
	h, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warnw("rehash failed", "user_id", u.ID, "err", err)
		return
	}
	u.PasswordHash = h
	u.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, u); err != nil {
		s.logger.Warnw("save rehashed password failed", "user_id", u.ID, "err", err)
	}
}

// Register creates an enabled LOCAL identity. The default role is assigned by
// the caller afterwards.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*entity.Identity, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrDuplicateEmail
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := &entity.Identity{
		ID:           s.newID(),
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Image:        req.Image,
		Enabled:      true,
		Provider:     entity.ProviderLocal,
		Version:      1,
		Roles:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Save(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Infow("registered", "user_id", u.ID)
	s.publish(ctx, events.TypeRegister, u.ID, u.Email, "")
	return u, nil
}

// Refresh rotates a presented refresh token: the ledger record is revoked,
// replaced by a new one, and a fresh token pair is issued.
func (s *Service) Refresh(ctx context.Context, c Candidates, resp Response) (*TokenResponse, error) {
	tok, ok := Extract(c, s.codec)
	if !ok {
		return nil, common.ErrInvalidRefreshToken
	}
	claims, err := s.codec.Decode(tok)
	if err != nil {
		return nil, err
	}
	if claims.Type != token.TypeRefresh {
		return nil, common.ErrInvalidRefreshTokenType
	}

	rec, err := s.ledger.FindByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrTokenNotRecognized
		}
		return nil, err
	}
	if rec.Revoked {
		s.logger.Warnw("revoked refresh token presented", "user_id", rec.UserID, "jti", rec.JTI)
		s.publish(ctx, events.TypeReuseDetected, rec.UserID, claims.Subject, rec.JTI)
		return nil, common.ErrTokenRevoked
	}
	if rec.Expired(s.now()) {
		return nil, common.ErrTokenExpired
	}
	owner, err := s.store.FindByID(ctx, rec.UserID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if owner == nil || !strings.EqualFold(owner.Email, claims.Subject) {
		return nil, common.ErrTokenOwnershipMismatch
	}
	if !owner.Enabled {
		return nil, common.ErrAccountDisabled
	}

	newJTI := s.newJTI()
	if _, err := s.ledger.Rotate(ctx, rec, newJTI, s.codec.RefreshTTL()); err != nil {
		return nil, err
	}
	out, err := s.mint(owner, newJTI, resp)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("refresh rotated", "user_id", owner.ID, "old_jti", rec.JTI, "jti", newJTI)
	s.publish(ctx, events.TypeRotated, owner.ID, owner.Email, newJTI)
	return out, nil
}

// Logout revokes the presented refresh token when it can, and always clears
// the cookie. Token problems never fail a logout.
func (s *Service) Logout(ctx context.Context, c Candidates, resp Response) {
	defer clearRefresh(resp, s.cookies)

	c.Body = ""
	tok, ok := Extract(c, s.codec)
	if !ok {
		return
	}
	claims, err := s.codec.Decode(tok)
	if err != nil || claims.Type != token.TypeRefresh {
		s.logger.Debugw("logout ignored token", "err", err)
		return
	}
	rec, err := s.ledger.FindByJTI(ctx, claims.ID)
	if err != nil {
		s.logger.Debugw("logout ledger lookup failed", "jti", claims.ID, "err", err)
		return
	}
	if err := s.ledger.Revoke(ctx, rec, ""); err != nil {
		s.logger.Warnw("logout revoke failed", "jti", rec.JTI, "err", err)
		return
	}
	s.logger.Infow("logout", "user_id", rec.UserID, "jti", rec.JTI)
	s.publish(ctx, events.TypeLogout, rec.UserID, claims.Subject, rec.JTI)
}

// OAuthLogin finds or creates the identity behind a normalized provider
// profile and issues tokens exactly like Login.
func (s *Service) OAuthLogin(ctx context.Context, p oauth.Profile, resp Response) (*TokenResponse, error) {
	u, err := s.store.FindByEmail(ctx, p.Email)
	switch {
	case errors.Is(err, common.ErrNotFound):
		now := s.now().UTC()
		u = &entity.Identity{
			ID:         s.newID(),
			Name:       p.Name,
			Email:      p.Email,
			Image:      p.Image,
			Enabled:    true,
			Provider:   p.Provider,
			ProviderID: p.ProviderID,
			Version:    1,
			Roles:      []string{entity.RoleUser},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Save(ctx, u); err != nil {
			return nil, err
		}
		s.logger.Infow("oauth identity created", "user_id", u.ID, "provider", p.Provider)
	case err != nil:
		return nil, err
	}
	if !u.Enabled {
		return nil, common.ErrAccountDisabled
	}

	out, jti, err := s.issue(ctx, u, resp)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeLogin, u.ID, u.Email, jti)
	return out, nil
}

// OAuthLoginAttributes is the entry point for a provider callback: it
// normalizes the raw attribute map, then runs OAuthLogin.
func (s *Service) OAuthLoginAttributes(ctx context.Context, registrationID string, attrs map[string]any, resp Response) (*TokenResponse, error) {
	p, err := oauth.Normalize(registrationID, attrs)
	if err != nil {
		return nil, err
	}
	return s.OAuthLogin(ctx, p, resp)
}

// issue records a fresh ledger entry and mints the pair bound to it.
func (s *Service) issue(ctx context.Context, u *entity.Identity, resp Response) (*TokenResponse, string, error) {
	jti := s.newJTI()
	if _, err := s.ledger.Create(ctx, u.ID, jti, s.codec.RefreshTTL()); err != nil {
		return nil, "", err
	}
	out, err := s.mint(u, jti, resp)
	if err != nil {
		return nil, "", err
	}
	return out, jti, nil
}

func (s *Service) mint(u *entity.Identity, jti string, resp Response) (*TokenResponse, error) {
	sub := token.Subject{ID: u.ID, Email: u.Email}
	access, err := s.codec.MintAccess(sub, u.Roles)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.MintRefresh(sub, jti)
	if err != nil {
		return nil, err
	}
	attachRefresh(resp, s.cookies, refresh, s.codec.RefreshTTL())
	return &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.codec.AccessTTL() / time.Second),
		User:        u.View(),
	}, nil
}

func (s *Service) publish(ctx context.Context, typ, userID, email, jti string) {
	ev := events.SecurityEvent{Type: typ, UserID: userID, Email: email, JTI: jti, At: s.now().UTC()}
	if err := s.events.Publish(ctx, userID, ev); err != nil {
		s.logger.Warnw("publish security event failed", "type", typ, "err", err)
	}
}
