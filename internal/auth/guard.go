package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// PrincipalHandler receives the authenticated identity as an explicit argument.
type PrincipalHandler func(w http.ResponseWriter, r *http.Request, principal *entity.Identity)

type identityFinder interface {
	FindByEmail(ctx context.Context, email string) (*entity.Identity, error)
}

// Guard authenticates requests carrying a Bearer access token.
type Guard struct {
	codec  *token.Codec
	store  identityFinder
	logger *zap.SugaredLogger
}

func NewGuard(codec *token.Codec, store identityFinder, logger *zap.SugaredLogger) *Guard {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Guard{codec: codec, store: store, logger: logger}
}

// Authenticate resolves the principal behind the request's access token.
func (g *Guard) Authenticate(r *http.Request) (*entity.Identity, error) {
	tok, ok := bearer(r.Header.Get("Authorization"))
	if !ok {
		return nil, common.ErrMissingToken
	}
	claims, err := g.codec.Decode(tok)
	if err != nil {
		return nil, err
	}
	if claims.Type != token.TypeAccess {
		return nil, fmt.Errorf("%w: not an access token", common.ErrTokenInvalid)
	}
	u, err := g.store.FindByEmail(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", common.ErrTokenInvalid)
		}
		return nil, err
	}
	valid, err := g.codec.Validate(tok, u.Email)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, common.ErrTokenInvalid
	}
	if !u.Enabled {
		return nil, common.ErrAccountDisabled
	}
	return u, nil
}

func (g *Guard) RequireAccess(next PrincipalHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := g.Authenticate(r)
		if err != nil {
			g.logger.Debugw("access denied", "path", r.URL.Path, "err", err)
			common.WriteError(w, r, err)
			return
		}
		next(w, r, u)
	}
}

// RequireRole answers 403 when the principal lacks role.
func (g *Guard) RequireRole(role string, next PrincipalHandler) http.HandlerFunc {
	return g.RequireAccess(func(w http.ResponseWriter, r *http.Request, u *entity.Identity) {
		if !u.HasRole(role) {
			common.WriteError(w, r, common.ErrForbidden)
			return
		}
		next(w, r, u)
	})
}
