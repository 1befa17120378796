// Package token signs and verifies the service's access and refresh JWTs.
//
// Tokens are HS512-signed. The signing key is fixed at construction and the
// Codec is safe for concurrent use.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	// MinSecretLength is the minimum HMAC secret size in bytes (512 bits).
	MinSecretLength = 64
)

// ErrSecretTooShort is a startup misconfiguration, never a runtime error.
var ErrSecretTooShort = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)

var signingMethod = jwt.SigningMethodHS512

// Claims is the wire payload of both token types.
type Claims struct {
	Type   string   `json:"typ"`
	UserID string   `json:"id,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Subject is the minimal identity projection the codec needs to mint tokens.
type Subject struct {
	ID    string
	Email string
}

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Logger receives decode failure details; nil discards them.
	Logger *zap.SugaredLogger
}

// Codec mints and decodes signed tokens.
type Codec struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newJTI     func() string
	logger     *zap.SugaredLogger
}

// NewCodec fails fast when the secret is shorter than MinSecretLength.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Codec{
		key:        []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
		newJTI:     utilities.NewKSUID,
		logger:     cfg.Logger,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// MintAccess issues an access token carrying the identity id and roles.
func (c *Codec) MintAccess(sub Subject, roles []string) (string, error) {
	now := c.now()
	claims := Claims{
		Type:   TypeAccess,
		UserID: sub.ID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.newJTI(),
			Subject:   sub.Email,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return c.sign(claims)
}

// MintRefresh issues a refresh token bound to a ledger record by jti.
func (c *Codec) MintRefresh(sub Subject, jti string) (string, error) {
	now := c.now()
	claims := Claims{
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.Email,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return c.sign(claims)
}

func (c *Codec) sign(claims Claims) (string, error) {
	s, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Decode verifies the signature first, then expiry and issuer.
// Expired tokens yield common.ErrTokenExpired, anything else common.ErrTokenInvalid.
// The parser's own error text is only logged, never returned.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		c.logger.Debugw("token rejected", "err", err)
		return nil, common.ErrTokenInvalid
	}
	return claims, nil
}

// IsAccessToken reports false for any token that fails to decode.
func (c *Codec) IsAccessToken(tokenStr string) bool {
	return c.isType(tokenStr, TypeAccess)
}

// IsRefreshToken reports false for any token that fails to decode.
func (c *Codec) IsRefreshToken(tokenStr string) bool {
	return c.isType(tokenStr, TypeRefresh)
}

func (c *Codec) isType(tokenStr, typ string) bool {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return false
	}
	return claims.Type == typ
}

func (c *Codec) ExtractSubject(tokenStr string) (string, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (c *Codec) ExtractJTI(tokenStr string) (string, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}

// ExtractUserID returns the "id" claim; refresh tokens don't carry one and
// fall back to the subject.
func (c *Codec) ExtractUserID(tokenStr string) (string, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return claims.Subject, nil
}

// Validate reports whether the token belongs to lookupKey (case-insensitive
// subject match) and is unexpired.
func (c *Codec) Validate(tokenStr, lookupKey string) (bool, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(claims.Subject, lookupKey) {
		return false, nil
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.After(c.now()), nil
}
