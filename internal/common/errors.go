// Package common holds the error taxonomy shared by the token, ledger, user
// and auth packages, plus the JSON error body written at the HTTP boundary.
package common

import "errors"

var (
	// credentials / accounts
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrAccountDisabled      = errors.New("account is disabled")
	ErrValidation           = errors.New("validation error")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrNotFound             = errors.New("resource not found")
	ErrForbidden            = errors.New("access is denied")
	ErrAlreadyAdmin         = errors.New("user is already ADMIN")

	// refresh tokens
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrInvalidRefreshTokenType = errors.New("invalid refresh token type")
	ErrTokenNotRecognized      = errors.New("refresh token not recognized")
	ErrTokenRevoked            = errors.New("refresh token revoked")
	ErrTokenOwnershipMismatch  = errors.New("refresh token does not belong to this user")

	// signed tokens
	ErrTokenExpired = errors.New("token is expired")
	ErrTokenInvalid = errors.New("invalid token")

	// access guard
	ErrMissingToken = errors.New("missing bearer token")
)
