package auth

import (
	"net/http"
	"strings"
)

const (
	BodyFieldRefreshToken = "refreshToken"
	HeaderRefreshToken    = "X-Refresh-Token"
)

// Candidates are the raw refresh-token sources of one request.
type Candidates struct {
	Cookie        string
	Body          string
	Header        string
	Authorization string
}

// CandidatesFromRequest collects every source; body is the already-decoded
// refreshToken field, empty when absent.
func CandidatesFromRequest(r *http.Request, cookieName, body string) Candidates {
	c := Candidates{
		Body:          body,
		Header:        r.Header.Get(HeaderRefreshToken),
		Authorization: r.Header.Get("Authorization"),
	}
	if ck, err := r.Cookie(cookieName); err == nil {
		c.Cookie = ck.Value
	}
	return c
}

type refreshChecker interface {
	IsRefreshToken(token string) bool
}

// Extract picks one token by fixed priority: cookie, body, X-Refresh-Token,
// then a Bearer Authorization value that decodes as a refresh token.
// The first non-blank source wins.
func Extract(c Candidates, codec refreshChecker) (string, bool) {
	for _, v := range []string{c.Cookie, c.Body, c.Header} {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	if tok, ok := bearer(c.Authorization); ok && codec.IsRefreshToken(tok) {
		return tok, true
	}
	return "", false
}

// bearer parses "Bearer <token>" with a case-insensitive scheme.
func bearer(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
