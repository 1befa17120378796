package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

func newTestHandler(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	users := user.NewService(f.users, f.hasher, nil)
	return NewHandler(f.svc, users, testCookies.Name, zap.NewNop().Sugar()), f
}

func post(h http.HandlerFunc, path, body string, mut ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mut {
		m(req)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandler_RegisterThenLogin(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := post(h.Register, "/api/v1/auth/register", `{"name":"Ann","email":"ann@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var u entity.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, []string{entity.RoleUser}, u.Roles)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = post(h.Login, "/api/v1/auth/login", `{"email":"ann@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var out TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Bearer", out.TokenType)
	assert.NotEmpty(t, out.AccessToken)
	assert.Equal(t, []string{entity.RoleUser}, out.User.Roles)
	assert.NotNil(t, refreshCookie(rec))
}

func TestHandler_LoginFailureBody(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := post(h.Login, "/api/v1/auth/login", `{"email":"x@example.com","password":"pw"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var apiErr common.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "/api/v1/auth/login", apiErr.Path)
	assert.Equal(t, common.ErrAuthenticationFailed.Error(), apiErr.Message)
	assert.Nil(t, refreshCookie(rec))
}

func TestHandler_BadPayload(t *testing.T) {
	h, _ := newTestHandler(t)
	assert.Equal(t, http.StatusBadRequest, post(h.Login, "/api/v1/auth/login", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h.Register, "/api/v1/auth/register", `[]`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h.Register, "/api/v1/auth/register", `{"email":""}`).Code)
}

func TestHandler_RefreshSources(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "u1", "ann@example.com", "pw", true)

	_, tok := f.login(t, "ann@example.com", "pw")
	rec := post(h.Refresh, "/api/v1/auth/refresh", `{"refreshToken":"`+tok+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	next := refreshCookie(rec)
	require.NotNil(t, next)

	rec = post(h.Refresh, "/api/v1/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: testCookies.Name, Value: next.Value})
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the first token was rotated away
	rec = post(h.Refresh, "/api/v1/auth/refresh", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, post(h.Refresh, "/api/v1/auth/refresh", "").Code)
}

func TestHandler_Logout(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "u1", "ann@example.com", "pw", true)
	_, tok := f.login(t, "ann@example.com", "pw")

	rec := post(h.Logout, "/api/v1/auth/logout", "", func(r *http.Request) {
		r.Header.Set(HeaderRefreshToken, tok)
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, setCookieHeader(rec), "Max-Age=0")
	assert.True(t, f.ledger.get(mustJTI(t, f.codec, tok)).Revoked)

	rec = post(h.Logout, "/api/v1/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, setCookieHeader(rec), "Max-Age=0")
}
