package auth

import (
	"net/http"
	"time"
)

// Response is the boundary the service writes cookies and headers to.
type Response interface {
	SetCookie(c *http.Cookie)
	SetHeader(key, value string)
}

// HTTPResponse adapts an http.ResponseWriter. Use before WriteHeader.
type HTTPResponse struct{ W http.ResponseWriter }

func (h HTTPResponse) SetCookie(c *http.Cookie)    { http.SetCookie(h.W, c) }
func (h HTTPResponse) SetHeader(key, value string) { h.W.Header().Set(key, value) }

// CookieConfig shapes the refresh-token cookie.
type CookieConfig struct {
	Name     string
	HTTPOnly bool
	Secure   bool
	Domain   string
	SameSite http.SameSite
}

func (c CookieConfig) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func attachRefresh(resp Response, cfg CookieConfig, token string, ttl time.Duration) {
	resp.SetCookie(cfg.cookie(token, int(ttl/time.Second)))
	noStore(resp)
}

// clearRefresh renders Max-Age=0 (net/http maps a negative MaxAge to 0).
func clearRefresh(resp Response, cfg CookieConfig) {
	resp.SetCookie(cfg.cookie("", -1))
	noStore(resp)
}

func noStore(resp Response) {
	resp.SetHeader("Cache-Control", "no-store")
	resp.SetHeader("Pragma", "no-cache")
}
