// Package oauth turns provider-specific user attribute maps into the single
// profile shape the auth service accepts.
package oauth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// Profile is the normalized identity hand-off from any provider.
type Profile struct {
	Email      string
	Name       string
	Image      string
	Provider   entity.Provider
	ProviderID string
}

// Normalize resolves attrs by registration id ("google" or "github").
func Normalize(registrationID string, attrs map[string]any) (Profile, error) {
	switch strings.ToLower(registrationID) {
	case "google":
		return google(attrs)
	case "github":
		return github(attrs)
	}
	return Profile{}, fmt.Errorf("%w: unsupported oauth provider %q", common.ErrValidation, registrationID)
}

func google(attrs map[string]any) (Profile, error) {
	p := Profile{
		Email:      str(attrs["email"]),
		Name:       str(attrs["name"]),
		Image:      str(attrs["picture"]),
		Provider:   entity.ProviderGoogle,
		ProviderID: str(attrs["sub"]),
	}
	if p.Email == "" || p.ProviderID == "" {
		return Profile{}, fmt.Errorf("%w: google profile missing email or sub", common.ErrValidation)
	}
	return p, nil
}

// GitHub hides email unless the user made it public.
func github(attrs map[string]any) (Profile, error) {
	login := str(attrs["login"])
	p := Profile{
		Email:      str(attrs["email"]),
		Name:       login,
		Image:      str(attrs["avatar_url"]),
		Provider:   entity.ProviderGitHub,
		ProviderID: str(attrs["id"]),
	}
	if p.ProviderID == "" || login == "" {
		return Profile{}, fmt.Errorf("%w: github profile missing id or login", common.ErrValidation)
	}
	if p.Email == "" {
		p.Email = login + "@github.com"
	}
	return p, nil
}

// str flattens the JSON scalar types providers use; numeric ids arrive as float64.
func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
