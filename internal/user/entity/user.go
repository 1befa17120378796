package entity

import (
	"slices"
	"time"
)

// Provider tags how an identity authenticates.
type Provider string

const (
	ProviderLocal  Provider = "LOCAL"
	ProviderGoogle Provider = "GOOGLE"
	ProviderGitHub Provider = "GITHUB"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
	RoleGuest = "GUEST"
)

// Identity is a row of the `users` table plus its role set from `user_roles`.
// Email is the login key and is matched case-sensitively.
type Identity struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Image        string    `db:"image" json:"image"`
	Enabled      bool      `db:"enabled" json:"enabled"`
	Provider     Provider  `db:"provider" json:"provider"`
	ProviderID   string    `db:"provider_id" json:"providerId"`
	Version      int64     `db:"version" json:"-"`
	Roles        []string  `db:"-" json:"roles"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// AddRole is a no-op when the role is already held.
func (i *Identity) AddRole(role string) {
	if !i.HasRole(role) {
		i.Roles = append(i.Roles, role)
	}
}

// View is the minimal projection returned alongside issued tokens.
type View struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Image string   `json:"image"`
	Roles []string `json:"roles"`
}

func (i *Identity) View() View {
	roles := i.Roles
	if roles == nil {
		roles = []string{}
	}
	return View{ID: i.ID, Name: i.Name, Email: i.Email, Image: i.Image, Roles: roles}
}
