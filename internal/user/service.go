package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// Store is the persistence surface the service needs; *repo.UserRepo satisfies it.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*entity.Identity, error)
	FindByID(ctx context.Context, id string) (*entity.Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByRole(ctx context.Context, role string) (bool, error)
	Save(ctx context.Context, u *entity.Identity) error
	List(ctx context.Context, limit, offset int) ([]entity.Identity, error)
	Delete(ctx context.Context, id string) error
}

// Service covers user and admin management outside the token flows.
type Service struct {
	store  Store
	hasher PasswordHasher
	logger *zap.SugaredLogger
	now    func() time.Time
	newID  func() string
}

func NewService(store Store, hasher PasswordHasher, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, hasher: hasher, logger: logger, now: time.Now, newID: utilities.NewUUID}
}

// CreateInput carries the fields accepted when creating an identity.
type CreateInput struct {
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Password   string          `json:"password"`
	Image      string          `json:"image"`
	Provider   entity.Provider `json:"provider"`
	ProviderID string          `json:"providerId"`
}

// UpdateInput fields left nil are unchanged. Email is immutable.
type UpdateInput struct {
	Name     *string          `json:"name"`
	Image    *string          `json:"image"`
	Provider *entity.Provider `json:"provider"`
	Password *string          `json:"password"`
	Enabled  *bool            `json:"enabled"`
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	return s.store.FindByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	return s.store.FindByID(ctx, id)
}

// List clamps limit to [1,100].
func (s *Service) List(ctx context.Context, limit, offset int) ([]entity.Identity, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

// Create persists a new enabled identity. Roles are assigned separately.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Identity, error) {
	email := strings.TrimSpace(in.Email)
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

	var hash string
	if in.Password != "" {
		if hash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	provider := in.Provider
	if provider == "" {
		provider = entity.ProviderLocal
	}
	now := s.now().UTC()
	u := &entity.Identity{
		ID:           s.newID(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Image:        in.Image,
		Enabled:      true,
		Provider:     provider,
		ProviderID:   in.ProviderID,
		Version:      1,
		Roles:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*entity.Identity, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Image != nil {
		u.Image = *in.Image
	}
	if in.Provider != nil {
		u.Provider = *in.Provider
	}
	if in.Enabled != nil {
		u.Enabled = *in.Enabled
	}
	if in.Password != nil {
		if *in.Password == "" {
			return nil, fmt.Errorf("%w: password must not be blank", common.ErrValidation)
		}
		if u.PasswordHash, err = s.hasher.Hash(*in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	u.Version++
	u.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// AssignRole adds role to the user's role set; holding it already is not an error.
func (s *Service) AssignRole(ctx context.Context, id, role string) (*entity.Identity, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.HasRole(role) {
		return u, nil
	}
	u.AddRole(role)
	u.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateAdmin creates an identity holding the ADMIN role.
func (s *Service) CreateAdmin(ctx context.Context, in CreateInput) (*entity.Identity, error) {
	u, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.AssignRole(ctx, u.ID, entity.RoleAdmin)
}

// AssignAdminRole promotes an existing user; ErrAlreadyAdmin when already promoted.
func (s *Service) AssignAdminRole(ctx context.Context, id string) (*entity.Identity, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.HasRole(entity.RoleAdmin) {
		return nil, common.ErrAlreadyAdmin
	}
	return s.AssignRole(ctx, id, entity.RoleAdmin)
}

// EnsureBootstrapAdmin seeds the first administrator when none exists.
// It reports whether an admin was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	exists, err := s.store.ExistsByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	u, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if _, err := s.AssignRole(ctx, u.ID, entity.RoleAdmin); err != nil {
			return false, err
		}
	case errors.Is(err, common.ErrNotFound):
		if _, err := s.CreateAdmin(ctx, CreateInput{Name: "admin", Email: email, Password: password}); err != nil {
			return false, err
		}
	default:
		return false, err
	}
	s.logger.Infow("bootstrap admin ensured", "email", email)
	return true, nil
}
