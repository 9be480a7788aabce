package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/security"
	"github.com/google/uuid"
)

// Service manages the staff accounts of a shop. Callers are shop admins; the
// route layer enforces the role and the staff_accounts capability.
type Service interface {
	List(ctx context.Context, shopID uuid.UUID) ([]UserDTO, error)
	Create(ctx context.Context, shopID uuid.UUID, input CreateStaffInput) (*UserDTO, error)
	Update(ctx context.Context, shopID, userID uuid.UUID, input UpdateStaffInput) (*UserDTO, error)
	Delete(ctx context.Context, shopID, actorID, userID uuid.UUID) error
}

type service struct {
	repo        *Repository
	passwordCfg config.PasswordConfig
}

func NewService(repo *Repository, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg}, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID) ([]UserDTO, error) {
	rows, err := s.repo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, shopID uuid.UUID, input CreateStaffInput) (*UserDTO, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	role := input.Role
	if role == "" {
		role = enums.ShopRoleCashier
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	phone := normalizeOptional(input.Phone)
	if err := s.ensureUnique(ctx, username, phone, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user, err := s.repo.Create(ctx, CreateUserDTO{
		Username:     username,
		Email:        normalizeOptional(input.Email),
		Phone:        phone,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
		Role:         role,
		ShopID:       &shopID,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username or phone already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return FromModel(user), nil
}

func (s *service) Update(ctx context.Context, shopID, userID uuid.UUID, input UpdateStaffInput) (*UserDTO, error) {
	user, err := s.repo.FindInShop(ctx, shopID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
		}
		user.Username = username
	}
	if input.Phone != nil {
		user.Phone = normalizeOptional(input.Phone)
	}
	if input.Email != nil {
		user.Email = normalizeOptional(input.Email)
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.Password != nil && *input.Password != "" {
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		user.PasswordHash = hash
	}

	if err := s.ensureUnique(ctx, user.Username, user.Phone, user.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username or phone already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
	}
	return FromModel(user), nil
}

func (s *service) Delete(ctx context.Context, shopID, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "you cannot delete your own account")
	}
	deleted, err := s.repo.Delete(ctx, shopID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (s *service) ensureUnique(ctx context.Context, username string, phone *string, exclude uuid.UUID) error {
	taken, err := s.repo.UsernameTaken(ctx, username, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "username already exists").
			WithDetails(map[string]any{"field": "username"})
	}
	if phone == nil {
		return nil
	}
	taken, err = s.repo.PhoneTaken(ctx, *phone, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check phone")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "phone number already exists").
			WithDetails(map[string]any{"field": "phone"})
	}
	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
