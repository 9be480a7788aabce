package auth

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/shopdesk-backend/internal/shops"
	"github.com/angelmondragon/shopdesk-backend/internal/users"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegisterRequest contains the payload required for onboarding a new shop.
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=150"`
	Password string  `json:"password" validate:"required,min=6"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty"`
	ShopName string  `json:"shop_name" validate:"required,max=100"`
}

// Register creates the owner account and its shop on the free plan in one
// transaction, then logs the owner in.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	shopName := strings.TrimSpace(req.ShopName)
	if shopName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var (
		user *models.User
		shop *models.Shop
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		shopRepo := shops.NewRepository(tx)

		taken, err := userRepo.UsernameTaken(ctx, username, uuid.Nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		}

		user, err = userRepo.Create(ctx, users.CreateUserDTO{
			Username:     username,
			Email:        optional(req.Email),
			Phone:        optional(req.Phone),
			PasswordHash: passwordHash,
			Role:         enums.ShopRoleAdmin,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "username or phone already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		shop = &models.Shop{Name: shopName, OwnerID: user.ID, Plan: enums.PlanFree, Phone: optional(req.Phone)}
		if err := shopRepo.Create(ctx, shop); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shop")
		}

		if err := userRepo.AssignShop(ctx, user.ID, shop.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "associate shop with user")
		}
		user.ShopID = &shop.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithShopID(s.logg.WithUserID(ctx, user.ID.String()), shop.ID.String()), "shop registered")
	return s.issue(ctx, user, shop, time.Now().UTC())
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
