package auth

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SwitchShopInput captures the data required to switch the active shop.
type SwitchShopInput struct {
	UserID        uuid.UUID
	ShopID        uuid.UUID
	AccessTokenID string
}

// SwitchShop moves an owner to another shop they own. The current session is
// revoked and a new token pair carrying the new shop is issued.
func (s *service) SwitchShop(ctx context.Context, input SwitchShopInput) (*LoginResponse, error) {
	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user.Role != enums.ShopRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only shop owners can switch shops")
	}

	shop, err := s.shops.FindOwned(ctx, user.ID, input.ShopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop not owned by user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup shop")
	}

	if err := s.users.AssignShop(ctx, user.ID, shop.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "switch shop")
	}
	user.ShopID = &shop.ID

	if input.AccessTokenID != "" {
		if err := s.session.Revoke(ctx, input.AccessTokenID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
		}
	}

	resp, err := s.issue(ctx, user, shop, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithShopID(s.logg.WithUserID(ctx, user.ID.String()), shop.ID.String()), "active shop switched")
	return resp, nil
}
