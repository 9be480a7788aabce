package auth

import (
	"github.com/angelmondragon/shopdesk-backend/internal/users"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/google/uuid"
)

// LoginRequest captures the credentials sent to the login endpoint. Staff
// accounts must also name their shop.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	ShopName string `json:"shop_name"`
}

// RefreshRequest carries the refresh token issued with the access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SwitchShopRequest names the owned shop to make active.
type SwitchShopRequest struct {
	ShopID uuid.UUID `json:"shop_id" validate:"required"`
}

// ShopSummary describes the active shop returned after login.
type ShopSummary struct {
	ID   uuid.UUID      `json:"id"`
	Name string         `json:"name"`
	Plan enums.PlanTier `json:"plan"`
}

// LoginResponse contains the tokens, user, and active shop produced by a
// successful login, registration, refresh or shop switch.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
	Shop         *ShopSummary   `json:"shop,omitempty"`
}
