package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// AccessTokenPayload is what the auth service knows when it mints a token.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	ShopID      *uuid.UUID
	Role        enums.ShopRole
	IsSuperuser bool
	JTI         string
}

// AccessTokenClaims is the JWT body. The shop's plan tier is not a claim:
// it is loaded per request so an upgrade applies without a new login.
type AccessTokenClaims struct {
	UserID      uuid.UUID      `json:"user_id"`
	ShopID      *uuid.UUID     `json:"shop_id,omitempty"`
	Role        enums.ShopRole `json:"role"`
	IsSuperuser bool           `json:"is_superuser,omitempty"`
	jwt.RegisteredClaims
}

// Validate implements jwt.ClaimsValidator, so the parser runs it after the
// registered claim checks.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id missing", jwt.ErrTokenInvalidClaims)
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("%w: invalid shop role %q", jwt.ErrTokenInvalidClaims, c.Role)
	}
	if c.ShopID == nil && !c.IsSuperuser {
		return fmt.Errorf("%w: shop id is required for shop accounts", jwt.ErrTokenInvalidClaims)
	}
	return nil
}
