package middleware

import (
	"context"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxShopID    contextKey = "shop_id"
	ctxSuperuser contextKey = "is_superuser"
	ctxAccessID  contextKey = "access_id"
	ctxPlanTier  contextKey = "plan_tier"
)

func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

func ShopIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxShopID)
}

// AccessIDFromContext returns the jti of the access token, which keys the
// refresh session.
func AccessIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxAccessID)
}

func IsSuperuserFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(ctxSuperuser).(bool)
	return v
}

// PlanTierFromContext returns the tier loaded by ShopTier.
func PlanTierFromContext(ctx context.Context) (enums.PlanTier, bool) {
	if ctx == nil {
		return "", false
	}
	tier, ok := ctx.Value(ctxPlanTier).(enums.PlanTier)
	return tier, ok
}

// UserUUIDFromContext parses the authenticated user id.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return uuidValue(ctx, ctxUserID)
}

// ShopUUIDFromContext parses the active shop id.
func ShopUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return uuidValue(ctx, ctxShopID)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

// WithShopID injects the active shop for downstream handlers.
func WithShopID(ctx context.Context, shopID string) context.Context {
	return withValue(ctx, ctxShopID, shopID)
}

func WithRole(ctx context.Context, role enums.ShopRole) context.Context {
	return withValue(ctx, ctxRole, string(role))
}

func WithPlanTier(ctx context.Context, tier enums.PlanTier) context.Context {
	return withValue(ctx, ctxPlanTier, tier)
}

func WithSuperuser(ctx context.Context, superuser bool) context.Context {
	return withValue(ctx, ctxSuperuser, superuser)
}

func withValue(ctx context.Context, key contextKey, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func uuidValue(ctx context.Context, key contextKey) (uuid.UUID, bool) {
	raw := stringValue(ctx, key)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
