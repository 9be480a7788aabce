package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/shopdesk-backend/api/responses"
	"github.com/angelmondragon/shopdesk-backend/internal/plans"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TierLoader resolves the subscription tier of a shop.
type TierLoader interface {
	ShopTier(ctx context.Context, shopID uuid.UUID) (enums.PlanTier, error)
}

// ShopTier loads the active shop's tier once per request so capability checks
// never hit the database again.
func ShopTier(loader TierLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			shopID, ok := ShopUUIDFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing"))
				return
			}
			tier, err := loader.ShopTier(ctx, shopID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) || pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "shop unavailable"))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop tier"))
				return
			}
			ctx = WithPlanTier(ctx, tier)
			if logg != nil {
				ctx = logg.WithField(ctx, "plan_tier", string(tier))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability renders an upgrade prompt when the loaded tier does not
// grant capability.
func RequireCapability(capability plans.Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier, ok := PlanTierFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan tier not loaded"))
				return
			}
			if denial := plans.Check(tier, capability); denial != nil {
				if logg != nil {
					logCtx := logg.WithFields(r.Context(), map[string]any{
						"capability":    capability.String(),
						"required_tier": denial.RequiredTier.String(),
					})
					logg.Info(logCtx, "plan.upgrade_required")
				}
				responses.WriteUpgrade(w, denial.Prompt())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
