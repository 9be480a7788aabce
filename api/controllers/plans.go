package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopdesk-backend/api/responses"
	"github.com/angelmondragon/shopdesk-backend/api/validators"
	"github.com/angelmondragon/shopdesk-backend/internal/plans"
	"github.com/angelmondragon/shopdesk-backend/internal/shops"
	"github.com/angelmondragon/shopdesk-backend/internal/users"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

// PublicPlans lists the plan catalogue, cheapest first.
func PublicPlans(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// PlansSubscribe returns the contact link an owner follows to upgrade.
func PlansSubscribe(svc plans.Service, shopSvc shops.Service, userSvc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var requester plans.Requester
		if shop, err := shopSvc.Get(r.Context(), sc.ShopID); err == nil {
			requester.ShopName = shop.Name
		}
		if staff, err := userSvc.List(r.Context(), sc.ShopID); err == nil {
			for _, u := range staff {
				if u.ID == sc.UserID {
					requester.Username = u.Username
					break
				}
			}
		}

		link, err := svc.SubscribeLink(r.Context(), strings.TrimSpace(chi.URLParam(r, "code")), requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": link})
	}
}

type setPlanRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// AdminSetShopPlan moves a shop onto another tier.
func AdminSetShopPlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setPlanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shop, err := svc.SetShopPlan(r.Context(), shopID, body.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(r.Context(), map[string]any{"shop_id": shopID.String(), "plan": string(shop.Plan)}), "shop plan changed")
		responses.WriteSuccess(w, shops.FromModel(shop))
	}
}
