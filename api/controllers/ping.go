package controllers

import (
	"net/http"

	"github.com/angelmondragon/shopdesk-backend/api/middleware"
	"github.com/angelmondragon/shopdesk-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// PrivatePing echoes the caller's shop and plan so clients can verify a token.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if shop := middleware.ShopIDFromContext(r.Context()); shop != "" {
			payload["shop_id"] = shop
		}
		if tier, ok := middleware.PlanTierFromContext(r.Context()); ok {
			payload["plan"] = string(tier)
		}
		responses.WriteSuccess(w, payload)
	}
}
