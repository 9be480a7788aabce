package controllers

import (
	"net/http"

	"github.com/angelmondragon/shopdesk-backend/internal/shops"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

// ShopsList returns every shop the caller owns, flagging the active one.
func ShopsList(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) ([]shops.OwnedShop, error) {
		return svc.ListOwned(r.Context(), sc.UserID, sc.ShopID)
	})
}

// ShopsCreate opens an additional shop owned by the caller.
func ShopsCreate(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return scopedJSON(logg, http.StatusCreated, func(r *http.Request, sc scope, body shops.CreateShopInput) (*shops.ShopDTO, error) {
		return svc.Create(r.Context(), sc.UserID, body)
	})
}

func ShopsGetCurrent(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*shops.ShopDTO, error) {
		return svc.Get(r.Context(), sc.ShopID)
	})
}

func ShopsUpdateCurrent(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return scopedJSON(logg, http.StatusOK, func(r *http.Request, sc scope, body shops.UpdateShopInput) (*shops.ShopDTO, error) {
		return svc.Update(r.Context(), sc.ShopID, body)
	})
}

// ShopsDashboard returns today's figures for the active shop.
func ShopsDashboard(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*shops.Dashboard, error) {
		return svc.Dashboard(r.Context(), sc.ShopID)
	})
}
