package controllers

import (
	"net/http"

	"github.com/angelmondragon/shopdesk-backend/api/middleware"
	"github.com/angelmondragon/shopdesk-backend/api/responses"
	"github.com/angelmondragon/shopdesk-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

// AuthRegister creates the owner, their first shop on the free tier, and a session.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusCreated, func(r *http.Request, body auth.RegisterRequest) (*auth.LoginResponse, error) {
		return svc.Register(r.Context(), body)
	})
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusOK, func(r *http.Request, body auth.LoginRequest) (*auth.LoginResponse, error) {
		return svc.Login(r.Context(), body)
	})
}

// AuthRefresh rotates the refresh token. The access token may be expired but
// must still carry a valid signature.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusOK, func(r *http.Request, body auth.RefreshRequest) (*auth.LoginResponse, error) {
		token, err := bearerToken(r)
		if err != nil {
			return nil, err
		}
		return svc.Refresh(r.Context(), token, body.RefreshToken)
	})
}

func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), middleware.AccessIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthSwitchShop reissues the session for another shop the caller owns.
func AuthSwitchShop(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusOK, func(r *http.Request, body auth.SwitchShopRequest) (*auth.LoginResponse, error) {
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
		}
		return svc.SwitchShop(r.Context(), auth.SwitchShopInput{
			UserID:        userID,
			ShopID:        body.ShopID,
			AccessTokenID: middleware.AccessIDFromContext(r.Context()),
		})
	})
}
