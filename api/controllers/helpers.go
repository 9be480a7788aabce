package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopdesk-backend/api/middleware"
	"github.com/angelmondragon/shopdesk-backend/api/responses"
	"github.com/angelmondragon/shopdesk-backend/api/validators"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
)

// scope is the authenticated caller of a shop-scoped route.
type scope struct {
	ShopID uuid.UUID
	UserID uuid.UUID
}

func shopScope(r *http.Request) (scope, error) {
	ctx := r.Context()
	userID, ok := middleware.UserUUIDFromContext(ctx)
	if !ok {
		return scope{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	shopID, ok := middleware.ShopUUIDFromContext(ctx)
	if !ok {
		return scope{}, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
	}
	return scope{ShopID: shopID, UserID: userID}, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

var queryTime = validators.QueryTime

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

func bearerToken(r *http.Request) (string, error) {
	token, err := validators.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

// jsonAction decodes and validates the body as Req, runs fn and writes its
// result under status.
func jsonAction[Req, Res any](logg *logger.Logger, status int, fn func(r *http.Request, body Req) (Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := fn(r, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// scoped resolves the shop scope before running fn. Scope errors win over
// body errors so an unscoped caller never learns about payload rules.
func scoped[Res any](logg *logger.Logger, status int, fn func(r *http.Request, sc scope) (Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err == nil {
			var result Res
			if result, err = fn(r, sc); err == nil {
				responses.WriteSuccessStatus(w, status, result)
				return
			}
		}
		responses.WriteError(r.Context(), logg, w, err)
	}
}

// scopedJSON is scoped plus a validated Req body.
func scopedJSON[Req, Res any](logg *logger.Logger, status int, fn func(r *http.Request, sc scope, body Req) (Res, error)) http.HandlerFunc {
	return scoped(logg, status, func(r *http.Request, sc scope) (Res, error) {
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			var zero Res
			return zero, err
		}
		return fn(r, sc, body)
	})
}
