package controllers

import (
	"net/http"

	"github.com/angelmondragon/shopdesk-backend/api/responses"
	"github.com/angelmondragon/shopdesk-backend/internal/users"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

func UsersList(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) ([]users.UserDTO, error) {
		return svc.List(r.Context(), sc.ShopID)
	})
}

// UsersCreate opens a staff account bound to the active shop.
func UsersCreate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return scopedJSON(logg, http.StatusCreated, func(r *http.Request, sc scope, body users.CreateStaffInput) (*users.UserDTO, error) {
		return svc.Create(r.Context(), sc.ShopID, body)
	})
}

func UsersUpdate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return scopedJSON(logg, http.StatusOK, func(r *http.Request, sc scope, body users.UpdateStaffInput) (*users.UserDTO, error) {
		userID, err := pathUUID(r, "userId")
		if err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), sc.ShopID, userID, body)
	})
}

func UsersDelete(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deleteStaff(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteStaff(r *http.Request, svc users.Service) error {
	sc, err := shopScope(r)
	if err != nil {
		return err
	}
	userID, err := pathUUID(r, "userId")
	if err != nil {
		return err
	}
	return svc.Delete(r.Context(), sc.ShopID, sc.UserID, userID)
}
