package controllers

import (
	"net/http"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

type auditPage struct {
	Entries    []models.ActionLog `json:"entries"`
	NextCursor string             `json:"next_cursor"`
}

// AuditList pages the active shop's action log, newest first.
func AuditList(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*auditPage, error) {
		page, err := pageParams(r)
		if err != nil {
			return nil, err
		}
		entries, next, err := svc.List(r.Context(), sc.ShopID, page)
		if err != nil {
			return nil, err
		}
		return &auditPage{Entries: entries, NextCursor: next}, nil
	})
}
