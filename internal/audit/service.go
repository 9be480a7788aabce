package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry describes one recorded action.
type Entry struct {
	ShopID      uuid.UUID
	ActorID     *uuid.UUID
	Action      enums.ActionKind
	ObjectType  string
	ObjectID    string
	Description string
}

// Service records and lists audit entries.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.ActionLog, error)
	List(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.ActionLog, string, error)
}

type service struct {
	repo Repository
}

// NewService wires the audit service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

// Record writes entry through tx so it commits or rolls back together with
// the action it describes. A nil tx writes directly.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.ActionLog, error) {
	if entry.ShopID == uuid.Nil {
		return nil, fmt.Errorf("shop id is required")
	}
	if !entry.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", entry.Action)
	}
	description := strings.TrimSpace(entry.Description)
	if description == "" {
		return nil, fmt.Errorf("audit description is required")
	}

	log := &models.ActionLog{
		ShopID:      entry.ShopID,
		ActorID:     entry.ActorID,
		Action:      entry.Action,
		ObjectType:  entry.ObjectType,
		Description: description,
	}
	if entry.ObjectID != "" {
		objectID := entry.ObjectID
		log.ObjectID = &objectID
	}
	if err := s.repo.WithTx(tx).Create(ctx, log); err != nil {
		return nil, fmt.Errorf("record audit entry: %w", err)
	}
	return log, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.ActionLog, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, shopID, cursor, params.Limit)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list audit entries")
	}
	page, next := pagination.NextCursor(rows, params.Limit, func(a models.ActionLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	return page, next, nil
}
