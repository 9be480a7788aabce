package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// Invoice is the billing document issued for a sale. Number never changes
// once allocated, even when the artifact is regenerated.
type Invoice struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	SaleID        uuid.UUID           `gorm:"column:sale_id;type:uuid;not null;uniqueIndex"`
	ShopID        uuid.UUID           `gorm:"column:shop_id;type:uuid;not null;index"`
	Number        string              `gorm:"column:number;not null;uniqueIndex"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'pending'"`
	ArtifactURI   *string             `gorm:"column:artifact_uri"`
	LastError     *string             `gorm:"column:last_error"`
	IssuedAt      *time.Time          `gorm:"column:issued_at"`
	RegeneratedAt *time.Time          `gorm:"column:regenerated_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	Sale          *Sale               `gorm:"foreignKey:SaleID"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
