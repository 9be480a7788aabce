package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
)

// ledgerTriggers mirror the Postgres trigger that rejects ledger rewrites.
var ledgerTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS stock_movements_no_update BEFORE UPDATE ON stock_movements
BEGIN SELECT RAISE(ABORT, 'stock movements are append-only'); END;`,
	`CREATE TRIGGER IF NOT EXISTS stock_movements_no_delete BEFORE DELETE ON stock_movements
BEGIN SELECT RAISE(ABORT, 'stock movements are append-only'); END;`,
}

// MigrateSQLite builds the shop schema on a SQLite connection. The goose
// migrations are Postgres SQL, so SQLite gets AutoMigrate plus the ledger
// triggers. Subscription plans use an array column and are left out.
func MigrateSQLite(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&models.Shop{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.StockMovement{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Invoice{},
		&models.ActionLog{},
		&models.Expense{},
		&models.Customer{},
		&models.Loan{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	for _, stmt := range ledgerTriggers {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ledger trigger: %w", err)
		}
	}
	return nil
}
