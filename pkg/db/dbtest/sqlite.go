// Package dbtest opens throwaway SQLite databases carrying the shop schema for
// repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns an isolated in-memory database with every model migrated.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.MigrateSQLite(conn); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// SeedShop inserts a shop on tier plus its admin account.
func SeedShop(t testing.TB, conn *gorm.DB, name string, tier enums.PlanTier) (*models.Shop, *models.User) {
	t.Helper()

	owner := &models.User{
		Username:     fmt.Sprintf("%s-admin-%s", name, uuid.NewString()[:8]),
		PasswordHash: "x",
		Role:         enums.ShopRoleAdmin,
	}
	if err := conn.Create(owner).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	shop := &models.Shop{Name: name, OwnerID: owner.ID, Plan: tier}
	if err := conn.Create(shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	if err := conn.Model(owner).Update("shop_id", shop.ID).Error; err != nil {
		t.Fatalf("attach owner: %v", err)
	}
	owner.ShopID = &shop.ID
	return shop, owner
}
