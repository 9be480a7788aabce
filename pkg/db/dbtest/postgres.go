package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/angelmondragon/shopdesk-backend/pkg/migrate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresDSNEnv names the DSN used by tests that need real row locks.
const PostgresDSNEnv = "SHOPDESK_TEST_DB_DSN"

// OpenPostgres connects to the database named by SHOPDESK_TEST_DB_DSN and
// applies the embedded migrations. The test is skipped when the variable is
// unset.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("postgres handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.UpEmbedded(context.Background(), sqlDB); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return conn
}
