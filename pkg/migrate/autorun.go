package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

// MaybeRunDev prepares the schema on startup, but only in dev with
// SHOPDESK_AUTO_MIGRATE on. Postgres gets the embedded goose migrations;
// SQLite gets the model schema.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	if strings.EqualFold(cfg.DB.Driver, db.DriverSQLite) {
		logg.Info(ctx, "building sqlite schema (dev auto-run)")
		return db.MigrateSQLite(client.DB().WithContext(ctx))
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := New(sqlDB, Source(""), logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying migrations (dev auto-run)")
	return m.Up(ctx)
}
