package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

// DriverSQLite selects the embedded dialector used for local runs and tests.
const DriverSQLite = "sqlite"

// Client owns the pooled GORM connection shared by every repository.
type Client struct {
	conn   *gorm.DB
	txOpts *sql.TxOptions
}

// Pinger is the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database DSN is required")
	}
	embedded := isSQLite(cfg)

	conn, err := gorm.Open(dialector(cfg, embedded), &gorm.Config{
		Logger:                 queryLogger(logg, cfg),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	tunePool(sqlDB, cfg)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	c := &Client{conn: conn}
	if !embedded {
		// Stock and loan writes depend on FOR UPDATE row locks at this level.
		c.txOpts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":     conn.Dialector.Name(),
			"max_open":   cfg.MaxOpenConns,
			"max_idle":   cfg.MaxIdleConns,
			"slow_query": cfg.SlowQuery.String(),
		}), "database connection established")
	}
	return c, nil
}

// Wrap adapts an already opened handle. Transactions use the driver default
// isolation level.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func isSQLite(cfg config.DBConfig) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Driver), DriverSQLite)
}

func dialector(cfg config.DBConfig, embedded bool) gorm.Dialector {
	if embedded {
		return sqlite.Open(cfg.DSN)
	}
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
}

func tunePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// queryWriter forwards GORM's slow query and error lines to the service logger.
type queryWriter struct {
	logg *logger.Logger
}

func (w queryWriter) Printf(format string, args ...any) {
	w.logg.Warn(context.Background(), "db.query: "+strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " "))
}

func queryLogger(logg *logger.Logger, cfg config.DBConfig) gormlogger.Interface {
	if logg == nil || cfg.SlowQuery <= 0 {
		return gormlogger.Discard
	}
	return gormlogger.New(queryWriter{logg: logg}, gormlogger.Config{
		SlowThreshold:             cfg.SlowQuery,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one transaction. A returned error or a panic rolls it
// back; the panic is re-raised after rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if c.txOpts != nil {
		return c.conn.WithContext(ctx).Transaction(fn, c.txOpts)
	}
	return c.conn.WithContext(ctx).Transaction(fn)
}
