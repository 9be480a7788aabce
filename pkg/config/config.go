package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	APIRateLimit  APIRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Catalog       CatalogConfig
	Invoice       InvoiceConfig
	Billing       BillingConfig
	Tax           TaxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Tax.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SHOPDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SHOPDESK_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"SHOPDESK_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPDESK_DB_DSN"`
	Driver string `envconfig:"SHOPDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPDESK_DB_USER"`
	LegacyPassword string `envconfig:"SHOPDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery logs statements slower than this at warn level. Zero disables it.
	SlowQuery time.Duration `envconfig:"SHOPDESK_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPDESK_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SHOPDESK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SHOPDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SHOPDESK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SHOPDESK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPDESK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPDESK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPDESK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPDESK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPDESK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow           time.Duration `envconfig:"SHOPDESK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit    int           `envconfig:"SHOPDESK_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit          int           `envconfig:"SHOPDESK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow        time.Duration `envconfig:"SHOPDESK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterUsernameLimit int           `envconfig:"SHOPDESK_AUTH_RATE_LIMIT_REGISTER_USERNAME_LIMIT" default:"3"`
	RegisterIPLimit       int           `envconfig:"SHOPDESK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// APIRateLimitConfig drives the per-caller limiter on authenticated routes.
// Rate uses the limiter format "<limit>-<period>", e.g. "300-M".
type APIRateLimitConfig struct {
	Enabled bool   `envconfig:"SHOPDESK_API_RATE_LIMIT_ENABLED" default:"true"`
	Rate    string `envconfig:"SHOPDESK_API_RATE_LIMIT" default:"300-M"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPDESK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPDESK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SHOPDESK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHOPDESK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SHOPDESK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHOPDESK_GOOGLE_APPLICATION_CREDENTIALS"`
}

// ClientOptions picks inline JSON over the credentials file. With neither set
// the SDKs fall back to application default credentials.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	switch {
	case strings.TrimSpace(g.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(g.CredentialsJSON))}
	case strings.TrimSpace(g.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(g.ApplicationCredentials)}
	}
	return nil
}

type GCSConfig struct {
	BucketName    string `envconfig:"SHOPDESK_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"SHOPDESK_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	Endpoint      string `envconfig:"SHOPDESK_GCS_ENDPOINT"`
}

type PubSubConfig struct {
	SalesTopic        string `envconfig:"SHOPDESK_PUBSUB_SALES_TOPIC" required:"true"`
	SalesSubscription string `envconfig:"SHOPDESK_PUBSUB_SALES_SUBSCRIPTION" required:"true"`

	// AnalyticsSubscription is a second subscription on the sales topic read
	// by the analytics worker. Optional for every other service.
	AnalyticsSubscription string `envconfig:"SHOPDESK_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"SHOPDESK_BIGQUERY_DATASET"`
	SaleEventsTable string `envconfig:"SHOPDESK_BIGQUERY_SALE_EVENTS_TABLE" default:"sale_events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"SHOPDESK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"SHOPDESK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"SHOPDESK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"SHOPDESK_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"SHOPDESK_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

type CronConfig struct {
	Tick                 time.Duration `envconfig:"SHOPDESK_CRON_TICK" default:"1m"`
	LockTTL              time.Duration `envconfig:"SHOPDESK_CRON_LOCK_TTL" default:"30m"`
	OutboxRetentionEvery time.Duration `envconfig:"SHOPDESK_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
	InvoiceBackfillEvery time.Duration `envconfig:"SHOPDESK_CRON_INVOICE_BACKFILL_EVERY" default:"5m"`
}

type CatalogConfig struct {
	FreeProductCap        int `envconfig:"SHOPDESK_CATALOG_FREE_PRODUCT_CAP" default:"50"`
	DefaultAlertThreshold int `envconfig:"SHOPDESK_CATALOG_DEFAULT_ALERT_THRESHOLD" default:"5"`
}

type InvoiceConfig struct {
	NumberLength       int           `envconfig:"SHOPDESK_INVOICE_NUMBER_LENGTH" default:"8"`
	AllocationAttempts int           `envconfig:"SHOPDESK_INVOICE_ALLOCATION_ATTEMPTS" default:"5"`
	NameDisplayWidth   int           `envconfig:"SHOPDESK_INVOICE_NAME_WIDTH" default:"20"`
	CurrencyLabel      string        `envconfig:"SHOPDESK_INVOICE_CURRENCY" default:"FCFA"`
	BackfillGrace      time.Duration `envconfig:"SHOPDESK_INVOICE_BACKFILL_GRACE" default:"10m"`
	BackfillBatchSize  int           `envconfig:"SHOPDESK_INVOICE_BACKFILL_BATCH_SIZE" default:"100"`
}

type BillingConfig struct {
	ContactPhone string `envconfig:"SHOPDESK_BILLING_CONTACT_PHONE" default:"237600000000"`
}

type TaxConfig struct {
	Rate string `envconfig:"SHOPDESK_TAX_RATE" default:"0.1925"`
}

// RateDecimal parses the configured tax rate; invalid values fall back to zero.
func (t TaxConfig) RateDecimal() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(t.Rate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (t TaxConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(t.Rate))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", EnvTaxRate)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
