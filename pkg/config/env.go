package config

const (
	EnvPrefix = "SHOPDESK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "SHOPDESK_APP_ENV"
	EnvPort     = "SHOPDESK_APP_PORT"
	EnvLogLevel = "SHOPDESK_LOG_LEVEL"

	EnvDBDSN  = "SHOPDESK_DB_DSN"
	EnvDBHost = "SHOPDESK_DB_HOST"
	EnvDBPort = "SHOPDESK_DB_PORT"
	EnvDBUser = "SHOPDESK_DB_USER"
	EnvDBPass = "SHOPDESK_DB_PASSWORD"
	EnvDBName = "SHOPDESK_DB_NAME"

	EnvRedisURL = "SHOPDESK_REDIS_URL"

	EnvJWTSecret                   = "SHOPDESK_JWT_SECRET"
	EnvJWTIssuer                   = "SHOPDESK_JWT_ISSUER"
	EnvJWTExpMins                  = "SHOPDESK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes      = "SHOPDESK_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID                = "SHOPDESK_GCP_PROJECT_ID"
	EnvGCSBucket                   = "SHOPDESK_GCS_BUCKET_NAME"
	EnvPubSubSalesTopic            = "SHOPDESK_PUBSUB_SALES_TOPIC"
	EnvPubSubSalesSubscription     = "SHOPDESK_PUBSUB_SALES_SUBSCRIPTION"
	EnvPubSubAnalyticsSubscription = "SHOPDESK_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvCatalogFreeProductCap       = "SHOPDESK_CATALOG_FREE_PRODUCT_CAP"
	EnvTaxRate                     = "SHOPDESK_TAX_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
