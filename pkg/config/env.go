package config

const (
	EnvPrefix            = "TRADELINK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ServiceKindAPI    = "api"
	ServiceKindWorker = "worker"

	EnvAppEnv            = "TRADELINK_APP_ENV"
	EnvPort              = "TRADELINK_APP_PORT"
	EnvServiceKind       = "TRADELINK_SERVICE_KIND"
	EnvDBDSN             = "TRADELINK_DB_DSN"
	EnvDBHost            = "TRADELINK_DB_HOST"
	EnvDBUser            = "TRADELINK_DB_USER"
	EnvDBName            = "TRADELINK_DB_NAME"
	EnvDBPassword        = "TRADELINK_DB_PASSWORD"
	EnvRedisURL          = "TRADELINK_REDIS_URL"
	EnvJWTSecret         = "TRADELINK_JWT_SECRET"
	EnvJWTIssuer         = "TRADELINK_JWT_ISSUER"
	EnvJWTExpMins        = "TRADELINK_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite         = "TRADELINK_USE_SQLITE"
	EnvInlineEvents      = "TRADELINK_INLINE_EVENTS"
	EnvGCPProjectID      = "TRADELINK_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "TRADELINK_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "TRADELINK_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvOutboxRetention   = "TRADELINK_OUTBOX_RETENTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
