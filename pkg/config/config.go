package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	RateLimit    RateLimitConfig
	Catalog      CatalogConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.ensureEventing(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRADELINK_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADELINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADELINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADELINK_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is where background workers serve /metrics; empty disables it.
	MetricsAddr  string `envconfig:"TRADELINK_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// CORSConfig lists browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TRADELINK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8081"`
	MaxAge         int      `envconfig:"TRADELINK_CORS_MAX_AGE" default:"300"`
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADELINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADELINK_DB_DSN"`
	Driver string `envconfig:"TRADELINK_DB_DRIVER" default:"postgres"`

	// SQLitePath is only read when the UseSQLite flag is on.
	SQLitePath string `envconfig:"TRADELINK_DB_SQLITE_PATH" default:"tradelink.db"`

	LegacyHost     string `envconfig:"TRADELINK_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADELINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADELINK_DB_USER"`
	LegacyPassword string `envconfig:"TRADELINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADELINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADELINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADELINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADELINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADELINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADELINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADELINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADELINK_REDIS_ADDR"`
	Password     string        `envconfig:"TRADELINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADELINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADELINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADELINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADELINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADELINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADELINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRADELINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRADELINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRADELINK_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTTL returns the access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRADELINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRADELINK_AUTO_MIGRATE" default:"false"`
	// InlineEvents dispatches domain events in-process instead of through the outbox.
	InlineEvents bool `envconfig:"TRADELINK_INLINE_EVENTS" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TRADELINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ActionLockTTL        time.Duration `envconfig:"TRADELINK_EVENTING_ACTION_LOCK_TTL" default:"15m"`
}

type RateLimitConfig struct {
	Window        time.Duration `envconfig:"TRADELINK_RATE_LIMIT_WINDOW" default:"1m"`
	MutationLimit int           `envconfig:"TRADELINK_RATE_LIMIT_MUTATIONS" default:"60"`
}

type CatalogConfig struct {
	Timeout time.Duration `envconfig:"TRADELINK_CATALOG_TIMEOUT" default:"3s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRADELINK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TRADELINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRADELINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"TRADELINK_PUBSUB_DOMAIN_TOPIC" default:"tl-domain-events"`
	DomainSubscription string `envconfig:"TRADELINK_PUBSUB_DOMAIN_SUBSCRIPTION"`
	DLQTopic           string `envconfig:"TRADELINK_PUBSUB_DLQ_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"TRADELINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"TRADELINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"TRADELINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"TRADELINK_OUTBOX_RETENTION" default:"168h"`
	RetentionEvery time.Duration `envconfig:"TRADELINK_OUTBOX_RETENTION_EVERY" default:"1h"`
}

// PollInterval returns the configured outbox poll interval.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

func (c *Config) ensureEventing() error {
	if c.FeatureFlags.InlineEvents {
		return nil
	}
	if c.GCP.ProjectID == "" {
		return fmt.Errorf("%s is required unless %s is set", EnvGCPProjectID, EnvInlineEvents)
	}
	if strings.EqualFold(c.Service.Kind, ServiceKindWorker) && c.PubSub.DomainSubscription == "" {
		return fmt.Errorf("%s is required for the worker", EnvPubSubDomainSub)
	}
	return nil
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
