package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
	Orders        OrdersConfig
	Outbox        OutboxConfig
	Webhook       WebhookConfig
	Automation    AutomationConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.Webhook.Enabled && strings.TrimSpace(cfg.Webhook.URL) == "" {
		return nil, fmt.Errorf("%s is required when %s is true", EnvWebhookURL, EnvWebhookEnabled)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"FARMCONNECT_APP_ENV" required:"true"`
	Port         string   `envconfig:"FARMCONNECT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FARMCONNECT_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"FARMCONNECT_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"FARMCONNECT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FARMCONNECT_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FARMCONNECT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FARMCONNECT_DB_DSN"`
	Driver string `envconfig:"FARMCONNECT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FARMCONNECT_DB_HOST"`
	Port     int    `envconfig:"FARMCONNECT_DB_PORT" default:"5432"`
	User     string `envconfig:"FARMCONNECT_DB_USER"`
	Password string `envconfig:"FARMCONNECT_DB_PASSWORD"`
	Name     string `envconfig:"FARMCONNECT_DB_NAME"`
	SSLMode  string `envconfig:"FARMCONNECT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMCONNECT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMCONNECT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMCONNECT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMCONNECT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FARMCONNECT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMCONNECT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMCONNECT_REDIS_ADDR"`
	Password     string        `envconfig:"FARMCONNECT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMCONNECT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMCONNECT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMCONNECT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMCONNECT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMCONNECT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMCONNECT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FARMCONNECT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FARMCONNECT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FARMCONNECT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FARMCONNECT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FARMCONNECT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FARMCONNECT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FARMCONNECT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FARMCONNECT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FARMCONNECT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FARMCONNECT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FARMCONNECT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FARMCONNECT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FARMCONNECT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FARMCONNECT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FARMCONNECT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FARMCONNECT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FARMCONNECT_AUTO_MIGRATE" default:"false"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"FARMCONNECT_CART_TTL" default:"72h"`
}

type OrdersConfig struct {
	PendingTTL time.Duration `envconfig:"FARMCONNECT_PENDING_ORDER_TTL" default:"72h"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FARMCONNECT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FARMCONNECT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"FARMCONNECT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"FARMCONNECT_OUTBOX_RETENTION" default:"720h"`
	DeliveredTTL   time.Duration `envconfig:"FARMCONNECT_OUTBOX_DELIVERED_TTL" default:"168h"`
}

// PollInterval returns the publisher poll cadence.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type WebhookConfig struct {
	Enabled    bool          `envconfig:"FARMCONNECT_WEBHOOK_ENABLED" default:"false"`
	URL        string        `envconfig:"FARMCONNECT_WEBHOOK_URL"`
	Timeout    time.Duration `envconfig:"FARMCONNECT_WEBHOOK_TIMEOUT" default:"5s"`
	MaxRetries int           `envconfig:"FARMCONNECT_WEBHOOK_MAX_RETRIES" default:"2"`
	Backoff    time.Duration `envconfig:"FARMCONNECT_WEBHOOK_BACKOFF" default:"500ms"`
}

type AutomationConfig struct {
	Secret string `envconfig:"FARMCONNECT_AUTOMATION_SECRET"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"FARMCONNECT_CRON_INTERVAL" default:"1h"`
	JobTimeout time.Duration `envconfig:"FARMCONNECT_CRON_JOB_TIMEOUT" default:"10m"`
	LockKey    string        `envconfig:"FARMCONNECT_CRON_LOCK_KEY" default:"fc:cron:lock"`
	LockTTL    time.Duration `envconfig:"FARMCONNECT_CRON_LOCK_TTL" default:"55m"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:farmconnect.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
