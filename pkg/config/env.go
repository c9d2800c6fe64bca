package config

// EnvPrefix is empty because every field carries its fully-qualified variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "FARMCONNECT_APP_ENV"
	EnvPort                   = "FARMCONNECT_APP_PORT"
	EnvDBDSN                  = "FARMCONNECT_DB_DSN"
	EnvDBHost                 = "FARMCONNECT_DB_HOST"
	EnvDBUser                 = "FARMCONNECT_DB_USER"
	EnvDBName                 = "FARMCONNECT_DB_NAME"
	EnvDBPassword             = "FARMCONNECT_DB_PASSWORD"
	EnvRedisURL               = "FARMCONNECT_REDIS_URL"
	EnvJWTSecret              = "FARMCONNECT_JWT_SECRET"
	EnvJWTIssuer              = "FARMCONNECT_JWT_ISSUER"
	EnvJWTExpMins             = "FARMCONNECT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FARMCONNECT_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "FARMCONNECT_USE_SQLITE"
	EnvWebhookEnabled         = "FARMCONNECT_WEBHOOK_ENABLED"
	EnvWebhookURL             = "FARMCONNECT_WEBHOOK_URL"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
