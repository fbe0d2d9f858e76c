package config

// EnvPrefix is the envconfig prefix for all application settings.
const EnvPrefix = "BAZARIO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "BAZARIO_APP_ENV"
	EnvPort       = "BAZARIO_APP_PORT"
	EnvDBDSN      = "BAZARIO_DB_DSN"
	EnvDBHost     = "BAZARIO_DB_HOST"
	EnvDBUser     = "BAZARIO_DB_USER"
	EnvDBName     = "BAZARIO_DB_NAME"
	EnvRedisURL   = "BAZARIO_REDIS_URL"
	EnvJWTSecret  = "BAZARIO_JWT_SECRET"
	EnvJWTIssuer  = "BAZARIO_JWT_ISSUER"
	EnvJWTExpMins = "BAZARIO_JWT_EXPIRATION_MINUTES"

	EnvRazorpayKeyID         = "BAZARIO_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret     = "BAZARIO_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookSecret = "BAZARIO_RAZORPAY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
