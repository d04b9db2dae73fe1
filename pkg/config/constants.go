package config

// EnvPrefix is passed to envconfig; tags carry the full variable names so the
// prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "SASABOT_APP_ENV"
	EnvPort     = "SASABOT_APP_PORT"
	EnvDBDSN    = "SASABOT_DB_DSN"
	EnvDBHost   = "SASABOT_DB_HOST"
	EnvDBUser   = "SASABOT_DB_USER"
	EnvDBName   = "SASABOT_DB_NAME"
	EnvRedisURL = "SASABOT_REDIS_URL"

	EnvWhatsAppVerifyToken = "SASABOT_WHATSAPP_VERIFY_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
