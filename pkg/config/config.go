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
	DB           DBConfig
	Redis        RedisConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	WhatsApp     WhatsAppConfig
	Mpesa        MpesaConfig
	OpenAI       OpenAIConfig
	Bot          BotConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SASABOT_APP_ENV" required:"true"`
	Port         string `envconfig:"SASABOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SASABOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SASABOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SASABOT_DB_DSN"`
	Driver string `envconfig:"SASABOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SASABOT_DB_HOST"`
	LegacyPort     int    `envconfig:"SASABOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SASABOT_DB_USER"`
	LegacyPassword string `envconfig:"SASABOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SASABOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SASABOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SASABOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SASABOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SASABOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SASABOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SASABOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SASABOT_REDIS_ADDR"`
	Password     string        `envconfig:"SASABOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SASABOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SASABOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SASABOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SASABOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SASABOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SASABOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SASABOT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SASABOT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SASABOT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SASABOT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SASABOT_ARGON_KEY_LEN" default:"32"`
	TempLength       int `envconfig:"SASABOT_TEMP_PASSWORD_LENGTH" default:"12"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SASABOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SASABOT_AUTO_MIGRATE" default:"false"`
}

// WhatsAppConfig holds the platform-wide Graph API credentials. Businesses
// that configure their own token and phone-id override these per send.
type WhatsAppConfig struct {
	AccessToken string        `envconfig:"SASABOT_WHATSAPP_ACCESS_TOKEN"`
	PhoneID     string        `envconfig:"SASABOT_WHATSAPP_PHONE_ID"`
	VerifyToken string        `envconfig:"SASABOT_WHATSAPP_VERIFY_TOKEN" required:"true"`
	BaseURL     string        `envconfig:"SASABOT_WHATSAPP_BASE_URL" default:"https://graph.facebook.com"`
	APIVersion  string        `envconfig:"SASABOT_WHATSAPP_API_VERSION" default:"v17.0"`
	HTTPTimeout time.Duration `envconfig:"SASABOT_WHATSAPP_HTTP_TIMEOUT" default:"15s"`
}

type MpesaConfig struct {
	ConsumerKey    string        `envconfig:"SASABOT_MPESA_CONSUMER_KEY"`
	ConsumerSecret string        `envconfig:"SASABOT_MPESA_CONSUMER_SECRET"`
	ShortCode      string        `envconfig:"SASABOT_MPESA_SHORTCODE"`
	Passkey        string        `envconfig:"SASABOT_MPESA_PASSKEY"`
	CallbackURL    string        `envconfig:"SASABOT_MPESA_CALLBACK_URL"`
	BaseURL        string        `envconfig:"SASABOT_MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	HTTPTimeout    time.Duration `envconfig:"SASABOT_MPESA_HTTP_TIMEOUT" default:"30s"`
}

type OpenAIConfig struct {
	APIKey      string        `envconfig:"SASABOT_OPENAI_API_KEY"`
	Model       string        `envconfig:"SASABOT_OPENAI_MODEL" default:"gpt-4o-mini"`
	BaseURL     string        `envconfig:"SASABOT_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	MaxTokens   int           `envconfig:"SASABOT_OPENAI_MAX_TOKENS" default:"400"`
	HTTPTimeout time.Duration `envconfig:"SASABOT_OPENAI_HTTP_TIMEOUT" default:"30s"`
}

// BotConfig tunes the conversational core.
type BotConfig struct {
	ConversationLockTTL   time.Duration `envconfig:"SASABOT_CONVERSATION_LOCK_TTL" default:"10s"`
	WebhookIdempotencyTTL time.Duration `envconfig:"SASABOT_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
	DashboardURL          string        `envconfig:"SASABOT_DASHBOARD_URL" default:"https://dashboard.sasabot.co.ke/login"`
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
