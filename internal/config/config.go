package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	AppName     string `mapstructure:"app_name"`
	AppVersion  string `mapstructure:"app_version"`
	Env         string `mapstructure:"env"`
	Port        string `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`

	DB       DBConfig       `mapstructure:"db"`
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
	WAHA     WAHAConfig     `mapstructure:"waha"`
	H2H      H2HConfig      `mapstructure:"h2h"`
	Session  SessionConfig  `mapstructure:"session"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	FCM      FCMConfig      `mapstructure:"fcm"`
}

type DBConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type KeycloakConfig struct {
	ServerURL string `mapstructure:"server_url"`
	Realm     string `mapstructure:"realm"`
	ClientID  string `mapstructure:"client_id"`
	Audience  string `mapstructure:"audience"`
	Algorithm string `mapstructure:"algorithm"`
	SyncUsers bool   `mapstructure:"sync_users"`
}

// JWKSURL is the realm certificate endpoint.
func (k KeycloakConfig) JWKSURL() string {
	return strings.TrimRight(k.ServerURL, "/") + "/realms/" + k.Realm + "/protocol/openid-connect/certs"
}

// WAHAConfig points at the WhatsApp HTTP API gateway.
type WAHAConfig struct {
	Host           string `mapstructure:"host"`
	APIPath        string `mapstructure:"api_path"`
	Session        string `mapstructure:"session"`
	APIKey         string `mapstructure:"api_key"`
	WebhookHMACKey string `mapstructure:"webhook_hmac_key"`

	// Outbound sends are throttled to one per SendInterval with bursts of SendBurst.
	SendInterval time.Duration `mapstructure:"send_interval"`
	SendBurst    int           `mapstructure:"send_burst"`
}

// H2HConfig points at the agent router that hosts the conversational agents.
type H2HConfig struct {
	Host            string `mapstructure:"host"`
	AgentPath       string `mapstructure:"agent_path"`
	APIKey          string `mapstructure:"api_key"`
	CallbackKeyHash string `mapstructure:"callback_key_hash"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type WebhookConfig struct {
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type FCMConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TopicPrefix     string `mapstructure:"topic_prefix"`
}

// App holds the global config instance
var App Config

// IsProduction reports whether error details must be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) error {
	// .env is a local development convenience; containers pass real env vars
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("loaded .env file")
	}

	v := viper.New()

	v.SetDefault("app_name", "sga-cs-service")
	v.SetDefault("app_version", "0.1.0")
	v.SetDefault("env", "development")
	v.SetDefault("port", "8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("keycloak.algorithm", "RS256")
	v.SetDefault("keycloak.sync_users", true)
	v.SetDefault("waha.api_path", "/api/sendText")
	v.SetDefault("waha.session", "default")
	v.SetDefault("waha.send_interval", 50*time.Millisecond)
	v.SetDefault("waha.send_burst", 5)
	v.SetDefault("h2h.agent_path", "/agent-router/v2/agents/create")
	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("webhook.dedup_ttl", 24*time.Hour)
	v.SetDefault("fcm.topic_prefix", "cs")

	if path == "" {
		path = os.Getenv("CS_CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("dev.config")
		v.SetConfigType("yaml")
	}

	// Nested keys are reachable as KEYCLOAK_REALM, WAHA_HOST, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Deploy-standard names
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("env", "APP_ENV", "ENV")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	_ = v.BindEnv("keycloak.server_url", "KEYCLOAK_SERVER_URL")
	_ = v.BindEnv("keycloak.realm", "KEYCLOAK_REALM")
	_ = v.BindEnv("keycloak.client_id", "KEYCLOAK_CLIENT_ID")
	_ = v.BindEnv("keycloak.audience", "KEYCLOAK_AUDIENCE")
	_ = v.BindEnv("keycloak.algorithm", "JWT_ALGORITHM")
	_ = v.BindEnv("keycloak.sync_users", "KEYCLOAK_SYNC_USERS")

	_ = v.BindEnv("waha.host", "WAHA_HOST")
	_ = v.BindEnv("waha.api_path", "WAHA_API_PATH")
	_ = v.BindEnv("waha.session", "WAHA_SESSION")
	_ = v.BindEnv("waha.api_key", "WAHA_API_KEY")
	_ = v.BindEnv("waha.webhook_hmac_key", "WAHA_WEBHOOK_HMAC_KEY")

	_ = v.BindEnv("h2h.host", "H2H_HOST")
	_ = v.BindEnv("h2h.agent_path", "H2H_AGENT_PATH")
	_ = v.BindEnv("h2h.api_key", "H2H_API_KEY")
	_ = v.BindEnv("h2h.callback_key_hash", "H2H_CALLBACK_KEY_HASH")

	_ = v.BindEnv("session.idle_timeout", "SESSION_IDLE_TIMEOUT")
	_ = v.BindEnv("session.sweep_interval", "SESSION_SWEEP_INTERVAL")
	_ = v.BindEnv("webhook.dedup_ttl", "WEBHOOK_DEDUP_TTL")
	_ = v.BindEnv("fcm.credentials_file", "FIREBASE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (path == "" && os.IsNotExist(err)) {
			log.Info().Msg("no config file found, using defaults and environment variables")
		} else {
			return err
		}
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	App = cfg
	return nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "database_url")
	}
	if c.Keycloak.ServerURL == "" {
		missing = append(missing, "keycloak.server_url")
	}
	if c.Keycloak.Realm == "" {
		missing = append(missing, "keycloak.realm")
	}
	if len(missing) > 0 {
		return errors.New("missing required config: " + strings.Join(missing, ", "))
	}
	return nil
}
