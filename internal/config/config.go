// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis connection URL; required when SESSION_STORE=redis.
	RedisURL string `mapstructure:"REDIS_URL"`
	// SessionStore selects the session state backend: "postgres" or "redis".
	SessionStore string `mapstructure:"SESSION_STORE"`

	// JWTAccessPrivateKey is the PEM-encoded access-token signing key (RSA or ECDSA) or a path to it.
	JWTAccessPrivateKey string `mapstructure:"JWT_ACCESS_PRIVATE_KEY"`
	// JWTAccessPublicKey is the matching PEM-encoded public key or a path to it.
	JWTAccessPublicKey string `mapstructure:"JWT_ACCESS_PUBLIC_KEY"`
	// JWTRefreshPrivateKey is the PEM-encoded refresh-token signing key or a path to it.
	JWTRefreshPrivateKey string `mapstructure:"JWT_REFRESH_PRIVATE_KEY"`
	// JWTRefreshPublicKey is the matching PEM-encoded public key or a path to it.
	JWTRefreshPublicKey string `mapstructure:"JWT_REFRESH_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "platform-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "platform-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "2h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// GoogleOAuthClientID enables Google federated login when set.
	GoogleOAuthClientID string `mapstructure:"GOOGLE_OAUTH_CLIENT_ID"`

	// ResendAPIKey is the Resend API key for invitation email delivery. Empty disables email.
	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	// EmailFromAddress is the sender address for outgoing email.
	EmailFromAddress string `mapstructure:"EMAIL_FROM_ADDRESS"`
	// EmailFromName is the sender display name for outgoing email.
	EmailFromName string `mapstructure:"EMAIL_FROM_NAME"`
	// InviteAcceptURL is the base URL invitation links point at.
	InviteAcceptURL string `mapstructure:"INVITE_ACCEPT_URL"`
	// InviteTTL is how long invitations stay valid (e.g. "168h").
	InviteTTL string `mapstructure:"INVITE_TTL"`

	// QuotaServiceURL is the quota microservice base URL. Empty disables quota checks (allow all).
	QuotaServiceURL string `mapstructure:"QUOTA_SERVICE_URL"`
	// PluginServiceURL is the upstream plugin service proxied under /api/v1/plugins.
	PluginServiceURL string `mapstructure:"PLUGIN_SERVICE_URL"`
	// PipelineServiceURL is the upstream pipeline service proxied under /api/v1/pipelines.
	PipelineServiceURL string `mapstructure:"PIPELINE_SERVICE_URL"`

	// SecurityKafkaBrokers is a comma-separated list of Kafka broker addresses for security events (e.g. "localhost:9092"). Empty disables the producer.
	SecurityKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityKafkaTopic is the Kafka topic for security events.
	SecurityKafkaTopic string `mapstructure:"SECURITY_KAFKA_TOPIC"`
	// SecurityKafkaGroupID is the consumer group used by the security event worker.
	SecurityKafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP collector endpoint for traces/metrics/logs. Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_STORE", "postgres")
	v.SetDefault("JWT_ISSUER", "platform-auth")
	v.SetDefault("JWT_AUDIENCE", "platform-api")
	v.SetDefault("JWT_ACCESS_TTL", "2h")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("GOOGLE_OAUTH_CLIENT_ID", "")
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("EMAIL_FROM_ADDRESS", "")
	v.SetDefault("EMAIL_FROM_NAME", "Platform")
	v.SetDefault("INVITE_ACCEPT_URL", "")
	v.SetDefault("INVITE_TTL", "168h") // 7d
	v.SetDefault("QUOTA_SERVICE_URL", "")
	v.SetDefault("PLUGIN_SERVICE_URL", "")
	v.SetDefault("PIPELINE_SERVICE_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_KAFKA_TOPIC", "platform-security-events")
	v.SetDefault("KAFKA_GROUP_ID", "platform-security-worker")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.SessionStore {
	case "postgres", "redis":
	default:
		return nil, errors.New("config: SESSION_STORE must be postgres or redis")
	}
	if cfg.SessionStore == "redis" && cfg.RedisURL == "" {
		return nil, errors.New("config: REDIS_URL must be set when SESSION_STORE=redis")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 2h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 2 * time.Hour
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// InviteLifetime parses InviteTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) InviteLifetime() time.Duration {
	d, err := time.ParseDuration(c.InviteTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// SecurityKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the security event producer is enabled (non-empty list).
func (c *Config) SecurityKafkaBrokersList() []string {
	if c == nil || c.SecurityKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.SecurityKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
