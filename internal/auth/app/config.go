package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Issuer     string `toml:"issuer"`      // issuer claim for session and step-up tokens (default: acctly)
	TOTPIssuer string `toml:"totp_issuer"` // issuer label shown in authenticator apps (default: Acctly)

	DatabaseFile     string        `toml:"database_file"`         // path to SQLite database file (default: ./auth.db)
	PepperFile       string        `toml:"pepper_file"`           // password pepper, generated if missing (default: ./pepper)
	StepUpKeyFile    string        `toml:"stepup_key_file"`       // HS256 key for enrollment and login tokens (default: ./stepup.key)
	EmailCodeKeyFile string        `toml:"email_code_key_file"`   // HMAC key for stored email codes (default: ./email_code.key)
	SessionKeyFile   string        `toml:"session_key_file"`      // Ed25519 PEM for session tokens (default: ./session.pem)
	SessionTTL       time.Duration `toml:"session_ttl"`           // (default: 24h)
	EmailCodeTTL     time.Duration `toml:"email_code_ttl"`        // (default: 10m)
	VerificationTTL  time.Duration `toml:"verification_code_ttl"` // (default: 5m)
	MaxCodeAttempts  int           `toml:"max_code_attempts"`     // failures per window before lockout (default: 5)
	CredentialLimit  int           `toml:"credential_rate_limit"` // password and code submissions per minute per client (default: 5)
	CORSOrigins      []string      `toml:"cors_origins"`          // allowed browser origins, empty disables CORS

	RedisAddr string `toml:"redis_addr"` // optional: enables attempt counting and token revocation

	SMTP SMTPConfig `toml:"smtp"`

	Env                  string        `toml:"env"`                   // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        `toml:"log_level"`             // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        `toml:"log_format"`            // Log format (json, text) (default: json)
	Port                 int           `toml:"port"`                  // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration `toml:"shutdown_grace_period"` // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration `toml:"housekeeping_interval"` // Housekeeping interval (default: 1h)
}

// SMTPConfig is the outgoing mail relay. An empty Host logs codes instead of
// sending them.
type SMTPConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	From        string `toml:"from"`
	ImplicitTLS bool   `toml:"implicit_tls"`
}

func defaultConfig() Config {
	return Config{
		Issuer:               "acctly",
		TOTPIssuer:           "Acctly",
		DatabaseFile:         "auth.db",
		PepperFile:           "pepper",
		StepUpKeyFile:        "stepup.key",
		EmailCodeKeyFile:     "email_code.key",
		SessionKeyFile:       "session.pem",
		SessionTTL:           24 * time.Hour,
		EmailCodeTTL:         10 * time.Minute,
		VerificationTTL:      5 * time.Minute,
		MaxCodeAttempts:      5,
		CredentialLimit:      5,
		SMTP:                 SMTPConfig{Port: 587},
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: 1 * time.Hour,
	}
}

// LoadConfig builds the configuration from defaults, then the TOML file named
// by AUTH_CONFIG_FILE if set, then environment variables.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("AUTH_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	cfg.TOTPIssuer = getEnvOrDefault("AUTH_TOTP_ISSUER", cfg.TOTPIssuer)
	cfg.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", cfg.PepperFile)
	cfg.StepUpKeyFile = getEnvOrDefault("AUTH_STEPUP_KEY_FILE", cfg.StepUpKeyFile)
	cfg.EmailCodeKeyFile = getEnvOrDefault("AUTH_EMAIL_CODE_KEY_FILE", cfg.EmailCodeKeyFile)
	cfg.SessionKeyFile = getEnvOrDefault("AUTH_SESSION_KEY_FILE", cfg.SessionKeyFile)
	cfg.SessionTTL = getEnvDurationOrDefault("AUTH_SESSION_TTL", cfg.SessionTTL)
	cfg.EmailCodeTTL = getEnvDurationOrDefault("AUTH_EMAIL_CODE_TTL", cfg.EmailCodeTTL)
	cfg.VerificationTTL = getEnvDurationOrDefault("AUTH_VERIFICATION_CODE_TTL", cfg.VerificationTTL)
	cfg.MaxCodeAttempts = getEnvIntOrDefault("AUTH_MAX_CODE_ATTEMPTS", cfg.MaxCodeAttempts)
	cfg.CredentialLimit = getEnvIntOrDefault("AUTH_CREDENTIAL_RATE_LIMIT", cfg.CredentialLimit)
	if origins := os.Getenv("AUTH_CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)

	cfg.SMTP.Host = getEnvOrDefault("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvIntOrDefault("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnvOrDefault("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnvOrDefault("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnvOrDefault("SMTP_FROM", cfg.SMTP.From)
	cfg.SMTP.ImplicitTLS = getEnvBoolOrDefault("SMTP_IMPLICIT_TLS", cfg.SMTP.ImplicitTLS)

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)

	if cfg.SMTP.Host != "" && cfg.SMTP.From == "" {
		return Config{}, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
