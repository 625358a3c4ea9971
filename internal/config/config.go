package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// devJWTSecret signs tokens when JWT_SECRET is unset in development.
const devJWTSecret = "patient-portal-development-secret-do-not-use"

// minProductionSecretLen is the shortest JWT_SECRET accepted in production.
const minProductionSecretLen = 32

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret          string   `mapstructure:"JWT_SECRET"`
	JWTIssuer          string   `mapstructure:"JWT_ISSUER"`
	JWTExpiresIn       string   `mapstructure:"JWT_EXPIRES_IN"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`
	AuthRateLimitRPS   float64  `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	AuthRateLimitBurst int      `mapstructure:"AUTH_RATE_LIMIT_BURST"`
	BodyLimit          string   `mapstructure:"BODY_LIMIT"`
	DemoLoginEnabled   bool     `mapstructure:"DEMO_LOGIN_ENABLED"`
	DemoPassword       string   `mapstructure:"DEMO_PASSWORD"`
	TLSEnabled         bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string   `mapstructure:"TLS_KEY_FILE"`
	AuditLogFile       string   `mapstructure:"AUDIT_LOG_FILE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SECRET", "JWT_ISSUER", "JWT_EXPIRES_IN", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AUTH_RATE_LIMIT_RPS", "AUTH_RATE_LIMIT_BURST",
	"BODY_LIMIT", "DEMO_LOGIN_ENABLED", "DEMO_PASSWORD",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE", "AUDIT_LOG_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "patient-portal")
	v.SetDefault("JWT_EXPIRES_IN", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 1)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 10)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("DEMO_LOGIN_ENABLED", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		log.Warn().Msg("JWT_SECRET is not set; using the built-in development secret. Do NOT use this configuration in production.")
		cfg.JWTSecret = devJWTSecret
	}

	if cfg.DemoLoginActive() {
		log.Warn().Msg("DEMO_LOGIN_ENABLED is set; the demo password is accepted for every patient account.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DemoLoginActive reports whether the shared demo password may be used to log
// in. It is never active in production.
func (c *Config) DemoLoginActive() bool {
	return c.DemoLoginEnabled && c.DemoPassword != "" && !c.IsProduction()
}

// JWTExpiry parses JWT_EXPIRES_IN. Go durations ("24h", "90m") are accepted,
// as is a whole number of days ("7d").
func (c *Config) JWTExpiry() (time.Duration, error) {
	s := strings.TrimSpace(c.JWTExpiresIn)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("JWT_EXPIRES_IN %q is not a valid duration", c.JWTExpiresIn)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("JWT_EXPIRES_IN %q is not a valid duration", c.JWTExpiresIn)
	}
	return d, nil
}

// Validate checks that the configuration is safe to run. Outside development a
// JWT_SECRET must be configured; in production it must be at least 32 bytes
// and demo login must be off.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < minProductionSecretLen {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in production, got %d", minProductionSecretLen, len(c.JWTSecret))
		}
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must not be the development secret in production")
		}
		if c.DemoLoginEnabled {
			return fmt.Errorf("DEMO_LOGIN_ENABLED must be false in production")
		}
	}

	if _, err := c.JWTExpiry(); err != nil {
		return err
	}

	if c.DBMinConns < 0 || c.DBMaxConns <= 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) are inconsistent", c.DBMinConns, c.DBMaxConns)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
