package infra

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"avatarly"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"avatarly"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"avatarly_payments"`

	// JWT (tokens are minted by the external account service; we only verify)
	JWTSecret     string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTUserExpiry string `env:"JWT_USER_EXPIRY" envDefault:"24h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Razorpay
	RazorpayKeyID         string `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `env:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET"`

	// Gateway HTTP timeout
	GatewayTimeout string `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// placeholderSubstrings are fragments of copy-pasted sample secrets. A secret
// containing any of them must never reach the order/verification paths.
var placeholderSubstrings = []string{
	"changeme",
	"change-me",
	"your_",
	"your-",
	"placeholder",
	"xxxx",
	"example",
}

func isPlaceholder(secret string) bool {
	lower := strings.ToLower(secret)
	for _, s := range placeholderSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}
	if c.RazorpayWebhookSecret == "" {
		return fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}
	for name, secret := range map[string]string{
		"RAZORPAY_KEY_ID":         c.RazorpayKeyID,
		"RAZORPAY_KEY_SECRET":     c.RazorpayKeySecret,
		"RAZORPAY_WEBHOOK_SECRET": c.RazorpayWebhookSecret,
	} {
		if isPlaceholder(secret) {
			return fmt.Errorf("%s looks like a placeholder value; set a real gateway credential", name)
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
