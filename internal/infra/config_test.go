package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWTSecret:             "0123456789abcdef0123456789abcdef",
		RazorpayKeyID:         "rzp_live_A1b2C3d4E5f6G7",
		RazorpayKeySecret:     "sK9mQ2wE8rT4yU6i",
		RazorpayWebhookSecret: "whsec_live_9f8e7d6c5b4a",
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("default jwt secret rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "change-me-in-production"
		assert.Error(t, cfg.Validate())
	})

	t.Run("short jwt secret rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "too-short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing gateway secrets rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.RazorpayKeySecret = ""
		assert.Error(t, cfg.Validate())

		cfg = validConfig()
		cfg.RazorpayWebhookSecret = ""
		assert.Error(t, cfg.Validate())

		cfg = validConfig()
		cfg.RazorpayKeyID = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("placeholder gateway secrets rejected", func(t *testing.T) {
		for _, secret := range []string{
			"your_key_secret_here",
			"changeme",
			"xxxxxxxxxxxxxxxx",
			"example-secret",
			"PLACEHOLDER",
		} {
			cfg := validConfig()
			cfg.RazorpayKeySecret = secret
			assert.Error(t, cfg.Validate(), "secret %q should be rejected", secret)
		}
	})

	t.Run("insecure defaults allowed when opted in", func(t *testing.T) {
		cfg := &Config{AllowInsecureDefaults: true}
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigDSN(t *testing.T) {
	t.Run("database url wins", func(t *testing.T) {
		cfg := &Config{DatabaseURL: "postgres://u:p@h:5/db"}
		assert.Equal(t, "postgres://u:p@h:5/db", cfg.DSN())
	})

	t.Run("assembled from parts", func(t *testing.T) {
		cfg := &Config{PGHost: "db", PGPort: 5432, PGUser: "u", PGPassword: "p", PGDatabase: "payments"}
		assert.Equal(t, "postgres://u:p@db:5432/payments?sslmode=disable", cfg.DSN())
	})
}
