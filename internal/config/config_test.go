package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("test-signing-key"))

	tcases := []struct {
		name         string
		serverAddr   string
		databaseDSN  string
		base64Secret string
		expectErr    bool
	}{
		{
			name:         "valid config",
			serverAddr:   "localhost:8000",
			databaseDSN:  "host=localhost user=postgres",
			base64Secret: secret,
		},
		{
			name:         "missing server address",
			databaseDSN:  "host=localhost user=postgres",
			base64Secret: secret,
			expectErr:    true,
		},
		{
			name:         "missing database dsn",
			serverAddr:   "localhost:8000",
			base64Secret: secret,
			expectErr:    true,
		},
		{
			name:        "missing signing secret",
			serverAddr:  "localhost:8000",
			databaseDSN: "host=localhost user=postgres",
			expectErr:   true,
		},
		{
			name:         "invalid base64 secret",
			serverAddr:   "localhost:8000",
			databaseDSN:  "host=localhost user=postgres",
			base64Secret: "not-base64!",
			expectErr:    true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.serverAddr, tc.databaseDSN, tc.base64Secret, []string{"http://localhost:3000"})
			if tc.expectErr {
				assert.Error(t, err, "expected config validation to fail")
				assert.Nil(t, cfg, "expected nil config on error")
				return
			}

			assert.NoError(t, err, "expected valid config")
			assert.Equal(t, tc.serverAddr, cfg.ServerAddr, "expected server address to be set")
			assert.Equal(t, tc.databaseDSN, cfg.DatabaseDSN, "expected database DSN to be set")
			assert.Equal(t, []byte("test-signing-key"), cfg.SigningKey, "expected decoded signing key")
			assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins, "expected allowed origins to be set")
			assert.Equal(t, defaultReadTimeout, cfg.ReadTimeout, "expected default read timeout")
			assert.Equal(t, defaultWriteTimeout, cfg.WriteTimeout, "expected default write timeout")
		})
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Run("returns environment value", func(t *testing.T) {
		t.Setenv("CONVOCHAT_TEST_KEY", "from-env")
		assert.Equal(t, "from-env", EnvOrDefault("CONVOCHAT_TEST_KEY", "fallback"), "expected environment value")
	})

	t.Run("falls back when unset", func(t *testing.T) {
		assert.Equal(t, "fallback", EnvOrDefault("CONVOCHAT_UNSET_KEY", "fallback"), "expected fallback value")
	})

	t.Run("falls back when empty", func(t *testing.T) {
		t.Setenv("CONVOCHAT_TEST_KEY", "")
		assert.Equal(t, "fallback", EnvOrDefault("CONVOCHAT_TEST_KEY", "fallback"), "expected fallback for empty value")
	})
}
