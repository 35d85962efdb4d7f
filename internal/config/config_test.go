package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "s3cret")

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
		assert.False(t, cfg.WhatsAppEnabled)
		assert.Equal(t, "file:data/invitations.db", cfg.DatabaseDSN())
	})

	t.Run("dotenv file", func(t *testing.T) {
		// godotenv never overrides variables that are already present
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("TIME_ZONE", "")
		os.Unsetenv("SESSION_SECRET")
		os.Unsetenv("TIME_ZONE")
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("SESSION_SECRET=from-file\nTIME_ZONE=Asia/Jerusalem\n"), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "from-file", cfg.SessionSecret)
		loc, err := cfg.Location()
		require.NoError(t, err)
		assert.Equal(t, "Asia/Jerusalem", loc.String())
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")

		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		assert.EqualError(t, err, "SESSION_SECRET is required")
	})

	t.Run("signed pass needs secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "s3cret")
		t.Setenv("CHECKIN_REQUIRE_SIGNED_PASS", "true")
		t.Setenv("CHECKIN_PASS_SECRET", "")

		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err)
	})

	t.Run("non-positive durations", func(t *testing.T) {
		for _, name := range []string{"SHUTDOWN_TIMEOUT", "SESSION_TTL", "CHECKIN_PASS_GRACE", "COMPLETION_SWEEP_INTERVAL", "COMPLETION_AFTER"} {
			t.Run(name, func(t *testing.T) {
				t.Setenv("SESSION_SECRET", "s3cret")
				t.Setenv(name, "0s")

				_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
				assert.EqualError(t, err, name+" must be positive, got 0s")
			})
		}
	})
}
