package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the application configuration
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	DataDir         string        `env:"DATA_DIR" envDefault:"data"`
	DatabaseFile    string        `env:"DATABASE_FILE" envDefault:"invitations.db"`
	TimeZone        string        `env:"TIME_ZONE" envDefault:"UTC"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	CheckInPassSecret        string        `env:"CHECKIN_PASS_SECRET"`
	CheckInPassGrace         time.Duration `env:"CHECKIN_PASS_GRACE" envDefault:"12h"`
	CheckInRequireSignedPass bool          `env:"CHECKIN_REQUIRE_SIGNED_PASS" envDefault:"false"`

	CompletionSweepInterval time.Duration `env:"COMPLETION_SWEEP_INTERVAL" envDefault:"1m"`
	// Events are marked completed this long after their start time.
	CompletionAfter time.Duration `env:"COMPLETION_AFTER" envDefault:"12h"`

	WhatsAppEnabled bool   `env:"WHATSAPP_ENABLED" envDefault:"false"`
	WhatsAppDataDir string `env:"WHATSAPP_DATA_DIR" envDefault:"data"`
}

// LoadConfig loads configuration from an optional .env file and the environment
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.CheckInRequireSignedPass && strings.TrimSpace(c.CheckInPassSecret) == "" {
		return errors.New("CHECKIN_PASS_SECRET is required when CHECKIN_REQUIRE_SIGNED_PASS is set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"SESSION_TTL", c.SessionTTL},
		{"CHECKIN_PASS_GRACE", c.CheckInPassGrace},
		{"COMPLETION_SWEEP_INTERVAL", c.CompletionSweepInterval},
		{"COMPLETION_AFTER", c.CompletionAfter},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}
	return nil
}

// Location returns the time zone event dates are entered in
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("TIME_ZONE: %w", err)
	}
	return loc, nil
}

// DatabaseDSN returns the go-sqlite3 connection string for the main database
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("file:%s/%s", c.DataDir, c.DatabaseFile)
}
