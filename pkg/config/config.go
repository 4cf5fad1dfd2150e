// Package config loads runtime settings from the environment, with a
// .env file as fallback for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the server and the synchronizer.
type Config struct {
	// Remote account settings.
	AccessKey     string        `env:"UNSPLASH_ACCESS_KEY"`
	Username      string        `env:"UNSPLASH_USERNAME"`
	RemoteTimeout time.Duration `env:"UNSPLASH_TIMEOUT" envDefault:"10s"`

	// Local store.
	DatabasePath string `env:"PORTFOLIO_DB_PATH" envDefault:"portfolio.db"`

	// HTTP server.
	Port      string `env:"API_PORT" envDefault:"80"`
	PublicURL string `env:"API_HOST"`
	JWTSecret string `env:"PORTFOLIO_JWT_SECRET"`

	// Synchronizer.
	SyncCron         string        `env:"SYNC_CRON" envDefault:"0 6 * * *"`
	CallBudget       int           `env:"SYNC_CALL_BUDGET" envDefault:"50"`
	PerPage          int           `env:"SYNC_PER_PAGE" envDefault:"30"`
	EnrichCount      int           `env:"SYNC_ENRICH_COUNT" envDefault:"2"`
	FeaturedIDs      []string      `env:"SYNC_FEATURED_IDS" envSeparator:","`
	MaxPhotos        int           `env:"SYNC_MAX_PHOTOS" envDefault:"0"`
	MaxPerCollection int           `env:"SYNC_MAX_PER_COLLECTION" envDefault:"0"`
	TestMode         bool          `env:"SYNC_TEST_MODE" envDefault:"false"`
	RetryAttempts    uint          `env:"SYNC_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay       time.Duration `env:"SYNC_RETRY_DELAY" envDefault:"500ms"`
}

// Load reads a .env file when present, then parses the environment.
// Test mode shrinks the volume caps so a run touches the remote only a
// handful of times.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.TestMode {
		cfg.ApplyTestMode()
	}
	return cfg, nil
}

// ApplyTestMode caps the sync volume for a cheap smoke run. Explicit
// caps win over the test-mode defaults.
func (c *Config) ApplyTestMode() {
	c.TestMode = true
	if c.MaxPhotos == 0 {
		c.MaxPhotos = 5
	}
	if c.MaxPerCollection == 0 {
		c.MaxPerCollection = 5
	}
}

// ValidateRemote checks the settings a sync run cannot do without.
func (c *Config) ValidateRemote() error {
	if c.AccessKey == "" {
		return fmt.Errorf("UNSPLASH_ACCESS_KEY is not set")
	}
	if c.Username == "" {
		return fmt.Errorf("UNSPLASH_USERNAME is not set")
	}
	return nil
}
