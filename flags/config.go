// Package flags loads process-level configuration from the environment, with
// an optional .env file for local development.
package flags

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	// AndroidPackageName and AndroidServiceAccountJSON configure Play
	// developer API verification.
	AndroidPackageName        string
	AndroidServiceAccountJSON string

	// AppleBundleID scopes App Store receipt verification.
	AppleBundleID string

	// PostgresURL, when set, selects the postgres purchase store over the
	// in-memory one.
	PostgresURL string

	// PurchaseTimeout bounds how long a purchase waits for the store to
	// report completion. Zero waits indefinitely.
	PurchaseTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; a missing file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading .env")
	}

	cfg := &Config{
		AndroidPackageName:        os.Getenv("ANDROID_PACKAGE_NAME"),
		AndroidServiceAccountJSON: os.Getenv("ANDROID_SERVICE_ACCOUNT_JSON"),
		AppleBundleID:             os.Getenv("APPLE_BUNDLE_ID"),
		PostgresURL:               os.Getenv("POSTGRES_URL"),
	}

	if raw := os.Getenv("PURCHASE_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errors.Wrap(err, "parsing PURCHASE_TIMEOUT")
		}
		cfg.PurchaseTimeout = timeout
	}

	return cfg, nil
}
