// Package config loads client settings from the environment (and an optional
// .env file) layered over the active remote profile in the state file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/protocol"
	"github.com/joho/godotenv"
)

const (
	DefaultURL         = "http://localhost:8000"
	DefaultAPIPrefix   = "/api/v1"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultS3Region    = "us-east-1"
)

type Config struct {
	URL         string          // STUDIO_URL (default http://localhost:8000, or the active remote)
	APIPrefix   string          // STUDIO_API_PREFIX (default "/api/v1")
	Token       string          // STUDIO_TOKEN (optional, or the active remote's token)
	Flavor      protocol.Flavor // STUDIO_FLAVOR ("studio" or "sessions", default "sessions")
	NATSURL     string          // STUDIO_NATS_URL (optional, empty = no event fan-out)
	HTTPTimeout time.Duration   // STUDIO_HTTP_TIMEOUT (default 30s)
	StateDir    string          // STUDIO_STATE_DIR (default ~/.local/state/flowstudio)
	LogLevel    slog.Level      // STUDIO_LOG_LEVEL (default info)

	// Export destinations
	S3Region   string // STUDIO_S3_REGION (default "us-east-1")
	S3Endpoint string // STUDIO_S3_ENDPOINT (custom endpoint for MinIO)

	// Remote is the name of the profile that supplied URL/Token/NATSURL, if any.
	Remote string
}

// Load reads .env from the working directory when present, then the
// environment. Explicit environment values win over the active remote
// profile, which wins over defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	c := &Config{
		URL:        os.Getenv("STUDIO_URL"),
		APIPrefix:  envOrDefault("STUDIO_API_PREFIX", DefaultAPIPrefix),
		Token:      os.Getenv("STUDIO_TOKEN"),
		NATSURL:    os.Getenv("STUDIO_NATS_URL"),
		StateDir:   os.Getenv("STUDIO_STATE_DIR"),
		S3Region:   envOrDefault("STUDIO_S3_REGION", DefaultS3Region),
		S3Endpoint: os.Getenv("STUDIO_S3_ENDPOINT"),
	}

	flavor, err := protocol.ParseFlavor(envOrDefault("STUDIO_FLAVOR", string(protocol.FlavorSessions)))
	if err != nil {
		return nil, fmt.Errorf("STUDIO_FLAVOR: %w", err)
	}
	c.Flavor = flavor

	c.HTTPTimeout = DefaultHTTPTimeout
	if s := os.Getenv("STUDIO_HTTP_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("STUDIO_HTTP_TIMEOUT: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("STUDIO_HTTP_TIMEOUT: must not be negative")
		}
		c.HTTPTimeout = d
	}

	if s := os.Getenv("STUDIO_LOG_LEVEL"); s != "" {
		if err := c.LogLevel.UnmarshalText([]byte(s)); err != nil {
			return nil, fmt.Errorf("STUDIO_LOG_LEVEL: %w", err)
		}
	}

	if c.StateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		c.StateDir = dir
	}

	if err := c.applyActiveRemote(); err != nil {
		return nil, err
	}
	if c.URL == "" {
		c.URL = DefaultURL
	}
	c.URL = strings.TrimRight(c.URL, "/")
	return c, nil
}

// Store returns the state store under StateDir.
func (c *Config) Store() *StateStore {
	return NewStateStore(StatePath(c.StateDir))
}

func (c *Config) applyActiveRemote() error {
	st, err := c.Store().Load()
	if err != nil {
		return fmt.Errorf("reading state: %w", err)
	}
	name, r, ok := st.ActiveRemote()
	if !ok {
		return nil
	}
	used := false
	if c.URL == "" && r.URL != "" {
		c.URL = r.URL
		used = true
	}
	if c.Token == "" && r.Token != "" {
		c.Token = r.Token
		used = true
	}
	if c.NATSURL == "" && r.NATSURL != "" {
		c.NATSURL = r.NATSURL
		used = true
	}
	if used {
		c.Remote = name
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
