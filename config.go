package avanza

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds what is needed to log in. It is read from the environment and
// never written anywhere.
type Config struct {
	Username   string
	Password   string
	TOTPSecret string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
}

// LoadConfig loads the given .env files (missing ones are skipped, variables
// already set win) and reads AVANZA_* variables. With no files it tries ".env".
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		Username:   os.Getenv("AVANZA_USERNAME"),
		Password:   os.Getenv("AVANZA_PASSWORD"),
		TOTPSecret: os.Getenv("AVANZA_TOTP_SECRET"),
		BaseURL:    getEnv("AVANZA_BASE_URL", DefaultBaseURL),
		UserAgent:  getEnv("AVANZA_USER_AGENT", DefaultUserAgent),
		Timeout:    defaultTimeout,
	}
	if v := os.Getenv("AVANZA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid AVANZA_TIMEOUT %q", v)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// Validate reports which required variables are missing.
func (c *Config) Validate() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, "AVANZA_USERNAME")
	}
	if c.Password == "" {
		missing = append(missing, "AVANZA_PASSWORD")
	}
	if c.TOTPSecret == "" {
		missing = append(missing, "AVANZA_TOTP_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("please provide %s", strings.Join(missing, ", "))
	}
	return nil
}

// Credentials returns the login credentials.
func (c *Config) Credentials() Credentials {
	return Credentials{Username: c.Username, Password: c.Password}
}

// SecondFactorProvider returns a TOTP provider for the configured secret.
func (c *Config) SecondFactorProvider() SecondFactorProvider {
	return NewTOTPProvider(c.TOTPSecret)
}

// NewClientFromConfig creates a client for cfg. Later options override the
// configured values.
func NewClientFromConfig(cfg *Config, opts ...Option) *Client {
	var base []Option
	if cfg.BaseURL != "" {
		base = append(base, WithBaseURL(cfg.BaseURL))
	}
	if cfg.UserAgent != "" {
		base = append(base, WithUserAgent(cfg.UserAgent))
	}
	base = append(base, WithTimeout(cfg.Timeout))
	return NewClient(append(base, opts...)...)
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
