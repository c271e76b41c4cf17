package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the config file omits a field.
const (
	DefaultDebounceMs         = 5000
	DefaultRequestTimeoutMs   = 10000
	DefaultMaxAgeHours        = 168 // 7 days
	DefaultExpiryWarningHours = 24
)

// Config represents the flat surveyforge configuration
type Config struct {
	UserID             string `json:"user_id"`
	CompanyID          string `json:"company_id"`
	StoreURL           string `json:"store_url,omitempty"` // empty means local SQLite
	DBPath             string `json:"db_path,omitempty"`
	DebounceMs         int    `json:"debounce_ms,omitempty"`
	RequestTimeoutMs   int    `json:"request_timeout_ms,omitempty"`
	MaxAgeHours        int    `json:"max_age_hours,omitempty"`
	ExpiryWarningHours int    `json:"expiry_warning_hours,omitempty"`
}

// DefaultConfig returns a config with all tunables at their defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceMs:         DefaultDebounceMs,
		RequestTimeoutMs:   DefaultRequestTimeoutMs,
		MaxAgeHours:        DefaultMaxAgeHours,
		ExpiryWarningHours: DefaultExpiryWarningHours,
	}
}

// LoadConfig reads .surveyforge/config.json from the specified directory,
// then applies environment overrides (a .env file in dir is loaded first
// if present). A missing config file is not an error; defaults plus the
// environment are used.
func LoadConfig(dir string) (*Config, error) {
	// Best effort: a missing .env file is fine.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := DefaultConfig()

	path := filepath.Join(dir, ".surveyforge", "config.json")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnv(cfg)
	fillDefaults(cfg)
	return cfg, nil
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	cfgDir := filepath.Join(dir, ".surveyforge")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("failed to create .surveyforge dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(cfgDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SURVEYFORGE_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("SURVEYFORGE_COMPANY_ID"); v != "" {
		cfg.CompanyID = v
	}
	if v := os.Getenv("SURVEYFORGE_STORE_URL"); v != "" {
		cfg.StoreURL = v
	}
	if v := os.Getenv("SURVEYFORGE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v, ok := envInt("SURVEYFORGE_DEBOUNCE_MS"); ok {
		cfg.DebounceMs = v
	}
	if v, ok := envInt("SURVEYFORGE_REQUEST_TIMEOUT_MS"); ok {
		cfg.RequestTimeoutMs = v
	}
	if v, ok := envInt("SURVEYFORGE_MAX_AGE_HOURS"); ok {
		cfg.MaxAgeHours = v
	}
	if v, ok := envInt("SURVEYFORGE_EXPIRY_WARNING_HOURS"); ok {
		cfg.ExpiryWarningHours = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func fillDefaults(cfg *Config) {
	if cfg.DebounceMs <= 0 {
		cfg.DebounceMs = DefaultDebounceMs
	}
	if cfg.RequestTimeoutMs <= 0 {
		cfg.RequestTimeoutMs = DefaultRequestTimeoutMs
	}
	if cfg.MaxAgeHours <= 0 {
		cfg.MaxAgeHours = DefaultMaxAgeHours
	}
	if cfg.ExpiryWarningHours <= 0 {
		cfg.ExpiryWarningHours = DefaultExpiryWarningHours
	}
}

// Debounce returns the autosave debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// RequestTimeout returns the per-write store timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// MaxAge returns how long drafts are offered for recovery.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// ExpiryWarning returns the window in which an expiring draft is flagged.
func (c *Config) ExpiryWarning() time.Duration {
	return time.Duration(c.ExpiryWarningHours) * time.Hour
}
