// Package config provides configuration management for pan115.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/cloudpan/pan115/internal/constants"
)

// Config holds everything needed to talk to the drive and its object store.
//
// Config file location:
//   - Unix: ~/.config/pan115/config.ini
//   - Windows: %APPDATA%\pan115\config.ini
//
// INI format:
//
//	[account]
//	cookie = UID=...; CID=...; SEID=...
//	user_id = 123456
//	user_key = 0123456789abcdef...
//
//	[upload]
//	part_size = 10485760
//
//	[proxy]
//	mode = system
type Config struct {
	// Account settings
	Cookie  string `ini:"cookie"`
	UserID  string `ini:"user_id"`
	UserKey string `ini:"user_key"`

	// API endpoints; overridable for testing against a mock backend
	WebAPIBase    string `ini:"web_api_base"`
	UploadInitURL string `ini:"upload_init_url"`

	// Upload settings
	PartSize int64 `ini:"part_size"`

	// Proxy settings
	ProxyMode     string `ini:"mode"` // "", "no-proxy", "system", "basic"
	ProxyHost     string `ini:"host"`
	ProxyPort     int    `ini:"port"`
	ProxyUser     string `ini:"user"`
	ProxyPassword string `ini:"password"`
	NoProxy       string `ini:"no_proxy"`
}

// DefaultConfig returns a config with endpoint and part-size defaults applied.
func DefaultConfig() *Config {
	return &Config{
		WebAPIBase:    constants.WebAPIBase,
		UploadInitURL: constants.UploadInitURL,
		PartSize:      constants.DefaultPartSize,
		ProxyMode:     "system",
	}
}

// Load reads the config file at path (or the default location when path is
// empty), then applies environment overrides. A missing file is not an error;
// env vars alone may carry the account settings.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		f, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := f.Section("account").MapTo(cfg); err != nil {
			return nil, fmt.Errorf("failed to read [account] section: %w", err)
		}
		if err := f.Section("upload").MapTo(cfg); err != nil {
			return nil, fmt.Errorf("failed to read [upload] section: %w", err)
		}
		if err := f.Section("proxy").MapTo(cfg); err != nil {
			return nil, fmt.Errorf("failed to read [proxy] section: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.PartSize <= 0 {
		cfg.PartSize = constants.DefaultPartSize
	}

	return cfg, nil
}

// applyEnvOverrides lets environment variables win over the config file.
// Useful in CI and for one-off runs without touching the saved config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAN115_COOKIE"); v != "" {
		cfg.Cookie = v
	}
	if v := os.Getenv("PAN115_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("PAN115_USER_KEY"); v != "" {
		cfg.UserKey = v
	}
	if v := os.Getenv("PAN115_PART_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.PartSize = n
		}
	}
}

// Validate checks that the settings required for authenticated calls are set.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Cookie) == "" {
		missing = append(missing, "cookie")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s (set it in %s or via PAN115_* env vars)",
			strings.Join(missing, ", "), DefaultPath())
	}
	return nil
}
