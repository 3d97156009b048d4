package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"

	"github.com/flintfs/flint/server"
)

// defaultConfigPath is tried when no -config flag is given. A missing file
// at this path is not an error.
const defaultConfigPath = "~/.flintmnt.yml"

// Config holds the file-based configuration for flintmnt.
type Config struct {
	// HTTPListenAddr is the address the metrics and debug HTTP server
	// listens on.
	HTTPListenAddr string `yaml:"http_listen_addr"`

	// ConcurrencyLimit caps the number of requests handled at once.
	ConcurrencyLimit int `yaml:"concurrency_limit"`

	// RequestTimeout aborts requests that run longer than this. Zero means
	// no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// LogRequests enables per-request debug logging.
	LogRequests bool `yaml:"log_requests"`

	Mount MountConfig `yaml:"mount"`
}

// MountConfig holds the options passed to the kernel at mount time.
type MountConfig struct {
	FSName             string `yaml:"fsname"`
	Subtype            string `yaml:"subtype"`
	AllowOther         bool   `yaml:"allow_other"`
	AllowDev           bool   `yaml:"allow_dev"`
	AllowSUID          bool   `yaml:"allow_suid"`
	DefaultPermissions bool   `yaml:"default_permissions"`
	ReadOnly           bool   `yaml:"read_only"`
	AllowNonEmpty      bool   `yaml:"allow_non_empty"`
}

// DefaultConfig is the configuration used when no file and no flags are
// given.
var DefaultConfig = Config{
	HTTPListenAddr:   "127.0.0.1:8080",
	ConcurrencyLimit: server.DefaultOptions.ConcurrencyLimit,
	RequestTimeout:   15 * time.Second,
	Mount: MountConfig{
		FSName:  "flint",
		Subtype: "flint",
	},
}

// LoadConfig reads the config file at path, expanding a leading ~. When path
// is the default and the file doesn't exist, DefaultConfig is returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig

	expanded, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(expanded)
	if os.IsNotExist(err) && path == defaultConfigPath {
		return cfg, nil
	} else if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}
