// Package config loads the YAML configuration shared by the dora binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Cache    CacheConfig    `yaml:"cache"`
	GitHub   GitHubConfig   `yaml:"github"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

type SnapshotConfig struct {
	// Location is a file path, an http(s) URL or a gs://bucket/object URI
	Location string `yaml:"location" validate:"required"`
	// Watch reloads a local snapshot file when it changes
	Watch bool `yaml:"watch"`
}

type FeedsConfig struct {
	// Locations maps a period in days to the feed for it
	Locations map[int]string `yaml:"locations" validate:"dive,keys,oneof=7 30,endkeys"`
	CacheTTL  time.Duration  `yaml:"cache_ttl" validate:"gte=0"`
}

type CacheConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file badger"`
	Dir     string `yaml:"dir"`
}

type GitHubConfig struct {
	Token             string  `yaml:"token"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Location: "dora.json",
		},
		Feeds: FeedsConfig{
			Locations: map[int]string{
				7:  "repo_summary_7d.csv",
				30: "repo_summary_30d.csv",
			},
			CacheTTL: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Backend: "file",
		},
		GitHub: GitHubConfig{
			RequestsPerSecond: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("GITHUB_TOKEN"); ok {
		cfg.GitHub.Token = v
	}
	if v, ok := lookup("DORA_SNAPSHOT"); ok && v != "" {
		cfg.Snapshot.Location = v
	}
	if v, ok := lookup("DORA_FEED_7D"); ok && v != "" {
		cfg.setFeed(7, v)
	}
	if v, ok := lookup("DORA_FEED_30D"); ok && v != "" {
		cfg.setFeed(30, v)
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

func (c *Config) setFeed(period int, location string) {
	if c.Feeds.Locations == nil {
		c.Feeds.Locations = make(map[int]string)
	}
	c.Feeds.Locations[period] = location
}

var validate = validator.New()

// Validate checks the configuration against its field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
