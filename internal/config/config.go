package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEDICATED"

// Config holds application configuration
type Config struct {
	// Logging
	Format  string `mapstructure:"format"`
	Level   string `mapstructure:"level"`
	NoColor bool   `mapstructure:"nocolor"`

	// Content locations
	DataDir      string   `mapstructure:"data_dir"`
	DataDirs     []string `mapstructure:"data_dirs"`
	Isolation    bool     `mapstructure:"isolation"`
	IsolationDir string   `mapstructure:"isolation_dir"`
	CacheDB      string   `mapstructure:"cache_db"`
	ReplayDir    string   `mapstructure:"replay_dir"`

	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Engine     EngineConfig     `mapstructure:"engine"`
}

// SupervisorConfig controls session supervision
type SupervisorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxReadyWait of 0 waits for readiness indefinitely
	MaxReadyWait time.Duration `mapstructure:"max_ready_wait"`
}

// EngineConfig controls the session host
type EngineConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "console",
		Level:   "info",
		DataDir: defaultDataDir(),
		Supervisor: SupervisorConfig{
			PollInterval: time.Second,
		},
		Engine: EngineConfig{
			ConnectTimeout: 5 * time.Minute,
		},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".dedicated")
	}
	return "."
}

// ContentDirs returns the directories the content index scans, in priority order.
// Isolation limits scanning to a single directory.
func (c *Config) ContentDirs() []string {
	if c.IsolationDir != "" {
		return []string{c.IsolationDir}
	}
	if c.Isolation {
		return []string{c.DataDir}
	}
	return append([]string{c.DataDir}, c.DataDirs...)
}

// ReplayPath is where replay artifacts are written.
func (c *Config) ReplayPath() string {
	if c.ReplayDir != "" {
		return c.ReplayDir
	}
	return filepath.Join(c.ContentDirs()[0], "demos")
}

// CachePath is the checksum cache database, empty when caching is disabled.
func (c *Config) CachePath() string {
	switch c.CacheDB {
	case "":
		return filepath.Join(c.ContentDirs()[0], "cache", "checksums.db")
	case "off", "none":
		return ""
	default:
		return c.CacheDB
	}
}

// Validate rejects settings the bootstrap cannot run with.
func (c *Config) Validate() error {
	switch c.Format {
	case "console", "json":
	default:
		return fmt.Errorf("format must be console or json, got %q", c.Format)
	}
	if c.Supervisor.PollInterval <= 0 {
		return fmt.Errorf("supervisor.poll_interval must be positive, got %s", c.Supervisor.PollInterval)
	}
	if c.Supervisor.MaxReadyWait < 0 {
		return fmt.Errorf("supervisor.max_ready_wait must not be negative")
	}
	if c.Engine.ConnectTimeout < 0 {
		return fmt.Errorf("engine.connect_timeout must not be negative")
	}
	if len(c.ContentDirs()) == 0 || c.ContentDirs()[0] == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// newViper creates a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, cv := range Vars() {
		v.SetDefault(cv.Key, cv.Default)
		v.BindEnv(cv.Key, cv.Env)
	}
	return v
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("dedicated")
	v.SetConfigType("yaml")

	// Add config paths (in order of precedence, highest first)
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".dedicated"))
		v.AddConfigPath(home)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "dedicated"))
	}
	v.AddConfigPath("/etc/dedicated/")

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error occurred
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration exclusively from path (plus environment)
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the path to the config file Load would use
func ConfigFile() string {
	v := viper.New()

	v.SetConfigName("dedicated")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".dedicated"))
	}

	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}
	return ""
}
