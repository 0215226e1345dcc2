// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/couchwatch/couchwatch/api/schemas"
)

// RunEnvironment selects between interactive debugging and headless
// production behavior. It is injected at startup and threaded through
// constructors; orchestration logic never reads ambient globals.
type RunEnvironment string

const (
	EnvDebug      RunEnvironment = "debug"
	EnvProduction RunEnvironment = "production"
)

// Config holds the entire application configuration.
type Config struct {
	Environment RunEnvironment `mapstructure:"environment" yaml:"environment"`
	Logger      LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database    DatabaseConfig `mapstructure:"database" yaml:"database"`
	Browser     BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Scrape      ScrapeConfig   `mapstructure:"scrape" yaml:"scrape"`
	Server      ServerConfig   `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the connection details for the persistence layer.
// EncryptionKey is the shared pgcrypto key for credentials at rest; it is
// bound to COUCHWATCH_DATABASE_ENCRYPTION_KEY and never written to disk.
type DatabaseConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	EncryptionKey string `mapstructure:"encryption_key" yaml:"-"`
}

// BrowserConfig holds settings for the headless browser processes.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// SlowMotion inserts a delay after each input action. Only useful when
	// watching a headful browser in the debug environment.
	SlowMotion time.Duration `mapstructure:"slow_motion" yaml:"slow_motion"`
	Args       []string      `mapstructure:"args" yaml:"args"`
}

// StabilityConfig tunes the DOM quiescence poll.
type StabilityConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	QuietPeriod time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ScrapeConfig tunes orchestration behavior shared by all platforms.
type ScrapeConfig struct {
	// Platforms enabled for batch runs, in execution order.
	Platforms []string `mapstructure:"platforms" yaml:"platforms"`
	// ProfileName is the profile tile to pick on platforms with a profiles
	// gate. Empty selects the first visible tile.
	ProfileName string `mapstructure:"profile_name" yaml:"profile_name"`
	// ScreenshotDir receives diagnostic captures from failed runs.
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	// NavigationTimeout bounds each page navigation.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// LoginSettleTimeout bounds the DOM content load wait after login;
	// platform logins can be slow, so this is generous.
	LoginSettleTimeout time.Duration   `mapstructure:"login_settle_timeout" yaml:"login_settle_timeout"`
	Stability          StabilityConfig `mapstructure:"stability" yaml:"stability"`
}

// ServerConfig holds the HTTP trigger surface settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	// APIKey is required via the x-api-key header for requests from outside
	// AllowedIPs. Bound to COUCHWATCH_SERVER_API_KEY.
	APIKey     string   `mapstructure:"api_key" yaml:"-"`
	AllowedIPs []string `mapstructure:"allowed_ips" yaml:"allowed_ips"`
	// BatchInterval is the period of the scheduled all-platform scrape.
	// Zero disables the schedule.
	BatchInterval time.Duration `mapstructure:"batch_interval" yaml:"batch_interval"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Environment --
	v.SetDefault("environment", string(EnvProduction))

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "couchwatch")
	v.SetDefault("logger.log_file", "couchwatch.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_motion", time.Duration(0))

	// -- Scrape --
	v.SetDefault("scrape.platforms", defaultPlatformNames())
	v.SetDefault("scrape.profile_name", "")
	v.SetDefault("scrape.screenshot_dir", "diagnostics")
	v.SetDefault("scrape.navigation_timeout", 30*time.Second)
	v.SetDefault("scrape.login_settle_timeout", 120*time.Second)
	v.SetDefault("scrape.stability.interval", 250*time.Millisecond)
	v.SetDefault("scrape.stability.quiet_period", time.Second)
	v.SetDefault("scrape.stability.timeout", 5*time.Second)

	// -- Server --
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.batch_interval", time.Hour)
}

func defaultPlatformNames() []string {
	names := make([]string, 0, len(schemas.AllPlatforms))
	for _, p := range schemas.AllPlatforms {
		names = append(names, p.String())
	}
	return names
}

// NewFromViper builds and validates a Config from a viper instance.
func NewFromViper(v *viper.Viper) (*Config, error) {
	// Bind sensitive values explicitly so they resolve from the environment
	// even when absent from the config file.
	_ = v.BindEnv("database.url", "COUCHWATCH_DATABASE_URL")
	_ = v.BindEnv("database.encryption_key", "COUCHWATCH_DATABASE_ENCRYPTION_KEY")
	_ = v.BindEnv("server.api_key", "COUCHWATCH_SERVER_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDebug, EnvProduction:
	default:
		return fmt.Errorf("environment must be %q or %q, got %q", EnvDebug, EnvProduction, c.Environment)
	}
	for _, name := range c.Scrape.Platforms {
		if _, err := schemas.ParsePlatform(name); err != nil {
			return fmt.Errorf("scrape.platforms: %w", err)
		}
	}
	if c.Scrape.Stability.Interval <= 0 {
		return fmt.Errorf("scrape.stability.interval must be positive")
	}
	if c.Scrape.Stability.QuietPeriod < c.Scrape.Stability.Interval {
		return fmt.Errorf("scrape.stability.quiet_period must be at least one interval")
	}
	if c.Scrape.NavigationTimeout <= 0 {
		return fmt.Errorf("scrape.navigation_timeout must be positive")
	}
	return nil
}

// EnabledPlatforms resolves the configured platform names. Validate has
// already guaranteed each parses.
func (c *Config) EnabledPlatforms() []schemas.Platform {
	out := make([]schemas.Platform, 0, len(c.Scrape.Platforms))
	for _, name := range c.Scrape.Platforms {
		p, _ := schemas.ParsePlatform(name)
		out = append(out, p)
	}
	return out
}
