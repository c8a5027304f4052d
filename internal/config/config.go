// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Fetch() FetchConfig
	Simulate() SimulateConfig

	// Fetch setters (driven by CLI flags)
	SetFetchInsecureTLS(bool)
	SetFetchUserAgent(string)

	// Simulate setters (driven by CLI flags)
	SetSimulateIgnore([]string)
	SetSimulateReparse([]string)
}

// Config holds the entire application configuration. Private fields enforce
// access through the Interface getters.
type Config struct {
	logger   LoggerConfig
	fetch    FetchConfig
	simulate SimulateConfig
}

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Fetch() FetchConfig       { return c.fetch }
func (c *Config) Simulate() SimulateConfig { return c.simulate }

func (c *Config) SetFetchInsecureTLS(b bool)    { c.fetch.InsecureTLS = b }
func (c *Config) SetFetchUserAgent(ua string)   { c.fetch.UserAgent = ua }
func (c *Config) SetSimulateIgnore(p []string)  { c.simulate.Ignore = p }
func (c *Config) SetSimulateReparse(p []string) { c.simulate.Reparse = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// FetchConfig tunes the stylesheet HTTP client.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	InsecureTLS   bool          `mapstructure:"insecure_tls" yaml:"insecure_tls"`
	MaxBodySize   int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// SimulateConfig tunes the breakpoint simulation engine.
type SimulateConfig struct {
	// Ignore lists URL substrings whose stylesheets are never simulated.
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// Reparse lists URL substrings whose stylesheets are refetched on every
	// update.
	Reparse []string `mapstructure:"reparse" yaml:"reparse"`
	// EmBasePx overrides the em-to-pixel factor; 0 derives it from the
	// document's root font size.
	EmBasePx float64 `mapstructure:"em_base_px" yaml:"em_base_px"`
	// DisposalDelay is how long superseded synthetic styles linger before
	// being removed.
	DisposalDelay time.Duration `mapstructure:"disposal_delay" yaml:"disposal_delay"`
	// Widths is the default width sweep for the CLI when no --width is given.
	Widths []int `mapstructure:"widths" yaml:"widths"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "mqsim")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("fetch.timeout", 60*time.Second)
	v.SetDefault("fetch.max_body_size", int64(8<<20))
	v.SetDefault("fetch.user_agent", "mqsim/1.0")

	v.SetDefault("simulate.disposal_delay", 50*time.Millisecond)
	v.SetDefault("simulate.widths", []int{320, 768, 1024, 1280})
}

// Load reads configuration from the given file (or mqsim.yaml in the working
// and home directories when empty), applies environment overrides with the
// MQSIM_ prefix, and unmarshals into a Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName("mqsim")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MQSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}

	var raw struct {
		Logger   LoggerConfig   `mapstructure:"logger"`
		Fetch    FetchConfig    `mapstructure:"fetch"`
		Simulate SimulateConfig `mapstructure:"simulate"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &Config{logger: raw.Logger, fetch: raw.Fetch, simulate: raw.Simulate}, nil
}
