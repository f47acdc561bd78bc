// Package config loads runtime settings for the unified AI connection layer.
// Priority order (highest to lowest): bound CLI flags, UNIFIEDAI_* environment
// variables, unifiedai.yaml, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"unifiedai/pkg/aitypes"
)

const (
	defaultConfigName = "unifiedai"
	defaultConfigType = "yaml"

	// EnvPrefix is prepended to every environment override (UNIFIEDAI_TIMEOUTS_READ, ...).
	EnvPrefix = "UNIFIEDAI"
)

// Config holds the resolved settings.
type Config struct {
	// CatalogPath points at a providers file; empty selects the embedded catalogue
	CatalogPath string `mapstructure:"catalog_path"`

	// SecretsPath points at the secret store; a missing file is treated as empty
	SecretsPath string `mapstructure:"secrets_path"`

	// EnvFiles are dotenv files consulted for <PROVIDER>_API_KEY after the process env
	EnvFiles []string `mapstructure:"env_files"`

	Default DefaultSelection `mapstructure:"default"`

	Timeouts TimeoutConfig `mapstructure:"timeouts"`

	Log LogConfig `mapstructure:"log"`

	// DebugTransport logs every outbound HTTP exchange at debug level
	DebugTransport bool `mapstructure:"debug_transport"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// DefaultSelection is the provider/config/API choice used when a caller gives none.
type DefaultSelection struct {
	Provider    string `mapstructure:"provider"`
	ConfigIndex int    `mapstructure:"config_index"`
	APIType     string `mapstructure:"api_type"`
}

// TimeoutConfig holds transport timeouts.
type TimeoutConfig struct {
	Connect time.Duration `mapstructure:"connect"`
	Read    time.Duration `mapstructure:"read"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// TransportTimeouts converts the timeout section into the shared type.
func (c *Config) TransportTimeouts() aitypes.Timeouts {
	return aitypes.Timeouts{Connect: c.Timeouts.Connect, Read: c.Timeouts.Read}
}

// ConfigError reports a failure reading or decoding configuration.
type ConfigError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// New returns a viper instance primed with defaults, search paths and env binding.
// Callers may bind flags onto it before passing it to Load.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/unifiedai")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog_path", "")
	v.SetDefault("secrets_path", "secrets.yaml")
	v.SetDefault("env_files", []string{".env"})

	v.SetDefault("default.provider", "OPENAI")
	v.SetDefault("default.config_index", 0)
	v.SetDefault("default.api_type", string(aitypes.APITypeOpenAI))

	v.SetDefault("timeouts.connect", aitypes.DefaultConnectTimeout)
	v.SetDefault("timeouts.read", aitypes.DefaultReadTimeout)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("debug_transport", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "unifiedai")
}

// Load reads the config file if one exists and decodes everything into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &ConfigError{Op: "read", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Op: "unmarshal", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and returns a ValidationError describing all problems.
func (c *Config) Validate() error {
	var problems []string
	if c.Timeouts.Connect <= 0 {
		problems = append(problems, "timeouts.connect must be positive")
	}
	if c.Timeouts.Read <= 0 {
		problems = append(problems, "timeouts.read must be positive")
	}
	if c.Default.ConfigIndex < 0 {
		problems = append(problems, "default.config_index must not be negative")
	}
	if strings.TrimSpace(c.Default.APIType) == "" {
		problems = append(problems, "default.api_type must not be empty")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
