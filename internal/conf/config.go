// Package conf provides configuration management for drawpad.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
)

// Settings contains all configuration options for the server and the editor client.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Storage StorageSettings      `yaml:"storage" mapstructure:"storage"`
	Server  ServerSettings       `yaml:"server" mapstructure:"server"`
	Client  ClientSettings       `yaml:"client" mapstructure:"client"`
	Logging logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Sentry  SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
}

// StorageSettings configures the sandboxed document store.
type StorageSettings struct {
	Root            string `yaml:"root" mapstructure:"root"`                       // sandbox root, every virtual path resolves beneath it
	MaxFileSize     string `yaml:"maxfilesize" mapstructure:"maxfilesize"`         // largest drawing the store will read, e.g. "64MB"; empty disables the guard
	ListConcurrency int    `yaml:"listconcurrency" mapstructure:"listconcurrency"` // parallel stat calls per listing
}

// ServerSettings configures the HTTP facade.
type ServerSettings struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            string        `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"readtimeout" mapstructure:"readtimeout"`
	WriteTimeout    time.Duration `yaml:"writetimeout" mapstructure:"writetimeout"`
	IdleTimeout     time.Duration `yaml:"idletimeout" mapstructure:"idletimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout" mapstructure:"shutdowntimeout"`
	BodyLimit       string        `yaml:"bodylimit" mapstructure:"bodylimit"`
	RateLimit       float64       `yaml:"ratelimit" mapstructure:"ratelimit"` // mutating requests per second per client, 0 disables
	Metrics         bool          `yaml:"metrics" mapstructure:"metrics"`     // expose /metrics
}

// ClientSettings configures the editor side: store client and save coordinator.
type ClientSettings struct {
	ServerURL     string        `yaml:"serverurl" mapstructure:"serverurl"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	DebounceDelay time.Duration `yaml:"debouncedelay" mapstructure:"debouncedelay"`
	SavedDisplay  time.Duration `yaml:"saveddisplay" mapstructure:"saveddisplay"`
	NotifyURLs    []string      `yaml:"notifyurls" mapstructure:"notifyurls"` // shoutrrr URLs alerted on save failures
}

// SentrySettings enables optional error telemetry.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// Address returns the listen address for the HTTP facade.
func (s *ServerSettings) Address() string {
	return s.Host + ":" + s.Port
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the
// process-wide settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("error getting default config paths: %w", err)
	}

	settings, err := load(viper.GetViper(), configPaths)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// load runs the whole pipeline against v so tests can use an isolated viper.
func load(v *viper.Viper, configPaths []string) (*Settings, error) {
	if err := initViper(v, configPaths); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper sets defaults, binds environment variables and reads config.yaml.
// A default config file is written when none exists.
func initViper(v *viper.Viper, configPaths []string) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		// Invalid environment values are reported but do not stop startup
		GetLogger().Warn("Environment configuration issues", logger.Error(err))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if len(configPaths) == 0 {
				return nil
			}
			return createDefaultConfig(v, configPaths[0])
		}
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	GetLogger().Debug("Loaded config file", logger.String("path", v.ConfigFileUsed()))
	return nil
}

// createDefaultConfig writes the default settings as YAML into dir and reads it back.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(DefaultSettings())
	if err != nil {
		return fmt.Errorf("error encoding default config: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Build()
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil { //nolint:gosec // config is not secret
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Build()
	}

	GetLogger().Info("Created default config file", logger.String("path", configPath))
	return v.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the loaded settings, or defaults when Load has not run yet.
func Setting() *Settings {
	if s := GetSettings(); s != nil {
		return s
	}
	return DefaultSettings()
}
