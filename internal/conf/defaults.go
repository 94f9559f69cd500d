// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/drawpad/internal/logger"
)

const (
	DefaultStorageRoot     = "/srv/excalidraw/drawings"
	DefaultMaxFileSize     = "64MB"
	DefaultListConcurrency = 8

	DefaultHost            = ""
	DefaultPort            = "3000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "50M"
	DefaultRateLimit       = 20.0

	DefaultServerURL     = "http://localhost:3000"
	DefaultClientTimeout = 30 * time.Second
	DefaultDebounceDelay = 10 * time.Second
	DefaultSavedDisplay  = 2 * time.Second
)

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("storage.root", DefaultStorageRoot)
	v.SetDefault("storage.maxfilesize", DefaultMaxFileSize)
	v.SetDefault("storage.listconcurrency", DefaultListConcurrency)

	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.readtimeout", DefaultReadTimeout)
	v.SetDefault("server.writetimeout", DefaultWriteTimeout)
	v.SetDefault("server.idletimeout", DefaultIdleTimeout)
	v.SetDefault("server.shutdowntimeout", DefaultShutdownTimeout)
	v.SetDefault("server.bodylimit", DefaultBodyLimit)
	v.SetDefault("server.ratelimit", DefaultRateLimit)
	v.SetDefault("server.metrics", true)

	v.SetDefault("client.serverurl", DefaultServerURL)
	v.SetDefault("client.timeout", DefaultClientTimeout)
	v.SetDefault("client.debouncedelay", DefaultDebounceDelay)
	v.SetDefault("client.saveddisplay", DefaultSavedDisplay)
	v.SetDefault("client.notifyurls", []string{})

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}

// DefaultSettings returns the settings used when no config file or
// environment overrides are present. It is also the content of the
// config.yaml written on first start.
func DefaultSettings() *Settings {
	return &Settings{
		Storage: StorageSettings{
			Root:            DefaultStorageRoot,
			MaxFileSize:     DefaultMaxFileSize,
			ListConcurrency: DefaultListConcurrency,
		},
		Server: ServerSettings{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			BodyLimit:       DefaultBodyLimit,
			RateLimit:       DefaultRateLimit,
			Metrics:         true,
		},
		Client: ClientSettings{
			ServerURL:     DefaultServerURL,
			Timeout:       DefaultClientTimeout,
			DebounceDelay: DefaultDebounceDelay,
			SavedDisplay:  DefaultSavedDisplay,
		},
		Logging: logger.LoggingConfig{
			DefaultLevel: logger.DefaultLogLevel,
			Timezone:     "Local",
			Console:      &logger.ConsoleOutput{Enabled: true, Level: logger.DefaultLogLevel},
			FileOutput:   &logger.FileOutput{Enabled: false, Path: logger.DefaultLogPath, Level: logger.DefaultLogLevel},
		},
		Sentry: SentrySettings{Environment: "production"},
	}
}
