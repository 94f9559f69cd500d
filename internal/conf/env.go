// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVars   []string           // Environment variable names, first set wins
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		// DRAWINGS_ROOT is kept for existing deployments
		{"storage.root", []string{"DRAWINGS_ROOT", "DRAWPAD_STORAGE_ROOT"}, validateEnvRoot},
		{"storage.maxfilesize", []string{"DRAWPAD_STORAGE_MAXFILESIZE"}, validateEnvSize},
		{"storage.listconcurrency", []string{"DRAWPAD_STORAGE_LISTCONCURRENCY"}, validateEnvPositiveInt},

		{"server.host", []string{"DRAWPAD_SERVER_HOST"}, nil},
		{"server.port", []string{"DRAWPAD_SERVER_PORT", "PORT"}, validateEnvPort},
		{"server.ratelimit", []string{"DRAWPAD_SERVER_RATELIMIT"}, validateEnvNonNegativeFloat},
		{"server.metrics", []string{"DRAWPAD_SERVER_METRICS"}, validateEnvBool},

		{"client.serverurl", []string{"DRAWPAD_SERVER_URL"}, validateEnvURL},
		{"client.debouncedelay", []string{"DRAWPAD_DEBOUNCE"}, validateEnvDuration},
		{"client.notifyurls", []string{"DRAWPAD_NOTIFY_URLS"}, nil},

		{"debug", []string{"DRAWPAD_DEBUG"}, validateEnvBool},
		{"sentry.dsn", []string{"DRAWPAD_SENTRY_DSN", "SENTRY_DSN"}, nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.ConfigKey, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			envValue, ok := os.LookupEnv(name)
			if !ok || envValue == "" {
				continue
			}
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", name, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvRoot(value string) error {
	if !filepath.IsAbs(value) {
		return fmt.Errorf("storage root must be an absolute path, got '%s'", value)
	}
	return nil
}

func validateEnvSize(value string) error {
	if _, err := bytes.Parse(value); err != nil {
		return fmt.Errorf("invalid size: %w", err)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("must not be negative, got %g", f)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got '%s'", u.Scheme)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}
