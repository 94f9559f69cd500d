// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/labstack/gommon/bytes"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, check := range []func(*Settings) error{
		validateStorageSettings,
		validateServerSettings,
		validateClientSettings,
		validateSentrySettings,
	} {
		if err := check(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateStorageSettings(s *Settings) error {
	if s.Storage.Root == "" {
		return fmt.Errorf("storage.root must be set")
	}
	if !filepath.IsAbs(s.Storage.Root) {
		return fmt.Errorf("storage.root must be an absolute path, got %q", s.Storage.Root)
	}
	if s.Storage.MaxFileSize != "" {
		if _, err := bytes.Parse(s.Storage.MaxFileSize); err != nil {
			return fmt.Errorf("storage.maxfilesize: %w", err)
		}
	}
	if s.Storage.ListConcurrency < 1 {
		return fmt.Errorf("storage.listconcurrency must be at least 1, got %d", s.Storage.ListConcurrency)
	}
	return nil
}

func validateServerSettings(s *Settings) error {
	port, err := strconv.Atoi(s.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port must be a number between 1 and 65535, got %q", s.Server.Port)
	}
	if s.Server.RateLimit < 0 {
		return fmt.Errorf("server.ratelimit must not be negative")
	}
	if s.Server.ShutdownTimeout < 0 || s.Server.ReadTimeout < 0 || s.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	return nil
}

func validateClientSettings(s *Settings) error {
	u, err := url.Parse(s.Client.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("client.serverurl must be an http(s) URL, got %q", s.Client.ServerURL)
	}
	if s.Client.DebounceDelay <= 0 {
		return fmt.Errorf("client.debouncedelay must be positive")
	}
	if s.Client.SavedDisplay < 0 {
		return fmt.Errorf("client.saveddisplay must not be negative")
	}
	return nil
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}
