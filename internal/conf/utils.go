// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/labstack/gommon/bytes"

	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
)

const appDirName = "drawpad"

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If config.yaml exists in one of them, only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", appDirName),
			filepath.Join("/etc", appDirName),
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// MaxFileSizeBytes parses Storage.MaxFileSize. Empty or "0" disables the limit.
func (s *StorageSettings) MaxFileSizeBytes() (int64, error) {
	if s.MaxFileSize == "" || s.MaxFileSize == "0" {
		return 0, nil
	}
	n, err := bytes.Parse(s.MaxFileSize)
	if err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("setting", "storage.maxfilesize").
			Build()
	}
	return n, nil
}

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time so it follows
// SetGlobal calls made after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
