package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DRAWINGS_ROOT", "")

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, DefaultStorageRoot, settings.Storage.Root)
	assert.Equal(t, DefaultDebounceDelay, settings.Client.DebounceDelay)
	assert.Equal(t, 2*time.Second, settings.Client.SavedDisplay)
	assert.Equal(t, DefaultPort, settings.Server.Port)

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err, "default config file should be written")
	assert.Contains(t, string(data), "root: /srv/excalidraw/drawings")
	assert.Contains(t, string(data), "debouncedelay: 10s")
}

func TestLoadReadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DRAWINGS_ROOT", "")
	content := `
storage:
  root: /data/drawings
  listconcurrency: 2
server:
  port: "8089"
client:
  debouncedelay: 3s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, "/data/drawings", settings.Storage.Root)
	assert.Equal(t, 2, settings.Storage.ListConcurrency)
	assert.Equal(t, "8089", settings.Server.Port)
	assert.Equal(t, 3*time.Second, settings.Client.DebounceDelay)
	// Unset keys keep their defaults
	assert.Equal(t, DefaultBodyLimit, settings.Server.BodyLimit)
}

func TestEnvironmentOverridesStorageRoot(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DRAWINGS_ROOT", "/mnt/shared/drawings")

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "/mnt/shared/drawings", settings.Storage.Root)
}

func TestEnvironmentAlternateName(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DRAWINGS_ROOT", "")
	t.Setenv("DRAWPAD_STORAGE_ROOT", "/opt/drawpad")

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "/opt/drawpad", settings.Storage.Root)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DRAWINGS_ROOT", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage:\n  root: relative/dir\n"), 0o600))

	_, err := load(viper.New(), []string{dir})
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 1)
	assert.Contains(t, ve.Errors[0], "storage.root")
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults are valid", func(*Settings) {}, ""},
		{"bad port", func(s *Settings) { s.Server.Port = "http" }, "server.port"},
		{"bad size", func(s *Settings) { s.Storage.MaxFileSize = "lots" }, "storage.maxfilesize"},
		{"zero concurrency", func(s *Settings) { s.Storage.ListConcurrency = 0 }, "listconcurrency"},
		{"bad server url", func(s *Settings) { s.Client.ServerURL = "ftp://x" }, "client.serverurl"},
		{"zero debounce", func(s *Settings) { s.Client.DebounceDelay = 0 }, "debouncedelay"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := DefaultSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMaxFileSizeBytes(t *testing.T) {
	t.Parallel()

	s := StorageSettings{MaxFileSize: "2MB"}
	n, err := s.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*1024), n)

	s.MaxFileSize = ""
	n, err = s.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvRoot("/srv/x"))
	assert.Error(t, validateEnvRoot("srv/x"))
	assert.NoError(t, validateEnvPort("8080"))
	assert.Error(t, validateEnvPort("70000"))
	assert.NoError(t, validateEnvBool(" true "))
	assert.Error(t, validateEnvBool("yes"))
	assert.NoError(t, validateEnvDuration("5s"))
	assert.Error(t, validateEnvDuration("-1s"))
	assert.NoError(t, validateEnvURL("https://draw.example.com"))
	assert.Error(t, validateEnvURL("draw.example.com"))
	assert.NoError(t, validateEnvSize("10MB"))
}

func TestEnvironmentNotifyURLs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DRAWINGS_ROOT", "")
	t.Setenv("DRAWPAD_NOTIFY_URLS", "ntfy://ntfy.sh/drawpad,logger://")

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"ntfy://ntfy.sh/drawpad", "logger://"}, settings.Client.NotifyURLs)
}
