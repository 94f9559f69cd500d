package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/drawpad/internal/api"
	"github.com/tphakala/drawpad/internal/buildinfo"
	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/docstore"
	"github.com/tphakala/drawpad/internal/logger"
	"github.com/tphakala/drawpad/internal/observability"
	"github.com/tphakala/drawpad/internal/securefs"
	"github.com/tphakala/drawpad/internal/telemetry"
)

// Command creates a new cobra.Command that serves the document store over HTTP.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the drawing store over HTTP",
		Long:  "Serve drawings below the storage root through the /api/drawing and /api/files resources.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, info *buildinfo.Context) error {
	log := logger.Global().Module("serve")

	if err := telemetry.InitSentry(settings, info); err != nil {
		log.Warn("Continuing without error telemetry", logger.Error(err))
	}
	defer telemetry.Flush()

	sfs, err := securefs.New(settings.Storage.Root)
	if err != nil {
		return fmt.Errorf("failed to open storage root: %w", err)
	}
	defer func() {
		if err := sfs.Close(); err != nil {
			log.Warn("Failed to close storage root", logger.Error(err))
		}
	}()

	maxSize, err := settings.Storage.MaxFileSizeBytes()
	if err != nil {
		return err
	}
	sfs.SetMaxReadFileSize(maxSize)

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store := docstore.New(sfs,
		docstore.WithMetrics(m.Store),
		docstore.WithListConcurrency(settings.Storage.ListConcurrency))

	srv, err := api.New(settings,
		api.WithStore(store),
		api.WithMetrics(m),
		api.WithStorageRoot(sfs.BaseDir()))
	if err != nil {
		return err
	}

	log.Info("Serving drawings",
		logger.String("root", sfs.BaseDir()),
		logger.String("version", info.GetVersion()))
	return srv.StartWithGracefulShutdown(cmd.Context())
}

// setupFlags defines flags specific to the serve command and binds them to configuration.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("root", conf.DefaultStorageRoot, "Storage root; every drawing path resolves beneath it")
	cmd.Flags().String("host", conf.DefaultHost, "Listen host")
	cmd.Flags().StringP("port", "p", conf.DefaultPort, "Listen port")
	cmd.Flags().Float64("rate-limit", conf.DefaultRateLimit, "Mutating requests per second per client, 0 disables")
	cmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")

	for key, flag := range map[string]string{
		"storage.root":     "root",
		"server.host":      "host",
		"server.port":      "port",
		"server.ratelimit": "rate-limit",
		"server.metrics":   "metrics",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
