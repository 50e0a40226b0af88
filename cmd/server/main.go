package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"fotos/internal/config"
	"fotos/internal/handlers"
	"fotos/internal/services"
	"fotos/internal/store"
	"fotos/internal/store/postgres"
	"fotos/internal/store/sqlite"
	"fotos/internal/ws"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fotos",
		Short:         "Serve a content tree with on-the-fly image resizing and file tags",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to a config file (default: fotos.yaml in ., ./config, $HOME/.fotos)")
	root.PersistentFlags().String("root", "", "Content root directory")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	serve := newServeCommand()
	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newChecksumCommand())

	// fotos with no subcommand serves
	root.Flags().AddFlagSet(serve.Flags())
	root.RunE = serve.RunE

	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	setupLogging(cfg.Log)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (store.Repository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.URL, int32(cfg.PoolSize))
	case config.DriverSQLite:
		return sqlite.Open(cfg.URL, cfg.PoolSize)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("address", "", "HTTP listen address")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	resolver, err := services.NewResolver(cfg.Root)
	if err != nil {
		return err
	}

	// Database
	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	// WebSocket Hub
	hub := ws.NewHub()
	go hub.Run()

	// Image Processor
	transcoder := services.NewTranscoder(cfg.Transcode.JPEGQuality)
	processor := services.NewImageProcessor(transcoder, cfg.Transcode.Workers, cfg.Transcode.QueueSize)
	defer processor.Shutdown()

	router := handlers.Router{
		Content: handlers.NewContentHandler(services.NewContentService(resolver, transcoder, processor)),
		Tags:    handlers.NewTagHandler(services.NewTagService(repo, resolver, hub)),
		Hub:     hub,
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", cfg.HTTP.Address).
			Str("root", resolver.Root()).
			Str("driver", cfg.Database.Driver).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err, ok := <-errCh:
		if ok {
			hub.Shutdown()
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	hub.Shutdown()
	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tag store schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			repo, err := openRepository(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("schema is up to date")
			return repo.Close()
		},
	}
}

func newChecksumCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <subpath>",
		Short: "Print the content checksum of a file below the root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			resolver, err := services.NewResolver(cfg.Root)
			if err != nil {
				return err
			}
			res, err := resolver.Resolve(args[0])
			if err != nil {
				return err
			}
			sum, err := resolver.Checksum(res)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, res.RelativePath)
			return nil
		},
	}
}
