package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/audit"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/config"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/logging"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/metrics"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/server"
	redisstore "github.com/brentmartinmiller/healthcare-etl-pipeline/internal/storage/redis"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/phi"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion HTTP server",
	Long:  `Starts the ETL service, exposing ingestion, patient lookup and run history over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		if cfg.EncryptionKey == "" {
			// Development convenience only; anything encrypted with this key
			// is unreadable after restart.
			cfg.EncryptionKey, err = phi.GenerateKey()
			if err != nil {
				return err
			}
			logger.Warn("PHI_ENCRYPTION_KEY not set, generated an ephemeral key")
		}
		encryptor, err := phi.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return fmt.Errorf("invalid PHI encryption key: %w", err)
		}

		store := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer store.Close()

		auditLog := audit.New(store.Client(), logger)

		srv := &http.Server{
			Addr: cfg.ListenAddr,
			Handler: server.New(
				pipeline.New(encryptor, pipeline.WithLogger(logger)),
				store,
				auditLog,
				metrics.New(),
				logger,
				cfg.Environment,
			).Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", srv.Addr, "environment", cfg.Environment)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to stop server: %w", err)
				}
			}
			logger.Info("server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
