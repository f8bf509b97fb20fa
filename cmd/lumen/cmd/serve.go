package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/lumen/internal/core/api"
	"github.com/solatis/lumen/internal/core/auth"
	"github.com/solatis/lumen/internal/core/config"
	"github.com/solatis/lumen/internal/core/db"
	"github.com/solatis/lumen/internal/core/server"
	"github.com/solatis/lumen/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the update loop and the plugin gRPC API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("profile", "", "stored profile to load at startup")
	serveCmd.Flags().Int("tick-rate", 60, "update loop ticks per second")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("profile") {
		cfg.Profile, _ = cmd.Flags().GetString("profile")
	}
	if cmd.Flags().Changed("tick-rate") {
		cfg.TickRate, _ = cmd.Flags().GetInt("tick-rate")
	}

	database, queries, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := requireMigrated(ctx, database); err != nil {
		return err
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set LUMEN_HMAC_SECRET environment variable)")
	}
	authenticator := auth.NewAuthenticator(secrets, queries)

	eng, err := engine.New(engine.Options{
		Logger:     logger,
		Schedules:  cfg.Schedules,
		JournalDir: cfg.TransitionsDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	if cfg.Profile != "" {
		doc, err := db.NewProfileStore(queries).Get(ctx, cfg.Profile)
		if err != nil {
			return err
		}
		if err := eng.LoadProfile(ctx, doc); err != nil {
			return fmt.Errorf("failed to load profile %q: %w", cfg.Profile, err)
		}
	}

	service, err := api.NewConditionHostService(eng, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting lumen", "version", Version, "address", cfg.Address(), "tick_rate", cfg.TickRate, "profile", cfg.Profile)

	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()
	go func() {
		if err := eng.Run(ctx, cfg.TickRate); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = grpcServer.Shutdown(shutdownCtx)
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(context.Background())
	}
}
