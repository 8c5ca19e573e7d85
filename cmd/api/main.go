package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secure-user-api/cmd/api/app"
	"secure-user-api/cmd/api/infrastructure"
	"secure-user-api/cmd/api/server"
	"secure-user-api/pkg/logger"
	"secure-user-api/pkg/security"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "secure-user-api",
	Short:         "Secure user CRUD API",
	Long:          "HTTP service for managing users behind API key authentication and per-caller rate limits.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new random API key for ACTIVE_API_KEYS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := security.GenerateAPIKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "directory containing app.env")
	rootCmd.AddCommand(serveCmd, migrateCmd, keygenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, l, err := app.Bootstrap(configPath)
	if err != nil {
		return err
	}

	ctx, stop := server.WithSignal(cmd.Context(), l)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Error("failed to start application", zap.Error(err))
		_ = l.Sync()
		return err
	}

	return a.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, l, err := app.Bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Sync(); err != nil && !logger.IsSyncNoise(err) {
			fmt.Fprintln(os.Stderr, "failed to sync logger:", err)
		}
	}()

	if err := infrastructure.MigrateDatabase(cmd.Context(), cfg, l); err != nil {
		l.Error("migration failed", zap.Error(err))
		return err
	}
	l.Info("migrations applied")
	return nil
}

// defaultConfigPath honours CONFIG_PATH for container deployments.
func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "."
}
