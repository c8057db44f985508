package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/relief-network/coordinator/internal/config"
	"github.com/relief-network/coordinator/internal/observability"
	"github.com/relief-network/coordinator/internal/storage"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relief",
		Short: "Relief coordinator - disaster response coordination API",
		Long: `Relief coordinator tracks disasters and situation reports, geocodes free-text
descriptions and verifies report images, and pushes every change to connected observers.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or ./config.toml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.toml"
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}
	logger = observability.NewLogger(cfg.Log)
	return nil
}

// openDatabase connects to PostgreSQL after checking the credentials are present
func openDatabase(ctx context.Context) (*storage.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := storage.New(ctx, cfg.Database.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
