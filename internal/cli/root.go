// Package cli provides the command-line interface for reqjourney.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/reqjourney-go/internal/config"
	"github.com/raphaelgruber/reqjourney-go/internal/db"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reqjourney",
	Short: "Turn business documents into requirements, user stories and fit-gap analyses",
	Long: `Reqjourney analyzes a business requirements document, meeting recording or
transcript in three dependent stages:

  requirements  extract numbered business requirements
  userStories   derive one user story per requirement
  fitGap        assess each requirement against a source/destination system pair

Stages run one at a time; later stages reuse earlier results.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
			logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		} else {
			logger, closeLog = config.SetupQuietLogger(cfg.LogFile, level)
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(systemsCmd)
	rootCmd.AddCommand(jobsCmd)
}

// connectDB opens the job history database. It fails when no URL is
// configured.
func connectDB(ctx context.Context) (*db.Client, error) {
	if cfg.SurrealDBURL == "" {
		return nil, fmt.Errorf("job history is disabled: set SURREALDB_URL")
	}
	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return client, nil
}
