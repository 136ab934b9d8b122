package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App bundles the dependencies every subcommand needs.
type App struct {
	Config config.Config
	Logger *zap.Logger
}

// newApp is the application factory. It is a variable so tests can
// replace it with one that returns a canned App.
var newApp = func(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitesnap",
		Short: "Exports a live site into a static snapshot tree.",
		Long: `sitesnap crawls a content-managed website through its origin server,
rewrites the markup for static hosting, and saves pages and assets into a
timestamped, deduplicated snapshot directory.`,

		SilenceUsage: true,

		// Runs before every subcommand's RunE. Loads configuration,
		// builds the logger, and injects both through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cfgFile)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*App); ok && appInstance != nil {
				_ = appInstance.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/sitesnap, $HOME/.sitesnap)")

	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newSnapshotsCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newSweepCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
