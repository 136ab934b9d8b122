// Package cmd defines and implements the CLI commands for the sitesnap executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitesnap/sitesnap/internal/clock/system"
	"github.com/sitesnap/sitesnap/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newExportCmd creates and configures the 'export' subcommand, which runs
// one full crawl-and-export pass over the configured site.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Crawls the configured site and writes a static snapshot",
		Long: `Walks every reachable same-domain page starting from the site root,
rewrites the markup for static hosting, downloads referenced assets, and
stores everything under a new timestamped directory in the output root.`,

		RunE: runExportCommand,
	}
	return cmd
}

func runExportCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.New(appInstance.Config, system.New(), appInstance.Logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		appInstance.Logger.Warn("export interrupted", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("run export: %w", err)
	}

	cmd.Printf("Snapshot written to %s\n", summary.SnapshotRoot)
	cmd.Printf("Pages: %d  Assets: %d stored, %d deduplicated, %d skipped  Failures: %d\n",
		summary.PagesSaved,
		summary.AssetsStored,
		summary.AssetsDeduped,
		summary.AssetsSkipped,
		summary.Failures,
	)
	cmd.Printf("Run %s finished in %s\n", summary.RunID, summary.Duration.Round(time.Millisecond))
	return nil
}
