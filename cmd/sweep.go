package cmd

import (
	"fmt"

	"github.com/sitesnap/sitesnap/internal/sweep"
	"github.com/spf13/cobra"
)

// newSweepCmd creates and configures the 'sweep' subcommand, which deletes
// temp-file droppings from the output tree.
func newSweepCmd() *cobra.Command {
	var outputRoot string
	var patterns []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Removes temp files left behind in the output tree",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			root := outputRoot
			if root == "" {
				root = appInstance.Config.Output.Root
			}

			result, err := sweep.Run(root, patterns, dryRun, appInstance.Logger)
			if err != nil {
				return fmt.Errorf("sweep output tree: %w", err)
			}

			verb := "Removed"
			if dryRun {
				verb = "Would remove"
				for _, file := range result.Files {
					cmd.Printf("  %s\n", file)
				}
			}
			cmd.Printf("%s %d file(s), %s\n", verb, result.FilesRemoved, humanSize(result.BytesFreed))
			return nil
		},
	}

	cmd.Flags().StringVar(&outputRoot, "root", "", "directory to sweep (defaults to output.root)")
	cmd.Flags().StringArrayVar(&patterns, "pattern", nil, "glob matched against file names; repeatable (default *.tmp, *.partial, *~)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report matches without deleting anything")
	return cmd
}
