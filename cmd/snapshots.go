package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/sitesnap/sitesnap/internal/snapshot"
	"github.com/spf13/cobra"
)

// newSnapshotsCmd creates and configures the 'snapshots' subcommand, which
// lists the snapshot trees under the output root, newest first.
func newSnapshotsCmd() *cobra.Command {
	var outputRoot string

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Lists stored snapshots, newest first",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			root := outputRoot
			if root == "" {
				root = appInstance.Config.Output.Root
			}

			infos, err := snapshot.List(root)
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}
			if len(infos) == 0 {
				cmd.Printf("No snapshots under %s\n", root)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPAGES\tASSETS\tSIZE")
			for _, info := range infos {
				pages, assets := "-", "-"
				if info.HasMetadata {
					pages = fmt.Sprintf("%d", info.PagesCount)
					assets = fmt.Sprintf("%d", info.AssetsCount)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, pages, assets, humanSize(info.SizeBytes))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&outputRoot, "root", "", "output root to list (defaults to output.root)")
	return cmd
}

// humanSize renders a byte count with a binary-prefix unit.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
