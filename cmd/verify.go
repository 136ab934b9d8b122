package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sitesnap/sitesnap/internal/verify"
	"github.com/spf13/cobra"
)

// newVerifyCmd creates and configures the 'verify' subcommand, which scans
// a snapshot for internal references that do not resolve on disk.
func newVerifyCmd() *cobra.Command {
	var outputRoot string
	var maxGroups int

	cmd := &cobra.Command{
		Use:   "verify [snapshot]",
		Short: "Checks a snapshot for broken internal references",
		Long: `Scans every saved page in a snapshot and reports href/src/srcset
references whose targets are missing from the tree. With no argument the
newest snapshot under the output root is verified; the argument may be a
snapshot name or a path.`,
		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			root := outputRoot
			if root == "" {
				root = appInstance.Config.Output.Root
			}

			var snapshotRoot string
			if len(args) == 1 {
				snapshotRoot = args[0]
				// A bare name is resolved under the output root.
				if filepath.Base(snapshotRoot) == snapshotRoot {
					snapshotRoot = filepath.Join(root, snapshotRoot)
				}
			} else {
				snapshotRoot, err = verify.Latest(root)
				if err != nil {
					return err
				}
			}

			report, err := verify.Run(snapshotRoot, verify.Options{MaxIssues: maxGroups}, appInstance.Logger)
			if err != nil {
				return err
			}

			if report.Clean() {
				cmd.Printf("OK: %d page(s), %d reference(s) checked in %s\n",
					report.PagesScanned, report.RefsChecked, report.SnapshotRoot)
				return nil
			}

			for _, issue := range report.Issues {
				cmd.Printf("MISSING %s  (%d ref(s))\n", issue.Target, issue.Refs)
				cmd.Printf("  referenced from: %s\n", strings.Join(issue.Pages, ", "))
			}
			if report.TruncatedIssues > 0 {
				cmd.Printf("...and %d more missing target(s)\n", report.TruncatedIssues)
			}
			return fmt.Errorf("%d missing reference target(s) in %s",
				len(report.Issues)+report.TruncatedIssues, report.SnapshotRoot)
		},
	}

	cmd.Flags().StringVar(&outputRoot, "root", "", "output root holding snapshots (defaults to output.root)")
	cmd.Flags().IntVar(&maxGroups, "max-groups", verify.DefaultMaxIssues, "cap on reported missing targets")
	return cmd
}
