package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/distman/internal/version"
	"github.com/arthur-debert/distman/pkg/engine"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("distman version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}

var listCmd = &cobra.Command{
	Use:   "list [directory]",
	Short: "List stored versions and the currently linked one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsys := filesystem.NewOS()
		m, baseDir, err := loadManifest(fsys, args)
		if err != nil {
			return err
		}
		statuses, err := newEngine(fsys).Show(m, baseDir)
		if err != nil {
			return err
		}
		renderStatuses(statuses)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [directory]",
	Short: "Repoint stable links at the newest stored version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLinkOp(cmd, args, "Repoint links at the newest version?",
			func(e *engine.Engine, m *types.Manifest, baseDir string) (*types.RunSummary, error) {
				return e.Reset(cmd.Context(), m, baseDir)
			})
	},
}

var (
	pinNumber  int
	pinShortID string

	pinCmd = &cobra.Command{
		Use:   "pin [directory]",
		Short: "Repoint stable links at an existing version",
		Long: `Pin repoints each target's stable link at an already-stored version,
selected by --number (negative counts back from the newest) or by
--commit short id prefix. No new version is published.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := engine.Selector{ShortID: pinShortID}
			if cmd.Flags().Changed("number") {
				n := pinNumber
				sel.Version = &n
			}
			return runLinkOp(cmd, args, fmt.Sprintf("Pin links to %s?", sel),
				func(e *engine.Engine, m *types.Manifest, baseDir string) (*types.RunSummary, error) {
					return e.Pin(cmd.Context(), m, baseDir, sel)
				})
		},
	}
)

var deleteCmd = &cobra.Command{
	Use:   "delete [directory]",
	Short: "Remove stable links, stored versions, and dist info",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLinkOp(cmd, args, "Delete links and every stored version?",
			func(e *engine.Engine, m *types.Manifest, baseDir string) (*types.RunSummary, error) {
				return e.Delete(cmd.Context(), m, baseDir)
			})
	},
}

func init() {
	pinCmd.Flags().IntVarP(&pinNumber, "number", "n", 0, "Version number (negative: count back from newest)")
	pinCmd.Flags().StringVarP(&pinShortID, "commit", "c", "", "Version short id prefix (min 4 chars)")
}

// runLinkOp is the shared driver for the link-mutating subcommands.
func runLinkOp(cmd *cobra.Command, args []string, prompt string,
	op func(*engine.Engine, *types.Manifest, string) (*types.RunSummary, error)) error {

	fsys := filesystem.NewOS()
	m, baseDir, err := loadManifest(fsys, args)
	if err != nil {
		return err
	}
	if err := confirm(prompt); err != nil {
		return err
	}
	summary, err := op(newEngine(fsys), m, baseDir)
	if err != nil {
		return err
	}
	renderSummary(summary)
	if !summary.OK() {
		return fmt.Errorf("%d target(s) failed", summary.Failed)
	}
	return nil
}
