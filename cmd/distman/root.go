package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/distman/pkg/engine"
	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/manifest"
	"github.com/arthur-debert/distman/pkg/pipeline"
	"github.com/arthur-debert/distman/pkg/transform"
	"github.com/arthur-debert/distman/pkg/types"
)

var (
	verbosity int
	dryRun    bool
	yes       bool
	targets   []string
	distFile  string

	force          bool
	ignoreMissing  bool
	followSymlinks bool
	parallel       int
	contentHash    bool

	rootCmd = &cobra.Command{
		Use:   "distman [directory]",
		Short: "Distribute versioned files and directories",
		Long: `distman publishes files and directories described by a dist file
(dist.json, dist.yaml, or dist.toml) to versioned destinations. Each
publish appends an immutable copy under a versions/ directory and
atomically repoints a stable symlink at it, so consumers always see a
complete version and rollback is a relink away.`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE:          runDist,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command. Called by main.main().
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Preview changes without executing them")
	rootCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "Answer yes to confirmation prompts")
	rootCmd.PersistentFlags().StringArrayVarP(&targets, "target", "t", nil, "Restrict to the named target (repeatable)")
	rootCmd.PersistentFlags().StringVarP(&distFile, "file", "f", "", "Dist file path (default: discover in the directory)")

	rootCmd.Flags().BoolVar(&force, "force", false, "Publish a new version even when content is unchanged")
	rootCmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "Skip targets whose source is missing instead of failing")
	rootCmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false, "Copy symlinked sources as their referents")
	rootCmd.Flags().IntVar(&parallel, "parallel", 1, "Process up to N targets concurrently")
	rootCmd.Flags().BoolVar(&contentHash, "content-hash", false, "Detect changes by content hash instead of size+mtime")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(deleteCmd)
}

// loadManifest resolves the dist file from the positional directory
// argument or the --file flag and loads it. Returns the manifest and
// the directory relative sources resolve against.
func loadManifest(fsys types.FS, args []string) (*types.Manifest, string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", errors.Wrapf(err, errors.ErrInvalidInput, "bad directory %s", dir)
	}

	if distFile != "" {
		path, err := filepath.Abs(distFile)
		if err != nil {
			return nil, "", errors.Wrapf(err, errors.ErrInvalidInput, "bad dist file path %s", distFile)
		}
		m, err := manifest.Load(fsys, path)
		return m, filepath.Dir(path), err
	}

	m, path, err := manifest.LoadDir(fsys, absDir)
	if err != nil {
		return nil, "", err
	}
	return m, filepath.Dir(path), nil
}

// newEngine assembles the engine with the built-in transforms
// registered.
func newEngine(fsys types.FS) *engine.Engine {
	reg := pipeline.NewRegistry()
	transform.RegisterBuiltins(reg)

	opts := engine.Options{
		DryRun:         dryRun,
		Force:          force,
		IgnoreMissing:  ignoreMissing,
		FollowSymlinks: followSymlinks,
		Targets:        targets,
		Parallel:       parallel,
	}
	if contentHash {
		opts.Signature = engine.ContentHash{}
	}
	return engine.New(fsys, reg, opts)
}

// confirm gates mutating commands. Dry runs need no confirmation; a
// non-interactive session without --yes refuses rather than assumes.
func confirm(prompt string) error {
	if yes || dryRun {
		return nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return errors.New(errors.ErrInvalidInput, "confirmation required; pass --yes to proceed")
	}
	ok, err := confirmPrompt(prompt)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrInvalidInput, "aborted")
	}
	return nil
}

func runDist(cmd *cobra.Command, args []string) error {
	fsys := filesystem.NewOS()
	m, baseDir, err := loadManifest(fsys, args)
	if err != nil {
		return err
	}
	if err := confirm("Distribute to versioned destinations?"); err != nil {
		return err
	}

	summary, err := newEngine(fsys).Dist(cmd.Context(), m, baseDir)
	if err != nil {
		return err
	}
	renderSummary(summary)
	if !summary.OK() {
		return fmt.Errorf("%d target(s) failed", summary.Failed)
	}
	return nil
}
