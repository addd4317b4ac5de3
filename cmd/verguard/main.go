// Package main is the CLI entry point for verguard.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "verguard",
	Short: "Pin an installed CapCut version and keep the updater out",
	Long: `verguard keeps exactly one installed version of an application and
stops its updater from silently replacing it.

Protection deletes every other installed version, locks the launcher
configuration read-only and occupies the updater's entry points with
read-only placeholders. Running it again is safe.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List installed versions",
	RunE:  runScan,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the installation is protected",
	Long:  `Verifies, without changing anything, that one version remains, configuration is read-only and blockers are in place.`,
	RunE:  runStatus,
}

var protectCmd = &cobra.Command{
	Use:   "protect <version>",
	Short: "Keep one version and block the updater",
	Long: `Runs the protection sequence for the selected version:
  1. delete every other installed version
  2. clean caches (with --clean-cache)
  3. make configuration files read-only
  4. place read-only blockers where the updater lives

The application must be closed.`,
	Args: cobra.ExactArgs(1),
	RunE: runProtect,
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Guided protection",
	RunE:  runWizard,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List archived installers worth pinning",
	RunE:  runCatalog,
}

var downloadCmd = &cobra.Command{
	Use:   "download <version|persona>",
	Short: "Download an archived installer",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past protection runs",
	RunE:  runHistory,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep verifying protection in the foreground",
	Long: `Verifies the protected state on an interval. With --reprotect, drift is
repaired by re-running protection for the pinned version while the
application is closed.`,
	RunE: runWatch,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the configuration file",
	Long:  `Writes the current settings, including --profile, --app-root and --install-root, to the config file.`,
	RunE:  runInit,
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show the paths verguard works with",
	RunE:  runPaths,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath  string
	profileID   string
	installRoot string
	appRoot     string
	verbose     bool

	cleanCache    bool
	assumeUnknown bool
	historyLimit  int
	reprotect     bool
	pinVersion    string
	jsonOutput    bool
	forceInit     bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default <data dir>/config.yaml)")
	pf.StringVar(&profileID, "profile", "", "Application profile (default capcut)")
	pf.StringVar(&installRoot, "install-root", "", "Override the directory holding version folders")
	pf.StringVar(&appRoot, "app-root", "", "Override the application data root")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	protectCmd.Flags().BoolVar(&cleanCache, "clean-cache", false, "Also remove caches")
	protectCmd.Flags().BoolVar(&assumeUnknown, "assume-not-running", false, "Proceed when the process state cannot be determined")

	wizardCmd.Flags().BoolVar(&cleanCache, "clean-cache", false, "Pre-select cache cleaning")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")

	watchCmd.Flags().BoolVar(&reprotect, "reprotect", false, "Repair drift automatically")
	watchCmd.Flags().StringVar(&pinVersion, "pin", "", "Version to keep when repairing (default: last protected)")
	watchCmd.Flags().BoolVar(&cleanCache, "clean-cache", false, "Clean caches when repairing")

	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(protectCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(versionCmd)
}
