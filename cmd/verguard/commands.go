package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/config"
	"github.com/eliteGoblin/focusd/version_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
	"github.com/eliteGoblin/focusd/version_guard/internal/infra"
	"github.com/eliteGoblin/focusd/version_guard/internal/profile"
	"github.com/eliteGoblin/focusd/version_guard/internal/wizard"
)

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	out := cmd.OutOrStdout()

	report, err := a.scanner.Scan(cmd.Context(), a.profile.InstallRoot)
	if domain.IsNotInstalled(err) {
		printWarning(out, fmt.Sprintf("%s is not installed at %s", a.profile.Name, a.profile.InstallRoot))
		return nil
	}
	if err != nil {
		return err
	}

	printSection(out, fmt.Sprintf("%s versions in %s", a.profile.Name, report.Root))
	if len(report.Versions) == 0 {
		printWarning(out, "no version directories found")
	} else {
		printTable(out, []string{"VERSION", "DIRECTORY", "SIZE", "MODIFIED"}, versionRows(report.All()))
	}
	for _, w := range report.Warnings {
		printWarning(out, w)
	}
	return nil
}

func versionRows(vs []domain.InstalledVersion) [][]string {
	rows := make([][]string, len(vs))
	for i, v := range vs {
		rows[i] = []string{v.ID.String(), v.Name, humanSize(v.SizeBytes), v.ModTime.Format("2006-01-02 15:04")}
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	out := cmd.OutOrStdout()

	state, err := a.verifier.Verify(cmd.Context())
	if domain.IsNotInstalled(err) {
		printWarning(out, fmt.Sprintf("%s is not installed at %s", a.profile.Name, a.profile.InstallRoot))
		return nil
	}
	if err != nil {
		return err
	}

	printSection(out, a.profile.Name+" protection")
	printLabelValue(out, "Process", processSummary(cmd.Context(), a.probe, a.profile.ProcessNames))
	printLabelValue(out, "Versions", fmt.Sprintf("%d", len(state.RemainingVersions)))
	if v, ok := state.Pinned(); ok {
		printLabelValue(out, "Pinned", v.ID.String())
	}
	if len(state.UnlockedConfigs) > 0 {
		printWarning(out, "configuration files not read-only:")
		printList(out, state.UnlockedConfigs)
	}
	if len(state.MissingBlockers) > 0 {
		printWarning(out, "updater blockers missing:")
		printList(out, state.MissingBlockers)
	}
	if len(state.RemainingVersions) > 1 {
		printWarning(out, fmt.Sprintf("%d versions installed, run protect to keep one", len(state.RemainingVersions)))
	}

	if state.Protected() {
		printSuccess(out, "protected")
		return nil
	}
	printError(out, "not protected")
	return errors.New("installation is not protected")
}

// processSummary reports the run state, naming the PIDs when the
// application is running.
func processSummary(ctx context.Context, pm *infra.ProcessManagerImpl, names []string) string {
	state := pm.Probe(ctx, names...)
	if state != domain.RunStateRunning {
		return string(state)
	}
	var pids []string
	for _, name := range names {
		found, err := pm.FindByName(ctx, name)
		if err != nil {
			continue
		}
		for _, pid := range found {
			pids = append(pids, strconv.Itoa(pid))
		}
	}
	if len(pids) == 0 {
		return string(state)
	}
	return fmt.Sprintf("%s (pid %s)", state, strings.Join(pids, ", "))
}

// cleanCacheOption lets an explicit --clean-cache override the configured
// value in either direction.
func cleanCacheOption(cmd *cobra.Command, configured bool) bool {
	if !cmd.Flags().Changed("clean-cache") {
		return configured
	}
	v, err := cmd.Flags().GetBool("clean-cache")
	if err != nil {
		return configured
	}
	return v
}

// runProtect drives the wizard without prompts.
func runProtect(cmd *cobra.Command, args []string) error {
	targetVersion := args[0]
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	out := cmd.OutOrStdout()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	m := wizard.New(ctx, wizard.Deps{
		Profile: a.profile,
		Probe:   a.probe,
		Scanner: a.scanner,
		Engine:  a.engine,
		Logger:  a.logger,
	}, wizard.Options{CleanCache: cleanCacheOption(cmd, a.cfg.CleanCache)})
	defer m.Close()

	if err := m.Begin(); err != nil {
		return err
	}
	if err := m.Wait(ctx); err != nil {
		return err
	}

	v := m.View()
	if v.State == wizard.StateError {
		return reportFailure(out, a.profile, v)
	}
	for _, w := range v.Warnings {
		printWarning(out, w)
	}
	if v.NeedsConfirmation {
		if !assumeUnknown {
			return fmt.Errorf("%w: process state unknown, pass --assume-not-running to continue", domain.ErrUnsafeToProceed)
		}
		if err := m.ConfirmUnsafe(); err != nil {
			return err
		}
	}
	if err := m.Advance(); err != nil {
		return err
	}
	if err := m.SelectByName(targetVersion); err != nil {
		return err
	}
	if err := m.Advance(); err != nil {
		return err
	}
	if err := m.Advance(); err != nil {
		return err
	}

	printSection(out, "Protecting "+targetVersion)
	if err := m.Wait(ctx); err != nil {
		return err
	}

	v = m.View()
	if v.Result != nil {
		a.record(v.Result)
		printResult(out, v.Result)
	}
	if v.State == wizard.StateError {
		return reportFailure(out, a.profile, v)
	}
	for _, w := range v.Warnings {
		printWarning(out, w)
	}
	return v.Result.Error()
}

func reportFailure(w io.Writer, p domain.Profile, v wizard.View) error {
	if v.NotInstalled {
		printWarning(w, fmt.Sprintf("%s is not installed at %s", p.Name, p.InstallRoot))
		return nil
	}
	printError(w, v.Err.Error())
	return v.Err
}

func printResult(w io.Writer, r *domain.ProtectionResult) {
	rows := make([][]string, len(r.Steps))
	for i, s := range r.Steps {
		rows[i] = []string{string(s.Step), string(s.State), s.Detail}
	}
	printTable(w, []string{"STEP", "STATE", "DETAIL"}, rows)
	for _, s := range r.FailedSteps() {
		if len(s.FailedPaths) > 0 {
			printWarning(w, fmt.Sprintf("%s could not handle:", s.Step))
			printList(w, s.FailedPaths)
		}
	}
	for _, b := range r.Blockers {
		if b.BackupPath != "" {
			printLabelValue(w, "Moved aside", fmt.Sprintf("%s -> %s", b.Path, b.BackupPath))
		}
	}

	switch r.Status {
	case domain.StatusComplete:
		printSuccess(w, fmt.Sprintf("%s pinned in %s", r.Target.Version.ID, r.Duration.Round(time.Millisecond)))
	case domain.StatusPartial:
		printWarning(w, fmt.Sprintf("%s pinned with %d incomplete step(s)", r.Target.Version.ID, len(r.FailedSteps())))
	}
}

func runCatalog(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	printSection(out, "Archived installers")
	entries := profile.Catalog()
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Version, e.Persona, e.RiskLevel, e.Description}
	}
	printTable(out, []string{"VERSION", "PERSONA", "RISK", "DESCRIPTION"}, rows)
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	entry, err := profile.FindArchive(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	out := cmd.OutOrStdout()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	m := wizard.New(ctx, wizard.Deps{
		Profile:   a.profile,
		Probe:     a.probe,
		Scanner:   a.scanner,
		Engine:    a.engine,
		Downloads: infra.NewHTTPDownloader(a.downloadDir(), a.logger),
		Logger:    a.logger,
	}, wizard.Options{})
	defer m.Close()

	printSection(out, fmt.Sprintf("Downloading %s (%s)", entry.Version, entry.Persona))
	if err := m.OpenDownloads(entry); err != nil {
		return err
	}
	if err := m.Wait(ctx); err != nil {
		return err
	}
	return reportDownload(out, m.View().LastDownload)
}

func reportDownload(w io.Writer, d *wizard.DownloadOutcome) error {
	if d == nil {
		return errors.New("no download was attempted")
	}
	if d.Err != nil {
		printError(w, d.Err.Error())
		return d.Err
	}
	printSuccess(w, "saved to "+d.Path)
	printLabelValue(w, "Next", "run the installer, then protect "+d.Entry.Version)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	out := cmd.OutOrStdout()

	j, err := a.openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		printWarning(out, "journal is disabled in the configuration")
		return nil
	}
	defer j.Close()

	runs, err := j.Recent(historyLimit)
	if err != nil {
		return err
	}
	printSection(out, "Protection history")
	printLabelValue(out, "Journal", j.Path())
	if len(runs) == 0 {
		printLabelValue(out, "Runs", "none")
		return nil
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Profile,
			r.Version,
			string(r.Status),
			strings.Join(r.FailedSteps, ","),
		}
	}
	printTable(out, []string{"STARTED", "PROFILE", "VERSION", "STATUS", "INCOMPLETE"}, rows)
	if pin, err := j.PinnedVersion(a.profile.ID); err == nil && pin != "" {
		printLabelValue(out, "Pinned", pin)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	var journal domain.RunJournal
	ej, err := a.openJournal()
	if err != nil {
		a.logger.Warn("journal unavailable", zap.Error(err))
	} else if ej != nil {
		defer ej.Close()
		journal = ej
	}

	watchConfig := daemon.DefaultWatcherConfig()
	watchConfig.VerifyInterval = a.cfg.WatchInterval
	watchConfig.Reprotect = reprotect
	watchConfig.CleanCache = cleanCacheOption(cmd, a.cfg.CleanCache)
	watchConfig.PinnedVersion = pinVersion

	w := daemon.NewWatcher(watchConfig, a.profile, a.verifier, a.scanner, a.engine, a.probe, journal, a.logger)
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s every %s, logging to %s\n",
		a.profile.InstallRoot, watchConfig.VerifyInterval, a.layout.LogPath)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	layout := infra.DetectLayout()
	path := configPath
	if path == "" {
		path = layout.ConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(cfg)

	if err := writeConfig(path, cfg, forceInit); err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "wrote "+path)
	return nil
}

// writeConfig saves cfg unless path already exists and force is unset.
func writeConfig(path string, cfg *config.Configuration, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, pass --force to overwrite", path)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(path, cfg)
}

func runPaths(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	out := cmd.OutOrStdout()

	printSection(out, a.profile.Name)
	printLabelValue(out, "App root", a.profile.AppRoot)
	printLabelValue(out, "Install root", a.profile.InstallRoot)
	printLabelValue(out, "Configuration", strings.Join(a.profile.ResolveAll(a.profile.ConfigFiles, nil), ", "))
	for _, ep := range a.profile.EntryPoints {
		printLabelValue(out, "Blocker ("+string(ep.Kind)+")", a.profile.Resolve(ep.Path, nil))
	}

	printSection(out, "verguard")
	printLabelValue(out, "Data", a.layout.DataDir)
	printLabelValue(out, "Config", a.layout.ConfigPath)
	printLabelValue(out, "Log", a.layout.LogPath)
	printLabelValue(out, "Downloads", a.downloadDir())
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("verguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
