package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
	"github.com/eliteGoblin/focusd/version_guard/internal/infra"
	"github.com/eliteGoblin/focusd/version_guard/internal/profile"
	"github.com/eliteGoblin/focusd/version_guard/internal/wizard"
)

// errQuit ends the wizard at the user's request.
var errQuit = errors.New("quit")

func runWizard(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	m := wizard.New(ctx, wizard.Deps{
		Profile:   a.profile,
		Probe:     a.probe,
		Scanner:   a.scanner,
		Engine:    a.engine,
		Downloads: infra.NewHTTPDownloader(a.downloadDir(), a.logger),
		Logger:    a.logger,
	}, wizard.Options{CleanCache: cleanCacheOption(cmd, a.cfg.CleanCache)})
	defer m.Close()

	s := &session{
		machine: m,
		profile: a.profile,
		catalog: profile.Catalog(),
		in:      bufio.NewScanner(cmd.InOrStdin()),
		out:     cmd.OutOrStdout(),
		record:  a.record,
	}
	if err := s.run(ctx); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

// session renders the wizard on a line-oriented terminal.
type session struct {
	machine *wizard.Machine
	profile domain.Profile
	catalog []domain.ArchiveEntry
	in      *bufio.Scanner
	out     io.Writer
	record  func(*domain.ProtectionResult)

	shown *wizard.DownloadOutcome
}

func (s *session) run(ctx context.Context) error {
	for {
		if err := s.machine.Wait(ctx); err != nil {
			return err
		}
		var err error
		switch s.machine.State() {
		case wizard.StateWelcome:
			err = s.welcome()
		case wizard.StatePreCheck:
			err = s.precheck()
		case wizard.StateVersionSelect:
			err = s.selectVersion()
		case wizard.StateCacheClean:
			err = s.cacheClean()
		case wizard.StateComplete, wizard.StateError:
			err = s.finished()
		default:
			// Running and Download only need Wait.
			continue
		}
		if err != nil {
			return err
		}
	}
}

// ask prints prompt and returns the trimmed, lowercased answer.
// End of input reads as quit.
func (s *session) ask(prompt string) (string, error) {
	fmt.Fprintf(s.out, "%s ", prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		fmt.Fprintln(s.out)
		return "", errQuit
	}
	answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
	if answer == "q" || answer == "quit" {
		return "", errQuit
	}
	return answer, nil
}

func (s *session) welcome() error {
	printSection(s.out, s.profile.Name+" version guard")
	if d := s.machine.View().LastDownload; d != nil && d != s.shown {
		_ = reportDownload(s.out, d)
		s.shown = d
	}
	for {
		answer, err := s.ask("[p] protect an installed version, [d] download an archived installer, [q] quit:")
		if err != nil {
			return err
		}
		switch answer {
		case "p", "":
			return s.machine.Begin()
		case "d":
			return s.download()
		}
	}
}

func (s *session) download() error {
	printSection(s.out, "Archived installers")
	for i, e := range s.catalog {
		fmt.Fprintf(s.out, "  %d. %s %s (%s risk) %s\n", i+1, e.Version, e.Persona, e.RiskLevel, e.Description)
	}
	for {
		answer, err := s.ask(fmt.Sprintf("Download which? [1-%d, b back]:", len(s.catalog)))
		if err != nil {
			return err
		}
		if answer == "b" {
			return nil
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(s.catalog) {
			continue
		}
		fmt.Fprintf(s.out, "downloading %s...\n", s.catalog[n-1].Version)
		return s.machine.OpenDownloads(s.catalog[n-1])
	}
}

func (s *session) precheck() error {
	v := s.machine.View()
	printSection(s.out, "Installed versions")
	printTable(s.out, []string{"VERSION", "DIRECTORY", "SIZE"}, versionRowsShort(v.Versions))
	for _, w := range v.Warnings {
		printWarning(s.out, w)
	}

	prompt := "[c] continue, [r] recheck, [q] quit:"
	switch {
	case v.RunState == domain.RunStateRunning:
		prompt = fmt.Sprintf("Close %s, then [r] recheck or [q] quit:", v.Profile)
	case v.NeedsConfirmation:
		prompt = "[y] continue anyway, [r] recheck, [q] quit:"
	}

	for {
		answer, err := s.ask(prompt)
		if err != nil {
			return err
		}
		switch answer {
		case "r":
			return s.machine.Recheck()
		case "y":
			if v.NeedsConfirmation {
				if err := s.machine.ConfirmUnsafe(); err != nil {
					return err
				}
				return s.machine.Advance()
			}
		case "c", "":
			if v.CanAdvance() {
				return s.machine.Advance()
			}
		}
	}
}

func versionRowsShort(vs []domain.InstalledVersion) [][]string {
	rows := make([][]string, len(vs))
	for i, v := range vs {
		rows[i] = []string{fmt.Sprintf("%d. %s", i+1, v.ID), v.Name, humanSize(v.SizeBytes)}
	}
	return rows
}

func (s *session) selectVersion() error {
	v := s.machine.View()
	for {
		answer, err := s.ask(fmt.Sprintf("Keep which version? [1-%d, b back]:", len(v.Versions)))
		if err != nil {
			return err
		}
		if answer == "b" {
			return s.machine.Back()
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(v.Versions) {
			continue
		}
		if err := s.machine.Select(v.Versions[n-1].ID); err != nil {
			return err
		}
		return s.machine.Advance()
	}
}

func (s *session) cacheClean() error {
	v := s.machine.View()
	def := "y/N"
	if v.CleanCache {
		def = "Y/n"
	}
	answer, err := s.ask(fmt.Sprintf("Also clean caches? [%s, b back]:", def))
	if err != nil {
		return err
	}
	switch answer {
	case "b":
		return s.machine.Back()
	case "y", "yes":
		err = s.machine.SetCleanCache(true)
	case "n", "no":
		err = s.machine.SetCleanCache(false)
	}
	if err != nil {
		return err
	}

	others := len(v.Versions) + len(v.Duplicates) - 1
	answer, err = s.ask(fmt.Sprintf("Keep %s and delete %d other version(s)? [y/N]:", v.Selected.ID, others))
	if err != nil {
		return err
	}
	if answer != "y" && answer != "yes" {
		return s.machine.Back()
	}
	printSection(s.out, "Protecting "+v.Selected.ID.String())
	return s.machine.Advance()
}

func (s *session) finished() error {
	v := s.machine.View()
	if v.Result != nil {
		s.record(v.Result)
		printResult(s.out, v.Result)
	}
	if v.State == wizard.StateError {
		_ = reportFailure(s.out, s.profile, v)
	}
	for _, w := range v.Warnings {
		printWarning(s.out, w)
	}

	answer, err := s.ask("[m] menu, [q] quit:")
	if err != nil {
		return err
	}
	if answer == "m" {
		return s.machine.Reset()
	}
	return errQuit
}
