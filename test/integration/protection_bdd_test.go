//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
	"github.com/eliteGoblin/focusd/version_guard/internal/infra"
	"github.com/eliteGoblin/focusd/version_guard/internal/profile"
	"github.com/eliteGoblin/focusd/version_guard/internal/usecase"
	"github.com/eliteGoblin/focusd/version_guard/test/fixtures"
)

var _ = Describe("Protection Engine", func() {
	var (
		tmpDir   string
		capcut   *fixtures.FakeCapCut
		p        domain.Profile
		fsm      *infra.FileSystemManagerImpl
		scanner  *usecase.ScannerImpl
		engine   *usecase.ProtectorImpl
		verifier *usecase.VerifierImpl
		ctx      context.Context
	)

	protect := func(name string, clean bool) *domain.ProtectionResult {
		report, err := scanner.Scan(ctx, p.InstallRoot)
		Expect(err).NotTo(HaveOccurred())
		for _, v := range report.Versions {
			if v.Name == name {
				return engine.Protect(ctx, domain.ProtectionTarget{
					Version: v,
					Options: domain.ProtectionOptions{CleanCache: clean},
				}, report.All())
			}
		}
		Fail("version not installed: " + name)
		return nil
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "verguard-integration-*")
		Expect(err).NotTo(HaveOccurred())

		capcut = fixtures.NewFakeCapCut(tmpDir)
		Expect(capcut.Create("1.5.0", "2.5.4.810", "3.9.0")).To(Succeed())

		ctx = context.Background()
		logger := zap.NewNop()
		p = profile.ToProfile(profile.NewCapCutProfile(tmpDir))
		fsm = infra.NewFileSystemManager()
		scanner = usecase.NewScanner(fsm, logger)
		engine = usecase.NewProtector(p, infra.NewProcessManager(logger), fsm,
			usecase.ProtectorConfig{RetryPause: 10 * time.Millisecond}, logger)
		verifier = usecase.NewVerifier(p, scanner, fsm, logger)
	})

	AfterEach(func() {
		_ = capcut.Cleanup()
		os.RemoveAll(tmpDir)
	})

	Describe("Protect", func() {
		Context("when three versions are installed", func() {
			It("should keep only the selected version", func() {
				result := protect("2.5.4.810", true)
				Expect(result.Status).To(Equal(domain.StatusComplete))
				Expect(capcut.Installed()).To(Equal([]string{"2.5.4.810"}))
			})

			It("should occupy the updater entry points", func() {
				result := protect("2.5.4.810", false)
				Expect(result.Blockers).To(HaveLen(2))

				info, err := os.Stat(capcut.UpdaterPath())
				Expect(err).NotTo(HaveOccurred())
				Expect(info.Size()).To(BeZero())
				Expect(fsm.IsReadOnly(capcut.UpdaterPath())).To(BeTrue())

				entries, err := os.ReadDir(capcut.UpdateDir())
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(BeEmpty())

				_, err = os.Stat(capcut.UpdaterPath() + ".bak")
				Expect(err).NotTo(HaveOccurred(), "original updater should be moved aside")
			})

			It("should lock configuration without rewriting it", func() {
				before, err := os.ReadFile(capcut.ConfigPath())
				Expect(err).NotTo(HaveOccurred())

				protect("2.5.4.810", false)

				after, err := os.ReadFile(capcut.ConfigPath())
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(Equal(before))
				Expect(fsm.IsReadOnly(capcut.ConfigPath())).To(BeTrue())
				Expect(fsm.IsReadOnly(filepath.Join(capcut.VersionPath("2.5.4.810"), "configure.ini"))).To(BeTrue())
			})
		})

		Context("when cache cleaning is off", func() {
			It("should leave caches alone", func() {
				result := protect("3.9.0", false)
				step, ok := result.Step(domain.StepCleanCache)
				Expect(ok).To(BeTrue())
				Expect(step.State).To(Equal(domain.StepSkipped))
				Expect(filepath.Join(tmpDir, "CapCut", "User Data", "Cache")).To(BeADirectory())
			})
		})

		Context("when run twice", func() {
			It("should report every step as already satisfied", func() {
				Expect(protect("3.9.0", true).Status).To(Equal(domain.StatusComplete))

				second := protect("3.9.0", true)
				Expect(second.Status).To(Equal(domain.StatusComplete))
				Expect(second.AllSatisfied()).To(BeTrue())
				Expect(second.Deleted).To(BeEmpty())
			})
		})
	})

	Describe("Verify", func() {
		It("should report drift until protection runs", func() {
			state, err := verifier.Verify(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Protected()).To(BeFalse())

			protect("1.5.0", false)

			state, err = verifier.Verify(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Protected()).To(BeTrue())
			pinned, ok := state.Pinned()
			Expect(ok).To(BeTrue())
			Expect(pinned.Name).To(Equal("1.5.0"))
		})
	})

	Describe("Watcher", func() {
		Context("when the updater installs a new version after protection", func() {
			It("should restore the remembered pin", func() {
				key, err := infra.GenerateKey()
				Expect(err).NotTo(HaveOccurred())
				journal, err := infra.NewEncryptedJournal(filepath.Join(tmpDir, "VersionGuard"), key)
				Expect(err).NotTo(HaveOccurred())
				defer journal.Close()

				first := protect("2.5.4.810", false)
				_, err = journal.Append(domain.NewRunRecord(p.ID, first))
				Expect(err).NotTo(HaveOccurred())

				// Simulate a sneaked-in update.
				Expect(os.MkdirAll(capcut.VersionPath("5.0.0"), 0o755)).To(Succeed())
				Expect(os.WriteFile(filepath.Join(capcut.VersionPath("5.0.0"), "CapCut.exe"), []byte("MZ"), 0o644)).To(Succeed())

				config := daemon.DefaultWatcherConfig()
				config.Reprotect = true
				w := daemon.NewWatcher(config, p, verifier, scanner, engine,
					infra.NewProcessManager(zap.NewNop()), journal, zap.NewNop())

				out := w.Check(ctx)
				Expect(out.Err).NotTo(HaveOccurred())
				Expect(out.State.Protected()).To(BeFalse())
				Expect(out.Result).NotTo(BeNil())
				Expect(out.Result.Status).To(Equal(domain.StatusComplete))
				Expect(capcut.Installed()).To(Equal([]string{"2.5.4.810"}))

				runs, err := journal.Recent(10)
				Expect(err).NotTo(HaveOccurred())
				Expect(runs).To(HaveLen(2))
			})
		})
	})
})
