package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
	"github.com/eliteGoblin/focusd/version_guard/internal/infra"
	"github.com/eliteGoblin/focusd/version_guard/internal/profile"
	"github.com/eliteGoblin/focusd/version_guard/internal/usecase"
)

// fixedProbe reports a constant run state.
type fixedProbe struct {
	state domain.RunState
}

func (p *fixedProbe) Probe(ctx context.Context, names ...string) domain.RunState {
	return p.state
}

// memJournal is an in-memory journal that also remembers pins.
type memJournal struct {
	records []domain.RunRecord
	pins    map[string]string
}

func newMemJournal() *memJournal {
	return &memJournal{pins: map[string]string{}}
}

func (j *memJournal) Append(rec domain.RunRecord) (int64, error) {
	j.records = append(j.records, rec)
	if rec.Status != domain.StatusFailed {
		j.pins[rec.Profile] = rec.Version
	}
	return int64(len(j.records)), nil
}

func (j *memJournal) Recent(limit int) ([]domain.RunRecord, error) {
	return j.records, nil
}

func (j *memJournal) Close() error {
	return nil
}

func (j *memJournal) PinnedVersion(profile string) (string, error) {
	return j.pins[profile], nil
}

type watchFixture struct {
	profile domain.Profile
	fsm     domain.FileSystemManager
	probe   *fixedProbe
	journal *memJournal
	scanner *usecase.ScannerImpl
	engine  *usecase.ProtectorImpl
}

func newWatchFixture(t *testing.T, versions ...string) *watchFixture {
	t.Helper()
	p := profile.ToProfile(profile.NewCapCutProfile(t.TempDir()))
	for _, v := range versions {
		mkfile(t, filepath.Join(p.InstallRoot, v, "CapCut.exe"))
	}
	mkfile(t, filepath.Join(p.InstallRoot, "configure.ini"))
	mkfile(t, filepath.Join(p.AppRoot, "User Data", "Download", "update.exe"))

	fsm := infra.NewFileSystemManager()
	probe := &fixedProbe{state: domain.RunStateNotRunning}
	return &watchFixture{
		profile: p,
		fsm:     fsm,
		probe:   probe,
		journal: newMemJournal(),
		scanner: usecase.NewScanner(fsm, zap.NewNop()),
		engine:  usecase.NewProtector(p, probe, fsm, usecase.ProtectorConfig{}, zap.NewNop()),
	}
}

func (f *watchFixture) watcher(config WatcherConfig) *Watcher {
	verifier := usecase.NewVerifier(f.profile, f.scanner, f.fsm, zap.NewNop())
	return NewWatcher(config, f.profile, verifier, f.scanner, f.engine, f.probe, f.journal, zap.NewNop())
}

func (f *watchFixture) protect(t *testing.T, version string) {
	t.Helper()
	report, err := f.scanner.Scan(context.Background(), f.profile.InstallRoot)
	require.NoError(t, err)
	for _, v := range report.Versions {
		if v.Name == version {
			result := f.engine.Protect(context.Background(), domain.ProtectionTarget{Version: v}, report.All())
			require.Equal(t, domain.StatusComplete, result.Status)
			_, err := f.journal.Append(domain.NewRunRecord(f.profile.ID, result))
			require.NoError(t, err)
			return
		}
	}
	t.Fatalf("version %s missing", version)
}

func mkfile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o644))
}

func TestDefaultWatcherConfig(t *testing.T) {
	config := DefaultWatcherConfig()

	assert.Equal(t, 10*time.Minute, config.VerifyInterval)
	assert.False(t, config.Reprotect)
}

func TestWatcher_CheckIntact(t *testing.T) {
	f := newWatchFixture(t, "1.5.0", "2.5.4")
	f.protect(t, "2.5.4")

	out := f.watcher(WatcherConfig{Reprotect: true}).Check(context.Background())

	require.NoError(t, out.Err)
	assert.True(t, out.State.Protected())
	assert.Nil(t, out.Result)
	assert.Len(t, f.journal.records, 1)
}

func TestWatcher_DriftWithoutReprotect(t *testing.T) {
	f := newWatchFixture(t, "2.5.4")
	f.protect(t, "2.5.4")
	mkfile(t, filepath.Join(f.profile.InstallRoot, "3.0.0", "CapCut.exe"))

	out := f.watcher(WatcherConfig{}).Check(context.Background())

	require.NoError(t, out.Err)
	assert.False(t, out.State.Protected())
	assert.Nil(t, out.Result)
	assert.DirExists(t, filepath.Join(f.profile.InstallRoot, "3.0.0"))
}

func TestWatcher_ReprotectsRememberedPin(t *testing.T) {
	f := newWatchFixture(t, "2.5.4")
	f.protect(t, "2.5.4")
	// The updater found another way in
	mkfile(t, filepath.Join(f.profile.InstallRoot, "3.0.0", "CapCut.exe"))

	w := f.watcher(WatcherConfig{Reprotect: true})
	out := w.Check(context.Background())

	require.NotNil(t, out.Result)
	assert.Equal(t, domain.StatusComplete, out.Result.Status)
	assert.Equal(t, "2.5.4", out.Result.Target.Version.Name)
	assert.NoDirExists(t, filepath.Join(f.profile.InstallRoot, "3.0.0"))
	assert.Len(t, f.journal.records, 2)

	assert.True(t, w.Check(context.Background()).State.Protected())
}

func TestWatcher_ReprotectNeedsKnownPin(t *testing.T) {
	f := newWatchFixture(t, "1.5.0", "2.5.4")

	out := f.watcher(WatcherConfig{Reprotect: true}).Check(context.Background())

	assert.Nil(t, out.Result)
	assert.DirExists(t, filepath.Join(f.profile.InstallRoot, "1.5.0"))
	assert.DirExists(t, filepath.Join(f.profile.InstallRoot, "2.5.4"))
}

func TestWatcher_ConfiguredPinWins(t *testing.T) {
	f := newWatchFixture(t, "1.5.0", "2.5.4")

	out := f.watcher(WatcherConfig{Reprotect: true, PinnedVersion: "1.5.0"}).Check(context.Background())

	require.NotNil(t, out.Result)
	assert.Equal(t, "1.5.0", out.Result.Target.Version.Name)
	assert.NoDirExists(t, filepath.Join(f.profile.InstallRoot, "2.5.4"))
}

func TestWatcher_SingleVersionNeedsNoPin(t *testing.T) {
	f := newWatchFixture(t, "2.5.4")

	out := f.watcher(WatcherConfig{Reprotect: true}).Check(context.Background())

	require.NotNil(t, out.Result)
	assert.Equal(t, domain.StatusComplete, out.Result.Status)
}

func TestWatcher_ReprotectDeferredWhileRunning(t *testing.T) {
	f := newWatchFixture(t, "2.5.4")
	f.probe.state = domain.RunStateRunning

	out := f.watcher(WatcherConfig{Reprotect: true}).Check(context.Background())

	assert.False(t, out.State.Protected())
	assert.Nil(t, out.Result)
	assert.Empty(t, f.journal.records)
}

func TestWatcher_NotInstalled(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, os.RemoveAll(f.profile.InstallRoot))

	out := f.watcher(WatcherConfig{Reprotect: true}).Check(context.Background())

	assert.True(t, domain.IsNotInstalled(out.Err))
	assert.Nil(t, out.State)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	f := newWatchFixture(t, "2.5.4")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- f.watcher(WatcherConfig{VerifyInterval: 10 * time.Millisecond}).Run(ctx)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
