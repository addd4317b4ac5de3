package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// FrameInterval is the Wait polling period, one frame at 60Hz.
const FrameInterval = 16 * time.Millisecond

// Deps are the collaborators the wizard drives.
type Deps struct {
	Profile   domain.Profile
	Probe     domain.ProcessProbe
	Scanner   domain.VersionScanner
	Engine    domain.ProtectionEngine
	Downloads domain.DownloadManager // optional
	Logger    *zap.Logger
}

// Options are initial user choices.
type Options struct {
	CleanCache bool
}

// result is a finished worker job, applied on the caller's goroutine.
type result interface {
	apply(m *Machine)
}

// Machine is the wizard state machine. It is not safe for concurrent use:
// call it from a single render loop. Worker goroutines only deliver results
// over a channel drained by Poll.
type Machine struct {
	deps   Deps
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	state   State
	jobs    chan result
	pending bool

	runState  domain.RunState
	report    *domain.ScanReport
	confirmed bool
	selected  *domain.InstalledVersion
	clean     bool
	warnings  []string
	outcome   *domain.ProtectionResult
	failure   error
	download  *DownloadOutcome
}

// New creates a machine in StateWelcome. ctx bounds every worker job.
func New(ctx context.Context, deps Deps, opts Options) *Machine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Machine{
		deps:   deps,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		state:  StateWelcome,
		jobs:   make(chan result, 1),
		clean:  opts.CleanCache,
	}
}

// Close cancels in-flight work. A running protection stops at the next
// step boundary.
func (m *Machine) Close() {
	m.cancel()
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Busy reports whether a worker job is in flight.
func (m *Machine) Busy() bool {
	return m.pending
}

// Begin moves Welcome to PreCheck and starts the probe and scan.
func (m *Machine) Begin() error {
	if m.pending {
		return ErrBusy
	}
	if m.state != StateWelcome {
		return m.refuse("begin")
	}
	m.transition(StatePreCheck)
	m.startPrecheck()
	return nil
}

// Recheck repeats the probe and scan, e.g. after the user closed the app.
func (m *Machine) Recheck() error {
	if m.pending {
		return ErrBusy
	}
	if m.state != StatePreCheck {
		return m.refuse("recheck")
	}
	m.startPrecheck()
	return nil
}

// ConfirmUnsafe accepts the risk of an Unknown probe result.
func (m *Machine) ConfirmUnsafe() error {
	if m.pending {
		return ErrBusy
	}
	if m.state != StatePreCheck || m.runState != domain.RunStateUnknown {
		return m.refuse("confirm")
	}
	m.confirmed = true
	m.deps.Logger.Warn("user confirmed unknown process state")
	return nil
}

// Select picks the version to keep.
func (m *Machine) Select(id domain.VersionID) error {
	if m.pending {
		return ErrBusy
	}
	if m.state != StateVersionSelect {
		return m.refuse("select")
	}
	v, ok := m.report.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, id)
	}
	m.selected = &v
	return nil
}

// SelectByName picks the version whose directory name or identifier is name.
func (m *Machine) SelectByName(name string) error {
	if m.pending {
		return ErrBusy
	}
	if m.state != StateVersionSelect {
		return m.refuse("select")
	}
	for _, v := range m.report.Versions {
		if v.Name == name || v.ID.String() == name || v.ID.Core() == name {
			v := v
			m.selected = &v
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownVersion, name)
}

// SetCleanCache toggles cache cleaning.
func (m *Machine) SetCleanCache(clean bool) error {
	if m.pending {
		return ErrBusy
	}
	if m.state != StateCacheClean {
		return m.refuse("set clean cache")
	}
	m.clean = clean
	return nil
}

// Advance moves forward when the current state's guard holds.
func (m *Machine) Advance() error {
	if m.pending {
		return ErrBusy
	}

	switch m.state {
	case StateWelcome:
		return m.Begin()

	case StatePreCheck:
		if m.report == nil {
			return ErrPrecheckPending
		}
		if len(m.report.Versions) == 0 {
			return ErrNoVersions
		}
		switch m.runState {
		case domain.RunStateNotRunning:
		case domain.RunStateUnknown:
			if !m.confirmed {
				return ErrConfirmationRequired
			}
		default:
			return domain.ErrUnsafeToProceed
		}
		m.transition(StateVersionSelect)
		return nil

	case StateVersionSelect:
		if m.selected == nil {
			return ErrNoSelection
		}
		m.transition(StateCacheClean)
		return nil

	case StateCacheClean:
		target := domain.ProtectionTarget{
			Version: *m.selected,
			Options: domain.ProtectionOptions{
				CleanCache:            m.clean,
				AcceptUnknownRunState: m.confirmed,
			},
		}
		all := m.report.All()
		m.transition(StateRunning)
		m.dispatch(func(ctx context.Context) result {
			return protectDone{result: m.deps.Engine.Protect(ctx, target, all)}
		})
		return nil
	}

	return m.refuse("advance")
}

// Back returns to the previous selection screen.
func (m *Machine) Back() error {
	if m.pending {
		return ErrBusy
	}
	switch m.state {
	case StateVersionSelect:
		m.transition(StatePreCheck)
		m.startPrecheck()
		return nil
	case StateCacheClean:
		m.transition(StateVersionSelect)
		return nil
	}
	return m.refuse("back")
}

// OpenDownloads enters the Download branch and fetches entry.
func (m *Machine) OpenDownloads(entry domain.ArchiveEntry) error {
	if m.pending {
		return ErrBusy
	}
	if m.state != StateWelcome {
		return m.refuse("download")
	}
	if m.deps.Downloads == nil {
		return ErrNoDownloader
	}
	m.transition(StateDownload)
	dl := m.deps.Downloads
	m.dispatch(func(ctx context.Context) result {
		path, err := dl.Download(ctx, entry)
		return downloadDone{outcome: DownloadOutcome{Entry: entry, Path: path, Err: err}}
	})
	return nil
}

// Reset leaves a terminal state for Welcome, discarding all facts.
func (m *Machine) Reset() error {
	if m.pending {
		return ErrBusy
	}
	if !m.state.Terminal() {
		return m.refuse("reset")
	}
	m.clearFacts()
	m.outcome = nil
	m.failure = nil
	m.clean = m.opts.CleanCache
	m.transition(StateWelcome)
	return nil
}

// Poll applies a finished worker result, if any, without blocking.
// It returns true while work is still pending.
func (m *Machine) Poll() bool {
	if !m.pending {
		return false
	}
	select {
	case r := <-m.jobs:
		m.pending = false
		r.apply(m)
	default:
	}
	return m.pending
}

// Wait polls once per frame until the machine is idle or ctx is done.
func (m *Machine) Wait(ctx context.Context) error {
	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()

	for m.Poll() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// View returns a snapshot of the current state.
func (m *Machine) View() View {
	v := View{
		State:        m.state,
		Busy:         m.pending,
		Profile:      m.deps.Profile.Name,
		RunState:     m.runState,
		CleanCache:   m.clean,
		Warnings:     append([]string(nil), m.warnings...),
		Result:       m.outcome,
		Err:          m.failure,
		NotInstalled: domain.IsNotInstalled(m.failure),
		LastDownload: m.download,
	}
	v.NeedsConfirmation = m.state == StatePreCheck &&
		m.runState == domain.RunStateUnknown && !m.confirmed
	if m.report != nil {
		v.Versions = append([]domain.InstalledVersion(nil), m.report.Versions...)
		v.Duplicates = append([]domain.InstalledVersion(nil), m.report.Duplicates...)
	}
	if m.selected != nil {
		sel := *m.selected
		v.Selected = &sel
	}
	return v
}

func (m *Machine) startPrecheck() {
	m.clearFacts()
	profile := m.deps.Profile
	probe, scanner := m.deps.Probe, m.deps.Scanner
	m.dispatch(func(ctx context.Context) result {
		state := probe.Probe(ctx, profile.ProcessNames...)
		report, err := scanner.Scan(ctx, profile.InstallRoot)
		return precheckDone{runState: state, report: report, err: err}
	})
}

func (m *Machine) clearFacts() {
	m.runState = ""
	m.report = nil
	m.confirmed = false
	m.selected = nil
	m.warnings = nil
}

// dispatch runs job on a worker goroutine. Only one job is ever in flight.
func (m *Machine) dispatch(job func(ctx context.Context) result) {
	m.pending = true
	ctx := m.ctx
	go func() {
		m.jobs <- job(ctx)
	}()
}

func (m *Machine) transition(to State) {
	m.deps.Logger.Debug("wizard transition",
		zap.String("from", string(m.state)),
		zap.String("to", string(to)))
	m.state = to
}

func (m *Machine) refuse(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, m.state)
}

func (m *Machine) fail(err error) {
	m.failure = err
	m.transition(StateError)
}

type precheckDone struct {
	runState domain.RunState
	report   *domain.ScanReport
	err      error
}

func (r precheckDone) apply(m *Machine) {
	if m.state != StatePreCheck {
		return
	}
	m.runState = r.runState

	if r.err != nil {
		m.deps.Logger.Info("precheck failed", zap.Error(r.err))
		m.fail(r.err)
		return
	}
	if len(r.report.Versions) == 0 {
		m.fail(&domain.ScanError{
			Root: r.report.Root,
			Err:  fmt.Errorf("%w: no version directories", domain.ErrNotInstalled),
		})
		return
	}

	m.report = r.report
	m.warnings = append(m.warnings, r.report.Warnings...)
	switch r.runState {
	case domain.RunStateRunning:
		m.warnings = append(m.warnings, fmt.Sprintf("%s is running; close it and recheck", m.deps.Profile.Name))
	case domain.RunStateUnknown:
		m.warnings = append(m.warnings, "could not determine whether the application is running; confirm to continue")
	}
}

type protectDone struct {
	result *domain.ProtectionResult
}

func (r protectDone) apply(m *Machine) {
	m.outcome = r.result
	if r.result.Status == domain.StatusFailed {
		m.fail(r.result.Error())
		return
	}
	for _, s := range r.result.FailedSteps() {
		m.warnings = append(m.warnings, fmt.Sprintf("%s: %s", s.Step, s.Detail))
	}
	m.transition(StateComplete)
}

type downloadDone struct {
	outcome DownloadOutcome
}

func (r downloadDone) apply(m *Machine) {
	out := r.outcome
	m.download = &out
	if out.Err != nil && !errors.Is(out.Err, context.Canceled) {
		m.deps.Logger.Warn("download failed",
			zap.String("version", out.Entry.Version),
			zap.Error(out.Err))
	}
	m.transition(StateWelcome)
}
