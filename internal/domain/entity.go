// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VersionID is a parsed version directory name.
// Components are compared numerically; Qualifier is kept for display only.
type VersionID struct {
	Components []int64
	Qualifier  string // e.g. "-beta", empty when absent
}

// Compare returns -1, 0 or +1. Missing trailing components count as zero.
func (v VersionID) Compare(other VersionID) int {
	n := len(v.Components)
	if len(other.Components) > n {
		n = len(other.Components)
	}
	for i := 0; i < n; i++ {
		var a, b int64
		if i < len(v.Components) {
			a = v.Components[i]
		}
		if i < len(other.Components) {
			b = other.Components[i]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// Equal reports whether both identifiers order the same.
func (v VersionID) Equal(other VersionID) bool {
	return v.Compare(other) == 0
}

// Core returns the dotted numeric part without the qualifier.
func (v VersionID) Core() string {
	parts := make([]string, len(v.Components))
	for i, c := range v.Components {
		parts[i] = strconv.FormatInt(c, 10)
	}
	return strings.Join(parts, ".")
}

func (v VersionID) String() string {
	return v.Core() + v.Qualifier
}

// InstalledVersion is one version directory found under the install root.
type InstalledVersion struct {
	ID        VersionID
	Name      string // directory name as found on disk
	Path      string // absolute directory path
	SizeBytes int64
	ModTime   time.Time
}

// ScanReport is the outcome of one scan of the install root.
type ScanReport struct {
	Root       string
	Versions   []InstalledVersion // ascending, unique IDs
	Duplicates []InstalledVersion // directories whose ID collides with an entry in Versions
	Warnings   []string
	ScannedAt  time.Time
}

// All returns every version directory on disk, duplicates included.
func (r *ScanReport) All() []InstalledVersion {
	all := make([]InstalledVersion, 0, len(r.Versions)+len(r.Duplicates))
	all = append(all, r.Versions...)
	all = append(all, r.Duplicates...)
	return all
}

// Find returns the scanned version with the given identifier.
func (r *ScanReport) Find(id VersionID) (InstalledVersion, bool) {
	for _, v := range r.Versions {
		if v.ID.Equal(id) {
			return v, true
		}
	}
	return InstalledVersion{}, false
}

// ProtectionOptions are the user's choices carried into a protection run.
type ProtectionOptions struct {
	CleanCache bool
	// AcceptUnknownRunState lets the run proceed when the process table
	// could not be read. A running application always aborts.
	AcceptUnknownRunState bool
}

// ProtectionTarget is the confirmed selection handed to the engine once.
type ProtectionTarget struct {
	Version InstalledVersion
	Options ProtectionOptions
}

// StepName identifies one step of the protection sequence.
type StepName string

const (
	StepDeleteVersions StepName = "delete_versions"
	StepCleanCache     StepName = "clean_cache"
	StepLockConfig     StepName = "lock_config"
	StepInstallBlocker StepName = "install_blockers"
)

// ProtectionSteps is the fixed execution order.
var ProtectionSteps = []StepName{
	StepDeleteVersions,
	StepCleanCache,
	StepLockConfig,
	StepInstallBlocker,
}

// StepState is the outcome of a single step.
type StepState string

const (
	StepDone             StepState = "done"
	StepAlreadySatisfied StepState = "already_satisfied"
	StepSkipped          StepState = "skipped"
	StepPartialFailure   StepState = "partial_failure"
	StepFailed           StepState = "failed"
	StepNotRun           StepState = "not_run"
)

// StepOutcome records what one step did.
type StepOutcome struct {
	Step        StepName
	State       StepState
	Detail      string
	FailedPaths []string
}

// Succeeded is true for every state that leaves the step's goal met.
func (o StepOutcome) Succeeded() bool {
	switch o.State {
	case StepDone, StepAlreadySatisfied, StepSkipped:
		return true
	}
	return false
}

// ProtectionStatus is the overall outcome of a protection run.
type ProtectionStatus string

const (
	StatusComplete ProtectionStatus = "complete"
	StatusPartial  ProtectionStatus = "partial"
	StatusFailed   ProtectionStatus = "failed"
)

// BlockerKind distinguishes file and directory blockers.
type BlockerKind string

const (
	BlockerFile      BlockerKind = "file"
	BlockerDirectory BlockerKind = "directory"
)

// BlockerArtifact occupies a path the updater expects to use exclusively.
// Nothing in this system removes it again.
type BlockerArtifact struct {
	Path       string
	Kind       BlockerKind
	BackupPath string // where the original was moved aside, empty if nothing was there
}

// ProtectionResult is produced once per Protect call.
type ProtectionResult struct {
	Target    ProtectionTarget
	Steps     []StepOutcome
	Status    ProtectionStatus
	Err       error // fatal cause when Status is StatusFailed
	Blockers  []BlockerArtifact
	Deleted   []string
	StartedAt time.Time
	Duration  time.Duration
}

// Step returns the outcome recorded for name.
func (r *ProtectionResult) Step(name StepName) (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}

// FailedSteps returns the steps that did not meet their goal.
func (r *ProtectionResult) FailedSteps() []StepOutcome {
	var failed []StepOutcome
	for _, s := range r.Steps {
		if !s.Succeeded() {
			failed = append(failed, s)
		}
	}
	return failed
}

// AllSatisfied is true when the run changed nothing because everything was
// already in place.
func (r *ProtectionResult) AllSatisfied() bool {
	if r.Status != StatusComplete {
		return false
	}
	for _, s := range r.Steps {
		if s.State != StepAlreadySatisfied && s.State != StepSkipped {
			return false
		}
	}
	return true
}

// Error maps the status onto the error taxonomy. Complete returns nil.
func (r *ProtectionResult) Error() error {
	switch r.Status {
	case StatusFailed:
		if r.Err != nil {
			return r.Err
		}
		return ErrFatalProtection
	case StatusPartial:
		return fmt.Errorf("%w: %d step(s) incomplete", ErrPartialProtection, len(r.FailedSteps()))
	}
	return nil
}

// ProtectedState is what a verification pass found on disk.
type ProtectedState struct {
	Root              string
	RemainingVersions []InstalledVersion
	UnlockedConfigs   []string
	MissingBlockers   []string
	CheckedAt         time.Time
}

// Protected reports whether the three protected-state conditions hold.
func (s *ProtectedState) Protected() bool {
	return len(s.RemainingVersions) == 1 &&
		len(s.UnlockedConfigs) == 0 &&
		len(s.MissingBlockers) == 0
}

// Pinned returns the single remaining version, if there is exactly one.
func (s *ProtectedState) Pinned() (InstalledVersion, bool) {
	if len(s.RemainingVersions) != 1 {
		return InstalledVersion{}, false
	}
	return s.RemainingVersions[0], true
}

// RunState is the tri-state answer of the process probe.
type RunState string

const (
	RunStateNotRunning RunState = "not_running"
	RunStateRunning    RunState = "running"
	RunStateUnknown    RunState = "unknown"
)

// Safe is true only when the probe positively saw no matching process.
func (s RunState) Safe() bool {
	return s == RunStateNotRunning
}

// ArchiveEntry is one curated installer in the download catalog.
type ArchiveEntry struct {
	Persona     string
	Version     string
	Description string
	Features    []string
	DownloadURL string
	RiskLevel   string
}

// RunRecord is a journal row describing a past protection run.
type RunRecord struct {
	ID          int64
	Profile     string
	Version     string
	Status      ProtectionStatus
	CleanCache  bool
	FailedSteps []string
	Detail      string
	StartedAt   time.Time
	DurationMs  int64
}

// NewRunRecord summarizes a protection result for the journal.
func NewRunRecord(profileID string, r *ProtectionResult) RunRecord {
	rec := RunRecord{
		Profile:    profileID,
		Version:    r.Target.Version.Name,
		Status:     r.Status,
		CleanCache: r.Target.Options.CleanCache,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
	}
	for _, s := range r.FailedSteps() {
		rec.FailedSteps = append(rec.FailedSteps, string(s.Step))
	}
	if err := r.Error(); err != nil {
		rec.Detail = err.Error()
	}
	return rec
}
