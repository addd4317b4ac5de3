package wizard

import (
	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// DownloadOutcome is the recorded result of the Download branch.
type DownloadOutcome struct {
	Entry domain.ArchiveEntry
	Path  string
	Err   error
}

// View is an immutable snapshot for renderers.
type View struct {
	State State
	Busy  bool

	Profile  string
	RunState domain.RunState
	// NeedsConfirmation is set in PreCheck when the probe returned Unknown
	// and ConfirmUnsafe has not been called.
	NeedsConfirmation bool

	Versions   []domain.InstalledVersion
	Duplicates []domain.InstalledVersion
	Selected   *domain.InstalledVersion
	CleanCache bool

	Warnings []string
	Result   *domain.ProtectionResult

	// Err is the cause of StateError. NotInstalled tells an absent
	// application apart from a genuine failure.
	Err          error
	NotInstalled bool

	LastDownload *DownloadOutcome
}

// CanAdvance reports whether Advance would be accepted right now.
func (v View) CanAdvance() bool {
	if v.Busy {
		return false
	}
	switch v.State {
	case StateWelcome:
		return true
	case StatePreCheck:
		return len(v.Versions) > 0 &&
			(v.RunState == domain.RunStateNotRunning ||
				(v.RunState == domain.RunStateUnknown && !v.NeedsConfirmation))
	case StateVersionSelect:
		return v.Selected != nil
	case StateCacheClean:
		return true
	}
	return false
}
