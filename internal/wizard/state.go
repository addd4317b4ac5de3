// Package wizard drives the guided protection flow. The Machine owns every
// user-visible state; slow work (probe, scan, protect, download) runs on a
// worker goroutine and is applied back through Poll.
package wizard

import "errors"

// State is one screen of the wizard.
type State string

const (
	StateWelcome       State = "welcome"
	StatePreCheck      State = "precheck"
	StateVersionSelect State = "version_select"
	StateCacheClean    State = "cache_clean"
	StateRunning       State = "running"
	StateComplete      State = "complete"
	StateError         State = "error"
	StateDownload      State = "download"
)

// Terminal reports whether only Reset leaves the state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

var (
	// ErrBusy is returned while a worker job is in flight.
	ErrBusy = errors.New("wizard: operation in progress")

	// ErrInvalidTransition is returned when an operation does not apply to the
	// current state.
	ErrInvalidTransition = errors.New("wizard: transition not allowed")

	// ErrPrecheckPending means the precheck facts have not arrived yet.
	ErrPrecheckPending = errors.New("wizard: precheck has not finished")

	// ErrNoVersions means the scan found nothing to pin.
	ErrNoVersions = errors.New("wizard: no installed versions found")

	// ErrConfirmationRequired means the probe could not tell whether the
	// application is running and the user has not accepted the risk.
	ErrConfirmationRequired = errors.New("wizard: process state unknown, confirmation required")

	// ErrNoSelection means no version has been selected.
	ErrNoSelection = errors.New("wizard: no version selected")

	// ErrUnknownVersion means the requested version was not scanned.
	ErrUnknownVersion = errors.New("wizard: version not found")

	// ErrNoDownloader means the machine was built without a download manager.
	ErrNoDownloader = errors.New("wizard: downloads unavailable")
)
