package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInstalled means the install root is missing or not traversable.
	// It is an expected outcome and routes to an informational state.
	ErrNotInstalled = errors.New("application not installed")

	// ErrUnsafeToProceed means the application is running, or the probe could
	// not tell. Recoverable by closing the application and retrying.
	ErrUnsafeToProceed = errors.New("application is running or its state is unknown")

	// ErrFatalProtection aborts the whole protection sequence.
	ErrFatalProtection = errors.New("protection aborted")

	// ErrTargetVanished means the selected version directory disappeared
	// between selection and execution.
	ErrTargetVanished = fmt.Errorf("%w: selected version no longer exists", ErrFatalProtection)

	// ErrPartialProtection reports non-fatal step failures.
	ErrPartialProtection = errors.New("protection partially applied")
)

// ScanError is returned when the install root itself cannot be scanned.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// IsNotInstalled reports whether err means the application is simply absent.
func IsNotInstalled(err error) bool {
	return errors.Is(err, ErrNotInstalled)
}
