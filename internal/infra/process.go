// Package infra implements infrastructure concerns (process, filesystem, journal).
package infra

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// ProcessLister enumerates the live process table.
type ProcessLister func(ctx context.Context) ([]*process.Process, error)

// ProcessManagerImpl implements domain.ProcessProbe using gopsutil.
type ProcessManagerImpl struct {
	list   ProcessLister
	logger *zap.Logger
}

// NewProcessManager creates a new process probe.
func NewProcessManager(logger *zap.Logger) *ProcessManagerImpl {
	return &ProcessManagerImpl{list: process.ProcessesWithContext, logger: logger}
}

// NewProcessManagerWithLister creates a probe over a custom process source (for testing).
func NewProcessManagerWithLister(list ProcessLister, logger *zap.Logger) *ProcessManagerImpl {
	return &ProcessManagerImpl{list: list, logger: logger}
}

// FindByName returns PIDs of processes whose executable name matches name.
func (pm *ProcessManagerImpl) FindByName(ctx context.Context, name string) ([]int, error) {
	procs, err := pm.list(ctx)
	if err != nil {
		return nil, err
	}

	var found []int
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue // Process may have exited
		}
		if MatchesProcessName(pname, name) {
			found = append(found, int(p.Pid))
		}
	}
	return found, nil
}

// Probe reports whether any process matches one of names.
// An enumeration failure is reported as RunStateUnknown, never as an error.
func (pm *ProcessManagerImpl) Probe(ctx context.Context, names ...string) domain.RunState {
	procs, err := pm.list(ctx)
	if err != nil {
		pm.logger.Warn("process enumeration failed", zap.Error(err))
		return domain.RunStateUnknown
	}

	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		for _, n := range names {
			if MatchesProcessName(pname, n) {
				pm.logger.Debug("target process running",
					zap.String("name", pname),
					zap.Int32("pid", p.Pid))
				return domain.RunStateRunning
			}
		}
	}
	return domain.RunStateNotRunning
}

// MatchesProcessName compares an executable name with a hint, ignoring case
// and an optional ".exe" suffix on either side.
func MatchesProcessName(processName, hint string) bool {
	if hint == "" {
		return false
	}
	p := strings.TrimSuffix(strings.ToLower(processName), ".exe")
	h := strings.TrimSuffix(strings.ToLower(hint), ".exe")
	return p == h
}

// Ensure ProcessManagerImpl implements domain.ProcessProbe.
var _ domain.ProcessProbe = (*ProcessManagerImpl)(nil)
