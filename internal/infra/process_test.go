package infra

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

func selfLister(ctx context.Context) ([]*process.Process, error) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return []*process.Process{self}, nil
}

func selfName(t *testing.T) string {
	t.Helper()
	procs, err := selfLister(context.Background())
	require.NoError(t, err)
	name, err := procs[0].Name()
	require.NoError(t, err)
	return name
}

func TestProcessManager_Probe(t *testing.T) {
	name := selfName(t)

	tests := []struct {
		name   string
		lister ProcessLister
		names  []string
		want   domain.RunState
	}{
		{"running", selfLister, []string{"CapCut", name}, domain.RunStateRunning},
		{"running with exe suffix", selfLister, []string{name + ".exe"}, domain.RunStateRunning},
		{"not running", selfLister, []string{"CapCut", "CapCutService"}, domain.RunStateNotRunning},
		{"no names", selfLister, nil, domain.RunStateNotRunning},
		{
			"enumeration failure",
			func(ctx context.Context) ([]*process.Process, error) { return nil, errors.New("access denied") },
			[]string{"CapCut"},
			domain.RunStateUnknown,
		},
		{
			"vanished process is skipped",
			func(ctx context.Context) ([]*process.Process, error) {
				return []*process.Process{{Pid: -1}}, nil
			},
			[]string{"CapCut"},
			domain.RunStateNotRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := NewProcessManagerWithLister(tt.lister, zap.NewNop())
			assert.Equal(t, tt.want, pm.Probe(context.Background(), tt.names...))
		})
	}
}

func TestProcessManager_FindByName(t *testing.T) {
	pm := NewProcessManagerWithLister(selfLister, zap.NewNop())

	pids, err := pm.FindByName(context.Background(), selfName(t))
	require.NoError(t, err)
	assert.Equal(t, []int{os.Getpid()}, pids)

	pids, err = pm.FindByName(context.Background(), "CapCut")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestProcessManager_FindByNameListError(t *testing.T) {
	pm := NewProcessManagerWithLister(func(ctx context.Context) ([]*process.Process, error) {
		return nil, errors.New("boom")
	}, zap.NewNop())

	_, err := pm.FindByName(context.Background(), "CapCut")
	assert.Error(t, err)
}

func TestProcessManager_RealProcessTable(t *testing.T) {
	pm := NewProcessManager(zap.NewNop())

	// No CapCut on a build machine; the probe must still answer.
	state := pm.Probe(context.Background(), "CapCut-definitely-not-running")
	assert.Contains(t, []domain.RunState{domain.RunStateNotRunning, domain.RunStateUnknown}, state)
}

func TestMatchesProcessName(t *testing.T) {
	tests := []struct {
		process, hint string
		want          bool
	}{
		{"CapCut.exe", "CapCut", true},
		{"capcut.EXE", "CapCut", true},
		{"CapCut", "capcut.exe", true},
		{"CapCutService.exe", "CapCutService", true},
		{"CapCutService.exe", "CapCut", false},
		{"NotCapCut.exe", "CapCut", false},
		{"CapCut", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.process+"/"+tt.hint, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesProcessName(tt.process, tt.hint))
		})
	}
}
