package profile

import (
	"path/filepath"
	"testing"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

func TestCapCutProfile_ID(t *testing.T) {
	p := NewCapCutProfile("/data")
	if p.ID() != "capcut" {
		t.Errorf("expected ID 'capcut', got '%s'", p.ID())
	}
}

func TestCapCutProfile_Roots(t *testing.T) {
	p := NewCapCutProfile(filepath.FromSlash("/Users/testuser/AppData/Local"))

	wantApp := filepath.FromSlash("/Users/testuser/AppData/Local/CapCut")
	if p.AppRoot() != wantApp {
		t.Errorf("expected app root %s, got %s", wantApp, p.AppRoot())
	}
	wantInstall := filepath.Join(wantApp, "Apps")
	if p.InstallRoot() != wantInstall {
		t.Errorf("expected install root %s, got %s", wantInstall, p.InstallRoot())
	}
}

func TestNewCapCutProfileWithRoots_DefaultsInstallRoot(t *testing.T) {
	p := NewCapCutProfileWithRoots("/opt/capcut", "")
	if p.InstallRoot() != filepath.Join("/opt/capcut", "Apps") {
		t.Errorf("unexpected install root %s", p.InstallRoot())
	}

	p = NewCapCutProfileWithRoots("/opt/capcut", "/mnt/versions")
	if p.InstallRoot() != "/mnt/versions" {
		t.Errorf("explicit install root ignored, got %s", p.InstallRoot())
	}
}

func TestCapCutProfile_ProcessNames(t *testing.T) {
	p := NewCapCutProfile("/data")
	names := p.ProcessNames()

	found := false
	for _, n := range names {
		if n == "CapCut" {
			found = true
		}
	}
	if !found {
		t.Error("expected process name 'CapCut'")
	}
}

func TestCapCutProfile_EntryPoints(t *testing.T) {
	p := NewCapCutProfile("/data")
	eps := p.UpdaterEntryPoints()

	var files, dirs int
	for _, ep := range eps {
		switch ep.Kind {
		case domain.BlockerFile:
			files++
		case domain.BlockerDirectory:
			dirs++
		}
	}
	if files != 1 || dirs != 1 {
		t.Errorf("expected one file and one directory entry point, got %d/%d", files, dirs)
	}
}

func TestToProfile_ResolvesScopes(t *testing.T) {
	dp := ToProfile(NewCapCutProfileWithRoots("/app", "/app/Apps"))
	v := &domain.InstalledVersion{Path: filepath.FromSlash("/app/Apps/2.5.4")}

	paths := dp.ResolveAll(dp.ConfigFiles, v)
	want := []string{
		filepath.FromSlash("/app/Apps/configure.ini"),
		filepath.FromSlash("/app/Apps/ProductInfo.xml"),
		filepath.FromSlash("/app/Apps/2.5.4/configure.ini"),
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}

	// Version-scoped paths drop out without a selection
	if got := dp.ResolveAll(dp.ConfigFiles, nil); len(got) != 2 {
		t.Errorf("expected 2 paths without a version, got %v", got)
	}
}
