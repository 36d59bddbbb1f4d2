package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectPaths_ReturnsCorrectPaths(t *testing.T) {
	// Root mode can't be exercised without being root; check whichever applies.
	paths := DetectPaths()

	if os.Geteuid() == 0 && os.Getenv("SUDO_USER") == "" {
		if paths.Mode != ExecModeSystem {
			t.Errorf("expected system mode when euid=0, got %s", paths.Mode)
		}
		if paths.DataDir != "/var/lib/studymon" {
			t.Errorf("expected /var/lib/studymon, got %s", paths.DataDir)
		}
		return
	}

	if paths.Mode != ExecModeUser {
		t.Errorf("expected user mode when euid!=0, got %s", paths.Mode)
	}
	expected := filepath.Join(GetRealUserHome(), ".studymon")
	if paths.DataDir != expected {
		t.Errorf("expected %s, got %s", expected, paths.DataDir)
	}
}

func TestPathsFor_AllInsideDataDir(t *testing.T) {
	paths := PathsFor(ExecModeUser, "/tmp/sm")

	for name, p := range map[string]string{
		"cache":   paths.CachePath,
		"session": paths.SessionPath,
		"log":     paths.LogPath,
		"shame":   paths.ShameDBDir,
	} {
		if filepath.Dir(p) != "/tmp/sm" {
			t.Errorf("%s path %s should be inside data dir", name, p)
		}
	}
	if filepath.Base(paths.CachePath) != "judge_cache.json" {
		t.Errorf("unexpected cache file name %s", paths.CachePath)
	}
}

func TestExecMode_String(t *testing.T) {
	tests := []struct {
		mode ExecMode
		want string
	}{
		{ExecModeUser, "user"},
		{ExecModeSystem, "system (root)"},
		{ExecMode("bogus"), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("ExecMode(%q).String() = %q, want %q", string(tt.mode), got, tt.want)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home := GetRealUserHome()

	if got := ExpandHome("~"); got != home {
		t.Errorf("ExpandHome(~) = %s, want %s", got, home)
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Errorf("ExpandHome(~/x/y) = %s", got)
	}
	if got := ExpandHome("/abs/~/p"); got != "/abs/~/p" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := ExpandHome("~other/p"); got != "~other/p" {
		t.Errorf("~user form should be left alone, got %s", got)
	}
}
