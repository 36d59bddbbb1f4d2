package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents whether the monitor runs for one user or system-wide.
type ExecMode string

const (
	// ExecModeUser keeps all state under the user's home directory
	ExecModeUser ExecMode = "user"
	// ExecModeSystem keeps state under /var/lib (running as root)
	ExecModeSystem ExecMode = "system"
)

// Paths holds the on-disk locations used by the monitor.
type Paths struct {
	Mode        ExecMode
	DataDir     string
	CachePath   string
	SessionPath string
	LogPath     string
	ShameDBDir  string
}

// DetectPaths determines data locations based on effective UID.
// Under sudo the invoking user's home is used so caches stay per-user.
func DetectPaths() Paths {
	if os.Geteuid() == 0 && os.Getenv("SUDO_USER") == "" {
		return PathsFor(ExecModeSystem, "/var/lib/studymon")
	}
	return PathsFor(ExecModeUser, filepath.Join(GetRealUserHome(), ".studymon"))
}

// PathsFor derives every path from a data directory.
func PathsFor(mode ExecMode, dataDir string) Paths {
	return Paths{
		Mode:        mode,
		DataDir:     dataDir,
		CachePath:   filepath.Join(dataDir, JudgeCacheFileName),
		SessionPath: filepath.Join(dataDir, SessionFileName),
		LogPath:     filepath.Join(dataDir, "studymon.log"),
		ShameDBDir:  filepath.Join(dataDir, "shame"),
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

// ExpandHome expands a leading ~ to the real user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return GetRealUserHome()
	}
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		return filepath.Join(GetRealUserHome(), path[2:])
	}
	return path
}
