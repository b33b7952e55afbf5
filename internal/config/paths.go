package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

// DefaultDataDir returns the GUI application's data directory.
func DefaultDataDir() string {
	return defaultDataDir(runtime.GOOS, os.Getenv)
}

func defaultDataDir(goos string, getenv func(string) string) string {
	home := func() string {
		key := "HOME"
		if goos == "windows" {
			key = "USERPROFILE"
		}
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return "."
	}

	switch goos {
	case "darwin":
		return filepath.Join(home(), "Library", "Application Support", AppIdentifier)
	case "windows":
		if appdata := strings.TrimSpace(getenv("APPDATA")); appdata != "" {
			return filepath.Join(appdata, AppIdentifier)
		}
		return filepath.Join(home(), "AppData", "Roaming", AppIdentifier)
	default:
		if xdg := strings.TrimSpace(getenv("XDG_DATA_HOME")); xdg != "" {
			return filepath.Join(xdg, AppIdentifier)
		}
		return filepath.Join(home(), ".local", "share", AppIdentifier)
	}
}

// DaemonBinaryName returns the daemon executable name for the platform.
func DaemonBinaryName() string {
	if runtime.GOOS == "windows" {
		return DaemonBinary + ".exe"
	}
	return DaemonBinary
}

// ResolveDaemonPath locates the daemon binary. An explicit path (from the
// flag or the controller file) must exist and be a regular file. Otherwise
// the binary next to the controller executable is preferred over $PATH.
func ResolveDaemonPath(flagValue, fileValue string) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		return canonicalBinary(value, "--daemon-path")
	}
	if value := strings.TrimSpace(fileValue); value != "" {
		return canonicalBinary(value, "daemon-path in "+ControllerConfigFile)
	}

	name := DaemonBinaryName()
	var searched []string
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		sibling := filepath.Join(filepath.Dir(exe), name)
		searched = append(searched, sibling)
		if isRegularFile(sibling) {
			return sibling, nil
		}
	}
	if found, err := exec.LookPath(name); err == nil {
		if abs, err := filepath.Abs(found); err == nil {
			return abs, nil
		}
		return found, nil
	}
	searched = append(searched, "$PATH")

	return "", apperrors.Config("Unable to locate %s (searched %s). If running from source, build the daemon binary first or pass --daemon-path.",
		name, strings.Join(searched, ", "))
}

func canonicalBinary(path, source string) (string, error) {
	abs, err := filepath.Abs(path)
	if err == nil {
		abs, err = filepath.EvalSymlinks(abs)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindConfig, fmt.Sprintf("Failed to resolve %s %s: %v", source, path, err), err)
	}
	if !isRegularFile(abs) {
		return "", apperrors.Config("Daemon binary path is not a file: %s", abs)
	}
	return abs, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
