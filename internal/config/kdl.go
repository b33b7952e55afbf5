package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	kdl "github.com/sblinch/kdl-go"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

// ControllerConfigFile holds controller defaults inside the data dir.
//
//	// daemonctl.kdl
//	listen "127.0.0.1:4732"
//	daemon-path "/opt/codex-monitor/codex-monitor-daemon"
//	log-level "debug"
const ControllerConfigFile = "daemonctl.kdl"

// ControllerFile is the parsed controller configuration.
// Tokens are deliberately not read from it; they stay in the settings file
// or the environment.
type ControllerFile struct {
	Listen     string `kdl:"listen"`
	DaemonPath string `kdl:"daemon-path"`
	LogLevel   string `kdl:"log-level"`
}

// LoadControllerFile loads <dataDir>/daemonctl.kdl. A missing file yields
// an empty configuration.
func LoadControllerFile(dataDir string) (*ControllerFile, error) {
	path := filepath.Join(dataDir, ControllerConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ControllerFile{}, nil
		}
		return nil, apperrors.Wrap(apperrors.KindConfig, fmt.Sprintf("Failed to read %s: %v", path, err), err)
	}

	cfg, err := ParseControllerFile(string(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, fmt.Sprintf("Invalid %s: %v", path, err), err)
	}
	return cfg, nil
}

// ParseControllerFile parses controller configuration from a KDL string.
func ParseControllerFile(data string) (*ControllerFile, error) {
	var cfg ControllerFile
	if err := kdl.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
