// Package config resolves the controller's configuration from command-line
// overrides, the environment, the controller's KDL file and the GUI's
// settings snapshot.
package config

import (
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// AppIdentifier names the GUI application's data directory.
	AppIdentifier = "com.dimillian.codexmonitor"
	// DaemonBinary is the daemon executable name without extension.
	DaemonBinary = "codex-monitor-daemon"
	// DefaultPort is used when no port can be derived from settings.
	DefaultPort = 4732
	// DefaultListenAddr is the listen address without any configuration.
	DefaultListenAddr = "0.0.0.0:4732"
	// TokenEnvVar overrides the settings token.
	TokenEnvVar = "CODEX_MONITOR_DAEMON_TOKEN"
)

// Overrides are values given on the command line. Empty means unset.
type Overrides struct {
	Listen         string
	Token          string
	DataDir        string
	DaemonPath     string
	InsecureNoAuth bool
}

// Config is the resolved controller configuration.
type Config struct {
	ListenAddr     string
	Token          string // empty when no token is configured or auth is disabled
	DataDir        string
	InsecureNoAuth bool

	// Unresolved daemon path sources; see ResolveDaemonPath.
	DaemonPathFlag string
	DaemonPathFile string

	LogLevel string
}

// Load resolves configuration. The settings file is optional: a missing or
// unreadable file is logged and ignored. A malformed controller file and an
// invalid listen address are errors.
func Load(o Overrides, getenv func(string) string, log logrus.FieldLogger) (*Config, error) {
	dataDir := strings.TrimSpace(o.DataDir)
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	settings, err := LoadSettings(dataDir)
	if err != nil {
		log.WithError(err).WithField("dataDir", dataDir).Debug("settings snapshot not loaded")
		settings = nil
	}

	file, err := LoadControllerFile(dataDir)
	if err != nil {
		return nil, err
	}

	listen, err := ResolveListenAddress(o.Listen, file.Listen, settings)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr:     listen,
		DataDir:        dataDir,
		InsecureNoAuth: o.InsecureNoAuth,
		DaemonPathFlag: o.DaemonPath,
		DaemonPathFile: file.DaemonPath,
		LogLevel:       strings.TrimSpace(file.LogLevel),
	}
	if !o.InsecureNoAuth {
		cfg.Token = ResolveToken(o.Token, getenv(TokenEnvVar), settings)
	}
	return cfg, nil
}

// DaemonPath resolves the daemon binary for this configuration.
func (c *Config) DaemonPath() (string, error) {
	return ResolveDaemonPath(c.DaemonPathFlag, c.DaemonPathFile)
}
