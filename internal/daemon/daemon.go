// Package daemon talks to a running codex-monitor daemon: it classifies the
// endpoint behind a listen address, reads the daemon's identity, decides
// whether a running instance is compatible with this controller and asks it
// to shut down.
package daemon

// Version is the controller version. A running daemon must report the same
// version to be kept. Set at build time with
// -ldflags "-X github.com/codexmonitor/daemonctl/internal/daemon.Version=x.y.z".
var Version = "0.1.0"

const (
	// ExpectedName is the name a managed daemon reports in daemon_info.
	ExpectedName = "codex-monitor-daemon"
	// ExpectedMode is the transport mode a managed daemon reports.
	ExpectedMode = "tcp"
)
