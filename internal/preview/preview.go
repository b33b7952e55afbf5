// Package preview renders the daemon launch command without running it.
package preview

import (
	"runtime"
	"strings"
)

// TokenPlaceholder stands in for the token in previews.
const TokenPlaceholder = "<remote-backend-token>"

// Style selects the shell quoting convention.
type Style int

const (
	POSIX Style = iota
	Windows
)

// PlatformStyle returns the quoting style for the running OS.
func PlatformStyle() Style {
	if runtime.GOOS == "windows" {
		return Windows
	}
	return POSIX
}

// Command is a rendered daemon launch command.
type Command struct {
	Command         string   `json:"command"`
	DaemonPath      string   `json:"daemonPath"`
	Args            []string `json:"args"`
	TokenConfigured bool     `json:"tokenConfigured"`
}

// Options describe the daemon launch to preview.
type Options struct {
	DaemonPath      string
	ListenAddr      string
	DataDir         string
	InsecureNoAuth  bool
	TokenConfigured bool
	Style           Style
}

// Args returns the daemon arguments with the token replaced by a
// placeholder. The real token never appears in a preview.
func Args(listenAddr, dataDir string, insecureNoAuth bool) []string {
	args := []string{"--listen", listenAddr, "--data-dir", dataDir}
	if insecureNoAuth {
		return append(args, "--insecure-no-auth")
	}
	return append(args, "--token", TokenPlaceholder)
}

// Build renders the launch command.
func Build(o Options) Command {
	args := Args(o.ListenAddr, o.DataDir, o.InsecureNoAuth)

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, Quote(o.DaemonPath, o.Style))
	for _, arg := range args {
		parts = append(parts, Quote(arg, o.Style))
	}

	return Command{
		Command:         strings.Join(parts, " "),
		DaemonPath:      o.DaemonPath,
		Args:            args,
		TokenConfigured: o.TokenConfigured,
	}
}

// Quote quotes s as a single shell word. Every value is quoted, even when
// it would be safe bare, so the preview is stable.
func Quote(s string, style Style) string {
	if s == "" {
		return "''"
	}
	if style == Windows {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
