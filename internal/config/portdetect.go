package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

// ParsePortFromRemoteHost extracts the port from the GUI's remote backend
// host setting ("100.100.100.1:4732", "[fd7a::1]:4545", "mac.ts.net:8888").
//
// Hosts with more than one colon that are not bracketed are rejected rather
// than guessed at: "fd7a:115c:a1e0::1:4732" is ambiguous.
func ParsePortFromRemoteHost(remoteHost string) (uint16, bool) {
	trimmed := strings.TrimSpace(remoteHost)
	if trimmed == "" {
		return 0, false
	}
	if addr, err := netip.ParseAddrPort(trimmed); err == nil {
		return addr.Port(), true
	}

	idx := strings.LastIndex(trimmed, ":")
	if idx < 0 {
		return 0, false
	}
	host, port := trimmed[:idx], trimmed[idx+1:]
	if host == "" || port == "" || strings.Contains(host, ":") {
		return 0, false
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// ListenAddrFromSettingsHost derives the daemon listen address from the
// remote backend host: the daemon listens on all interfaces on the same
// port, or the default port when none can be derived.
func ListenAddrFromSettingsHost(remoteHost string) string {
	port, ok := ParsePortFromRemoteHost(remoteHost)
	if !ok {
		port = DefaultPort
	}
	return fmt.Sprintf("0.0.0.0:%d", port)
}

// ValidateListenAddress checks that addr is an IP socket address.
func ValidateListenAddress(addr string) error {
	if _, err := netip.ParseAddrPort(addr); err != nil {
		return apperrors.Wrap(apperrors.KindConfig, fmt.Sprintf("Invalid listen address `%s`: %v", addr, err), err)
	}
	return nil
}

// ResolveListenAddress picks the listen address: the --listen flag, then
// the controller file, then the settings host, then the default. The result
// is always validated.
func ResolveListenAddress(flagValue, fileValue string, settings *Settings) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		if _, err := netip.ParseAddrPort(value); err != nil {
			return "", apperrors.Wrap(apperrors.KindConfig, fmt.Sprintf("Invalid --listen address `%s`: %v", value, err), err)
		}
		return value, nil
	}

	resolved := DefaultListenAddr
	switch {
	case strings.TrimSpace(fileValue) != "":
		resolved = strings.TrimSpace(fileValue)
	case settings != nil:
		resolved = ListenAddrFromSettingsHost(settings.RemoteBackendHost)
	}
	if err := ValidateListenAddress(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

// ResolveToken picks the auth token: the --token flag, then the
// environment, then the settings file. Blank values are skipped.
func ResolveToken(flagValue, envValue string, settings *Settings) string {
	for _, candidate := range []string{flagValue, envValue} {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	if settings != nil {
		return strings.TrimSpace(settings.RemoteBackendToken)
	}
	return ""
}
