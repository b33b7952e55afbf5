// Package process maps local listening ports to owning processes,
// terminates processes with bounded escalation and spawns detached daemons.
package process

import (
	"context"
	"net/netip"
	"strings"

	"github.com/sirupsen/logrus"
)

// Provider looks up the pid listening on a local TCP port.
// ok is false when the provider has no answer (tool missing, no match,
// unparsable output); the next provider is then consulted.
type Provider interface {
	Name() string
	ListenerPID(ctx context.Context, port uint16) (pid uint32, ok bool)
}

// Discoverer resolves the process owning a daemon's listen port by asking
// its providers in order.
type Discoverer struct {
	providers []Provider
	log       logrus.FieldLogger
}

// NewDiscoverer creates a Discoverer. With no providers the platform
// defaults are used.
func NewDiscoverer(log logrus.FieldLogger, providers ...Provider) *Discoverer {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Discoverer{providers: providers, log: log}
}

// ResolveOwningPID returns the pid listening on listenAddr's port.
//
// Only loopback and unspecified hosts are resolved. Pids 0 and 1 are never
// returned. When expectedPID is non-zero and discovery finds a different
// pid, nothing is returned: some other process took the port after the
// daemon identified itself.
func (d *Discoverer) ResolveOwningPID(ctx context.Context, listenAddr string, expectedPID uint32) (uint32, bool) {
	port, ok := LocalListenerPort(listenAddr)
	if !ok {
		return 0, false
	}

	for _, provider := range d.providers {
		pid, found := provider.ListenerPID(ctx, port)
		if !found {
			continue
		}
		log := d.log.WithFields(logrus.Fields{"provider": provider.Name(), "port": port, "pid": pid})
		pid, safe := SafePID(pid)
		if !safe {
			log.Debug("refusing to target a system pid")
			return 0, false
		}
		if expectedPID != 0 && expectedPID != pid {
			log.WithField("expected", expectedPID).Debug("listener pid does not match daemon-reported pid")
			return 0, false
		}
		log.Debug("resolved listener pid")
		return pid, true
	}
	return 0, false
}

// LocalListenerPort returns the port of listenAddr when its host is a
// loopback or unspecified address.
func LocalListenerPort(listenAddr string) (uint16, bool) {
	addr, err := netip.ParseAddrPort(strings.TrimSpace(listenAddr))
	if err != nil {
		return 0, false
	}
	ip := addr.Addr()
	if !ip.IsLoopback() && !ip.IsUnspecified() {
		return 0, false
	}
	return addr.Port(), true
}

// SafePID rejects pids that must never be signalled.
func SafePID(pid uint32) (uint32, bool) {
	if pid <= 1 {
		return 0, false
	}
	return pid, true
}
