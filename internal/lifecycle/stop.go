package lifecycle

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/codexmonitor/daemonctl/internal/daemon"
)

const (
	stillRunningMessage  = "Daemon is still running after stop attempt."
	portTakenAfterStop   = "Configured port is now occupied by a non-daemon process."
	unverifiedAfterAck   = "Daemon acknowledged shutdown but is still reachable; refusing forced stop because daemon ownership could not be verified."
	unresolvedAfterAck   = "Daemon acknowledged shutdown but remained reachable and PID could not be resolved."
	unresolvedAfterForce = "Daemon remained reachable after forced stop and PID could not be resolved."
	ownershipRefusalNote = "refusing forced stop because daemon ownership could not be verified"
)

// Stop shuts the daemon down. A listener that does not speak the daemon
// protocol is never touched. The returned status comes from a probe made
// after the attempt: stopped only if nothing answers any more. An
// interrupted stop is an error status, never stopped.
func (c *Controller) Stop(ctx context.Context) Status {
	addr := c.target.ListenAddr
	var stopErr string

	if ap, err := netip.ParseAddrPort(addr); err == nil {
		outcome, err := c.probe(ctx)
		if err != nil {
			return ErrorStatus(addr, err)
		}
		switch outcome := outcome.(type) {
		case daemon.Running:
			stopErr, err = c.stopRunning(ctx, outcome)
			if err != nil {
				return ErrorStatus(addr, err)
			}
		case daemon.Foreign:
			stopErr = fmt.Sprintf("Port %d is in use by a non-daemon process; refusing to stop it.", ap.Port())
		}
	}
	if stopErr != "" {
		c.log.WithField("error", stopErr).Warn("stop attempt failed")
	}

	after, err := c.probe(ctx)
	if err != nil {
		return ErrorStatus(addr, err)
	}
	pid, hasPID := c.resolvePID(ctx, 0)

	switch outcome := after.(type) {
	case daemon.Running:
		s := newStatus(StateError, addr)
		s.setPID(pid, hasPID)
		s.setError(firstNonEmpty(stopErr, outcome.AuthError, stillRunningMessage))
		return s
	case daemon.Foreign:
		s := newStatus(StateError, addr)
		s.setPID(pid, hasPID)
		s.setError(firstNonEmpty(stopErr, portTakenAfterStop))
		return s
	default:
		s := newStatus(StateStopped, addr)
		s.setError(stopErr)
		return s
	}
}

// stopRunning asks a responding daemon to exit and falls back to
// terminating its pid when the ownership gate allows. It returns the
// failure message, or "" when the daemon is gone. The error is set only
// when ctx ended; nothing is force-stopped after that.
func (c *Controller) stopRunning(ctx context.Context, running daemon.Running) (string, error) {
	gated := daemon.CanForceStop(running.AuthOK, running.Identity)
	expected := running.ExpectedPID()
	log := c.log.WithFields(logrus.Fields{"expectedPid": expected, "ownershipVerified": gated})

	acknowledged := true
	if shutdownErr := c.prober.RequestShutdown(ctx, c.target.ListenAddr, c.target.Token); shutdownErr != nil {
		acknowledged = false
		log.WithError(shutdownErr).Info("shutdown request failed")
		if err := ctx.Err(); err != nil {
			return "", interrupted(err)
		}

		pid, ok := c.resolvePID(ctx, expected)
		switch {
		case !ok:
			return shutdownErr.Error(), nil
		case !gated:
			return fmt.Sprintf("%v; %s", shutdownErr, ownershipRefusalNote), nil
		}
		log.WithField("pid", pid).Warn("terminating daemon after failed shutdown request")
		if err := c.term.TerminateGracefully(ctx, pid); err != nil {
			return fmt.Sprintf("%v; %v", shutdownErr, err), nil
		}
	}

	gone, err := c.waitUnreachable(ctx)
	if err != nil {
		return "", err
	}
	if gone {
		log.Info("daemon stopped")
		return "", nil
	}

	if !gated {
		return unverifiedAfterAck, nil
	}
	pid, ok := c.resolvePID(ctx, expected)
	if !ok {
		if !acknowledged {
			return unresolvedAfterForce, nil
		}
		return unresolvedAfterAck, nil
	}
	log.WithField("pid", pid).Warn("daemon still reachable, terminating")
	if err := c.term.TerminateGracefully(ctx, pid); err != nil {
		if !acknowledged {
			return fmt.Sprintf("Daemon remained reachable after forced stop; %v", err), nil
		}
		return fmt.Sprintf("Daemon acknowledged shutdown but remained reachable; %v", err), nil
	}
	return "", nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
