package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codexmonitor/daemonctl/internal/daemon"
	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
	"github.com/codexmonitor/daemonctl/internal/process"
)

// MissingTokenMessage is returned by Start when no token is configured and
// authentication was not explicitly disabled.
const MissingTokenMessage = "Set a Remote backend token before starting mobile access daemon (or pass --insecure-no-auth for development)."

const authFailedMessage = "Daemon is already running but authentication failed."

// DaemonArgs returns the daemon command line for a target.
func DaemonArgs(t Target) []string {
	args := []string{"--listen", t.ListenAddr, "--data-dir", t.DataDir}
	if t.InsecureNoAuth {
		return append(args, "--insecure-no-auth")
	}
	return append(args, "--token", t.Token)
}

// Start makes sure a compatible daemon is running on the configured
// address. A compatible daemon that is already up is left alone. An
// incompatible one is replaced, but only after it is confirmed gone. The
// address is never shared with a second process.
func (c *Controller) Start(ctx context.Context) (Status, error) {
	addr := c.target.ListenAddr
	token := strings.TrimSpace(c.target.Token)
	if !c.target.InsecureNoAuth && token == "" {
		return Status{}, apperrors.New(apperrors.KindConfig, MissingTokenMessage)
	}
	if _, ok := daemon.ConnectAddress(addr); !ok {
		return Status{}, apperrors.Config("Invalid daemon listen address: %s", addr)
	}

	outcome, err := c.probe(ctx)
	if err != nil {
		return Status{}, err
	}
	switch outcome := outcome.(type) {
	case daemon.Running:
		expected := outcome.ExpectedPID()
		pid, hasPID := c.resolvePID(ctx, expected)

		if !outcome.AuthOK {
			return Status{}, apperrors.New(apperrors.KindRemote, firstNonEmpty(outcome.AuthError, authFailedMessage))
		}
		if !daemon.ShouldRestart(outcome.Identity) {
			c.log.WithField("pid", pid).Info("daemon already running")
			s := newStatus(StateRunning, addr)
			s.setPID(pid, hasPID)
			return s, nil
		}
		if err := c.replace(ctx, outcome, pid, hasPID); err != nil {
			return Status{}, err
		}
	case daemon.Foreign:
		return Status{}, apperrors.Newf(apperrors.KindOwnership,
			"Cannot start mobile access daemon because %s is already in use by another process.", addr)
	}

	if err := c.bindTest(addr); err != nil {
		return Status{}, apperrors.Wrap(apperrors.KindTransport,
			fmt.Sprintf("Cannot start mobile access daemon because %s is unavailable: %v", addr, err), err)
	}

	c.log.WithFields(logrus.Fields{
		"binary":   c.target.DaemonPath,
		"dataDir":  c.target.DataDir,
		"insecure": c.target.InsecureNoAuth,
	}).Info("starting daemon")
	spawned, err := c.spawner.Spawn(c.target.DaemonPath, DaemonArgs(c.target))
	if err != nil {
		return Status{}, err
	}
	startedAt := c.now().UnixMilli()

	if err := c.waitReady(ctx, spawned); err != nil {
		return Status{}, err
	}

	s := newStatus(StateRunning, addr)
	s.setPID(spawned.PID, true)
	s.StartedAtMs = &startedAt
	return s, nil
}

// replace stops an incompatible daemon. Any failure aborts the start.
func (c *Controller) replace(ctx context.Context, running daemon.Running, pid uint32, hasPID bool) error {
	reason := daemon.RestartReason(running.Identity)
	gated := daemon.CanForceStop(running.AuthOK, running.Identity)
	expected := running.ExpectedPID()
	log := c.log.WithFields(logrus.Fields{"reason": reason, "ownershipVerified": gated})
	log.Info("restarting daemon")

	acknowledged := true
	if shutdownErr := c.prober.RequestShutdown(ctx, c.target.ListenAddr, c.target.Token); shutdownErr != nil {
		acknowledged = false
		log.WithError(shutdownErr).Info("shutdown request failed")
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}
		if !gated {
			return apperrors.Wrap(apperrors.KindOwnership,
				fmt.Sprintf("%s; automatic restart aborted because daemon ownership could not be verified: %v", reason, shutdownErr), shutdownErr)
		}
		if !hasPID {
			return apperrors.Wrap(apperrors.KindProcess,
				fmt.Sprintf("%s; daemon did not stop and no PID could be resolved for safe forced stop (%v)", reason, shutdownErr), shutdownErr)
		}
		log.WithField("pid", pid).Warn("terminating daemon after failed shutdown request")
		if err := c.term.TerminateGracefully(ctx, pid); err != nil {
			return apperrors.Wrap(apperrors.KindProcess,
				fmt.Sprintf("%s; graceful shutdown failed (%v) and forced stop failed: %v", reason, shutdownErr, err), err)
		}
	}

	gone, err := c.waitUnreachable(ctx)
	if err != nil {
		return err
	}
	if gone {
		return nil
	}

	// A failed request with the gate closed returned above.
	if !gated {
		return apperrors.Ownership("%s; daemon acknowledged shutdown but is still reachable", reason)
	}
	stillThere := "daemon remained reachable"
	if !acknowledged {
		stillThere = "daemon remained reachable after forced stop"
	}
	pid, ok := c.resolvePID(ctx, expected)
	if !ok {
		return apperrors.Process("%s; %s and no PID could be resolved for safe forced stop", reason, stillThere)
	}
	log.WithField("pid", pid).Warn("daemon still reachable, terminating")
	if err := c.term.TerminateGracefully(ctx, pid); err != nil {
		return apperrors.Wrap(apperrors.KindProcess,
			fmt.Sprintf("%s; %s and forced stop failed: %v", reason, stillThere, err), err)
	}
	return nil
}

// waitReady probes the freshly spawned daemon until it answers. A child
// that never becomes ready is terminated before the failure is returned,
// so a failed start leaves nothing behind to bind the port later.
func (c *Controller) waitReady(ctx context.Context, spawned *process.Spawned) error {
	for attempt := 0; attempt < c.readyAttempts; attempt++ {
		select {
		case err := <-spawned.Exited:
			if err != nil {
				return apperrors.Wrap(apperrors.KindProcess, fmt.Sprintf("Mobile access daemon exited during startup: %v", err), err)
			}
			return apperrors.New(apperrors.KindProcess, "Mobile access daemon exited during startup.")
		default:
		}

		outcome, err := c.probe(ctx)
		if err != nil {
			return c.abandon(ctx, spawned, apperrors.Wrap(apperrors.KindInterrupted,
				"Interrupted while waiting for mobile access daemon to start.", err))
		}
		if running, ok := outcome.(daemon.Running); ok && running.AuthOK {
			c.log.WithFields(logrus.Fields{"pid": spawned.PID, "attempts": attempt + 1}).Info("daemon ready")
			return nil
		}
		if !c.sleep(ctx) {
			return c.abandon(ctx, spawned, apperrors.Wrap(apperrors.KindInterrupted,
				"Interrupted while waiting for mobile access daemon to start.", ctx.Err()))
		}
	}
	return c.abandon(ctx, spawned, apperrors.Newf(apperrors.KindProcess,
		"Mobile access daemon did not become reachable at %s after start.", c.target.ListenAddr))
}

// abandon terminates a spawned child that did not become ready and returns
// cause, extended with the termination failure if there was one. The
// child is ours by construction, so no ownership check applies.
func (c *Controller) abandon(ctx context.Context, spawned *process.Spawned, cause *apperrors.Error) error {
	log := c.log.WithField("pid", spawned.PID)
	log.WithError(cause).Warn("terminating daemon that did not become ready")
	if err := c.term.TerminateGracefully(context.WithoutCancel(ctx), spawned.PID); err != nil {
		log.WithError(err).Error("failed to terminate daemon that did not become ready")
		cause.Message = fmt.Sprintf("%s Stopping the spawned daemon (pid %d) also failed: %v", cause.Message, spawned.PID, err)
	}
	return cause
}
