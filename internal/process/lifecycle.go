package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

// errGracefulUnsupported is returned by signalTerm on platforms where a
// polite request cannot reach the target; termination goes straight to the
// forceful step.
var errGracefulUnsupported = errors.New("graceful termination not supported for this process")

// TerminatePolicy bounds the escalation from a polite signal to a kill.
type TerminatePolicy struct {
	Interval      time.Duration // liveness poll interval
	GraceAttempts int           // polls after the polite signal
	KillAttempts  int           // polls after the forceful kill
}

// DefaultTerminatePolicy waits up to 1.2s after SIGTERM and 0.8s after SIGKILL.
func DefaultTerminatePolicy() TerminatePolicy {
	return TerminatePolicy{
		Interval:      100 * time.Millisecond,
		GraceAttempts: 12,
		KillAttempts:  8,
	}
}

// Terminator stops processes by pid.
type Terminator struct {
	policy TerminatePolicy
	log    logrus.FieldLogger

	term          func(pid int) error
	kill          func(pid int) error
	alive         func(pid int) bool
	noSuchProcess func(err error) bool
}

// NewTerminator creates a Terminator using the platform's signals.
func NewTerminator(policy TerminatePolicy, log logrus.FieldLogger) *Terminator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Terminator{
		policy:        policy,
		log:           log,
		term:          signalTerm,
		kill:          signalKill,
		alive:         isProcessAlive,
		noSuchProcess: isNoSuchProcess,
	}
}

// TerminateGracefully sends a polite termination request, waits for the
// process to exit, then kills it and waits again. A process that does not
// exist counts as terminated.
func (t *Terminator) TerminateGracefully(ctx context.Context, pid uint32) error {
	p := int(pid)
	log := t.log.WithField("pid", pid)

	err := t.term(p)
	switch {
	case err == nil:
		log.Debug("sent termination signal")
		gone, waitErr := t.waitExit(ctx, p, t.policy.GraceAttempts)
		if waitErr != nil {
			return waitErr
		}
		if gone {
			return nil
		}
	case t.noSuchProcess(err):
		return nil
	case errors.Is(err, errGracefulUnsupported):
		log.Debug("graceful termination unavailable, killing")
	default:
		return apperrors.Wrap(apperrors.KindProcess, fmt.Sprintf("Failed to stop daemon process %d: %v", pid, err), err)
	}

	log.Debug("process survived termination signal, killing")
	if err := t.kill(p); err != nil && !t.noSuchProcess(err) {
		return apperrors.Wrap(apperrors.KindProcess, fmt.Sprintf("Failed to force-stop daemon process %d: %v", pid, err), err)
	}

	gone, err := t.waitExit(ctx, p, t.policy.KillAttempts)
	if err != nil {
		return err
	}
	if !gone {
		return apperrors.Process("Daemon process %d is still running.", pid)
	}
	return nil
}

// waitExit polls liveness up to attempts times.
func (t *Terminator) waitExit(ctx context.Context, pid, attempts int) (bool, error) {
	for i := 0; i < attempts; i++ {
		if !t.alive(pid) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, apperrors.Wrap(apperrors.KindProcess, fmt.Sprintf("Stopping daemon process %d was interrupted", pid), ctx.Err())
		case <-time.After(t.policy.Interval):
		}
	}
	return !t.alive(pid), nil
}
