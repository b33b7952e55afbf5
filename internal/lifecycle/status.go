package lifecycle

import (
	"context"
	"fmt"

	"github.com/codexmonitor/daemonctl/internal/daemon"
	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

// State is the coarse daemon state reported to users.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status is the result of a lifecycle operation. Absent values encode as
// JSON null.
type Status struct {
	State       State   `json:"state"`
	PID         *uint32 `json:"pid"`
	StartedAtMs *int64  `json:"startedAtMs"`
	LastError   *string `json:"lastError"`
	ListenAddr  *string `json:"listenAddr"`
}

func newStatus(state State, listenAddr string) Status {
	s := Status{State: state}
	if listenAddr != "" {
		s.ListenAddr = &listenAddr
	}
	return s
}

func (s *Status) setPID(pid uint32, ok bool) {
	if ok {
		s.PID = &pid
	}
}

func (s *Status) setError(message string) {
	if message != "" {
		s.LastError = &message
	}
}

// ErrorStatus reports a failed operation as a status.
func ErrorStatus(listenAddr string, err error) Status {
	s := newStatus(StateError, listenAddr)
	s.setError(apperrors.Message(err))
	return s
}

// Status reports what is listening on the configured address. It has no
// side effects.
func (c *Controller) Status(ctx context.Context) Status {
	addr := c.target.ListenAddr
	pid, hasPID := c.resolvePID(ctx, 0)

	outcome, err := c.probe(ctx)
	if err != nil {
		return ErrorStatus(addr, err)
	}
	switch outcome := outcome.(type) {
	case daemon.Running:
		s := newStatus(StateRunning, addr)
		s.setPID(pid, hasPID)
		s.setError(outcome.AuthError)
		return s
	case daemon.Foreign:
		s := newStatus(StateError, addr)
		s.setPID(pid, hasPID)
		s.setError(fmt.Sprintf("Configured daemon port %s is occupied by a non-daemon process.", addr))
		return s
	default:
		return newStatus(StateStopped, addr)
	}
}
