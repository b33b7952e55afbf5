package process

import (
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

// Spawned is a daemon process started by Spawner.
type Spawned struct {
	PID uint32
	// Exited receives the wait result if the process exits while the
	// controller is still running.
	Exited <-chan error
}

// Spawner starts daemon processes detached from the controller.
type Spawner struct {
	log logrus.FieldLogger
}

// NewSpawner creates a Spawner.
func NewSpawner(log logrus.FieldLogger) *Spawner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Spawner{log: log}
}

// Spawn starts binary with args in its own process group. Its stdio is the
// null device. The child is waited on in the background so it never lingers
// as a zombie while the controller runs; once the controller exits the
// daemon is reparented.
func (s *Spawner) Spawn(binary string, args []string) (*Spawned, error) {
	cmd := exec.Command(binary, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindProcess, fmt.Sprintf("Failed to start mobile access daemon: %v", err), err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	pid := uint32(cmd.Process.Pid)
	s.log.WithFields(logrus.Fields{"pid": pid, "binary": binary}).Debug("spawned daemon")
	return &Spawned{PID: pid, Exited: exited}, nil
}
