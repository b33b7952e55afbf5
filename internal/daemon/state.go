package daemon

// Outcome is the classification of a listen address after one probe.
// It is one of Unreachable, Running or Foreign.
type Outcome interface {
	outcome()
}

// Unreachable means nothing accepted a connection within the timeout.
type Unreachable struct{}

// Running means the endpoint speaks the daemon protocol.
type Running struct {
	// AuthOK is true when a ping succeeded, with or without authenticating.
	AuthOK bool
	// AuthError describes why authentication did not succeed.
	AuthError string
	// Identity is nil when daemon_info could not be read.
	Identity *Identity
}

// Foreign means something accepted the connection but does not speak the
// daemon protocol (or rejected it for reasons other than authentication).
type Foreign struct {
	Reason string
}

func (Unreachable) outcome() {}
func (Running) outcome()     {}
func (Foreign) outcome()     {}

// ExpectedPID returns the pid reported by the daemon, or 0.
func (r Running) ExpectedPID() uint32 {
	if r.Identity == nil {
		return 0
	}
	return r.Identity.PID
}
