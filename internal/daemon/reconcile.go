package daemon

import "fmt"

// IsManaged reports whether the identity belongs to a daemon this
// controller manages.
func IsManaged(id *Identity) bool {
	return id != nil && id.Name == ExpectedName
}

// CanForceStop is the ownership gate: a process may only be terminated by
// pid when the daemon authenticated and identified itself as ours.
func CanForceStop(authOK bool, id *Identity) bool {
	return authOK && IsManaged(id)
}

// ShouldRestart reports whether a running daemon must be replaced.
// Only a daemon reporting the expected name, the controller's version and
// the expected mode is kept.
func ShouldRestart(id *Identity) bool {
	return id == nil ||
		!IsManaged(id) ||
		id.Version != Version ||
		id.Mode != ExpectedMode
}

// RestartReason explains ShouldRestart. Rules are evaluated in the same
// order, so the first mismatch is reported.
func RestartReason(id *Identity) string {
	switch {
	case id == nil:
		return "Daemon is running but did not report identity/version metadata"
	case !IsManaged(id):
		return fmt.Sprintf("Daemon identity mismatch (`%s`)", id.Name)
	case id.Version != Version:
		return fmt.Sprintf("Daemon version %s is different from app version %s", id.Version, Version)
	case id.Mode != ExpectedMode:
		return fmt.Sprintf("Daemon mode `%s` does not match expected `%s`", id.Mode, ExpectedMode)
	default:
		return "Daemon restart required"
	}
}
