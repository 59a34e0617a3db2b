// Package elevation checks whether the current process has the privileges
// a TUN device open requires, mirroring the teacher's pre-flight checks in
// presentation before a server or client runner ever touches the network
// stack.
package elevation

import "os"

// IsElevated reports whether the current process runs with the privileges
// needed to create a TUN device (root on Unix-likes).
func IsElevated() bool {
	return os.Geteuid() == 0
}

// Hint returns operator-facing guidance for re-running with elevation.
func Hint() string {
	return "re-run with sudo or as root — opening a TUN device requires elevated privileges"
}

// ProcessElevation is the object form main wires into its startup check.
type ProcessElevation struct{}

func NewProcessElevation() *ProcessElevation {
	return &ProcessElevation{}
}

func (*ProcessElevation) IsElevated() bool {
	return IsElevated()
}

func (*ProcessElevation) Hint() string {
	return Hint()
}
