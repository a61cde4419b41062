// Package connectivity reports whether the backend is reachable and streams
// reachability transitions.
package connectivity

// Monitor exposes the current connectivity state and its changes.
type Monitor interface {
	// IsOnline reports the last observed reachability.
	IsOnline() bool

	// Changes streams reachability transitions: true when connectivity is
	// restored, false when it is lost.
	Changes() <-chan bool
}
