package taskqueue

// State of the queue worker.
type State int

const (
	StateStopped State = iota
	StateRunning
	// StateDraining is entered by Shutdown while the backlog is not empty.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}
