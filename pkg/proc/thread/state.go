package thread

// State is the execution state of a thread, or the state a thread should
// enter when it is resumed.
type State uint8

const (
	Created State = iota
	Running
	Stepping
	Stopped
	Suspended
	Exited
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stepping:
		return "stepping"
	case Stopped:
		return "stopped"
	case Suspended:
		return "suspended"
	case Exited:
		return "exited"
	}
	return "invalid"
}
