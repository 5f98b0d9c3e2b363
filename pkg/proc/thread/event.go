package thread

import "fmt"

// EventKind is the kind of a low level event reported by the process
// control backend for a thread.
type EventKind uint8

const (
	EventExit EventKind = iota
	EventLimbo
	EventSignal
	EventSignalDelivered
	EventTrace
	EventBreakpoint
	EventWatchpoint
	EventCrash
	EventNewThread
	EventExec

	numEventKinds
)

var eventKindNames = [...]string{
	EventExit:            "exit",
	EventLimbo:           "limbo",
	EventSignal:          "signal",
	EventSignalDelivered: "signal-delivered",
	EventTrace:           "trace",
	EventBreakpoint:      "breakpoint",
	EventWatchpoint:      "watchpoint",
	EventCrash:           "crash",
	EventNewThread:       "new-thread",
	EventExec:            "exec",
}

func (k EventKind) String() string {
	if k < numEventKinds {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// ParseEventKind returns the event kind with the given name.
func ParseEventKind(s string) (EventKind, bool) {
	for i, name := range eventKindNames {
		if name == s {
			return EventKind(i), true
		}
	}
	return 0, false
}

// Event is a low level event for thread TID.
type Event struct {
	Kind EventKind
	TID  int

	Signo     int         // Signal, SignalDelivered, Crash
	Crash     CrashReason // Crash
	FaultAddr uint64      // Crash
	HWAddr    uint64      // Watchpoint, address reported by the kernel if any
	ChildTID  int         // NewThread
	Status    int         // Exit
}

func (e Event) String() string {
	switch e.Kind {
	case EventSignal, EventSignalDelivered:
		return fmt.Sprintf("%v tid=%d signo=%d", e.Kind, e.TID, e.Signo)
	case EventCrash:
		return fmt.Sprintf("%v tid=%d signo=%d reason=%q addr=%#x", e.Kind, e.TID, e.Signo, e.Crash, e.FaultAddr)
	case EventWatchpoint:
		return fmt.Sprintf("%v tid=%d addr=%#x", e.Kind, e.TID, e.HWAddr)
	case EventNewThread:
		return fmt.Sprintf("%v tid=%d child=%d", e.Kind, e.TID, e.ChildTID)
	case EventExit:
		return fmt.Sprintf("%v tid=%d status=%d", e.Kind, e.TID, e.Status)
	}
	return fmt.Sprintf("%v tid=%d", e.Kind, e.TID)
}
