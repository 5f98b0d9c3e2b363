package thread

import "fmt"

// StopKind is the classified cause of a thread stop.
type StopKind uint8

const (
	StopNone StopKind = iota
	StopBreakpoint
	StopWatchpoint
	StopSignal
	StopTrace
	StopCrash
	StopNewThread
	StopExec
	StopLimbo
)

func (k StopKind) String() string {
	switch k {
	case StopNone:
		return "none"
	case StopBreakpoint:
		return "breakpoint"
	case StopWatchpoint:
		return "watchpoint"
	case StopSignal:
		return "signal"
	case StopTrace:
		return "trace"
	case StopCrash:
		return "crash"
	case StopNewThread:
		return "new thread"
	case StopExec:
		return "exec"
	case StopLimbo:
		return "limbo"
	}
	return fmt.Sprintf("StopKind(%d)", uint8(k))
}

// StopReason describes why a thread stopped. Only the fields relevant to
// Kind are set.
type StopReason struct {
	Kind StopKind

	// Breakpoint
	SiteID     int
	ShouldStop bool

	// Watchpoint
	WatchpointID int

	// Signal and Crash
	Signo int

	// Crash
	Crash     CrashReason
	FaultAddr uint64
}

// Description returns a one line description of the stop.
func (sr StopReason) Description() string {
	switch sr.Kind {
	case StopBreakpoint:
		if !sr.ShouldStop {
			return fmt.Sprintf("breakpoint site %d (other thread)", sr.SiteID)
		}
		return fmt.Sprintf("breakpoint site %d", sr.SiteID)
	case StopWatchpoint:
		return fmt.Sprintf("watchpoint %d", sr.WatchpointID)
	case StopSignal:
		return fmt.Sprintf("signal %d", sr.Signo)
	case StopCrash:
		return fmt.Sprintf("%s (fault address: %#x)", sr.Crash, sr.FaultAddr)
	}
	return sr.Kind.String()
}

// CrashReason is the decoded cause of a fault signal.
type CrashReason uint8

const (
	CrashInvalid CrashReason = iota

	// SIGSEGV
	InvalidAddress
	PrivilegedAddress

	// SIGILL
	IllegalOpcode
	IllegalOperand
	IllegalAddressingMode
	IllegalTrap
	PrivilegedOpcode
	PrivilegedRegister
	CoprocessorError
	InternalStackError

	// SIGBUS
	IllegalAlignment
	IllegalAddress
	HardwareError

	// SIGFPE
	IntegerDivideByZero
	IntegerOverflow
	FloatDivideByZero
	FloatOverflow
	FloatUnderflow
	FloatInexactResult
	FloatInvalidOperation
	FloatSubscriptRange
)

var crashReasonNames = [...]string{
	CrashInvalid:          "invalid crash reason",
	InvalidAddress:        "invalid address",
	PrivilegedAddress:     "address access protected",
	IllegalOpcode:         "illegal instruction",
	IllegalOperand:        "illegal instruction operand",
	IllegalAddressingMode: "illegal addressing mode",
	IllegalTrap:           "illegal trap",
	PrivilegedOpcode:      "privileged instruction",
	PrivilegedRegister:    "privileged register",
	CoprocessorError:      "coprocessor error",
	InternalStackError:    "internal stack error",
	IllegalAlignment:      "illegal alignment",
	IllegalAddress:        "illegal address",
	HardwareError:         "hardware error",
	IntegerDivideByZero:   "integer divide by zero",
	IntegerOverflow:       "integer overflow",
	FloatDivideByZero:     "floating point divide by zero",
	FloatOverflow:         "floating point overflow",
	FloatUnderflow:        "floating point underflow",
	FloatInexactResult:    "inexact floating point result",
	FloatInvalidOperation: "invalid floating point operation",
	FloatSubscriptRange:   "invalid floating point subscript range",
}

func (r CrashReason) String() string {
	if int(r) < len(crashReasonNames) {
		return crashReasonNames[r]
	}
	return fmt.Sprintf("CrashReason(%d)", uint8(r))
}

// ParseCrashReason returns the crash reason with the given description.
func ParseCrashReason(s string) (CrashReason, bool) {
	for i, name := range crashReasonNames {
		if name == s {
			return CrashReason(i), true
		}
	}
	return CrashInvalid, false
}
