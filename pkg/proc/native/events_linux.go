package native

import (
	"encoding/binary"
	"unsafe"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/nativethread/pkg/proc/thread"
)

// si_code values of kernel generated signals, see siginfo.h.
const (
	segvMapErr = 1
	segvAccErr = 2

	illIllOpc = 1
	illIllOpn = 2
	illIllAdr = 3
	illIllTrp = 4
	illPrvOpc = 5
	illPrvReg = 6
	illCoproc = 7
	illBadStk = 8

	busAdrAln = 1
	busAdrErr = 2
	busObjErr = 3

	fpeIntDiv = 1
	fpeIntOvf = 2
	fpeFltDiv = 3
	fpeFltOvf = 4
	fpeFltUnd = 5
	fpeFltRes = 6
	fpeFltInv = 7
	fpeFltSub = 8

	trapBrkpt  = 1
	trapTrace  = 2
	trapHWBkpt = 4
	siKernel   = 0x80
)

// siginfo holds the fields of a siginfo_t used to classify a stop.
type siginfo struct {
	Signo int32
	Code  int32
	Addr  uint64 // si_addr, for faults and hardware breakpoints
}

const siginfoSize = 128

// decodeSiginfo decodes a siginfo_t as written by PTRACE_GETSIGINFO. The
// union following si_code is pointer aligned.
func decodeSiginfo(b []byte) siginfo {
	var si siginfo
	si.Signo = int32(binary.LittleEndian.Uint32(b[0:]))
	si.Code = int32(binary.LittleEndian.Uint32(b[8:]))
	if unsafe.Sizeof(uintptr(0)) == 8 {
		si.Addr = binary.LittleEndian.Uint64(b[16:])
	} else {
		si.Addr = uint64(binary.LittleEndian.Uint32(b[12:]))
	}
	return si
}

// crashReason decodes the cause of a fault signal. The second return
// value is false for signals that do not describe a fault or were sent by
// another process.
func crashReason(sig sys.Signal, code int32) (thread.CrashReason, bool) {
	if code <= 0 {
		// SI_USER, SI_TKILL and friends: sent with kill(2).
		return thread.CrashInvalid, false
	}
	switch sig {
	case sys.SIGSEGV:
		switch code {
		case segvMapErr:
			return thread.InvalidAddress, true
		case segvAccErr:
			return thread.PrivilegedAddress, true
		case siKernel:
			// General protection fault, for example a non canonical
			// address on x86_64.
			return thread.InvalidAddress, true
		}
	case sys.SIGILL:
		switch code {
		case illIllOpc:
			return thread.IllegalOpcode, true
		case illIllOpn:
			return thread.IllegalOperand, true
		case illIllAdr:
			return thread.IllegalAddressingMode, true
		case illIllTrp:
			return thread.IllegalTrap, true
		case illPrvOpc:
			return thread.PrivilegedOpcode, true
		case illPrvReg:
			return thread.PrivilegedRegister, true
		case illCoproc:
			return thread.CoprocessorError, true
		case illBadStk:
			return thread.InternalStackError, true
		}
	case sys.SIGBUS:
		switch code {
		case busAdrAln:
			return thread.IllegalAlignment, true
		case busAdrErr:
			return thread.IllegalAddress, true
		case busObjErr:
			return thread.HardwareError, true
		}
	case sys.SIGFPE:
		switch code {
		case fpeIntDiv:
			return thread.IntegerDivideByZero, true
		case fpeIntOvf:
			return thread.IntegerOverflow, true
		case fpeFltDiv:
			return thread.FloatDivideByZero, true
		case fpeFltOvf:
			return thread.FloatOverflow, true
		case fpeFltUnd:
			return thread.FloatUnderflow, true
		case fpeFltRes:
			return thread.FloatInexactResult, true
		case fpeFltInv:
			return thread.FloatInvalidOperation, true
		case fpeFltSub:
			return thread.FloatSubscriptRange, true
		}
	}
	return thread.CrashInvalid, false
}

// classify translates the wait status of tid into a thread event. msg is
// the ptrace event message (PTRACE_GETEVENTMSG) and si the signal
// information of the stop, both are only used for stops.
func classify(tid int, status sys.WaitStatus, msg uint, si siginfo) thread.Event {
	ev := thread.Event{TID: tid}
	switch {
	case status.Exited():
		ev.Kind = thread.EventExit
		ev.Status = status.ExitStatus()
		return ev
	case status.Signaled():
		ev.Kind = thread.EventExit
		ev.Status = -int(status.Signal())
		return ev
	}

	sig := status.StopSignal()
	if sig == sys.SIGTRAP {
		switch status.TrapCause() {
		case sys.PTRACE_EVENT_CLONE, sys.PTRACE_EVENT_FORK, sys.PTRACE_EVENT_VFORK:
			ev.Kind = thread.EventNewThread
			ev.ChildTID = int(msg)
			return ev
		case sys.PTRACE_EVENT_EXEC:
			ev.Kind = thread.EventExec
			return ev
		case sys.PTRACE_EVENT_EXIT:
			// The thread is exiting but can still be inspected.
			ev.Kind = thread.EventLimbo
			ev.Status = int(msg)
			return ev
		}
		switch si.Code {
		case trapBrkpt, siKernel:
			ev.Kind = thread.EventBreakpoint
		case trapTrace:
			ev.Kind = thread.EventTrace
		case trapHWBkpt:
			ev.Kind = thread.EventWatchpoint
			ev.HWAddr = si.Addr
		default:
			ev.Kind = thread.EventSignal
			ev.Signo = int(sig)
		}
		return ev
	}

	if reason, ok := crashReason(sig, si.Code); ok {
		ev.Kind = thread.EventCrash
		ev.Signo = int(sig)
		ev.Crash = reason
		ev.FaultAddr = si.Addr
		return ev
	}
	ev.Kind = thread.EventSignal
	ev.Signo = int(sig)
	return ev
}
