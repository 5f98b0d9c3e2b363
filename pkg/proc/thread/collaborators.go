package thread

import "github.com/go-delve/nativethread/pkg/proc/regctx"

// ProcessControl is the backend controlling the traced process. Every
// call is synchronous, failures are returned to the caller and never
// retried.
type ProcessControl interface {
	regctx.RegisterIO

	// ReadThreadPointer returns the thread pointer (TLS base) of tid.
	ReadThreadPointer(tid int) (uint64, error)
	// Resume continues tid, delivering signo if it is not zero.
	Resume(tid int, signo int) error
	// SingleStep executes one instruction of tid, delivering signo if it
	// is not zero.
	SingleStep(tid int, signo int) error
	// ThreadName returns the name the operating system reports for tid.
	ThreadName(tid int) (string, error)
}

// BreakpointSite is an address instrumented to trap execution.
type BreakpointSite interface {
	ID() int
	// ValidForThread returns true if one of the breakpoints at the site
	// applies to thread tid.
	ValidForThread(tid int) bool
}

// BreakpointSites looks up breakpoint sites.
type BreakpointSites interface {
	FindByAddress(pc uint64) (BreakpointSite, bool)
}

// Watchpoint is the part of a user watchpoint needed to program hardware.
type Watchpoint struct {
	ID      int
	Addr    uint64
	Size    int
	Read    bool
	Write   bool
	HWIndex int
}

// WatchpointList looks up the watchpoints of the target.
type WatchpointList interface {
	// FindByAddress returns the id of the watchpoint at addr.
	FindByAddress(addr uint64) (int, bool)
	// Enabled returns the currently enabled watchpoints.
	Enabled() []Watchpoint
}

// Unwinder synthesizes the register contexts of outer frames.
type Unwinder interface {
	RegisterContextForFrame(frame int) (regctx.Reader, error)
}
