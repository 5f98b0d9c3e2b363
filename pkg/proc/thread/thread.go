// Package thread implements the per-thread state machine of the native
// backend: resume requests, classification of trap and signal events into
// stop reasons, and access to the registers and hardware watchpoints of
// the thread.
package thread

import (
	"errors"
	"fmt"

	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/hwwatch"
	"github.com/go-delve/nativethread/pkg/proc/regctx"
)

// Config holds the process wide collaborators shared by every thread.
type Config struct {
	Arch        regctx.Arch
	HostPtrSize int // zero means the pointer size of this host
	Stops       *regctx.StopCounter

	Sites       BreakpointSites
	Watchpoints WatchpointList
	// NewUnwinder creates the unwinder of a thread, it is called at most
	// once per thread.
	NewUnwinder func(t *Thread) Unwinder
}

// Thread is a traced thread.
type Thread struct {
	ID int

	proc ProcessControl
	cfg  Config
	log  logflags.Logger

	state        State
	resumeState  State
	resumeSignal int
	stop         StopReason

	regs     *regctx.Factory
	watch    *hwwatch.Manager
	watchCtx *regctx.Context // context watch was built on
	unwinder Unwinder

	name      string
	nameValid bool
}

// New creates thread tid. It fails if the registers of cfg.Arch can not
// be accessed from this host.
func New(tid int, proc ProcessControl, cfg Config) (*Thread, error) {
	if cfg.HostPtrSize == 0 {
		cfg.HostPtrSize = regctx.HostPtrSize()
	}
	if cfg.Stops == nil {
		cfg.Stops = new(regctx.StopCounter)
	}
	regs, err := regctx.NewFactory(tid, cfg.Arch, cfg.HostPtrSize, proc, cfg.Stops)
	if err != nil {
		return nil, err
	}
	t := &Thread{
		ID:          tid,
		proc:        proc,
		cfg:         cfg,
		log:         logflags.ThreadLogger().WithField("tid", tid),
		state:       Created,
		resumeState: Running,
		regs:        regs,
	}

	// A thread created while watchpoints are enabled was cloned with the
	// debug registers of its parent, resetting them would lose the
	// watchpoints.
	if cfg.Watchpoints != nil && len(cfg.Watchpoints.Enabled()) > 0 {
		t.watchManager().ForceInitialized()
		if logflags.Thread() {
			t.log.Debugf("inherited debug registers marked initialized")
		}
	}
	return t, nil
}

// State returns the execution state of the thread.
func (t *Thread) State() State {
	return t.state
}

// ResumeState returns the state the thread will enter on the next Resume.
func (t *Thread) ResumeState() State {
	return t.resumeState
}

// ResumeSignal returns the signal delivered on the next Resume, zero if
// none.
func (t *Thread) ResumeSignal() int {
	return t.resumeSignal
}

// SetResumeSignal sets the signal delivered on the next Resume.
func (t *Thread) SetResumeSignal(signo int) {
	t.resumeSignal = signo
}

// Arch returns the architecture of the thread.
func (t *Thread) Arch() regctx.Arch {
	return t.regs.Arch()
}

// RegisterContext returns the register context of the innermost frame.
func (t *Thread) RegisterContext() *regctx.Context {
	return t.regs.RegisterContext()
}

// RegisterContextForFrame returns the register context of frame i. Frame
// zero is the live context, outer frames are synthesized by the unwinder.
func (t *Thread) RegisterContextForFrame(i int) (regctx.Reader, error) {
	if i < 0 {
		return nil, fmt.Errorf("invalid frame %d", i)
	}
	if i == 0 {
		return t.RegisterContext(), nil
	}
	u := t.Unwinder()
	if u == nil {
		return nil, errors.New("no unwinder available")
	}
	return u.RegisterContextForFrame(i)
}

// Unwinder returns the unwinder of the thread, creating it on first use.
func (t *Thread) Unwinder() Unwinder {
	if t.unwinder == nil && t.cfg.NewUnwinder != nil {
		t.unwinder = t.cfg.NewUnwinder(t)
	}
	return t.unwinder
}

func (t *Thread) watchManager() *hwwatch.Manager {
	ctx := t.RegisterContext()
	if t.watch == nil || t.watchCtx != ctx {
		t.watch = hwwatch.New(ctx)
		t.watchCtx = ctx
	}
	return t.watch
}

// WatchpointsInitialized returns true if the debug registers of the thread
// hold state owned by the watchpoint manager.
func (t *Thread) WatchpointsInitialized() bool {
	return t.watchManager().Initialized()
}

// RefreshStateAfterStop prepares the thread after the process stopped:
// cached registers from an earlier stop are discarded and the thread will
// run when resumed.
func (t *Thread) RefreshStateAfterStop() {
	// Not forced, values supplied along with the stop are kept.
	t.RegisterContext().InvalidateIfNeeded(false)
	t.resumeState = Running
	if logflags.Thread() {
		t.log.Debugf("resume state set to %v", t.resumeState)
	}
}

// WillResume sets the state the thread enters on the next Resume.
func (t *Thread) WillResume(state State) {
	if logflags.Thread() {
		t.log.Debugf("resume state set to %v", state)
	}
	t.resumeState = state
}

// DidStop is called after the process stopped. The thread state is
// changed by Notify only, when a stop event for this thread arrives.
func (t *Thread) DidStop() {
}

// Resume applies the resume state: the thread is continued or single
// stepped with the pending resume signal. Stopped and suspended threads
// are left alone.
func (t *Thread) Resume() error {
	if t.state == Exited {
		return ErrThreadExited
	}
	if logflags.Thread() {
		t.log.Debugf("resume, resume state %v signal %d", t.resumeState, t.resumeSignal)
	}
	var err error
	switch t.resumeState {
	case Running:
		t.state = Running
		err = t.proc.Resume(t.ID, t.resumeSignal)
	case Stepping:
		t.state = Stepping
		err = t.proc.SingleStep(t.ID, t.resumeSignal)
	case Stopped, Suspended:
		return nil
	default:
		return contractViolation("thread %d: unexpected resume state %v", t.ID, t.resumeState)
	}
	if err != nil {
		return fmt.Errorf("could not resume thread %d: %w", t.ID, err)
	}
	t.resumeSignal = 0
	return nil
}

// Notify classifies an event reported for the thread into its stop reason.
func (t *Thread) Notify(ev Event) error {
	if t.state == Exited {
		return ErrThreadExited
	}
	if logflags.Thread() {
		t.log.Debugf("notify %v", ev)
	}

	switch ev.Kind {
	case EventExit:
		// The exit status is handled by the process.
		t.state = Exited
		return nil
	case EventLimbo:
		// The thread is about to be reaped, its state is left alone.
		t.stop = StopReason{Kind: StopLimbo}
	case EventSignal, EventSignalDelivered:
		t.setStop(StopReason{Kind: StopSignal, Signo: ev.Signo})
		t.resumeSignal = ev.Signo
	case EventTrace:
		return t.traceNotify(ev)
	case EventBreakpoint:
		return t.breakNotify()
	case EventWatchpoint:
		return t.watchNotify(ev)
	case EventCrash:
		if logflags.Thread() {
			t.log.Debugf("signo %d, reason %q", ev.Signo, ev.Crash)
		}
		t.setStop(StopReason{Kind: StopCrash, Signo: ev.Signo, Crash: ev.Crash, FaultAddr: ev.FaultAddr})
		t.resumeSignal = ev.Signo
	case EventNewThread:
		t.setStop(StopReason{Kind: StopNewThread})
	case EventExec:
		t.setStop(StopReason{Kind: StopExec})
		// The new image gets a new register context and watchpoint
		// manager on next use.
		t.regs.Rebuild()
		t.watch, t.watchCtx = nil, nil
	default:
		return contractViolation("thread %d: unexpected event kind %v", t.ID, ev.Kind)
	}
	return nil
}

func (t *Thread) setStop(sr StopReason) {
	t.state = Stopped
	t.stop = sr
}

func (t *Thread) breakNotify() error {
	regs := t.RegisterContext()
	if err := regs.UpdateAfterBreakpoint(); err != nil {
		return err
	}
	pc, err := regs.PC()
	if err != nil {
		return err
	}
	if logflags.Thread() {
		t.log.Debugf("breakpoint at PC=%#x", pc)
	}

	// A breakpoint owned by another thread does not stop this one, the
	// step over the site happens when the thread is resumed.
	var site BreakpointSite
	found := false
	if t.cfg.Sites != nil {
		site, found = t.cfg.Sites.FindByAddress(pc)
	}
	if !found {
		t.setStop(StopReason{Kind: StopNone})
		return nil
	}
	t.setStop(StopReason{Kind: StopBreakpoint, SiteID: site.ID(), ShouldStop: site.ValidForThread(t.ID)})
	return nil
}

func (t *Thread) watchNotify(ev Event) error {
	if logflags.Thread() {
		t.log.Debugf("hardware watchpoint address %#x", ev.HWAddr)
	}
	m := t.watchManager()
	idx, hit, err := m.FirstHit()
	if err != nil {
		return err
	}
	if !hit {
		return nil
	}
	// Status bits are cleared before the slot is mapped to a watchpoint.
	if err := m.ClearHits(); err != nil {
		return err
	}
	addr, err := m.WatchAddress(idx)
	if err != nil {
		return err
	}
	id, ok := 0, false
	if t.cfg.Watchpoints != nil {
		id, ok = t.cfg.Watchpoints.FindByAddress(addr)
	}
	if !ok {
		return contractViolation("thread %d: no watchpoint at %#x (slot %d)", t.ID, addr, idx)
	}
	t.setStop(StopReason{Kind: StopWatchpoint, WatchpointID: id})
	return nil
}

func (t *Thread) traceNotify(ev Event) error {
	_, hit, err := t.watchManager().FirstHit()
	if err != nil {
		return err
	}
	if hit {
		return t.watchNotify(ev)
	}
	t.setStop(StopReason{Kind: StopTrace})
	return nil
}

// StopInfo returns the stop reason computed by the last Notify.
func (t *Thread) StopInfo() StopReason {
	return t.stop
}

// SetName sets the cached name of the thread, an empty name makes the
// next call to Name ask the operating system.
func (t *Thread) SetName(name string) {
	t.nameValid = name != ""
	t.name = name
}

// Name returns the name of the thread. The name is asked to the operating
// system once.
func (t *Thread) Name() string {
	if !t.nameValid {
		name, err := t.proc.ThreadName(t.ID)
		if err != nil && logflags.Thread() {
			t.log.Debugf("could not read thread name: %v", err)
		}
		t.SetName(name)
		t.nameValid = true
	}
	return t.name
}

// ThreadPointer returns the thread pointer of the thread.
func (t *Thread) ThreadPointer() (uint64, bool) {
	tp, err := t.proc.ReadThreadPointer(t.ID)
	if err != nil {
		if logflags.Thread() {
			t.log.Debugf("could not read thread pointer: %v", err)
		}
		return 0, false
	}
	return tp, true
}

// EnableHardwareWatchpoint programs wp in its hardware slot.
func (t *Thread) EnableHardwareWatchpoint(wp Watchpoint) error {
	return t.watchManager().Enable(wp.Addr, wp.Size, wp.Read, wp.Write, wp.HWIndex)
}

// DisableHardwareWatchpoint clears the hardware slot of wp.
func (t *Thread) DisableHardwareWatchpoint(wp Watchpoint) error {
	return t.watchManager().Disable(wp.HWIndex)
}

// NumSupportedHardwareWatchpoints returns the number of hardware
// watchpoint slots of the thread.
func (t *Thread) NumSupportedHardwareWatchpoints() int {
	return t.watchManager().NumSupported()
}

// FindVacantWatchpointIndex returns the lowest free hardware slot.
func (t *Thread) FindVacantWatchpointIndex() (int, bool) {
	return t.watchManager().FindVacant()
}

// RegisterIndexFromOffset returns the register stored at offset in the
// user area of the thread.
func (t *Thread) RegisterIndexFromOffset(offset int) (int, bool) {
	return t.regs.Table().IndexFromOffset(offset)
}

// RegisterName returns the name of register reg.
func (t *Thread) RegisterName(reg int) (string, bool) {
	return t.regs.Table().RegisterName(reg)
}

// RegisterNameFromOffset returns the name of the register stored at
// offset in the user area of the thread.
func (t *Thread) RegisterNameFromOffset(offset int) (string, bool) {
	i, ok := t.RegisterIndexFromOffset(offset)
	if !ok {
		return "", false
	}
	return t.RegisterName(i)
}
