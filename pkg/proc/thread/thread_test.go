package thread_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/go-delve/nativethread/pkg/proc/fakeproc"
	"github.com/go-delve/nativethread/pkg/proc/regctx"
	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/thread"
)

var linuxAMD64 = regctx.Arch{OS: regctx.Linux, Core: regctx.X86_64}

type fixture struct {
	p     *fakeproc.Process
	sites *fakeproc.Sites
	wps   *fakeproc.Watchpoints
	cfg   thread.Config
}

func newFixture(arch regctx.Arch, hostPtrSize int) *fixture {
	table, err := regctx.LayoutFor(arch, hostPtrSize)
	if err != nil {
		panic(err)
	}
	f := &fixture{
		p:     fakeproc.NewProcess(table),
		sites: fakeproc.NewSites(),
		wps:   fakeproc.NewWatchpoints(),
	}
	f.cfg = thread.Config{
		Arch:        arch,
		HostPtrSize: hostPtrSize,
		Stops:       new(regctx.StopCounter),
		Sites:       f.sites,
		Watchpoints: f.wps,
	}
	return f
}

func (f *fixture) thread(t *testing.T, tid int) *thread.Thread {
	t.Helper()
	th, err := thread.New(tid, f.p, f.cfg)
	require.NoError(t, err)
	return th
}

// stop simulates a stop of the process.
func (f *fixture) stop(ths ...*thread.Thread) {
	f.cfg.Stops.Bump()
	for _, th := range ths {
		th.RefreshStateAfterStop()
	}
}

func (f *fixture) reg(t *testing.T, tid int, name string) uint64 {
	t.Helper()
	v, err := f.p.Register(tid, name)
	require.NoError(t, err)
	return v
}

func TestNewUnsupportedArch(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	cfg := f.cfg
	cfg.Arch = regctx.Arch{OS: regctx.Linux, Core: regctx.MIPS64}
	_, err := thread.New(1, f.p, cfg)
	require.True(t, errors.Is(err, regctx.ErrUnsupportedArch))
}

func TestBreakpointNotify(t *testing.T) {
	const (
		owned   = 0x401000
		foreign = 0x402000
		none    = 0x403000
	)
	for _, tc := range []struct {
		name string
		pc   uint64
		want func(ownedID, foreignID int) thread.StopReason
	}{
		{"owned", owned, func(id, _ int) thread.StopReason {
			return thread.StopReason{Kind: thread.StopBreakpoint, SiteID: id, ShouldStop: true}
		}},
		{"other thread", foreign, func(_, id int) thread.StopReason {
			return thread.StopReason{Kind: thread.StopBreakpoint, SiteID: id, ShouldStop: false}
		}},
		{"no site", none, func(int, int) thread.StopReason {
			return thread.StopReason{Kind: thread.StopNone}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(linuxAMD64, 8)
			ownedID := f.sites.Add(owned)
			foreignID := f.sites.Add(foreign, 2)
			th := f.thread(t, 1)

			require.NoError(t, f.p.SetRegister(1, "rip", tc.pc+1))
			f.stop(th)
			require.NoError(t, th.Notify(thread.Event{Kind: thread.EventBreakpoint, TID: 1}))

			require.Equal(t, tc.want(ownedID, foreignID), th.StopInfo())
			require.Equal(t, thread.Stopped, th.State())
			require.Equal(t, tc.pc, f.reg(t, 1, "rip"), "pc must point back at the site")
		})
	}
}

func TestBreakpointNotifyMIPS(t *testing.T) {
	f := newFixture(regctx.Arch{OS: regctx.FreeBSD, Core: regctx.MIPS64}, 8)
	id := f.sites.Add(0x120001000)
	th := f.thread(t, 1)
	require.NoError(t, f.p.SetRegister(1, "pc", 0x120001000))
	f.stop(th)
	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventBreakpoint, TID: 1}))
	require.Equal(t, thread.StopReason{Kind: thread.StopBreakpoint, SiteID: id, ShouldStop: true}, th.StopInfo())
}

func TestSignalAndResume(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)
	f.stop(th)

	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventSignalDelivered, TID: 1, Signo: 10}))
	require.Equal(t, thread.StopReason{Kind: thread.StopSignal, Signo: 10}, th.StopInfo())
	require.Equal(t, 10, th.ResumeSignal())

	require.NoError(t, th.Resume())
	require.Equal(t, thread.Running, th.State())
	require.Equal(t, 0, th.ResumeSignal())
	require.Equal(t, []fakeproc.Call{{Op: "resume", TID: 1, Signo: 10}}, f.p.Calls())
}

func TestResumeStates(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)

	th.WillResume(thread.Stepping)
	th.SetResumeSignal(5)
	require.NoError(t, th.Resume())
	require.Equal(t, thread.Stepping, th.State())

	for _, s := range []thread.State{thread.Stopped, thread.Suspended} {
		th.WillResume(s)
		require.NoError(t, th.Resume())
	}
	require.Equal(t, []fakeproc.Call{{Op: "step", TID: 1, Signo: 5}}, f.p.Calls())

	f.stop(th)
	require.Equal(t, thread.Running, th.ResumeState())
}

func TestResumeFailure(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)
	errBoom := errors.New("boom")
	f.p.Fail("resume", errBoom)
	th.SetResumeSignal(9)

	err := th.Resume()
	require.True(t, errors.Is(err, errBoom))
	require.Equal(t, 9, th.ResumeSignal(), "signal kept for the next attempt")
}

func TestCrashLimboNewThread(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)

	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventCrash, TID: 1, Signo: 11, Crash: thread.InvalidAddress, FaultAddr: 0xdead}))
	sr := th.StopInfo()
	require.Equal(t, thread.StopReason{Kind: thread.StopCrash, Signo: 11, Crash: thread.InvalidAddress, FaultAddr: 0xdead}, sr)
	require.Equal(t, "invalid address (fault address: 0xdead)", sr.Description())
	require.Equal(t, 11, th.ResumeSignal())

	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventLimbo, TID: 1}))
	require.Equal(t, thread.StopLimbo, th.StopInfo().Kind)
	require.Equal(t, thread.Stopped, th.State())

	// Limbo is not a halt, a running thread stays running.
	require.NoError(t, th.Resume())
	require.Equal(t, thread.Running, th.State())
	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventLimbo, TID: 1}))
	require.Equal(t, thread.StopLimbo, th.StopInfo().Kind)
	require.Equal(t, thread.Running, th.State())

	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventNewThread, TID: 1, ChildTID: 2}))
	require.Equal(t, thread.StopNewThread, th.StopInfo().Kind)
}

func TestExit(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)
	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventExit, TID: 1}))
	require.Equal(t, thread.Exited, th.State())
	require.True(t, errors.Is(th.Notify(thread.Event{Kind: thread.EventSignal, TID: 1, Signo: 2}), thread.ErrThreadExited))
	require.True(t, errors.Is(th.Resume(), thread.ErrThreadExited))
	require.Empty(t, f.p.Calls())
}

func TestExecRebuildsContext(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)
	before := th.RegisterContext()
	require.Same(t, before, th.RegisterContext())

	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventExec, TID: 1}))
	require.Equal(t, thread.StopExec, th.StopInfo().Kind)
	after := th.RegisterContext()
	require.NotSame(t, before, after)
	require.Equal(t, 4, th.NumSupportedHardwareWatchpoints())
}

func TestWatchpointNotify(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)

	idx, ok := th.FindVacantWatchpointIndex()
	require.True(t, ok)
	require.Equal(t, 0, idx)
	wp := f.wps.Add(thread.Watchpoint{Addr: 0x5000, Size: 8, Write: true, HWIndex: idx})
	require.NoError(t, th.EnableHardwareWatchpoint(wp))

	require.NoError(t, f.p.SetWatchpointHit(1, 0))
	f.stop(th)
	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventWatchpoint, TID: 1, HWAddr: 0x5000}))
	require.Equal(t, thread.StopReason{Kind: thread.StopWatchpoint, WatchpointID: wp.ID}, th.StopInfo())
	require.Zero(t, f.reg(t, 1, "dr6")&0xf, "hit bits must be cleared")

	// A single step with a pending hit reports the watchpoint.
	require.NoError(t, f.p.SetWatchpointHit(1, 0))
	f.stop(th)
	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventTrace, TID: 1}))
	require.Equal(t, thread.StopReason{Kind: thread.StopWatchpoint, WatchpointID: wp.ID}, th.StopInfo())
	require.Zero(t, f.reg(t, 1, "dr6")&0xf, "hit bits must be cleared")

	f.stop(th)
	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventTrace, TID: 1}))
	require.Equal(t, thread.StopReason{Kind: thread.StopTrace}, th.StopInfo())

	require.NoError(t, th.DisableHardwareWatchpoint(wp))
	require.Zero(t, f.reg(t, 1, "dr7"))
}

func TestTraceWithoutDebugRegisters(t *testing.T) {
	f := newFixture(regctx.Arch{OS: regctx.FreeBSD, Core: regctx.MIPS64}, 8)
	th := f.thread(t, 1)
	require.Equal(t, 0, th.NumSupportedHardwareWatchpoints())
	_, ok := th.FindVacantWatchpointIndex()
	require.False(t, ok)
	require.NoError(t, th.Notify(thread.Event{Kind: thread.EventTrace, TID: 1}))
	require.Equal(t, thread.StopTrace, th.StopInfo().Kind)
}

// A thread created while watchpoints are enabled inherits the debug
// registers of the thread that cloned it, they must not be reset by the
// first slot lookup.
func TestClonedThreadKeepsWatchpoints(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	parent := f.thread(t, 1)
	wp := f.wps.Add(thread.Watchpoint{Addr: 0x5000, Size: 8, Write: true, HWIndex: 0})
	require.NoError(t, parent.EnableHardwareWatchpoint(wp))
	require.Equal(t, uint64(0x90001), f.reg(t, 1, "dr7"))

	f.p.Clone(1, 2)
	child := f.thread(t, 2)
	require.True(t, child.WatchpointsInitialized())
	idx, ok := child.FindVacantWatchpointIndex()
	require.True(t, ok)
	require.Equal(t, 1, idx)
	require.Equal(t, uint64(0x90001), f.reg(t, 2, "dr7"))

	require.NoError(t, f.p.SetWatchpointHit(2, 0))
	f.stop(parent, child)
	require.NoError(t, child.Notify(thread.Event{Kind: thread.EventWatchpoint, TID: 2}))
	require.Equal(t, thread.StopReason{Kind: thread.StopWatchpoint, WatchpointID: wp.ID}, child.StopInfo())
}

func TestFreshThreadResetsDebugRegisters(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	require.NoError(t, f.p.SetRegister(3, "dr7", 0x1))
	th := f.thread(t, 3)
	require.False(t, th.WatchpointsInitialized())
	idx, ok := th.FindVacantWatchpointIndex()
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.Zero(t, f.reg(t, 3, "dr7"))
}

func TestName(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)
	f.p.SetThreadName(1, "worker")
	require.Equal(t, "worker", th.Name())

	f.p.SetThreadName(1, "renamed")
	require.Equal(t, "worker", th.Name(), "name is resolved once")

	th.SetName("")
	require.Equal(t, "renamed", th.Name())
	th.SetName("main")
	require.Equal(t, "main", th.Name())

	other := f.thread(t, 2)
	f.p.Fail("name", errors.New("no comm"))
	require.Equal(t, "", other.Name())
}

func TestThreadPointer(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	th := f.thread(t, 1)
	f.p.SetThreadPointer(1, 0x7f0000001000)
	tp, ok := th.ThreadPointer()
	require.True(t, ok)
	require.Equal(t, uint64(0x7f0000001000), tp)

	f.p.Fail("tp", errors.New("no tls"))
	_, ok = th.ThreadPointer()
	require.False(t, ok)
}

func TestRegisterLookupsUseThreadArch(t *testing.T) {
	f := newFixture(regctx.Arch{OS: regctx.Linux, Core: regctx.I386}, 8)
	th := f.thread(t, 1)

	name, ok := th.RegisterNameFromOffset(80)
	require.True(t, ok)
	require.Equal(t, "eax", name)
	name, ok = th.RegisterNameFromOffset(848 + 7*8)
	require.True(t, ok)
	require.Equal(t, "dr7", name)
	_, ok = th.RegisterNameFromOffset(120) // orig_rax
	require.False(t, ok)

	i, ok := th.RegisterIndexFromOffset(80)
	require.True(t, ok)
	want, _ := reglayout.LinuxI386OnAMD64.Index("eax")
	require.Equal(t, want, i)
	_, ok = th.RegisterName(reglayout.LinuxI386OnAMD64.Len())
	require.False(t, ok)
}

func TestRegisterContextForFrame(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	frame := fakeproc.NewFrame(reglayout.LinuxAMD64)
	rip, _ := reglayout.LinuxAMD64.Index("rip")
	frame.Values[rip] = 0x401234
	calls := 0
	f.cfg.NewUnwinder = func(*thread.Thread) thread.Unwinder {
		calls++
		return &fakeproc.Unwinder{Frames: map[int]*fakeproc.Frame{1: frame}}
	}
	th := f.thread(t, 1)

	r, err := th.RegisterContextForFrame(0)
	require.NoError(t, err)
	require.Equal(t, regctx.Reader(th.RegisterContext()), r)

	r, err = th.RegisterContextForFrame(1)
	require.NoError(t, err)
	v, err := r.ReadUint(rip)
	require.NoError(t, err)
	require.Equal(t, uint64(0x401234), v)

	_, err = th.RegisterContextForFrame(2)
	require.Error(t, err)
	_, err = th.RegisterContextForFrame(-1)
	require.Error(t, err)
	require.Equal(t, 1, calls)

	f.cfg.NewUnwinder = nil
	_, err = f.thread(t, 2).RegisterContextForFrame(1)
	require.Error(t, err)
}

func TestTracker(t *testing.T) {
	f := newFixture(linuxAMD64, 8)
	reg := prometheus.NewRegistry()
	m := thread.NewMetrics(reg)
	tr := thread.NewTracker(f.p, f.cfg, m)
	f.sites.Add(0x401000)

	require.NoError(t, f.p.SetRegister(1, "rip", 0x401001))
	require.NoError(t, tr.Dispatch(
		thread.Event{Kind: thread.EventBreakpoint, TID: 1},
		thread.Event{Kind: thread.EventSignal, TID: 3, Signo: 10},
	))
	th1, ok := tr.Thread(1)
	require.True(t, ok)
	require.Equal(t, thread.StopBreakpoint, th1.StopInfo().Kind)
	require.Equal(t, uint32(1), tr.Stops().Load())
	require.Equal(t, 1.0, testutil.ToFloat64(m.Stops.WithLabelValues("breakpoint")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Stops.WithLabelValues("signal")))

	require.NoError(t, tr.Dispatch(thread.Event{Kind: thread.EventNewThread, TID: 1, ChildTID: 2}))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Threads))

	require.NoError(t, tr.Dispatch(thread.Event{Kind: thread.EventExit, TID: 3}))
	_, ok = tr.Thread(3)
	require.False(t, ok)
	require.Equal(t, 2.0, testutil.ToFloat64(m.Threads))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("exit")))

	ids := []int{}
	for _, th := range tr.Threads() {
		ids = append(ids, th.ID)
	}
	require.Equal(t, []int{1, 2}, ids)

	require.NoError(t, tr.Resume())
	require.Equal(t, []fakeproc.Call{
		{Op: "resume", TID: 1, Signo: 0},
		{Op: "resume", TID: 2, Signo: 0},
	}, f.p.Calls())
}
