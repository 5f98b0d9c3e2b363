package eventscript

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/fakeproc"
	"github.com/go-delve/nativethread/pkg/proc/regctx"
	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/thread"
)

// Runner executes scripts against an in memory process.
type Runner struct {
	out         io.Writer
	hostPtrSize int
	metrics     *thread.Metrics

	proc    *fakeproc.Process
	sites   *fakeproc.Sites
	wps     *fakeproc.Watchpoints
	tracker *thread.Tracker
	pending []thread.Event
}

// NewRunner creates a runner writing the output of print commands to out.
// Thread metrics are registered with reg if it is not nil. A zero
// hostPtrSize selects the pointer size of this host.
func NewRunner(out io.Writer, hostPtrSize int, reg prometheus.Registerer) *Runner {
	if hostPtrSize == 0 {
		hostPtrSize = regctx.HostPtrSize()
	}
	return &Runner{out: out, hostPtrSize: hostPtrSize, metrics: thread.NewMetrics(reg)}
}

// Metrics returns the thread metrics of the runner.
func (r *Runner) Metrics() *thread.Metrics {
	return r.metrics
}

// Tracker returns the thread table of the current process, nil before an
// arch command.
func (r *Runner) Tracker() *thread.Tracker {
	return r.tracker
}

// Table returns the register table of the current process, nil before an
// arch command.
func (r *Runner) Table() *reglayout.Table {
	if r.proc == nil {
		return nil
	}
	return r.proc.Table()
}

// Run executes every command of s and stops at the first failure.
func (r *Runner) Run(s *Script) error {
	for _, c := range s.Commands {
		if err := r.Exec(c); err != nil {
			return fmt.Errorf("%s:%d: %s: %v", s.Name, c.Line, c.Name, err)
		}
	}
	return nil
}

// Exec executes a single command.
func (r *Runner) Exec(c Command) error {
	cmd, ok := commands[c.Name]
	if !ok {
		return fmt.Errorf("unknown command %q", c.Name)
	}
	if len(c.Args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(c.Args) > cmd.maxArgs) {
		return fmt.Errorf("usage: %s %s", c.Name, cmd.usage)
	}
	if cmd.needArch && r.tracker == nil {
		return fmt.Errorf("no process, use arch first")
	}
	if logflags.Script() {
		logflags.ScriptLogger().Debugf("line %d: %v", c.Line, c)
	}
	return cmd.fn(r, c.Args)
}

type command struct {
	usage    string
	help     string
	minArgs  int
	maxArgs  int // -1 for no limit
	needArch bool
	fn       func(r *Runner, args []string) error
}

var commands = map[string]command{
	"arch":         {"<os/core> [host pointer size]", "Starts a new process with the given architecture.", 1, 2, false, (*Runner).arch},
	"thread":       {"<tid>...", "Starts tracking threads.", 1, -1, true, (*Runner).thread},
	"set":          {"<tid> <register> <value>", "Sets a register as seen by the kernel.", 3, 3, true, (*Runner).set},
	"clone":        {"<parent> <child>", "Copies the registers of a thread to a new thread.", 2, 2, true, (*Runner).clone},
	"name":         {"<tid> <name>", "Sets the name reported by the operating system for a thread.", 2, 2, true, (*Runner).name},
	"tp":           {"<tid> <value>", "Sets the thread pointer of a thread.", 2, 2, true, (*Runner).tp},
	"site":         {"<addr> [tid...]", "Adds a breakpoint site, optionally restricted to some threads.", 1, -1, true, (*Runner).site},
	"watch":        {"<addr> <size> <r|w|rw>", "Adds a watchpoint and programs it on every thread.", 3, 3, true, (*Runner).watch},
	"unwatch":      {"<id>", "Clears a watchpoint on every thread.", 1, 1, true, (*Runner).unwatch},
	"hit":          {"<tid> <slot>", "Sets the status bit of a hardware watchpoint slot.", 2, 2, true, (*Runner).hit},
	"event":        {"<kind> <tid> [signo=N] [crash=reason] [addr=N] [hwaddr=N] [child=N] [status=N]", "Queues an event for the next stop.", 2, -1, true, (*Runner).event},
	"stop":         {"", "Delivers the queued events as one stop of the process.", 0, 0, true, (*Runner).stop},
	"step":         {"<tid>", "Single steps the thread on the next resume.", 1, 1, true, (*Runner).step},
	"suspend":      {"<tid>", "Leaves the thread stopped on the next resume.", 1, 1, true, (*Runner).suspend},
	"signal":       {"<tid> <signo>", "Sets the signal delivered on the next resume.", 2, 2, true, (*Runner).signal},
	"resume":       {"", "Resumes every thread.", 0, 0, true, (*Runner).resume},
	"expect":       {"<tid> <stop reason> [site=N] [shouldstop=B] [watchpoint=N] [signo=N] [crash=reason] [addr=N]", "Checks the stop reason of a thread.", 2, -1, true, (*Runner).expect},
	"expect-state": {"<tid> <state>", "Checks the state of a thread.", 2, 2, true, (*Runner).expectState},
	"expect-reg":   {"<tid> <register> <value>", "Checks a register through the register context of a thread.", 3, 3, true, (*Runner).expectReg},
	"expect-gone":  {"<tid>", "Checks that a thread is no longer tracked.", 1, 1, true, (*Runner).expectGone},
	"expect-calls": {"[op/tid/signo...]", "Checks the resume requests made so far.", 0, -1, true, (*Runner).expectCalls},
	"print":        {"[tid...]", "Prints the state of threads.", 0, -1, true, (*Runner).print},
}

func commandNames() []string {
	r := make([]string, 0, len(commands))
	for name := range commands {
		r = append(r, name)
	}
	sort.Strings(r)
	return r
}

// CommandNames returns the names of the script commands.
func CommandNames() []string {
	return commandNames()
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return int(v), nil
}

// keyValues parses arguments of the form key=value.
func keyValues(args []string, allowed ...string) (map[string]string, error) {
	r := make(map[string]string)
	for _, arg := range args {
		i := strings.IndexByte(arg, '=')
		if i < 0 {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		k, v := arg[:i], arg[i+1:]
		found := false
		for _, a := range allowed {
			if a == k {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown key %q", k)
		}
		r[k] = v
	}
	return r, nil
}

func (r *Runner) threadArg(s string) (*thread.Thread, error) {
	tid, err := parseInt(s)
	if err != nil {
		return nil, err
	}
	t, ok := r.tracker.Thread(tid)
	if !ok {
		return nil, fmt.Errorf("unknown thread %d", tid)
	}
	return t, nil
}

func (r *Runner) arch(args []string) error {
	arch, err := regctx.ParseArch(args[0])
	if err != nil {
		return err
	}
	host := r.hostPtrSize
	if len(args) > 1 {
		if host, err = parseInt(args[1]); err != nil {
			return err
		}
	}
	table, err := regctx.LayoutFor(arch, host)
	if err != nil {
		return err
	}
	r.proc = fakeproc.NewProcess(table)
	r.sites = fakeproc.NewSites()
	r.wps = fakeproc.NewWatchpoints()
	r.pending = nil
	r.tracker = thread.NewTracker(r.proc, thread.Config{
		Arch:        arch,
		HostPtrSize: host,
		Sites:       r.sites,
		Watchpoints: r.wps,
	}, r.metrics)
	return nil
}

func (r *Runner) thread(args []string) error {
	for _, arg := range args {
		tid, err := parseInt(arg)
		if err != nil {
			return err
		}
		if _, err := r.tracker.Add(tid); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) set(args []string) error {
	tid, err := parseInt(args[0])
	if err != nil {
		return err
	}
	v, err := parseUint(args[2])
	if err != nil {
		return err
	}
	return r.proc.SetRegister(tid, args[1], v)
}

func (r *Runner) clone(args []string) error {
	parent, err := parseInt(args[0])
	if err != nil {
		return err
	}
	child, err := parseInt(args[1])
	if err != nil {
		return err
	}
	r.proc.Clone(parent, child)
	return nil
}

func (r *Runner) name(args []string) error {
	tid, err := parseInt(args[0])
	if err != nil {
		return err
	}
	r.proc.SetThreadName(tid, args[1])
	return nil
}

func (r *Runner) tp(args []string) error {
	tid, err := parseInt(args[0])
	if err != nil {
		return err
	}
	v, err := parseUint(args[1])
	if err != nil {
		return err
	}
	r.proc.SetThreadPointer(tid, v)
	return nil
}

func (r *Runner) site(args []string) error {
	addr, err := parseUint(args[0])
	if err != nil {
		return err
	}
	var tids []int
	for _, arg := range args[1:] {
		tid, err := parseInt(arg)
		if err != nil {
			return err
		}
		tids = append(tids, tid)
	}
	id := r.sites.Add(addr, tids...)
	fmt.Fprintf(r.out, "site %d at %#x\n", id, addr)
	return nil
}

func (r *Runner) watch(args []string) error {
	addr, err := parseUint(args[0])
	if err != nil {
		return err
	}
	size, err := parseInt(args[1])
	if err != nil {
		return err
	}
	wp := thread.Watchpoint{Addr: addr, Size: size}
	switch args[2] {
	case "r":
		wp.Read = true
	case "w":
		wp.Write = true
	case "rw":
		wp.Read, wp.Write = true, true
	default:
		return fmt.Errorf("invalid access %q", args[2])
	}
	threads := r.tracker.Threads()
	if len(threads) == 0 {
		return fmt.Errorf("no threads")
	}
	idx, ok := threads[0].FindVacantWatchpointIndex()
	if !ok {
		return fmt.Errorf("no vacant hardware watchpoint slot")
	}
	wp.HWIndex = idx
	for _, t := range threads {
		if err := t.EnableHardwareWatchpoint(wp); err != nil {
			return fmt.Errorf("thread %d: %v", t.ID, err)
		}
	}
	wp = r.wps.Add(wp)
	fmt.Fprintf(r.out, "watchpoint %d at %#x slot %d\n", wp.ID, addr, idx)
	return nil
}

func (r *Runner) unwatch(args []string) error {
	id, err := parseInt(args[0])
	if err != nil {
		return err
	}
	for _, wp := range r.wps.Enabled() {
		if wp.ID != id {
			continue
		}
		for _, t := range r.tracker.Threads() {
			if err := t.DisableHardwareWatchpoint(wp); err != nil {
				return fmt.Errorf("thread %d: %v", t.ID, err)
			}
		}
		r.wps.SetEnabled(id, false)
		return nil
	}
	return fmt.Errorf("no enabled watchpoint %d", id)
}

func (r *Runner) hit(args []string) error {
	tid, err := parseInt(args[0])
	if err != nil {
		return err
	}
	slot, err := parseInt(args[1])
	if err != nil {
		return err
	}
	return r.proc.SetWatchpointHit(tid, slot)
}

func (r *Runner) event(args []string) error {
	kind, ok := thread.ParseEventKind(args[0])
	if !ok {
		return fmt.Errorf("unknown event kind %q", args[0])
	}
	tid, err := parseInt(args[1])
	if err != nil {
		return err
	}
	kv, err := keyValues(args[2:], "signo", "crash", "addr", "hwaddr", "child", "status")
	if err != nil {
		return err
	}
	ev := thread.Event{Kind: kind, TID: tid}
	for k, v := range kv {
		switch k {
		case "signo":
			ev.Signo, err = parseInt(v)
		case "crash":
			var ok bool
			if ev.Crash, ok = thread.ParseCrashReason(v); !ok {
				err = fmt.Errorf("unknown crash reason %q", v)
			}
		case "addr":
			ev.FaultAddr, err = parseUint(v)
		case "hwaddr":
			ev.HWAddr, err = parseUint(v)
		case "child":
			ev.ChildTID, err = parseInt(v)
		case "status":
			ev.Status, err = parseInt(v)
		}
		if err != nil {
			return err
		}
	}
	r.pending = append(r.pending, ev)
	return nil
}

func (r *Runner) stop(args []string) error {
	events := r.pending
	r.pending = nil
	return r.tracker.Dispatch(events...)
}

func (r *Runner) step(args []string) error {
	t, err := r.threadArg(args[0])
	if err != nil {
		return err
	}
	t.WillResume(thread.Stepping)
	return nil
}

func (r *Runner) suspend(args []string) error {
	t, err := r.threadArg(args[0])
	if err != nil {
		return err
	}
	t.WillResume(thread.Suspended)
	return nil
}

func (r *Runner) signal(args []string) error {
	t, err := r.threadArg(args[0])
	if err != nil {
		return err
	}
	signo, err := parseInt(args[1])
	if err != nil {
		return err
	}
	t.SetResumeSignal(signo)
	return nil
}

func (r *Runner) resume(args []string) error {
	return r.tracker.Resume()
}

func (r *Runner) expect(args []string) error {
	t, err := r.threadArg(args[0])
	if err != nil {
		return err
	}
	sr := t.StopInfo()
	want := strings.ReplaceAll(args[1], "-", " ")
	if sr.Kind.String() != want {
		return fmt.Errorf("thread %d: expected stop reason %s, got %s", t.ID, want, sr.Description())
	}
	kv, err := keyValues(args[2:], "site", "shouldstop", "watchpoint", "signo", "crash", "addr")
	if err != nil {
		return err
	}
	for k, v := range kv {
		var got string
		switch k {
		case "site":
			got = strconv.Itoa(sr.SiteID)
		case "shouldstop":
			got = strconv.FormatBool(sr.ShouldStop)
		case "watchpoint":
			got = strconv.Itoa(sr.WatchpointID)
		case "signo":
			got = strconv.Itoa(sr.Signo)
		case "crash":
			got = sr.Crash.String()
		case "addr":
			got = fmt.Sprintf("%#x", sr.FaultAddr)
			if n, err := parseUint(v); err == nil {
				v = fmt.Sprintf("%#x", n)
			}
		}
		if got != v {
			return fmt.Errorf("thread %d: expected %s=%s, got %s", t.ID, k, v, got)
		}
	}
	return nil
}

func (r *Runner) expectState(args []string) error {
	t, err := r.threadArg(args[0])
	if err != nil {
		return err
	}
	if got := t.State().String(); got != args[1] {
		return fmt.Errorf("thread %d: expected state %s, got %s", t.ID, args[1], got)
	}
	return nil
}

func (r *Runner) expectReg(args []string) error {
	t, err := r.threadArg(args[0])
	if err != nil {
		return err
	}
	want, err := parseUint(args[2])
	if err != nil {
		return err
	}
	got, err := t.RegisterContext().ReadByName(args[1])
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("thread %d: expected %s=%#x, got %#x", t.ID, args[1], want, got)
	}
	return nil
}

func (r *Runner) expectGone(args []string) error {
	tid, err := parseInt(args[0])
	if err != nil {
		return err
	}
	if _, ok := r.tracker.Thread(tid); ok {
		return fmt.Errorf("thread %d is still tracked", tid)
	}
	return nil
}

func (r *Runner) expectCalls(args []string) error {
	calls := r.proc.Calls()
	got := make([]string, len(calls))
	for i, c := range calls {
		got[i] = fmt.Sprintf("%s/%d/%d", c.Op, c.TID, c.Signo)
	}
	if strings.Join(got, " ") != strings.Join(args, " ") {
		return fmt.Errorf("expected calls [%s], got [%s]", strings.Join(args, " "), strings.Join(got, " "))
	}
	return nil
}

func (r *Runner) print(args []string) error {
	threads := r.tracker.Threads()
	if len(args) > 0 {
		threads = threads[:0:0]
		for _, arg := range args {
			t, err := r.threadArg(arg)
			if err != nil {
				return err
			}
			threads = append(threads, t)
		}
	}
	for _, t := range threads {
		fmt.Fprintf(r.out, "thread %d %q: %v", t.ID, t.Name(), t.State())
		if t.State() == thread.Stopped {
			fmt.Fprintf(r.out, " (%s)", t.StopInfo().Description())
		}
		if pc, err := t.RegisterContext().PC(); err == nil {
			fmt.Fprintf(r.out, " pc=%#x", pc)
		}
		fmt.Fprintln(r.out)
	}
	return nil
}
