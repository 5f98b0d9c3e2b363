//go:build linux && (amd64 || 386)

package native

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"syscall"
	"unsafe"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	sys "golang.org/x/sys/unix"

	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/thread"
)

const threadNameCacheSize = 256

// Process is a process traced with ptrace. Every ptrace request is issued
// from the same locked OS thread, as the kernel requires.
type Process struct {
	pid int

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}

	names  *lru.Cache // thread id -> name
	tids   map[int]bool
	exited bool
}

var _ thread.ProcessControl = (*Process)(nil)

func newProcess(pid int) *Process {
	names, _ := lru.New(threadNameCacheSize)
	p := &Process{
		pid:            pid,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		names:          names,
		tids:           make(map[int]bool),
	}
	go p.handlePtraceFuncs()
	return p
}

func (p *Process) handlePtraceFuncs() {
	// ptrace(2) requests must all come from the thread that attached.
	runtime.LockOSThread()

	for fn := range p.ptraceChan {
		fn()
		p.ptraceDoneChan <- nil
	}
}

func (p *Process) execPtraceFunc(fn func()) {
	p.ptraceChan <- fn
	<-p.ptraceDoneChan
}

// Attach attaches to every thread of process pid and stops it. Clone,
// exec and exit events of the threads are reported by Wait.
func Attach(pid int) (*Process, error) {
	p := newProcess(pid)
	tids, err := p.taskList()
	if err != nil {
		p.close()
		return nil, err
	}
	for _, tid := range tids {
		if err := p.attachThread(tid); err != nil {
			p.Detach()
			return nil, err
		}
	}
	return p, nil
}

func (p *Process) attachThread(tid int) error {
	var err error
	p.execPtraceFunc(func() { err = sys.PtraceAttach(tid) })
	if err != nil {
		return errors.Wrapf(err, "could not attach to thread %d", tid)
	}
	var status sys.WaitStatus
	if _, err := sys.Wait4(tid, &status, sys.WALL, nil); err != nil {
		return errors.Wrapf(err, "could not wait for thread %d", tid)
	}
	p.execPtraceFunc(func() {
		err = sys.PtraceSetOptions(tid, sys.PTRACE_O_TRACECLONE|sys.PTRACE_O_TRACEEXEC|sys.PTRACE_O_TRACEEXIT)
	})
	if err != nil {
		return errors.Wrapf(err, "could not set ptrace options of thread %d", tid)
	}
	p.tids[tid] = true
	if logflags.Native() {
		logflags.NativeLogger().Debugf("attached to thread %d of %d", tid, p.pid)
	}
	return nil
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.pid
}

// Threads returns the ids of the traced threads.
func (p *Process) Threads() []int {
	r := make([]int, 0, len(p.tids))
	for tid := range p.tids {
		r = append(r, tid)
	}
	sort.Ints(r)
	return r
}

func (p *Process) taskList() ([]int, error) {
	ents, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", p.pid))
	if err != nil {
		return nil, errors.Wrapf(err, "could not list threads of %d", p.pid)
	}
	var tids []int
	for _, ent := range ents {
		tid, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	return tids, nil
}

// Detach detaches from every traced thread and lets the process run.
func (p *Process) Detach() error {
	if p.exited {
		return nil
	}
	var firstErr error
	for _, tid := range p.Threads() {
		var err error
		p.execPtraceFunc(func() { err = ptraceDetach(tid, 0) })
		if err != nil && err != sys.ESRCH && firstErr == nil {
			firstErr = errors.Wrapf(err, "could not detach from thread %d", tid)
		}
	}
	p.close()
	return firstErr
}

func (p *Process) close() {
	p.exited = true
	close(p.ptraceChan)
}

// Wait waits for the next event of any traced thread. New threads and
// exited threads are added to and removed from the thread list.
func (p *Process) Wait() (thread.Event, error) {
	var status sys.WaitStatus
	wpid, err := sys.Wait4(-1, &status, sys.WALL, nil)
	if err != nil {
		return thread.Event{}, errors.Wrap(err, "wait")
	}

	var (
		msg uint
		si  siginfo
	)
	if status.Stopped() {
		if status.StopSignal() == sys.SIGTRAP && status.TrapCause() > 0 {
			p.execPtraceFunc(func() { msg, err = sys.PtraceGetEventMsg(wpid) })
			if err != nil {
				return thread.Event{}, errors.Wrapf(err, "could not get event message of thread %d", wpid)
			}
		} else {
			p.execPtraceFunc(func() { si, err = ptraceGetSiginfo(wpid) })
			if err != nil {
				return thread.Event{}, errors.Wrapf(err, "could not get signal information of thread %d", wpid)
			}
		}
	}

	ev := classify(wpid, status, msg, si)
	switch ev.Kind {
	case thread.EventNewThread:
		p.tids[ev.ChildTID] = true
	case thread.EventExit:
		delete(p.tids, wpid)
		p.names.Remove(wpid)
	case thread.EventExec:
		p.names.Remove(wpid)
	}
	if logflags.Native() {
		logflags.NativeLogger().Debugf("wait: %#x -> %v", uint32(status), ev)
	}
	return ev, nil
}

// ReadGPR reads the general purpose registers of tid. The layout of buf
// is the kernel's user_regs_struct of this host.
func (p *Process) ReadGPR(tid int, buf []byte) error {
	var regs sys.PtraceRegs
	if len(buf) != int(unsafe.Sizeof(regs)) {
		return fmt.Errorf("general purpose register buffer is %d bytes, expected %d", len(buf), unsafe.Sizeof(regs))
	}
	var err error
	p.execPtraceFunc(func() { err = sys.PtraceGetRegs(tid, &regs) })
	if err != nil {
		return errors.Wrapf(err, "PTRACE_GETREGS thread %d", tid)
	}
	copy(buf, (*[unsafe.Sizeof(regs)]byte)(unsafe.Pointer(&regs))[:])
	return nil
}

// WriteGPR writes the general purpose registers of tid.
func (p *Process) WriteGPR(tid int, buf []byte) error {
	var regs sys.PtraceRegs
	if len(buf) != int(unsafe.Sizeof(regs)) {
		return fmt.Errorf("general purpose register buffer is %d bytes, expected %d", len(buf), unsafe.Sizeof(regs))
	}
	copy((*[unsafe.Sizeof(regs)]byte)(unsafe.Pointer(&regs))[:], buf)
	var err error
	p.execPtraceFunc(func() { err = sys.PtraceSetRegs(tid, &regs) })
	if err != nil {
		return errors.Wrapf(err, "PTRACE_SETREGS thread %d", tid)
	}
	return nil
}

// ReadFPR reads the FXSAVE area of tid followed, when the kernel supports
// it, by the XSAVE header and the upper halves of the YMM registers.
func (p *Process) ReadFPR(tid int, buf []byte) error {
	var err error
	p.execPtraceFunc(func() { err = ptraceGetFPRegs(tid, buf) })
	if err != nil {
		return errors.Wrapf(err, "could not read floating point registers of thread %d", tid)
	}
	return nil
}

// WriteFPR writes the floating point registers of tid.
func (p *Process) WriteFPR(tid int, buf []byte) error {
	var err error
	p.execPtraceFunc(func() { err = ptraceSetFPRegs(tid, buf) })
	if err != nil {
		return errors.Wrapf(err, "could not write floating point registers of thread %d", tid)
	}
	return nil
}

// ReadRegister reads size bytes at offset of the user area of tid.
func (p *Process) ReadRegister(tid int, offset, size int) (uint64, error) {
	if size <= 0 || size > 8 {
		return 0, fmt.Errorf("invalid register size %d", size)
	}
	b := make([]byte, size)
	var err error
	p.execPtraceFunc(func() { _, err = sys.PtracePeekUser(tid, uintptr(offset), b) })
	if err != nil {
		return 0, errors.Wrapf(err, "PTRACE_PEEKUSER thread %d offset %#x", tid, offset)
	}
	var v [8]byte
	copy(v[:], b)
	return binary.LittleEndian.Uint64(v[:]), nil
}

// WriteRegister writes size bytes at offset of the user area of tid. The
// other bytes of a partially written word are preserved.
func (p *Process) WriteRegister(tid int, offset, size int, value uint64) error {
	if size <= 0 || size > 8 {
		return fmt.Errorf("invalid register size %d", size)
	}
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], value)
	var err error
	p.execPtraceFunc(func() { _, err = sys.PtracePokeUser(tid, uintptr(offset), v[:size]) })
	if err != nil {
		return errors.Wrapf(err, "PTRACE_POKEUSER thread %d offset %#x", tid, offset)
	}
	if logflags.Native() {
		logflags.NativeLogger().Debugf("thread %d: user area %#x = %#x", tid, offset, value)
	}
	return nil
}

// ReadThreadPointer returns the thread local storage base of tid.
func (p *Process) ReadThreadPointer(tid int) (uint64, error) {
	var (
		tp  uint64
		err error
	)
	p.execPtraceFunc(func() { tp, err = ptraceThreadPointer(tid) })
	if err != nil {
		return 0, errors.Wrapf(err, "could not read thread pointer of thread %d", tid)
	}
	return tp, nil
}

// Resume continues tid.
func (p *Process) Resume(tid int, signo int) error {
	var err error
	p.execPtraceFunc(func() { err = sys.PtraceCont(tid, signo) })
	if err != nil {
		return errors.Wrapf(err, "PTRACE_CONT thread %d", tid)
	}
	return nil
}

// SingleStep steps tid by one instruction.
func (p *Process) SingleStep(tid int, signo int) error {
	var err error
	p.execPtraceFunc(func() { err = ptraceSingleStep(tid, signo) })
	if err != nil {
		return errors.Wrapf(err, "PTRACE_SINGLESTEP thread %d", tid)
	}
	return nil
}

// ThreadName returns the command name of tid. Names are cached until the
// thread execs or exits.
func (p *Process) ThreadName(tid int) (string, error) {
	if name, ok := p.names.Get(tid); ok {
		return name.(string), nil
	}
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/task/%d/comm", p.pid, tid))
	if err != nil {
		return "", errors.Wrapf(err, "could not read name of thread %d", tid)
	}
	name := string(bytes.TrimSuffix(comm, []byte("\n")))
	p.names.Add(tid, name)
	return name, nil
}

// ptraceDetach calls ptrace(PTRACE_DETACH).
func ptraceDetach(tid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(tid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

func ptraceSingleStep(tid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(tid), 0, uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

const _PTRACE_GETSIGINFO = 0x4202

func ptraceGetSiginfo(tid int) (siginfo, error) {
	var buf [siginfoSize]byte
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, _PTRACE_GETSIGINFO, uintptr(tid), 0, uintptr(unsafe.Pointer(&buf[0])), 0, 0)
	if e1 != 0 {
		return siginfo{}, e1
	}
	return decodeSiginfo(buf[:]), nil
}

const _NT_X86_XSTATE = 0x202

// xstateMaxSize bounds the XSAVE area returned by the kernel.
const xstateMaxSize = 8192

func getXstate(tid int) ([]byte, error) {
	xstate := make([]byte, xstateMaxSize)
	iov := sys.Iovec{Base: &xstate[0]}
	iov.SetLen(len(xstate))
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETREGSET, uintptr(tid), _NT_X86_XSTATE, uintptr(unsafe.Pointer(&iov)), 0, 0)
	if e1 != 0 {
		return nil, e1
	}
	return xstate[:int(iov.Len)], nil
}

// xstateUnsupported returns true for the errors returned by kernels or
// CPUs without XSAVE support.
func xstateUnsupported(err error) bool {
	return err == syscall.ENODEV || err == syscall.EIO || err == syscall.EINVAL
}

// ptraceGetFPRegs fills buf with the XSAVE area of tid, or with its FXSAVE
// area if XSAVE is not supported.
func ptraceGetFPRegs(tid int, buf []byte) error {
	xstate, err := getXstate(tid)
	if err == nil {
		copy(buf, xstate)
		return nil
	}
	if !xstateUnsupported(err) {
		return err
	}
	var fx [fxsaveSize]byte
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, ptraceGetFXRegs, uintptr(tid), 0, uintptr(unsafe.Pointer(&fx[0])), 0, 0)
	if e1 != 0 {
		return e1
	}
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, fx[:])
	return nil
}

// ptraceSetFPRegs writes buf to the XSAVE area of tid. The kernel only
// accepts complete XSAVE areas, the components not covered by buf are
// written back unchanged.
func ptraceSetFPRegs(tid int, buf []byte) error {
	xstate, err := getXstate(tid)
	if err == nil {
		copy(xstate, buf)
		iov := sys.Iovec{Base: &xstate[0]}
		iov.SetLen(len(xstate))
		_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SETREGSET, uintptr(tid), _NT_X86_XSTATE, uintptr(unsafe.Pointer(&iov)), 0, 0)
		if e1 != 0 {
			return e1
		}
		return nil
	}
	if !xstateUnsupported(err) {
		return err
	}
	var fx [fxsaveSize]byte
	copy(fx[:], buf)
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, ptraceSetFXRegs, uintptr(tid), 0, uintptr(unsafe.Pointer(&fx[0])), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}
