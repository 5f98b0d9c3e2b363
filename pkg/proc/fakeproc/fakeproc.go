// Package fakeproc implements in memory versions of the collaborators of
// the thread package: a process whose threads have register blobs laid out
// like the kernel's, breakpoint sites, watchpoints and an unwinder. It is
// used by the replay command and by tests.
package fakeproc

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/go-delve/nativethread/pkg/proc/reglayout"
)

// Call records a resume request.
type Call struct {
	Op    string // "resume" or "step"
	TID   int
	Signo int
}

func (c Call) String() string {
	return fmt.Sprintf("%s tid=%d signo=%d", c.Op, c.TID, c.Signo)
}

type fakeThread struct {
	user []byte // user area, general purpose registers at offset zero
	fpr  []byte
	tp   uint64
	name string
}

// Process is a fake traced process. Registers of every thread are stored
// in a user area laid out according to a register table.
type Process struct {
	mu       sync.Mutex
	table    *reglayout.Table
	userSize int
	threads  map[int]*fakeThread
	calls    []Call
	failures map[string]error
}

// NewProcess creates a process whose threads use the given register table.
func NewProcess(table *reglayout.Table) *Process {
	size := table.GPRSize
	for i := 0; i < table.Len(); i++ {
		d, _ := table.Register(i)
		if d.Set != reglayout.SetGPR && d.Set != reglayout.SetDBG {
			continue
		}
		if end := d.Offset + d.Size; end > size {
			size = end
		}
	}
	return &Process{
		table:    table,
		userSize: size,
		threads:  make(map[int]*fakeThread),
		failures: make(map[string]error),
	}
}

// Table returns the register table of the process.
func (p *Process) Table() *reglayout.Table {
	return p.table
}

func (p *Process) thread(tid int) *fakeThread {
	th, ok := p.threads[tid]
	if !ok {
		th = &fakeThread{user: make([]byte, p.userSize), fpr: make([]byte, p.table.FPRSize)}
		p.threads[tid] = th
	}
	return th
}

// Clone creates thread child as a copy of parent, like the kernel does
// with the registers of a new thread.
func (p *Process) Clone(parent, child int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src := p.thread(parent)
	dst := p.thread(child)
	copy(dst.user, src.user)
	copy(dst.fpr, src.fpr)
}

// ThreadIDs returns the ids of the threads that have been accessed.
func (p *Process) ThreadIDs() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := make([]int, 0, len(p.threads))
	for tid := range p.threads {
		r = append(r, tid)
	}
	sort.Ints(r)
	return r
}

// Fail makes every following call of operation op fail with err, a nil err
// clears the failure. Operations are "resume", "step", "gpr", "fpr",
// "peek", "poke", "tp" and "name".
func (p *Process) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

func (p *Process) failure(op string) error {
	return p.failures[op]
}

// Calls returns the resume requests received so far.
func (p *Process) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

func (p *Process) location(name string) (*reglayout.Descriptor, error) {
	i, ok := p.table.Index(name)
	if !ok {
		return nil, fmt.Errorf("unknown register %q", name)
	}
	d, _ := p.table.Register(i)
	if d.Pseudo() || d.Set == reglayout.SetAVX {
		return nil, fmt.Errorf("register %q is not stored directly", name)
	}
	return d, nil
}

func (p *Process) blob(th *fakeThread, d *reglayout.Descriptor) []byte {
	if d.Set == reglayout.SetFPR {
		return th.fpr
	}
	return th.user
}

// SetRegister sets a register of thread tid as the kernel would see it.
func (p *Process) SetRegister(tid int, name string, value uint64) error {
	d, err := p.location(name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	th := p.thread(tid)
	putUint(p.blob(th, d)[d.Offset:d.Offset+d.Size], value)
	return nil
}

// Register returns a register of thread tid as the kernel sees it.
func (p *Process) Register(tid int, name string) (uint64, error) {
	d, err := p.location(name)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	th := p.thread(tid)
	return getUint(p.blob(th, d)[d.Offset : d.Offset+d.Size]), nil
}

// SetWatchpointHit sets the DR6 status bit of slot, as the processor does
// when the watchpoint in that slot triggers.
func (p *Process) SetWatchpointHit(tid, slot int) error {
	dr6, err := p.Register(tid, "dr6")
	if err != nil {
		return err
	}
	return p.SetRegister(tid, "dr6", dr6|1<<uint(slot))
}

// SetThreadName sets the name the operating system reports for tid.
func (p *Process) SetThreadName(tid int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.thread(tid).name = name
}

// SetThreadPointer sets the thread pointer of tid.
func (p *Process) SetThreadPointer(tid int, tp uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.thread(tid).tp = tp
}

func (p *Process) ReadGPR(tid int, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("gpr"); err != nil {
		return err
	}
	copy(buf, p.thread(tid).user[:p.table.GPRSize])
	return nil
}

func (p *Process) WriteGPR(tid int, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("gpr"); err != nil {
		return err
	}
	copy(p.thread(tid).user[:p.table.GPRSize], buf)
	return nil
}

func (p *Process) ReadFPR(tid int, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("fpr"); err != nil {
		return err
	}
	copy(buf, p.thread(tid).fpr)
	return nil
}

func (p *Process) WriteFPR(tid int, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("fpr"); err != nil {
		return err
	}
	copy(p.thread(tid).fpr, buf)
	return nil
}

func (p *Process) checkUser(offset, size int) error {
	if offset < 0 || size <= 0 || size > 8 || offset+size > p.userSize {
		return fmt.Errorf("invalid user area access at %#x size %d", offset, size)
	}
	return nil
}

func (p *Process) ReadRegister(tid int, offset, size int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("peek"); err != nil {
		return 0, err
	}
	if err := p.checkUser(offset, size); err != nil {
		return 0, err
	}
	return getUint(p.thread(tid).user[offset : offset+size]), nil
}

func (p *Process) WriteRegister(tid int, offset, size int, value uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("poke"); err != nil {
		return err
	}
	if err := p.checkUser(offset, size); err != nil {
		return err
	}
	putUint(p.thread(tid).user[offset:offset+size], value)
	return nil
}

func (p *Process) ReadThreadPointer(tid int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("tp"); err != nil {
		return 0, err
	}
	return p.thread(tid).tp, nil
}

func (p *Process) Resume(tid int, signo int) error {
	return p.record("resume", tid, signo)
}

func (p *Process) SingleStep(tid int, signo int) error {
	return p.record("step", tid, signo)
}

func (p *Process) record(op string, tid, signo int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(op); err != nil {
		return err
	}
	p.calls = append(p.calls, Call{Op: op, TID: tid, Signo: signo})
	return nil
}

func (p *Process) ThreadName(tid int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("name"); err != nil {
		return "", err
	}
	return p.thread(tid).name, nil
}

func getUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

func putUint(b []byte, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(b, buf[:])
}
