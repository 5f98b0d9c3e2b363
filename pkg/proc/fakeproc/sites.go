package fakeproc

import (
	"fmt"

	"github.com/go-delve/nativethread/pkg/proc/regctx"
	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/thread"
)

// Site is a breakpoint site. A site without thread restrictions is valid
// for every thread.
type Site struct {
	id      int
	Addr    uint64
	threads []int
}

func (s *Site) ID() int {
	return s.id
}

func (s *Site) ValidForThread(tid int) bool {
	if len(s.threads) == 0 {
		return true
	}
	for _, t := range s.threads {
		if t == tid {
			return true
		}
	}
	return false
}

// Sites is a breakpoint site list.
type Sites struct {
	byAddr map[uint64]*Site
	nextID int
}

func NewSites() *Sites {
	return &Sites{byAddr: make(map[uint64]*Site), nextID: 1}
}

// Add creates a site at addr valid for the given threads, or for every
// thread if none is given, and returns its id.
func (s *Sites) Add(addr uint64, tids ...int) int {
	site := &Site{id: s.nextID, Addr: addr, threads: tids}
	s.nextID++
	s.byAddr[addr] = site
	return site.id
}

func (s *Sites) FindByAddress(pc uint64) (thread.BreakpointSite, bool) {
	site, ok := s.byAddr[pc]
	if !ok {
		return nil, false
	}
	return site, true
}

type watchpoint struct {
	thread.Watchpoint
	enabled bool
}

// Watchpoints is a watchpoint list.
type Watchpoints struct {
	list   []*watchpoint
	nextID int
}

func NewWatchpoints() *Watchpoints {
	return &Watchpoints{nextID: 1}
}

// Add records an enabled watchpoint and returns it with its id set.
func (w *Watchpoints) Add(wp thread.Watchpoint) thread.Watchpoint {
	wp.ID = w.nextID
	w.nextID++
	w.list = append(w.list, &watchpoint{Watchpoint: wp, enabled: true})
	return wp
}

// SetEnabled enables or disables watchpoint id.
func (w *Watchpoints) SetEnabled(id int, enabled bool) bool {
	for _, wp := range w.list {
		if wp.ID == id {
			wp.enabled = enabled
			return true
		}
	}
	return false
}

func (w *Watchpoints) FindByAddress(addr uint64) (int, bool) {
	for _, wp := range w.list {
		if wp.Addr == addr {
			return wp.ID, true
		}
	}
	return 0, false
}

func (w *Watchpoints) Enabled() []thread.Watchpoint {
	var r []thread.Watchpoint
	for _, wp := range w.list {
		if wp.enabled {
			r = append(r, wp.Watchpoint)
		}
	}
	return r
}

// Frame is a register context synthesized for an outer frame. Registers
// not set in Values are unavailable.
type Frame struct {
	table  *reglayout.Table
	Values map[int]uint64
}

func NewFrame(table *reglayout.Table) *Frame {
	return &Frame{table: table, Values: make(map[int]uint64)}
}

func (f *Frame) Table() *reglayout.Table {
	return f.table
}

func (f *Frame) ReadUint(reg int) (uint64, error) {
	v, ok := f.Values[reg]
	if !ok {
		return 0, regctx.ErrUnknownRegister
	}
	return v, nil
}

func (f *Frame) Read(reg int) ([]byte, error) {
	d, ok := f.table.Register(reg)
	if !ok {
		return nil, regctx.ErrUnknownRegister
	}
	v, err := f.ReadUint(reg)
	if err != nil {
		return nil, err
	}
	b := make([]byte, d.Size)
	putUint(b, v)
	return b, nil
}

// Unwinder returns preset frames.
type Unwinder struct {
	Frames map[int]*Frame
}

func (u *Unwinder) RegisterContextForFrame(frame int) (regctx.Reader, error) {
	f, ok := u.Frames[frame]
	if !ok {
		return nil, fmt.Errorf("no frame %d", frame)
	}
	return f, nil
}
