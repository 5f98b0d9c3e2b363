// Package regctx implements per-thread register contexts: caches of the
// register blobs of a stopped thread, filled lazily through the process
// control backend and invalidated when the process stops again.
package regctx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/atomic"

	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/regnum"
)

// ErrUnknownRegister is returned for register indices outside of the
// context's table.
var ErrUnknownRegister = errors.New("unknown register")

// RegisterIO moves register blobs between the kernel and a register
// context. Offsets passed to ReadRegister and WriteRegister are offsets in
// the kernel user area, as recorded in the layout table.
type RegisterIO interface {
	ReadGPR(tid int, buf []byte) error
	WriteGPR(tid int, buf []byte) error
	ReadFPR(tid int, buf []byte) error
	WriteFPR(tid int, buf []byte) error
	ReadRegister(tid int, offset, size int) (uint64, error)
	WriteRegister(tid int, offset, size int, value uint64) error
}

// StopCounter counts the stops of a process. Register contexts compare
// the stop id they were filled at with the current value to detect stale
// contents.
type StopCounter struct {
	n atomic.Uint32
}

// Bump records a new stop and returns its id.
func (c *StopCounter) Bump() uint32 {
	return c.n.Inc()
}

// Load returns the id of the last stop.
func (c *StopCounter) Load() uint32 {
	return c.n.Load()
}

// Reader is the read-only view of a register context. Contexts of frames
// other than the innermost one, synthesized by an unwinder, implement it.
type Reader interface {
	Table() *reglayout.Table
	Read(reg int) ([]byte, error)
	ReadUint(reg int) (uint64, error)
}

// Context is the register context of one thread.
//
// A Context is only modified by the goroutine handling the events of its
// thread.
type Context struct {
	tid   int
	io    RegisterIO
	stops *StopCounter
	table *reglayout.Table

	gpr, fpr           []byte
	gprValid, fprValid bool
	dbg                map[int]uint64 // cached debug register values by index

	valid  []bool // values cached in gpr, fpr or dbg
	stopID uint32
}

// New creates the register context of thread tid.
func New(tid int, table *reglayout.Table, io RegisterIO, stops *StopCounter) *Context {
	return &Context{
		tid:    tid,
		io:     io,
		stops:  stops,
		table:  table,
		gpr:    make([]byte, table.GPRSize),
		fpr:    make([]byte, table.FPRSize),
		dbg:    make(map[int]uint64),
		valid:  make([]bool, table.Len()),
		stopID: stops.Load(),
	}
}

// Table returns the register table of the context.
func (c *Context) Table() *reglayout.Table {
	return c.table
}

// ThreadID returns the id of the thread owning the context.
func (c *Context) ThreadID() int {
	return c.tid
}

// StopID returns the stop id the cached values belong to.
func (c *Context) StopID() uint32 {
	return c.stopID
}

// InvalidateIfNeeded discards cached values if the process stopped since
// they were read, or unconditionally if force is set. Values supplied
// after the current stop are kept unless force is set.
func (c *Context) InvalidateIfNeeded(force bool) {
	cur := c.stops.Load()
	if !force && cur == c.stopID {
		return
	}
	c.InvalidateAll()
	c.stopID = cur
}

// InvalidateAll discards every cached value.
func (c *Context) InvalidateAll() {
	c.gprValid, c.fprValid = false, false
	for i := range c.valid {
		c.valid[i] = false
	}
	for k := range c.dbg {
		delete(c.dbg, k)
	}
	if logflags.Regs() {
		logflags.RegsLogger().Debugf("tid %d: register cache invalidated at stop %d", c.tid, c.stops.Load())
	}
}

func (c *Context) descriptor(reg int) (*reglayout.Descriptor, error) {
	d, ok := c.table.Register(reg)
	if !ok {
		return nil, fmt.Errorf("register %d of %s: %w", reg, c.table.Name, ErrUnknownRegister)
	}
	return d, nil
}

// SupplyRegister stores a value obtained by other means than the kernel's
// tracing interface (for example reported along with a stop) for the
// current stop.
func (c *Context) SupplyRegister(reg int, value []byte) error {
	d, err := c.descriptor(reg)
	if err != nil {
		return err
	}
	if len(value) != d.Size {
		return fmt.Errorf("register %s is %d bytes, got %d", d.Name, d.Size, len(value))
	}
	c.InvalidateIfNeeded(false)
	switch d.Set {
	case reglayout.SetGPR:
		copy(c.gpr[d.Offset:], value)
	case reglayout.SetFPR:
		copy(c.fpr[d.Offset:], value)
	case reglayout.SetAVX:
		lo, hi := ymmOffsets(d)
		copy(c.fpr[lo:lo+16], value[:16])
		copy(c.fpr[hi:hi+16], value[16:])
	case reglayout.SetDBG:
		c.dbg[reg] = getUint(value)
	}
	c.valid[reg] = true
	c.invalidate(d)
	return nil
}

// Read returns the raw bytes of a register.
func (c *Context) Read(reg int) ([]byte, error) {
	d, err := c.descriptor(reg)
	if err != nil {
		return nil, err
	}
	if err := c.fill(reg, d); err != nil {
		return nil, err
	}
	out := make([]byte, d.Size)
	switch d.Set {
	case reglayout.SetGPR:
		copy(out, c.gpr[d.Offset:])
	case reglayout.SetFPR:
		copy(out, c.fpr[d.Offset:])
	case reglayout.SetAVX:
		lo, hi := ymmOffsets(d)
		copy(out[:16], c.fpr[lo:lo+16])
		copy(out[16:], c.fpr[hi:hi+16])
	case reglayout.SetDBG:
		putUint(out, c.dbg[reg])
	}
	return out, nil
}

// ReadUint returns the value of a register of at most 8 bytes.
func (c *Context) ReadUint(reg int) (uint64, error) {
	d, err := c.descriptor(reg)
	if err != nil {
		return 0, err
	}
	if d.Size > 8 {
		return 0, fmt.Errorf("register %s is %d bytes wide", d.Name, d.Size)
	}
	b, err := c.Read(reg)
	if err != nil {
		return 0, err
	}
	return getUint(b), nil
}

// ReadByName returns the value of the register with the given name or
// alias.
func (c *Context) ReadByName(name string) (uint64, error) {
	i, ok := c.table.Index(name)
	if !ok {
		return 0, fmt.Errorf("register %q of %s: %w", name, c.table.Name, ErrUnknownRegister)
	}
	return c.ReadUint(i)
}

// PC returns the program counter.
func (c *Context) PC() (uint64, error) {
	return c.readGeneric(regnum.GenericPC)
}

// SetPC sets the program counter.
func (c *Context) SetPC(pc uint64) error {
	i, ok := c.table.Generic(regnum.GenericPC)
	if !ok {
		return fmt.Errorf("%s has no program counter: %w", c.table.Name, ErrUnknownRegister)
	}
	return c.WriteUint(i, pc)
}

// SP returns the stack pointer.
func (c *Context) SP() (uint64, error) {
	return c.readGeneric(regnum.GenericSP)
}

func (c *Context) readGeneric(role int) (uint64, error) {
	i, ok := c.table.Generic(role)
	if !ok {
		return 0, fmt.Errorf("%s has no %s register: %w", c.table.Name, regnum.GenericName(role), ErrUnknownRegister)
	}
	return c.ReadUint(i)
}

// UpdateAfterBreakpoint moves the program counter back onto the software
// breakpoint that trapped.
func (c *Context) UpdateAfterBreakpoint() error {
	if c.table.BreakpointPCOffset == 0 {
		return nil
	}
	pc, err := c.PC()
	if err != nil {
		return err
	}
	return c.SetPC(pc - uint64(c.table.BreakpointPCOffset))
}

// Write sets the raw bytes of a register and writes them through to the
// thread.
func (c *Context) Write(reg int, value []byte) error {
	d, err := c.descriptor(reg)
	if err != nil {
		return err
	}
	if len(value) != d.Size {
		return fmt.Errorf("register %s is %d bytes, got %d", d.Name, d.Size, len(value))
	}
	switch d.Set {
	case reglayout.SetGPR:
		err = c.writeGPR(reg, d, value)
	case reglayout.SetFPR, reglayout.SetAVX:
		err = c.writeFPR(reg, d, value)
	case reglayout.SetDBG:
		err = c.writeDBG(reg, d, getUint(value))
	}
	if err != nil {
		return err
	}
	if logflags.Regs() {
		logflags.RegsLogger().Debugf("tid %d: wrote %s = %#x", c.tid, d.Name, value)
	}
	return nil
}

// WriteUint sets a register of at most 8 bytes.
func (c *Context) WriteUint(reg int, value uint64) error {
	d, err := c.descriptor(reg)
	if err != nil {
		return err
	}
	if d.Size > 8 {
		return fmt.Errorf("register %s is %d bytes wide", d.Name, d.Size)
	}
	b := make([]byte, d.Size)
	putUint(b, value)
	return c.Write(reg, b)
}

// writeGPR stores a general purpose register, or a slice of one, by
// writing the full register that contains it.
func (c *Context) writeGPR(reg int, d *reglayout.Descriptor, value []byte) error {
	full, fd := reg, d
	if d.Pseudo() {
		full = d.ContainedIn[0]
		fd, _ = c.table.Register(full)
	}
	if err := c.fill(full, fd); err != nil {
		return err
	}
	buf := make([]byte, fd.Size)
	copy(buf, c.gpr[fd.Offset:])
	copy(buf[d.Offset-fd.Offset:], value)
	if err := c.io.WriteRegister(c.tid, fd.Offset, fd.Size, getUint(buf)); err != nil {
		return fmt.Errorf("could not write %s: %w", fd.Name, err)
	}
	copy(c.gpr[fd.Offset:], buf)
	c.valid[full] = true
	c.invalidate(d)
	return nil
}

func (c *Context) writeFPR(reg int, d *reglayout.Descriptor, value []byte) error {
	// The whole blob is written back, it must not hold values of an
	// earlier stop.
	c.InvalidateIfNeeded(false)
	if err := c.loadFPR(); err != nil {
		return err
	}
	buf := make([]byte, len(c.fpr))
	copy(buf, c.fpr)
	if d.Set == reglayout.SetAVX {
		lo, hi := ymmOffsets(d)
		copy(buf[lo:lo+16], value[:16])
		copy(buf[hi:hi+16], value[16:])
	} else {
		copy(buf[d.Offset:], value)
	}
	if err := c.io.WriteFPR(c.tid, buf); err != nil {
		return fmt.Errorf("could not write %s: %w", d.Name, err)
	}
	c.fpr = buf
	c.valid[reg] = true
	return nil
}

func (c *Context) writeDBG(reg int, d *reglayout.Descriptor, value uint64) error {
	if err := c.io.WriteRegister(c.tid, d.Offset, d.Size, value); err != nil {
		return fmt.Errorf("could not write %s: %w", d.Name, err)
	}
	c.dbg[reg] = value
	c.valid[reg] = true
	return nil
}

// invalidate marks the registers overlapping d as stale. They are read
// again from the thread, through their full width register, on next use.
func (c *Context) invalidate(d *reglayout.Descriptor) {
	for _, i := range d.Invalidates {
		c.valid[i] = false
	}
}

// fill makes sure the cached value of reg is current.
func (c *Context) fill(reg int, d *reglayout.Descriptor) error {
	c.InvalidateIfNeeded(false)
	if c.valid[reg] {
		return nil
	}
	switch d.Set {
	case reglayout.SetGPR:
		if !c.gprValid {
			return c.loadGPR()
		}
		// The blob was loaded but this register was invalidated by a write
		// to an overlapping register.
		full, fd := reg, d
		if d.Pseudo() {
			full = d.ContainedIn[0]
			fd, _ = c.table.Register(full)
		}
		v, err := c.io.ReadRegister(c.tid, fd.Offset, fd.Size)
		if err != nil {
			return fmt.Errorf("could not read %s: %w", fd.Name, err)
		}
		putUint(c.gpr[fd.Offset:fd.Offset+fd.Size], v)
		c.valid[full] = true
		c.valid[reg] = true
		return nil
	case reglayout.SetFPR, reglayout.SetAVX:
		if err := c.loadFPR(); err != nil {
			return err
		}
		c.valid[reg] = true
		return nil
	case reglayout.SetDBG:
		v, err := c.io.ReadRegister(c.tid, d.Offset, d.Size)
		if err != nil {
			return fmt.Errorf("could not read %s: %w", d.Name, err)
		}
		c.dbg[reg] = v
		c.valid[reg] = true
		return nil
	}
	return fmt.Errorf("register %s: unknown register set %v", d.Name, d.Set)
}

// loadGPR reads the general purpose register blob. Registers supplied for
// the current stop keep their value.
func (c *Context) loadGPR() error {
	buf := make([]byte, c.table.GPRSize)
	if err := c.io.ReadGPR(c.tid, buf); err != nil {
		return fmt.Errorf("could not read general purpose registers: %w", err)
	}
	for i := range c.valid {
		d, _ := c.table.Register(i)
		if d.Set != reglayout.SetGPR {
			continue
		}
		if c.valid[i] {
			copy(buf[d.Offset:d.Offset+d.Size], c.gpr[d.Offset:])
		}
	}
	c.gpr = buf
	c.gprValid = true
	for i := range c.valid {
		if d, _ := c.table.Register(i); d.Set == reglayout.SetGPR {
			c.valid[i] = true
		}
	}
	if logflags.Regs() {
		logflags.RegsLogger().Debugf("tid %d: read %d bytes of general purpose registers", c.tid, len(buf))
	}
	return nil
}

func (c *Context) loadFPR() error {
	if c.fprValid {
		return nil
	}
	if c.table.FPRSize == 0 {
		return fmt.Errorf("%s has no floating point registers", c.table.Name)
	}
	buf := make([]byte, c.table.FPRSize)
	if err := c.io.ReadFPR(c.tid, buf); err != nil {
		return fmt.Errorf("could not read floating point registers: %w", err)
	}
	for i := range c.valid {
		d, _ := c.table.Register(i)
		if !c.valid[i] {
			continue
		}
		switch d.Set {
		case reglayout.SetFPR:
			copy(buf[d.Offset:d.Offset+d.Size], c.fpr[d.Offset:])
		case reglayout.SetAVX:
			lo, hi := ymmOffsets(d)
			copy(buf[lo:lo+16], c.fpr[lo:])
			copy(buf[hi:hi+16], c.fpr[hi:])
		}
	}
	c.fpr = buf
	c.fprValid = true
	return nil
}

// ymmOffsets returns the offsets in the FPR blob of the two halves of a
// YMM register.
func ymmOffsets(d *reglayout.Descriptor) (lo, hi int) {
	i := d.Offset / 32
	return reglayout.XMMOffset(i), reglayout.YMMHOffset(i)
}

// Register values are stored in little endian order, the byte order of
// every supported target.
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
