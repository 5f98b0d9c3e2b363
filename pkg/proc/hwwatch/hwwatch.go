// Package hwwatch manages the hardware watchpoint slots of a thread. On
// x86 a slot is one of the address registers DR0-DR3, programmed through
// the debug control register DR7 and reported through the debug status
// register DR6, see the Intel 64 and IA-32 Architectures Software
// Developer's Manual, Vol. 3B, section 17.2.
package hwwatch

import (
	"errors"
	"fmt"

	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/regctx"
)

var (
	ErrNoSlot    = errors.New("no such hardware watchpoint slot")
	ErrBadSize   = errors.New("watchpoint size not supported")
	ErrNoAccess  = errors.New("watchpoint must trap on read or write")
	ErrSlotInUse = errors.New("hardware watchpoint slot already in use")
	ErrUnaligned = errors.New("watchpoint address not aligned to its size")
)

const (
	dr6HitMask = 0xf

	rwWrite     = 0x1
	rwReadWrite = 0x3 // x86 has no read only data breakpoints
)

// Slot is the decoded state of a hardware watchpoint slot.
type Slot struct {
	Index   int
	Addr    uint64
	Size    int
	Read    bool
	Write   bool
	Enabled bool
	Hit     bool
}

// Manager allocates and programs the hardware watchpoint slots of one
// thread through its register context.
type Manager struct {
	ctx      *regctx.Context
	addrs    []int // register index of the address register of each slot
	dr6, dr7 int

	// initialized is set once DR6 and DR7 hold state this manager is
	// responsible for. Until then the first access zeroes them.
	initialized bool
}

// New creates the watchpoint manager of the thread owning ctx. Targets
// without debug registers get a manager with no slots.
func New(ctx *regctx.Context) *Manager {
	m := &Manager{ctx: ctx}
	t := ctx.Table()
	dr6, ok6 := t.Index("dr6")
	dr7, ok7 := t.Index("dr7")
	if !ok6 || !ok7 {
		return m
	}
	for i := 0; i < 4; i++ {
		r, ok := t.Index(fmt.Sprintf("dr%d", i))
		if !ok {
			return m
		}
		m.addrs = append(m.addrs, r)
	}
	m.dr6, m.dr7 = dr6, dr7
	return m
}

// NumSupported returns the number of hardware watchpoint slots.
func (m *Manager) NumSupported() int {
	return len(m.addrs)
}

// ForceInitialized marks the debug registers as already holding valid
// state. A thread cloned while watchpoints were enabled inherits its
// parent's debug registers, those must not be reset.
func (m *Manager) ForceInitialized() {
	m.initialized = true
}

// Initialized returns true if the debug registers have been reset or
// marked as valid.
func (m *Manager) Initialized() bool {
	return m.initialized
}

func (m *Manager) init() error {
	if m.initialized || len(m.addrs) == 0 {
		return nil
	}
	if err := m.ctx.WriteUint(m.dr6, 0); err != nil {
		return fmt.Errorf("could not initialize watchpoint registers: %w", err)
	}
	if err := m.ctx.WriteUint(m.dr7, 0); err != nil {
		return fmt.Errorf("could not initialize watchpoint registers: %w", err)
	}
	m.initialized = true
	if logflags.Watch() {
		logflags.WatchLogger().Debugf("tid %d: debug registers reset", m.ctx.ThreadID())
	}
	return nil
}

func (m *Manager) checkIndex(idx int) error {
	if idx < 0 || idx >= len(m.addrs) {
		return fmt.Errorf("slot %d of %d: %w", idx, len(m.addrs), ErrNoSlot)
	}
	return nil
}

func enableBits(idx int) uint64 {
	return 0x3 << (2 * uint(idx))
}

func lenrwShift(idx int) uint {
	return 16 + 4*uint(idx)
}

// IsVacant returns true if slot idx is not enabled.
func (m *Manager) IsVacant(idx int) (bool, error) {
	if err := m.checkIndex(idx); err != nil {
		return false, err
	}
	if err := m.init(); err != nil {
		return false, err
	}
	dr7, err := m.ctx.ReadUint(m.dr7)
	if err != nil {
		return false, err
	}
	return dr7&enableBits(idx) == 0, nil
}

// FindVacant returns the lowest vacant slot. Slots whose state can not be
// read are skipped.
func (m *Manager) FindVacant() (int, bool) {
	for i := range m.addrs {
		vacant, err := m.IsVacant(i)
		if err != nil {
			logflags.WatchLogger().Errorf("tid %d: slot %d: %v", m.ctx.ThreadID(), i, err)
			continue
		}
		if vacant {
			return i, true
		}
	}
	return 0, false
}

// Enable programs slot idx to trap on accesses of size bytes at addr.
// Read watchpoints trap on writes too.
func (m *Manager) Enable(addr uint64, size int, read, write bool, idx int) error {
	if err := m.checkIndex(idx); err != nil {
		return err
	}
	var lenBits uint64
	switch size {
	case 1:
		lenBits = 0x0
	case 2:
		lenBits = 0x1
	case 4:
		lenBits = 0x3
	case 8:
		lenBits = 0x2 // sic
	default:
		return fmt.Errorf("%d bytes: %w", size, ErrBadSize)
	}
	// The processor ignores the low address bits covered by the length.
	if addr%uint64(size) != 0 {
		return fmt.Errorf("%#x, %d bytes: %w", addr, size, ErrUnaligned)
	}
	if !read && !write {
		return ErrNoAccess
	}
	vacant, err := m.IsVacant(idx)
	if err != nil {
		return err
	}
	if !vacant {
		return fmt.Errorf("slot %d: %w", idx, ErrSlotInUse)
	}

	rw := uint64(rwWrite)
	if read {
		rw = rwReadWrite
	}
	dr7, err := m.ctx.ReadUint(m.dr7)
	if err != nil {
		return err
	}
	dr7 &^= 0xf << lenrwShift(idx)
	dr7 |= (lenBits<<2 | rw) << lenrwShift(idx)
	dr7 |= 1 << (2 * uint(idx))

	if err := m.ctx.WriteUint(m.addrs[idx], addr); err != nil {
		return err
	}
	if err := m.ctx.WriteUint(m.dr7, dr7); err != nil {
		return err
	}
	if logflags.Watch() {
		logflags.WatchLogger().Debugf("tid %d: slot %d watching %#x size %d read=%v write=%v", m.ctx.ThreadID(), idx, addr, size, read, write)
	}
	return nil
}

// Disable clears slot idx. The status bit of the slot is cleared, the
// other slots are left untouched.
func (m *Manager) Disable(idx int) error {
	if err := m.checkIndex(idx); err != nil {
		return err
	}
	dr6, err := m.ctx.ReadUint(m.dr6)
	if err != nil {
		return err
	}
	if err := m.ctx.WriteUint(m.dr6, dr6&^(1<<uint(idx))); err != nil {
		return err
	}
	dr7, err := m.ctx.ReadUint(m.dr7)
	if err != nil {
		return err
	}
	dr7 &^= enableBits(idx) | 0xf<<lenrwShift(idx)
	if err := m.ctx.WriteUint(m.dr7, dr7); err != nil {
		return err
	}
	if logflags.Watch() {
		logflags.WatchLogger().Debugf("tid %d: slot %d cleared", m.ctx.ThreadID(), idx)
	}
	return nil
}

// IsHit returns true if slot idx caused the last debug exception.
func (m *Manager) IsHit(idx int) (bool, error) {
	if err := m.checkIndex(idx); err != nil {
		return false, err
	}
	if err := m.init(); err != nil {
		return false, err
	}
	dr6, err := m.ctx.ReadUint(m.dr6)
	if err != nil {
		return false, err
	}
	return dr6&(1<<uint(idx)) != 0, nil
}

// FirstHit returns the lowest slot reporting a hit.
func (m *Manager) FirstHit() (int, bool, error) {
	for i := range m.addrs {
		hit, err := m.IsHit(i)
		if err != nil {
			return 0, false, err
		}
		if hit {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// ClearHits clears the status bits of every slot with a single write of
// DR6. The status of all slots must be read before calling it.
func (m *Manager) ClearHits() error {
	if len(m.addrs) == 0 {
		return nil
	}
	dr6, err := m.ctx.ReadUint(m.dr6)
	if err != nil {
		return err
	}
	return m.ctx.WriteUint(m.dr6, dr6&^dr6HitMask)
}

// WatchAddress returns the address programmed in slot idx.
func (m *Manager) WatchAddress(idx int) (uint64, error) {
	if err := m.checkIndex(idx); err != nil {
		return 0, err
	}
	return m.ctx.ReadUint(m.addrs[idx])
}

// Slot decodes the state of slot idx.
func (m *Manager) Slot(idx int) (Slot, error) {
	if err := m.checkIndex(idx); err != nil {
		return Slot{}, err
	}
	dr7, err := m.ctx.ReadUint(m.dr7)
	if err != nil {
		return Slot{}, err
	}
	dr6, err := m.ctx.ReadUint(m.dr6)
	if err != nil {
		return Slot{}, err
	}
	s := Slot{Index: idx, Hit: dr6&(1<<uint(idx)) != 0}
	if dr7&enableBits(idx) == 0 {
		return s, nil
	}
	s.Enabled = true
	if s.Addr, err = m.ctx.ReadUint(m.addrs[idx]); err != nil {
		return Slot{}, err
	}
	lenrw := (dr7 >> lenrwShift(idx)) & 0xf
	s.Write = lenrw&0x1 != 0
	s.Read = lenrw&0x2 != 0
	switch lenrw >> 2 {
	case 0x0:
		s.Size = 1
	case 0x1:
		s.Size = 2
	case 0x2:
		s.Size = 8
	case 0x3:
		s.Size = 4
	}
	return s, nil
}
