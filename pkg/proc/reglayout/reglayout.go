// Package reglayout describes, for every supported operating system and CPU
// architecture pair, the registers of a thread and where each one lives in
// the raw register blobs exchanged with the kernel's tracing interface.
//
// The offsets stored in a Table are an external ABI: they must match the
// kernel structures byte for byte. A kernel change to one of those
// structures requires a table update.
package reglayout

import (
	"sort"
	"strings"

	"github.com/derekparker/trie"

	"github.com/go-delve/nativethread/pkg/proc/regnum"
)

// Set identifies the raw blob a register is stored in.
type Set uint8

const (
	SetGPR Set = iota // general purpose registers, kernel user_regs layout
	SetFPR            // FXSAVE/XSAVE area
	SetAVX            // YMM registers assembled from XMM and YMMH halves
	SetDBG            // debug registers, addressed by offset in the user area
)

func (s Set) String() string {
	switch s {
	case SetGPR:
		return "gpr"
	case SetFPR:
		return "fpr"
	case SetAVX:
		return "avx"
	case SetDBG:
		return "dbg"
	default:
		return "unknown"
	}
}

// Encoding describes how the bytes of a register are interpreted.
type Encoding uint8

const (
	EncodingUint Encoding = iota
	EncodingVector
)

// Format is the preferred display format of a register.
type Format uint8

const (
	FormatHex Format = iota
	FormatVectorOfUInt8
)

// Descriptor is the static description of a register. Descriptors are
// shared by every thread using the same Table and must not be modified.
type Descriptor struct {
	Name     string
	Alias    string
	Size     int
	Offset   int // offset into the blob selected by Set
	Set      Set
	Encoding Encoding
	Format   Format
	Kinds    [regnum.NumKinds]int

	// ContainedIn lists the registers this register is a slice of.
	ContainedIn []int
	// Invalidates lists the registers whose value changes when this
	// register is written.
	Invalidates []int
}

// Pseudo returns true if d is a slice of a wider register.
func (d *Descriptor) Pseudo() bool {
	return len(d.ContainedIn) > 0
}

// Table is the ordered list of registers for one (OS, architecture, blob
// layout) combination. The index of a register in the table is its stable
// public number.
type Table struct {
	Name    string
	PtrSize int // word size of the traced program
	GPRSize int // size of the kernel's general purpose register structure
	FPRSize int // size of the floating point blob, zero if there is none

	// BreakpointPCOffset is the number of bytes the program counter has
	// advanced past a software breakpoint when the trap is reported.
	BreakpointPCOffset int

	regs    []Descriptor
	names   *trie.Trie
	offsets map[int]int
	generic map[int]int
}

// Len returns the number of registers in the table.
func (t *Table) Len() int {
	return len(t.regs)
}

// Register returns the descriptor of register i.
func (t *Table) Register(i int) (*Descriptor, bool) {
	if i < 0 || i >= len(t.regs) {
		return nil, false
	}
	return &t.regs[i], true
}

// RegisterName returns the name of register i.
func (t *Table) RegisterName(i int) (string, bool) {
	d, ok := t.Register(i)
	if !ok {
		return "", false
	}
	return d.Name, true
}

// Index returns the index of the register with the given name or alias.
func (t *Table) Index(name string) (int, bool) {
	n, ok := t.names.Find(strings.ToLower(name))
	if !ok {
		return 0, false
	}
	return n.Meta().(int), true
}

// IndexFromOffset resolves an offset in the kernel user area to the
// full-width register stored there. Only general purpose and debug
// registers live in the user area.
func (t *Table) IndexFromOffset(offset int) (int, bool) {
	i, ok := t.offsets[offset]
	return i, ok
}

// Generic returns the index of the register playing the given generic
// role (see regnum.GenericPC and friends).
func (t *Table) Generic(role int) (int, bool) {
	i, ok := t.generic[role]
	return i, ok
}

// ByKind returns the index of the register numbered num in the given
// numbering convention.
func (t *Table) ByKind(kind regnum.Kind, num int) (int, bool) {
	if num == regnum.None {
		return 0, false
	}
	for i := range t.regs {
		if t.regs[i].Kinds[kind] == num {
			return i, true
		}
	}
	return 0, false
}

// Complete returns the register names and aliases starting with prefix,
// in alphabetical order.
func (t *Table) Complete(prefix string) []string {
	r := t.names.PrefixSearch(strings.ToLower(prefix))
	sort.Strings(r)
	return r
}

// builder assembles a Table. Register names are resolved when sub
// registers are added, so parents must be added first.
type builder struct {
	t *Table
}

func newBuilder(name string, ptrSize, gprSize, fprSize int) *builder {
	return &builder{t: &Table{Name: name, PtrSize: ptrSize, GPRSize: gprSize, FPRSize: fprSize}}
}

func kinds(eh, dwarf, generic, gdb int) [regnum.NumKinds]int {
	return [regnum.NumKinds]int{eh, dwarf, generic, gdb}
}

func noKinds() [regnum.NumKinds]int {
	return kinds(regnum.None, regnum.None, regnum.None, regnum.None)
}

func (b *builder) add(d Descriptor) int {
	b.t.regs = append(b.t.regs, d)
	return len(b.t.regs) - 1
}

func (b *builder) mustIndex(name string) int {
	for i := range b.t.regs {
		if b.t.regs[i].Name == name {
			return i
		}
	}
	panic("reglayout: unknown register " + name)
}

// sub adds a pseudo register of the given size, shift bytes into parent.
func (b *builder) sub(name, parent string, size, shift int) {
	pi := b.mustIndex(parent)
	p := b.t.regs[pi]
	b.add(Descriptor{
		Name:        name,
		Size:        size,
		Offset:      p.Offset + shift,
		Set:         p.Set,
		Encoding:    EncodingUint,
		Format:      FormatHex,
		Kinds:       noKinds(),
		ContainedIn: []int{pi},
	})
}

func (b *builder) finish() *Table {
	t := b.t
	children := map[int][]int{}
	for i := range t.regs {
		for _, p := range t.regs[i].ContainedIn {
			children[p] = append(children[p], i)
		}
	}
	for p, cs := range children {
		t.regs[p].Invalidates = append([]int(nil), cs...)
		for _, c := range cs {
			inv := []int{p}
			for _, o := range cs {
				if o != c {
					inv = append(inv, o)
				}
			}
			t.regs[c].Invalidates = inv
		}
	}

	// Names take precedence over aliases: on x86 "sp" is both the alias of
	// the stack pointer and the name of its low 16 bits.
	t.names = trie.New()
	for i := range t.regs {
		if a := t.regs[i].Alias; a != "" {
			t.names.Add(a, i)
		}
	}
	t.offsets = make(map[int]int)
	t.generic = make(map[int]int)
	for i := range t.regs {
		d := &t.regs[i]
		t.names.Add(d.Name, i)
		if g := d.Kinds[regnum.KindGeneric]; g != regnum.None {
			t.generic[g] = i
		}
		if d.Pseudo() || (d.Set != SetGPR && d.Set != SetDBG) {
			continue
		}
		if _, dup := t.offsets[d.Offset]; !dup {
			t.offsets[d.Offset] = i
		}
	}
	return t
}
