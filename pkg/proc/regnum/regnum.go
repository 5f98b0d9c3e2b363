// Package regnum contains the register numbering conventions used by the
// different tools that need to name a register: the compiler's exception
// handling tables, DWARF call frame information, the debugger's generic
// register roles and the GDB remote protocol.
package regnum

// None marks a register that has no number in a given convention.
const None = -1

// Kind selects one of the numbering conventions.
type Kind uint8

const (
	KindEH      Kind = iota // compiler-internal (eh_frame) numbering
	KindDWARF               // DWARF call frame numbering
	KindGeneric             // generic role, see Generic
	KindGDB                 // GDB remote protocol numbering

	NumKinds = 4
)

func (k Kind) String() string {
	switch k {
	case KindEH:
		return "eh_frame"
	case KindDWARF:
		return "dwarf"
	case KindGeneric:
		return "generic"
	case KindGDB:
		return "gdb"
	default:
		return "unknown"
	}
}

// Generic register roles, stored in the KindGeneric slot.
const (
	GenericPC = iota
	GenericSP
	GenericFP
	GenericFlags
)

// GenericName returns the name of a generic register role.
func GenericName(n int) string {
	switch n {
	case GenericPC:
		return "pc"
	case GenericSP:
		return "sp"
	case GenericFP:
		return "fp"
	case GenericFlags:
		return "flags"
	}
	return ""
}
