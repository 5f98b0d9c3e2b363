package reglayout

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// X86Reg returns the index of the register a decoded x86 instruction
// operand refers to. Registers that have no descriptor in t (control
// registers, 64-bit registers in a 32-bit table, ...) are not found.
func (t *Table) X86Reg(reg x86asm.Reg) (int, bool) {
	name := x86RegName(reg)
	if name == "" {
		return 0, false
	}
	i, ok := t.names.Find(name)
	if !ok {
		return 0, false
	}
	idx := i.Meta().(int)
	// Only full names identify a register here, "sp" and "fp" as aliases
	// of the stack and frame pointers are not operand names.
	if t.regs[idx].Name != name {
		return 0, false
	}
	return idx, true
}

func x86RegName(reg x86asm.Reg) string {
	switch {
	case reg >= x86asm.R8B && reg <= x86asm.R15B:
		return fmt.Sprintf("r%dl", 8+int(reg-x86asm.R8B))
	case reg >= x86asm.R8L && reg <= x86asm.R15L:
		return fmt.Sprintf("r%dd", 8+int(reg-x86asm.R8L))
	case reg >= x86asm.F0 && reg <= x86asm.F7:
		return fmt.Sprintf("st%d", int(reg-x86asm.F0))
	case reg >= x86asm.M0 && reg <= x86asm.M7:
		return fmt.Sprintf("mm%d", int(reg-x86asm.M0))
	case reg >= x86asm.X0 && reg <= x86asm.X15:
		return fmt.Sprintf("xmm%d", int(reg-x86asm.X0))
	case reg >= x86asm.DR0 && reg <= x86asm.DR15:
		return fmt.Sprintf("dr%d", int(reg-x86asm.DR0))
	}
	switch reg {
	case x86asm.SPB:
		return "spl"
	case x86asm.BPB:
		return "bpl"
	case x86asm.SIB:
		return "sil"
	case x86asm.DIB:
		return "dil"
	case 0:
		return ""
	}
	return strings.ToLower(reg.String())
}
