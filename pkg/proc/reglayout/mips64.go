package reglayout

import (
	"fmt"
	"unsafe"

	"github.com/go-delve/nativethread/pkg/proc/regnum"
)

// newMIPS64Table builds the register table of a FreeBSD mips64 thread.
// Only general purpose registers are described, the table has no floating
// point or debug registers.
func newMIPS64Table(name string) *Table {
	var r freebsdMIPS64Reg
	b := newBuilder(name, 8, int(unsafe.Sizeof(r)), 0)

	gpr := func(name, alias string, num, generic int, f field) {
		b.add(Descriptor{
			Name:     name,
			Alias:    alias,
			Size:     f.size,
			Offset:   f.offset,
			Set:      SetGPR,
			Encoding: EncodingUint,
			Format:   FormatHex,
			Kinds:    kinds(num, num, generic, num),
		})
	}

	regs := int(unsafe.Offsetof(r.Regs))
	for i := 0; i < 32; i++ {
		name, alias, generic := fmt.Sprintf("r%d", i), "", regnum.None
		switch i {
		case regnum.MIPS64_Zero:
			name, alias = "zero", "r0"
		case 28:
			name, alias = "gp", "r28"
		case regnum.MIPS64_Sp:
			name, alias, generic = "sp", "r29", regnum.GenericSP
		case regnum.MIPS64_Fp:
			alias, generic = "fp", regnum.GenericFP
		case regnum.MIPS64_Ra:
			name, alias = "ra", "r31"
		}
		gpr(name, alias, i, generic, field{regs + 8*i, 8})
	}
	gpr("sr", "", regnum.MIPS64_Sr, regnum.None, at(unsafe.Offsetof(r.Sr), unsafe.Sizeof(r.Sr)))
	gpr("mullo", "", regnum.MIPS64_Mullo, regnum.None, at(unsafe.Offsetof(r.Mullo), unsafe.Sizeof(r.Mullo)))
	gpr("mulhi", "", regnum.MIPS64_Mulhi, regnum.None, at(unsafe.Offsetof(r.Mulhi), unsafe.Sizeof(r.Mulhi)))
	gpr("badvaddr", "", regnum.MIPS64_Badvaddr, regnum.None, at(unsafe.Offsetof(r.Badvaddr), unsafe.Sizeof(r.Badvaddr)))
	gpr("cause", "", regnum.MIPS64_Cause, regnum.None, at(unsafe.Offsetof(r.Cause), unsafe.Sizeof(r.Cause)))
	gpr("pc", "", regnum.MIPS64_Pc, regnum.GenericPC, at(unsafe.Offsetof(r.Pc), unsafe.Sizeof(r.Pc)))
	gpr("ic", "", regnum.MIPS64_Ic, regnum.None, at(unsafe.Offsetof(r.Ic), unsafe.Sizeof(r.Ic)))
	gpr("dummy", "", regnum.MIPS64_Dummy, regnum.None, at(unsafe.Offsetof(r.Dummy), unsafe.Sizeof(r.Dummy)))

	return b.finish()
}
