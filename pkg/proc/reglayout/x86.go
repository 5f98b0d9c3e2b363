package reglayout

import (
	"fmt"
	"unsafe"

	"github.com/go-delve/nativethread/pkg/proc/regnum"
)

type x86GPR struct {
	name, alias             string
	eh, dwarf, generic, gdb int
}

var i386GPRs = []x86GPR{
	{"eax", "", regnum.I386EH_Eax, regnum.I386_Eax, regnum.None, regnum.I386GDB_Eax},
	{"ebx", "", regnum.I386EH_Ebx, regnum.I386_Ebx, regnum.None, regnum.I386GDB_Ebx},
	{"ecx", "", regnum.I386EH_Ecx, regnum.I386_Ecx, regnum.None, regnum.I386GDB_Ecx},
	{"edx", "", regnum.I386EH_Edx, regnum.I386_Edx, regnum.None, regnum.I386GDB_Edx},
	{"edi", "", regnum.I386EH_Edi, regnum.I386_Edi, regnum.None, regnum.I386GDB_Edi},
	{"esi", "", regnum.I386EH_Esi, regnum.I386_Esi, regnum.None, regnum.I386GDB_Esi},
	{"ebp", "fp", regnum.I386EH_Ebp, regnum.I386_Ebp, regnum.GenericFP, regnum.I386GDB_Ebp},
	{"esp", "sp", regnum.I386EH_Esp, regnum.I386_Esp, regnum.GenericSP, regnum.I386GDB_Esp},
	{"eip", "pc", regnum.I386EH_Eip, regnum.I386_Eip, regnum.GenericPC, regnum.I386GDB_Eip},
	{"eflags", "flags", regnum.I386EH_Eflags, regnum.I386_Eflags, regnum.GenericFlags, regnum.I386GDB_Eflags},
	{"cs", "", regnum.None, regnum.I386_Cs, regnum.None, regnum.I386GDB_Cs},
	{"fs", "", regnum.None, regnum.I386_Fs, regnum.None, regnum.I386GDB_Fs},
	{"gs", "", regnum.None, regnum.I386_Gs, regnum.None, regnum.I386GDB_Gs},
	{"ss", "", regnum.None, regnum.I386_Ss, regnum.None, regnum.I386GDB_Ss},
	{"ds", "", regnum.None, regnum.I386_Ds, regnum.None, regnum.I386GDB_Ds},
	{"es", "", regnum.None, regnum.I386_Es, regnum.None, regnum.I386GDB_Es},
}

var amd64GPRs = func() []x86GPR {
	r := []x86GPR{
		{"rax", "", regnum.AMD64_Rax, regnum.AMD64_Rax, regnum.None, regnum.AMD64GDB_Rax},
		{"rbx", "", regnum.AMD64_Rbx, regnum.AMD64_Rbx, regnum.None, regnum.AMD64GDB_Rbx},
		{"rcx", "", regnum.AMD64_Rcx, regnum.AMD64_Rcx, regnum.None, regnum.AMD64GDB_Rcx},
		{"rdx", "", regnum.AMD64_Rdx, regnum.AMD64_Rdx, regnum.None, regnum.AMD64GDB_Rdx},
		{"rdi", "", regnum.AMD64_Rdi, regnum.AMD64_Rdi, regnum.None, regnum.AMD64GDB_Rdi},
		{"rsi", "", regnum.AMD64_Rsi, regnum.AMD64_Rsi, regnum.None, regnum.AMD64GDB_Rsi},
		{"rbp", "fp", regnum.AMD64_Rbp, regnum.AMD64_Rbp, regnum.GenericFP, regnum.AMD64GDB_Rbp},
		{"rsp", "sp", regnum.AMD64_Rsp, regnum.AMD64_Rsp, regnum.GenericSP, regnum.AMD64GDB_Rsp},
	}
	for i := 0; i < 8; i++ {
		r = append(r, x86GPR{fmt.Sprintf("r%d", 8+i), "", regnum.AMD64_R8 + i, regnum.AMD64_R8 + i, regnum.None, regnum.AMD64GDB_R8 + i})
	}
	return append(r, []x86GPR{
		{"rip", "pc", regnum.AMD64_Rip, regnum.AMD64_Rip, regnum.GenericPC, regnum.AMD64GDB_Rip},
		{"rflags", "flags", regnum.AMD64_Rflags, regnum.AMD64_Rflags, regnum.GenericFlags, regnum.AMD64GDB_Rflags},
		{"cs", "", regnum.AMD64_Cs, regnum.AMD64_Cs, regnum.None, regnum.AMD64GDB_Cs},
		{"fs", "", regnum.AMD64_Fs, regnum.AMD64_Fs, regnum.None, regnum.AMD64GDB_Fs},
		{"gs", "", regnum.AMD64_Gs, regnum.AMD64_Gs, regnum.None, regnum.AMD64GDB_Gs},
		{"ss", "", regnum.AMD64_Ss, regnum.AMD64_Ss, regnum.None, regnum.AMD64GDB_Ss},
		{"ds", "", regnum.AMD64_Ds, regnum.AMD64_Ds, regnum.None, regnum.AMD64GDB_Ds},
		{"es", "", regnum.AMD64_Es, regnum.AMD64_Es, regnum.None, regnum.AMD64GDB_Es},
		{"fs_base", "", regnum.AMD64_Fs_base, regnum.AMD64_Fs_base, regnum.None, regnum.None},
		{"gs_base", "", regnum.AMD64_Gs_base, regnum.AMD64_Gs_base, regnum.None, regnum.None},
	}...)
}()

// debugRegs is the location of DR0 through DR7 in the user area.
type debugRegs struct {
	base, stride, size int
}

func (dr debugRegs) offset(i int) int {
	return dr.base + dr.stride*i
}

// newX86Table builds the register table of an x86 thread. The register set
// (i386 or x86_64) follows ptrSize, the offsets of general purpose and debug
// registers follow the kernel structures described by gpr and dr. Registers
// of the set missing from gpr are not part of the table.
func newX86Table(name string, ptrSize int, gpr map[string]field, gprSize int, dr debugRegs) *Table {
	var x xsave
	b := newBuilder(name, ptrSize, gprSize, int(unsafe.Sizeof(x)))
	b.t.BreakpointPCOffset = 1 // int3

	gprs, nxmm := i386GPRs, 8
	if ptrSize == 8 {
		gprs, nxmm = amd64GPRs, 16
	}
	for _, r := range gprs {
		f, ok := gpr[r.name]
		if !ok {
			continue
		}
		b.add(Descriptor{
			Name:     r.name,
			Alias:    r.alias,
			Size:     f.size,
			Offset:   f.offset,
			Set:      SetGPR,
			Encoding: EncodingUint,
			Format:   FormatHex,
			Kinds:    kinds(r.eh, r.dwarf, r.generic, r.gdb),
		})
	}

	if ptrSize == 8 {
		addAMD64SubRegisters(b)
	} else {
		addI386SubRegisters(b)
	}

	addX87(b, ptrSize)

	xmmKinds := func(i int) [regnum.NumKinds]int {
		if ptrSize == 8 {
			return kinds(regnum.AMD64_XMM0+i, regnum.AMD64_XMM0+i, regnum.None, regnum.AMD64GDB_XMM0+i)
		}
		return kinds(regnum.I386EH_XMM0+i, regnum.I386_XMM0+i, regnum.None, regnum.I386GDB_XMM0+i)
	}
	for i := 0; i < nxmm; i++ {
		b.add(Descriptor{
			Name:     fmt.Sprintf("xmm%d", i),
			Size:     16,
			Offset:   XMMOffset(i),
			Set:      SetFPR,
			Encoding: EncodingVector,
			Format:   FormatVectorOfUInt8,
			Kinds:    xmmKinds(i),
		})
	}
	for i := 0; i < nxmm; i++ {
		// YMM registers share the DWARF number of the corresponding XMM
		// register and are told apart by size.
		k := xmmKinds(i)
		gdb := regnum.I386GDB_YMM0h + i
		if ptrSize == 8 {
			gdb = regnum.AMD64GDB_YMM0h + i
		}
		b.add(Descriptor{
			Name:     fmt.Sprintf("ymm%d", i),
			Size:     32,
			Offset:   32 * i,
			Set:      SetAVX,
			Encoding: EncodingVector,
			Format:   FormatVectorOfUInt8,
			Kinds:    kinds(regnum.None, k[regnum.KindDWARF], regnum.None, gdb),
		})
	}

	for i := 0; i < 8; i++ {
		b.add(Descriptor{
			Name:     fmt.Sprintf("dr%d", i),
			Size:     dr.size,
			Offset:   dr.offset(i),
			Set:      SetDBG,
			Encoding: EncodingUint,
			Format:   FormatHex,
			Kinds:    noKinds(),
		})
	}

	return b.finish()
}

func addI386SubRegisters(b *builder) {
	for _, r := range []string{"ax", "bx", "cx", "dx", "di", "si", "bp", "sp"} {
		b.sub(r, "e"+r, 2, 0)
	}
	for _, r := range []string{"a", "b", "c", "d"} {
		b.sub(r+"h", "e"+r+"x", 1, 1)
	}
	for _, r := range []string{"a", "b", "c", "d"} {
		b.sub(r+"l", "e"+r+"x", 1, 0)
	}
}

func addAMD64SubRegisters(b *builder) {
	legacy := []string{"ax", "bx", "cx", "dx", "di", "si", "bp", "sp"}
	for _, r := range legacy {
		b.sub("e"+r, "r"+r, 4, 0)
	}
	for i := 8; i < 16; i++ {
		b.sub(fmt.Sprintf("r%dd", i), fmt.Sprintf("r%d", i), 4, 0)
	}
	for _, r := range legacy {
		b.sub(r, "r"+r, 2, 0)
	}
	for i := 8; i < 16; i++ {
		b.sub(fmt.Sprintf("r%dw", i), fmt.Sprintf("r%d", i), 2, 0)
	}
	for _, r := range []string{"a", "b", "c", "d"} {
		b.sub(r+"h", "r"+r+"x", 1, 1)
	}
	for _, r := range []string{"a", "b", "c", "d"} {
		b.sub(r+"l", "r"+r+"x", 1, 0)
	}
	for _, r := range []string{"di", "si", "bp", "sp"} {
		b.sub(r+"l", "r"+r, 1, 0)
	}
	for i := 8; i < 16; i++ {
		b.sub(fmt.Sprintf("r%dl", i), fmt.Sprintf("r%d", i), 1, 0)
	}
}

// addX87 adds the x87 control registers, ST and MM registers. The FPU
// instruction and operand pointers are a union: 32-bit code sees offset
// and segment pairs, 64-bit code sees two 64-bit pointers.
func addX87(b *builder, ptrSize int) {
	var x xsave
	var p32 fpuPtr32
	var p64 fpuPtr64
	fx := unsafe.Offsetof(x.Legacy)
	ptr := fx + unsafe.Offsetof(x.Legacy.Ptr)

	fpr := func(name string, f field, k [regnum.NumKinds]int) {
		b.add(Descriptor{
			Name:     name,
			Size:     f.size,
			Offset:   f.offset,
			Set:      SetFPR,
			Encoding: EncodingUint,
			Format:   FormatHex,
			Kinds:    k,
		})
	}

	if ptrSize == 8 {
		fpr("fctrl", at(fx+unsafe.Offsetof(x.Legacy.Fctrl), 2), kinds(regnum.None, regnum.AMD64_CW, regnum.None, regnum.AMD64GDB_Fctrl))
		fpr("fstat", at(fx+unsafe.Offsetof(x.Legacy.Fstat), 2), kinds(regnum.None, regnum.AMD64_SW, regnum.None, regnum.AMD64GDB_Fstat))
		fpr("ftag", at(fx+unsafe.Offsetof(x.Legacy.Ftag), 2), kinds(regnum.None, regnum.None, regnum.None, regnum.AMD64GDB_Ftag))
		fpr("fop", at(fx+unsafe.Offsetof(x.Legacy.Fop), 2), kinds(regnum.None, regnum.None, regnum.None, regnum.AMD64GDB_Fop))
		fpr("fip", at(ptr+unsafe.Offsetof(p64.Fip), 8), noKinds())
		fpr("fdp", at(ptr+unsafe.Offsetof(p64.Fdp), 8), noKinds())
		fpr("mxcsr", at(fx+unsafe.Offsetof(x.Legacy.Mxcsr), 4), kinds(regnum.None, regnum.AMD64_MXCSR, regnum.None, regnum.AMD64GDB_Mxcsr))
	} else {
		fpr("fctrl", at(fx+unsafe.Offsetof(x.Legacy.Fctrl), 2), kinds(regnum.None, regnum.I386_Fctrl, regnum.None, regnum.I386GDB_Fctrl))
		fpr("fstat", at(fx+unsafe.Offsetof(x.Legacy.Fstat), 2), kinds(regnum.None, regnum.I386_Fstat, regnum.None, regnum.I386GDB_Fstat))
		fpr("ftag", at(fx+unsafe.Offsetof(x.Legacy.Ftag), 2), kinds(regnum.None, regnum.None, regnum.None, regnum.I386GDB_Ftag))
		fpr("fop", at(fx+unsafe.Offsetof(x.Legacy.Fop), 2), kinds(regnum.None, regnum.None, regnum.None, regnum.I386GDB_Fop))
		fpr("fiseg", at(ptr+unsafe.Offsetof(p32.Fiseg), 4), kinds(regnum.None, regnum.None, regnum.None, regnum.I386GDB_Fiseg))
		fpr("fioff", at(ptr+unsafe.Offsetof(p32.Fioff), 4), kinds(regnum.None, regnum.None, regnum.None, regnum.I386GDB_Fioff))
		fpr("foseg", at(ptr+unsafe.Offsetof(p32.Foseg), 4), kinds(regnum.None, regnum.None, regnum.None, regnum.I386GDB_Foseg))
		fpr("fooff", at(ptr+unsafe.Offsetof(p32.Fooff), 4), kinds(regnum.None, regnum.None, regnum.None, regnum.I386GDB_Fooff))
		fpr("mxcsr", at(fx+unsafe.Offsetof(x.Legacy.Mxcsr), 4), kinds(regnum.None, regnum.I386_Mxcsr, regnum.None, regnum.I386GDB_Mxcsr))
	}
	fpr("mxcsrmask", at(fx+unsafe.Offsetof(x.Legacy.Mxcsrmask), 4), noKinds())

	stmm := int(fx + unsafe.Offsetof(x.Legacy.Stmm))
	for i := 0; i < 8; i++ {
		k := kinds(regnum.I386EH_ST0+i, regnum.I386_ST0+i, regnum.None, regnum.I386GDB_ST0+i)
		if ptrSize == 8 {
			k = kinds(regnum.AMD64_ST0+i, regnum.AMD64_ST0+i, regnum.None, regnum.AMD64GDB_ST0+i)
		}
		b.add(Descriptor{
			Name:     fmt.Sprintf("st%d", i),
			Size:     10,
			Offset:   stmm + 16*i,
			Set:      SetFPR,
			Encoding: EncodingVector,
			Format:   FormatVectorOfUInt8,
			Kinds:    k,
		})
	}
	for i := 0; i < 8; i++ {
		k := kinds(regnum.I386EH_MM0+i, regnum.I386_MM0+i, regnum.None, regnum.I386GDB_MM0+i)
		if ptrSize == 8 {
			k = kinds(regnum.AMD64_MM0+i, regnum.AMD64_MM0+i, regnum.None, regnum.None)
		}
		fpr(fmt.Sprintf("mm%d", i), field{stmm + 16*i, 8}, k)
	}
}
