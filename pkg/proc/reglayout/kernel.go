package reglayout

import "unsafe"

// The structures in this file mirror the register structures the kernels
// exchange with a tracer. They are never instantiated with real data, they
// exist so that offsets and sizes can be taken with unsafe.Offsetof and
// unsafe.Sizeof instead of being written out by hand. Every field has a
// fixed size so the Go layout matches the C layout on any host.

// linuxI386UserRegs is struct user_regs_struct from
// arch/x86/include/asm/user_32.h.
type linuxI386UserRegs struct {
	Ebx      uint32
	Ecx      uint32
	Edx      uint32
	Esi      uint32
	Edi      uint32
	Ebp      uint32
	Eax      uint32
	Xds      uint32
	Xes      uint32
	Xfs      uint32
	Xgs      uint32
	Orig_eax uint32
	Eip      uint32
	Xcs      uint32
	Eflags   uint32
	Esp      uint32
	Xss      uint32
}

// linuxAMD64UserRegs is struct user_regs_struct from
// arch/x86/include/asm/user_64.h.
type linuxAMD64UserRegs struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	Orig_rax uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	Fs_base  uint64
	Gs_base  uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// Offsets of u_debugreg in struct user, see arch/x86/include/asm/user_32.h,
// arch/x86/include/asm/user_64.h and arch/x86/kernel/ptrace.c.
const (
	linuxI386DebugRegOffset  = 0xFC
	linuxAMD64DebugRegOffset = 848
)

// freebsdI386Reg is struct reg from sys/i386/include/reg.h.
type freebsdI386Reg struct {
	Fs     uint32
	Es     uint32
	Ds     uint32
	Edi    uint32
	Esi    uint32
	Ebp    uint32
	Isp    uint32
	Ebx    uint32
	Edx    uint32
	Ecx    uint32
	Eax    uint32
	Trapno uint32
	Err    uint32
	Eip    uint32
	Cs     uint32
	Eflags uint32
	Esp    uint32
	Ss     uint32
	Gs     uint32
}

// freebsdAMD64Reg is struct reg from sys/amd64/include/reg.h.
type freebsdAMD64Reg struct {
	R15    uint64
	R14    uint64
	R13    uint64
	R12    uint64
	R11    uint64
	R10    uint64
	R9     uint64
	R8     uint64
	Rdi    uint64
	Rsi    uint64
	Rbp    uint64
	Rbx    uint64
	Rdx    uint64
	Rcx    uint64
	Rax    uint64
	Trapno uint32
	Fs     uint16
	Gs     uint16
	Err    uint32
	Es     uint16
	Ds     uint16
	Rip    uint64
	Cs     uint64
	Rflags uint64
	Rsp    uint64
	Ss     uint64
}

// freebsdMIPS64Reg is struct reg from sys/mips/include/reg.h (NUMSAVEREGS
// registers of 8 bytes each).
type freebsdMIPS64Reg struct {
	Regs     [32]uint64
	Sr       uint64
	Mullo    uint64
	Mulhi    uint64
	Badvaddr uint64
	Cause    uint64
	Pc       uint64
	Ic       uint64
	Dummy    uint64
}

// fxsave is the legacy region of the FXSAVE/XSAVE area, see Section 10.5.1
// of the Intel® 64 and IA-32 Architectures Software Developer’s Manual,
// Volume 1.
type fxsave struct {
	Fctrl     uint16
	Fstat     uint16
	Ftag      uint16
	Fop       uint16
	Ptr       [16]byte // fpuPtr32 or fpuPtr64
	Mxcsr     uint32
	Mxcsrmask uint32
	Stmm      [8][16]byte
	Xmm       [16][16]byte
	Padding   [96]byte
}

// fpuPtr32 is the view of fxsave.Ptr used by 32-bit code.
type fpuPtr32 struct {
	Fioff uint32
	Fiseg uint32
	Fooff uint32
	Foseg uint32
}

// fpuPtr64 is the view of fxsave.Ptr used by 64-bit code.
type fpuPtr64 struct {
	Fip uint64
	Fdp uint64
}

// xsave is the XSAVE area up to and including the AVX state component.
type xsave struct {
	Legacy fxsave
	Header [64]byte
	Ymmh   [16][16]byte
}

// XMMOffset returns the offset of the i-th XMM register in the FPR blob.
func XMMOffset(i int) int {
	var x xsave
	return int(unsafe.Offsetof(x.Legacy)+unsafe.Offsetof(x.Legacy.Xmm)) + i*16
}

// YMMHOffset returns the offset of the upper half of the i-th YMM register
// in the FPR blob.
func YMMHOffset(i int) int {
	var x xsave
	return int(unsafe.Offsetof(x.Ymmh)) + i*16
}

// field is the location of a register in a blob.
type field struct {
	offset int
	size   int
}

func at(offset, size uintptr) field {
	return field{int(offset), int(size)}
}
