package reglayout

import "unsafe"

var (
	// LinuxI386 is the register table of a 32-bit thread traced by a
	// 32-bit Linux kernel.
	LinuxI386 = newX86Table("linux/i386", 4, linuxI386GPR(), int(unsafe.Sizeof(linuxI386UserRegs{})),
		debugRegs{base: linuxI386DebugRegOffset, stride: 4, size: 4})

	// LinuxI386OnAMD64 is the register table of a 32-bit thread traced by a
	// 64-bit Linux kernel: register names and sizes are those of i386 but
	// the blobs exchanged with the kernel use the x86_64 layout.
	LinuxI386OnAMD64 = newX86Table("linux/i386-on-amd64", 4, linuxI386OnAMD64GPR(), int(unsafe.Sizeof(linuxAMD64UserRegs{})),
		debugRegs{base: linuxAMD64DebugRegOffset, stride: 8, size: 4})

	// LinuxAMD64 is the register table of a 64-bit Linux thread.
	LinuxAMD64 = newX86Table("linux/amd64", 8, linuxAMD64GPR(), int(unsafe.Sizeof(linuxAMD64UserRegs{})),
		debugRegs{base: linuxAMD64DebugRegOffset, stride: 8, size: 8})

	// FreeBSDI386 is the register table of a 32-bit FreeBSD thread. FreeBSD
	// exposes debug registers in struct dbreg, placed after struct reg and
	// struct fpreg in the user area.
	FreeBSDI386 = newX86Table("freebsd/i386", 4, freebsdI386GPR(), int(unsafe.Sizeof(freebsdI386Reg{})),
		debugRegs{base: int(unsafe.Sizeof(freebsdI386Reg{})) + freebsdFPRegSize, stride: 4, size: 4})

	// FreeBSDAMD64 is the register table of a 64-bit FreeBSD thread.
	FreeBSDAMD64 = newX86Table("freebsd/amd64", 8, freebsdAMD64GPR(), int(unsafe.Sizeof(freebsdAMD64Reg{})),
		debugRegs{base: int(unsafe.Sizeof(freebsdAMD64Reg{})) + freebsdFPRegSize, stride: 8, size: 8})

	// FreeBSDMIPS64 is the register table of a 64-bit FreeBSD mips thread.
	FreeBSDMIPS64 = newMIPS64Table("freebsd/mips64")
)

// freebsdFPRegSize is the size of struct fpreg on FreeBSD x86, an FXSAVE
// area.
const freebsdFPRegSize = 512

// Tables returns every register table, in a stable order.
func Tables() []*Table {
	return []*Table{LinuxI386, LinuxI386OnAMD64, LinuxAMD64, FreeBSDI386, FreeBSDAMD64, FreeBSDMIPS64}
}

// ByName returns the table with the given name.
func ByName(name string) (*Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func linuxI386GPR() map[string]field {
	var r linuxI386UserRegs
	return map[string]field{
		"eax":    at(unsafe.Offsetof(r.Eax), unsafe.Sizeof(r.Eax)),
		"ebx":    at(unsafe.Offsetof(r.Ebx), unsafe.Sizeof(r.Ebx)),
		"ecx":    at(unsafe.Offsetof(r.Ecx), unsafe.Sizeof(r.Ecx)),
		"edx":    at(unsafe.Offsetof(r.Edx), unsafe.Sizeof(r.Edx)),
		"edi":    at(unsafe.Offsetof(r.Edi), unsafe.Sizeof(r.Edi)),
		"esi":    at(unsafe.Offsetof(r.Esi), unsafe.Sizeof(r.Esi)),
		"ebp":    at(unsafe.Offsetof(r.Ebp), unsafe.Sizeof(r.Ebp)),
		"esp":    at(unsafe.Offsetof(r.Esp), unsafe.Sizeof(r.Esp)),
		"eip":    at(unsafe.Offsetof(r.Eip), unsafe.Sizeof(r.Eip)),
		"eflags": at(unsafe.Offsetof(r.Eflags), unsafe.Sizeof(r.Eflags)),
		"cs":     at(unsafe.Offsetof(r.Xcs), unsafe.Sizeof(r.Xcs)),
		"fs":     at(unsafe.Offsetof(r.Xfs), unsafe.Sizeof(r.Xfs)),
		"gs":     at(unsafe.Offsetof(r.Xgs), unsafe.Sizeof(r.Xgs)),
		"ss":     at(unsafe.Offsetof(r.Xss), unsafe.Sizeof(r.Xss)),
		"ds":     at(unsafe.Offsetof(r.Xds), unsafe.Sizeof(r.Xds)),
		"es":     at(unsafe.Offsetof(r.Xes), unsafe.Sizeof(r.Xes)),
	}
}

// linuxI386OnAMD64GPR places the 32-bit registers in the low half of the
// corresponding x86_64 fields.
func linuxI386OnAMD64GPR() map[string]field {
	var r linuxAMD64UserRegs
	return map[string]field{
		"eax":    at(unsafe.Offsetof(r.Rax), 4),
		"ebx":    at(unsafe.Offsetof(r.Rbx), 4),
		"ecx":    at(unsafe.Offsetof(r.Rcx), 4),
		"edx":    at(unsafe.Offsetof(r.Rdx), 4),
		"edi":    at(unsafe.Offsetof(r.Rdi), 4),
		"esi":    at(unsafe.Offsetof(r.Rsi), 4),
		"ebp":    at(unsafe.Offsetof(r.Rbp), 4),
		"esp":    at(unsafe.Offsetof(r.Rsp), 4),
		"eip":    at(unsafe.Offsetof(r.Rip), 4),
		"eflags": at(unsafe.Offsetof(r.Eflags), 4),
		"cs":     at(unsafe.Offsetof(r.Cs), 4),
		"fs":     at(unsafe.Offsetof(r.Fs), 4),
		"gs":     at(unsafe.Offsetof(r.Gs), 4),
		"ss":     at(unsafe.Offsetof(r.Ss), 4),
		"ds":     at(unsafe.Offsetof(r.Ds), 4),
		"es":     at(unsafe.Offsetof(r.Es), 4),
	}
}

func linuxAMD64GPR() map[string]field {
	var r linuxAMD64UserRegs
	return map[string]field{
		"rax":     at(unsafe.Offsetof(r.Rax), unsafe.Sizeof(r.Rax)),
		"rbx":     at(unsafe.Offsetof(r.Rbx), unsafe.Sizeof(r.Rbx)),
		"rcx":     at(unsafe.Offsetof(r.Rcx), unsafe.Sizeof(r.Rcx)),
		"rdx":     at(unsafe.Offsetof(r.Rdx), unsafe.Sizeof(r.Rdx)),
		"rdi":     at(unsafe.Offsetof(r.Rdi), unsafe.Sizeof(r.Rdi)),
		"rsi":     at(unsafe.Offsetof(r.Rsi), unsafe.Sizeof(r.Rsi)),
		"rbp":     at(unsafe.Offsetof(r.Rbp), unsafe.Sizeof(r.Rbp)),
		"rsp":     at(unsafe.Offsetof(r.Rsp), unsafe.Sizeof(r.Rsp)),
		"r8":      at(unsafe.Offsetof(r.R8), unsafe.Sizeof(r.R8)),
		"r9":      at(unsafe.Offsetof(r.R9), unsafe.Sizeof(r.R9)),
		"r10":     at(unsafe.Offsetof(r.R10), unsafe.Sizeof(r.R10)),
		"r11":     at(unsafe.Offsetof(r.R11), unsafe.Sizeof(r.R11)),
		"r12":     at(unsafe.Offsetof(r.R12), unsafe.Sizeof(r.R12)),
		"r13":     at(unsafe.Offsetof(r.R13), unsafe.Sizeof(r.R13)),
		"r14":     at(unsafe.Offsetof(r.R14), unsafe.Sizeof(r.R14)),
		"r15":     at(unsafe.Offsetof(r.R15), unsafe.Sizeof(r.R15)),
		"rip":     at(unsafe.Offsetof(r.Rip), unsafe.Sizeof(r.Rip)),
		"rflags":  at(unsafe.Offsetof(r.Eflags), unsafe.Sizeof(r.Eflags)),
		"cs":      at(unsafe.Offsetof(r.Cs), unsafe.Sizeof(r.Cs)),
		"fs":      at(unsafe.Offsetof(r.Fs), unsafe.Sizeof(r.Fs)),
		"gs":      at(unsafe.Offsetof(r.Gs), unsafe.Sizeof(r.Gs)),
		"ss":      at(unsafe.Offsetof(r.Ss), unsafe.Sizeof(r.Ss)),
		"ds":      at(unsafe.Offsetof(r.Ds), unsafe.Sizeof(r.Ds)),
		"es":      at(unsafe.Offsetof(r.Es), unsafe.Sizeof(r.Es)),
		"fs_base": at(unsafe.Offsetof(r.Fs_base), unsafe.Sizeof(r.Fs_base)),
		"gs_base": at(unsafe.Offsetof(r.Gs_base), unsafe.Sizeof(r.Gs_base)),
	}
}

func freebsdI386GPR() map[string]field {
	var r freebsdI386Reg
	return map[string]field{
		"eax":    at(unsafe.Offsetof(r.Eax), unsafe.Sizeof(r.Eax)),
		"ebx":    at(unsafe.Offsetof(r.Ebx), unsafe.Sizeof(r.Ebx)),
		"ecx":    at(unsafe.Offsetof(r.Ecx), unsafe.Sizeof(r.Ecx)),
		"edx":    at(unsafe.Offsetof(r.Edx), unsafe.Sizeof(r.Edx)),
		"edi":    at(unsafe.Offsetof(r.Edi), unsafe.Sizeof(r.Edi)),
		"esi":    at(unsafe.Offsetof(r.Esi), unsafe.Sizeof(r.Esi)),
		"ebp":    at(unsafe.Offsetof(r.Ebp), unsafe.Sizeof(r.Ebp)),
		"esp":    at(unsafe.Offsetof(r.Esp), unsafe.Sizeof(r.Esp)),
		"eip":    at(unsafe.Offsetof(r.Eip), unsafe.Sizeof(r.Eip)),
		"eflags": at(unsafe.Offsetof(r.Eflags), unsafe.Sizeof(r.Eflags)),
		"cs":     at(unsafe.Offsetof(r.Cs), unsafe.Sizeof(r.Cs)),
		"fs":     at(unsafe.Offsetof(r.Fs), unsafe.Sizeof(r.Fs)),
		"gs":     at(unsafe.Offsetof(r.Gs), unsafe.Sizeof(r.Gs)),
		"ss":     at(unsafe.Offsetof(r.Ss), unsafe.Sizeof(r.Ss)),
		"ds":     at(unsafe.Offsetof(r.Ds), unsafe.Sizeof(r.Ds)),
		"es":     at(unsafe.Offsetof(r.Es), unsafe.Sizeof(r.Es)),
	}
}

func freebsdAMD64GPR() map[string]field {
	var r freebsdAMD64Reg
	return map[string]field{
		"rax":    at(unsafe.Offsetof(r.Rax), unsafe.Sizeof(r.Rax)),
		"rbx":    at(unsafe.Offsetof(r.Rbx), unsafe.Sizeof(r.Rbx)),
		"rcx":    at(unsafe.Offsetof(r.Rcx), unsafe.Sizeof(r.Rcx)),
		"rdx":    at(unsafe.Offsetof(r.Rdx), unsafe.Sizeof(r.Rdx)),
		"rdi":    at(unsafe.Offsetof(r.Rdi), unsafe.Sizeof(r.Rdi)),
		"rsi":    at(unsafe.Offsetof(r.Rsi), unsafe.Sizeof(r.Rsi)),
		"rbp":    at(unsafe.Offsetof(r.Rbp), unsafe.Sizeof(r.Rbp)),
		"rsp":    at(unsafe.Offsetof(r.Rsp), unsafe.Sizeof(r.Rsp)),
		"r8":     at(unsafe.Offsetof(r.R8), unsafe.Sizeof(r.R8)),
		"r9":     at(unsafe.Offsetof(r.R9), unsafe.Sizeof(r.R9)),
		"r10":    at(unsafe.Offsetof(r.R10), unsafe.Sizeof(r.R10)),
		"r11":    at(unsafe.Offsetof(r.R11), unsafe.Sizeof(r.R11)),
		"r12":    at(unsafe.Offsetof(r.R12), unsafe.Sizeof(r.R12)),
		"r13":    at(unsafe.Offsetof(r.R13), unsafe.Sizeof(r.R13)),
		"r14":    at(unsafe.Offsetof(r.R14), unsafe.Sizeof(r.R14)),
		"r15":    at(unsafe.Offsetof(r.R15), unsafe.Sizeof(r.R15)),
		"rip":    at(unsafe.Offsetof(r.Rip), unsafe.Sizeof(r.Rip)),
		"rflags": at(unsafe.Offsetof(r.Rflags), unsafe.Sizeof(r.Rflags)),
		"cs":     at(unsafe.Offsetof(r.Cs), unsafe.Sizeof(r.Cs)),
		"fs":     at(unsafe.Offsetof(r.Fs), unsafe.Sizeof(r.Fs)),
		"gs":     at(unsafe.Offsetof(r.Gs), unsafe.Sizeof(r.Gs)),
		"ss":     at(unsafe.Offsetof(r.Ss), unsafe.Sizeof(r.Ss)),
		"ds":     at(unsafe.Offsetof(r.Ds), unsafe.Sizeof(r.Ds)),
		"es":     at(unsafe.Offsetof(r.Es), unsafe.Sizeof(r.Es)),
	}
}
