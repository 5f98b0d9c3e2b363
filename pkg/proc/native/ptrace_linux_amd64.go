package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

const (
	fxsaveSize = 512

	ptraceGetFXRegs = sys.PTRACE_GETFPREGS
	ptraceSetFXRegs = sys.PTRACE_SETFPREGS

	ptraceGetThreadArea = 25 // PTRACE_GET_THREAD_AREA

	// Code segment selector of 32-bit tasks (__USER32_CS).
	user32CS = 0x23
)

// ptraceThreadPointer returns the FS base of tid. A 32-bit inferior keeps
// its thread pointer in the TLS segment selected by GS instead.
func ptraceThreadPointer(tid int) (uint64, error) {
	var regs sys.PtraceRegs
	if err := sys.PtraceGetRegs(tid, &regs); err != nil {
		return 0, err
	}
	entry, compat := threadAreaEntry(regs.Cs, regs.Gs)
	if !compat {
		return regs.Fs_base, nil
	}
	// struct user_desc: entry_number, base_addr, limit, flags
	ud := [4]uint32{}
	_, _, e1 := syscall.Syscall6(syscall.SYS_PTRACE, ptraceGetThreadArea, uintptr(tid), uintptr(entry), uintptr(unsafe.Pointer(&ud)), 0, 0)
	if e1 != 0 {
		return 0, e1
	}
	return uint64(ud[1]), nil
}

// threadAreaEntry returns the GDT entry holding the TLS segment of a task
// with the given CS and GS selectors, false for 64-bit tasks.
func threadAreaEntry(cs, gs uint64) (int, bool) {
	if cs != user32CS {
		return 0, false
	}
	return int(gs >> 3), true
}
