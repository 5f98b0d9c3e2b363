package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

const (
	fxsaveSize = 512

	// PTRACE_GETFPREGS returns the legacy FSAVE format on 386.
	ptraceGetFXRegs = 18 // PTRACE_GETFPXREGS
	ptraceSetFXRegs = 19 // PTRACE_SETFPXREGS
)

// ptraceThreadPointer returns the base address of the TLS segment of tid,
// selected by GS. See PTRACE_GET_THREAD_AREA in ptrace(2).
func ptraceThreadPointer(tid int) (uint64, error) {
	var regs sys.PtraceRegs
	if err := sys.PtraceGetRegs(tid, &regs); err != nil {
		return 0, err
	}
	// struct user_desc: entry_number, base_addr, limit, flags
	ud := [4]uint32{}
	_, _, e1 := syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_GET_THREAD_AREA, uintptr(tid), uintptr(regs.Xgs>>3), uintptr(unsafe.Pointer(&ud)), 0, 0)
	if e1 != 0 {
		return 0, e1
	}
	return uint64(ud[1]), nil
}
