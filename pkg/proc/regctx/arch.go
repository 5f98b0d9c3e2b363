package regctx

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-delve/nativethread/pkg/proc/reglayout"
)

// ErrUnsupportedArch is returned when no register layout exists for an
// (OS, Core) pair on the current host.
var ErrUnsupportedArch = errors.New("unsupported operating system and architecture")

// OS is the operating system of the traced process.
type OS uint8

const (
	Linux OS = iota
	FreeBSD

	numOS
)

func (os OS) String() string {
	switch os {
	case Linux:
		return "linux"
	case FreeBSD:
		return "freebsd"
	}
	return fmt.Sprintf("OS(%d)", uint8(os))
}

// Core is the CPU core of the traced process.
type Core uint8

const (
	I386 Core = iota
	I486
	I486SX
	X86_64
	MIPS64

	numCores
)

func (c Core) String() string {
	switch c {
	case I386:
		return "i386"
	case I486:
		return "i486"
	case I486SX:
		return "i486sx"
	case X86_64:
		return "x86_64"
	case MIPS64:
		return "mips64"
	}
	return fmt.Sprintf("Core(%d)", uint8(c))
}

// Arch identifies the target of a register context.
type Arch struct {
	OS   OS
	Core Core
}

func (a Arch) String() string {
	return a.OS.String() + "/" + a.Core.String()
}

// ParseArch parses strings of the form "os/core", for example
// "linux/x86_64".
func ParseArch(s string) (Arch, error) {
	for os := OS(0); os < numOS; os++ {
		for c := Core(0); c < numCores; c++ {
			if a := (Arch{os, c}); a.String() == s {
				return a, nil
			}
		}
	}
	return Arch{}, fmt.Errorf("unknown architecture %q", s)
}

// An "invalid array index" compiler error signifies that the registry below
// must be updated because an OS or a Core was added.
func _() {
	var x [1]struct{}
	_ = x[numOS-2]
	_ = x[numCores-5]
}

// layoutSelector picks a table given the pointer size of the host doing
// the tracing. It returns nil if the host can not trace the target.
type layoutSelector func(hostPtrSize int) *reglayout.Table

var registry = [numOS][numCores]layoutSelector{
	Linux: {
		I386:   linuxX86,
		I486:   linuxX86,
		I486SX: linuxX86,
		X86_64: linuxX86_64,
	},
	FreeBSD: {
		I386:   fixedLayout(reglayout.FreeBSDI386),
		I486:   fixedLayout(reglayout.FreeBSDI386),
		I486SX: fixedLayout(reglayout.FreeBSDI386),
		X86_64: fixedLayout(reglayout.FreeBSDAMD64),
		MIPS64: fixedLayout(reglayout.FreeBSDMIPS64),
	},
}

func fixedLayout(t *reglayout.Table) layoutSelector {
	return func(int) *reglayout.Table { return t }
}

// linuxX86 selects the layout of a 32-bit thread. The blob width follows
// the tracing ABI of the host kernel, not the word size of the thread: a
// 64-bit kernel exchanges x86_64 structures even with 32-bit threads.
func linuxX86(hostPtrSize int) *reglayout.Table {
	switch hostPtrSize {
	case 4:
		return reglayout.LinuxI386
	case 8:
		return reglayout.LinuxI386OnAMD64
	}
	return nil
}

func linuxX86_64(hostPtrSize int) *reglayout.Table {
	if hostPtrSize != 8 {
		return nil
	}
	return reglayout.LinuxAMD64
}

// LayoutFor returns the register table used for threads of arch traced
// from a host with the given pointer size.
func LayoutFor(arch Arch, hostPtrSize int) (*reglayout.Table, error) {
	if arch.OS >= numOS || arch.Core >= numCores {
		return nil, fmt.Errorf("%v: %w", arch, ErrUnsupportedArch)
	}
	sel := registry[arch.OS][arch.Core]
	if sel == nil {
		return nil, fmt.Errorf("%v: %w", arch, ErrUnsupportedArch)
	}
	t := sel(hostPtrSize)
	if t == nil {
		return nil, fmt.Errorf("%v on a %d-bit host: %w", arch, hostPtrSize*8, ErrUnsupportedArch)
	}
	return t, nil
}

// HostPtrSize returns the pointer size of the host running this program.
func HostPtrSize() int {
	return int(unsafe.Sizeof(uintptr(0)))
}
