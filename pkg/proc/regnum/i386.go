package regnum

// The mapping between hardware registers and DWARF registers is specified
// in the System V ABI Intel386 Architecture Processor Supplement page 25,
// table 2.14
// https://www.uclibc.org/docs/psABI-i386.pdf

const (
	I386_Eax    = 0
	I386_Ecx    = 1
	I386_Edx    = 2
	I386_Ebx    = 3
	I386_Esp    = 4
	I386_Ebp    = 5
	I386_Esi    = 6
	I386_Edi    = 7
	I386_Eip    = 8
	I386_Eflags = 9
	I386_ST0    = 11 // ST(1) through ST(7) follow
	I386_XMM0   = 21 // XMM1 through XMM7 follow
	I386_MM0    = 29 // MM1 through MM7 follow
	I386_Fctrl  = 37
	I386_Fstat  = 38
	I386_Mxcsr  = 39
	I386_Es     = 40
	I386_Cs     = 41
	I386_Ss     = 42
	I386_Ds     = 43
	I386_Fs     = 44
	I386_Gs     = 45
)

// eh_frame numbering used by GCC on i386. Older versions of GCC have ebp
// and esp swapped with respect to DWARF.
const (
	I386EH_Eax    = 0
	I386EH_Ecx    = 1
	I386EH_Edx    = 2
	I386EH_Ebx    = 3
	I386EH_Ebp    = 4
	I386EH_Esp    = 5
	I386EH_Esi    = 6
	I386EH_Edi    = 7
	I386EH_Eip    = 8
	I386EH_Eflags = 9
	I386EH_ST0    = 12
	I386EH_XMM0   = 21
	I386EH_MM0    = 29
)

// GDB remote protocol numbering for i386.
const (
	I386GDB_Eax    = 0
	I386GDB_Ecx    = 1
	I386GDB_Edx    = 2
	I386GDB_Ebx    = 3
	I386GDB_Esp    = 4
	I386GDB_Ebp    = 5
	I386GDB_Esi    = 6
	I386GDB_Edi    = 7
	I386GDB_Eip    = 8
	I386GDB_Eflags = 9
	I386GDB_Cs     = 10
	I386GDB_Ss     = 11
	I386GDB_Ds     = 12
	I386GDB_Es     = 13
	I386GDB_Fs     = 14
	I386GDB_Gs     = 15
	I386GDB_ST0    = 16
	I386GDB_Fctrl  = 24
	I386GDB_Fstat  = 25
	I386GDB_Ftag   = 26
	I386GDB_Fiseg  = 27
	I386GDB_Fioff  = 28
	I386GDB_Foseg  = 29
	I386GDB_Fooff  = 30
	I386GDB_Fop    = 31
	I386GDB_XMM0   = 32
	I386GDB_Mxcsr  = 40
	I386GDB_YMM0h  = 41
	I386GDB_MM0    = 49
)
