package regnum

// The mapping between hardware registers and DWARF registers is specified
// in the System V ABI AMD64 Architecture Processor Supplement v. 1.0 page 61,
// figure 3.36
// https://gitlab.com/x86-psABIs/x86-64-ABI/-/tree/master
//
// On AMD64 the eh_frame numbering is the same as the DWARF numbering.

const (
	AMD64_Rax     = 0
	AMD64_Rdx     = 1
	AMD64_Rcx     = 2
	AMD64_Rbx     = 3
	AMD64_Rsi     = 4
	AMD64_Rdi     = 5
	AMD64_Rbp     = 6
	AMD64_Rsp     = 7
	AMD64_R8      = 8 // R9 through R15 follow
	AMD64_Rip     = 16
	AMD64_XMM0    = 17 // XMM1 through XMM15 follow
	AMD64_ST0     = 33 // ST(1) through ST(7) follow
	AMD64_MM0     = 41 // MM1 through MM7 follow
	AMD64_Rflags  = 49
	AMD64_Es      = 50
	AMD64_Cs      = 51
	AMD64_Ss      = 52
	AMD64_Ds      = 53
	AMD64_Fs      = 54
	AMD64_Gs      = 55
	AMD64_Fs_base = 58
	AMD64_Gs_base = 59
	AMD64_MXCSR   = 64
	AMD64_CW      = 65
	AMD64_SW      = 66
)

// GDB remote protocol numbering for AMD64.
const (
	AMD64GDB_Rax    = 0
	AMD64GDB_Rbx    = 1
	AMD64GDB_Rcx    = 2
	AMD64GDB_Rdx    = 3
	AMD64GDB_Rsi    = 4
	AMD64GDB_Rdi    = 5
	AMD64GDB_Rbp    = 6
	AMD64GDB_Rsp    = 7
	AMD64GDB_R8     = 8 // R9 through R15 follow
	AMD64GDB_Rip    = 16
	AMD64GDB_Rflags = 17
	AMD64GDB_Cs     = 18
	AMD64GDB_Ss     = 19
	AMD64GDB_Ds     = 20
	AMD64GDB_Es     = 21
	AMD64GDB_Fs     = 22
	AMD64GDB_Gs     = 23
	AMD64GDB_ST0    = 24
	AMD64GDB_Fctrl  = 32
	AMD64GDB_Fstat  = 33
	AMD64GDB_Ftag   = 34
	AMD64GDB_Fiseg  = 35
	AMD64GDB_Fioff  = 36
	AMD64GDB_Foseg  = 37
	AMD64GDB_Fooff  = 38
	AMD64GDB_Fop    = 39
	AMD64GDB_XMM0   = 40
	AMD64GDB_Mxcsr  = 56
	AMD64GDB_YMM0h  = 57
)
