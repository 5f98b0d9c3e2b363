package regnum

// DWARF numbering for MIPS64 general purpose registers: r0 through r31 are
// numbered 0 through 31, the remaining registers follow the numbering used
// by GCC.
const (
	MIPS64_Zero     = 0
	MIPS64_Sp       = 29
	MIPS64_Fp       = 30
	MIPS64_Ra       = 31
	MIPS64_Sr       = 32
	MIPS64_Mullo    = 33
	MIPS64_Mulhi    = 34
	MIPS64_Badvaddr = 35
	MIPS64_Cause    = 36
	MIPS64_Pc       = 37
	MIPS64_Ic       = 38
	MIPS64_Dummy    = 39
)
