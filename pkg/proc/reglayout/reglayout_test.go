package reglayout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/go-delve/nativethread/pkg/proc/regnum"
)

func mustRegister(t *testing.T, tbl *Table, name string) *Descriptor {
	t.Helper()
	i, ok := tbl.Index(name)
	if !ok {
		t.Fatalf("%s: register %q not found", tbl.Name, name)
	}
	d, _ := tbl.Register(i)
	return d
}

func TestBlobSizes(t *testing.T) {
	for _, tc := range []struct {
		tbl              *Table
		ptrSize, gpr, fp int
	}{
		{LinuxI386, 4, 68, 832},
		{LinuxI386OnAMD64, 4, 216, 832},
		{LinuxAMD64, 8, 216, 832},
		{FreeBSDI386, 4, 76, 832},
		{FreeBSDAMD64, 8, 176, 832},
		{FreeBSDMIPS64, 8, 320, 0},
	} {
		if tc.tbl.PtrSize != tc.ptrSize || tc.tbl.GPRSize != tc.gpr || tc.tbl.FPRSize != tc.fp {
			t.Errorf("%s: got ptr=%d gpr=%d fpr=%d, want ptr=%d gpr=%d fpr=%d", tc.tbl.Name,
				tc.tbl.PtrSize, tc.tbl.GPRSize, tc.tbl.FPRSize, tc.ptrSize, tc.gpr, tc.fp)
		}
	}
}

func TestRegisterOffsets(t *testing.T) {
	for _, tc := range []struct {
		tbl          *Table
		name         string
		offset, size int
	}{
		{LinuxI386, "eax", 24, 4},
		{LinuxI386, "eip", 48, 4},
		{LinuxI386, "esp", 60, 4},
		{LinuxI386, "dr0", 0xFC, 4},
		{LinuxI386, "dr7", 0xFC + 28, 4},
		{LinuxI386OnAMD64, "eax", 80, 4},
		{LinuxI386OnAMD64, "eip", 128, 4},
		{LinuxI386OnAMD64, "dr7", 848 + 56, 4},
		{LinuxAMD64, "rax", 80, 8},
		{LinuxAMD64, "rip", 128, 8},
		{LinuxAMD64, "fs_base", 168, 8},
		{LinuxAMD64, "dr6", 848 + 48, 8},
		{FreeBSDI386, "eax", 40, 4},
		{FreeBSDI386, "eip", 52, 4},
		{FreeBSDI386, "dr0", 588, 4},
		{FreeBSDI386, "dr3", 600, 4},
		{FreeBSDAMD64, "rax", 112, 8},
		{FreeBSDAMD64, "fs", 124, 2},
		{FreeBSDAMD64, "rip", 136, 8},
		{FreeBSDAMD64, "dr0", 688, 8},
		{FreeBSDMIPS64, "sp", 232, 8},
		{FreeBSDMIPS64, "pc", 296, 8},
	} {
		d := mustRegister(t, tc.tbl, tc.name)
		if d.Offset != tc.offset || d.Size != tc.size {
			t.Errorf("%s %s: got offset=%d size=%d, want offset=%d size=%d", tc.tbl.Name, tc.name, d.Offset, d.Size, tc.offset, tc.size)
		}
	}
}

func TestFloatingPointOffsets(t *testing.T) {
	for _, tc := range []struct {
		tbl          *Table
		name         string
		offset, size int
		set          Set
	}{
		{LinuxAMD64, "fctrl", 0, 2, SetFPR},
		{LinuxAMD64, "fip", 8, 8, SetFPR},
		{LinuxAMD64, "fdp", 16, 8, SetFPR},
		{LinuxAMD64, "mxcsr", 24, 4, SetFPR},
		{LinuxAMD64, "st0", 32, 10, SetFPR},
		{LinuxAMD64, "mm1", 48, 8, SetFPR},
		{LinuxAMD64, "xmm0", 160, 16, SetFPR},
		{LinuxAMD64, "xmm15", 400, 16, SetFPR},
		{LinuxAMD64, "ymm2", 64, 32, SetAVX},
		{LinuxI386, "fioff", 8, 4, SetFPR},
		{LinuxI386, "fiseg", 12, 4, SetFPR},
		{LinuxI386, "fooff", 16, 4, SetFPR},
		{LinuxI386, "foseg", 20, 4, SetFPR},
		{LinuxI386, "xmm7", 272, 16, SetFPR},
	} {
		d := mustRegister(t, tc.tbl, tc.name)
		if d.Offset != tc.offset || d.Size != tc.size || d.Set != tc.set {
			t.Errorf("%s %s: got %d/%d/%v, want %d/%d/%v", tc.tbl.Name, tc.name, d.Offset, d.Size, d.Set, tc.offset, tc.size, tc.set)
		}
	}
	if YMMHOffset(0) != 576 {
		t.Errorf("YMMH offset %d", YMMHOffset(0))
	}
	if _, ok := LinuxI386.Index("xmm8"); ok {
		t.Errorf("i386 table has xmm8")
	}
	if _, ok := LinuxI386.Index("fip"); ok {
		t.Errorf("i386 table has the 64-bit fip view")
	}
}

func TestIndexFromOffset(t *testing.T) {
	for _, tbl := range Tables() {
		for i := 0; i < tbl.Len(); i++ {
			d, _ := tbl.Register(i)
			if d.Pseudo() || (d.Set != SetGPR && d.Set != SetDBG) {
				continue
			}
			j, ok := tbl.IndexFromOffset(d.Offset)
			if !ok || j != i {
				t.Errorf("%s: offset %#x of %s resolved to %d %v", tbl.Name, d.Offset, d.Name, j, ok)
			}
		}
		if _, ok := tbl.IndexFromOffset(-8); ok {
			t.Errorf("%s: negative offset resolved", tbl.Name)
		}
	}

	i, ok := LinuxI386.IndexFromOffset(0xFC + 4*7)
	require.True(t, ok)
	name, _ := LinuxI386.RegisterName(i)
	require.Equal(t, "dr7", name)

	// Only full width registers are indexed.
	ah := mustRegister(t, LinuxAMD64, "ah")
	_, ok = LinuxAMD64.IndexFromOffset(ah.Offset)
	require.False(t, ok)
}

func TestSubRegisters(t *testing.T) {
	tbl := LinuxAMD64
	rax, _ := tbl.Index("rax")
	eax, _ := tbl.Index("eax")
	ax, _ := tbl.Index("ax")
	ah, _ := tbl.Index("ah")
	al, _ := tbl.Index("al")

	d, _ := tbl.Register(ah)
	require.Equal(t, 81, d.Offset)
	require.Equal(t, 1, d.Size)
	require.Equal(t, []int{rax}, d.ContainedIn)

	parent, _ := tbl.Register(rax)
	if diff := cmp.Diff([]int{eax, ax, ah, al}, parent.Invalidates); diff != "" {
		t.Errorf("rax invalidates (-want +got):\n%s", diff)
	}
	if parent.Pseudo() {
		t.Errorf("rax is not a pseudo register")
	}

	e, _ := tbl.Register(eax)
	require.Equal(t, []int{rax, ax, ah, al}, e.Invalidates)

	r8b := mustRegister(t, tbl, "r8l")
	r8 := mustRegister(t, tbl, "r8")
	require.Equal(t, r8.Offset, r8b.Offset)

	i386 := LinuxI386OnAMD64
	bh := mustRegister(t, i386, "bh")
	ebx := mustRegister(t, i386, "ebx")
	require.Equal(t, ebx.Offset+1, bh.Offset)
	if _, ok := i386.Index("r8"); ok {
		t.Errorf("i386 table has r8")
	}
}

func TestNamesAndAliases(t *testing.T) {
	tbl := LinuxAMD64
	for _, tc := range []struct {
		name, want string
	}{
		{"pc", "rip"},
		{"fp", "rbp"},
		{"flags", "rflags"},
		{"RSP", "rsp"},
		{"sp", "sp"}, // the 16-bit register, names hide aliases
	} {
		i, ok := tbl.Index(tc.name)
		if !ok {
			t.Errorf("%q not found", tc.name)
			continue
		}
		got, _ := tbl.RegisterName(i)
		if got != tc.want {
			t.Errorf("%q: got %s want %s", tc.name, got, tc.want)
		}
	}

	mips := FreeBSDMIPS64
	for _, tc := range []struct {
		name, want string
	}{
		{"r0", "zero"},
		{"r29", "sp"},
		{"fp", "r30"},
		{"r31", "ra"},
	} {
		i, ok := mips.Index(tc.name)
		require.True(t, ok, tc.name)
		got, _ := mips.RegisterName(i)
		require.Equal(t, tc.want, got)
	}

	if _, ok := tbl.RegisterName(tbl.Len()); ok {
		t.Errorf("register past the end of the table")
	}
	if _, ok := tbl.Register(-1); ok {
		t.Errorf("negative register index")
	}
}

func TestGenericAndKinds(t *testing.T) {
	for _, tc := range []struct {
		tbl  *Table
		role int
		want string
	}{
		{LinuxI386, regnum.GenericPC, "eip"},
		{LinuxI386, regnum.GenericSP, "esp"},
		{LinuxI386, regnum.GenericFP, "ebp"},
		{LinuxI386, regnum.GenericFlags, "eflags"},
		{FreeBSDAMD64, regnum.GenericPC, "rip"},
		{FreeBSDMIPS64, regnum.GenericPC, "pc"},
		{FreeBSDMIPS64, regnum.GenericSP, "sp"},
	} {
		i, ok := tc.tbl.Generic(tc.role)
		require.True(t, ok)
		name, _ := tc.tbl.RegisterName(i)
		require.Equal(t, tc.want, name, "%s %s", tc.tbl.Name, regnum.GenericName(tc.role))
	}
	if _, ok := FreeBSDMIPS64.Generic(regnum.GenericFlags); ok {
		t.Errorf("mips64 has no flags register")
	}

	i, ok := LinuxAMD64.ByKind(regnum.KindDWARF, regnum.AMD64_Rip)
	require.True(t, ok)
	name, _ := LinuxAMD64.RegisterName(i)
	require.Equal(t, "rip", name)

	i, ok = LinuxI386.ByKind(regnum.KindEH, regnum.I386EH_Ebp)
	require.True(t, ok)
	name, _ = LinuxI386.RegisterName(i)
	require.Equal(t, "ebp", name)

	i, ok = LinuxI386.ByKind(regnum.KindGDB, regnum.I386GDB_YMM0h+3)
	require.True(t, ok)
	name, _ = LinuxI386.RegisterName(i)
	require.Equal(t, "ymm3", name)

	_, ok = LinuxI386.ByKind(regnum.KindDWARF, regnum.None)
	require.False(t, ok)
}

func TestComplete(t *testing.T) {
	got := LinuxAMD64.Complete("xmm1")
	want := []string{"xmm1", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("completion mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, LinuxAMD64.Complete("zz"))
	require.Contains(t, FreeBSDMIPS64.Complete("r2"), "r29")
}

func TestX86Reg(t *testing.T) {
	for _, tc := range []struct {
		tbl  *Table
		reg  x86asm.Reg
		want string
	}{
		{LinuxAMD64, x86asm.RAX, "rax"},
		{LinuxAMD64, x86asm.EAX, "eax"},
		{LinuxAMD64, x86asm.R8L, "r8d"},
		{LinuxAMD64, x86asm.R9B, "r9l"},
		{LinuxAMD64, x86asm.R10W, "r10w"},
		{LinuxAMD64, x86asm.SPB, "spl"},
		{LinuxAMD64, x86asm.SP, "sp"},
		{LinuxAMD64, x86asm.X12, "xmm12"},
		{LinuxAMD64, x86asm.F3, "st3"},
		{LinuxAMD64, x86asm.DR7, "dr7"},
		{LinuxI386, x86asm.EIP, "eip"},
		{LinuxI386, x86asm.CS, "cs"},
		{LinuxI386, x86asm.M2, "mm2"},
	} {
		i, ok := tc.tbl.X86Reg(tc.reg)
		if !ok {
			t.Errorf("%s: %v not found", tc.tbl.Name, tc.reg)
			continue
		}
		name, _ := tc.tbl.RegisterName(i)
		if name != tc.want {
			t.Errorf("%s: %v resolved to %s, want %s", tc.tbl.Name, tc.reg, name, tc.want)
		}
	}
	for _, reg := range []x86asm.Reg{x86asm.RAX, x86asm.R8, x86asm.X8, x86asm.CR0, x86asm.RIP} {
		if _, ok := LinuxI386.X86Reg(reg); ok {
			t.Errorf("i386 resolved %v", reg)
		}
	}
}

func TestByName(t *testing.T) {
	for _, tbl := range Tables() {
		got, ok := ByName(tbl.Name)
		require.True(t, ok)
		require.Same(t, tbl, got)
	}
	_, ok := ByName("plan9/arm")
	require.False(t, ok)
}
