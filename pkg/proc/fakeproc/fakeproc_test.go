package fakeproc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/thread"
)

func TestUserArea(t *testing.T) {
	p := NewProcess(reglayout.LinuxI386)
	require.NoError(t, p.SetRegister(1, "eax", 0x11223344))
	v, err := p.ReadRegister(1, 24, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0x11223344), v)

	require.NoError(t, p.WriteRegister(1, 0xfc+7*4, 4, 0x1))
	dr7, err := p.Register(1, "dr7")
	require.NoError(t, err)
	require.Equal(t, uint64(1), dr7)

	_, err = p.ReadRegister(1, 0x1000, 4)
	require.Error(t, err)
	require.Error(t, p.SetRegister(1, "ax", 1), "pseudo registers are not stored")

	buf := make([]byte, reglayout.LinuxI386.GPRSize)
	require.NoError(t, p.ReadGPR(1, buf))
	require.Equal(t, byte(0x44), buf[24])
}

func TestCloneAndFailures(t *testing.T) {
	p := NewProcess(reglayout.LinuxAMD64)
	require.NoError(t, p.SetRegister(1, "rip", 0x401000))
	p.Clone(1, 2)
	rip, err := p.Register(2, "rip")
	require.NoError(t, err)
	require.Equal(t, uint64(0x401000), rip)
	require.Equal(t, []int{1, 2}, p.ThreadIDs())

	errBoom := errors.New("boom")
	p.Fail("step", errBoom)
	require.True(t, errors.Is(p.SingleStep(1, 0), errBoom))
	require.NoError(t, p.Resume(1, 5))
	p.Fail("step", nil)
	require.NoError(t, p.SingleStep(2, 0))
	require.Equal(t, []Call{{"resume", 1, 5}, {"step", 2, 0}}, p.Calls())
	require.Equal(t, "resume tid=1 signo=5", p.Calls()[0].String())
}

func TestSitesAndWatchpoints(t *testing.T) {
	s := NewSites()
	a := s.Add(0x1000)
	b := s.Add(0x2000, 3, 4)
	require.NotEqual(t, a, b)

	site, ok := s.FindByAddress(0x2000)
	require.True(t, ok)
	require.Equal(t, b, site.ID())
	require.True(t, site.ValidForThread(4))
	require.False(t, site.ValidForThread(5))
	_, ok = s.FindByAddress(0x3000)
	require.False(t, ok)

	w := NewWatchpoints()
	wp := w.Add(thread.Watchpoint{Addr: 0x5000, Size: 4, Write: true})
	require.Len(t, w.Enabled(), 1)
	require.True(t, w.SetEnabled(wp.ID, false))
	require.Empty(t, w.Enabled())
	require.False(t, w.SetEnabled(wp.ID+1, false))
	id, ok := w.FindByAddress(0x5000)
	require.True(t, ok)
	require.Equal(t, wp.ID, id)
}

func TestFrame(t *testing.T) {
	f := NewFrame(reglayout.LinuxAMD64)
	rsp, _ := reglayout.LinuxAMD64.Index("rsp")
	f.Values[rsp] = 0xc000
	b, err := f.Read(rsp)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0xc0, 0, 0, 0, 0, 0, 0}, b)
	rax, _ := reglayout.LinuxAMD64.Index("rax")
	_, err = f.ReadUint(rax)
	require.Error(t, err)
}
