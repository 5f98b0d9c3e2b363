package cmds

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/nativethread/pkg/config"
	"github.com/go-delve/nativethread/pkg/proc/eventscript"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newCommand(&config.Config{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLayoutList(t *testing.T) {
	out, err := execute(t, "layout")
	require.NoError(t, err)
	require.Contains(t, out, "linux/amd64")
	require.Contains(t, out, "gpr 216 bytes")
	require.Contains(t, out, "freebsd/mips64")
}

func TestLayoutTable(t *testing.T) {
	out, err := execute(t, "layout", "linux/amd64", "--set", "dbg")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "linux/amd64 (pointer size 8, breakpoint pc offset 1)\n"), out)
	require.Contains(t, out, "dr7")
	require.Contains(t, out, "0x388")
	require.NotContains(t, out, "rax")

	out, err = execute(t, "layout", "linux/i386", "--host-ptr-size", "8")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "linux/i386-on-amd64 "), out)

	out, err = execute(t, "layout", "linux/i386", "--host-ptr-size", "4", "--pseudo=false")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "linux/i386 "), out)
	require.Contains(t, out, "eax")
	require.NotContains(t, out, " ah ")

	_, err = execute(t, "layout", "linux/x86_64", "--host-ptr-size", "4")
	require.Error(t, err)
	_, err = execute(t, "layout", "plan9/amd64")
	require.EqualError(t, err, `unknown register table "plan9/amd64"`)
	_, err = execute(t, "layout", "linux/amd64", "--set", "mmx")
	require.EqualError(t, err, `unknown register set "mmx"`)
}

func TestLookup(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"lookup", "linux/amd64", "offset", "128"}, " rip "},
		{[]string{"lookup", "linux/amd64", "offset", "0x388"}, " dr7 "},
		{[]string{"lookup", "linux/amd64", "name", "pc"}, " rip "},
		{[]string{"lookup", "linux/i386", "dwarf", "8", "--host-ptr-size", "4"}, " eip "},
		{[]string{"lookup", "freebsd/mips64", "generic", "pc"}, " pc "},
	}
	for _, tc := range tests {
		out, err := execute(t, tc.args...)
		require.NoError(t, err, "%v", tc.args)
		require.Contains(t, out, tc.want, "%v", tc.args)
	}

	_, err := execute(t, "lookup", "linux/amd64", "name", "nosuchreg")
	require.EqualError(t, err, "linux/amd64: no register with name nosuchreg")
	_, err = execute(t, "lookup", "linux/amd64", "color", "1")
	require.EqualError(t, err, `unknown lookup kind "color"`)
	_, err = execute(t, "lookup", "linux/amd64", "generic", "lr")
	require.EqualError(t, err, `unknown generic register "lr"`)
}

func TestReplay(t *testing.T) {
	script := filepath.Join("..", "..", "..", "pkg", "proc", "eventscript", "testdata", "breakpoints.txt")
	out, err := execute(t, "replay", "--metrics", script)
	require.NoError(t, err)
	require.Contains(t, out, "ok\t"+script)
	require.Contains(t, out, `nativethread_stops_total{reason="breakpoint"}`)
	require.Contains(t, out, "nativethread_threads{} 3")
}

func TestReplayFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.txt")
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, ioutil.WriteFile(bad, []byte("arch linux/x86_64\nthread 1\nexpect-state 1 running\n"), 0600))
	require.NoError(t, ioutil.WriteFile(good, []byte("arch linux/x86_64\nthread 1\n"), 0600))

	out, err := execute(t, "replay", bad, good)
	require.EqualError(t, err, "1 of 2 scripts failed")
	require.Contains(t, out, "FAIL\t"+bad)
	require.Contains(t, out, "ok\t"+good)

	out, err = execute(t, "replay", "--keep-going=false", bad, good)
	require.Error(t, err)
	require.NotContains(t, out, "ok\t"+good)

	out, err = execute(t, "replay", "-v", good)
	require.NoError(t, err)
	require.Contains(t, out, good+":2: thread 1\n")
}

func TestShell(t *testing.T) {
	var out bytes.Buffer
	r := eventscript.NewRunner(&out, 8, nil)

	require.Equal(t, []string{"expect", "expect-calls", "expect-gone", "expect-reg", "expect-state"}, shellComplete(r, "exp"))
	require.Nil(t, shellComplete(r, "set 1 ri"))

	quit, err := shellExec(r, &out, 1, "arch linux/x86_64")
	require.NoError(t, err)
	require.False(t, quit)
	require.Contains(t, shellComplete(r, "set 1 ri"), "set 1 rip")
	require.Nil(t, shellComplete(r, "set 1 "))

	_, err = shellExec(r, &out, 2, "thread 1")
	require.NoError(t, err)
	_, err = shellExec(r, &out, 3, "expect-state 1 running")
	require.EqualError(t, err, "expect-state: thread 1: expected state running, got created")

	_, err = shellExec(r, &out, 4, "bogus")
	require.Error(t, err)

	_, err = shellExec(r, &out, 5, "help")
	require.NoError(t, err)
	require.Contains(t, out.String(), "expect-reg")

	quit, err = shellExec(r, &out, 6, "quit")
	require.NoError(t, err)
	require.True(t, quit)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "threadctl\nVersion: "), out)
}

func TestScriptHelp(t *testing.T) {
	out, err := execute(t, "script")
	require.NoError(t, err)
	require.Contains(t, out, "Event script commands:")
	require.Contains(t, out, "watch <addr> <size> <r|w|rw>")
}
