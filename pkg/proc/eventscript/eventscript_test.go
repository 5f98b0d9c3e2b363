package eventscript

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func runFile(t *testing.T, path string) (*Runner, string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	s, err := Parse(filepath.Base(path), f)
	require.NoError(t, err)
	var out bytes.Buffer
	r := NewRunner(&out, 8, prometheus.NewRegistry())
	require.NoError(t, r.Run(s))
	return r, out.String()
}

func TestScripts(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			runFile(t, path)
		})
	}
}

func TestWatchpointOutput(t *testing.T) {
	r, out := runFile(t, filepath.Join("testdata", "watchpoints.txt"))
	require.Contains(t, out, "watchpoint 1 at 0x8049000 slot 0\n")
	require.Equal(t, 2.0, testutil.ToFloat64(r.Metrics().Stops.WithLabelValues("watchpoint")))
	require.Equal(t, "linux/i386-on-amd64", r.Table().Name)
}

func TestPrint(t *testing.T) {
	_, out := runFile(t, filepath.Join("testdata", "signals.txt"))
	require.Contains(t, out, `thread 7 "worker": stopped (invalid address (fault address: 0x10)) pc=0x120000000`)
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{"bogus 1", "unknown command"},
		{"arch", "usage: arch"},
		{"stop now", "usage: stop"},
		{"arch linux/x86_64\nexpect 1", "t:2: usage: expect"},
		{"event signal 1 \"crash=x", "t:1:"},
	} {
		_, err := Parse("t", strings.NewReader(tc.src))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%q: expected error containing %q, got %v", tc.src, tc.want, err)
		}
	}
}

func TestRunErrors(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{"thread 1", "t:1: thread: no process"},
		{"arch linux/mips64", "unsupported"},
		{"arch linux/x86_64 4", "unsupported"},
		{"arch linux/x86_64 8\nthread 1\nevent signal 1 signo=2\nstop\nexpect 1 trace", "t:5: expect: thread 1: expected stop reason trace, got signal 2"},
		{"arch linux/x86_64 8\nthread 1\nevent signal 1 signo=2\nstop\nexpect 1 signal signo=3", "expected signo=3, got 2"},
		{"arch linux/x86_64 8\nexpect-state 9 stopped", "unknown thread 9"},
		{"arch linux/x86_64 8\nwatch 0x1000 8 w", "no threads"},
		{"arch linux/x86_64 8\nthread 1\nwatch 0x1000 3 w", "watchpoint size not supported"},
		{"arch linux/x86_64 8\nthread 1\nwatch 0x1000 8 x", "invalid access"},
		{"arch linux/x86_64 8\nevent bogus 1", "unknown event kind"},
		{"arch linux/x86_64 8\nevent crash 1 crash=bogus", "unknown crash reason"},
		{"arch linux/x86_64 8\nevent signal 1 color=red", "unknown key"},
		{"arch linux/x86_64 8\nthread 1\nresume\nexpect-calls", "expected calls [], got [resume/1/0]"},
	} {
		s, err := Parse("t", strings.NewReader(tc.src))
		require.NoError(t, err, tc.src)
		err = NewRunner(&bytes.Buffer{}, 8, nil).Run(s)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%q: expected error containing %q, got %v", tc.src, tc.want, err)
		}
	}
}

func TestHelp(t *testing.T) {
	var buf bytes.Buffer
	Help(&buf)
	for _, name := range CommandNames() {
		require.Contains(t, buf.String(), name+" ")
	}
}
