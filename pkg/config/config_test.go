package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), configDir)
	c := LoadConfigFrom(dir)

	want := &Config{Replay: ReplayConfig{StopOnError: true}}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("default config mismatch (-want +got):\n%s", diff)
	}

	data, err := ioutil.ReadFile(filepath.Join(dir, configFile))
	require.NoError(t, err)
	require.Contains(t, string(data), "# host-ptr-size: 8")
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	c := &Config{
		Log:         true,
		LogOutput:   "thread,watch",
		HostPtrSize: 4,
		Replay:      ReplayConfig{Verbose: true, Metrics: true},
		Prompt:      "> ",
	}
	require.NoError(t, SaveConfigTo(dir, c))

	got := LoadConfigFrom(dir)
	if diff := cmp.Diff(c, got); diff != "" {
		t.Fatalf("reloaded config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte("log: true\nlog-output: regs\nreplay:\n  metrics: true\n"))
	require.NoError(t, err)
	require.True(t, c.Log)
	require.Equal(t, "regs", c.LogOutput)
	require.True(t, c.Replay.Metrics)

	_, err = Parse([]byte("no-such-option: 1\n"))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	var c *Config
	require.Equal(t, defaultPrompt, c.GetPrompt())
	require.Equal(t, 8, c.GetHostPtrSize(8))

	c = &Config{Prompt: "$ ", HostPtrSize: 4}
	require.Equal(t, "$ ", c.GetPrompt())
	require.Equal(t, 4, c.GetHostPtrSize(8))

	c.HostPtrSize = 2
	require.Equal(t, 8, c.GetHostPtrSize(8))
}
