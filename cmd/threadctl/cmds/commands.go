package cmds

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/go-delve/nativethread/pkg/config"
	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/eventscript"
	"github.com/go-delve/nativethread/pkg/proc/regctx"
	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/regnum"
	"github.com/go-delve/nativethread/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// hostPtrSize overrides the pointer size of the tracing host.
	hostPtrSize int

	// layoutSets restricts the layout command to some register sets.
	layoutSets []string
	// layoutPseudo includes sub-registers in the layout command output.
	layoutPseudo bool

	// replayVerbose prints script commands as they execute.
	replayVerbose bool
	// replayMetrics prints the stop counters after every script.
	replayMetrics bool
	// replayKeepGoing runs every script even after a failure.
	replayKeepGoing bool

	conf *config.Config
)

const threadctlCommandLongDesc = `threadctl inspects the per-thread layer of a native debugger.

It prints the register layouts used for every supported operating system and
architecture, translates between register numbering conventions and replays
scripted sequences of thread events against an in memory process.`

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()
	return newCommand(conf)
}

func newCommand(c *config.Config) *cobra.Command {
	conf = c

	rootCommand := &cobra.Command{
		Use:           "threadctl",
		Short:         "threadctl inspects thread register layouts and replays thread events.",
		Long:          threadctlCommandLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logflags.Setup(log, logOutput, logDest)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", conf.Log, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", conf.LogOutput, `Comma separated list of components that should produce debug output (see 'threadctl help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", conf.LogDest, "Writes logs to the specified file or file descriptor (see 'threadctl help log').")
	rootCommand.PersistentFlags().IntVar(&hostPtrSize, "host-ptr-size", conf.GetHostPtrSize(regctx.HostPtrSize()), "Pointer size of the tracing host, 4 or 8.")

	// 'layout' subcommand.
	layoutCommand := &cobra.Command{
		Use:   "layout [table|os/core]",
		Short: "Print register layouts.",
		Long: `Print the register table used for an operating system and architecture.

The argument is either a table name (see 'threadctl layout' without arguments)
or an os/core pair such as linux/i386, which is resolved using the pointer size
of the tracing host.`,
		Args: cobra.MaximumNArgs(1),
		RunE: layoutCmd,
	}
	layoutCommand.Flags().StringSliceVar(&layoutSets, "set", nil, "Only print registers of the given sets (gpr, fpr, avx, dbg).")
	layoutCommand.Flags().BoolVar(&layoutPseudo, "pseudo", true, "Include sub-registers.")
	rootCommand.AddCommand(layoutCommand)

	// 'lookup' subcommand.
	lookupCommand := &cobra.Command{
		Use:   "lookup <table|os/core> <name|offset|eh_frame|dwarf|generic|gdb> <value>",
		Short: "Look up a register.",
		Long: `Look up a register by name, by offset in the general purpose or debug
register area, or by number in one of the numbering conventions.

	threadctl lookup linux/amd64 offset 128
	threadctl lookup linux/i386 dwarf 8
	threadctl lookup freebsd/mips64 generic pc`,
		Args: cobra.ExactArgs(3),
		RunE: lookupCmd,
	}
	rootCommand.AddCommand(lookupCommand)

	// 'replay' subcommand.
	replayCommand := &cobra.Command{
		Use:   "replay <script>...",
		Short: "Replay event scripts.",
		Long: `Replay event scripts against an in memory process.

Scripts set up threads, breakpoint sites and watchpoints, deliver stop events
and check how each thread classifies them. See 'threadctl script'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: replayCmd,
	}
	replayCommand.Flags().BoolVarP(&replayVerbose, "verbose", "v", conf.Replay.Verbose, "Print every command before running it.")
	replayCommand.Flags().BoolVar(&replayMetrics, "metrics", conf.Replay.Metrics, "Print classified stop counters after every script.")
	replayCommand.Flags().BoolVar(&replayKeepGoing, "keep-going", !conf.Replay.StopOnError, "Run every script even if one fails.")
	rootCommand.AddCommand(replayCommand)

	// 'shell' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Run event script commands interactively.",
		Args:  cobra.NoArgs,
		RunE:  shellCmd,
	})

	// 'regs' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "regs <pid>",
		Short: "Print the registers of every thread of a running process.",
		Long: `Attach to a running process, print the general purpose registers of
every thread through the register context and detach.

Only supported on linux/amd64 and linux/386.`,
		Args: cobra.ExactArgs(1),
		RunE: regsCmd,
	})

	// 'version' subcommand.
	var versionVerbose = false
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "threadctl\n%s\n", version.ThreadctlVersion)
			if versionVerbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	thread	Log stop classification and resume requests of threads.
	regs	Log register reads, writes and cache invalidation.
	watch	Log hardware watchpoint slot programming.
	native	Log ptrace requests and wait statuses.
	script	Log every command executed by event scripts.

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "script",
		Short: "Help about event scripts.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Event script commands:")
			fmt.Fprintln(cmd.OutOrStdout())
			eventscript.Help(cmd.OutOrStdout())
		},
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// tableArg resolves an os/core pair or a table name. Pairs take
// precedence: linux/i386 depends on the host pointer size.
func tableArg(s string) (*reglayout.Table, error) {
	if arch, err := regctx.ParseArch(s); err == nil {
		return regctx.LayoutFor(arch, hostPtrSize)
	}
	if t, ok := reglayout.ByName(s); ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown register table %q", s)
}

func layoutCmd(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, t := range reglayout.Tables() {
			fmt.Fprintf(out, "%-20s %3d registers, gpr %d bytes, fpr %d bytes\n", t.Name, t.Len(), t.GPRSize, t.FPRSize)
		}
		return nil
	}
	t, err := tableArg(args[0])
	if err != nil {
		return err
	}
	sets := make(map[reglayout.Set]bool)
	for _, s := range layoutSets {
		set, ok := parseSet(s)
		if !ok {
			return fmt.Errorf("unknown register set %q", s)
		}
		sets[set] = true
	}
	fmt.Fprintf(out, "%s (pointer size %d, breakpoint pc offset %d)\n", t.Name, t.PtrSize, t.BreakpointPCOffset)
	writeLayout(out, t, func(i int, d *reglayout.Descriptor) bool {
		if len(sets) > 0 && !sets[d.Set] {
			return false
		}
		return layoutPseudo || !d.Pseudo()
	})
	return nil
}

func parseSet(s string) (reglayout.Set, bool) {
	for set := reglayout.SetGPR; set <= reglayout.SetDBG; set++ {
		if set.String() == s {
			return set, true
		}
	}
	return 0, false
}

func parseKind(s string) (regnum.Kind, bool) {
	for k := regnum.Kind(0); k < regnum.NumKinds; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func parseGeneric(s string) (int, bool) {
	for n := regnum.GenericPC; n <= regnum.GenericFlags; n++ {
		if regnum.GenericName(n) == s {
			return n, true
		}
	}
	return 0, false
}

func lookupCmd(cmd *cobra.Command, args []string) error {
	t, err := tableArg(args[0])
	if err != nil {
		return err
	}
	what, value := args[1], args[2]

	var (
		idx int
		ok  bool
	)
	switch what {
	case "name":
		idx, ok = t.Index(value)
	case "offset":
		off, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q", value)
		}
		idx, ok = t.IndexFromOffset(int(off))
	default:
		kind, found := parseKind(what)
		if !found {
			return fmt.Errorf("unknown lookup kind %q", what)
		}
		num, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			if kind != regnum.KindGeneric {
				return fmt.Errorf("invalid register number %q", value)
			}
			n, found := parseGeneric(value)
			if !found {
				return fmt.Errorf("unknown generic register %q", value)
			}
			num = int64(n)
		}
		idx, ok = t.ByKind(kind, int(num))
	}
	if !ok {
		return fmt.Errorf("%s: no register with %s %s", t.Name, what, value)
	}
	writeLayout(cmd.OutOrStdout(), t, func(i int, d *reglayout.Descriptor) bool {
		return i == idx
	})
	return nil
}

func replayCmd(cmd *cobra.Command, args []string) error {
	out, colors := colorOutput(cmd.OutOrStdout())
	failed := 0
	for _, path := range args {
		err := replayFile(out, path)
		if err == nil {
			fmt.Fprintf(out, "%sok%s\t%s\n", colors.green, colors.reset, path)
			continue
		}
		failed++
		fmt.Fprintf(out, "%sFAIL%s\t%s\n\t%v\n", colors.red, colors.reset, path, err)
		if !replayKeepGoing {
			break
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(args))
	}
	return nil
}

func replayFile(out io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s, err := eventscript.Parse(path, f)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	r := eventscript.NewRunner(out, hostPtrSize, reg)
	if replayVerbose {
		for _, c := range s.Commands {
			fmt.Fprintf(out, "%s:%d: %v\n", s.Name, c.Line, c)
			if err := r.Exec(c); err != nil {
				return fmt.Errorf("%s:%d: %s: %v", s.Name, c.Line, c.Name, err)
			}
		}
	} else if err := r.Run(s); err != nil {
		return err
	}
	if replayMetrics {
		return writeMetrics(out, reg)
	}
	return nil
}

// writeMetrics prints every non zero counter and gauge of reg.
func writeMetrics(out io.Writer, reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue() + m.GetGauge().GetValue()
			if v == 0 {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)
			fmt.Fprintf(out, "\t%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), v)
		}
	}
	return nil
}

var errNotSupported = errors.New("not supported on this platform")
