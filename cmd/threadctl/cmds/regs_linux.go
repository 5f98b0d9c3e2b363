//go:build linux && (amd64 || 386)

package cmds

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/go-delve/nativethread/pkg/proc/native"
	"github.com/go-delve/nativethread/pkg/proc/regctx"
	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/thread"
)

func regsCmd(cmd *cobra.Command, args []string) error {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid pid %q", args[0])
	}
	arch := regctx.Arch{OS: regctx.Linux, Core: regctx.X86_64}
	if runtime.GOARCH == "386" {
		arch.Core = regctx.I386
	}

	p, err := native.Attach(pid)
	if err != nil {
		return err
	}
	defer p.Detach()

	tr := thread.NewTracker(p, thread.Config{Arch: arch}, nil)
	for _, tid := range p.Threads() {
		if _, err := tr.Add(tid); err != nil {
			return err
		}
	}
	tr.Stops().Bump()

	out := cmd.OutOrStdout()
	for _, t := range tr.Threads() {
		t.RefreshStateAfterStop()
		fmt.Fprintf(out, "Thread %d %q", t.ID, t.Name())
		if tp, ok := t.ThreadPointer(); ok {
			fmt.Fprintf(out, " tp=%#x", tp)
		}
		fmt.Fprintln(out)

		ctx := t.RegisterContext()
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Register", "Value"})
		tbl := ctx.Table()
		for i := 0; i < tbl.Len(); i++ {
			d, _ := tbl.Register(i)
			if d.Pseudo() || d.Set != reglayout.SetGPR {
				continue
			}
			v, err := ctx.ReadUint(i)
			if err != nil {
				return fmt.Errorf("thread %d: %s: %v", t.ID, d.Name, err)
			}
			table.Append([]string{d.Name, fmt.Sprintf("%#0*x", 2+2*d.Size, v)})
		}
		table.Render()
	}
	return nil
}
