package cmds

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/go-delve/nativethread/pkg/proc/reglayout"
	"github.com/go-delve/nativethread/pkg/proc/regnum"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// palette holds the escape sequences used to color output, all empty when
// the output is not a terminal.
type palette struct {
	green, red, reset string
}

// colorOutput wraps w so that ANSI escape sequences work on every
// platform and returns the palette to use with it.
func colorOutput(w io.Writer) (io.Writer, palette) {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) || strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return w, palette{}
	}
	return colorable.NewColorable(f), palette{green: ansiGreen, red: ansiRed, reset: ansiReset}
}

// writeLayout prints the registers of t selected by keep.
func writeLayout(out io.Writer, t *reglayout.Table, keep func(i int, d *reglayout.Descriptor) bool) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Name", "Alias", "Set", "Offset", "Size", "EH", "DWARF", "Generic", "GDB", "Contained in"})
	table.SetAutoWrapText(false)
	for i := 0; i < t.Len(); i++ {
		d, _ := t.Register(i)
		if !keep(i, d) {
			continue
		}
		var parents []string
		for _, p := range d.ContainedIn {
			name, _ := t.RegisterName(p)
			parents = append(parents, name)
		}
		table.Append([]string{
			strconv.Itoa(i),
			d.Name,
			d.Alias,
			d.Set.String(),
			fmt.Sprintf("%#x", d.Offset),
			strconv.Itoa(d.Size),
			kindNumber(d, regnum.KindEH),
			kindNumber(d, regnum.KindDWARF),
			kindNumber(d, regnum.KindGeneric),
			kindNumber(d, regnum.KindGDB),
			strings.Join(parents, ","),
		})
	}
	table.Render()
}

func kindNumber(d *reglayout.Descriptor, k regnum.Kind) string {
	n := d.Kinds[k]
	switch {
	case n == regnum.None:
		return "-"
	case k == regnum.KindGeneric:
		return regnum.GenericName(n)
	default:
		return strconv.Itoa(n)
	}
}
