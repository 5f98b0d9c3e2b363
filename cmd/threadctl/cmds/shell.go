package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/liner"
	"github.com/spf13/cobra"

	"github.com/go-delve/nativethread/pkg/config"
	"github.com/go-delve/nativethread/pkg/proc/eventscript"
)

const historyFile string = ".threadctl_history"

func shellCmd(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	r := eventscript.NewRunner(out, hostPtrSize, nil)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		return shellComplete(r, l)
	})

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}
	if f, err := os.Open(fullHistoryFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(fullHistoryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to open history file: %v. History will not be saved for this session.\n", err)
			return
		}
		line.WriteHistory(f)
		f.Close()
	}()

	fmt.Fprintln(out, "Type 'help' for list of commands.")
	lineno := 0
	for {
		l, err := line.Prompt(conf.GetPrompt())
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		lineno++
		if strings.TrimSpace(l) != "" {
			line.AppendHistory(l)
		}
		quit, err := shellExec(r, out, lineno, l)
		if err != nil {
			fmt.Fprintln(out, err)
		}
		if quit {
			return nil
		}
	}
}

// shellExec runs one line typed in the shell.
func shellExec(r *eventscript.Runner, out io.Writer, lineno int, l string) (quit bool, err error) {
	switch strings.TrimSpace(l) {
	case "exit", "quit":
		return true, nil
	case "help":
		eventscript.Help(out)
		return false, nil
	}
	s, err := eventscript.Parse("shell", strings.NewReader(l))
	if err != nil {
		return false, err
	}
	for _, c := range s.Commands {
		c.Line = lineno
		if err := r.Exec(c); err != nil {
			return false, fmt.Errorf("%s: %v", c.Name, err)
		}
	}
	return false, nil
}

// shellComplete completes command names for the first word of l and
// register names for later words once a process exists.
func shellComplete(r *eventscript.Runner, l string) []string {
	fields := strings.Fields(l)
	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(l, " ")) {
		var prefix string
		if len(fields) == 1 {
			prefix = fields[0]
		}
		var c []string
		for _, name := range append(eventscript.CommandNames(), "exit", "help") {
			if strings.HasPrefix(name, prefix) {
				c = append(c, name)
			}
		}
		return c
	}
	t := r.Table()
	if t == nil || strings.HasSuffix(l, " ") {
		return nil
	}
	last := fields[len(fields)-1]
	head := l[:len(l)-len(last)]
	var c []string
	for _, name := range t.Complete(last) {
		c = append(c, head+name)
	}
	return c
}
