// Package eventscript replays sequences of thread events described in a
// small line oriented language against an in memory process.
//
// Each line is a command followed by its arguments, tokenized like a
// shell command line. Blank lines and lines starting with '#' are
// ignored:
//
//	arch linux/x86_64
//	thread 100
//	site 0x401000
//	set 100 rip 0x401001
//	event breakpoint 100
//	stop
//	expect 100 breakpoint site=1 shouldstop=true
//
// See the commands table for the full list.
package eventscript

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cosiner/argv"
)

// Command is one line of a script.
type Command struct {
	Line int
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Script is a parsed event script.
type Script struct {
	Name     string
	Commands []Command
}

// Parse reads a script. Commands are checked against the command table
// but not executed.
func Parse(name string, r io.Reader) (*Script, error) {
	s := &Script{Name: name}
	scan := bufio.NewScanner(r)
	lineno := 0
	for scan.Scan() {
		lineno++
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := argv.Argv(line,
			func(s string) (string, error) {
				return "", fmt.Errorf("backtick not supported in '%s'", s)
			},
			nil)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", name, lineno, err)
		}
		if len(v) != 1 || len(v[0]) == 0 {
			return nil, fmt.Errorf("%s:%d: illegal command line %q", name, lineno, line)
		}
		c := Command{Line: lineno, Name: v[0][0], Args: v[0][1:]}
		cmd, ok := commands[c.Name]
		if !ok {
			return nil, fmt.Errorf("%s:%d: unknown command %q", name, lineno, c.Name)
		}
		if len(c.Args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(c.Args) > cmd.maxArgs) {
			return nil, fmt.Errorf("%s:%d: usage: %s %s", name, lineno, c.Name, cmd.usage)
		}
		s.Commands = append(s.Commands, c)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}
	return s, nil
}

// Help writes the list of commands to w.
func Help(w io.Writer) {
	for _, name := range commandNames() {
		cmd := commands[name]
		fmt.Fprintf(w, "%s %s\n\t%s\n", name, cmd.usage, cmd.help)
	}
}
