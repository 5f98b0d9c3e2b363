//go:build !linux || !(amd64 || 386)

package cmds

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func regsCmd(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("regs: %s/%s: %w", runtime.GOOS, runtime.GOARCH, errNotSupported)
}
