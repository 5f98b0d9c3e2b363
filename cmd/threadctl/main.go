package main

import (
	"fmt"
	"os"

	"github.com/go-delve/nativethread/cmd/threadctl/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
