// Command knotter serves and inspects the shared globe event log.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/knotter/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
