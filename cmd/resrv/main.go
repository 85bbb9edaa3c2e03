// Command resrv is a RESP2-compatible in-memory key/value server.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/resrv/cmd/resrv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
