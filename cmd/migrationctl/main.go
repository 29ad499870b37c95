// Command migrationctl runs imports, progress refreshes and report exports
// against the configured store.
package main

import (
	"fmt"
	"os"
)

func main() {
	c := &cli{out: os.Stdout}
	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
