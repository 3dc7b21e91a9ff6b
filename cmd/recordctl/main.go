// Command recordctl inspects and edits unified user records from the shell.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, openConfiguredStore).Execute(); err != nil {
		os.Exit(1)
	}
}
