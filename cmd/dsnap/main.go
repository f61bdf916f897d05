// Command dsnap downloads EBS snapshots into local sparse image files.
package main

import (
	"fmt"
	"os"

	"github.com/RhinoSecurityLabs/dsnap/cmd/dsnap/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCodeFor(err))
	}
}
