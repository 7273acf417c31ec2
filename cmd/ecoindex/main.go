// Command ecoindex serves the ecoindex REST API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"ecoindex/internal/cli"
)

var exitFunc = os.Exit

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ecoindex:", err)
		exitFunc(1)
	}
}
