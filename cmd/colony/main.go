// Command colony is the entry point for the Colony CLI.
package main

import (
	"os"

	"github.com/colony-dev/colony/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
