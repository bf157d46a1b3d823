// sicxe is the command-line interface to the SIC/XE toolchain: a two-pass assembler and a
// linking loader as sub-commands of one binary.
package main

import (
	"context"
	"os"

	"github.com/smoynes/sicxe/internal/cli"
	"github.com/smoynes/sicxe/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.Assembler(),
		cmd.Linker(),
	}
)

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
