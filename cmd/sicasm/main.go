// sicasm assembles one SIC/XE source file into a listing, an object program, and the Pass 1
// intermediate trace.
//
//	sicasm [-opcodes file] [-v] file.asm
package main

import (
	"context"
	"os"

	"github.com/smoynes/sicxe/internal/cli"
	"github.com/smoynes/sicxe/internal/cli/cmd"
)

func main() {
	os.Exit(cli.Single(context.Background(), cmd.Assembler(), os.Args[1:]))
}
