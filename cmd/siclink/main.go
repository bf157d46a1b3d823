// siclink links SIC/XE object programs into an absolute memory image, written to MEMORY.DAT.
//
//	siclink [-load addr] prog1.obj [prog2.obj ...]
package main

import (
	"context"
	"os"

	"github.com/smoynes/sicxe/internal/cli"
	"github.com/smoynes/sicxe/internal/cli/cmd"
)

func main() {
	os.Exit(cli.Single(context.Background(), cmd.Linker(), os.Args[1:]))
}
