package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/smoynes/sicxe/internal/cli"
	"github.com/smoynes/sicxe/internal/loader"
	"github.com/smoynes/sicxe/internal/log"
	"github.com/smoynes/sicxe/internal/obj"
)

// memoryFile is where the linked image dump is written.
const memoryFile = "MEMORY.DAT"

// Linker is the command that links object programs into an absolute memory image.
//
//	sicxe link prog1.obj prog2.obj ...
func Linker() cli.Command {
	return new(linker)
}

type linker struct {
	debug bool
	load  uint64
}

func (linker) Description() string {
	return "link object programs into a memory image"
}

func (linker) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `link [-load addr] prog1.obj [prog2.obj ...]

Link object programs, relocating each in command-line order, and write the
memory image to MEMORY.DAT.`)

	return err
}

func (l *linker) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	fs.BoolVar(&l.debug, "debug", false, "enable debug logging")
	fs.Uint64Var(&l.load, "load", 0x3300, "load `address` of the first program (0x prefix for hex)")

	return fs
}

// Run links the object programs named by args and writes the memory dump.
func (l *linker) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if l.debug {
		log.LogLevel.Set(log.Debug)
	}

	if len(args) == 0 {
		logger.Error("usage: link [-load addr] prog1.obj [prog2.obj ...]")
		return 2
	}

	ld := loader.New(uint32(l.load))

	for _, path := range args {
		text, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read object program", "file", path, "err", err)
			return 1
		}

		prog := new(obj.Program)
		if err := prog.UnmarshalText(text); err != nil {
			logger.Error("parse object program", "file", path, "err", err)
			return 1
		}

		logger.Debug("loaded object program",
			"file", path, "name", prog.Name, "length", prog.Length)

		ld.AddProgram(prog)
	}

	warnings := ld.PassOne()
	warnings = append(warnings, ld.PassTwo()...)

	for _, warn := range warnings {
		fmt.Fprintf(stdout, "Warning: %s\n", warn)
	}

	if err := writeFile(memoryFile, ld.MemoryDump); err != nil {
		logger.Error("write memory image", "file", memoryFile, "err", err)
		return 1
	}

	if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		l.summarize(f, ld, len(warnings))
	}

	return 0
}

// summarize prints a human-oriented report after the image file is written: the external symbol
// table and the execution address, ruled to the terminal's width.
func (l *linker) summarize(f *os.File, ld *loader.Loader, warnings int) {
	width := 72
	if ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ); err == nil && ws.Col > 0 && int(ws.Col) < width {
		width = int(ws.Col)
	}

	rule := strings.Repeat("-", width)

	fmt.Fprintln(f, rule)
	fmt.Fprintf(f, "Linked %d program(s) at %05X -> %s", len(ld.Programs), ld.LoadAddress, memoryFile)

	if warnings > 0 {
		fmt.Fprintf(f, " (%d warning(s))", warnings)
	}

	fmt.Fprintln(f)
	fmt.Fprintln(f, rule)

	if err := ld.SymbolReport(f); err != nil {
		return
	}

	if ld.Execution != 0 {
		fmt.Fprintf(f, "\nExecution begins at address %06X\n", ld.Execution)
	}
}
