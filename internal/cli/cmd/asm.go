package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/smoynes/sicxe/internal/asm"
	"github.com/smoynes/sicxe/internal/cli"
	"github.com/smoynes/sicxe/internal/log"
	"github.com/smoynes/sicxe/internal/opcode"
)

// intermediateFile is the diagnostic Pass 1 trace written beside the listing and object files.
const intermediateFile = "test1.int"

// Assembler is the command that translates SIC/XE source code into a relocatable object program.
//
//	sicxe asm FILE.asm
func Assembler() cli.Command {
	return new(assembler)
}

type assembler struct {
	debug   bool
	verbose bool
	opcodes string
}

func (assembler) Description() string {
	return "assemble source code into object code"
}

func (assembler) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `asm [-opcodes file] [-v] file.asm

Assemble source into a listing (file.lst), an object program (file.obj), and
the Pass 1 intermediate trace (test1.int).`)

	return err
}

func (a *assembler) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	fs.BoolVar(&a.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&a.verbose, "v", false, "echo the listing to standard output")
	fs.StringVar(&a.opcodes, "opcodes", "opcodes.txt", "opcode catalog `file`")

	return fs
}

// Run assembles one source file and writes its listing, object, and intermediate files.
func (a *assembler) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if a.debug {
		log.LogLevel.Set(log.Debug)
	}

	if len(args) != 1 {
		logger.Error("usage: asm [-opcodes file] [-v] file.asm")
		return 2
	}

	source := args[0]

	catalog, err := loadCatalog(a.opcodes)
	if err != nil {
		logger.Error("opcode catalog", "file", a.opcodes, "err", err)
		return 1
	}

	lines, err := readLines(source)
	if err != nil {
		logger.Error("read source", "file", source, "err", err)
		return 1
	}

	logger.Debug("assembling", "file", source, "lines", len(lines), "opcodes", catalog.Count())

	unit, err := asm.Assemble(catalog, lines)
	if err != nil {
		logger.Error("assembly failed", "file", source, "err", err)
		return 1
	}

	for _, lineErr := range unit.Errors {
		logger.Error("assembly error", "err", lineErr)
	}

	base := strings.TrimSuffix(source, filepath.Ext(source))

	if err := writeFile(intermediateFile, unit.WriteIntermediate); err != nil {
		logger.Error("write intermediate", "err", err)
		return 1
	}

	if err := writeFile(base+".lst", unit.WriteListing); err != nil {
		logger.Error("write listing", "err", err)
		return 1
	}

	if err := writeObject(base+".obj", unit); err != nil {
		logger.Error("write object", "err", err)
		return 1
	}

	if a.verbose {
		if err := unit.WriteListing(stdout); err != nil {
			logger.Error("echo listing", "err", err)
			return 1
		}
	} else if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(stdout, "%s: %d lines, %d errors -> %s.obj\n",
			source, len(unit.Trace), len(unit.Errors), base)
	}

	logger.Debug("assembled",
		"file", source,
		"symbols", len(unit.Symbols),
		"literals", len(unit.Literals.Keys()),
		"errors", len(unit.Errors),
	)

	if len(unit.Errors) > 0 {
		return 1
	}

	return 0
}

func loadCatalog(path string) (opcode.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return opcode.Load(f)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines, scanner.Err()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	buf := bufio.NewWriter(f)

	if err := write(buf); err != nil {
		f.Close()
		return err
	}

	if err := buf.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func writeObject(path string, unit *asm.Assembler) error {
	text, err := unit.Program().MarshalText()
	if err != nil {
		return err
	}

	return os.WriteFile(path, text, 0o644)
}
