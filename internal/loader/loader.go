// Package loader implements a linking loader for SIC/XE relocatable object programs. It reads one
// or more object programs, resolves external references across them, relocates each program's
// text against a load address, and produces a flat memory image ready to dump or (eventually)
// execute.
package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/smoynes/sicxe/internal/log"
	"github.com/smoynes/sicxe/internal/obj"
)

// ErrObjectLoader is the wrapped sentinel for every warning PassOne and PassTwo return (duplicate
// control section or symbol, undefined reference or modification symbol). None of them stops the
// link; each is also logged.
var ErrObjectLoader = errors.New("loader error")

// CSect records one control section's placement in the linked image, for the external symbol
// table report.
type CSect struct {
	Name   string
	Base   uint32
	Length uint32
}

// Loader links a set of object programs into one memory image starting at LoadAddress.
type Loader struct {
	LoadAddress uint32
	ESTAB       map[string]uint32
	Memory      map[uint32]byte
	Programs    []*obj.Program
	Execution   uint32
	CSects      []CSect

	log *log.Logger
}

// New returns a Loader ready to link programs starting at loadAddress.
func New(loadAddress uint32) *Loader {
	return &Loader{
		LoadAddress: loadAddress,
		ESTAB:       make(map[string]uint32),
		Memory:      make(map[uint32]byte),
		log:         log.DefaultLogger(),
	}
}

// AddProgram appends a parsed object program to the set this loader will link. Order matters: it
// determines each program's relocation base, and which program's entry point wins if more than
// one names one.
func (l *Loader) AddProgram(prog *obj.Program) {
	l.Programs = append(l.Programs, prog)
}

// PassOne assigns each program a base address in the linked image and builds ESTAB, the external
// symbol table, from every control section name and D-record symbol. A duplicate name is a
// logged warning; the last write wins.
func (l *Loader) PassOne() []error {
	var warnings []error

	addr := l.LoadAddress

	for _, prog := range l.Programs {
		base := addr

		if prog.Name != "" {
			if _, dup := l.ESTAB[prog.Name]; dup {
				warnings = append(warnings, fmt.Errorf("%w: duplicate control section %q", ErrObjectLoader, prog.Name))
				l.log.Warn("duplicate control section", "name", prog.Name)
			}

			l.ESTAB[prog.Name] = base
			l.CSects = append(l.CSects, CSect{Name: prog.Name, Base: base, Length: prog.Length})
		}

		for _, sym := range prog.Defines {
			if _, dup := l.ESTAB[sym.Name]; dup {
				warnings = append(warnings, fmt.Errorf("%w: duplicate symbol %q", ErrObjectLoader, sym.Name))
				l.log.Warn("duplicate external symbol", "name", sym.Name)
			}

			l.ESTAB[sym.Name] = sym.Address + base
		}

		addr += prog.Length
	}

	return warnings
}

// PassTwo applies every program's text records to the linked memory image at its relocated
// address, then applies modification records against ESTAB. An R-record reference to a symbol
// ESTAB never defines is warned once overall, no matter how many programs refer to it; an
// undefined modification symbol is treated as value 0 and warned.
func (l *Loader) PassTwo() []error {
	var warnings []error

	referenced := make(map[string]bool)

	for _, prog := range l.Programs {
		for _, name := range prog.Refers {
			referenced[name] = true
		}
	}

	for name := range referenced {
		if _, ok := l.ESTAB[name]; !ok {
			warnings = append(warnings, fmt.Errorf("%w: undefined reference %q", ErrObjectLoader, name))
			l.log.Warn("undefined reference", "symbol", name)
		}
	}

	addr := l.LoadAddress

	for _, prog := range l.Programs {
		base := addr

		for _, text := range prog.Text {
			for i, b := range text.Data {
				l.Memory[base+text.Address+uint32(i)] = b
			}
		}

		for _, mod := range prog.Mods {
			value, ok := l.ESTAB[mod.Symbol]
			if !ok {
				warnings = append(warnings, fmt.Errorf("%w: modification symbol %q not found", ErrObjectLoader, mod.Symbol))
				l.log.Warn("undefined modification symbol", "symbol", mod.Symbol)

				value = 0
			}

			l.applyMod(base+mod.Address, mod.Length, value, mod.Subtract)
		}

		if prog.Exec != 0 {
			l.Execution = prog.Exec + base
		}

		addr += prog.Length
	}

	return warnings
}

// applyMod reads the existing nibbles-wide field at addr, adds or subtracts value, and writes the
// result back truncated to the same width. length is in half-bytes, matching obj.ModRecord. An
// odd length leaves the leading nibble of the first byte untouched, so a 5-half-byte patch of a
// format 4 address field cannot disturb the flag bits beside it.
func (l *Loader) applyMod(addr uint32, length int, value uint32, subtract bool) {
	nbytes := (length + 1) / 2

	var word uint32
	for i := 0; i < nbytes; i++ {
		word = word<<8 | uint32(l.Memory[addr+uint32(i)])
	}

	mask := uint32(1)<<(uint32(length)*4) - 1

	field := word & mask
	if subtract {
		field -= value
	} else {
		field += value
	}

	word = word&^mask | field&mask

	for i := nbytes - 1; i >= 0; i-- {
		l.Memory[addr+uint32(i)] = byte(word)
		word >>= 8
	}
}

// MemoryDump renders the linked image as a sixteen-bytes-per-row hex dump, with "??" standing in
// for every byte no program ever wrote, one trailing all-unknown row, and an "Execution begins at
// address" trailer when an entry point was set.
func (l *Loader) MemoryDump(w io.Writer) error {
	if len(l.Memory) == 0 {
		_, err := fmt.Fprintln(w, "No memory to display.")
		return err
	}

	var minAddr, maxAddr uint32

	first := true

	for addr := range l.Memory {
		if first || addr < minAddr {
			minAddr = addr
		}

		if first || addr > maxAddr {
			maxAddr = addr
		}

		first = false
	}

	if _, err := fmt.Fprintln(w, "          0  1  2  3  4  5  6  7  8  9  A  B  C  D  E  F"); err != nil {
		return err
	}

	row := minAddr - minAddr%16

	for row <= maxAddr {
		if err := l.writeRow(w, row); err != nil {
			return err
		}

		row += 16
	}

	// One extra all-unknown row past the last written byte.
	if err := l.writeRow(w, row); err != nil {
		return err
	}

	if l.Execution != 0 {
		if _, err := fmt.Fprintf(w, "\nExecution begins at address %06X\n", l.Execution); err != nil {
			return err
		}
	}

	return nil
}

func (l *Loader) writeRow(w io.Writer, row uint32) error {
	if _, err := fmt.Fprintf(w, "%05X    ", row); err != nil {
		return err
	}

	for offset := uint32(0); offset < 16; offset++ {
		addr := row + offset

		if b, ok := l.Memory[addr]; ok {
			if _, err := fmt.Fprintf(w, "%02X ", b); err != nil {
				return err
			}
		} else if _, err := fmt.Fprint(w, "?? "); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)

	return err
}

// SymbolReport renders the external symbol table: one row per control section giving its load
// address and length, followed by one row per symbol defined in that section giving its offset
// and absolute address.
func (l *Loader) SymbolReport(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "CSECT   SYMBOL   ADDR     CSADDR  LDADDR  LENGTH"); err != nil {
		return err
	}

	for _, cs := range l.CSects {
		if _, err := fmt.Fprintf(w, "%-6s  %-6s  %-7s  %04X    %-6s  %06X\n",
			cs.Name, "$", "$", cs.Base, "$", cs.Length); err != nil {
			return err
		}

		for _, prog := range l.Programs {
			if prog.Name != cs.Name {
				continue
			}

			for _, sym := range prog.Defines {
				addr := sym.Address + cs.Base
				if _, err := fmt.Fprintf(w, "%-6s  %-6s  %-7s  %-7s  %-6s  %s\n",
					"$", sym.Name, fmt.Sprintf("%06X", sym.Address), "$", fmt.Sprintf("%04X", addr), "$"); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
