package asm

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// WriteListing writes the assembly listing: one line per source line (address, label, opcode,
// operand, object code), followed by the fixed-width symbol table dump.
func (a *Assembler) WriteListing(w io.Writer) error {
	for _, rec := range a.Records {
		if rec.Kind == recLiteralPool {
			continue
		}

		label := rec.Line.Label

		op := strings.ToUpper(rec.Line.Op)
		if rec.Line.Extended {
			op = "+" + op
		}

		code := strings.ToUpper(hex.EncodeToString(rec.Code))

		if _, err := fmt.Fprintf(w, "%05X %-8s%-8s%-15s%s\n", rec.Address, label, op, rec.Line.Operand, code); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "\nSYMBOL TABLE\nSYMBOL VALUE RFLAG MFLAG IOFLAG\n"); err != nil {
		return err
	}

	for _, name := range a.Symbols.Names() {
		sym, _ := a.Symbols.Lookup(name)

		rflag, mflag, ioflag := "FALSE", "FALSE", "INTERNAL"
		if sym.Relative {
			rflag = "TRUE"
		}

		if sym.External {
			ioflag = "EXTERNAL"
		}

		if _, err := fmt.Fprintf(w, "%s %s %-5s %-5s %s\n", sym.Name, trimHex(sym.Address), rflag, mflag, ioflag); err != nil {
			return err
		}
	}

	if len(a.Literals.Keys()) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\nLITERAL TABLE\nLITERAL VALUE LENGTH ADDRESS\n"); err != nil {
		return err
	}

	for _, key := range a.Literals.Keys() {
		lit, _ := a.Literals.Lookup(key)

		if _, err := fmt.Fprintf(w, "%s %s %d %s\n", lit.Key, fmtLiteralValue(lit), len(lit.Value), trimHex(lit.Address)); err != nil {
			return err
		}
	}

	return nil
}

// WriteIntermediate writes the diagnostic test1.int trace: one "line\tlocctr\tsource" row per
// source line Pass 1 walked, a program-length trailer, and the symbol/literal table dumps.
func (a *Assembler) WriteIntermediate(w io.Writer) error {
	for _, t := range a.Trace {
		if _, err := fmt.Fprintf(w, "%04d\t%04X\t%s\n", t.Number, t.LocCtr, t.Source); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "\nProgram Length: %04X\n", programLength(a)); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "\nSymbol Table:\nSYMBOL\tValue\tRFLAG\tMFLAG\tIOFLAG\n"); err != nil {
		return err
	}

	for _, name := range a.Symbols.Names() {
		sym, _ := a.Symbols.Lookup(name)

		rflag, mflag, ioflag := "FALSE", "FALSE", "INTERNAL"
		if sym.Relative {
			rflag = "TRUE"
		}

		if sym.External {
			ioflag = "EXTERNAL"
		}

		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", sym.Name, trimHex(sym.Address), rflag, mflag, ioflag); err != nil {
			return err
		}
	}

	if len(a.Literals.Keys()) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\nLiteral Table:\nLITERAL\tVALUE\tLENGTH\tADDRESS\n"); err != nil {
		return err
	}

	for _, key := range a.Literals.Keys() {
		lit, _ := a.Literals.Lookup(key)

		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", lit.Key, fmtLiteralValue(lit), len(lit.Value), trimHex(lit.Address)); err != nil {
			return err
		}
	}

	return nil
}

// trimHex renders v as upper-case hex with leading zeros stripped; a zero value renders as "0".
func trimHex(v uint32) string {
	s := strings.TrimLeft(fmt.Sprintf("%X", v), "0")
	if s == "" {
		return "0"
	}

	return s
}
