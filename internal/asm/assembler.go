// Package asm implements a two-pass SIC/XE assembler: it reads assembly source, builds a symbol
// and literal table in Pass 1, and emits relocatable object records in Pass 2.
//
//	PROG    START   1000
//	FIRST   LDA     FIVE
//	        STA     ALPHA
//	ALPHA   RESW    1
//	FIVE    WORD    5
//	        END     FIRST
//
// Assembling this program yields an *obj.Program (see Assembler.Program) ready to be written out as a sequence of
// H/D/R/T/M/E records (see package obj) alongside a listing of every source line next to the
// address and object code it produced.
package asm

import (
	"github.com/smoynes/sicxe/internal/obj"
	"github.com/smoynes/sicxe/internal/opcode"
)

// Assembler holds all the state accumulated across both passes of one assembly unit.
type Assembler struct {
	Catalog opcode.Catalog

	Symbols  SymbolTable
	Literals *LiteralTable
	Base     BaseRegister

	ProgramName  string
	StartAddress uint32
	ExecAddress  uint32 // address named on END, or StartAddress if none given

	ExtDefs []string // EXTDEF names, in declaration order
	ExtRefs []string // EXTREF names, in declaration order

	Records []*IntermediateRecord

	// Trace is a line-by-line diagnostic trace of Pass 1, one entry per non-comment source line
	// (including directives that produce no IntermediateRecord). It backs WriteIntermediate's
	// test1.int dump and plays no part in Pass 2.
	Trace []TraceLine

	Errors []error // errors collected during Pass 1; a non-empty slice does not stop Pass 2

	program *obj.Program // built by PassTwo; nil until PassTwo has run
}

// TraceLine is one line of Pass 1's diagnostic trace: the source line number, the location
// counter when the line was read, and the raw source text.
type TraceLine struct {
	Number int
	LocCtr uint32
	Source string
}

func (a *Assembler) trace(line SourceLine, locctr uint32) {
	a.Trace = append(a.Trace, TraceLine{Number: line.Number, LocCtr: locctr, Source: line.Text})
}

// NewAssembler returns an assembler ready to process source against the given opcode catalog.
func NewAssembler(cat opcode.Catalog) *Assembler {
	return &Assembler{
		Catalog:  cat,
		Symbols:  NewSymbolTable(),
		Literals: NewLiteralTable(),
	}
}

// recordKind classifies one intermediate record so Pass 2 knows how to render it.
type recordKind uint8

const (
	recInstruction recordKind = iota
	recByte
	recWord
	recResb
	recResw
	recLiteralPool // synthetic record inserted at the point literals are flushed
	recOther       // START/END/EQU/BASE/NOBASE/EXTDEF/EXTREF: no storage, already handled in Pass 1
)

// IntermediateRecord is Pass 1's record of one source line: its address, parsed fields, and
// enough information for Pass 2 to generate object code without re-parsing the line.
type IntermediateRecord struct {
	Line    SourceLine
	Address uint32
	Kind    recordKind

	Entry opcode.Entry // catalog entry, for recInstruction records

	Operand    Operand
	HasOperand bool

	RegOperands []string // format 2 register slots, in order

	Data   []byte // decoded BYTE data
	Length int    // bytes this record occupies in the object program

	Code []byte // object code emitted by PassTwo, for the listing; nil if the line emits none
}

// Assemble runs both passes over source and returns the finished assembler state. Errors
// collected along the way are non-fatal to the run; check a.Errors after return.
func Assemble(cat opcode.Catalog, source []string) (*Assembler, error) {
	a := NewAssembler(cat)

	if err := a.PassOne(source); err != nil {
		return a, err
	}

	if err := a.PassTwo(); err != nil {
		return a, err
	}

	return a, nil
}
