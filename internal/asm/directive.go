package asm

import "strings"

// Directive names the assembler directives this assembler recognizes, distinct from machine
// instruction mnemonics (which come from the opcode catalog instead).
type Directive string

const (
	DirStart  Directive = "START"
	DirEnd    Directive = "END"
	DirByte   Directive = "BYTE"
	DirWord   Directive = "WORD"
	DirResb   Directive = "RESB"
	DirResw   Directive = "RESW"
	DirBase   Directive = "BASE"
	DirNobase Directive = "NOBASE"
	DirEqu    Directive = "EQU"
	DirExtdef Directive = "EXTDEF"
	DirExtref Directive = "EXTREF"
)

var directives = map[string]Directive{
	"START":  DirStart,
	"END":    DirEnd,
	"BYTE":   DirByte,
	"WORD":   DirWord,
	"RESB":   DirResb,
	"RESW":   DirResw,
	"BASE":   DirBase,
	"NOBASE": DirNobase,
	"EQU":    DirEqu,
	"EXTDEF": DirExtdef,
	"EXTREF": DirExtref,
}

// LookupDirective returns the directive named by mnemonic, if any.
func LookupDirective(mnemonic string) (Directive, bool) {
	d, ok := directives[strings.ToUpper(mnemonic)]
	return d, ok
}

// baseState names whether a base register binding is in effect. Format 3 instructions may only
// use base-relative addressing once a BASE directive has bound the register.
type baseState uint8

const (
	baseUnbound baseState = iota
	baseBound
)

// BaseRegister tracks the operand of the most recent BASE directive. Sym holds the symbol name
// given to BASE so its resolved address (possibly still pending at the time BASE was seen) is
// looked up fresh each time a base-relative displacement is computed.
type BaseRegister struct {
	state baseState
	Sym   string
}

// Bind records that register B now holds the address of Sym.
func (b *BaseRegister) Bind(sym string) {
	b.state = baseBound
	b.Sym = sym
}

// Unbind clears the base register binding (NOBASE).
func (b *BaseRegister) Unbind() {
	b.state = baseUnbound
	b.Sym = ""
}

// Bound reports whether a BASE directive is currently in effect.
func (b *BaseRegister) Bound() bool {
	return b.state == baseBound
}
