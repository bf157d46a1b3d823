package asm

import (
	"errors"
	"fmt"
)

// Sentinel causes, wrapped by SyntaxError to classify what went wrong on a source line.
var (
	ErrMnemonic   = errors.New("unknown mnemonic")
	ErrOperand    = errors.New("operand error")
	ErrLiteral    = errors.New("literal error")
	ErrRedefined  = errors.New("symbol redefined")
	ErrExpression = errors.New("expression error")
	ErrRegister   = errors.New("register error")
)

// SyntaxError is returned for a source line that cannot be assembled. The offending line is
// skipped; assembly continues with the next line.
type SyntaxError struct {
	Line   int    // Source line number, one-based.
	Source string // Raw source text.
	Err    error  // Underlying cause; one of the Err* sentinels above, wrapped with detail.
}

func (se *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", se.Line, se.Err, se.Source)
}

func (se *SyntaxError) Unwrap() error {
	return se.Err
}

// SymbolError is returned when a symbol cannot be resolved or is used inconsistently.
type SymbolError struct {
	Symbol string
	Err    error
}

func (se *SymbolError) Error() string {
	return fmt.Sprintf("symbol %q: %s", se.Symbol, se.Err)
}

func (se *SymbolError) Unwrap() error {
	return se.Err
}

// ErrUndefined marks a SymbolError caused by a reference to a symbol never defined, declared
// EXTREF, nor found in the literal table.
var ErrUndefined = errors.New("undefined")

// ErrRelocation marks a SymbolError (or wrapped arithmetic error) caused by an illegal
// relative-plus-relative expression.
var ErrRelocation = errors.New("illegal relocatable expression")
