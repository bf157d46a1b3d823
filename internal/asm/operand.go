package asm

import (
	"fmt"
	"strings"
)

// AddressingMode names the SIC/XE operand addressing forms this assembler recognizes.
//
//go:generate go run golang.org/x/tools/cmd/stringer -type AddressingMode
type AddressingMode uint8

const (
	AddressSimple AddressingMode = iota
	AddressImmediate
	AddressIndirect
	AddressIndexed
	AddressLiteral
)

// Operand is the parsed right-hand operand of a format 2, 3, or 4 instruction. Exactly one of
// Expr or Literal is set, except for register operands (format 2), which carry no expression at
// all and are parsed separately by the directive/instruction handler.
type Operand struct {
	Mode    AddressingMode
	Expr    *Expression
	Literal string // key into the LiteralTable, set when Mode == AddressLiteral
}

// ParseOperand parses the operand field of a format 2/3/4 instruction: an optional leading '#'
// (immediate) or '@' (indirect), the expression or literal itself, and an optional trailing
// ",X" (indexed). Register-to-register (format 2) operands are not handled here.
func ParseOperand(field string) (Operand, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return Operand{}, fmt.Errorf("%w: empty operand", ErrOperand)
	}

	indexed := false

	if idx := strings.LastIndex(strings.ToUpper(field), ",X"); idx != -1 && idx == len(field)-2 {
		field = field[:idx]
		indexed = true
	}

	switch {
	case strings.HasPrefix(field, "#"):
		expr, err := ParseExpression(field[1:])
		if err != nil {
			return Operand{}, err
		}

		if indexed {
			return Operand{}, fmt.Errorf("%w: immediate operand cannot be indexed", ErrOperand)
		}

		return Operand{Mode: AddressImmediate, Expr: expr}, nil

	case strings.HasPrefix(field, "@"):
		expr, err := ParseExpression(field[1:])
		if err != nil {
			return Operand{}, err
		}

		if indexed {
			return Operand{}, fmt.Errorf("%w: indirect operand cannot be indexed", ErrOperand)
		}

		return Operand{Mode: AddressIndirect, Expr: expr}, nil

	case strings.HasPrefix(field, "="):
		if indexed {
			return Operand{}, fmt.Errorf("%w: literal operand cannot be indexed", ErrOperand)
		}

		if !IsLiteral(field) {
			return Operand{}, fmt.Errorf("%w: malformed literal %q", ErrLiteral, field)
		}

		return Operand{Mode: AddressLiteral, Literal: field}, nil

	default:
		expr, err := ParseExpression(field)
		if err != nil {
			return Operand{}, err
		}

		mode := AddressSimple
		if indexed {
			mode = AddressIndexed
		}

		return Operand{Mode: mode, Expr: expr}, nil
	}
}

// splitRegisterOperands splits the register field of a format 2 instruction, e.g. "A,X" or just
// "A", into its comma-separated slots.
func splitRegisterOperands(field string) []string {
	parts := strings.Split(field, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return parts
}

// registers maps the SIC/XE register mnemonics to their format 2 field encoding.
var registers = map[string]byte{
	"A":  0,
	"X":  1,
	"L":  2,
	"B":  3,
	"S":  4,
	"T":  5,
	"F":  6,
	"PC": 8,
	"SW": 9,
}

// RegisterNumber returns the numeric encoding of a register mnemonic.
func RegisterNumber(name string) (byte, error) {
	n, ok := registers[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown register %q", ErrRegister, name)
	}

	return n, nil
}
