package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// PassOne scans source top to bottom, assigning every label an address, recording every literal
// reference, and building one IntermediateRecord per source line that survives tokenizing.
// A line that fails to assemble is recorded in a.Errors and skipped; PassOne itself only returns
// an error for a structural problem (missing START/END, or a line before START).
func (a *Assembler) PassOne(source []string) error {
	var locctr uint32

	started := false
	ended := false

	for lineNo, text := range source {
		line, ok := a.splitLine(text)
		if !ok {
			continue
		}

		line.Number = lineNo + 1

		if ended {
			break // nothing after END is assembled
		}

		isStart := strings.ToUpper(line.Op) == string(DirStart)

		if !started && !isStart {
			return &SyntaxError{Line: line.Number, Source: line.Text,
				Err: fmt.Errorf("%w: missing START", ErrOperand)}
		}

		if !isStart {
			a.trace(line, locctr)
		}

		if dir, isDir := LookupDirective(line.Op); isDir {
			var err error

			locctr, err = a.pass1Directive(dir, line, locctr, &started, &ended)
			if err != nil {
				a.Errors = append(a.Errors, &SyntaxError{Line: line.Number, Source: line.Text, Err: err})
			}

			if isStart {
				a.trace(line, locctr)
			}

			continue
		}

		// Ordinary instruction line.
		if line.Label != "" {
			if err := a.Symbols.Define(line.Label, locctr, true); err != nil {
				a.Errors = append(a.Errors, &SyntaxError{Line: line.Number, Source: line.Text, Err: err})
				continue
			}
		}

		rec, length, err := a.pass1Instruction(line, locctr)
		if err != nil {
			a.Errors = append(a.Errors, &SyntaxError{Line: line.Number, Source: line.Text, Err: err})
			continue
		}

		rec.Address = locctr
		rec.Length = length
		a.Records = append(a.Records, rec)
		locctr += uint32(length)
	}

	if !started {
		return fmt.Errorf("%w: program has no START directive", ErrOperand)
	}

	if !ended {
		return fmt.Errorf("%w: program has no END directive", ErrOperand)
	}

	return nil
}

// pass1Directive handles one directive line, advancing and returning locctr. Every directive it
// accepts leaves an IntermediateRecord behind, even the ones that reserve no storage, so the
// listing can show each source line at the address it was seen; a rejected START, BYTE, WORD,
// RESB or RESW line leaves none.
func (a *Assembler) pass1Directive(dir Directive, line SourceLine, locctr uint32, started, ended *bool) (uint32, error) {
	switch dir {
	case DirStart:
		if *started {
			return locctr, fmt.Errorf("%w: duplicate START", ErrOperand)
		}

		addr, err := strconv.ParseUint(line.Operand, 16, 32)
		if err != nil {
			return locctr, fmt.Errorf("%w: bad START address %q", ErrOperand, line.Operand)
		}

		a.ProgramName = strings.ToUpper(line.Label)
		a.StartAddress = uint32(addr)
		a.ExecAddress = uint32(addr)
		*started = true

		if line.Label != "" {
			if err := a.Symbols.Define(line.Label, uint32(addr), true); err != nil {
				return uint32(addr), err
			}
		}

		a.Records = append(a.Records, &IntermediateRecord{Line: line, Kind: recOther, Address: uint32(addr)})

		return uint32(addr), nil

	case DirEnd:
		*ended = true

		a.Records = append(a.Records, &IntermediateRecord{Line: line, Kind: recOther, Address: locctr})

		locctr = a.Literals.FlushPool(locctr)

		a.Records = append(a.Records, &IntermediateRecord{Kind: recLiteralPool})

		if line.Operand != "" {
			if sym, ok := a.Symbols.Lookup(line.Operand); ok {
				a.ExecAddress = sym.Address
			}
		}

		return locctr, nil

	case DirBase:
		a.Base.Bind(strings.ToUpper(line.Operand))
		a.Records = append(a.Records, &IntermediateRecord{Line: line, Kind: recOther, Address: locctr})

		return locctr, nil

	case DirNobase:
		a.Base.Unbind()
		a.Records = append(a.Records, &IntermediateRecord{Line: line, Kind: recOther, Address: locctr})

		return locctr, nil

	case DirEqu:
		a.Records = append(a.Records, &IntermediateRecord{Line: line, Kind: recOther, Address: locctr})

		if line.Label == "" {
			return locctr, fmt.Errorf("%w: EQU requires a label", ErrOperand)
		}

		if line.Operand == "*" {
			return locctr, a.Symbols.Define(line.Label, locctr, true)
		}

		expr, err := ParseExpression(line.Operand)
		if err != nil {
			return locctr, err
		}

		value, relative, _, err := expr.Eval(a.Symbols)
		if err != nil {
			return locctr, err
		}

		return locctr, a.Symbols.Define(line.Label, uint32(value), relative)

	case DirExtdef:
		for _, name := range splitList(line.Operand) {
			a.Symbols.DefineExported(name)
			a.ExtDefs = append(a.ExtDefs, strings.ToUpper(name))
		}

		a.Records = append(a.Records, &IntermediateRecord{Line: line, Kind: recOther, Address: locctr})

		return locctr, nil

	case DirExtref:
		for _, name := range splitList(line.Operand) {
			a.Symbols.DefineExternal(name)
			a.ExtRefs = append(a.ExtRefs, strings.ToUpper(name))
		}

		a.Records = append(a.Records, &IntermediateRecord{Line: line, Kind: recOther, Address: locctr})

		return locctr, nil

	case DirByte:
		if line.Label != "" {
			if err := a.Symbols.Define(line.Label, locctr, true); err != nil {
				return locctr, err
			}
		}

		data, err := decodeByteOperand(line.Operand)
		if err != nil {
			return locctr, err
		}

		a.Records = append(a.Records, &IntermediateRecord{
			Line: line, Kind: recByte, Address: locctr, Data: data, Length: len(data),
		})

		return locctr + uint32(len(data)), nil

	case DirWord:
		if line.Label != "" {
			if err := a.Symbols.Define(line.Label, locctr, true); err != nil {
				return locctr, err
			}
		}

		expr, err := ParseExpression(line.Operand)
		if err != nil {
			return locctr, err
		}

		a.Records = append(a.Records, &IntermediateRecord{
			Line: line, Kind: recWord, Address: locctr,
			Operand: Operand{Expr: expr}, HasOperand: true, Length: 3,
		})

		return locctr + 3, nil

	case DirResb:
		if line.Label != "" {
			if err := a.Symbols.Define(line.Label, locctr, true); err != nil {
				return locctr, err
			}
		}

		n, err := strconv.ParseUint(line.Operand, 10, 32)
		if err != nil {
			return locctr, fmt.Errorf("%w: bad RESB count %q", ErrOperand, line.Operand)
		}

		a.Records = append(a.Records, &IntermediateRecord{
			Line: line, Kind: recResb, Address: locctr, Length: int(n),
		})

		return locctr + uint32(n), nil

	case DirResw:
		if line.Label != "" {
			if err := a.Symbols.Define(line.Label, locctr, true); err != nil {
				return locctr, err
			}
		}

		n, err := strconv.ParseUint(line.Operand, 10, 32)
		if err != nil {
			return locctr, fmt.Errorf("%w: bad RESW count %q", ErrOperand, line.Operand)
		}

		a.Records = append(a.Records, &IntermediateRecord{
			Line: line, Kind: recResw, Address: locctr, Length: int(n) * 3,
		})

		return locctr + uint32(n)*3, nil

	default:
		return locctr, fmt.Errorf("%w: unhandled directive %s", ErrOperand, dir)
	}
}

// pass1Instruction parses one machine instruction line, registering any literal it references,
// and returns the partially-built record along with its encoded length in bytes.
func (a *Assembler) pass1Instruction(line SourceLine, locctr uint32) (*IntermediateRecord, int, error) {
	entry, ok := a.Catalog.Lookup(line.Op)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrMnemonic, line.Op)
	}

	rec := &IntermediateRecord{Line: line, Kind: recInstruction, Entry: entry}

	switch entry.Format {
	case 1:
		return rec, 1, nil

	case 2:
		rec.RegOperands = splitRegisterOperands(line.Operand)
		return rec, 2, nil

	case 3:
		length := 3
		if line.Extended {
			length = 4
		}

		if line.Operand != "" {
			if IsLiteral(line.Operand) {
				if _, err := a.Literals.Add(line.Operand); err != nil {
					return nil, 0, err
				}

				rec.Operand = Operand{Mode: AddressLiteral, Literal: line.Operand}
			} else {
				op, err := ParseOperand(line.Operand)
				if err != nil {
					return nil, 0, err
				}

				rec.Operand = op
			}

			rec.HasOperand = true
		}

		return rec, length, nil

	default:
		return nil, 0, fmt.Errorf("%w: unsupported format for %s", ErrMnemonic, line.Op)
	}
}

// decodeByteOperand decodes the four BYTE operand forms:
//
//	C'text'  X'hex'  0Ctext  0Xhex
func decodeByteOperand(operand string) ([]byte, error) {
	upper := strings.ToUpper(operand)

	switch {
	case strings.HasPrefix(upper, "C'") && strings.HasSuffix(operand, "'") && len(operand) > 3:
		return []byte(operand[2 : len(operand)-1]), nil

	case strings.HasPrefix(upper, "X'") && strings.HasSuffix(operand, "'") && len(operand) > 3:
		return decodeByteHex(operand, operand[2:len(operand)-1])

	case strings.HasPrefix(upper, "0C") && len(operand) > 2:
		return []byte(operand[2:]), nil

	case strings.HasPrefix(upper, "0X") && len(operand) > 2:
		return decodeByteHex(operand, operand[2:])

	default:
		return nil, fmt.Errorf("%w: malformed BYTE operand %q", ErrOperand, operand)
	}
}

func decodeByteHex(operand, digits string) ([]byte, error) {
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd hex digit count in %q", ErrOperand, operand)
	}

	out := make([]byte, len(digits)/2)

	for i := range out {
		b, err := strconv.ParseUint(digits[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex in %q", ErrOperand, operand)
		}

		out[i] = byte(b)
	}

	return out, nil
}

func splitList(operand string) []string {
	parts := strings.Split(operand, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
