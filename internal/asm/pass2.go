package asm

import (
	"fmt"

	"github.com/smoynes/sicxe/internal/obj"
)

// maxTextRecord is the largest number of object-code bytes one T record may carry.
const maxTextRecord = 30

// PassTwo walks the records built by PassOne and produces the finished object program. It does
// not stop at the first error; every instruction or directive it cannot encode is recorded in
// a.Errors and omitted from the object program.
func (a *Assembler) PassTwo() error {
	if a.Base.Bound() {
		// A BASE operand names a symbol that may not have been defined yet when the directive was
		// seen; by now every label has an address. If it never got one, drop the binding.
		if _, ok := a.Symbols.Lookup(a.Base.Sym); !ok {
			a.Base.Unbind()
		}
	}

	prog := &obj.Program{Name: a.ProgramName, Start: a.StartAddress, Exec: a.ExecAddress}

	for _, name := range a.ExtDefs {
		if sym, ok := a.Symbols.Lookup(name); ok && sym.Resolved {
			prog.Defines = append(prog.Defines, obj.Symbol{Name: name, Address: sym.Address})
		}
	}

	prog.Refers = append(prog.Refers, a.ExtRefs...)

	var builder textBuilder

	for _, rec := range a.Records {
		switch rec.Kind {
		case recInstruction:
			code, mods, err := a.encodeInstruction(rec)
			if err != nil {
				a.Errors = append(a.Errors, &SyntaxError{Line: rec.Line.Number, Source: rec.Line.Text, Err: err})
				continue
			}

			rec.Code = code
			builder.append(rec.Address, code, prog)

			for _, m := range mods {
				m.Address += rec.Address
				prog.Mods = append(prog.Mods, m)
			}

		case recByte:
			rec.Code = rec.Data
			builder.append(rec.Address, rec.Data, prog)

		case recWord:
			value, _, refs, err := rec.Operand.Expr.EvalLenient(a.Symbols)
			if err != nil {
				a.Errors = append(a.Errors, &SyntaxError{Line: rec.Line.Number, Source: rec.Line.Text, Err: err})
				continue
			}

			code := encodeWord(uint32(value))
			rec.Code = code
			builder.append(rec.Address, code, prog)

			prog.Mods = append(prog.Mods, a.modsFor(refs, rec.Address, 6)...)

		case recResb, recResw:
			builder.flush(prog)

		case recLiteralPool:
			for _, key := range a.Literals.Keys() {
				if lit, ok := a.Literals.Lookup(key); ok && lit.Resolved {
					builder.append(lit.Address, lit.Value, prog)
				}
			}
		}
	}

	builder.flush(prog)

	prog.Length = programLength(a)
	a.program = prog

	return nil
}

// Program returns the object program built by PassTwo. It is nil until PassTwo has run.
func (a *Assembler) Program() *obj.Program {
	return a.program
}

// modsFor turns the identifier occurrences of an evaluated expression into modification records:
// an external name is patched directly, while a locally-defined name relocates with the program
// and is patched through the program's own entry in the loader's symbol table.
func (a *Assembler) modsFor(refs []Ref, addr uint32, halfBytes int) []obj.ModRecord {
	var mods []obj.ModRecord

	for _, ref := range refs {
		symbol := a.ProgramName
		if ref.External {
			symbol = ref.Symbol
		}

		mods = append(mods, obj.ModRecord{Address: addr, Length: halfBytes, Symbol: symbol, Subtract: ref.Subtract})
	}

	return mods
}

func programLength(a *Assembler) uint32 {
	var end uint32

	for _, rec := range a.Records {
		if addr := rec.Address + uint32(rec.Length); addr > end {
			end = addr
		}
	}

	for _, key := range a.Literals.Keys() {
		if lit, ok := a.Literals.Lookup(key); ok && lit.Resolved {
			if addr := lit.Address + uint32(len(lit.Value)); addr > end {
				end = addr
			}
		}
	}

	if end < a.StartAddress {
		return 0
	}

	return end - a.StartAddress
}

// textBuilder accumulates contiguous bytes into obj.TextRecord values, splitting whenever the
// running record would exceed maxTextRecord bytes or the next chunk does not continue at the
// address where the last one ended. Storage reservations flush it outright, so a RESB/RESW gap
// always starts a fresh record.
type textBuilder struct {
	start   uint32
	data    []byte
	started bool
}

func (b *textBuilder) append(addr uint32, data []byte, prog *obj.Program) {
	if len(data) == 0 {
		return
	}

	if b.started && addr != b.start+uint32(len(b.data)) {
		b.flush(prog)
	}

	if !b.started {
		b.start = addr
		b.started = true
	}

	remaining := data

	for len(remaining) > 0 {
		space := maxTextRecord - len(b.data)
		if space <= 0 {
			b.flush(prog)
			b.start = addr + uint32(len(data)-len(remaining))
			b.started = true

			space = maxTextRecord
		}

		n := len(remaining)
		if n > space {
			n = space
		}

		b.data = append(b.data, remaining[:n]...)
		remaining = remaining[n:]
	}
}

func (b *textBuilder) flush(prog *obj.Program) {
	if b.started && len(b.data) > 0 {
		prog.Text = append(prog.Text, obj.TextRecord{Address: b.start, Data: append([]byte(nil), b.data...)})
	}

	b.started = false
	b.data = nil
}

func encodeWord(v uint32) []byte {
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

// encodeInstruction encodes one machine instruction record, returning its object code and any
// modification records it requires (addressed relative to the start of the instruction).
func (a *Assembler) encodeInstruction(rec *IntermediateRecord) ([]byte, []obj.ModRecord, error) {
	switch rec.Entry.Format {
	case 1:
		return []byte{rec.Entry.Opcode}, nil, nil

	case 2:
		return a.encodeFormat2(rec)

	case 3:
		return a.encodeFormat34(rec)

	default:
		return nil, nil, fmt.Errorf("%w: unsupported format", ErrMnemonic)
	}
}

func (a *Assembler) encodeFormat2(rec *IntermediateRecord) ([]byte, []obj.ModRecord, error) {
	var r1, r2 byte

	if len(rec.RegOperands) > 0 && rec.RegOperands[0] != "" {
		n, err := decodeFormat2Operand(rec.RegOperands[0])
		if err != nil {
			return nil, nil, err
		}

		r1 = n
	}

	if len(rec.RegOperands) > 1 && rec.RegOperands[1] != "" {
		n, err := decodeFormat2Operand(rec.RegOperands[1])
		if err != nil {
			return nil, nil, err
		}

		r2 = n
	}

	return []byte{rec.Entry.Opcode, r1<<4 | r2}, nil, nil
}

// decodeFormat2Operand parses one slot of a format 2 operand field: either a register name, or an
// immediate decimal value such as the shift count in "SHIFTL A,#4".
func decodeFormat2Operand(field string) (byte, error) {
	if len(field) > 1 && field[0] == '#' {
		return decodeFormat2Immediate(field[1:])
	}

	return RegisterNumber(field)
}

// encodeFormat34 encodes a format 3 or format 4 (extended) instruction: the n/i addressing flags
// in the low bits of the opcode byte, the x/b/p/e flags, and the 12-bit displacement (format 3)
// or 20-bit address (format 4) field.
func (a *Assembler) encodeFormat34(rec *IntermediateRecord) ([]byte, []obj.ModRecord, error) {
	var nFlag, iFlag, xFlag byte = 1, 1, 0
	var target uint32
	var refs []Ref

	immediateNumeric := false
	literal := false

	if rec.HasOperand {
		op := rec.Operand

		switch op.Mode {
		case AddressImmediate:
			nFlag, iFlag = 0, 1
		case AddressIndirect:
			nFlag, iFlag = 1, 0
		case AddressIndexed:
			xFlag = 1
		}

		switch {
		case op.Mode == AddressLiteral:
			lit, ok := a.Literals.Lookup(op.Literal)
			if !ok || !lit.Resolved {
				return nil, nil, fmt.Errorf("%w: literal %s has no pool address", ErrLiteral, op.Literal)
			}

			target = lit.Address
			literal = true

		case op.Mode == AddressImmediate && isPureNumber(op.Expr):
			value, _, _, err := op.Expr.Eval(a.Symbols)
			if err != nil {
				return nil, nil, err
			}

			target = uint32(value)
			immediateNumeric = true

		case rec.Line.Extended:
			// Names in an extended operand may live in another control section, so evaluation
			// tolerates them; the loader patches the address field from the refs below.
			value, _, r, err := op.Expr.EvalLenient(a.Symbols)
			if err != nil {
				return nil, nil, err
			}

			target = uint32(value)
			refs = r

		default:
			value, _, r, err := op.Expr.Eval(a.Symbols)
			if err != nil {
				return nil, nil, err
			}

			for _, ref := range r {
				if ref.External {
					return nil, nil, fmt.Errorf("%w: %s is external; use +%s", ErrOperand, ref.Symbol, rec.Line.Op)
				}
			}

			target = uint32(value)
		}
	}

	opByte := rec.Entry.Opcode&0xFC | nFlag<<1 | iFlag

	if rec.Line.Extended {
		code := []byte{
			opByte,
			xFlag<<7 | 1<<4 | byte(target>>16)&0x0F, // e=1
			byte(target >> 8),
			byte(target),
		}

		var mods []obj.ModRecord

		if literal {
			mods = []obj.ModRecord{{Address: 1, Length: 5, Symbol: a.ProgramName}}
		} else {
			mods = a.modsFor(refs, 1, 5)
		}

		return code, mods, nil
	}

	// Format 3 displacement selection: program-counter relative, then base relative, then the low
	// twelve bits of the target outright. An immediate numeric operand never falls back to base
	// relative: out of range, it truncates.
	code := []byte{opByte, xFlag << 7, 0}

	pc := int64(rec.Address) + 3
	disp := int64(target) - pc

	bdisp, baseOK := a.baseDisplacement(target)

	switch {
	case disp >= -2048 && disp <= 2047:
		code[1] |= 1 << 5 // p=1
		code[1] |= byte(disp>>8) & 0x0F
		code[2] = byte(disp)

	case !immediateNumeric && baseOK:
		code[1] |= 1 << 6 // b=1
		code[1] |= byte(bdisp>>8) & 0x0F
		code[2] = byte(bdisp)

	default:
		code[1] |= byte(target>>8) & 0x0F
		code[2] = byte(target)
	}

	return code, nil, nil
}

// baseDisplacement returns the base-relative displacement for target, and whether the base
// register is bound to a resolved symbol with the displacement in the unsigned 12-bit range.
func (a *Assembler) baseDisplacement(target uint32) (int64, bool) {
	if !a.Base.Bound() {
		return 0, false
	}

	baseSym, ok := a.Symbols.Lookup(a.Base.Sym)
	if !ok || !baseSym.Resolved {
		return 0, false
	}

	bdisp := int64(target) - int64(baseSym.Address)
	if bdisp < 0 || bdisp > 4095 {
		return 0, false
	}

	return bdisp, true
}

// isPureNumber reports whether expr is a single decimal literal with no identifiers, i.e. an
// immediate like "#4096" rather than "#BUFEND".
func isPureNumber(expr *Expression) bool {
	_, ok := expr.root.(numberNode)
	return ok
}

// decodeFormat2Immediate parses the decimal value of a format 2 "#n" operand slot.
func decodeFormat2Immediate(digits string) (byte, error) {
	var n int

	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: bad immediate value %q", ErrOperand, digits)
		}

		n = n*10 + int(r-'0')
	}

	if n > 0x0F {
		return 0, fmt.Errorf("%w: immediate value %d out of range for format 2", ErrOperand, n)
	}

	return byte(n), nil
}
