package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Literal is one entry in the literal table. Key is the literal text exactly as it appeared in
// source, including the leading '='. Value holds the already-decoded byte string so Pass 2 never
// has to re-parse the literal text.
type Literal struct {
	Key      string
	Value    []byte
	Resolved bool
	Address  uint32
}

// LiteralTable holds every literal seen during Pass 1, plus the pending queue of literals that
// have not yet been placed in a pool. Literals are placed in first-seen order, all at once, at
// the single flush point this assembler supports (end of program; see FlushPool). order records
// every key's first-seen position permanently, independent of queue (which FlushPool drains), so
// listing and Pass 2 output stay deterministic after the pool has been flushed.
type LiteralTable struct {
	entries map[string]*Literal
	queue   []string
	order   []string
}

// NewLiteralTable returns an empty literal table.
func NewLiteralTable() *LiteralTable {
	return &LiteralTable{entries: make(map[string]*Literal)}
}

var (
	literalQuotedC = regexp.MustCompile(`(?i)^=C'([^']*)'$`)
	literalQuotedX = regexp.MustCompile(`(?i)^=X'([0-9A-F]+)'$`)
	literalShortC  = regexp.MustCompile(`(?i)^=0C(.+)$`)
	literalShortX  = regexp.MustCompile(`(?i)^=0X([0-9A-F]+)$`)
)

// IsLiteral reports whether operand is recognized as a literal reference: it starts with '=' and
// matches one of the four literal forms.
func IsLiteral(operand string) bool {
	return literalQuotedC.MatchString(operand) ||
		literalQuotedX.MatchString(operand) ||
		literalShortC.MatchString(operand) ||
		literalShortX.MatchString(operand)
}

// Add decodes operand (an '='-prefixed literal) and, if it has not been seen before, enqueues it
// for placement at the next pool flush. A literal seen earlier reuses the existing entry.
func (lt *LiteralTable) Add(operand string) (*Literal, error) {
	if existing, ok := lt.entries[operand]; ok {
		return existing, nil
	}

	value, err := decodeLiteral(operand)
	if err != nil {
		return nil, err
	}

	lit := &Literal{Key: operand, Value: value}
	lt.entries[operand] = lit
	lt.queue = append(lt.queue, operand)
	lt.order = append(lt.order, operand)

	return lit, nil
}

// Lookup returns the literal previously added under key, if any.
func (lt *LiteralTable) Lookup(key string) (*Literal, bool) {
	lit, ok := lt.entries[key]
	return lit, ok
}

// FlushPool assigns addresses, starting at locctr, to every literal still in the pending queue, in
// insertion order, and returns the locctr advanced past the pool. This is the only place literal
// addresses are assigned.
func (lt *LiteralTable) FlushPool(locctr uint32) uint32 {
	for _, key := range lt.queue {
		lit := lt.entries[key]
		if lit.Resolved {
			continue
		}

		lit.Address = locctr
		lit.Resolved = true
		locctr += uint32(len(lit.Value))
	}

	lt.queue = lt.queue[:0]

	return locctr
}

// Keys returns every literal key in first-seen order, for listing and Pass 2 output.
func (lt *LiteralTable) Keys() []string {
	keys := make([]string, len(lt.order))
	copy(keys, lt.order)

	return keys
}

// decodeLiteral decodes the operand bytes for one of the four literal forms:
//
//	=C'text'   character string
//	=X'hex'    hex digit string (must have even length)
//	=0Ctext    short character form
//	=0Xhex     short hex form
func decodeLiteral(operand string) ([]byte, error) {
	switch {
	case literalQuotedC.MatchString(operand):
		text := literalQuotedC.FindStringSubmatch(operand)[1]
		return []byte(text), nil

	case literalShortC.MatchString(operand):
		text := literalShortC.FindStringSubmatch(operand)[1]
		return []byte(text), nil

	case literalQuotedX.MatchString(operand):
		digits := literalQuotedX.FindStringSubmatch(operand)[1]
		return decodeHexLiteral(operand, digits)

	case literalShortX.MatchString(operand):
		digits := literalShortX.FindStringSubmatch(operand)[1]
		return decodeHexLiteral(operand, digits)

	default:
		return nil, fmt.Errorf("%w: malformed literal %q", ErrLiteral, operand)
	}
}

func decodeHexLiteral(operand, digits string) ([]byte, error) {
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd hex digit count: %q", ErrLiteral, operand)
	}

	out := make([]byte, len(digits)/2)

	for i := range out {
		b, err := strconv.ParseUint(digits[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex digits: %q", ErrLiteral, operand)
		}

		out[i] = byte(b)
	}

	return out, nil
}

// fmtLiteralValue renders the literal's decoded bytes as upper-case hex, whichever form the
// literal was written in. Used by the listing and intermediate writers.
func fmtLiteralValue(lit *Literal) string {
	return strings.ToUpper(fmt.Sprintf("%x", lit.Value))
}
