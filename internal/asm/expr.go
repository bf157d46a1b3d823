package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expression is a parsed arithmetic expression over symbols and decimal literals, as they appear
// in an operand field or on the right-hand side of EQU. Expressions support +, -, *, / and
// parentheses. Relocatability is tracked through evaluation: adding an absolute term to a
// relative one stays relative, subtracting two relative terms cancels to absolute, and adding
// two relative terms is an error.
type Expression struct {
	root exprNode
}

// Ref is one identifier occurrence inside an expression, recorded in source order during
// evaluation. Subtract is true when the occurrence is negated (appears after '-'). External is
// true when the name resolved through EXTREF, or was never defined at all and is being treated
// as an implicit external; either way the identifier contributed zero to the computed value and
// the loader must patch it.
type Ref struct {
	Symbol   string
	Subtract bool
	External bool
	Defined  bool
}

type exprNode interface {
	// eval computes the subtree's value and relocatability. neg is true when the subtree sits
	// under an odd number of negations; identifier leaves record it into their Ref.
	eval(e *evalState, neg bool) (int32, bool, error)
}

type evalState struct {
	symbols SymbolTable
	lenient bool // undefined identifiers become implicit externals instead of errors
	refs    []Ref
}

type numberNode int32

func (n numberNode) eval(*evalState, bool) (int32, bool, error) {
	return int32(n), false, nil
}

type identNode string

func (n identNode) eval(e *evalState, neg bool) (int32, bool, error) {
	name := string(n)

	sym, ok := e.symbols.Lookup(name)

	// An external name assembles as zero and relocates at load time, so it takes part in the
	// relocatability algebra as a relative term: subtracting it from a local label cancels to an
	// absolute difference the loader can reconstruct from the two modification records.
	switch {
	case ok && sym.External:
		e.refs = append(e.refs, Ref{Symbol: sym.Name, Subtract: neg, External: true, Defined: true})
		return 0, true, nil

	case ok && sym.Resolved:
		e.refs = append(e.refs, Ref{Symbol: sym.Name, Subtract: neg, Defined: true})
		return int32(sym.Address), sym.Relative, nil

	case e.lenient:
		e.refs = append(e.refs, Ref{Symbol: strings.ToUpper(name), Subtract: neg, External: true})
		return 0, true, nil

	default:
		return 0, false, &SymbolError{Symbol: name, Err: ErrUndefined}
	}
}

type binaryNode struct {
	op          byte
	left, right exprNode
}

func (n binaryNode) eval(e *evalState, neg bool) (int32, bool, error) {
	rightNeg := neg
	if n.op == '-' {
		rightNeg = !neg
	}

	lval, lrel, err := n.left.eval(e, neg)
	if err != nil {
		return 0, false, err
	}

	rval, rrel, err := n.right.eval(e, rightNeg)
	if err != nil {
		return 0, false, err
	}

	switch n.op {
	case '+':
		if lrel && rrel {
			return 0, false, fmt.Errorf("%w: relative + relative", ErrRelocation)
		}

		return lval + rval, lrel || rrel, nil

	case '-':
		if rrel && !lrel {
			return 0, false, fmt.Errorf("%w: absolute - relative", ErrRelocation)
		}

		rel := lrel != rrel // rel-rel=abs, rel-abs=rel, abs-abs=abs

		return lval - rval, rel, nil

	case '*':
		if lrel || rrel {
			return 0, false, fmt.Errorf("%w: relative operand in multiplication", ErrRelocation)
		}

		return lval * rval, false, nil

	case '/':
		if lrel || rrel {
			return 0, false, fmt.Errorf("%w: relative operand in division", ErrRelocation)
		}

		if rval == 0 {
			return 0, false, fmt.Errorf("%w: division by zero", ErrExpression)
		}

		return lval / rval, false, nil

	default:
		return 0, false, fmt.Errorf("%w: unknown operator %q", ErrExpression, n.op)
	}
}

// ParseExpression parses the text of an operand or EQU right-hand side into an Expression.
func ParseExpression(text string) (*Expression, error) {
	p := &exprParser{toks: tokenizeExpr(text), src: text}

	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("%w: trailing input in %q", ErrExpression, text)
	}

	return &Expression{root: root}, nil
}

// Eval evaluates the expression against the current symbol table. It returns the computed value,
// whether the result is relocatable, and every identifier occurrence in source order. A reference
// to a symbol that was never defined is an error.
func (ex *Expression) Eval(symbols SymbolTable) (value int32, relative bool, refs []Ref, err error) {
	return ex.eval(symbols, false)
}

// EvalLenient is Eval except that an undefined identifier is treated as an implicit external:
// it contributes zero to the value and appears in refs with External set, leaving the loader to
// patch the field. WORD and extended-format operands evaluate this way so a name that only
// exists in another control section still assembles.
func (ex *Expression) EvalLenient(symbols SymbolTable) (value int32, relative bool, refs []Ref, err error) {
	return ex.eval(symbols, true)
}

func (ex *Expression) eval(symbols SymbolTable, lenient bool) (int32, bool, []Ref, error) {
	state := &evalState{symbols: symbols, lenient: lenient}

	value, relative, err := ex.root.eval(state, false)
	if err != nil {
		return 0, false, nil, err
	}

	return value, relative, state.refs, nil
}

// exprToken is one lexical token of an expression: an operator, paren, number, or identifier.
type exprToken struct {
	kind byte // 'n' number, 'i' identifier, or the operator/paren rune itself
	text string
	num  int32
}

func tokenizeExpr(text string) []exprToken {
	var toks []exprToken

	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
			toks = append(toks, exprToken{kind: byte(r), text: string(r)})
			i++

		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}

			numText := string(runes[i:j])

			n, _ := strconv.ParseInt(numText, 10, 32)
			toks = append(toks, exprToken{kind: 'n', text: numText, num: int32(n)})
			i = j

		default:
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}

			if j == i {
				j = i + 1 // unrecognized rune; consume it so the parser reports a clean error
			}

			toks = append(toks, exprToken{kind: 'i', text: string(runes[i:j])})
			i = j
		}
	}

	return toks
}

type exprParser struct {
	toks []exprToken
	pos  int
	src  string
}

func (p *exprParser) peek() (exprToken, bool) {
	if p.pos >= len(p.toks) {
		return exprToken{}, false
	}

	return p.toks[p.pos], true
}

func (p *exprParser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != '+' && tok.kind != '-') {
			break
		}

		p.pos++

		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		left = binaryNode{op: tok.kind, left: left, right: right}
	}

	return left, nil
}

func (p *exprParser) parseTerm() (exprNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != '*' && tok.kind != '/') {
			break
		}

		p.pos++

		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}

		left = binaryNode{op: tok.kind, left: left, right: right}
	}

	return left, nil
}

func (p *exprParser) parseFactor() (exprNode, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected end of expression %q", ErrExpression, p.src)
	}

	switch tok.kind {
	case 'n':
		p.pos++
		return numberNode(tok.num), nil

	case 'i':
		p.pos++
		return identNode(strings.ToUpper(tok.text)), nil

	case '(':
		p.pos++

		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		close, ok := p.peek()
		if !ok || close.kind != ')' {
			return nil, fmt.Errorf("%w: unmatched '(' in %q", ErrExpression, p.src)
		}

		p.pos++

		return inner, nil

	case '-':
		p.pos++

		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}

		return binaryNode{op: '-', left: numberNode(0), right: inner}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected token %q in %q", ErrExpression, tok.text, p.src)
	}
}
