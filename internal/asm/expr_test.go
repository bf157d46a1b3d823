package asm

import (
	"errors"
	"testing"
)

func exprSymbols() SymbolTable {
	syms := NewSymbolTable()

	_ = syms.Define("ALPHA", 0x100, true)
	_ = syms.Define("BETA", 0x140, true)
	_ = syms.Define("K", 16, false)
	syms.DefineExternal("EXT")

	return syms
}

func TestExpressionEval(t *testing.T) {
	t.Parallel()

	syms := exprSymbols()

	for _, tc := range []struct {
		src      string
		value    int32
		relative bool
	}{
		{"42", 42, false},
		{"ALPHA", 0x100, true},
		{"BETA-ALPHA", 0x40, false},
		{"ALPHA+8", 0x108, true},
		{"8+ALPHA", 0x108, true},
		{"ALPHA-8", 0xF8, true},
		{"K*2+1", 33, false},
		{"K/4", 4, false},
		{"(BETA-ALPHA)*2", 0x80, false},
		{"-K", -16, false},
		{"EXT-ALPHA", -0x100, false},
	} {
		expr, err := ParseExpression(tc.src)
		if err != nil {
			t.Errorf("ParseExpression(%q): %v", tc.src, err)
			continue
		}

		value, relative, _, err := expr.Eval(syms)
		if err != nil {
			t.Errorf("Eval(%q): %v", tc.src, err)
			continue
		}

		if value != tc.value || relative != tc.relative {
			t.Errorf("Eval(%q) = %d relative=%v, want %d relative=%v",
				tc.src, value, relative, tc.value, tc.relative)
		}
	}
}

func TestExpressionEval_Errors(t *testing.T) {
	t.Parallel()

	syms := exprSymbols()

	for _, tc := range []struct {
		src  string
		want error
	}{
		{"ALPHA+BETA", ErrRelocation},
		{"2-ALPHA", ErrRelocation},
		{"ALPHA*2", ErrRelocation},
		{"K/0", ErrExpression},
		{"MISSING", ErrUndefined},
	} {
		expr, err := ParseExpression(tc.src)
		if err != nil {
			t.Errorf("ParseExpression(%q): %v", tc.src, err)
			continue
		}

		if _, _, _, err := expr.Eval(syms); !errors.Is(err, tc.want) {
			t.Errorf("Eval(%q) error = %v, want %v", tc.src, err, tc.want)
		}
	}
}

func TestExpressionParse_Errors(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"",
		"1+",
		"(ALPHA",
		"ALPHA BETA",
		"1 $ 2",
	} {
		if _, err := ParseExpression(src); err == nil {
			t.Errorf("ParseExpression(%q): expected error", src)
		}
	}
}

func TestExpressionRefs(t *testing.T) {
	t.Parallel()

	syms := exprSymbols()

	expr, err := ParseExpression("EXT-ALPHA+UNDEF")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}

	_, _, refs, err := expr.EvalLenient(syms)
	if err != nil {
		t.Fatalf("EvalLenient: %v", err)
	}

	want := []Ref{
		{Symbol: "EXT", External: true, Defined: true},
		{Symbol: "ALPHA", Subtract: true, Defined: true},
		{Symbol: "UNDEF", External: true},
	}

	if len(refs) != len(want) {
		t.Fatalf("refs = %+v, want %+v", refs, want)
	}

	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestExpressionRefs_StrictUndefined(t *testing.T) {
	t.Parallel()

	expr, err := ParseExpression("UNDEF")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}

	if _, _, _, err := expr.Eval(exprSymbols()); !errors.Is(err, ErrUndefined) {
		t.Errorf("Eval error = %v, want ErrUndefined", err)
	}
}
