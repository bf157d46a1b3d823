package asm

import (
	"bytes"
	"testing"
)

func TestIsLiteral(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		operand string
		want    bool
	}{
		{"=C'EOF'", true},
		{"=X'F1'", true},
		{"=x'05'", true},
		{"=0CEOF", true},
		{"=0X05", true},
		{"=X'F'", true}, // odd digit counts are caught at decode, not here
		{"=X''", false},
		{"ALPHA", false},
		{"=", false},
		{"#5", false},
	} {
		if got := IsLiteral(tc.operand); got != tc.want {
			t.Errorf("IsLiteral(%q) = %v, want %v", tc.operand, got, tc.want)
		}
	}
}

func TestLiteralTable_AddAndFlush(t *testing.T) {
	t.Parallel()

	lt := NewLiteralTable()

	first, err := lt.Add("=X'F1'")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	again, err := lt.Add("=X'F1'")
	if err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}

	if first != again {
		t.Error("duplicate literal must reuse the first entry")
	}

	if _, err := lt.Add("=C'EOF'"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if got := lt.Keys(); len(got) != 2 || got[0] != "=X'F1'" || got[1] != "=C'EOF'" {
		t.Fatalf("Keys = %v, want insertion order", got)
	}

	end := lt.FlushPool(0x2000)
	if end != 0x2004 {
		t.Errorf("FlushPool = %04X, want 2004 (one byte + three bytes)", end)
	}

	f1, _ := lt.Lookup("=X'F1'")
	if !f1.Resolved || f1.Address != 0x2000 || !bytes.Equal(f1.Value, []byte{0xF1}) {
		t.Errorf("=X'F1' = %+v, want F1 at 2000", f1)
	}

	eof, _ := lt.Lookup("=C'EOF'")
	if !eof.Resolved || eof.Address != 0x2001 || !bytes.Equal(eof.Value, []byte("EOF")) {
		t.Errorf("=C'EOF' = %+v, want EOF at 2001", eof)
	}

	// A second flush finds the queue drained and leaves addresses alone.
	if end := lt.FlushPool(0x3000); end != 0x3000 {
		t.Errorf("second FlushPool = %04X, want 3000", end)
	}
}

func TestLiteralDecode_Errors(t *testing.T) {
	t.Parallel()

	lt := NewLiteralTable()

	for _, operand := range []string{
		"=X'F'",   // odd digit count
		"=0X123",  // odd digit count, short form
		"=X'GG'",  // not hex (rejected as malformed)
		"=Q'ABC'", // unknown form
	} {
		if _, err := lt.Add(operand); err == nil {
			t.Errorf("Add(%q): expected error", operand)
		}
	}
}
