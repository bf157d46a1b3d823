package asm

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/smoynes/sicxe/internal/obj"
	"github.com/smoynes/sicxe/internal/opcode"
)

func testCatalog() opcode.Catalog {
	cat := make(opcode.Catalog)

	for _, e := range []opcode.Entry{
		{Mnemonic: "LDA", Opcode: 0x00, Format: opcode.Format3},
		{Mnemonic: "LDCH", Opcode: 0x50, Format: opcode.Format3},
		{Mnemonic: "STA", Opcode: 0x0C, Format: opcode.Format3},
		{Mnemonic: "STCH", Opcode: 0x54, Format: opcode.Format3},
		{Mnemonic: "J", Opcode: 0x3C, Format: opcode.Format3},
		{Mnemonic: "JSUB", Opcode: 0x48, Format: opcode.Format3},
		{Mnemonic: "RSUB", Opcode: 0x4C, Format: opcode.Format3},
		{Mnemonic: "LDB", Opcode: 0x68, Format: opcode.Format3},
		{Mnemonic: "CLEAR", Opcode: 0xB4, Format: opcode.Format2},
		{Mnemonic: "COMPR", Opcode: 0xA0, Format: opcode.Format2},
		{Mnemonic: "SHIFTL", Opcode: 0xA4, Format: opcode.Format2},
		{Mnemonic: "FIX", Opcode: 0xC4, Format: opcode.Format1},
	} {
		cat[e.Mnemonic] = e
	}

	return cat
}

func assemble(t *testing.T, source ...string) *Assembler {
	t.Helper()

	unit, err := Assemble(testCatalog(), source)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(unit.Errors) > 0 {
		t.Fatalf("Assemble: line errors: %v", unit.Errors)
	}

	return unit
}

func objectText(t *testing.T, unit *Assembler) string {
	t.Helper()

	text, err := unit.Program().MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	return string(text)
}

func TestAssemble_MinimalProgram(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"FIRST   LDA     FIVE",
		"FIVE    WORD    5",
		"        END     FIRST",
	)

	want := "H^PROG^001000^000006\n" +
		"T^001000^06^032000000005\n" +
		"E^001000\n"

	if got := objectText(t, unit); got != want {
		t.Errorf("object program:\ngot:\n%swant:\n%s", got, want)
	}
}

func TestAssemble_EquStar(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1234",
		"HERE    EQU     *",
		"        LDA     HERE",
		"        END",
	)

	sym, ok := unit.Symbols.Lookup("HERE")
	if !ok {
		t.Fatal("HERE not defined")
	}

	if sym.Address != 0x1234 || !sym.Relative {
		t.Errorf("HERE = %04X relative=%v, want 1234 relative=true", sym.Address, sym.Relative)
	}
}

func TestAssemble_EquExpression(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   0",
		"BUFFER  WORD    0",
		"BUFEND  EQU     *",
		"MAXLEN  EQU     BUFEND-BUFFER",
		"        END",
	)

	sym, ok := unit.Symbols.Lookup("MAXLEN")
	if !ok {
		t.Fatal("MAXLEN not defined")
	}

	if sym.Address != 3 || sym.Relative {
		t.Errorf("MAXLEN = %d relative=%v, want 3 relative=false", sym.Address, sym.Relative)
	}
}

func TestAssemble_LiteralPool(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"        LDA     =X'F1'",
		"        LDCH    =X'F1'",
		"        END",
	)

	keys := unit.Literals.Keys()
	if len(keys) != 1 {
		t.Fatalf("literal count = %d, want 1 (duplicates share an entry)", len(keys))
	}

	lit, _ := unit.Literals.Lookup("=X'F1'")
	if !lit.Resolved || lit.Address != 0x1006 || len(lit.Value) != 1 {
		t.Fatalf("literal = %+v, want resolved at 1006 length 1", lit)
	}

	// Both references reach the pooled byte PC-relatively, and the pool byte itself is emitted
	// contiguously after the instructions.
	want := "T^001000^07^03200353" + "2000F1\n"
	if got := objectText(t, unit); !strings.Contains(got, want) {
		t.Errorf("object program:\n%swant text record:\n%s", got, want)
	}
}

func TestAssemble_BaseRelativeFallback(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"TARG    EQU     16384",
		"BSYM    EQU     12289",
		"        BASE    BSYM",
		"        LDA     TARG",
		"        END",
	)

	rec := findInstruction(t, unit, "LDA")

	// PC-relative displacement to 0x4000 is out of range; base is 0x3001, so b=1 with
	// displacement 0xFFF.
	if got := hex.EncodeToString(rec.Code); got != "034fff" {
		t.Errorf("LDA TARG = %s, want 034fff", got)
	}
}

func TestAssemble_AddressingModes(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"        LDA     #3",
		"        J       @RETADR",
		"        STCH    BUF,X",
		"        RSUB",
		"RETADR  WORD    0",
		"BUF     WORD    0",
		"        END",
	)

	for _, tc := range []struct {
		op   string
		want string
	}{
		{"LDA", "010003"},  // immediate numeric, out of PC range, truncated to the value itself
		{"J", "3e2006"},    // indirect, PC-relative to RETADR at 100C
		{"STCH", "57a006"}, // indexed, PC-relative to BUF at 100F
		{"RSUB", "4f0000"},
	} {
		rec := findInstruction(t, unit, tc.op)

		if got := hex.EncodeToString(rec.Code); got != tc.want {
			t.Errorf("%s = %s, want %s", tc.op, got, tc.want)
		}
	}
}

func TestAssemble_Format2(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   0",
		"        CLEAR   X",
		"        COMPR   A,S",
		"        SHIFTL  T,#4",
		"        FIX",
		"        END",
	)

	for _, tc := range []struct {
		op   string
		want string
	}{
		{"CLEAR", "b410"},
		{"COMPR", "a004"},
		{"SHIFTL", "a454"},
		{"FIX", "c4"},
	} {
		rec := findInstruction(t, unit, tc.op)

		if got := hex.EncodeToString(rec.Code); got != tc.want {
			t.Errorf("%s = %s, want %s", tc.op, got, tc.want)
		}
	}
}

func TestAssemble_ExternalSymbols(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   0",
		"        EXTDEF  LISTA",
		"        EXTREF  LISTB",
		"        +JSUB   LISTB",
		"LISTA   WORD    LISTB-LISTA",
		"        END",
	)

	prog := unit.Program()

	if len(prog.Defines) != 1 || prog.Defines[0].Name != "LISTA" || prog.Defines[0].Address != 4 {
		t.Errorf("Defines = %+v, want LISTA at 000004", prog.Defines)
	}

	if len(prog.Refers) != 1 || prog.Refers[0] != "LISTB" {
		t.Errorf("Refers = %+v, want [LISTB]", prog.Refers)
	}

	wantMods := []obj.ModRecord{
		{Address: 1, Length: 5, Symbol: "LISTB"},
		{Address: 4, Length: 6, Symbol: "LISTB"},
		{Address: 4, Length: 6, Symbol: "PROG", Subtract: true},
	}

	if len(prog.Mods) != len(wantMods) {
		t.Fatalf("Mods = %+v, want %+v", prog.Mods, wantMods)
	}

	for i, want := range wantMods {
		if prog.Mods[i] != want {
			t.Errorf("Mods[%d] = %+v, want %+v", i, prog.Mods[i], want)
		}
	}

	// The extended JSUB assembles with a zero address field for the loader to patch.
	rec := findInstruction(t, unit, "JSUB")
	if got := hex.EncodeToString(rec.Code); got != "4b100000" {
		t.Errorf("+JSUB LISTB = %s, want 4b100000", got)
	}
}

func TestAssemble_ExternalInFormat3Fails(t *testing.T) {
	t.Parallel()

	unit, err := Assemble(testCatalog(), []string{
		"PROG    START   0",
		"        EXTREF  LISTB",
		"        LDA     LISTB",
		"        END",
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(unit.Errors) != 1 || !errors.Is(unit.Errors[0], ErrOperand) {
		t.Fatalf("Errors = %v, want one operand error for the format 3 external reference", unit.Errors)
	}
}

func TestAssemble_TextRecordSplitsAtGap(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"A1      WORD    1",
		"B1      RESW    1",
		"C1      WORD    2",
		"        END",
	)

	text := objectText(t, unit)

	if !strings.Contains(text, "T^001000^03^000001\n") || !strings.Contains(text, "T^001006^03^000002\n") {
		t.Errorf("reserved words must split text records:\n%s", text)
	}

	if !strings.Contains(text, "H^PROG^001000^000009\n") {
		t.Errorf("reserved storage must still count toward program length:\n%s", text)
	}
}

func TestAssemble_TextRecordSplitsAtThirtyBytes(t *testing.T) {
	t.Parallel()

	source := []string{"PROG    START   0"}
	for i := 0; i < 11; i++ {
		source = append(source, "        WORD    1")
	}
	source = append(source, "        END")

	unit := assemble(t, source...)

	prog := unit.Program()
	if len(prog.Text) != 2 {
		t.Fatalf("text records = %d, want 2 (33 bytes split at 30)", len(prog.Text))
	}

	if len(prog.Text[0].Data) != 30 || len(prog.Text[1].Data) != 3 {
		t.Errorf("split = %d+%d bytes, want 30+3", len(prog.Text[0].Data), len(prog.Text[1].Data))
	}

	if prog.Text[1].Address != 30 {
		t.Errorf("second record at %06X, want 00001E", prog.Text[1].Address)
	}
}

func TestAssemble_ByteDirectiveForms(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   0",
		"E1      BYTE    C'EOF'",
		"E2      BYTE    X'F1'",
		"E3      BYTE    0CAB",
		"E4      BYTE    0X0AFF",
		"        END",
	)

	want := "T^000000^08^454F46F141420AFF\n"
	if got := objectText(t, unit); !strings.Contains(got, want) {
		t.Errorf("object program:\n%swant text record:\n%s", got, want)
	}
}

func TestAssemble_SymbolRedefinition(t *testing.T) {
	t.Parallel()

	unit, err := Assemble(testCatalog(), []string{
		"PROG    START   0",
		"DUP     WORD    1",
		"DUP     WORD    2",
		"        END",
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(unit.Errors) != 1 || !errors.Is(unit.Errors[0], ErrRedefined) {
		t.Fatalf("Errors = %v, want one redefinition error", unit.Errors)
	}
}

func TestAssemble_MissingStart(t *testing.T) {
	t.Parallel()

	_, err := Assemble(testCatalog(), []string{
		"        LDA     #1",
		"        END",
	})

	if err == nil {
		t.Fatal("expected an error for source with no START")
	}
}

func TestAssemble_EndOperandSetsEntry(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"        LDA     #1",
		"MAIN    RSUB",
		"        END     MAIN",
	)

	if unit.ExecAddress != 0x1003 {
		t.Errorf("ExecAddress = %04X, want 1003", unit.ExecAddress)
	}

	if got := objectText(t, unit); !strings.Contains(got, "E^001003\n") {
		t.Errorf("object program must end at MAIN:\n%s", got)
	}
}

func TestWriteListing(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"FIRST   LDA     FIVE",
		"FIVE    WORD    5",
		"        END     FIRST",
	)

	var buf strings.Builder
	if err := unit.WriteListing(&buf); err != nil {
		t.Fatalf("WriteListing: %v", err)
	}

	out := buf.String()

	for _, want := range []string{
		"01000 PROG",
		"01000 FIRST",
		"032000",
		"000005",
		"SYMBOL TABLE",
		"FIVE",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestWriteIntermediate(t *testing.T) {
	t.Parallel()

	unit := assemble(t,
		"PROG    START   1000",
		"        LDA     =X'F1'",
		"        END",
	)

	var buf strings.Builder
	if err := unit.WriteIntermediate(&buf); err != nil {
		t.Fatalf("WriteIntermediate: %v", err)
	}

	out := buf.String()

	for _, want := range []string{
		"Program Length: 0004",
		"Symbol Table:",
		"Literal Table:",
		"=X'F1'",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("intermediate missing %q:\n%s", want, out)
		}
	}
}

func findInstruction(t *testing.T, unit *Assembler, op string) *IntermediateRecord {
	t.Helper()

	for _, rec := range unit.Records {
		if rec.Kind == recInstruction && strings.EqualFold(rec.Line.Op, op) {
			return rec
		}
	}

	t.Fatalf("no %s instruction assembled", op)

	return nil
}
