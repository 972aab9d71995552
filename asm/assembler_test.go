package asm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/leap/vm"
)

const skipSrc = `
; forward skip over an append
func skip()
    BUILD_LIST 0
    STORE_FAST lst
    goto .end
    LOAD_FAST lst
    LOAD_METHOD append
    LOAD_CONST 1
    CALL_METHOD 1
    POP_TOP
    label .end
    LOAD_FAST lst
    RETURN_VALUE
end
`

// ---------------------------------------------------------------------------
// Lexer tests
// ---------------------------------------------------------------------------

func TestLexerTokens(t *testing.T) {
	src := "LOAD_CONST -7 # comment\n@top: COMPARE_OP <= \"a\\\"b\" label .x"
	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenIdentifier, "LOAD_CONST"},
		{TokenInteger, "-7"},
		{TokenNewline, "\n"},
		{TokenLabel, "top"},
		{TokenColon, ":"},
		{TokenIdentifier, "COMPARE_OP"},
		{TokenOperator, "<="},
		{TokenString, `a"b`},
		{TokenIdentifier, "label"},
		{TokenDot, "."},
		{TokenIdentifier, "x"},
		{TokenEOF, ""},
	}

	toks := NewLexer(src).Tokens()
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(toks), toks, len(want))
	}
	for i, w := range want {
		if toks[i].Type != w.typ || toks[i].Literal != w.lit {
			t.Errorf("token %d = %s, want %s(%q)", i, toks[i], w.typ, w.lit)
		}
	}
	if toks[3].Pos.Line != 2 || toks[3].Pos.Column != 1 {
		t.Errorf("label position = %s, want 2:1", toks[3].Pos)
	}
}

func TestLexerErrors(t *testing.T) {
	for _, src := range []string{`"open`, "@ x", "$", "!x"} {
		tok := NewLexer(src).NextToken()
		if tok.Type != TokenError {
			t.Errorf("NextToken(%q) = %s, want ERROR", src, tok)
		}
	}
}

// ---------------------------------------------------------------------------
// Assembler tests
// ---------------------------------------------------------------------------

func TestAssembleAttributeStatement(t *testing.T) {
	c, err := AssembleFunction(skipSrc, "skip")
	if err != nil {
		t.Fatal(err)
	}
	instrs := vm.MustDecode(c)

	// goto .end occupies instructions 2..4
	want := []struct {
		op   vm.Opcode
		name string
	}{
		{vm.OpLoadGlobal, "goto"},
		{vm.OpLoadAttr, "end"},
		{vm.OpPopTop, ""},
	}
	for i, w := range want {
		in := instrs[2+i]
		if in.Opcode != w.op {
			t.Errorf("instrs[%d] = %s, want %s", 2+i, in.Opcode, w.op)
		}
		if name, _ := in.NameArg(); name != w.name {
			t.Errorf("instrs[%d] name = %q, want %q", 2+i, name, w.name)
		}
	}
	if c.InstructionCount() != 15 {
		t.Errorf("InstructionCount() = %d, want 15", c.InstructionCount())
	}
	if err := vm.Verify(c); err != nil {
		t.Error(err)
	}
}

func TestAssembleTables(t *testing.T) {
	src := `
func Outer.inner(a, b)
    LOAD_FAST b
    LOAD_CONST "x"
    LOAD_CONST "x"
    LOAD_CONST True
    LOAD_CONST None
    STORE_FAST tmp
    LOAD_GLOBAL print
    LOAD_GLOBAL print
end
`
	c, err := AssembleFunction(src, "inner")
	if err != nil {
		t.Fatal(err)
	}
	if c.QualName != "Outer.inner" || c.Name != "inner" {
		t.Errorf("names = %q / %q", c.QualName, c.Name)
	}
	if c.ArgCount != 2 || c.NumLocals != 3 {
		t.Errorf("ArgCount = %d, NumLocals = %d", c.ArgCount, c.NumLocals)
	}
	if strings.Join(c.VarNames, ",") != "a,b,tmp" {
		t.Errorf("VarNames = %v", c.VarNames)
	}
	if len(c.Consts) != 3 {
		t.Errorf("Consts = %v, want deduplicated", c.Consts)
	}
	if len(c.Names) != 1 {
		t.Errorf("Names = %v, want deduplicated", c.Names)
	}
	if c.FirstLine != 2 {
		t.Errorf("FirstLine = %d, want 2", c.FirstLine)
	}
	if c.StackSize != 6 {
		t.Errorf("StackSize = %d, want 6", c.StackSize)
	}
}

func TestAssembleJumps(t *testing.T) {
	src := `
func count(n)
@top:
    LOAD_FAST n
    POP_JUMP_IF_FALSE @done
    LOAD_FAST n
    LOAD_CONST 1
    BINARY_SUBTRACT
    STORE_FAST n
    JUMP_ABSOLUTE @top
@done:
    JUMP_FORWARD @out
    NOP
@out:
    LOAD_FAST n
    RETURN_VALUE
end
`
	c, err := AssembleFunction(src, "count")
	if err != nil {
		t.Fatal(err)
	}
	bc := c.Bytecode
	if bc[3] != 14 {
		t.Errorf("POP_JUMP_IF_FALSE arg = %d, want 14", bc[3])
	}
	if bc[13] != 0 {
		t.Errorf("JUMP_ABSOLUTE arg = %d, want 0", bc[13])
	}
	if bc[15] != 2 {
		t.Errorf("JUMP_FORWARD arg = %d, want 2", bc[15])
	}

	result, err := vm.NewInterpreter().Call(vm.NewFunction(c, nil), int64(5))
	if err != nil {
		t.Fatal(err)
	}
	if result != int64(0) {
		t.Errorf("count(5) = %v, want 0", result)
	}
}

func TestAssembleMultipleFunctions(t *testing.T) {
	codes, err := Assemble(skipSrc + `
func other()
    LOAD_CONST 2
    RETURN_VALUE
end
`)
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 2 {
		t.Fatalf("got %d functions, want 2", len(codes))
	}
	if Find(codes, "other") != codes[1] {
		t.Error("Find(other) failed")
	}
	if Find(codes, "missing") != nil {
		t.Error("Find(missing) should be nil")
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown opcode", "func f()\n    FROB 1\nend\n", "2:5: unknown opcode FROB"},
		{"missing operand", "func f()\n    LOAD_CONST\nend\n", "LOAD_CONST requires an operand"},
		{"extra operand", "func f()\n    NOP 1\nend\n", "expected end of line"},
		{"bad compare", "func f()\n    COMPARE_OP 3\nend\n", "expected comparison operator"},
		{"undefined target", "func f()\n    JUMP_ABSOLUTE @nowhere\nend\n", "undefined jump target @nowhere"},
		{"duplicate target", "func f()\n@a:\n@a:\nend\n", "jump target @a defined twice"},
		{"backward relative", "func f()\n@a:\n    JUMP_FORWARD @a\nend\n", "out of range"},
		{"missing end", "func f()\n    NOP\n", "missing 'end'"},
		{"duplicate function", "func f()\nend\nfunc f()\nend\n", "function f defined twice"},
		{"duplicate parameter", "func f(a, a)\nend\n", "duplicate parameter a"},
		{"stray line", "NOP\n", "expected 'func'"},
		{"count range", "func f()\n    BUILD_LIST 300\nend\n", "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			var list ErrorList
			if !errors.As(err, &list) {
				t.Fatalf("err = %T, want ErrorList", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestAssembleCollectsAllErrors(t *testing.T) {
	_, err := Assemble("func f()\n    FROB\n    BLAH\nend\n")
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("err = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(list), list)
	}
}

func TestAssembleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skip.leap")
	if err := os.WriteFile(path, []byte(skipSrc), 0644); err != nil {
		t.Fatal(err)
	}
	codes, err := AssembleFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if codes[0].Filename != path {
		t.Errorf("Filename = %q, want %q", codes[0].Filename, path)
	}
	if codes[0].LineFor(0) != 4 {
		t.Errorf("LineFor(0) = %d, want 4", codes[0].LineFor(0))
	}

	if _, err := AssembleFile(filepath.Join(t.TempDir(), "missing.leap")); err == nil {
		t.Error("AssembleFile should fail for a missing file")
	}
}
