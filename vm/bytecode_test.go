package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op   Opcode
		name string
		arg  ArgKind
	}{
		{OpNOP, "NOP", ArgNone},
		{OpPopTop, "POP_TOP", ArgNone},
		{OpDupTop, "DUP_TOP", ArgNone},
		{OpRotTwo, "ROT_TWO", ArgNone},
		{OpLoadConst, "LOAD_CONST", ArgConst},
		{OpLoadFast, "LOAD_FAST", ArgLocal},
		{OpStoreFast, "STORE_FAST", ArgLocal},
		{OpLoadGlobal, "LOAD_GLOBAL", ArgName},
		{OpStoreGlobal, "STORE_GLOBAL", ArgName},
		{OpLoadAttr, "LOAD_ATTR", ArgName},
		{OpLoadMethod, "LOAD_METHOD", ArgName},
		{OpCallFunction, "CALL_FUNCTION", ArgCount},
		{OpCallMethod, "CALL_METHOD", ArgCount},
		{OpBinaryAdd, "BINARY_ADD", ArgNone},
		{OpCompareOp, "COMPARE_OP", ArgCompare},
		{OpJumpForward, "JUMP_FORWARD", ArgRelative},
		{OpJumpAbsolute, "JUMP_ABSOLUTE", ArgAbsolute},
		{OpPopJumpIfFalse, "POP_JUMP_IF_FALSE", ArgAbsolute},
		{OpPopJumpIfTrue, "POP_JUMP_IF_TRUE", ArgAbsolute},
		{OpReturnValue, "RETURN_VALUE", ArgNone},
		{OpBuildList, "BUILD_LIST", ArgCount},
	}

	for _, tt := range tests {
		info := tt.op.Info()
		if info.Name != tt.name {
			t.Errorf("%s: Name = %q, want %q", tt.op, info.Name, tt.name)
		}
		if info.Arg != tt.arg {
			t.Errorf("%s: Arg = %d, want %d", tt.op, info.Arg, tt.arg)
		}
		if got, ok := LookupOpcode(tt.name); !ok || got != tt.op {
			t.Errorf("LookupOpcode(%q) = %v, %v; want %v", tt.name, got, ok, tt.op)
		}
	}
}

func TestLookupOpcodeCaseInsensitive(t *testing.T) {
	op, ok := LookupOpcode("load_global")
	if !ok || op != OpLoadGlobal {
		t.Errorf("LookupOpcode(load_global) = %v, %v", op, ok)
	}
	if _, ok := LookupOpcode("NOT_AN_OPCODE"); ok {
		t.Error("LookupOpcode should reject unknown names")
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xFE)
	if op.Known() {
		t.Fatal("0xFE should not be a known opcode")
	}
	if !strings.HasPrefix(op.Name(), "UNKNOWN_") {
		t.Errorf("unknown opcode should have UNKNOWN_ prefix, got %q", op.Name())
	}
	if op.HasArg() {
		t.Error("unknown opcode should not take an argument")
	}
}

func TestIsJump(t *testing.T) {
	jumps := []Opcode{OpJumpForward, OpJumpAbsolute, OpPopJumpIfFalse, OpPopJumpIfTrue}
	for _, op := range jumps {
		if !op.IsJump() {
			t.Errorf("%s.IsJump() = false", op)
		}
	}
	for _, op := range []Opcode{OpNOP, OpLoadGlobal, OpReturnValue} {
		if op.IsJump() {
			t.Errorf("%s.IsJump() = true", op)
		}
	}
}

func TestCompareKind(t *testing.T) {
	for _, sym := range []string{"<", "<=", "==", "!=", ">", ">="} {
		k, ok := LookupCompare(sym)
		if !ok {
			t.Fatalf("LookupCompare(%q) failed", sym)
		}
		if k.String() != sym {
			t.Errorf("CompareKind(%d).String() = %q, want %q", k, k.String(), sym)
		}
	}
	if _, ok := LookupCompare("<>"); ok {
		t.Error("LookupCompare should reject <>")
	}
}

// ---------------------------------------------------------------------------
// BytecodeBuilder tests
// ---------------------------------------------------------------------------

func TestBytecodeBuilderEmit(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpNOP)
	b.EmitArg(OpLoadConst, 3)
	b.Emit(OpReturnValue)

	want := []byte{byte(OpNOP), 0, byte(OpLoadConst), 3, byte(OpReturnValue), 0}
	if string(b.Bytes()) != string(want) {
		t.Errorf("Bytes() = %v, want %v", b.Bytes(), want)
	}
	if b.Len() != 6 {
		t.Errorf("Len() = %d, want 6", b.Len())
	}
}

func TestBytecodeBuilderForwardLabel(t *testing.T) {
	b := NewBytecodeBuilder()
	end := b.NewLabel()
	if err := b.EmitJump(OpJumpForward, end); err != nil { // 0
		t.Fatal(err)
	}
	b.Emit(OpNOP) // 2
	b.Emit(OpNOP) // 4
	if err := b.Mark(end); err != nil {
		t.Fatal(err)
	}
	b.Emit(OpReturnValue) // 6

	bc := b.Bytes()
	if bc[1] != 4 {
		t.Errorf("relative jump arg = %d, want 4", bc[1])
	}
	if got := JumpTarget(OpJumpForward, 0, int(bc[1])); got != 6 {
		t.Errorf("JumpTarget = %d, want 6", got)
	}
}

func TestBytecodeBuilderBackwardLabel(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpNOP)
	top := b.NewLabel()
	if err := b.Mark(top); err != nil {
		t.Fatal(err)
	}
	b.Emit(OpNOP)
	if err := b.EmitJump(OpJumpAbsolute, top); err != nil {
		t.Fatal(err)
	}
	if got := b.Bytes()[5]; got != 2 {
		t.Errorf("absolute jump arg = %d, want 2", got)
	}
}

func TestBytecodeBuilderErrors(t *testing.T) {
	b := NewBytecodeBuilder()
	l := b.NewLabel()
	if err := b.Mark(l); err != nil {
		t.Fatal(err)
	}
	if err := b.Mark(l); err == nil {
		t.Error("marking a label twice should fail")
	}
	if err := b.EmitJump(OpLoadConst, l); err == nil {
		t.Error("EmitJump with a non-jump opcode should fail")
	}

	// A relative jump cannot go backwards.
	if err := b.EmitJump(OpJumpForward, l); err == nil {
		t.Error("backward JUMP_FORWARD should fail")
	}
}

func TestBytecodeBuilderOutOfRange(t *testing.T) {
	b := NewBytecodeBuilder()
	far := b.NewLabel()
	if err := b.EmitJump(OpJumpAbsolute, far); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200; i++ {
		b.Emit(OpNOP)
	}
	if err := b.Mark(far); err == nil {
		t.Error("jump target beyond MaxArg should fail")
	}
}

// ---------------------------------------------------------------------------
// BytecodeReader tests
// ---------------------------------------------------------------------------

func TestBytecodeReader(t *testing.T) {
	r := NewBytecodeReader([]byte{byte(OpLoadFast), 1, byte(OpReturnValue), 0, 0xAA})

	op, arg := r.Next()
	if op != OpLoadFast || arg != 1 {
		t.Errorf("Next() = %s %d", op, arg)
	}
	if r.Position() != 2 {
		t.Errorf("Position() = %d, want 2", r.Position())
	}
	op, _ = r.Next()
	if op != OpReturnValue {
		t.Errorf("Next() = %s, want RETURN_VALUE", op)
	}
	if r.HasMore() {
		t.Error("a trailing odd byte is not a whole instruction")
	}

	r.Seek(0)
	if !r.HasMore() {
		t.Error("HasMore() after Seek(0) = false")
	}
}
