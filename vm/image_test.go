package vm

import (
	"bytes"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// Code serialization tests
// ---------------------------------------------------------------------------

func TestMarshalCodeRoundTrip(t *testing.T) {
	c := countdownCode(t)
	data, err := MarshalCode(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalCode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Bytecode, c.Bytecode) {
		t.Error("bytecode changed in round trip")
	}
	if got.QualName != c.QualName || got.ArgCount != c.ArgCount {
		t.Errorf("identity changed: %s/%d", got.QualName, got.ArgCount)
	}
	if len(got.Consts) != 3 || got.Consts[2] != IntConst(1) {
		t.Errorf("consts = %v", got.Consts)
	}
	if got.LineFor(10) != 4 {
		t.Errorf("line table lost: LineFor(10) = %d", got.LineFor(10))
	}
}

func TestMarshalCodeDeterministic(t *testing.T) {
	a, err := MarshalCode(countdownCode(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalCode(countdownCode(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal code objects should encode to equal bytes")
	}
}

// ---------------------------------------------------------------------------
// Image tests
// ---------------------------------------------------------------------------

func TestImageFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.leapc")
	c := countdownCode(t)
	if err := WriteImage(path, []*Code{c, c.WithBytecode([]byte{byte(OpNOP), 0})}); err != nil {
		t.Fatal(err)
	}
	codes, err := ReadImage(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 2 {
		t.Fatalf("got %d codes, want 2", len(codes))
	}
	if codes[1].InstructionCount() != 1 {
		t.Errorf("second code has %d instructions, want 1", codes[1].InstructionCount())
	}
}

func TestDecodeImageErrors(t *testing.T) {
	if _, err := DecodeImage([]byte("nope")); err == nil {
		t.Error("DecodeImage should reject bad magic")
	}
	if _, err := DecodeImage(append(append([]byte{}, ImageMagic...), 0xFF)); err == nil {
		t.Error("DecodeImage should reject a corrupt body")
	}
	if IsImage([]byte("func f()")) {
		t.Error("assembly source is not an image")
	}
}
