package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Wordcode layout
// ---------------------------------------------------------------------------

// Every instruction is one opcode byte followed by one argument byte.
const (
	InstructionWidth = 2
	MaxArg           = 0xFF
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single wordcode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP    Opcode = 0x00 // no operation
	OpPopTop Opcode = 0x01 // discard top of stack
	OpDupTop Opcode = 0x02 // duplicate top of stack
	OpRotTwo Opcode = 0x03 // swap the two topmost items
)

// Constants
const (
	OpLoadConst Opcode = 0x10 // push constant (const index)
)

// Variable Operations
const (
	OpLoadFast    Opcode = 0x20 // push local (varname index)
	OpStoreFast   Opcode = 0x21 // pop into local (varname index)
	OpLoadGlobal  Opcode = 0x22 // push global or builtin (name index)
	OpStoreGlobal Opcode = 0x23 // pop into global (name index)
	OpLoadAttr    Opcode = 0x24 // replace TOS with TOS.name (name index)
	OpLoadMethod  Opcode = 0x25 // replace TOS with bound method TOS.name (name index)
)

// Calls
const (
	OpCallFunction Opcode = 0x30 // call callable below argc arguments
	OpCallMethod   Opcode = 0x31 // call bound method below argc arguments
)

// Arithmetic and comparison
const (
	OpBinaryAdd         Opcode = 0x40 // TOS1 + TOS
	OpBinarySubtract    Opcode = 0x41 // TOS1 - TOS
	OpBinaryMultiply    Opcode = 0x42 // TOS1 * TOS
	OpBinaryFloorDivide Opcode = 0x43 // TOS1 // TOS
	OpBinaryModulo      Opcode = 0x44 // TOS1 % TOS
	OpBinarySubscr      Opcode = 0x45 // TOS1[TOS]
	OpUnaryNot          Opcode = 0x46 // not TOS
	OpCompareOp         Opcode = 0x47 // TOS1 <cmp> TOS (CompareKind)
)

// Control Flow
const (
	OpJumpForward    Opcode = 0x60 // relative jump, measured from the next instruction
	OpJumpAbsolute   Opcode = 0x61 // jump to byte offset
	OpPopJumpIfFalse Opcode = 0x62 // pop, jump to byte offset if falsy
	OpPopJumpIfTrue  Opcode = 0x63 // pop, jump to byte offset if truthy
)

// Returns
const (
	OpReturnValue Opcode = 0x70 // return TOS
)

// Object Creation
const (
	OpBuildList Opcode = 0x80 // build list from the top count items
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// ArgKind describes how an instruction's argument byte is interpreted.
type ArgKind uint8

const (
	ArgNone     ArgKind = iota // argument ignored, encoded as 0
	ArgConst                   // index into Code.Consts
	ArgLocal                   // index into Code.VarNames
	ArgName                    // index into Code.Names
	ArgCount                   // item or argument count
	ArgCompare                 // CompareKind
	ArgRelative                // byte delta from the next instruction
	ArgAbsolute                // absolute byte offset
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string  // human-readable name
	Arg         ArgKind // argument interpretation
	StackEffect int     // net effect on stack (-99 = depends on argument)
}

const variableEffect = -99

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	// Stack operations
	OpNOP:    {"NOP", ArgNone, 0},
	OpPopTop: {"POP_TOP", ArgNone, -1},
	OpDupTop: {"DUP_TOP", ArgNone, 1},
	OpRotTwo: {"ROT_TWO", ArgNone, 0},

	// Constants
	OpLoadConst: {"LOAD_CONST", ArgConst, 1},

	// Variables
	OpLoadFast:    {"LOAD_FAST", ArgLocal, 1},
	OpStoreFast:   {"STORE_FAST", ArgLocal, -1},
	OpLoadGlobal:  {"LOAD_GLOBAL", ArgName, 1},
	OpStoreGlobal: {"STORE_GLOBAL", ArgName, -1},
	OpLoadAttr:    {"LOAD_ATTR", ArgName, 0},
	OpLoadMethod:  {"LOAD_METHOD", ArgName, 0},

	// Calls
	OpCallFunction: {"CALL_FUNCTION", ArgCount, variableEffect},
	OpCallMethod:   {"CALL_METHOD", ArgCount, variableEffect},

	// Arithmetic and comparison
	OpBinaryAdd:         {"BINARY_ADD", ArgNone, -1},
	OpBinarySubtract:    {"BINARY_SUBTRACT", ArgNone, -1},
	OpBinaryMultiply:    {"BINARY_MULTIPLY", ArgNone, -1},
	OpBinaryFloorDivide: {"BINARY_FLOOR_DIVIDE", ArgNone, -1},
	OpBinaryModulo:      {"BINARY_MODULO", ArgNone, -1},
	OpBinarySubscr:      {"BINARY_SUBSCR", ArgNone, -1},
	OpUnaryNot:          {"UNARY_NOT", ArgNone, 0},
	OpCompareOp:         {"COMPARE_OP", ArgCompare, -1},

	// Control flow
	OpJumpForward:    {"JUMP_FORWARD", ArgRelative, 0},
	OpJumpAbsolute:   {"JUMP_ABSOLUTE", ArgAbsolute, 0},
	OpPopJumpIfFalse: {"POP_JUMP_IF_FALSE", ArgAbsolute, -1},
	OpPopJumpIfTrue:  {"POP_JUMP_IF_TRUE", ArgAbsolute, -1},

	// Returns
	OpReturnValue: {"RETURN_VALUE", ArgNone, -1},

	// Object creation
	OpBuildList: {"BUILD_LIST", ArgCount, variableEffect},
}

var opcodesByName map[string]Opcode

func init() {
	opcodesByName = make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		opcodesByName[info.Name] = op
	}
}

// LookupOpcode returns the opcode with the given name (case-insensitive).
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[strings.ToUpper(name)]
	return op, ok
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), Arg: ArgNone}
}

// Known reports whether op is part of the instruction set.
func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// HasArg reports whether the argument byte is meaningful.
func (op Opcode) HasArg() bool {
	return op.Info().Arg != ArgNone
}

// IsJump reports whether the opcode transfers control to a byte offset.
func (op Opcode) IsJump() bool {
	k := op.Info().Arg
	return k == ArgRelative || k == ArgAbsolute
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// StackEffect returns the net change in stack depth caused by executing op
// with the given argument.
func StackEffect(op Opcode, arg int) int {
	effect := op.Info().StackEffect
	if effect != variableEffect {
		return effect
	}
	switch op {
	case OpCallFunction, OpCallMethod:
		return -arg // callee and arguments replaced by the result
	case OpBuildList:
		return 1 - arg
	}
	return 0
}

// ---------------------------------------------------------------------------
// Comparison kinds
// ---------------------------------------------------------------------------

// CompareKind is the argument of COMPARE_OP.
type CompareKind byte

const (
	CmpLT CompareKind = iota
	CmpLE
	CmpEQ
	CmpNE
	CmpGT
	CmpGE
)

var compareSymbols = [...]string{"<", "<=", "==", "!=", ">", ">="}

// String returns the operator symbol.
func (k CompareKind) String() string {
	if int(k) < len(compareSymbols) {
		return compareSymbols[k]
	}
	return fmt.Sprintf("CMP_%d", byte(k))
}

// LookupCompare returns the CompareKind for an operator symbol.
func LookupCompare(sym string) (CompareKind, bool) {
	for i, s := range compareSymbols {
		if s == sym {
			return CompareKind(i), true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing wordcode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct wordcode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length in bytes.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an instruction whose argument is unused.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op), 0)
}

// EmitArg appends an instruction with an argument byte.
func (b *BytecodeBuilder) EmitArg(op Opcode, arg byte) {
	b.bytes = append(b.bytes, byte(op), arg)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a jump target that may be referenced before it is marked.
type Label struct {
	resolved bool
	position int // target offset once resolved
	refs     []labelRef
}

type labelRef struct {
	site int // offset of the jump instruction
	op   Opcode
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]labelRef, 0, 2)}
}

// Mark resolves a label to the current position and patches earlier jumps.
func (b *BytecodeBuilder) Mark(label *Label) error {
	if label.resolved {
		return fmt.Errorf("label already resolved at %d", label.position)
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		arg, err := jumpArg(ref.op, ref.site, label.position)
		if err != nil {
			return err
		}
		b.bytes[ref.site+1] = arg
	}
	label.refs = nil
	return nil
}

// EmitJump emits a jump instruction to a label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) error {
	if !op.IsJump() {
		return fmt.Errorf("%s is not a jump", op)
	}
	site := len(b.bytes)
	if label.resolved {
		arg, err := jumpArg(op, site, label.position)
		if err != nil {
			return err
		}
		b.EmitArg(op, arg)
		return nil
	}
	label.refs = append(label.refs, labelRef{site: site, op: op})
	b.EmitArg(op, 0) // placeholder
	return nil
}

// jumpArg encodes the argument that makes the jump at site land on target.
func jumpArg(op Opcode, site, target int) (byte, error) {
	var v int
	if op.Info().Arg == ArgRelative {
		v = target - (site + InstructionWidth)
	} else {
		v = target
	}
	if v < 0 || v > MaxArg {
		return 0, fmt.Errorf("%s at %d: target %d out of range", op, site, target)
	}
	return byte(v), nil
}

// JumpTarget returns the byte offset a jump instruction at offset transfers
// control to.
func JumpTarget(op Opcode, offset, arg int) int {
	if op.Info().Arg == ArgRelative {
		return offset + InstructionWidth + arg
	}
	return arg
}

// ---------------------------------------------------------------------------
// Bytecode reader
// ---------------------------------------------------------------------------

// BytecodeReader reads wordcode one instruction at a time.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc, pos: 0}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if a whole instruction remains.
func (r *BytecodeReader) HasMore() bool {
	return r.pos+InstructionWidth <= len(r.bytes)
}

// Next reads one instruction and advances the reader.
func (r *BytecodeReader) Next() (Opcode, byte) {
	if !r.HasMore() {
		panic("bytecode underflow")
	}
	op, arg := Opcode(r.bytes[r.pos]), r.bytes[r.pos+1]
	r.pos += InstructionWidth
	return op, arg
}

// Seek sets the read position.
func (r *BytecodeReader) Seek(pos int) {
	r.pos = pos
}
