package vm

import (
	"fmt"
	"strconv"
)

// Instruction is one decoded wordcode instruction with its argument
// resolved against the code object's tables.
type Instruction struct {
	Offset int    // byte offset in the stream
	Opcode Opcode // operation
	Arg    int    // raw argument byte, 0 when HasArg is false
	HasArg bool   // whether the opcode takes an argument

	// ArgVal is the resolved argument: a string for name and local
	// operands, a Const for constants, an int target offset for jumps, a
	// CompareKind for comparisons and an int for counts. Nil when the
	// argument does not resolve.
	ArgVal  any
	ArgRepr string

	IsJumpTarget bool
}

// Index returns the instruction's position in the stream.
func (in Instruction) Index() int {
	return in.Offset / InstructionWidth
}

// NameArg returns the resolved name for name and local operands.
func (in Instruction) NameArg() (string, bool) {
	s, ok := in.ArgVal.(string)
	if !ok {
		return "", false
	}
	switch in.Opcode.Info().Arg {
	case ArgName, ArgLocal:
		return s, true
	}
	return "", false
}

// String implements the Stringer interface.
func (in Instruction) String() string {
	if !in.HasArg {
		return fmt.Sprintf("%4d %s", in.Offset, in.Opcode.Name())
	}
	if in.ArgRepr == "" {
		return fmt.Sprintf("%4d %-20s %3d", in.Offset, in.Opcode.Name(), in.Arg)
	}
	return fmt.Sprintf("%4d %-20s %3d (%s)", in.Offset, in.Opcode.Name(), in.Arg, in.ArgRepr)
}

// Decode splits a code object's bytecode into instructions. It fails only
// when the stream is not a whole number of instructions; arguments that do
// not resolve are left with a nil ArgVal for Verify to report.
func Decode(c *Code) ([]Instruction, error) {
	if len(c.Bytecode)%InstructionWidth != 0 {
		return nil, fmt.Errorf("decode %s: bytecode length %d is not a multiple of %d",
			c.DisplayName(), len(c.Bytecode), InstructionWidth)
	}

	instrs := make([]Instruction, 0, c.InstructionCount())
	targets := make(map[int]bool)
	r := NewBytecodeReader(c.Bytecode)
	for r.HasMore() {
		offset := r.Position()
		op, raw := r.Next()
		in := Instruction{Offset: offset, Opcode: op, HasArg: op.HasArg()}
		if in.HasArg {
			in.Arg = int(raw)
			in.ArgVal, in.ArgRepr = resolveArg(c, op, offset, in.Arg)
			if t, ok := in.ArgVal.(int); ok && op.IsJump() {
				targets[t] = true
			}
		}
		instrs = append(instrs, in)
	}
	for i := range instrs {
		instrs[i].IsJumpTarget = targets[instrs[i].Offset]
	}
	return instrs, nil
}

// MustDecode is like Decode but panics on error.
func MustDecode(c *Code) []Instruction {
	instrs, err := Decode(c)
	if err != nil {
		panic(err)
	}
	return instrs
}

func resolveArg(c *Code, op Opcode, offset, arg int) (any, string) {
	switch op.Info().Arg {
	case ArgConst:
		if arg < len(c.Consts) {
			return c.Consts[arg], c.Consts[arg].String()
		}
	case ArgLocal:
		if arg < len(c.VarNames) {
			return c.VarNames[arg], c.VarNames[arg]
		}
	case ArgName:
		if arg < len(c.Names) {
			return c.Names[arg], c.Names[arg]
		}
	case ArgCount:
		return arg, ""
	case ArgCompare:
		k := CompareKind(arg)
		return k, k.String()
	case ArgRelative, ArgAbsolute:
		t := JumpTarget(op, offset, arg)
		return t, "to " + strconv.Itoa(t)
	}
	return nil, ""
}
