package vm

import (
	"fmt"
	"strings"
)

// VerifyError lists every structural problem found in a code object.
type VerifyError struct {
	Code     string
	Problems []string
}

// Error implements the error interface.
func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: %s", e.Code, strings.Join(e.Problems, "; "))
}

// Verify checks that a code object is structurally valid: every opcode is
// known, every table index resolves and every jump lands on the start of an
// instruction inside the stream.
func Verify(c *Code) error {
	instrs, err := Decode(c)
	if err != nil {
		return err
	}

	var problems []string
	report := func(in Instruction, format string, args ...any) {
		problems = append(problems, fmt.Sprintf("offset %d: ", in.Offset)+fmt.Sprintf(format, args...))
	}

	end := len(c.Bytecode)
	for _, in := range instrs {
		if !in.Opcode.Known() {
			report(in, "unknown opcode 0x%02X", byte(in.Opcode))
			continue
		}
		switch in.Opcode.Info().Arg {
		case ArgConst:
			if in.Arg >= len(c.Consts) {
				report(in, "%s const index %d out of range", in.Opcode, in.Arg)
			}
		case ArgLocal:
			if in.Arg >= len(c.VarNames) {
				report(in, "%s local index %d out of range", in.Opcode, in.Arg)
			}
		case ArgName:
			if in.Arg >= len(c.Names) {
				report(in, "%s name index %d out of range", in.Opcode, in.Arg)
			}
		case ArgCompare:
			if in.Arg > int(CmpGE) {
				report(in, "unknown comparison %d", in.Arg)
			}
		case ArgRelative, ArgAbsolute:
			t := JumpTarget(in.Opcode, in.Offset, in.Arg)
			if t < 0 || t >= end {
				report(in, "%s target %d outside stream of %d bytes", in.Opcode, t, end)
			} else if t%InstructionWidth != 0 {
				report(in, "%s target %d is inside an instruction", in.Opcode, t)
			}
		}
	}

	if len(problems) > 0 {
		return &VerifyError{Code: c.DisplayName(), Problems: problems}
	}
	return nil
}
