package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a code object.
func Disassemble(c *Code) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", c.DisplayName()))
	if c.ArgCount > 0 {
		sb.WriteString(fmt.Sprintf("; Arguments (%d): %s\n", c.ArgCount,
			strings.Join(c.VarNames[:min(c.ArgCount, len(c.VarNames))], ", ")))
	}
	if len(c.VarNames) > c.ArgCount {
		sb.WriteString(fmt.Sprintf("; Locals: %s\n", strings.Join(c.VarNames[c.ArgCount:], ", ")))
	}
	if len(c.Names) > 0 {
		sb.WriteString(fmt.Sprintf("; Names: %s\n", strings.Join(c.Names, ", ")))
	}
	if len(c.Consts) > 0 {
		consts := make([]string, len(c.Consts))
		for i, k := range c.Consts {
			consts[i] = k.String()
		}
		sb.WriteString(fmt.Sprintf("; Consts: %s\n", strings.Join(consts, ", ")))
	}

	instrs, err := Decode(c)
	if err != nil {
		sb.WriteString("; " + err.Error() + "\n")
		return sb.String()
	}
	sb.WriteString(DisassembleInstructions(c, instrs))
	return sb.String()
}

// DisassembleInstructions renders already-decoded instructions, one per
// line, marking jump targets with ">>" and the first instruction of each
// source line with its line number.
func DisassembleInstructions(c *Code, instrs []Instruction) string {
	var sb strings.Builder
	lastLine := -1
	for _, in := range instrs {
		lineCol := "    "
		if line := c.LineFor(in.Offset); line > 0 && line != lastLine {
			lineCol = fmt.Sprintf("%4d", line)
			lastLine = line
		}
		marker := "  "
		if in.IsJumpTarget {
			marker = ">>"
		}
		sb.WriteString(fmt.Sprintf("%s %s %s\n", lineCol, marker, in.String()))
	}
	return sb.String()
}
