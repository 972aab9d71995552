package leap

import (
	"fmt"
	"strings"

	"github.com/chazu/leap/vm"
)

// Inst is one instruction of the stream being rewritten. Index and Offset
// identify the instruction and never change; Opcode, Arg and HasArg are
// rewritten in place.
type Inst struct {
	Index  int
	Opcode vm.Opcode
	Arg    int
	HasArg bool
	Offset int

	// Name is the resolved name operand of name and attribute loads.
	Name string
}

// String implements the Stringer interface.
func (in *Inst) String() string {
	arg := "None"
	if in.HasArg {
		arg = fmt.Sprint(in.Arg)
	}
	if in.Name != "" {
		arg += " (" + in.Name + ")"
	}
	return fmt.Sprintf("Inst(index=%d, opcode=%s, arg=%s, offset=%d)", in.Index, in.Opcode, arg, in.Offset)
}

// neutralize turns the instruction into a no-op.
func (in *Inst) neutralize(isa ISA) {
	in.Opcode = isa.Nop
	in.Arg = 0
	in.HasArg = false
	in.Name = ""
}

// Instructions decodes a code object into a fresh instruction list.
func Instructions(c *vm.Code) ([]*Inst, error) {
	decoded, err := vm.Decode(c)
	if err != nil {
		return nil, fmt.Errorf("leap: %w", err)
	}
	insts := make([]*Inst, len(decoded))
	for i, d := range decoded {
		in := &Inst{
			Index:  i,
			Opcode: d.Opcode,
			Arg:    d.Arg,
			HasArg: d.HasArg,
			Offset: d.Offset,
		}
		if name, ok := d.NameArg(); ok {
			in.Name = name
		}
		insts[i] = in
	}
	return insts, nil
}

// Listing renders one instruction per line.
func Listing(insts []*Inst) string {
	var sb strings.Builder
	for _, in := range insts {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
