package leap

import "github.com/chazu/leap/vm"

// jump is a resolved goto, ready to be applied.
type jump struct {
	marker *Marker
	op     vm.Opcode
	arg    int
}

// resolve computes the jump for every goto in stream order. It fails
// without touching any instruction.
func resolve(st *SymbolTable, isa ISA) ([]jump, error) {
	jumps := make([]jump, 0, st.NumGotos())
	for _, g := range st.gotos {
		label, ok := st.Label(g.Name)
		if !ok {
			return nil, &LabelNotFoundError{Name: g.Name}
		}
		if label.Next == nil {
			return nil, &NoLandingError{Name: g.Name}
		}

		j := jump{marker: g}
		if label.Offset() > g.Offset() {
			j.op = isa.JumpForward
			j.arg = label.Next.Offset - g.Offset() - isa.Width
		} else {
			j.op = isa.JumpAbsolute
			j.arg = label.Next.Offset
		}
		if j.arg < 0 || j.arg > isa.MaxArg {
			return nil, &DisplacementError{Name: g.Name, Value: j.arg, Max: isa.MaxArg}
		}
		jumps = append(jumps, j)
	}
	return jumps, nil
}

// rewrite applies resolved jumps and neutralizes every label. It cannot
// fail.
func rewrite(st *SymbolTable, jumps []jump, isa ISA) {
	for _, j := range jumps {
		first := j.marker.Insts[0]
		j.marker.Insts[0] = &Inst{
			Index:  first.Index,
			Opcode: j.op,
			Arg:    j.arg,
			HasArg: true,
			Offset: first.Offset,
		}
		for _, in := range j.marker.Insts[1:] {
			in.neutralize(isa)
		}
	}
	for _, l := range st.Labels() {
		for _, in := range l.Insts {
			in.neutralize(isa)
		}
	}
}
