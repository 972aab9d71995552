package leap

// link writes every marker instruction back into insts at its index.
func link(insts []*Inst, st *SymbolTable) {
	for _, m := range st.Labels() {
		for _, in := range m.Insts {
			insts[in.Index] = in
		}
	}
	for _, m := range st.gotos {
		for _, in := range m.Insts {
			insts[in.Index] = in
		}
	}
}

// Encode serializes instructions as (opcode, argument) byte pairs. An
// instruction without an argument encodes 0.
func Encode(insts []*Inst) []byte {
	out := make([]byte, 0, 2*len(insts))
	for _, in := range insts {
		arg := 0
		if in.HasArg {
			arg = in.Arg
		}
		out = append(out, byte(in.Opcode), byte(arg))
	}
	return out
}
