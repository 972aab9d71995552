package leap

// markerKeyword reports whether in starts a marker and which keyword it
// loads.
func markerKeyword(in *Inst, isa ISA) (string, bool) {
	if in.Opcode != isa.NameLoad {
		return "", false
	}
	switch in.Name {
	case LabelKeyword, GotoKeyword:
		return in.Name, true
	}
	return "", false
}

// scan collects every marker in insts. The instructions are not modified.
func scan(insts []*Inst, isa ISA) (*SymbolTable, error) {
	st := NewSymbolTable()
	for i := 0; i < len(insts); i++ {
		kw, ok := markerKeyword(insts[i], isa)
		if !ok {
			continue
		}
		if i+MarkerLength > len(insts) || insts[i+1].Name == "" {
			return nil, &MalformedMarkerError{Keyword: kw, Offset: insts[i].Offset}
		}

		m := &Marker{
			Name:  insts[i+1].Name,
			Insts: [MarkerLength]*Inst{insts[i], insts[i+1], insts[i+2]},
		}
		if kw == GotoKeyword {
			m.Kind = KindGoto
			st.AddGoto(m)
		} else {
			m.Kind = KindLabel
			m.Next = nextLive(insts[i+MarkerLength:], isa)
			if err := st.AddLabel(m); err != nil {
				return nil, err
			}
		}
		i += MarkerLength - 1
	}
	return st, nil
}

// skipState tracks whether the landing search is inside a marker.
type skipState int

const (
	outside skipState = iota
	inside
)

// nextLive returns the first instruction of rest that is not part of a
// marker. Adjacent markers are skipped whole: once a marker start is seen
// its remaining instructions are counted down before any instruction can
// qualify again.
func nextLive(rest []*Inst, isa ISA) *Inst {
	state, remaining := outside, 0
	for _, in := range rest {
		switch state {
		case outside:
			if _, ok := markerKeyword(in, isa); !ok {
				return in
			}
			state, remaining = inside, MarkerLength-1
		case inside:
			remaining--
			if remaining == 0 {
				state = outside
			}
		}
	}
	return nil
}
