package leap

import "fmt"

// Kind distinguishes labels from gotos.
type Kind int

const (
	KindLabel Kind = iota
	KindGoto
)

// String implements the Stringer interface.
func (k Kind) String() string {
	if k == KindGoto {
		return GotoKeyword
	}
	return LabelKeyword
}

// Marker is a label or goto pseudo-statement. Insts point into the
// instruction list being rewritten.
type Marker struct {
	Kind  Kind
	Name  string
	Insts [MarkerLength]*Inst

	// Next is the first instruction after a label that is not part of a
	// marker. Nil for gotos and for labels at the end of the stream.
	Next *Inst
}

// Offset returns the byte offset of the marker's first instruction.
func (m *Marker) Offset() int {
	return m.Insts[0].Offset
}

// String implements the Stringer interface.
func (m *Marker) String() string {
	return fmt.Sprintf("%s .%s @%d", m.Kind, m.Name, m.Offset())
}

// SymbolTable holds the markers of one function: labels by name in
// declaration order, and gotos in stream order.
type SymbolTable struct {
	labels map[string]*Marker
	order  []string
	gotos  []*Marker
}

// NewSymbolTable returns an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{labels: make(map[string]*Marker)}
}

// AddLabel declares a label. Declaring a name twice fails.
func (s *SymbolTable) AddLabel(m *Marker) error {
	if _, dup := s.labels[m.Name]; dup {
		return &DuplicateLabelError{Name: m.Name}
	}
	s.labels[m.Name] = m
	s.order = append(s.order, m.Name)
	return nil
}

// AddGoto records a goto.
func (s *SymbolTable) AddGoto(m *Marker) {
	s.gotos = append(s.gotos, m)
}

// Label returns the label with the given name.
func (s *SymbolTable) Label(name string) (*Marker, bool) {
	m, ok := s.labels[name]
	return m, ok
}

// Labels returns the labels in declaration order.
func (s *SymbolTable) Labels() []*Marker {
	out := make([]*Marker, len(s.order))
	for i, name := range s.order {
		out[i] = s.labels[name]
	}
	return out
}

// Gotos returns the gotos in stream order.
func (s *SymbolTable) Gotos() []*Marker {
	return append([]*Marker(nil), s.gotos...)
}

// NumLabels returns the number of labels.
func (s *SymbolTable) NumLabels() int { return len(s.order) }

// NumGotos returns the number of gotos.
func (s *SymbolTable) NumGotos() int { return len(s.gotos) }

// Empty reports whether the function uses no markers.
func (s *SymbolTable) Empty() bool {
	return len(s.order) == 0 && len(s.gotos) == 0
}
