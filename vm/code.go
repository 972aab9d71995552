package vm

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// ConstKind identifies the type of a constant pool entry.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstInt
	ConstStr
	ConstBool
)

// Const is a constant pool entry. It is a plain struct so code objects can
// be serialized without type registration.
type Const struct {
	Kind ConstKind `cbor:"k"`
	Int  int64     `cbor:"i,omitempty"`
	Str  string    `cbor:"s,omitempty"`
	Bool bool      `cbor:"b,omitempty"`
}

// NoneConst returns the None constant.
func NoneConst() Const { return Const{Kind: ConstNone} }

// IntConst returns an integer constant.
func IntConst(n int64) Const { return Const{Kind: ConstInt, Int: n} }

// StrConst returns a string constant.
func StrConst(s string) Const { return Const{Kind: ConstStr, Str: s} }

// BoolConst returns a boolean constant.
func BoolConst(b bool) Const { return Const{Kind: ConstBool, Bool: b} }

// Value converts the constant to a runtime value.
func (c Const) Value() Value {
	switch c.Kind {
	case ConstInt:
		return c.Int
	case ConstStr:
		return c.Str
	case ConstBool:
		return c.Bool
	default:
		return nil
	}
}

// String returns the constant in source form.
func (c Const) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstStr:
		return strconv.Quote(c.Str)
	case ConstBool:
		if c.Bool {
			return "True"
		}
		return "False"
	default:
		return "None"
	}
}

// ---------------------------------------------------------------------------
// Code: a compiled function body
// ---------------------------------------------------------------------------

// CodeFlags records properties of a code object.
type CodeFlags uint16

const (
	// CodeFlagOptimized means locals live in fast slots.
	CodeFlagOptimized CodeFlags = 1 << 0

	// CodeFlagNewLocals means a fresh locals array is created per call.
	CodeFlagNewLocals CodeFlags = 1 << 1
)

// LineEntry maps a bytecode offset to a source line.
type LineEntry struct {
	Offset int `cbor:"o"`
	Line   int `cbor:"l"`
}

// Code is the compiled form of a single function. Apart from Bytecode every
// field is treated as read-only once the code object has been built.
type Code struct {
	// Identity
	Name      string `cbor:"name"`
	QualName  string `cbor:"qualname"`
	Filename  string `cbor:"filename,omitempty"`
	FirstLine int    `cbor:"firstline,omitempty"`

	// Signature
	ArgCount  int       `cbor:"argcount"`
	NumLocals int       `cbor:"nlocals"`
	StackSize int       `cbor:"stacksize"`
	Flags     CodeFlags `cbor:"flags"`

	// Compiled code
	Bytecode []byte   `cbor:"code"`
	Consts   []Const  `cbor:"consts"`
	Names    []string `cbor:"names"`
	VarNames []string `cbor:"varnames"`

	// Debugging and closures
	LineTable []LineEntry `cbor:"lines,omitempty"`
	FreeVars  []string    `cbor:"freevars,omitempty"`
	CellVars  []string    `cbor:"cellvars,omitempty"`
}

// WithBytecode returns a code object identical to c except for its
// bytecode. Tables are shared with c, not copied.
func (c *Code) WithBytecode(bytecode []byte) *Code {
	nc := *c
	nc.Bytecode = bytecode
	return &nc
}

// InstructionCount returns the number of wordcode instructions.
func (c *Code) InstructionCount() int {
	return len(c.Bytecode) / InstructionWidth
}

// DisplayName returns the qualified name, falling back to the simple name.
func (c *Code) DisplayName() string {
	if c.QualName != "" {
		return c.QualName
	}
	return c.Name
}

// LineFor returns the source line for a bytecode offset, or 0.
func (c *Code) LineFor(offset int) int {
	line := 0
	for _, e := range c.LineTable {
		if e.Offset > offset {
			break
		}
		line = e.Line
	}
	return line
}

// String implements the Stringer interface.
func (c *Code) String() string {
	return fmt.Sprintf("<code %s, %d instructions>", c.DisplayName(), c.InstructionCount())
}

// ---------------------------------------------------------------------------
// Function: code bound to globals
// ---------------------------------------------------------------------------

// Function is a callable pairing of a code object with its globals.
type Function struct {
	Code    *Code
	Globals map[string]Value
}

// NewFunction creates a function. A nil globals map is replaced with an
// empty one.
func NewFunction(code *Code, globals map[string]Value) *Function {
	if globals == nil {
		globals = make(map[string]Value)
	}
	return &Function{Code: code, Globals: globals}
}

// Name returns the simple function name.
func (f *Function) Name() string {
	return f.Code.Name
}

// QualName returns the qualified function name.
func (f *Function) QualName() string {
	return f.Code.DisplayName()
}

// SetCode installs a new code object.
func (f *Function) SetCode(code *Code) {
	f.Code = code
}

// String implements the Stringer interface.
func (f *Function) String() string {
	return fmt.Sprintf("<function %s>", f.QualName())
}

// Module binds code objects to one shared globals table, so functions can
// call each other by name.
type Module struct {
	Globals   map[string]Value
	Functions []*Function
}

// NewModule creates a function for every code object. Later code objects
// shadow earlier ones with the same name.
func NewModule(codes []*Code) *Module {
	m := &Module{Globals: make(map[string]Value)}
	for _, c := range codes {
		fn := NewFunction(c, m.Globals)
		m.Globals[c.Name] = fn
		m.Functions = append(m.Functions, fn)
	}
	return m
}

// Lookup returns the function bound to name.
func (m *Module) Lookup(name string) (*Function, bool) {
	fn, ok := m.Globals[name].(*Function)
	return fn, ok
}
