package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: runtime values
// ---------------------------------------------------------------------------

// Value is a runtime value. The interpreter produces and accepts:
//
//   - nil for None
//   - int64, bool and string
//   - *List
//   - *Function and *Builtin (callables)
//   - *BoundMethod (result of LOAD_METHOD / LOAD_ATTR)
type Value any

// List is a mutable sequence.
type List struct {
	Items []Value
}

// NewList creates a list holding the given items.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

// Len returns the number of items.
func (l *List) Len() int {
	return len(l.Items)
}

// Ints returns the items as int64s, reporting false if any item is not an
// integer.
func (l *List) Ints() ([]int64, bool) {
	out := make([]int64, 0, len(l.Items))
	for _, v := range l.Items {
		n, ok := v.(int64)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// Builtin is a callable implemented in Go.
type Builtin struct {
	Name string
	Fn   func(interp *Interpreter, args []Value) (Value, error)
}

// String implements the Stringer interface.
func (b *Builtin) String() string {
	return fmt.Sprintf("<built-in function %s>", b.Name)
}

// BoundMethod is a method looked up on a receiver, ready to be called.
type BoundMethod struct {
	Receiver Value
	Name     string
}

// ---------------------------------------------------------------------------
// Value helpers
// ---------------------------------------------------------------------------

// TypeName returns the name of a value's type for error messages.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case int64:
		return "int"
	case bool:
		return "bool"
	case string:
		return "str"
	case *List:
		return "list"
	case *Function:
		return "function"
	case *Builtin:
		return "builtin_function"
	case *BoundMethod:
		return "method"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Truthy reports the truth value of v.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	default:
		return true
	}
}

// Equal reports whether two values compare equal.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case bool:
			return x == boolInt(y)
		}
		return false
	case bool:
		switch y := b.(type) {
		case bool:
			return x == y
		case int64:
			return boolInt(x) == y
		}
		return false
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Repr returns the source-like representation of v.
func Repr(v Value) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "\\'") + "'"
	case *List:
		parts := make([]string, len(x.Items))
		for i, item := range x.Items {
			parts[i] = Repr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return Str(v)
	}
}

// Str returns the printed form of v.
func Str(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case *List:
		return Repr(x)
	case *BoundMethod:
		return fmt.Sprintf("<bound method %s.%s>", TypeName(x.Receiver), x.Name)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
