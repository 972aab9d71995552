package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Builtin functions
// ---------------------------------------------------------------------------

// DefaultBuiltins returns a fresh map of the builtin functions.
func DefaultBuiltins() map[string]Value {
	return map[string]Value{
		"print": &Builtin{Name: "print", Fn: builtinPrint},
		"len":   &Builtin{Name: "len", Fn: builtinLen},
		"str":   &Builtin{Name: "str", Fn: builtinStr},
	}
}

func builtinPrint(interp *Interpreter, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	if _, err := fmt.Fprintln(interp.Stdout, strings.Join(parts, " ")); err != nil {
		return nil, err
	}
	return nil, nil
}

func builtinLen(_ *Interpreter, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: len() takes exactly one argument (%d given)", ErrType, len(args))
	}
	switch x := args[0].(type) {
	case *List:
		return int64(len(x.Items)), nil
	case string:
		return int64(len(x)), nil
	default:
		return nil, fmt.Errorf("%w: object of type '%s' has no len()", ErrType, TypeName(x))
	}
}

func builtinStr(_ *Interpreter, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: str() takes exactly one argument (%d given)", ErrType, len(args))
	}
	return Str(args[0]), nil
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

var listMethods = map[string]func(l *List, args []Value) (Value, error){
	"append": func(l *List, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: append() takes exactly one argument (%d given)", ErrType, len(args))
		}
		l.Items = append(l.Items, args[0])
		return nil, nil
	},
	"pop": func(l *List, args []Value) (Value, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: pop() takes no arguments (%d given)", ErrType, len(args))
		}
		if len(l.Items) == 0 {
			return nil, fmt.Errorf("%w: pop from empty list", ErrIndex)
		}
		v := l.Items[len(l.Items)-1]
		l.Items = l.Items[:len(l.Items)-1]
		return v, nil
	},
}

func hasMethod(recv Value, name string) bool {
	if _, ok := recv.(*List); ok {
		_, found := listMethods[name]
		return found
	}
	return false
}

func callMethod(m *BoundMethod, args []Value) (Value, error) {
	if l, ok := m.Receiver.(*List); ok {
		if fn, found := listMethods[m.Name]; found {
			return fn(l, args)
		}
	}
	return nil, fmt.Errorf("%w: '%s' object has no attribute %q", ErrAttribute, TypeName(m.Receiver), m.Name)
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func binary(op Opcode, a, b Value) (Value, error) {
	if op == OpBinarySubscr {
		return subscript(a, b)
	}

	x, xok := asInt(a)
	y, yok := asInt(b)
	if xok && yok {
		switch op {
		case OpBinaryAdd:
			return x + y, nil
		case OpBinarySubtract:
			return x - y, nil
		case OpBinaryMultiply:
			return x * y, nil
		case OpBinaryFloorDivide:
			if y == 0 {
				return nil, ErrZeroDivision
			}
			q := x / y
			if (x%y != 0) && ((x < 0) != (y < 0)) {
				q--
			}
			return q, nil
		case OpBinaryModulo:
			if y == 0 {
				return nil, ErrZeroDivision
			}
			m := x % y
			if m != 0 && ((m < 0) != (y < 0)) {
				m += y
			}
			return m, nil
		}
	}

	if op == OpBinaryAdd {
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y, nil
			}
		case *List:
			if y, ok := b.(*List); ok {
				items := make([]Value, 0, len(x.Items)+len(y.Items))
				items = append(items, x.Items...)
				return NewList(append(items, y.Items...)...), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: unsupported operand types for %s: '%s' and '%s'",
		ErrType, op, TypeName(a), TypeName(b))
}

func subscript(container, index Value) (Value, error) {
	n, ok := asInt(index)
	if !ok {
		return nil, fmt.Errorf("%w: indices must be integers, not %s", ErrType, TypeName(index))
	}
	switch c := container.(type) {
	case *List:
		i, err := normalizeIndex(n, len(c.Items))
		if err != nil {
			return nil, err
		}
		return c.Items[i], nil
	case string:
		i, err := normalizeIndex(n, len(c))
		if err != nil {
			return nil, err
		}
		return string(c[i]), nil
	default:
		return nil, fmt.Errorf("%w: '%s' object is not subscriptable", ErrType, TypeName(container))
	}
}

func normalizeIndex(n int64, length int) (int, error) {
	if n < 0 {
		n += int64(length)
	}
	if n < 0 || n >= int64(length) {
		return 0, ErrIndex
	}
	return int(n), nil
}

func compare(kind CompareKind, a, b Value) (Value, error) {
	switch kind {
	case CmpEQ:
		return Equal(a, b), nil
	case CmpNE:
		return !Equal(a, b), nil
	}

	var c int
	if x, ok := asInt(a); ok {
		y, ok := asInt(b)
		if !ok {
			return nil, orderError(kind, a, b)
		}
		c = cmpInt(x, y)
	} else if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return nil, orderError(kind, a, b)
		}
		c = strings.Compare(x, y)
	} else {
		return nil, orderError(kind, a, b)
	}

	switch kind {
	case CmpLT:
		return c < 0, nil
	case CmpLE:
		return c <= 0, nil
	case CmpGT:
		return c > 0, nil
	case CmpGE:
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison %d", byte(kind))
}

func orderError(kind CompareKind, a, b Value) error {
	return fmt.Errorf("%w: '%s' not supported between '%s' and '%s'", ErrType, kind, TypeName(a), TypeName(b))
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func asInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case bool:
		return boolInt(x), true
	}
	return 0, false
}
