package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Limits applied by NewInterpreter.
const (
	DefaultMaxSteps = 1_000_000
	MaxCallDepth    = 256

	// ctxCheckInterval is how many instructions run between context checks.
	ctxCheckInterval = 1024
)

// Errors reported (wrapped in a RuntimeError) by the interpreter.
var (
	ErrNameNotDefined = errors.New("name is not defined")
	ErrUnboundLocal   = errors.New("local variable referenced before assignment")
	ErrType           = errors.New("type error")
	ErrIndex          = errors.New("index out of range")
	ErrZeroDivision   = errors.New("division by zero")
	ErrAttribute      = errors.New("no such attribute")
	ErrStepLimit      = errors.New("step limit exceeded")
	ErrRecursion      = errors.New("maximum call depth exceeded")
	ErrStack          = errors.New("stack underflow")
)

// RuntimeError locates an execution failure.
type RuntimeError struct {
	Function string
	Offset   int
	Op       Opcode
	Err      error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s at offset %d (%s): %v", e.Function, e.Offset, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// Interpreter: wordcode execution engine
// ---------------------------------------------------------------------------

// Interpreter executes functions. An Interpreter is not safe for concurrent
// use; create one per goroutine.
type Interpreter struct {
	Stdout   io.Writer
	Builtins map[string]Value
	MaxSteps int

	steps int
	depth int
	ctx   context.Context
}

// NewInterpreter creates an interpreter with the default builtins writing
// to os.Stdout.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Stdout:   os.Stdout,
		Builtins: DefaultBuiltins(),
		MaxSteps: DefaultMaxSteps,
	}
}

// Call runs fn with the given arguments and returns its result. The step
// budget is reset for every top-level call.
func (i *Interpreter) Call(fn *Function, args ...Value) (Value, error) {
	return i.CallContext(context.Background(), fn, args...)
}

// CallContext is like Call but stops with ctx's error once ctx is done.
// The context is checked every ctxCheckInterval instructions.
func (i *Interpreter) CallContext(ctx context.Context, fn *Function, args ...Value) (Value, error) {
	i.steps = 0
	i.ctx = ctx
	defer func() { i.ctx = nil }()
	return i.call(fn, args)
}

// CallValue invokes any callable value.
func (i *Interpreter) CallValue(callee Value, args ...Value) (Value, error) {
	switch c := callee.(type) {
	case *Function:
		return i.call(c, args)
	case *Builtin:
		return c.Fn(i, args)
	case *BoundMethod:
		return callMethod(c, args)
	default:
		return nil, fmt.Errorf("%w: '%s' object is not callable", ErrType, TypeName(callee))
	}
}

type frame struct {
	fn     *Function
	code   *Code
	locals []Value
	bound  []bool
	stack  []Value
	ip     int
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() (Value, error) {
	n := len(f.stack)
	if n == 0 {
		return nil, ErrStack
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v, nil
}

func (f *frame) popN(n int) ([]Value, error) {
	if n > len(f.stack) {
		return nil, ErrStack
	}
	vals := make([]Value, n)
	copy(vals, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return vals, nil
}

func (i *Interpreter) call(fn *Function, args []Value) (Value, error) {
	code := fn.Code
	if len(args) != code.ArgCount {
		return nil, fmt.Errorf("%w: %s() takes %d arguments but %d were given",
			ErrType, code.DisplayName(), code.ArgCount, len(args))
	}
	if i.depth >= MaxCallDepth {
		return nil, ErrRecursion
	}
	i.depth++
	defer func() { i.depth-- }()

	nlocals := max(code.NumLocals, len(code.VarNames), len(args))
	f := &frame{
		fn:     fn,
		code:   code,
		locals: make([]Value, nlocals),
		bound:  make([]bool, nlocals),
		stack:  make([]Value, 0, max(code.StackSize, 4)),
	}
	for n, a := range args {
		f.locals[n] = a
		f.bound[n] = true
	}
	return i.run(f)
}

func (i *Interpreter) run(f *frame) (Value, error) {
	bc := f.code.Bytecode
	for {
		if f.ip+InstructionWidth > len(bc) {
			return nil, nil // implicit return None
		}
		offset := f.ip
		op, arg := Opcode(bc[offset]), int(bc[offset+1])
		f.ip += InstructionWidth

		i.steps++
		if i.MaxSteps > 0 && i.steps > i.MaxSteps {
			return nil, i.fail(f, offset, op, ErrStepLimit)
		}
		if i.ctx != nil && i.steps%ctxCheckInterval == 0 {
			if err := i.ctx.Err(); err != nil {
				return nil, i.fail(f, offset, op, err)
			}
		}

		result, done, err := i.step(f, offset, op, arg)
		if err != nil {
			var rerr *RuntimeError
			if errors.As(err, &rerr) {
				return nil, err
			}
			return nil, i.fail(f, offset, op, err)
		}
		if done {
			return result, nil
		}
	}
}

func (i *Interpreter) fail(f *frame, offset int, op Opcode, err error) error {
	return &RuntimeError{Function: f.code.DisplayName(), Offset: offset, Op: op, Err: err}
}

// step executes a single instruction. done is true when the frame returned.
func (i *Interpreter) step(f *frame, offset int, op Opcode, arg int) (result Value, done bool, err error) {
	code := f.code

	switch op {
	// --- Stack operations ---
	case OpNOP:
		// Do nothing

	case OpPopTop:
		_, err = f.pop()

	case OpDupTop:
		if len(f.stack) == 0 {
			return nil, false, ErrStack
		}
		f.push(f.stack[len(f.stack)-1])

	case OpRotTwo:
		n := len(f.stack)
		if n < 2 {
			return nil, false, ErrStack
		}
		f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]

	// --- Constants ---
	case OpLoadConst:
		if arg >= len(code.Consts) {
			return nil, false, fmt.Errorf("%w: const %d", ErrIndex, arg)
		}
		f.push(code.Consts[arg].Value())

	// --- Variables ---
	case OpLoadFast:
		if arg >= len(f.locals) {
			return nil, false, fmt.Errorf("%w: local %d", ErrIndex, arg)
		}
		if !f.bound[arg] {
			return nil, false, fmt.Errorf("%w: %q", ErrUnboundLocal, localName(code, arg))
		}
		f.push(f.locals[arg])

	case OpStoreFast:
		if arg >= len(f.locals) {
			return nil, false, fmt.Errorf("%w: local %d", ErrIndex, arg)
		}
		v, perr := f.pop()
		if perr != nil {
			return nil, false, perr
		}
		f.locals[arg] = v
		f.bound[arg] = true

	case OpLoadGlobal:
		name, nerr := nameArg(code, arg)
		if nerr != nil {
			return nil, false, nerr
		}
		if v, ok := f.fn.Globals[name]; ok {
			f.push(v)
		} else if v, ok := i.Builtins[name]; ok {
			f.push(v)
		} else {
			return nil, false, fmt.Errorf("%w: %q", ErrNameNotDefined, name)
		}

	case OpStoreGlobal:
		name, nerr := nameArg(code, arg)
		if nerr != nil {
			return nil, false, nerr
		}
		v, perr := f.pop()
		if perr != nil {
			return nil, false, perr
		}
		f.fn.Globals[name] = v

	case OpLoadAttr, OpLoadMethod:
		name, nerr := nameArg(code, arg)
		if nerr != nil {
			return nil, false, nerr
		}
		recv, perr := f.pop()
		if perr != nil {
			return nil, false, perr
		}
		if !hasMethod(recv, name) {
			return nil, false, fmt.Errorf("%w: '%s' object has no attribute %q", ErrAttribute, TypeName(recv), name)
		}
		f.push(&BoundMethod{Receiver: recv, Name: name})

	// --- Calls ---
	case OpCallFunction, OpCallMethod:
		args, perr := f.popN(arg)
		if perr != nil {
			return nil, false, perr
		}
		callee, perr := f.pop()
		if perr != nil {
			return nil, false, perr
		}
		v, cerr := i.CallValue(callee, args...)
		if cerr != nil {
			return nil, false, cerr
		}
		f.push(v)

	// --- Arithmetic and comparison ---
	case OpBinaryAdd, OpBinarySubtract, OpBinaryMultiply, OpBinaryFloorDivide,
		OpBinaryModulo, OpBinarySubscr, OpCompareOp:
		operands, perr := f.popN(2)
		if perr != nil {
			return nil, false, perr
		}
		var v Value
		if op == OpCompareOp {
			v, err = compare(CompareKind(arg), operands[0], operands[1])
		} else {
			v, err = binary(op, operands[0], operands[1])
		}
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case OpUnaryNot:
		v, perr := f.pop()
		if perr != nil {
			return nil, false, perr
		}
		f.push(!Truthy(v))

	// --- Control flow ---
	case OpJumpForward:
		f.ip += arg

	case OpJumpAbsolute:
		f.ip = arg

	case OpPopJumpIfFalse, OpPopJumpIfTrue:
		v, perr := f.pop()
		if perr != nil {
			return nil, false, perr
		}
		if Truthy(v) == (op == OpPopJumpIfTrue) {
			f.ip = arg
		}

	// --- Returns ---
	case OpReturnValue:
		v, perr := f.pop()
		if perr != nil {
			return nil, false, perr
		}
		return v, true, nil

	// --- Object creation ---
	case OpBuildList:
		items, perr := f.popN(arg)
		if perr != nil {
			return nil, false, perr
		}
		f.push(NewList(items...))

	default:
		return nil, false, fmt.Errorf("unknown opcode 0x%02X", byte(op))
	}

	return nil, false, err
}

func nameArg(c *Code, arg int) (string, error) {
	if arg >= len(c.Names) {
		return "", fmt.Errorf("%w: name %d", ErrIndex, arg)
	}
	return c.Names[arg], nil
}

func localName(c *Code, arg int) string {
	if arg < len(c.VarNames) {
		return c.VarNames[arg]
	}
	return fmt.Sprintf("#%d", arg)
}
