package asm

import (
	"fmt"
	"sort"

	"github.com/chazu/leap/vm"
)

// jumpTarget is a named position in a function body.
type jumpTarget struct {
	label   *vm.Label
	defined bool
	firstAt Position // first reference or definition
}

// funcBuilder accumulates one function's bytecode and tables.
type funcBuilder struct {
	code *vm.Code
	bc   *vm.BytecodeBuilder

	locals  map[string]int
	names   map[string]int
	consts  map[vm.Const]int
	targets map[string]*jumpTarget

	lastLine int
	depth    int
	errs     []*Error
}

func newFuncBuilder(qualName, name, filename string, line int) *funcBuilder {
	return &funcBuilder{
		code: &vm.Code{
			Name:      name,
			QualName:  qualName,
			Filename:  filename,
			FirstLine: line,
			Flags:     vm.CodeFlagOptimized | vm.CodeFlagNewLocals,
		},
		bc:      vm.NewBytecodeBuilder(),
		locals:  make(map[string]int),
		names:   make(map[string]int),
		consts:  make(map[vm.Const]int),
		targets: make(map[string]*jumpTarget),
	}
}

// local returns the slot for a local variable, allocating one on first use.
func (fb *funcBuilder) local(name string) int {
	if idx, ok := fb.locals[name]; ok {
		return idx
	}
	idx := len(fb.code.VarNames)
	fb.locals[name] = idx
	fb.code.VarNames = append(fb.code.VarNames, name)
	return idx
}

// name returns the index of name in the names table.
func (fb *funcBuilder) name(name string, pos Position) (int, *Error) {
	if idx, ok := fb.names[name]; ok {
		return idx, nil
	}
	idx := len(fb.code.Names)
	if idx > vm.MaxArg {
		return 0, &Error{Pos: pos, Msg: "too many names"}
	}
	fb.names[name] = idx
	fb.code.Names = append(fb.code.Names, name)
	return idx, nil
}

// constant returns the index of c in the constant pool.
func (fb *funcBuilder) constant(c vm.Const, pos Position) (int, *Error) {
	if idx, ok := fb.consts[c]; ok {
		return idx, nil
	}
	idx := len(fb.code.Consts)
	if idx > vm.MaxArg {
		return 0, &Error{Pos: pos, Msg: "too many constants"}
	}
	fb.consts[c] = idx
	fb.code.Consts = append(fb.code.Consts, c)
	return idx, nil
}

// line records the source line of the next instruction.
func (fb *funcBuilder) line(n int) {
	if n == fb.lastLine {
		return
	}
	fb.lastLine = n
	fb.code.LineTable = append(fb.code.LineTable, vm.LineEntry{Offset: fb.bc.Len(), Line: n})
}

func (fb *funcBuilder) emit(op vm.Opcode, arg int) {
	fb.bc.EmitArg(op, byte(arg))
	fb.track(op, arg)
}

// track updates the stack depth estimate. The estimate follows the
// instructions in stream order.
func (fb *funcBuilder) track(op vm.Opcode, arg int) {
	fb.depth = max(fb.depth+vm.StackEffect(op, arg), 0)
	fb.code.StackSize = max(fb.code.StackSize, fb.depth)
}

func (fb *funcBuilder) target(name string, pos Position) *jumpTarget {
	t, ok := fb.targets[name]
	if !ok {
		t = &jumpTarget{label: fb.bc.NewLabel(), firstAt: pos}
		fb.targets[name] = t
	}
	return t
}

// mark defines a jump target at the current position.
func (fb *funcBuilder) mark(name string, pos Position) *Error {
	t := fb.target(name, pos)
	if t.defined {
		return &Error{Pos: pos, Msg: fmt.Sprintf("jump target @%s defined twice", name)}
	}
	t.defined = true
	if err := fb.bc.Mark(t.label); err != nil {
		return &Error{Pos: pos, Msg: fmt.Sprintf("@%s: %v", name, err)}
	}
	return nil
}

// jump emits a jump to a named target.
func (fb *funcBuilder) jump(op vm.Opcode, name string, pos Position) *Error {
	t := fb.target(name, pos)
	if err := fb.bc.EmitJump(op, t.label); err != nil {
		return &Error{Pos: pos, Msg: fmt.Sprintf("@%s: %v", name, err)}
	}
	fb.track(op, 0)
	return nil
}

// finish completes the code object and reports jumps to undefined targets.
func (fb *funcBuilder) finish() []*Error {
	var errs []*Error
	for name, t := range fb.targets {
		if !t.defined {
			errs = append(errs, &Error{Pos: t.firstAt, Msg: fmt.Sprintf("undefined jump target @%s", name)})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Pos.Offset < errs[j].Pos.Offset })

	fb.code.Bytecode = fb.bc.Bytes()
	fb.code.NumLocals = len(fb.code.VarNames)
	return errs
}
