package leap

import (
	"fmt"

	"github.com/chazu/leap/vm"
)

// Result is the outcome of a successful compilation.
type Result struct {
	// Code is the rewritten code object, or the input itself when the
	// function has no markers.
	Code *vm.Code

	// Rewritten is false when the input had no markers.
	Rewritten bool

	Symbols      *SymbolTable
	Warnings     []Warning
	Instructions []*Inst
}

// Compiler rewrites one code object.
type Compiler struct {
	cfg   Config
	code  *vm.Code
	trace *tracer
}

// NewCompiler creates a compiler for code.
func NewCompiler(code *vm.Code, opts ...Option) *Compiler {
	cfg := NewConfig(opts...)
	return &Compiler{cfg: cfg, code: code, trace: newTracer(cfg)}
}

// Config returns the effective configuration.
func (c *Compiler) Config() Config {
	return c.cfg
}

// Compile decodes the code object, rewrites its markers and returns a new
// code object that shares every table with the input. The input is never
// modified.
func (c *Compiler) Compile() (*Result, error) {
	insts, err := Instructions(c.code)
	if err != nil {
		return nil, err
	}

	st, warnings, err := c.analyze(insts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.code.DisplayName(), err)
	}
	if st.Empty() {
		return &Result{Code: c.code, Symbols: st, Instructions: insts}, nil
	}

	jumps, err := resolve(st, c.cfg.ISA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.code.DisplayName(), err)
	}

	bytecode := c.apply(insts, st, jumps)
	c.trace.after(c.code.Name, c.code.QualName, c.code.Bytecode, bytecode, insts)
	c.cfg.Logger.Infof("rewrote %s: %d labels, %d gotos",
		c.code.DisplayName(), st.NumLabels(), st.NumGotos())

	return &Result{
		Code:         c.code.WithBytecode(bytecode),
		Rewritten:    true,
		Symbols:      st,
		Warnings:     warnings,
		Instructions: insts,
	}, nil
}

// analyze checks the stream, scans it and enforces the caps.
func (c *Compiler) analyze(insts []*Inst) (*SymbolTable, []Warning, error) {
	if err := checkStream(insts, c.cfg.ISA); err != nil {
		return nil, nil, err
	}
	st, err := scan(insts, c.cfg.ISA)
	if err != nil {
		return nil, nil, err
	}
	if st.Empty() {
		return st, nil, nil
	}
	warnings, err := validate(st, c.cfg.MaxLabels, c.cfg.MaxGotos)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		c.cfg.Logger.Warningf("%s: %s", c.code.DisplayName(), w)
	}
	return st, warnings, nil
}

// apply rewrites insts in place and returns the encoded stream.
func (c *Compiler) apply(insts []*Inst, st *SymbolTable, jumps []jump) []byte {
	c.trace.before(insts)
	rewrite(st, jumps, c.cfg.ISA)
	link(insts, st)
	return Encode(insts)
}

// checkStream verifies that every instruction sits at its own index and
// carries an encodable argument.
func checkStream(insts []*Inst, isa ISA) error {
	for i, in := range insts {
		if in == nil {
			return fmt.Errorf("%w: instruction %d is nil", ErrGoto, i)
		}
		if in.Index != i {
			return fmt.Errorf("%w: instruction %d has index %d", ErrGoto, i, in.Index)
		}
		if in.HasArg && (in.Arg < 0 || in.Arg > isa.MaxArg) {
			return fmt.Errorf("%w: instruction %d argument %d out of range", ErrGoto, i, in.Arg)
		}
		if i > 0 && in.Offset < insts[i-1].Offset {
			return fmt.Errorf("%w: instruction %d offset %d precedes offset %d", ErrGoto, i, in.Offset, insts[i-1].Offset)
		}
	}
	return nil
}
