package leap

import "github.com/chazu/leap/vm"

// Goto rewrites fn's markers into jumps and installs the new code on fn.
// A function without markers is returned unchanged. On error fn is not
// modified.
func Goto(fn *vm.Function, opts ...Option) (*vm.Function, error) {
	res, err := NewCompiler(fn.Code, opts...).Compile()
	if err != nil {
		return nil, err
	}
	if res.Rewritten {
		fn.SetCode(res.Code)
	}
	return fn, nil
}

// MustGoto is like Goto but panics on error. It suits package-level
// function definitions, where a misplaced goto is a programming error.
func MustGoto(fn *vm.Function, opts ...Option) *vm.Function {
	fn, err := Goto(fn, opts...)
	if err != nil {
		panic(err)
	}
	return fn
}

// CompileBytes rewrites a caller-supplied instruction stream and returns
// the encoded result along with any cap warnings. Marker instructions in
// insts are modified in place, and only after every goto has been resolved.
func CompileBytes(insts []*Inst, opts ...Option) ([]byte, *SymbolTable, []Warning, error) {
	c := &Compiler{cfg: NewConfig(opts...), code: &vm.Code{Name: "<stream>"}}
	c.trace = newTracer(c.cfg)

	st, warnings, err := c.analyze(insts)
	if err != nil {
		return nil, nil, nil, err
	}
	if st.Empty() {
		return Encode(insts), st, warnings, nil
	}
	jumps, err := resolve(st, c.cfg.ISA)
	if err != nil {
		return nil, nil, nil, err
	}
	old := Encode(insts)
	out := c.apply(insts, st, jumps)
	c.trace.after("", "", old, out, insts)
	return out, st, warnings, nil
}
