package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/leap/asm"
	"github.com/chazu/leap/leap"
	"github.com/chazu/leap/store"
	"github.com/chazu/leap/vm"
)

// RewriteService implements the rewrite RPCs.
type RewriteService struct {
	store  store.Store
	opts   []leap.Option
	worker *Worker
}

// NewRewriteService creates a RewriteService. opts apply to every request
// before the request's own limits.
func NewRewriteService(s store.Store, worker *Worker, opts ...leap.Option) *RewriteService {
	return &RewriteService{store: s, opts: opts, worker: worker}
}

// Rewrite assembles the request source and rewrites its functions.
func (s *RewriteService) Rewrite(
	ctx context.Context,
	req *connect.Request[RewriteRequest],
) (*connect.Response[RewriteResponse], error) {
	codes, err := s.assemble(req.Msg.Source, req.Msg.Function)
	if err != nil {
		return nil, err
	}

	resp := &RewriteResponse{}
	var out []*vm.Code
	for _, code := range codes {
		fn, rewritten, err := s.rewrite(code, req.Msg.Limits, req.Msg.Debug)
		if err != nil {
			return nil, err
		}
		resp.Functions = append(resp.Functions, fn)
		out = append(out, rewritten)
	}

	resp.Image, err = vm.EncodeImage(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}

// rewrite handles one function. Debug requests bypass the cache so the
// trace is always produced.
func (s *RewriteService) rewrite(code *vm.Code, limits Limits, debug bool) (RewrittenFunction, *vm.Code, error) {
	opts := s.options(limits)

	if debug {
		var trace bytes.Buffer
		opts = append(opts, leap.WithDebug(true), leap.WithTrace(&trace))
		res, err := leap.NewCompiler(code, opts...).Compile()
		if err != nil {
			return RewrittenFunction{}, nil, rewriteError(err)
		}
		fn := RewrittenFunction{
			Name:      code.Name,
			Rewritten: res.Rewritten,
			Labels:    res.Symbols.NumLabels(),
			Gotos:     res.Symbols.NumGotos(),
			Bytecode:  res.Code.Bytecode,
			Trace:     trace.String(),
		}
		for _, w := range res.Warnings {
			fn.Warnings = append(fn.Warnings, w.String())
		}
		return fn, res.Code, nil
	}

	e, hit, err := store.Rewrite(s.store, code, opts...)
	if err != nil {
		return RewrittenFunction{}, nil, rewriteError(err)
	}
	return RewrittenFunction{
		Name:      code.Name,
		Rewritten: e.Rewritten(),
		Cached:    hit,
		Labels:    e.Labels,
		Gotos:     e.Gotos,
		Bytecode:  e.Code.Bytecode,
		Warnings:  e.Warnings,
	}, e.Code, nil
}

// Disassemble returns listings for the request source.
func (s *RewriteService) Disassemble(
	ctx context.Context,
	req *connect.Request[DisassembleRequest],
) (*connect.Response[DisassembleResponse], error) {
	codes, err := s.assemble(req.Msg.Source, req.Msg.Function)
	if err != nil {
		return nil, err
	}

	resp := &DisassembleResponse{}
	for _, code := range codes {
		if req.Msg.Rewrite {
			e, _, err := store.Rewrite(s.store, code, s.options(req.Msg.Limits)...)
			if err != nil {
				return nil, rewriteError(err)
			}
			code = e.Code
		}
		resp.Listings = append(resp.Listings, Listing{Name: code.Name, Text: vm.Disassemble(code)})
	}
	return connect.NewResponse(resp), nil
}

// Run rewrites every function in the source, then calls the entry
// function on the worker.
func (s *RewriteService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	if req.Msg.Entry == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("entry is required"))
	}
	codes, err := s.assemble(req.Msg.Source, "")
	if err != nil {
		return nil, err
	}

	rewritten := make([]*vm.Code, len(codes))
	for i, code := range codes {
		e, _, err := store.Rewrite(s.store, code, s.options(req.Msg.Limits)...)
		if err != nil {
			return nil, rewriteError(err)
		}
		rewritten[i] = e.Code
	}

	mod := vm.NewModule(rewritten)
	fn, ok := mod.Lookup(req.Msg.Entry)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("function %s not found", req.Msg.Entry))
	}
	args := make([]vm.Value, len(req.Msg.Args))
	for i, a := range req.Msg.Args {
		args[i] = a
	}

	var out bytes.Buffer
	result, err := s.worker.Do(ctx, func(interp *vm.Interpreter) (vm.Value, error) {
		interp.Stdout = &out
		return interp.CallContext(ctx, fn, args...)
	})
	if err != nil {
		return nil, runError(err)
	}
	return connect.NewResponse(&RunResponse{Result: vm.Repr(result), Output: out.String()}), nil
}

func (s *RewriteService) options(limits Limits) []leap.Option {
	opts := append([]leap.Option(nil), s.opts...)
	if limits.MaxLabels > 0 {
		opts = append(opts, leap.WithMaxLabels(limits.MaxLabels))
	}
	if limits.MaxGotos > 0 {
		opts = append(opts, leap.WithMaxGotos(limits.MaxGotos))
	}
	return opts
}

// assemble parses source and optionally selects one function.
func (s *RewriteService) assemble(source, function string) ([]*vm.Code, error) {
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	codes, err := asm.Assemble(source)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if function == "" {
		return codes, nil
	}
	code := asm.Find(codes, function)
	if code == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("function %s not found", function))
	}
	return []*vm.Code{code}, nil
}

// rewriteError maps rewrite failures to Connect codes.
func rewriteError(err error) error {
	var (
		labelLimit *leap.LabelLimitError
		gotoLimit  *leap.GotoLimitError
	)
	switch {
	case errors.As(err, &labelLimit), errors.As(err, &gotoLimit):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, leap.ErrGoto):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// runError maps interpreter failures to Connect codes.
func runError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, vm.ErrStepLimit), errors.Is(err, vm.ErrRecursion):
		return connect.NewError(connect.CodeResourceExhausted, err)
	default:
		return connect.NewError(connect.CodeAborted, err)
	}
}
