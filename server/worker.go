package server

import (
	"context"
	"fmt"

	"github.com/chazu/leap/vm"
)

// runRequest is a unit of work executed on the interpreter goroutine.
type runRequest struct {
	fn   func(*vm.Interpreter) (vm.Value, error)
	done chan runResult
}

type runResult struct {
	value vm.Value
	err   error
}

// Worker serializes interpreter runs through a single goroutine, so one
// interpreter and its step budget serve every Run request.
type Worker struct {
	interp   *vm.Interpreter
	requests chan runRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(interp *vm.Interpreter) *Worker {
	w := &Worker{
		interp:   interp,
		requests: make(chan runRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func(*vm.Interpreter) (vm.Value, error)) (result runResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("panic: %v", r)
		}
	}()
	result.value, result.err = fn(w.interp)
	return result
}

// Do submits fn for execution on the interpreter goroutine and blocks
// until it completes or ctx is done. A context that is already done fails
// without running fn. Returning early does not stop fn: the worker stays
// busy until fn returns, so fn should pass ctx to
// (*vm.Interpreter).CallContext.
func (w *Worker) Do(ctx context.Context, fn func(*vm.Interpreter) (vm.Value, error)) (vm.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := runRequest{fn: fn, done: make(chan runResult, 1)}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, fmt.Errorf("worker stopped")
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}
