// Package server exposes the rewriter over Connect.
//
// Messages are plain Go structs carried with a CBOR codec, so the service
// needs no generated code. Any Connect client that registers the same codec
// can call it; Client is the Go one.
package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/leap/leap"
	"github.com/chazu/leap/store"
	"github.com/chazu/leap/vm"
)

var log = commonlog.GetLogger("leap.server")

// LeapServer serves RewriteService on an http.ServeMux.
type LeapServer struct {
	service *RewriteService
	worker  *Worker
	store   store.Store
	mux     *http.ServeMux
}

// ServerOption configures a LeapServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store    store.Store
	opts     []leap.Option
	maxSteps int
}

// WithStore sets the rewrite cache. Without it an in-memory store is used.
func WithStore(s store.Store) ServerOption {
	return func(c *serverConfig) { c.store = s }
}

// WithOptions sets compiler options applied to every request.
func WithOptions(opts ...leap.Option) ServerOption {
	return func(c *serverConfig) { c.opts = append(c.opts, opts...) }
}

// WithMaxSteps bounds the instructions executed by a Run request.
func WithMaxSteps(n int) ServerOption {
	return func(c *serverConfig) { c.maxSteps = n }
}

// New creates a LeapServer.
func New(opts ...ServerOption) *LeapServer {
	cfg := &serverConfig{maxSteps: vm.DefaultMaxSteps}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = store.NewMemoryStore()
	}

	interp := vm.NewInterpreter()
	interp.MaxSteps = cfg.maxSteps
	worker := NewWorker(interp)

	s := &LeapServer{
		service: NewRewriteService(cfg.store, worker, cfg.opts...),
		worker:  worker,
		store:   cfg.store,
		mux:     http.NewServeMux(),
	}

	handlerOpts := []connect.HandlerOption{connect.WithCodec(newCBORCodec())}
	s.mux.Handle(RewriteProcedure, connect.NewUnaryHandler(
		RewriteProcedure, s.service.Rewrite, handlerOpts...))
	s.mux.Handle(DisassembleProcedure, connect.NewUnaryHandler(
		DisassembleProcedure, s.service.Disassemble, handlerOpts...))
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(
		RunProcedure, s.service.Run, handlerOpts...))

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *LeapServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *LeapServer) ListenAndServe(addr string) error {
	log.Infof("leap server listening on %s", addr)
	log.Infof("  rewrite: http://%s%s", addr, RewriteProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the worker and closes the store.
func (s *LeapServer) Stop() error {
	s.worker.Stop()
	return s.store.Close()
}
