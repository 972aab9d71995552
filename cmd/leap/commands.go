package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/leap/asm"
	"github.com/chazu/leap/leap"
	"github.com/chazu/leap/manifest"
	"github.com/chazu/leap/server"
	"github.com/chazu/leap/store"
	"github.com/chazu/leap/vm"
)

// compileFlags are shared by the commands that rewrite code.
type compileFlags struct {
	maxLabels int
	maxGotos  int
	debug     bool
	noCache   bool
}

func (f *compileFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&f.maxLabels, "max-labels", 0, "Maximum labels per function (0 uses leap.toml or the default)")
	fs.IntVar(&f.maxGotos, "max-gotos", 0, "Maximum gotos per function (0 uses leap.toml or the default)")
	fs.BoolVar(&f.debug, "debug", false, "Print the before/after trace for every rewritten function")
	fs.BoolVar(&f.noCache, "no-cache", false, "Do not use the rewrite cache from leap.toml")
}

// session is the state a command works with once flags are parsed.
type session struct {
	cli      *cli
	manifest *manifest.Manifest
	flags    *compileFlags
	store    store.Store
}

// newSession loads the manifest, if any, and opens the rewrite cache.
func (c *cli) newSession(flags *compileFlags) (*session, error) {
	m, err := manifest.FindAndLoad(c.dir)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	s := &session{cli: c, manifest: m, flags: flags}
	if m == nil || flags.noCache || m.CachePath() == "" {
		s.store = store.NewMemoryStore()
	} else {
		s.store, err = store.Open(m.CachePath())
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		fmt.Fprintf(s.cli.stderr, "Warning: closing cache: %v\n", err)
	}
}

// debug reports whether tracing is on, from either -debug or the
// manifest's [debug] trace.
func (s *session) debug() bool {
	return s.flags.debug || (s.manifest != nil && s.manifest.Debug.Trace)
}

// options returns the manifest settings followed by flag overrides. The
// trace, when enabled, goes to the command's stdout.
func (s *session) options() []leap.Option {
	var opts []leap.Option
	if s.manifest != nil {
		opts = append(opts, s.manifest.Options()...)
	}
	if s.flags.maxLabels > 0 {
		opts = append(opts, leap.WithMaxLabels(s.flags.maxLabels))
	}
	if s.flags.maxGotos > 0 {
		opts = append(opts, leap.WithMaxGotos(s.flags.maxGotos))
	}
	return append(opts, leap.WithDebug(s.debug()), leap.WithTrace(s.cli.stdout))
}

// serverOptions are the options applied to every server request. Debug is
// requested per call through RewriteRequest.Debug, so it is off here.
func (s *session) serverOptions() []leap.Option {
	return append(s.options(), leap.WithDebug(false))
}

// load assembles or decodes every path. With no paths the manifest's
// source files are used.
func (s *session) load(paths []string) ([]*vm.Code, error) {
	if len(paths) == 0 {
		if s.manifest == nil {
			return nil, errors.New("no input files and no leap.toml found")
		}
		var err error
		if paths, err = s.manifest.SourceFiles(); err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no %s files in %s", manifest.SourceExt, strings.Join(s.manifest.Source.Dirs, ", "))
		}
	}

	var codes []*vm.Code
	for _, path := range paths {
		cs, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		codes = append(codes, cs...)
	}
	return codes, nil
}

// loadFile reads an image or assembles a source file.
func loadFile(path string) ([]*vm.Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if vm.IsImage(data) {
		return vm.DecodeImage(data)
	}
	return asm.AssembleFile(path)
}

// rewrite rewrites one code object. Debug runs bypass the cache so the
// trace is always printed.
func (s *session) rewrite(code *vm.Code) (*store.Entry, bool, error) {
	if !s.debug() {
		return store.Rewrite(s.store, code, s.options()...)
	}
	res, err := leap.NewCompiler(code, s.options()...).Compile()
	if err != nil {
		return nil, false, err
	}
	e := &store.Entry{Code: res.Code, Labels: res.Symbols.NumLabels(), Gotos: res.Symbols.NumGotos()}
	for _, w := range res.Warnings {
		e.Warnings = append(e.Warnings, w.String())
	}
	return e, false, nil
}

// rewriteAll rewrites every code object, stopping at the first error.
func (s *session) rewriteAll(codes []*vm.Code) ([]*store.Entry, error) {
	entries := make([]*store.Entry, len(codes))
	for i, code := range codes {
		e, _, err := s.rewrite(code)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

// handleRewriteCommand processes `leap rewrite`.
// Usage:
//
//	leap rewrite loops.leap              # ./loops.leapc
//	leap rewrite -o out.leapc a.leap b.leap
func (c *cli) handleRewriteCommand(args []string) error {
	fs := flag.NewFlagSet("rewrite", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	output := fs.String("o", "", "Output image path")
	var flags compileFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.newSession(&flags)
	if err != nil {
		return err
	}
	defer s.close()

	codes, err := s.load(fs.Args())
	if err != nil {
		return err
	}
	entries, err := s.rewriteAll(codes)
	if err != nil {
		return err
	}

	out := make([]*vm.Code, len(entries))
	for i, e := range entries {
		out[i] = e.Code
		if e.Rewritten() {
			fmt.Fprintf(c.stdout, "%s: %d labels, %d gotos\n", e.Code.DisplayName(), e.Labels, e.Gotos)
		} else {
			fmt.Fprintf(c.stdout, "%s: no markers\n", e.Code.DisplayName())
		}
		for _, w := range e.Warnings {
			fmt.Fprintf(c.stderr, "Warning: %s: %s\n", e.Code.DisplayName(), w)
		}
	}

	path := *output
	switch {
	case path != "":
	case s.manifest != nil && len(fs.Args()) == 0:
		path = s.manifest.ImagePath()
	default:
		first := fs.Arg(0)
		path = strings.TrimSuffix(first, filepath.Ext(first)) + ".leapc"
	}
	if err := vm.WriteImage(path, out); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Wrote %d functions to %s\n", len(out), path)
	return nil
}

// handleDisCommand processes `leap dis`.
func (c *cli) handleDisCommand(args []string) error {
	fs := flag.NewFlagSet("dis", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rewrite := fs.Bool("rewrite", false, "Disassemble the rewritten code")
	function := fs.String("f", "", "Only disassemble this function")
	var flags compileFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.newSession(&flags)
	if err != nil {
		return err
	}
	defer s.close()

	codes, err := s.load(fs.Args())
	if err != nil {
		return err
	}
	if *function != "" {
		code := asm.Find(codes, *function)
		if code == nil {
			return fmt.Errorf("function %s not found", *function)
		}
		codes = []*vm.Code{code}
	}

	for i, code := range codes {
		if *rewrite {
			e, _, err := s.rewrite(code)
			if err != nil {
				return err
			}
			code = e.Code
		}
		if i > 0 {
			fmt.Fprintln(c.stdout)
		}
		fmt.Fprint(c.stdout, vm.Disassemble(code))
	}
	return nil
}

// handleRunCommand processes `leap run`. Integer arguments are passed to
// the entry function; the rest are input paths.
func (c *cli) handleRunCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	entry := fs.String("e", "", "Entry function (default: [source] entry in leap.toml, or main)")
	steps := fs.Int("steps", vm.DefaultMaxSteps, "Maximum instructions to execute")
	var flags compileFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		paths    []string
		callArgs []vm.Value
	)
	for _, a := range fs.Args() {
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			callArgs = append(callArgs, n)
		} else {
			paths = append(paths, a)
		}
	}

	s, err := c.newSession(&flags)
	if err != nil {
		return err
	}
	defer s.close()

	name := *entry
	if name == "" && s.manifest != nil {
		name = s.manifest.Source.Entry
	}
	if name == "" {
		name = "main"
	}

	codes, err := s.load(paths)
	if err != nil {
		return err
	}
	entries, err := s.rewriteAll(codes)
	if err != nil {
		return err
	}
	rewritten := make([]*vm.Code, len(entries))
	for i, e := range entries {
		rewritten[i] = e.Code
	}

	mod := vm.NewModule(rewritten)
	fn, ok := mod.Lookup(name)
	if !ok {
		return fmt.Errorf("function %s not found", name)
	}

	interp := vm.NewInterpreter()
	interp.Stdout = c.stdout
	interp.MaxSteps = *steps
	result, err := interp.Call(fn, callArgs...)
	if err != nil {
		return err
	}
	if result != nil {
		fmt.Fprintln(c.stdout, vm.Repr(result))
	}
	return nil
}

// handleVerifyCommand processes `leap verify`.
func (c *cli) handleVerifyCommand(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var flags compileFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.newSession(&flags)
	if err != nil {
		return err
	}
	defer s.close()

	codes, err := s.load(fs.Args())
	if err != nil {
		return err
	}

	failed := 0
	for _, code := range codes {
		e, _, err := s.rewrite(code)
		if err == nil {
			err = vm.Verify(e.Code)
		}
		if err != nil {
			failed++
			fmt.Fprintf(c.stdout, "FAIL %s: %v\n", code.DisplayName(), err)
			continue
		}
		fmt.Fprintf(c.stdout, "ok   %s\n", code.DisplayName())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d functions failed", failed, len(codes))
	}
	return nil
}

// handleServeCommand processes `leap serve`.
func (c *cli) handleServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "Listen address (default: [server] addr in leap.toml, or "+manifest.DefaultServerAddr+")")
	steps := fs.Int("steps", vm.DefaultMaxSteps, "Maximum instructions per Run request")
	var flags compileFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.newSession(&flags)
	if err != nil {
		return err
	}

	listen := *addr
	if listen == "" && s.manifest != nil {
		listen = s.manifest.Server.Addr
	}
	if listen == "" {
		listen = manifest.DefaultServerAddr
	}

	srv := server.New(
		server.WithStore(s.store),
		server.WithOptions(s.serverOptions()...),
		server.WithMaxSteps(*steps),
	)
	defer srv.Stop()
	return srv.ListenAndServe(listen)
}
