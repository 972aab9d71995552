package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/leap/leap"
	"github.com/chazu/leap/vm"
)

const source = `
; build_list(begin_val, end_val) returns [begin_val, ..., end_val-1]
func build_list(begin_val, end_val)
    BUILD_LIST 0
    STORE_FAST lst
    LOAD_FAST begin_val
    STORE_FAST ind
    label .begin
    LOAD_FAST ind
    LOAD_FAST end_val
    COMPARE_OP ==
    POP_JUMP_IF_FALSE @append
    goto .end
@append:
    LOAD_FAST lst
    LOAD_METHOD append
    LOAD_FAST ind
    CALL_METHOD 1
    POP_TOP
    LOAD_FAST ind
    LOAD_CONST 1
    BINARY_ADD
    STORE_FAST ind
    goto .begin
    label .end
    LOAD_FAST lst
    RETURN_VALUE
end

func shout(n)
    LOAD_GLOBAL print
    LOAD_GLOBAL build_list
    LOAD_CONST 0
    LOAD_FAST n
    CALL_FUNCTION 2
    CALL_FUNCTION 1
    RETURN_VALUE
end

func spin()
    label .top
    NOP
    goto .top
end
`

func newTestServer(t *testing.T, opts ...ServerOption) *Client {
	t.Helper()
	s := New(opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return NewClient(ts.Client(), ts.URL)
}

func TestRewrite(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	resp, err := client.Rewrite(ctx, &RewriteRequest{Source: source, Function: "build_list"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(resp.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(resp.Functions))
	}
	fn := resp.Functions[0]
	if fn.Name != "build_list" || !fn.Rewritten || fn.Cached {
		t.Errorf("function = %+v", fn)
	}
	if fn.Labels != 2 || fn.Gotos != 2 {
		t.Errorf("labels/gotos = %d/%d, want 2/2", fn.Labels, fn.Gotos)
	}

	codes, err := vm.DecodeImage(resp.Image)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if len(codes) != 1 || string(codes[0].Bytecode) != string(fn.Bytecode) {
		t.Fatal("image does not hold the rewritten code")
	}
	result, err := vm.NewInterpreter().Call(vm.NewFunction(codes[0], nil), int64(1), int64(4))
	if err != nil {
		t.Fatal(err)
	}
	if got := vm.Repr(result); got != "[1, 2, 3]" {
		t.Errorf("build_list(1, 4) = %s, want [1, 2, 3]", got)
	}

	// The second request is served from the cache.
	resp, err = client.Rewrite(ctx, &RewriteRequest{Source: source, Function: "build_list"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Functions[0].Cached {
		t.Error("second rewrite was not cached")
	}
	if string(resp.Functions[0].Bytecode) != string(fn.Bytecode) {
		t.Error("cached bytecode differs")
	}
}

func TestRewriteAllAndDebug(t *testing.T) {
	client := newTestServer(t)

	resp, err := client.Rewrite(context.Background(), &RewriteRequest{Source: source, Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Functions) != 3 {
		t.Fatalf("got %d functions, want 3", len(resp.Functions))
	}
	if resp.Functions[1].Rewritten {
		t.Error("shout has no markers but was rewritten")
	}
	trace := resp.Functions[0].Trace
	for _, want := range []string{"Disassembly of old instructions:", "Function name:\n--------------\nbuild_list", "New bytecode:"} {
		if !strings.Contains(trace, want) {
			t.Errorf("trace missing %q", want)
		}
	}
	if resp.Functions[1].Trace != "" {
		t.Errorf("unexpected trace for shout: %q", resp.Functions[1].Trace)
	}
}

func TestRewriteLimits(t *testing.T) {
	client := newTestServer(t, WithOptions(leap.WithMaxGotos(2)))

	resp, err := client.Rewrite(context.Background(), &RewriteRequest{Source: source, Function: "build_list"})
	if err != nil {
		t.Fatal(err)
	}
	if w := resp.Functions[0].Warnings; len(w) != 1 || !strings.Contains(w[0], "gotos") {
		t.Errorf("warnings = %q, want one goto warning", w)
	}

	_, err = client.Rewrite(context.Background(), &RewriteRequest{
		Source:   source,
		Function: "build_list",
		Limits:   Limits{MaxLabels: 1},
	})
	if connect.CodeOf(err) != connect.CodeResourceExhausted {
		t.Errorf("err = %v, want resource_exhausted", err)
	}
}

func TestRewriteErrors(t *testing.T) {
	client := newTestServer(t)

	tests := []struct {
		name string
		req  *RewriteRequest
		code connect.Code
	}{
		{"empty source", &RewriteRequest{}, connect.CodeInvalidArgument},
		{"syntax error", &RewriteRequest{Source: "func f(\n"}, connect.CodeInvalidArgument},
		{"missing function", &RewriteRequest{Source: source, Function: "nope"}, connect.CodeNotFound},
		{
			"label not found",
			&RewriteRequest{Source: "func f()\n    goto .x\n    LOAD_CONST 0\n    RETURN_VALUE\nend\n"},
			connect.CodeFailedPrecondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Rewrite(context.Background(), tt.req)
			if got := connect.CodeOf(err); got != tt.code {
				t.Errorf("code = %v (%v), want %v", got, err, tt.code)
			}
		})
	}
}

func TestDisassemble(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	resp, err := client.Disassemble(ctx, &DisassembleRequest{Source: source, Function: "build_list"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Listings) != 1 || !strings.Contains(resp.Listings[0].Text, "LOAD_GLOBAL") {
		t.Fatalf("listing = %+v", resp.Listings)
	}
	if strings.Contains(resp.Listings[0].Text, "JUMP_ABSOLUTE") {
		t.Error("input listing already has a rewritten jump")
	}

	resp, err = client.Disassemble(ctx, &DisassembleRequest{Source: source, Function: "build_list", Rewrite: true})
	if err != nil {
		t.Fatal(err)
	}
	text := resp.Listings[0].Text
	if !strings.Contains(text, "JUMP_ABSOLUTE") || !strings.Contains(text, "JUMP_FORWARD") {
		t.Errorf("rewritten listing lacks jumps:\n%s", text)
	}
}

func TestRun(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	resp, err := client.Run(ctx, &RunRequest{Source: source, Entry: "build_list", Args: []int64{2, 5}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != "[2, 3, 4]" {
		t.Errorf("result = %s, want [2, 3, 4]", resp.Result)
	}

	resp, err = client.Run(ctx, &RunRequest{Source: source, Entry: "shout", Args: []int64{3}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Output != "[0, 1, 2]\n" || resp.Result != "None" {
		t.Errorf("output = %q, result = %s", resp.Output, resp.Result)
	}
}

func TestRunErrors(t *testing.T) {
	client := newTestServer(t, WithMaxSteps(1000))
	ctx := context.Background()

	tests := []struct {
		name string
		req  *RunRequest
		code connect.Code
	}{
		{"no entry", &RunRequest{Source: source}, connect.CodeInvalidArgument},
		{"unknown entry", &RunRequest{Source: source, Entry: "nope"}, connect.CodeNotFound},
		{"step limit", &RunRequest{Source: source, Entry: "spin"}, connect.CodeResourceExhausted},
		{"bad arity", &RunRequest{Source: source, Entry: "shout"}, connect.CodeAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Run(ctx, tt.req)
			if got := connect.CodeOf(err); got != tt.code {
				t.Errorf("code = %v (%v), want %v", got, err, tt.code)
			}
		})
	}
}
