package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a LeapServer.
type Client struct {
	rewrite     *connect.Client[RewriteRequest, RewriteResponse]
	disassemble *connect.Client[DisassembleRequest, DisassembleResponse]
	run         *connect.Client[RunRequest, RunResponse]
}

// NewClient creates a client for the server at baseURL, for example
// "http://127.0.0.1:7420".
func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts := []connect.ClientOption{connect.WithCodec(newCBORCodec())}
	return &Client{
		rewrite: connect.NewClient[RewriteRequest, RewriteResponse](
			httpClient, baseURL+RewriteProcedure, opts...),
		disassemble: connect.NewClient[DisassembleRequest, DisassembleResponse](
			httpClient, baseURL+DisassembleProcedure, opts...),
		run: connect.NewClient[RunRequest, RunResponse](
			httpClient, baseURL+RunProcedure, opts...),
	}
}

// Rewrite calls RewriteService.Rewrite.
func (c *Client) Rewrite(ctx context.Context, req *RewriteRequest) (*RewriteResponse, error) {
	resp, err := c.rewrite.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Disassemble calls RewriteService.Disassemble.
func (c *Client) Disassemble(ctx context.Context, req *DisassembleRequest) (*DisassembleResponse, error) {
	resp, err := c.disassemble.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Run calls RewriteService.Run.
func (c *Client) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
