package server

// Procedure paths served by LeapServer.
const (
	ServiceName          = "leap.v1.RewriteService"
	RewriteProcedure     = "/" + ServiceName + "/Rewrite"
	DisassembleProcedure = "/" + ServiceName + "/Disassemble"
	RunProcedure         = "/" + ServiceName + "/Run"
)

// Limits overrides the server's caps for one request. Zero keeps the
// server setting.
type Limits struct {
	MaxLabels int `cbor:"max_labels,omitempty"`
	MaxGotos  int `cbor:"max_gotos,omitempty"`
}

// RewriteRequest asks for the functions in Source to be rewritten.
type RewriteRequest struct {
	// Source is assembly text holding one or more functions.
	Source string `cbor:"source"`
	// Function selects a single function; empty means all of them.
	Function string `cbor:"function,omitempty"`
	Limits   Limits `cbor:"limits,omitempty"`
	// Debug returns the before/after trace with each function.
	Debug bool `cbor:"debug,omitempty"`
}

// RewrittenFunction is one function of a RewriteResponse.
type RewrittenFunction struct {
	Name      string   `cbor:"name"`
	Rewritten bool     `cbor:"rewritten"`
	Cached    bool     `cbor:"cached,omitempty"`
	Labels    int      `cbor:"labels"`
	Gotos     int      `cbor:"gotos"`
	Bytecode  []byte   `cbor:"bytecode"`
	Warnings  []string `cbor:"warnings,omitempty"`
	Trace     string   `cbor:"trace,omitempty"`
}

// RewriteResponse carries the rewritten functions in source order and an
// image holding all of them.
type RewriteResponse struct {
	Functions []RewrittenFunction `cbor:"functions"`
	Image     []byte              `cbor:"image"`
}

// DisassembleRequest asks for a listing of the functions in Source.
type DisassembleRequest struct {
	Source   string `cbor:"source"`
	Function string `cbor:"function,omitempty"`
	// Rewrite disassembles the rewritten code instead of the input.
	Rewrite bool   `cbor:"rewrite,omitempty"`
	Limits  Limits `cbor:"limits,omitempty"`
}

// Listing is the disassembly of one function.
type Listing struct {
	Name string `cbor:"name"`
	Text string `cbor:"text"`
}

// DisassembleResponse carries one listing per function.
type DisassembleResponse struct {
	Listings []Listing `cbor:"listings"`
}

// RunRequest rewrites every function in Source and calls Entry with Args.
type RunRequest struct {
	Source string  `cbor:"source"`
	Entry  string  `cbor:"entry"`
	Args   []int64 `cbor:"args,omitempty"`
	Limits Limits  `cbor:"limits,omitempty"`
}

// RunResponse carries the call result and everything printed.
type RunResponse struct {
	Result string `cbor:"result"`
	Output string `cbor:"output"`
}
