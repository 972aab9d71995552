package leap

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
)

// tracer writes the debug listing. A disabled tracer does nothing.
type tracer struct {
	w       io.Writer
	log     commonlog.Logger
	enabled bool
}

func newTracer(cfg Config) *tracer {
	w := cfg.Trace
	if w == nil {
		w = os.Stdout
	}
	return &tracer{w: w, log: cfg.Logger, enabled: cfg.Debug}
}

func (t *tracer) section(title, body string) {
	if !t.enabled {
		return
	}
	fmt.Fprintf(t.w, "%s\n%s\n%s\n\n", title, strings.Repeat("-", len(title)), strings.TrimRight(body, "\n"))
	t.log.Debugf("%s: %s", title, body)
}

// before traces the stream ahead of rewriting.
func (t *tracer) before(insts []*Inst) {
	t.section("Disassembly of old instructions:", Listing(insts))
}

// after traces the function identity, both byte streams and the new
// listing.
func (t *tracer) after(name, qualName string, oldBC, newBC []byte, insts []*Inst) {
	if name != "" {
		t.section("Function name:", name)
		if qualName == "" {
			qualName = name
		}
		t.section("Fully qualified name:", qualName)
	}
	t.section("Old bytecode:", byteList(oldBC))
	t.section("New bytecode:", byteList(newBC))
	t.section("Disassembly of new instructions:", Listing(insts))
}

func byteList(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
