package leap

import (
	"io"

	"github.com/tliron/commonlog"
)

// Default caps applied when a cap is zero or negative.
const (
	DefaultMaxLabels = 10
	DefaultMaxGotos  = 8
)

// Config controls a compilation.
type Config struct {
	Debug     bool
	MaxLabels int
	MaxGotos  int
	ISA       ISA

	// Trace receives the debug listing. Nil means os.Stdout.
	Trace io.Writer

	Logger commonlog.Logger
}

// Option configures a compilation.
type Option func(*Config)

// WithDebug enables the before/after trace.
func WithDebug(debug bool) Option {
	return func(c *Config) {
		c.Debug = debug
	}
}

// WithMaxLabels sets the label cap. n <= 0 selects DefaultMaxLabels.
func WithMaxLabels(n int) Option {
	return func(c *Config) {
		c.MaxLabels = n
	}
}

// WithMaxGotos sets the goto cap. n <= 0 selects DefaultMaxGotos.
func WithMaxGotos(n int) Option {
	return func(c *Config) {
		c.MaxGotos = n
	}
}

// WithISA targets a different instruction set.
func WithISA(isa ISA) Option {
	return func(c *Config) {
		c.ISA = isa
	}
}

// WithTrace sets the writer for the debug trace.
func WithTrace(w io.Writer) Option {
	return func(c *Config) {
		c.Trace = w
	}
}

// WithLogger sets the logger.
func WithLogger(l commonlog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// NewConfig applies opts to the defaults.
func NewConfig(opts ...Option) Config {
	c := Config{ISA: DefaultISA()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.MaxLabels <= 0 {
		c.MaxLabels = DefaultMaxLabels
	}
	if c.MaxGotos <= 0 {
		c.MaxGotos = DefaultMaxGotos
	}
	if c.Logger == nil {
		c.Logger = commonlog.GetLogger("leap")
	}
	return c
}
