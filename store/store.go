// Package store caches rewritten code objects by content.
//
// A rewrite depends only on the input code object and on the settings that
// shape the output (caps and instruction set), so the cache key is a
// SHA-256 digest over the canonical CBOR encoding of both. Two backends are
// provided: MemoryStore for a single process and SQLiteStore for a cache
// that survives restarts.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/chazu/leap/leap"
	"github.com/chazu/leap/vm"
)

var log = commonlog.GetLogger("leap.store")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: cbor enc mode: %v", err))
	}
	encMode = em
}

// Key identifies a rewrite: input code plus output-shaping settings.
type Key [32]byte

// String returns the key in hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// keyInput is the encoded form hashed into a Key.
type keyInput struct {
	Code      []byte   `cbor:"code"`
	MaxLabels int      `cbor:"max_labels"`
	MaxGotos  int      `cbor:"max_gotos"`
	ISA       leap.ISA `cbor:"isa"`
}

// NewKey computes the key for rewriting code under cfg. Debug, trace and
// logger settings do not affect the output and are not part of the key.
func NewKey(code *vm.Code, cfg leap.Config) (Key, error) {
	body, err := vm.MarshalCode(code)
	if err != nil {
		return Key{}, fmt.Errorf("store: encode code: %w", err)
	}
	data, err := encMode.Marshal(keyInput{
		Code:      body,
		MaxLabels: cfg.MaxLabels,
		MaxGotos:  cfg.MaxGotos,
		ISA:       cfg.ISA,
	})
	if err != nil {
		return Key{}, fmt.Errorf("store: encode key: %w", err)
	}
	return sha256.Sum256(data), nil
}

// Entry is a cached rewrite.
type Entry struct {
	Code     *vm.Code
	Labels   int
	Gotos    int
	Warnings []string
}

// Rewritten reports whether the code had any markers.
func (e *Entry) Rewritten() bool {
	return e.Labels+e.Gotos > 0
}

// Store is a rewrite cache. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the entry for key. ok is false on a miss.
	Get(key Key) (e *Entry, ok bool, err error)
	Put(key Key, e *Entry) error
	Len() (int, error)
	Close() error
}

// Open returns a SQLite store at path, or a memory store when path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return OpenSQLite(path)
}

// Rewrite compiles code through the cache. Only rewritten results are
// stored; code without markers is compiled on every call, which costs one
// scan. The returned entry's Code keeps the identity of code. hit reports
// whether the result came from the cache.
func Rewrite(s Store, code *vm.Code, opts ...leap.Option) (e *Entry, hit bool, err error) {
	cfg := leap.NewConfig(opts...)
	key, err := NewKey(code, cfg)
	if err != nil {
		return nil, false, err
	}

	cached, ok, err := s.Get(key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		log.Debugf("cache hit for %s (%s)", code.DisplayName(), key)
		out := *cached
		out.Code = code.WithBytecode(cached.Code.Bytecode)
		return &out, true, nil
	}

	res, err := leap.NewCompiler(code, opts...).Compile()
	if err != nil {
		return nil, false, err
	}
	e = &Entry{
		Code:   res.Code,
		Labels: res.Symbols.NumLabels(),
		Gotos:  res.Symbols.NumGotos(),
	}
	for _, w := range res.Warnings {
		e.Warnings = append(e.Warnings, w.String())
	}
	if !res.Rewritten {
		return e, false, nil
	}

	if err := s.Put(key, e); err != nil {
		return nil, false, err
	}
	log.Debugf("cached %s (%s)", code.DisplayName(), key)
	return e, false, nil
}
