// Package registry holds the override table: per (type, wire format) pairs of
// render and parse functions that replace structural serialization.
//
// Overrides are registered during program start-up. The first lookup seals
// the table; from then on it is immutable and may be read from any number of
// goroutines without locking, and further registrations fail.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	apperrors "github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/wire"
)

var (
	// ErrRegistrySealed is returned when registering after the first lookup.
	ErrRegistrySealed = errors.New("override registry is sealed")
	// ErrDuplicateOverride is returned when a (type, format) pair is registered twice.
	ErrDuplicateOverride = errors.New("override already registered")
	// ErrEmptyOverride is returned for an override with neither render nor parse.
	ErrEmptyOverride = errors.New("override has neither render nor parse function")
)

// Format identifies a target wire format.
type Format string

const (
	// JSON is the readable and writable wire format.
	JSON Format = "json"
	// Text is a write-only debugging rendering.
	Text Format = "text"
)

// Formats lists every known wire format.
var Formats = []Format{JSON, Text}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, name)
}

// Encoder is what a render function writes through. Encode recurses into a
// child value with the full dispatch (overrides, then classification).
type Encoder interface {
	Format() Format
	Writer() *wire.Writer
	Encode(v any) error
}

// Decoder is what a parse function reads through. Decode fills the value
// pointed to by target with the full dispatch.
type Decoder interface {
	Reader() *wire.Reader
	Decode(target any) error
}

// RenderFunc writes v, which has the registered type.
type RenderFunc func(enc Encoder, v any) error

// ParseFunc fills target, a non-nil pointer to the registered type.
type ParseFunc func(dec Decoder, target any) error

// Override is the replacement behavior for one type in one format. A nil
// function leaves that direction to structural handling.
type Override struct {
	Render RenderFunc
	Parse  ParseFunc
}

type key struct {
	typ    reflect.Type
	format Format
}

// Registry maps (type, format) to overrides.
type Registry struct {
	mu     sync.Mutex
	sealed atomic.Bool
	table  map[key]Override
}

// New returns an empty, unsealed registry.
func New() *Registry {
	return &Registry{table: make(map[key]Override)}
}

// Default is the process-wide registry.
var Default = New()

// Register adds an override for values of type t in format f.
func (r *Registry) Register(t reflect.Type, f Format, o Override) error {
	if t == nil {
		return apperrors.NewRegistryError("cannot register an override for a nil type", nil)
	}
	if o.Render == nil && o.Parse == nil {
		return apperrors.NewRegistryError(fmt.Sprintf("override for %s (%s)", t, f), ErrEmptyOverride)
	}
	if f == Text && o.Parse != nil {
		return apperrors.NewRegistryError(fmt.Sprintf("override for %s: the text format cannot be parsed", t), apperrors.ErrUnsupportedFormat)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return apperrors.NewRegistryError(fmt.Sprintf("cannot register %s (%s)", t, f), ErrRegistrySealed)
	}
	k := key{typ: t, format: f}
	if _, exists := r.table[k]; exists {
		return apperrors.NewRegistryError(fmt.Sprintf("%s (%s)", t, f), ErrDuplicateOverride)
	}
	r.table[k] = o
	return nil
}

// Register adds an override for values of type T.
func Register[T any](r *Registry, f Format, o Override) error {
	return r.Register(reflect.TypeFor[T](), f, o)
}

// MustRegister is like Register but panics on error. It is meant for package
// initialization.
func MustRegister[T any](r *Registry, f Format, o Override) {
	if err := Register[T](r, f, o); err != nil {
		panic(err)
	}
}

// Seal makes the registry immutable.
func (r *Registry) Seal() {
	if r.sealed.Load() {
		return
	}
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Sealed reports whether the registry accepts no more registrations.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Lookup returns the override for t in format f. It seals the registry.
func (r *Registry) Lookup(t reflect.Type, f Format) (Override, bool) {
	r.Seal()
	o, ok := r.table[key{typ: t, format: f}]
	return o, ok
}

// Has reports whether t has an override in format f.
func (r *Registry) Has(t reflect.Type, f Format) bool {
	_, ok := r.Lookup(t, f)
	return ok
}

// FormatsFor lists the formats in which t is overridden, sorted by name.
func (r *Registry) FormatsFor(t reflect.Type) []Format {
	r.Seal()
	var out []Format
	for k := range r.table {
		if k.typ == t {
			out = append(out, k.format)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered overrides.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.table)
}
