// Package classify decides, once per Go type, how values of that type are
// serialized: as a scalar, as an ordered sequence of elements, or as a set of
// key/value pairs.
//
// A type is classified before any of its values is written or read. The
// whole reachable type graph is validated at that point, so a type that
// contains an unserializable component (a channel, a function, a complex
// number) is rejected up front with the path to the offending part instead of
// failing half way through the output.
package classify

import (
	"encoding"
	"fmt"
	"iter"
	"reflect"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	apperrors "github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/registry"
	"github.com/mcncl/goserial/internal/value"
)

// Category is the capability class of a type.
type Category uint8

const (
	// Scalar values render as a single token.
	Scalar Category = iota
	// Sequence values render as an ordered array of elements.
	Sequence
	// KeyValueMapping values render as an object of string keys.
	KeyValueMapping
)

func (c Category) String() string {
	switch c {
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case KeyValueMapping:
		return "key-value mapping"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Shape is the concrete strategy used for a type within its category.
type Shape uint8

const (
	ShapeOpaque    Shape = iota // only serializable through overrides
	ShapeValue                  // value.Value
	ShapeBool                   //
	ShapeInt                    //
	ShapeUint                   //
	ShapeFloat                  //
	ShapeString                 // string kinds
	ShapeText                   // encoding.TextMarshaler
	ShapePointer                // classified as its element
	ShapeInterface              // resolved from the dynamic type
	ShapeList                   // slice or array
	ShapeEntries                // map with non string-like keys, as [key,value] arrays
	ShapeMap                    // map with string-like keys
	ShapeStruct                 // exported struct fields
	ShapePairs                  // slice or array of pairs
	ShapeMapper                 // Mapper implementation
	ShapeSequencer              // Sequencer implementation
)

// Mapper is implemented by types that expose their own key/value pairs.
type Mapper interface {
	Entries() iter.Seq2[string, any]
}

// Sequencer is implemented by types that expose their own elements.
type Sequencer interface {
	Elements() iter.Seq[any]
}

var (
	valueType         = reflect.TypeFor[value.Value]()
	mapperType        = reflect.TypeFor[Mapper]()
	sequencerType     = reflect.TypeFor[Sequencer]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// Descriptor is the classification of one type. Descriptors are immutable
// once returned and shared between goroutines.
type Descriptor struct {
	Type     reflect.Type
	Shape    Shape
	Category Category
	// StringLike is set for scalars that render as a quoted string and may
	// serve as object keys.
	StringLike bool

	// Elem describes the pointer target, list element, map value or pair value.
	Elem *Descriptor
	// Key describes the map key or pair key.
	Key *Descriptor
	// Fields is the field table of a struct, in declaration order.
	Fields []Field
	// Pair describes how list elements split into key and value.
	Pair *PairShape

	overrides map[registry.Format]registry.Override
}

// Override returns the override registered for the type in format f.
func (d *Descriptor) Override(f registry.Format) (registry.Override, bool) {
	o, ok := d.overrides[f]
	return o, ok
}

// HasOverride reports whether the type has an override in any format.
func (d *Descriptor) HasOverride() bool {
	return len(d.overrides) > 0
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.Type, d.Category)
}

// Classifier computes and caches type descriptors against one override
// registry.
type Classifier struct {
	reg     *registry.Registry
	keyCase KeyCase

	cache *xsync.MapOf[reflect.Type, *Descriptor]
	mu    sync.Mutex // serializes graph construction
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithKeyCase sets how untagged struct field names become object keys.
func WithKeyCase(k KeyCase) Option {
	return func(c *Classifier) {
		c.keyCase = k
	}
}

// New creates a classifier bound to reg. A nil reg means registry.Default.
func New(reg *registry.Registry, opts ...Option) *Classifier {
	if reg == nil {
		reg = registry.Default
	}
	c := &Classifier{
		reg:     reg,
		keyCase: KeyCaseNone,
		cache:   xsync.NewMapOf[reflect.Type, *Descriptor](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default classifies against registry.Default with Go field names as keys.
var Default = New(registry.Default)

// Registry returns the override registry the classifier consults.
func (c *Classifier) Registry() *registry.Registry {
	return c.reg
}

// KeyCase returns the configured struct key naming.
func (c *Classifier) KeyCase() KeyCase {
	return c.keyCase
}

// Describe returns the descriptor for t, classifying t and every type
// reachable from it on first use.
func (c *Classifier) Describe(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, apperrors.NewClassificationError("cannot classify a nil type", apperrors.ErrUnclassifiable)
	}
	if d, ok := c.cache.Load(t); ok {
		return d, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.cache.Load(t); ok {
		return d, nil
	}

	b := &builder{c: c, building: make(map[reflect.Type]*Descriptor)}
	d, err := b.describe(t, t.String())
	if err != nil {
		return nil, err
	}
	for _, built := range b.building {
		resolvePointer(built)
	}
	for typ, built := range b.building {
		c.cache.Store(typ, built)
	}
	return d, nil
}

// Of describes the dynamic type of v.
func (c *Classifier) Of(v any) (*Descriptor, error) {
	return c.Describe(reflect.TypeOf(v))
}

// Check classifies the type of every sample. It is meant to be called next
// to override registration so unserializable types surface at start-up.
func (c *Classifier) Check(samples ...any) error {
	for _, s := range samples {
		if s == nil {
			continue
		}
		if _, err := c.Of(s); err != nil {
			return err
		}
	}
	return nil
}

type builder struct {
	c        *Classifier
	building map[reflect.Type]*Descriptor
	order    []reflect.Type
}

func (b *builder) unclassifiable(path string, t reflect.Type) error {
	return apperrors.NewClassificationError(
		fmt.Sprintf("%s: %s", path, t),
		apperrors.ErrUnclassifiable,
	)
}

func (b *builder) describe(t reflect.Type, path string) (*Descriptor, error) {
	if d, ok := b.c.cache.Load(t); ok {
		return d, nil
	}
	if d, ok := b.building[t]; ok {
		return d, nil // recursive type, filled in further up the stack
	}

	d := &Descriptor{Type: t, overrides: b.overridesFor(t)}
	b.building[t] = d
	b.order = append(b.order, t)
	mark := len(b.order)

	if err := b.classify(d, path); err != nil {
		if !d.HasOverride() {
			return nil, err
		}
		// Drop whatever was built underneath; it may point at broken parts.
		for _, typ := range b.order[mark:] {
			delete(b.building, typ)
		}
		b.order = b.order[:mark]
		*d = Descriptor{Type: t, Shape: ShapeOpaque, Category: Scalar, overrides: d.overrides}
	}
	return d, nil
}

func (b *builder) overridesFor(t reflect.Type) map[registry.Format]registry.Override {
	var out map[registry.Format]registry.Override
	for _, f := range registry.Formats {
		if o, ok := b.c.reg.Lookup(t, f); ok {
			if out == nil {
				out = make(map[registry.Format]registry.Override, len(registry.Formats))
			}
			out[f] = o
		}
	}
	return out
}

func (b *builder) classify(d *Descriptor, path string) error {
	t := d.Type

	switch {
	case t == valueType:
		d.Shape = ShapeValue
		d.Category = Scalar
		return nil
	case t.Kind() != reflect.Interface && t.Implements(mapperType):
		d.Shape = ShapeMapper
		d.Category = KeyValueMapping
		return nil
	case t.Kind() != reflect.Interface && t.Implements(sequencerType):
		d.Shape = ShapeSequencer
		d.Category = Sequence
		return nil
	case t.Kind() != reflect.Interface && t.Implements(textMarshalerType):
		d.Shape = ShapeText
		d.Category = Scalar
		d.StringLike = true
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		d.Shape = ShapeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		d.Shape = ShapeInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		d.Shape = ShapeUint
	case reflect.Float32, reflect.Float64:
		d.Shape = ShapeFloat
	case reflect.String:
		d.Shape = ShapeString
		d.StringLike = true
	case reflect.Pointer:
		return b.classifyPointer(d, path)
	case reflect.Interface:
		if t.NumMethod() > 0 && !t.Implements(mapperType) && !t.Implements(sequencerType) && !t.Implements(textMarshalerType) {
			return b.unclassifiable(path, t)
		}
		d.Shape = ShapeInterface
	case reflect.Slice, reflect.Array:
		return b.classifyList(d, path)
	case reflect.Map:
		return b.classifyMap(d, path)
	case reflect.Struct:
		return b.classifyStruct(d, path)
	default:
		// chan, func, complex, uintptr, unsafe.Pointer
		return b.unclassifiable(path, t)
	}
	d.Category = Scalar
	return nil
}

func (b *builder) classifyPointer(d *Descriptor, path string) error {
	elem, err := b.describe(d.Type.Elem(), "*"+path)
	if err != nil {
		return err
	}
	d.Shape = ShapePointer
	d.Elem = elem
	return nil
}

// resolvePointer copies category and string-likeness from the first
// non-pointer target. It runs after the whole graph is built because the
// target of a recursive pointer is still incomplete when the pointer is.
func resolvePointer(d *Descriptor) {
	if d.Shape != ShapePointer {
		return
	}
	target := d.Elem
	for target.Shape == ShapePointer && target != d {
		target = target.Elem
	}
	d.Category = target.Category
	d.StringLike = target.StringLike
}

func (b *builder) classifyList(d *Descriptor, path string) error {
	et := d.Type.Elem()
	elem, err := b.describe(et, path+"[]")
	if err != nil {
		return err
	}
	d.Elem = elem

	pair, key, val, ok, err := b.pairShape(et, path+"[]")
	if err != nil {
		return err
	}
	if ok {
		d.Shape = ShapePairs
		d.Category = KeyValueMapping
		d.Pair = pair
		d.Key = key
		d.Pair.Value = val
		return nil
	}

	d.Shape = ShapeList
	d.Category = Sequence
	return nil
}

func (b *builder) classifyMap(d *Descriptor, path string) error {
	key, err := b.describe(d.Type.Key(), path+"{key}")
	if err != nil {
		return err
	}
	elem, err := b.describe(d.Type.Elem(), path+"{}")
	if err != nil {
		return err
	}
	d.Key = key
	d.Elem = elem
	if key.StringLike && key.Shape != ShapePointer {
		d.Shape = ShapeMap
		d.Category = KeyValueMapping
		return nil
	}
	d.Shape = ShapeEntries
	d.Category = Sequence
	return nil
}

func (b *builder) classifyStruct(d *Descriptor, path string) error {
	fields := structFields(d.Type, b.c.keyCase)
	for i := range fields {
		fd, err := b.describe(fields[i].Type, path+"."+fields[i].GoName)
		if err != nil {
			return err
		}
		fields[i].Desc = fd
	}
	d.Shape = ShapeStruct
	d.Category = KeyValueMapping
	d.Fields = fields
	return nil
}

// IsEmpty reports whether v is the empty value for omitempty purposes.
func IsEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	if v.Type() == valueType {
		return v.Interface().(value.Value).IsNull()
	}
	return false
}
