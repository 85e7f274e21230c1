// Package formatter renders native Go values and value trees as wire text.
package formatter

import (
	"bytes"
	"cmp"
	"encoding"
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/mcncl/goserial/internal/classify"
	apperrors "github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/registry"
	"github.com/mcncl/goserial/internal/value"
	"github.com/mcncl/goserial/internal/wire"
)

// Formatter renders values in one wire format
type Formatter struct {
	classifier *classify.Classifier
	format     registry.Format
}

// NewFormatter creates a Formatter for format f. A nil classifier means
// classify.Default.
func NewFormatter(c *classify.Classifier, f registry.Format) *Formatter {
	if c == nil {
		c = classify.Default
	}
	if f == "" {
		f = registry.JSON
	}
	return &Formatter{classifier: c, format: f}
}

// Format writes v to w. The type of v is classified before anything is
// written, so an unserializable type produces no output at all. Errors from
// w are returned unchanged.
func (f *Formatter) Format(w io.Writer, v any) error {
	if _, err := registry.ParseFormat(string(f.format)); err != nil {
		return apperrors.NewFormatError(fmt.Sprintf("cannot render %T", v), err)
	}
	if v != nil {
		if _, err := f.classifier.Of(v); err != nil {
			return err
		}
	}

	enc := f.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Flush()
}

// FormatString renders v into a string.
func (f *Formatter) FormatString(v any) (string, error) {
	var buf bytes.Buffer
	if err := f.Format(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewEncoder returns an Encoder writing to w. Callers must Flush it.
func (f *Formatter) NewEncoder(w io.Writer) *Encoder {
	return &Encoder{f: f, w: wire.NewWriter(w)}
}

// Format writes v to w in format f using classifier c.
func Format(w io.Writer, v any, f registry.Format, c *classify.Classifier) error {
	return NewFormatter(c, f).Format(w, v)
}

// FormatString renders v in format f using classifier c.
func FormatString(v any, f registry.Format, c *classify.Classifier) (string, error) {
	return NewFormatter(c, f).FormatString(v)
}

// Encoder writes values through a wire.Writer. It is handed to override
// render functions so they can emit tokens and recurse into children.
type Encoder struct {
	f *Formatter
	w *wire.Writer
}

var _ registry.Encoder = (*Encoder)(nil)

// Format returns the wire format being written.
func (e *Encoder) Format() registry.Format {
	return e.f.format
}

// Writer returns the underlying token writer.
func (e *Encoder) Writer() *wire.Writer {
	return e.w
}

// Flush pushes buffered output to the sink.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// Encode writes v with full dispatch: override first, then classification.
func (e *Encoder) Encode(v any) error {
	if v == nil {
		e.w.WriteNull()
		return e.w.Err()
	}
	rv := reflect.ValueOf(v)
	d, err := e.f.classifier.Describe(rv.Type())
	if err != nil {
		return err
	}
	return e.encode(rv, d)
}

func (e *Encoder) text() bool {
	return e.f.format == registry.Text
}

func (e *Encoder) encode(rv reflect.Value, d *classify.Descriptor) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			e.w.WriteNull()
			return e.w.Err()
		}
	}

	if o, ok := d.Override(e.f.format); ok && o.Render != nil {
		if err := o.Render(e, rv.Interface()); err != nil {
			return err
		}
		return e.w.Err()
	}

	switch d.Shape {
	case classify.ShapeOpaque:
		return apperrors.NewFormatError(
			fmt.Sprintf("%s has no %s render override", d.Type, e.f.format),
			apperrors.ErrUnclassifiable,
		)
	case classify.ShapeValue:
		e.encodeTree(rv.Interface().(value.Value))
	case classify.ShapeBool:
		e.w.WriteBool(rv.Bool())
	case classify.ShapeInt:
		e.w.WriteInt(rv.Int())
	case classify.ShapeUint:
		e.w.WriteUint(rv.Uint())
	case classify.ShapeFloat:
		e.w.WriteFloat(rv.Float(), rv.Type().Bits())
	case classify.ShapeString:
		e.writeString(rv.String())
	case classify.ShapeText:
		b, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return apperrors.NewFormatError(fmt.Sprintf("marshaling %s", d.Type), err)
		}
		e.writeString(string(b))
	case classify.ShapePointer:
		return e.encode(rv.Elem(), d.Elem)
	case classify.ShapeInterface:
		return e.Encode(rv.Elem().Interface())
	case classify.ShapeList:
		return e.encodeList(rv, d)
	case classify.ShapeEntries:
		return e.encodeEntries(rv, d)
	case classify.ShapeMap:
		return e.encodeMap(rv, d)
	case classify.ShapeStruct:
		return e.encodeStruct(rv, d)
	case classify.ShapePairs:
		return e.encodePairs(rv, d)
	case classify.ShapeMapper:
		return e.encodeMapper(rv.Interface().(classify.Mapper))
	case classify.ShapeSequencer:
		return e.encodeSequencer(rv.Interface().(classify.Sequencer))
	default:
		return apperrors.NewFormatError(fmt.Sprintf("unknown shape for %s", d.Type), apperrors.ErrUnclassifiable)
	}
	return e.w.Err()
}

func (e *Encoder) writeString(s string) {
	if e.text() {
		e.w.WriteString(s)
		return
	}
	e.w.WriteQuoted(s)
}

// Delimiters per format. JSON is compact; the text rendering spells out
// sequences as <a : b> and mappings as (k -> v, k2 -> v2).
func (e *Encoder) openSeq() {
	if e.text() {
		e.w.WriteRawByte('<')
	} else {
		e.w.WriteRawByte('[')
	}
}

func (e *Encoder) closeSeq() {
	if e.text() {
		e.w.WriteRawByte('>')
	} else {
		e.w.WriteRawByte(']')
	}
}

func (e *Encoder) seqSep() {
	if e.text() {
		e.w.WriteString(" : ")
	} else {
		e.w.WriteRawByte(',')
	}
}

func (e *Encoder) openMap() {
	if e.text() {
		e.w.WriteRawByte('(')
	} else {
		e.w.WriteRawByte('{')
	}
}

func (e *Encoder) closeMap() {
	if e.text() {
		e.w.WriteRawByte(')')
	} else {
		e.w.WriteRawByte('}')
	}
}

func (e *Encoder) mapSep() {
	if e.text() {
		e.w.WriteString(", ")
	} else {
		e.w.WriteRawByte(',')
	}
}

func (e *Encoder) writeKey(k string) {
	e.writeString(k)
	if e.text() {
		e.w.WriteString(" -> ")
	} else {
		e.w.WriteRawByte(':')
	}
}

func (e *Encoder) encodeList(rv reflect.Value, d *classify.Descriptor) error {
	e.openSeq()
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			e.seqSep()
		}
		if err := e.encode(rv.Index(i), d.Elem); err != nil {
			return err
		}
	}
	e.closeSeq()
	return e.w.Err()
}

// encodeEntries writes a map whose keys cannot be object keys. JSON gets an
// array of [key,value] arrays; the text rendering uses the mapping form.
func (e *Encoder) encodeEntries(rv reflect.Value, d *classify.Descriptor) error {
	keys := rv.MapKeys()
	slices.SortFunc(keys, compareKeys)

	if e.text() {
		e.openMap()
	} else {
		e.openSeq()
	}
	for i, k := range keys {
		if i > 0 {
			if e.text() {
				e.mapSep()
			} else {
				e.seqSep()
			}
		}
		if !e.text() {
			e.openSeq()
		}
		if err := e.encode(k, d.Key); err != nil {
			return err
		}
		if e.text() {
			e.w.WriteString(" -> ")
		} else {
			e.seqSep()
		}
		if err := e.encode(rv.MapIndex(k), d.Elem); err != nil {
			return err
		}
		if !e.text() {
			e.closeSeq()
		}
	}
	if e.text() {
		e.closeMap()
	} else {
		e.closeSeq()
	}
	return e.w.Err()
}

func (e *Encoder) encodeMap(rv reflect.Value, d *classify.Descriptor) error {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := keyString(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: k, val: iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.key, b.key) })

	e.openMap()
	for i, ent := range entries {
		if i > 0 {
			e.mapSep()
		}
		e.writeKey(ent.key)
		if err := e.encode(ent.val, d.Elem); err != nil {
			return err
		}
	}
	e.closeMap()
	return e.w.Err()
}

func (e *Encoder) encodeStruct(rv reflect.Value, d *classify.Descriptor) error {
	e.openMap()
	first := true
	for i := range d.Fields {
		f := &d.Fields[i]
		fv := rv.FieldByIndex(f.Index)
		if f.OmitEmpty && classify.IsEmpty(fv) {
			continue
		}
		if !first {
			e.mapSep()
		}
		first = false
		e.writeKey(f.Name)
		if err := e.encode(fv, f.Desc); err != nil {
			return err
		}
	}
	e.closeMap()
	return e.w.Err()
}

// encodePairs writes a list of pairs as a mapping. A pair type with its own
// render override writes the whole "key":value member itself.
func (e *Encoder) encodePairs(rv reflect.Value, d *classify.Descriptor) error {
	verbatim := e.hasRender(d.Elem) || (d.Elem.Shape == classify.ShapePointer && e.hasRender(d.Elem.Elem))

	e.openMap()
	first := true
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		k, v, ok := d.Pair.Split(elem)
		if !ok {
			continue // nil pair has no key
		}
		if !first {
			e.mapSep()
		}
		first = false

		if verbatim {
			if err := e.encode(elem, d.Elem); err != nil {
				return err
			}
			continue
		}
		key, err := keyString(k)
		if err != nil {
			return err
		}
		e.writeKey(key)
		if err := e.encode(v, d.Pair.Value); err != nil {
			return err
		}
	}
	e.closeMap()
	return e.w.Err()
}

func (e *Encoder) hasRender(d *classify.Descriptor) bool {
	o, ok := d.Override(e.f.format)
	return ok && o.Render != nil
}

func (e *Encoder) encodeMapper(m classify.Mapper) error {
	e.openMap()
	first := true
	for k, v := range m.Entries() {
		if !first {
			e.mapSep()
		}
		first = false
		e.writeKey(k)
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	e.closeMap()
	return e.w.Err()
}

func (e *Encoder) encodeSequencer(s classify.Sequencer) error {
	e.openSeq()
	first := true
	for v := range s.Elements() {
		if !first {
			e.seqSep()
		}
		first = false
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	e.closeSeq()
	return e.w.Err()
}

// encodeTree writes a value tree. Objects keep insertion order.
func (e *Encoder) encodeTree(v value.Value) {
	switch v.Kind() {
	case value.KindBoolean:
		b, _ := v.AsBool()
		e.w.WriteBool(b)
	case value.KindNumber:
		n, _ := v.AsNumber()
		e.w.WriteNumber(n)
	case value.KindString:
		s, _ := v.AsString()
		e.writeString(s)
	case value.KindArray:
		e.openSeq()
		for i, item := range v.Items() {
			if i > 0 {
				e.seqSep()
			}
			e.encodeTree(item)
		}
		e.closeSeq()
	case value.KindObject:
		e.openMap()
		first := true
		for k, item := range v.Members() {
			if !first {
				e.mapSep()
			}
			first = false
			e.writeKey(k)
			e.encodeTree(item)
		}
		e.closeMap()
	default:
		e.w.WriteNull()
	}
}

// keyString returns the object key form of a string-like value.
func keyString(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if m, ok := k.Interface().(encoding.TextMarshaler); ok {
		b, err := m.MarshalText()
		if err != nil {
			return "", apperrors.NewFormatError(fmt.Sprintf("marshaling key %s", k.Type()), err)
		}
		return string(b), nil
	}
	return "", apperrors.NewFormatError(fmt.Sprintf("%s cannot be an object key", k.Type()), apperrors.ErrUnclassifiable)
}

// compareKeys orders map keys of ordered kinds by value and everything else
// by its printed form.
func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Bool:
		switch {
		case a.Bool() == b.Bool():
			return 0
		case !a.Bool():
			return -1
		default:
			return 1
		}
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}
