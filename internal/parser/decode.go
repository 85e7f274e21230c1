package parser

import (
	"bytes"
	"encoding"
	stderrors "errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/mcncl/goserial/internal/classify"
	"github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/formatter"
	"github.com/mcncl/goserial/internal/registry"
	"github.com/mcncl/goserial/internal/value"
	"github.com/mcncl/goserial/internal/wire"
)

// ErrTypeMismatch is returned when well-formed input does not fit the target.
var ErrTypeMismatch = stderrors.New("value does not fit the target type")

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// Decoder fills native Go values from JSON text using the same
// classification and override table as the formatter. It is handed to
// override parse functions so they can read tokens and recurse.
type Decoder struct {
	p *Parser
	c *classify.Classifier
}

var _ registry.Decoder = (*Decoder)(nil)

// NewDecoder creates a Decoder over data. A nil classifier means
// classify.Default.
func NewDecoder(data []byte, c *classify.Classifier) *Decoder {
	if c == nil {
		c = classify.Default
	}
	return &Decoder{p: NewParser(data), c: c}
}

// Reader returns the underlying cursor.
func (d *Decoder) Reader() *wire.Reader {
	return d.p.r
}

// Decode reads one value into the variable target points to.
func (d *Decoder) Decode(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.NewParsingError(fmt.Sprintf("decode target must be a non-nil pointer, got %T", target), nil)
	}
	if d.p.r.Failed() {
		return syntaxError(d.p.Err())
	}
	desc, err := d.c.Describe(rv.Type().Elem())
	if err != nil {
		return err
	}
	return d.decode(rv.Elem(), desc)
}

// Unmarshal decodes data, which must hold exactly one value, into target.
func Unmarshal(data []byte, target any, c *classify.Classifier) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	d := NewDecoder(data, c)
	if err := d.Decode(target); err != nil {
		return err
	}
	if !d.p.r.AtEOF() {
		return trailingError(d.p.Offset())
	}
	return nil
}

// FromValue materializes the tree v into target.
func FromValue(v value.Value, target any, c *classify.Classifier) error {
	var buf bytes.Buffer
	if err := formatter.Format(&buf, v, registry.JSON, c); err != nil {
		return err
	}
	return Unmarshal(buf.Bytes(), target, c)
}

// ToValue converts a native value into a tree. Override types contribute
// whatever their JSON render function writes.
func ToValue(x any, c *classify.Classifier) (value.Value, error) {
	var buf bytes.Buffer
	if err := formatter.Format(&buf, x, registry.JSON, c); err != nil {
		return value.Value{}, err
	}
	return ParseBytes(buf.Bytes())
}

func (d *Decoder) syntax() error {
	return syntaxError(d.p.Err())
}

func (d *Decoder) mismatch(found string, t reflect.Type, offset int) error {
	return errors.NewParsingError(
		fmt.Sprintf("cannot decode %s into %s at offset %d", found, t, offset),
		ErrTypeMismatch,
	)
}

// tryNull consumes a null literal if one comes next.
func (d *Decoder) tryNull() bool {
	mark := d.p.r.Mark()
	if d.p.r.Expect("null") {
		return true
	}
	d.p.r.Reset(mark)
	return false
}

func (d *Decoder) decode(rv reflect.Value, desc *classify.Descriptor) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if d.tryNull() {
			rv.SetZero()
			return nil
		}
	}

	if o, ok := desc.Override(registry.JSON); ok && o.Parse != nil {
		if err := o.Parse(d, rv.Addr().Interface()); err != nil {
			return err
		}
		if d.p.r.Failed() {
			return d.syntax()
		}
		return nil
	}

	switch desc.Shape {
	case classify.ShapeOpaque, classify.ShapeMapper, classify.ShapeSequencer:
		return errors.NewParsingError(
			fmt.Sprintf("%s cannot be decoded without a parse override", desc.Type),
			errors.ErrUnclassifiable,
		)
	case classify.ShapeValue:
		v := d.p.Parse()
		if d.p.r.Failed() {
			return d.syntax()
		}
		rv.Set(reflect.ValueOf(v))
		return nil
	case classify.ShapeInt, classify.ShapeUint:
		return d.decodeInteger(rv, desc)
	case classify.ShapeBool, classify.ShapeFloat, classify.ShapeString, classify.ShapeText:
		offset := d.p.Offset()
		v := d.p.Parse()
		if d.p.r.Failed() {
			return d.syntax()
		}
		return d.assignScalar(rv, desc, v, offset)
	case classify.ShapeInterface:
		offset := d.p.Offset()
		v := d.p.Parse()
		if d.p.r.Failed() {
			return d.syntax()
		}
		if rv.NumMethod() > 0 {
			return d.mismatch(v.Kind().String(), rv.Type(), offset)
		}
		if native := v.Native(); native != nil {
			rv.Set(reflect.ValueOf(native))
		} else {
			rv.SetZero()
		}
		return nil
	case classify.ShapePointer:
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return d.decode(rv.Elem(), desc.Elem)
	case classify.ShapeList:
		return d.decodeList(rv, desc)
	case classify.ShapeEntries:
		return d.decodeEntries(rv, desc)
	case classify.ShapeMap:
		return d.decodeMap(rv, desc)
	case classify.ShapeStruct:
		return d.decodeStruct(rv, desc)
	case classify.ShapePairs:
		return d.decodePairs(rv, desc)
	}
	return errors.NewParsingError(fmt.Sprintf("unknown shape for %s", desc.Type), errors.ErrUnclassifiable)
}

// decodeInteger reads integers from their literal text so values beyond
// 2^53 keep every digit.
func (d *Decoder) decodeInteger(rv reflect.Value, desc *classify.Descriptor) error {
	r := d.p.r
	offset := r.Offset()
	lit, ok := r.ReadNumberLiteral()
	if !ok {
		r.Reset(offset)
		v := d.p.Parse()
		if r.Failed() {
			return d.syntax()
		}
		return d.mismatch(v.Kind().String(), rv.Type(), offset)
	}

	if desc.Shape == classify.ShapeInt {
		i, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(lit, 64)
			if ferr != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return d.mismatch("number "+lit, rv.Type(), offset)
			}
			i = int64(f)
		}
		if rv.OverflowInt(i) {
			return d.mismatch("number "+lit, rv.Type(), offset)
		}
		rv.SetInt(i)
		return nil
	}

	u, err := strconv.ParseUint(lit, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(lit, 64)
		if ferr != nil || f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return d.mismatch("number "+lit, rv.Type(), offset)
		}
		u = uint64(f)
	}
	if rv.OverflowUint(u) {
		return d.mismatch("number "+lit, rv.Type(), offset)
	}
	rv.SetUint(u)
	return nil
}

func (d *Decoder) assignScalar(rv reflect.Value, desc *classify.Descriptor, v value.Value, offset int) error {
	switch desc.Shape {
	case classify.ShapeBool:
		b, err := v.AsBool()
		if err != nil {
			return d.mismatch(v.Kind().String(), rv.Type(), offset)
		}
		rv.SetBool(b)
	case classify.ShapeFloat:
		n, err := v.AsNumber()
		if err != nil || rv.OverflowFloat(n) {
			return d.mismatch(v.Kind().String(), rv.Type(), offset)
		}
		rv.SetFloat(n)
	case classify.ShapeString:
		s, err := v.AsString()
		if err != nil {
			return d.mismatch(v.Kind().String(), rv.Type(), offset)
		}
		rv.SetString(s)
	case classify.ShapeText:
		s, err := v.AsString()
		if err != nil {
			return d.mismatch(v.Kind().String(), rv.Type(), offset)
		}
		return unmarshalText(rv, s)
	}
	return nil
}

// unmarshalText fills rv, a string-like value, from its text form.
func unmarshalText(rv reflect.Value, s string) error {
	var target reflect.Value
	switch {
	case rv.Kind() == reflect.Pointer && rv.Type().Implements(textUnmarshalerType):
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		target = rv
	case rv.CanAddr() && reflect.PointerTo(rv.Type()).Implements(textUnmarshalerType):
		target = rv.Addr()
	case rv.Kind() == reflect.String:
		rv.SetString(s)
		return nil
	default:
		return errors.NewParsingError(fmt.Sprintf("%s does not implement encoding.TextUnmarshaler", rv.Type()), ErrTypeMismatch)
	}
	if err := target.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return errors.NewParsingError(fmt.Sprintf("decoding %q into %s", s, rv.Type()), err)
	}
	return nil
}

// elements runs each for every element of a container, turning reader
// failures and element errors into one error.
func (d *Decoder) elements(open, close byte, production string, each func(i int) error) error {
	var err error
	i := 0
	ok := d.p.elements(open, close, production, func() bool {
		err = each(i)
		i++
		return err == nil && !d.p.r.Failed()
	})
	if err != nil {
		return err
	}
	if !ok || d.p.r.Failed() {
		return d.syntax()
	}
	return nil
}

func (d *Decoder) decodeList(rv reflect.Value, desc *classify.Descriptor) error {
	t := rv.Type()
	if t.Kind() == reflect.Array {
		n := 0
		err := d.elements('[', ']', "array", func(i int) error {
			if i >= t.Len() {
				return d.mismatch(fmt.Sprintf("array longer than %d", t.Len()), t, d.p.Offset())
			}
			n++
			return d.decode(rv.Index(i), desc.Elem)
		})
		if err != nil {
			return err
		}
		for i := n; i < t.Len(); i++ {
			rv.Index(i).SetZero()
		}
		return nil
	}

	out := reflect.MakeSlice(t, 0, 0)
	err := d.elements('[', ']', "array", func(int) error {
		ev := reflect.New(t.Elem()).Elem()
		if err := d.decode(ev, desc.Elem); err != nil {
			return err
		}
		out = reflect.Append(out, ev)
		return nil
	})
	if err != nil {
		return err
	}
	rv.Set(out)
	return nil
}

// decodeEntries reads [key,value] arrays into a map with non string-like
// keys.
func (d *Decoder) decodeEntries(rv reflect.Value, desc *classify.Descriptor) error {
	t := rv.Type()
	m := rv
	if rv.IsNil() {
		m = reflect.MakeMap(t)
	}
	err := d.elements('[', ']', "array", func(int) error {
		kv := reflect.New(t.Key()).Elem()
		vv := reflect.New(t.Elem()).Elem()
		offset := d.p.Offset()
		n := 0
		err := d.elements('[', ']', "entry", func(i int) error {
			n++
			switch i {
			case 0:
				return d.decode(kv, desc.Key)
			case 1:
				return d.decode(vv, desc.Elem)
			default:
				return d.mismatch("entry with more than two elements", t, d.p.Offset())
			}
		})
		if err != nil {
			return err
		}
		if n != 2 {
			return d.mismatch("entry without a key and a value", t, offset)
		}
		m.SetMapIndex(kv, vv)
		return nil
	})
	if err != nil {
		return err
	}
	rv.Set(m)
	return nil
}

func (d *Decoder) decodeMap(rv reflect.Value, desc *classify.Descriptor) error {
	t := rv.Type()
	m := rv
	if rv.IsNil() {
		m = reflect.MakeMap(t)
	}
	err := d.elements('{', '}', "object", func(int) error {
		key, err := d.readKey(t.Key())
		if err != nil {
			return err
		}
		vv := reflect.New(t.Elem()).Elem()
		if err := d.decode(vv, desc.Elem); err != nil {
			return err
		}
		m.SetMapIndex(key, vv)
		return nil
	})
	if err != nil {
		return err
	}
	rv.Set(m)
	return nil
}

// readKey reads a member key and its colon and converts the key to t.
func (d *Decoder) readKey(t reflect.Type) (reflect.Value, error) {
	r := d.p.r
	s, ok := r.ReadString()
	if !ok || !r.Expect(":") {
		return reflect.Value{}, d.syntax()
	}
	key := reflect.New(t).Elem()
	if err := unmarshalText(key, s); err != nil {
		return reflect.Value{}, err
	}
	return key, nil
}

func (d *Decoder) decodeStruct(rv reflect.Value, desc *classify.Descriptor) error {
	r := d.p.r
	return d.elements('{', '}', "object", func(int) error {
		key, ok := r.ReadString()
		if !ok || !r.Expect(":") {
			return d.syntax()
		}
		f, found := desc.FieldByKey(key)
		if !found {
			d.p.Parse() // unknown member
			if r.Failed() {
				return d.syntax()
			}
			return nil
		}
		return d.decode(rv.FieldByIndex(f.Index), f.Desc)
	})
}

// decodePairs reads an object into a list of pairs. Pair types with a parse
// override read their whole "key":value member themselves.
func (d *Decoder) decodePairs(rv reflect.Value, desc *classify.Descriptor) error {
	t := rv.Type()
	pair := desc.Pair
	verbatim := hasParse(desc.Elem) || (desc.Elem.Shape == classify.ShapePointer && hasParse(desc.Elem.Elem))
	if !verbatim && pair.Methods() {
		return errors.NewParsingError(
			fmt.Sprintf("%s holds accessor pairs and cannot be decoded without a parse override", t),
			ErrTypeMismatch,
		)
	}

	var out reflect.Value
	if t.Kind() == reflect.Slice {
		out = reflect.MakeSlice(t, 0, 0)
	}
	n := 0
	err := d.elements('{', '}', "object", func(i int) error {
		ev := reflect.New(t.Elem()).Elem()
		if t.Kind() == reflect.Array {
			if i >= t.Len() {
				return d.mismatch(fmt.Sprintf("object with more than %d members", t.Len()), t, d.p.Offset())
			}
			ev = rv.Index(i)
		}

		if verbatim {
			if err := d.decode(ev, desc.Elem); err != nil {
				return err
			}
		} else {
			holder := ev
			if pair.Deref {
				ev.Set(reflect.New(t.Elem().Elem()))
				holder = ev.Elem()
			}
			kf := holder.FieldByIndex(pair.KeyIndex)
			key, err := d.readKey(kf.Type())
			if err != nil {
				return err
			}
			kf.Set(key)
			if err := d.decode(holder.FieldByIndex(pair.ValueIndex), pair.Value); err != nil {
				return err
			}
		}

		n++
		if t.Kind() == reflect.Slice {
			out = reflect.Append(out, ev)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if t.Kind() == reflect.Slice {
		rv.Set(out)
		return nil
	}
	for i := n; i < t.Len(); i++ {
		rv.Index(i).SetZero()
	}
	return nil
}

func hasParse(desc *classify.Descriptor) bool {
	o, ok := desc.Override(registry.JSON)
	return ok && o.Parse != nil
}
