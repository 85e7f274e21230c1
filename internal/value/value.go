// Package value holds the schema-less Value Model: a tagged union of
// object, array, string, number, boolean and null nodes.
//
// A Value owns every node below it. Containers live behind a pointer, so a
// copied Value shares its container the way a copied Go map does; every
// insertion stores a deep clone of its argument, which keeps the model a tree
// no matter how callers reuse their Values. Use Clone for an independent copy.
package value

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrKindMismatch is returned by the As* accessors when the active kind differs.
var ErrKindMismatch = errors.New("value kind mismatch")

// Kind identifies the active payload of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a single node of the model. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  *arrayData
	obj  *objectData
}

type arrayData struct {
	items []Value
}

// objectData keeps members in insertion order with a key index.
type objectData struct {
	keys  []string
	vals  []Value
	index map[string]int
}

// Member is a key/value pair used to build objects.
type Member struct {
	Key   string
	Value Value
}

// NullValue returns a null Value.
func NullValue() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Number returns a numeric Value. NaN and the infinities have no wire form,
// so they yield null.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, n: f}
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array Value holding clones of items.
func Array(items ...Value) Value {
	data := &arrayData{items: make([]Value, len(items))}
	for i, item := range items {
		data.items[i] = item.Clone()
	}
	return Value{kind: KindArray, arr: data}
}

// Object returns an object Value holding clones of members.
// Later members replace earlier ones with the same key.
func Object(members ...Member) Value {
	v := Value{kind: KindObject, obj: newObjectData(len(members))}
	for _, m := range members {
		v.obj.put(m.Key, m.Value.Clone())
	}
	return v
}

func newObjectData(capacity int) *objectData {
	return &objectData{
		keys:  make([]string, 0, capacity),
		vals:  make([]Value, 0, capacity),
		index: make(map[string]int, capacity),
	}
}

func (o *objectData) put(key string, v Value) {
	if i, ok := o.index[key]; ok {
		o.vals[i] = v
		return
	}
	o.index[key] = len(o.keys)
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, v)
}

func (o *objectData) remove(key string) bool {
	i, ok := o.index[key]
	if !ok {
		return false
	}
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	o.vals = append(o.vals[:i], o.vals[i+1:]...)
	delete(o.index, key)
	for j := i; j < len(o.keys); j++ {
		o.index[o.keys[j]] = j
	}
	return true
}

// Kind returns the active kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Set replaces the whole payload of v with a clone of x.
func (v *Value) Set(x Value) {
	*v = x.Clone()
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBoolean {
		return false, v.mismatch(KindBoolean)
	}
	return v.b, nil
}

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, error) {
	if v.kind != KindNumber {
		return 0, v.mismatch(KindNumber)
	}
	return v.n, nil
}

// AsString returns the string payload.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch(KindString)
	}
	return v.s, nil
}

func (v Value) mismatch(want Kind) error {
	return fmt.Errorf("%w: want %s, have %s", ErrKindMismatch, want, v.kind)
}

// Len returns the number of array items or object members, zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr.items)
	case KindObject:
		return len(v.obj.keys)
	default:
		return 0
	}
}

// Index returns the i-th array item. It panics if v is not an array or i is
// out of range, like indexing a slice.
func (v Value) Index(i int) Value {
	if v.kind != KindArray {
		panic("value: Index called on " + v.kind.String())
	}
	return v.arr.items[i]
}

// Append adds clones of items to an array. Appending to null turns v into an
// array; appending to any other kind panics.
func (v *Value) Append(items ...Value) {
	switch v.kind {
	case KindNull:
		*v = Value{kind: KindArray, arr: &arrayData{items: make([]Value, 0, len(items))}}
	case KindArray:
	default:
		panic("value: Append called on " + v.kind.String())
	}
	for _, item := range items {
		v.arr.items = append(v.arr.items, item.Clone())
	}
}

// Get returns the member stored under key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	i, ok := v.obj.index[key]
	if !ok {
		return Value{}, false
	}
	return v.obj.vals[i], true
}

// Put stores a clone of x under key. An existing key keeps its position and
// the new value wins. Putting into null turns v into an object; any other
// kind panics.
func (v *Value) Put(key string, x Value) {
	c := x.Clone()
	*v.PutSlot(key) = c
}

// AppendSlot adds a null item to an array and returns it for the caller to
// fill in place. The pointer stays valid until the next insertion into v.
// Appending to null turns v into an array; any other kind panics.
func (v *Value) AppendSlot() *Value {
	v.Append(Value{})
	return &v.arr.items[len(v.arr.items)-1]
}

// PutSlot resets the member under key to null, adding it if needed, and
// returns it for the caller to fill in place. The pointer stays valid until
// the next insertion into v. Putting into null turns v into an object; any
// other kind panics.
func (v *Value) PutSlot(key string) *Value {
	switch v.kind {
	case KindNull:
		*v = Value{kind: KindObject, obj: newObjectData(1)}
	case KindObject:
	default:
		panic("value: Put called on " + v.kind.String())
	}
	v.obj.put(key, Value{})
	return &v.obj.vals[v.obj.index[key]]
}

// Delete removes key from an object and reports whether it was present.
func (v *Value) Delete(key string) bool {
	if v.kind != KindObject {
		return false
	}
	return v.obj.remove(key)
}

// Keys returns object keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.obj.keys))
	copy(keys, v.obj.keys)
	return keys
}

// Items iterates over array items.
func (v Value) Items() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		if v.kind != KindArray {
			return
		}
		for i, item := range v.arr.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// Members iterates over object members in insertion order.
func (v Value) Members() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if v.kind != KindObject {
			return
		}
		for i, key := range v.obj.keys {
			if !yield(key, v.obj.vals[i]) {
				return
			}
		}
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr.items))
		for i, item := range v.arr.items {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: &arrayData{items: items}}
	case KindObject:
		c := Value{kind: KindObject, obj: newObjectData(len(v.obj.keys))}
		for i, key := range v.obj.keys {
			c.obj.put(key, v.obj.vals[i].Clone())
		}
		return c
	default:
		return v
	}
}

// Equal reports structural equality. Object member order is ignored.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr.items) != len(b.arr.items) {
			return false
		}
		for i := range a.arr.items {
			if !Equal(a.arr.items[i], b.arr.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj.keys) != len(b.obj.keys) {
			return false
		}
		for i, key := range a.obj.keys {
			other, ok := b.Get(key)
			if !ok || !Equal(a.obj.vals[i], other) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts v into plain Go values: map[string]any, []any, string,
// float64, bool or nil.
func (v Value) Native() any {
	switch v.kind {
	case KindBoolean:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr.items))
		for i, item := range v.arr.items {
			out[i] = item.Native()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj.keys))
		for i, key := range v.obj.keys {
			out[key] = v.obj.vals[i].Native()
		}
		return out
	default:
		return nil
	}
}

// String renders v for debugging. Object keys are sorted; this is not the
// canonical wire text.
func (v Value) String() string {
	var b strings.Builder
	v.debug(&b)
	return b.String()
}

func (v Value) debug(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBoolean:
		b.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		b.WriteString(strconv.FormatFloat(v.n, 'g', -1, 64))
	case KindString:
		b.WriteString(strconv.Quote(v.s))
	case KindArray:
		b.WriteByte('[')
		for i, item := range v.arr.items {
			if i > 0 {
				b.WriteString(", ")
			}
			item.debug(b)
		}
		b.WriteByte(']')
	case KindObject:
		keys := v.Keys()
		sort.Strings(keys)
		b.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(key))
			b.WriteString(": ")
			member, _ := v.Get(key)
			member.debug(b)
		}
		b.WriteByte('}')
	}
}
