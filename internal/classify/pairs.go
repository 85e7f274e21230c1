package classify

import (
	"reflect"
)

// PairShape describes list elements that are key/value pairs. A list of
// pairs is a key-value mapping rather than a sequence.
type PairShape struct {
	// Deref is set when list elements are pointers to the pair struct.
	Deref bool
	// KeyIndex and ValueIndex locate the pair fields. Both are nil for pairs
	// exposed through Key() and Value() methods.
	KeyIndex   []int
	ValueIndex []int
	// Value describes the pair's value part.
	Value *Descriptor
}

// Methods reports whether the pair is read through accessor methods.
func (p *PairShape) Methods() bool {
	return p.KeyIndex == nil
}

// Split returns the key and value of one list element. ok is false for a nil
// element.
func (p *PairShape) Split(elem reflect.Value) (key, val reflect.Value, ok bool) {
	if elem.Kind() == reflect.Pointer && elem.IsNil() {
		return reflect.Value{}, reflect.Value{}, false
	}
	if p.Methods() {
		key = elem.MethodByName("Key").Call(nil)[0]
		val = elem.MethodByName("Value").Call(nil)[0]
		return key, val, true
	}
	if p.Deref {
		elem = elem.Elem()
	}
	return elem.FieldByIndex(p.KeyIndex), elem.FieldByIndex(p.ValueIndex), true
}

// pairFieldNames are the accepted field spellings of a pair struct.
var pairFieldNames = [][2]string{
	{"Key", "Value"},
	{"First", "Second"},
}

// pairShape reports whether list elements of type et are pairs: structs (or
// pointers to structs) with exactly the exported fields Key and Value, or
// First and Second; or types with Key() and Value() accessors. The key must
// be string-like.
func (b *builder) pairShape(et reflect.Type, path string) (*PairShape, *Descriptor, *Descriptor, bool, error) {
	if hasCapability(et) {
		return nil, nil, nil, false, nil
	}

	pt, deref := et, false
	if pt.Kind() == reflect.Pointer {
		pt, deref = pt.Elem(), true
		if hasCapability(pt) {
			return nil, nil, nil, false, nil
		}
	}

	if pt.Kind() == reflect.Struct && exportedFieldCount(pt) == 2 {
		for _, names := range pairFieldNames {
			kf, ok1 := pt.FieldByName(names[0])
			vf, ok2 := pt.FieldByName(names[1])
			if !ok1 || !ok2 || len(kf.Index) != 1 || len(vf.Index) != 1 || !isStringLike(kf.Type) {
				continue
			}
			key, err := b.describe(kf.Type, path+"."+kf.Name)
			if err != nil {
				return nil, nil, nil, false, err
			}
			val, err := b.describe(vf.Type, path+"."+vf.Name)
			if err != nil {
				return nil, nil, nil, false, err
			}
			return &PairShape{Deref: deref, KeyIndex: kf.Index, ValueIndex: vf.Index}, key, val, true, nil
		}
	}

	if et.Kind() == reflect.Interface {
		return nil, nil, nil, false, nil
	}
	km, ok1 := et.MethodByName("Key")
	vm, ok2 := et.MethodByName("Value")
	if !ok1 || !ok2 || !isAccessor(km.Type) || !isAccessor(vm.Type) || !isStringLike(km.Type.Out(0)) {
		return nil, nil, nil, false, nil
	}
	key, err := b.describe(km.Type.Out(0), path+".Key()")
	if err != nil {
		return nil, nil, nil, false, err
	}
	val, err := b.describe(vm.Type.Out(0), path+".Value()")
	if err != nil {
		return nil, nil, nil, false, err
	}
	return &PairShape{Deref: deref}, key, val, true, nil
}

// isAccessor reports whether a method type (receiver first) takes no
// arguments and returns one result.
func isAccessor(mt reflect.Type) bool {
	return mt.NumIn() == 1 && mt.NumOut() == 1
}

func isStringLike(t reflect.Type) bool {
	if t.Kind() == reflect.String {
		return true
	}
	return t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer && t.Implements(textMarshalerType)
}

func hasCapability(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return false
	}
	return t == valueType || t.Implements(textMarshalerType) || t.Implements(mapperType) || t.Implements(sequencerType)
}

func exportedFieldCount(t reflect.Type) int {
	n := 0
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			n++
		}
	}
	return n
}
