package classify

import (
	"iter"
	"net/netip"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/registry"
	"github.com/mcncl/goserial/internal/value"
)

type greeting struct {
	Key   string
	Value string
}

type pairFS struct {
	First  string
	Second int
}

type accessorPair struct{ k, v string }

func (p accessorPair) Key() string   { return p.k }
func (p accessorPair) Value() string { return p.v }

type tree struct {
	Data     []float64 `json:"data"`
	Children []*tree   `json:"children,omitempty"`
}

type withFunc struct {
	Name    string
	Handler func()
}

type nested struct {
	Inner struct {
		Ch chan int
	}
}

type bag struct{ items []string }

func (b bag) Elements() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, it := range b.items {
			if !yield(it) {
				return
			}
		}
	}
}

type attrs map[string]int

type entries struct{}

func (entries) Entries() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {}
}

func TestDescribe_Categories(t *testing.T) {
	c := New(registry.New())

	tests := []struct {
		name       string
		typ        reflect.Type
		category   Category
		shape      Shape
		stringLike bool
	}{
		{"bool", reflect.TypeFor[bool](), Scalar, ShapeBool, false},
		{"int", reflect.TypeFor[int64](), Scalar, ShapeInt, false},
		{"uint", reflect.TypeFor[uint8](), Scalar, ShapeUint, false},
		{"float", reflect.TypeFor[float32](), Scalar, ShapeFloat, false},
		{"string", reflect.TypeFor[string](), Scalar, ShapeString, true},
		{"text marshaler", reflect.TypeFor[netip.Addr](), Scalar, ShapeText, true},
		{"time", reflect.TypeFor[time.Time](), Scalar, ShapeText, true},
		{"value", reflect.TypeFor[value.Value](), Scalar, ShapeValue, false},
		{"any", reflect.TypeFor[any](), Scalar, ShapeInterface, false},
		{"slice", reflect.TypeFor[[]int](), Sequence, ShapeList, false},
		{"array", reflect.TypeFor[[3]string](), Sequence, ShapeList, false},
		{"string keyed map", reflect.TypeFor[map[string][]int](), KeyValueMapping, ShapeMap, false},
		{"named map", reflect.TypeFor[attrs](), KeyValueMapping, ShapeMap, false},
		{"int keyed map", reflect.TypeFor[map[int]string](), Sequence, ShapeEntries, false},
		{"struct", reflect.TypeFor[tree](), KeyValueMapping, ShapeStruct, false},
		{"pointer to struct", reflect.TypeFor[*tree](), KeyValueMapping, ShapePointer, false},
		{"pointer to string", reflect.TypeFor[*string](), Scalar, ShapePointer, true},
		{"pair slice", reflect.TypeFor[[]greeting](), KeyValueMapping, ShapePairs, false},
		{"pointer pair slice", reflect.TypeFor[[]*greeting](), KeyValueMapping, ShapePairs, false},
		{"first second pairs", reflect.TypeFor[[2]pairFS](), KeyValueMapping, ShapePairs, false},
		{"accessor pairs", reflect.TypeFor[[]accessorPair](), KeyValueMapping, ShapePairs, false},
		{"sequencer", reflect.TypeFor[bag](), Sequence, ShapeSequencer, false},
		{"mapper", reflect.TypeFor[entries](), KeyValueMapping, ShapeMapper, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Describe(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.category, d.Category)
			assert.Equal(t, tt.shape, d.Shape)
			assert.Equal(t, tt.stringLike, d.StringLike)
		})
	}
}

func TestDescribe_Unclassifiable(t *testing.T) {
	c := New(registry.New())

	tests := []struct {
		name string
		typ  reflect.Type
		path string
	}{
		{"chan", reflect.TypeFor[chan int](), "chan int"},
		{"func field", reflect.TypeFor[withFunc](), "classify.withFunc.Handler"},
		{"nested chan", reflect.TypeFor[[]nested](), "[]classify.nested[].Inner.Ch"},
		{"complex", reflect.TypeFor[map[string]complex128](), "map[string]complex128{}"},
		{"uintptr", reflect.TypeFor[uintptr](), "uintptr"},
		{"non-empty interface", reflect.TypeFor[[]error](), "[]error[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Describe(tt.typ)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUnclassifiable)
			assert.ErrorIs(t, err, &apperrors.AppError{Type: apperrors.ErrorTypeClassification})
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestDescribe_RecursiveType(t *testing.T) {
	c := New(registry.New())

	d, err := c.Describe(reflect.TypeFor[tree]())
	require.NoError(t, err)
	require.Len(t, d.Fields, 2)

	assert.Equal(t, "data", d.Fields[0].Name)
	assert.Equal(t, "children", d.Fields[1].Name)
	assert.True(t, d.Fields[1].OmitEmpty)

	children := d.Fields[1].Desc
	assert.Equal(t, ShapeList, children.Shape)
	assert.Equal(t, ShapePointer, children.Elem.Shape)
	assert.Equal(t, KeyValueMapping, children.Elem.Category)
	assert.Same(t, d, children.Elem.Elem, "recursion must close on the same descriptor")
}

func TestDescribe_OverrideRescuesOpaqueType(t *testing.T) {
	reg := registry.New()
	require.NoError(t, registry.Register[withFunc](reg, registry.JSON, registry.Override{
		Render: func(enc registry.Encoder, v any) error { return nil },
	}))
	c := New(reg)

	d, err := c.Describe(reflect.TypeFor[[]withFunc]())
	require.NoError(t, err)
	assert.Equal(t, ShapeOpaque, d.Elem.Shape)
	assert.True(t, d.Elem.HasOverride())

	_, ok := d.Elem.Override(registry.JSON)
	assert.True(t, ok)
	_, ok = d.Elem.Override(registry.Text)
	assert.False(t, ok)
	assert.True(t, reg.Sealed())
}

func TestDescribe_FailureIsNotCached(t *testing.T) {
	c := New(registry.New())
	_, err := c.Describe(reflect.TypeFor[withFunc]())
	require.Error(t, err)

	_, ok := c.cache.Load(reflect.TypeFor[withFunc]())
	assert.False(t, ok)
}

func TestDescribe_PairShape(t *testing.T) {
	c := New(registry.New())

	d, err := c.Describe(reflect.TypeFor[[]*greeting]())
	require.NoError(t, err)
	require.NotNil(t, d.Pair)
	assert.True(t, d.Pair.Deref)
	assert.False(t, d.Pair.Methods())
	assert.True(t, d.Key.StringLike)

	k, v, ok := d.Pair.Split(reflect.ValueOf(&greeting{Key: "Hello", Value: "Goodbye"}))
	require.True(t, ok)
	assert.Equal(t, "Hello", k.String())
	assert.Equal(t, "Goodbye", v.String())

	_, _, ok = d.Pair.Split(reflect.ValueOf((*greeting)(nil)))
	assert.False(t, ok)

	d, err = c.Describe(reflect.TypeFor[[]accessorPair]())
	require.NoError(t, err)
	assert.True(t, d.Pair.Methods())
	k, v, ok = d.Pair.Split(reflect.ValueOf(accessorPair{k: "a", v: "b"}))
	require.True(t, ok)
	assert.Equal(t, "a", k.String())
	assert.Equal(t, "b", v.String())
}

func TestDescribe_NotAPair(t *testing.T) {
	type keyed struct {
		Key   int
		Value string
	}
	type wide struct {
		Key, Value, Comment string
	}
	c := New(registry.New())

	for _, typ := range []reflect.Type{reflect.TypeFor[[]keyed](), reflect.TypeFor[[]wide]()} {
		d, err := c.Describe(typ)
		require.NoError(t, err)
		assert.Equal(t, Sequence, d.Category, typ.String())
	}
}

func TestCheck(t *testing.T) {
	c := New(registry.New())
	assert.NoError(t, c.Check(1, "x", tree{}, nil, map[string]any{}))

	err := c.Check(1, withFunc{})
	assert.ErrorIs(t, err, apperrors.ErrUnclassifiable)
}

func TestDescribe_ConcurrentCallersShareDescriptors(t *testing.T) {
	c := New(registry.New())
	typ := reflect.TypeFor[map[string][]*tree]()

	var wg sync.WaitGroup
	results := make([]*Descriptor, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := c.Describe(typ)
			assert.NoError(t, err)
			results[i] = d
		}(i)
	}
	wg.Wait()

	for _, d := range results[1:] {
		assert.Same(t, results[0], d)
	}
}

func TestDescribe_NilType(t *testing.T) {
	_, err := New(registry.New()).Describe(nil)
	assert.ErrorIs(t, err, apperrors.ErrUnclassifiable)
}

func TestIsEmpty(t *testing.T) {
	var nilPtr *int
	tests := []struct {
		name  string
		v     any
		empty bool
	}{
		{"zero int", 0, true},
		{"int", 3, false},
		{"empty string", "", true},
		{"false", false, true},
		{"nil slice", []int(nil), true},
		{"empty map", map[string]int{}, true},
		{"nil pointer", nilPtr, true},
		{"null value", value.NullValue(), true},
		{"number value", value.Number(0), false},
		{"struct", tree{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.empty, IsEmpty(reflect.ValueOf(tt.v)))
		})
	}
}
