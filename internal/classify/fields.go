package classify

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
)

// KeyCase controls how untagged struct field names become object keys.
type KeyCase string

const (
	KeyCaseNone       KeyCase = "none" // Go field name as written
	KeyCaseSnake      KeyCase = "snake"
	KeyCaseCamel      KeyCase = "camel"
	KeyCaseLowerCamel KeyCase = "lower_camel"
	KeyCaseKebab      KeyCase = "kebab"
)

// KeyCases lists the accepted key case names.
var KeyCases = []KeyCase{KeyCaseNone, KeyCaseSnake, KeyCaseCamel, KeyCaseLowerCamel, KeyCaseKebab}

// ParseKeyCase validates a key case name. The empty string means none.
func ParseKeyCase(name string) (KeyCase, error) {
	if name == "" {
		return KeyCaseNone, nil
	}
	for _, k := range KeyCases {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown key case %q", name)
}

// Apply converts a Go field name to an object key.
func (k KeyCase) Apply(name string) string {
	switch k {
	case KeyCaseSnake:
		return strcase.ToSnake(name)
	case KeyCaseCamel:
		return strcase.ToCamel(name)
	case KeyCaseLowerCamel:
		return strcase.ToLowerCamel(name)
	case KeyCaseKebab:
		return strcase.ToKebab(name)
	default:
		return name
	}
}

// Field is one serialized struct field.
type Field struct {
	Name      string // object key
	GoName    string
	Index     []int // for reflect.Value.FieldByIndex
	Type      reflect.Type
	OmitEmpty bool
	Desc      *Descriptor
}

// structFields builds the field table of t: exported fields in declaration
// order, json tag names and options honored, embedded structs without a tag
// name flattened. A shallower field hides a deeper one of the same name.
func structFields(t reflect.Type, keyCase KeyCase) []Field {
	type candidate struct {
		Field
		depth  int
		tagged bool
	}
	var all []candidate

	var walk func(t reflect.Type, index []int, depth int)
	walk = func(t reflect.Type, index []int, depth int) {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			tag := sf.Tag.Get("json")
			if tag == "-" {
				continue
			}
			name, opts, _ := strings.Cut(tag, ",")

			idx := make([]int, len(index)+1)
			copy(idx, index)
			idx[len(index)] = i

			if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
				walk(sf.Type, idx, depth+1)
				continue
			}
			if !sf.IsExported() {
				continue
			}

			tagged := name != ""
			if !tagged {
				name = keyCase.Apply(sf.Name)
			}
			all = append(all, candidate{
				Field: Field{
					Name:      name,
					GoName:    sf.Name,
					Index:     idx,
					Type:      sf.Type,
					OmitEmpty: hasOption(opts, "omitempty"),
				},
				depth:  depth,
				tagged: tagged,
			})
		}
	}
	walk(t, nil, 0)

	// Pick one field per name: shallowest first, then tagged over untagged,
	// then earliest declared.
	best := make(map[string]int, len(all))
	for i, c := range all {
		j, ok := best[c.Name]
		if !ok {
			best[c.Name] = i
			continue
		}
		prev := all[j]
		if c.depth < prev.depth || (c.depth == prev.depth && c.tagged && !prev.tagged) {
			best[c.Name] = i
		}
	}

	fields := make([]Field, 0, len(best))
	for i, c := range all {
		if best[c.Name] == i {
			fields = append(fields, c.Field)
		}
	}
	return fields
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

// FieldByKey finds the field for an object key: exact match first, then a
// case-insensitive match.
func (d *Descriptor) FieldByKey(key string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == key {
			return &d.Fields[i], true
		}
	}
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, key) {
			return &d.Fields[i], true
		}
	}
	return nil, false
}
