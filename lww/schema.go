package lww

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/kevinxiao27/consistent/util"
	"github.com/puzpuzpuz/xsync/v3"
)

type field struct {
	name  string
	index int
	typ   reflect.Type
}

// schema maps the JSON names of a struct's exported fields to the fields
// themselves. Records address fields by these names.
type schema struct {
	typ    reflect.Type
	fields []field
	byName map[string]int
}

var schemas = xsync.NewMapOf[reflect.Type, *schema]()

func schemaFor[T any]() (*schema, error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, typ)
	}
	s, _ := schemas.LoadOrCompute(typ, func() *schema { return buildSchema(typ) })
	return s, nil
}

func buildSchema(typ reflect.Type) *schema {
	s := &schema{typ: typ, byName: make(map[string]int)}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		s.byName[name] = len(s.fields)
		s.fields = append(s.fields, field{name: name, index: i, typ: f.Type})
	}
	return s
}

func (s *schema) lookup(name string) (field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return field{}, false
	}
	return s.fields[i], true
}

func (s *schema) names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// mutable lists every field not in ignore, in declaration order.
func (s *schema) mutable(ignore []string) []string {
	return util.Filter(s.names(), func(name string) bool {
		return !slices.Contains(ignore, name)
	})
}

func (s *schema) checkIgnore(ignore []string) error {
	for _, name := range ignore {
		if _, ok := s.lookup(name); !ok {
			return fmt.Errorf("%w: ignored field %q on %s", ErrUnknownField, name, s.typ)
		}
	}
	return nil
}

func (s *schema) get(rv reflect.Value, name string) any {
	f, ok := s.lookup(name)
	if !ok {
		return nil
	}
	return rv.Field(f.index).Interface()
}

// set assigns value to the named field of rv, which must be addressable.
func (s *schema) set(rv reflect.Value, name string, value any) error {
	f, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownField, name, s.typ)
	}
	dst := rv.Field(f.index)
	if value == nil {
		switch f.typ.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			dst.SetZero()
			return nil
		}
		return fmt.Errorf("%w: %q cannot be nil", ErrFieldType, name)
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(f.typ):
		dst.Set(v)
	case basic(v.Kind()) && v.Kind() == f.typ.Kind():
		// A string for a named string type, and the like.
		dst.Set(v.Convert(f.typ))
	default:
		return fmt.Errorf("%w: %q wants %s, got %s", ErrFieldType, name, f.typ, v.Type())
	}
	return nil
}

func basic(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// copyField copies one field from src to dst; both must be values of s.typ
// and dst must be addressable.
func (s *schema) copyField(dst, src reflect.Value, name string) {
	if f, ok := s.lookup(name); ok {
		dst.Field(f.index).Set(src.Field(f.index))
	}
}

// Fields returns the mutable field names of T given its ignored identity
// fields, in declaration order.
func Fields[T any](ignore []string) ([]string, error) {
	s, err := schemaFor[T]()
	if err != nil {
		return nil, err
	}
	if err := s.checkIgnore(ignore); err != nil {
		return nil, err
	}
	return s.mutable(ignore), nil
}

// AllFields returns every field name of T in declaration order.
func AllFields[T any]() ([]string, error) {
	s, err := schemaFor[T]()
	if err != nil {
		return nil, err
	}
	return s.names(), nil
}
