package trcuser

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
)

// Accessor is implemented by attribute values which expose named fields to
// attribute paths. Field should return the value of the named field, matched
// case-sensitively, and true; or false if the value has no such field.
type Accessor interface {
	Field(name string) (any, bool)
}

// AccessorFunc adapts a function to an Accessor.
type AccessorFunc func(name string) (any, bool)

// Field implements Accessor.
func (f AccessorFunc) Field(name string) (any, bool) { return f(name) }

// Fields is a simple Accessor over a fixed set of named values.
type Fields map[string]any

// Field implements Accessor.
func (f Fields) Field(name string) (any, bool) {
	v, ok := f[name]
	return v, ok
}

// field returns the named field of v. Besides Accessor, decoded JSON objects
// and string maps are traversable, so that values read back from external
// session stores resolve the same way as in-memory values.
func field(v any, name string) (any, bool) {
	switch x := v.(type) {
	case Accessor:
		return x.Field(name)
	case map[string]any:
		fv, ok := x[name]
		return fv, ok
	case map[string]string:
		fv, ok := x[name]
		return fv, ok
	default:
		return nil, false
	}
}

// Text returns the canonical string form of a leaf value, and true, or the
// empty string and false if the value is absent. Absent values are nil, typed
// nil pointers, and anything whose string form is empty.
//
// Strings are returned as-is, byte slices as UTF-8, [fmt.Stringer] values via
// String, [encoding.TextMarshaler] values via MarshalText, booleans as "true"
// or "false", integers in base 10, and floats in the shortest representation
// that round-trips ('g' format). Anything else is formatted with [fmt.Sprint].
func Text(v any) (string, bool) {
	if isNil(v) {
		return "", false
	}

	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case fmt.Stringer:
		s = x.String()
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return "", false
		}
		s = string(b)
	case bool:
		s = strconv.FormatBool(x)
	case int:
		s = strconv.FormatInt(int64(x), 10)
	case int8:
		s = strconv.FormatInt(int64(x), 10)
	case int16:
		s = strconv.FormatInt(int64(x), 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int64:
		s = strconv.FormatInt(x, 10)
	case uint:
		s = strconv.FormatUint(uint64(x), 10)
	case uint8:
		s = strconv.FormatUint(uint64(x), 10)
	case uint16:
		s = strconv.FormatUint(uint64(x), 10)
	case uint32:
		s = strconv.FormatUint(uint64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case float32:
		s = strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		s = strconv.FormatFloat(x, 'g', -1, 64)
	default:
		s = fmt.Sprint(x)
	}

	return s, s != ""
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
