package view

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Resolve walks a dotted path through maps, structs, pointers and slices.
// Struct fields match by json tag name first, then by field name. Any missing
// step yields nil.
func Resolve(path string, value any) any {
	for _, key := range strings.Split(path, ".") {
		if value == nil {
			return nil
		}
		value = lookup(value, key)
	}
	return value
}

func lookup(value any, key string) any {
	if key == "" {
		return nil
	}

	switch v := value.(type) {
	case map[string]any:
		return v[key]
	case map[string]string:
		s, found := v[key]
		if !found {
			return nil
		}
		return s
	}

	rv := indirect(reflect.ValueOf(value))
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		item := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !item.IsValid() {
			return nil
		}
		return item.Interface()
	case reflect.Struct:
		return structField(rv, key)
	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 || index >= rv.Len() {
			return nil
		}
		return rv.Index(index).Interface()
	}

	return nil
}

func structField(rv reflect.Value, key string) any {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == key || field.Name == key {
			return rv.Field(i).Interface()
		}
	}
	return nil
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func elements(value any) ([]any, bool) {
	if items, ok := value.([]any); ok {
		return items, true
	}

	rv := indirect(reflect.ValueOf(value))
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// Truthy reports whether a resolved value enables an {{#if}} block. nil,
// false, zero numbers, NaN, empty strings, nil pointers and empty
// collections are false.
func Truthy(value any) bool {
	if value == nil {
		return false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.String:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	case reflect.Slice, reflect.Map:
		return !rv.IsNil() && rv.Len() > 0
	case reflect.Array:
		return rv.Len() > 0
	}

	return true
}

// Format renders a resolved value as text.
func Format(value any) string {
	if value == nil {
		return ""
	}

	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	}

	return fmt.Sprint(value)
}
