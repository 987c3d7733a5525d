package reactive

import (
	"math"
	"reflect"
)

// EqualFunc reports whether two values are the same for deduplication.
type EqualFunc[T any] func(a, b T) bool

// DefaultEqual is the equality used when none is configured.
// Basic kinds compare with ==, everything else with reflect.DeepEqual.
// NaN equals NaN, in float values and in float fields of structs and
// arrays, so writing a value back never counts as a change. NaN reached
// through a slice, map or pointer follows reflect.DeepEqual and is never
// equal; configure WithEqual for such types.
func DefaultEqual[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case int64:
		bv, ok := any(b).(int64)
		return ok && av == bv
	case int32:
		bv, ok := any(b).(int32)
		return ok && av == bv
	case uint:
		bv, ok := any(b).(uint)
		return ok && av == bv
	case uint64:
		bv, ok := any(b).(uint64)
		return ok && av == bv
	case float64:
		bv, ok := any(b).(float64)
		return ok && sameFloat(av, bv)
	case float32:
		bv, ok := any(b).(float32)
		return ok && sameFloat(float64(av), float64(bv))
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	default:
		if reflect.DeepEqual(a, b) {
			return true
		}
		return sameNaN(reflect.ValueOf(a), reflect.ValueOf(b))
	}
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// sameNaN compares values whose only DeepEqual mismatch may be NaN.
// It walks structs and arrays, which hold no pointers and so no cycles.
func sameNaN(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() || a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Float32, reflect.Float64:
		return sameFloat(a.Float(), b.Float())
	case reflect.Complex64, reflect.Complex128:
		ac, bc := a.Complex(), b.Complex()
		return sameFloat(real(ac), real(bc)) && sameFloat(imag(ac), imag(bc))
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !sameNaN(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !sameNaN(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.String:
		return a.String() == b.String()
	default:
		if a.CanInterface() && b.CanInterface() {
			return reflect.DeepEqual(a.Interface(), b.Interface())
		}
		return false
	}
}

// Comparable is an EqualFunc for comparable types that skips reflection.
func Comparable[T comparable](a, b T) bool {
	return a == b
}

// never treats every value as new. Used by snapshot nodes, where each
// recomputation already corresponds to an upstream change.
func never[T any](T, T) bool {
	return false
}
