package util

import (
	"reflect"
	"time"
)

// copyKey identifies a map, slice or pointer already being copied. Slices that
// share a backing array but differ in length are distinct values, hence len.
type copyKey struct {
	addr uintptr
	typ  reflect.Type
	len  int
}

// CycleDetectionContext records the copies made during a single DeepCopy call
// so shared or cyclic references are copied once and stay shared in the copy.
// It is exported for benchmarks in other packages.
type CycleDetectionContext map[copyKey]reflect.Value

// DeepCopy returns a deep copy of src. Maps, slices, arrays, pointers and the
// exported fields of structs are copied recursively; unexported struct fields
// are copied by assignment. Cyclic structures are supported.
//
// State values are usually decoded JSON (maps, slices and scalars), which take
// a fast path that avoids reflection.
func DeepCopy(src interface{}) interface{} {
	if src == nil {
		return nil
	}
	ctx := make(CycleDetectionContext)
	return copyAny(src, ctx)
}

// DeepCopyMap is DeepCopy for the common map[string]interface{} case. A nil
// map yields an empty, non-nil map.
func DeepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return make(map[string]interface{})
	}
	ctx := make(CycleDetectionContext)
	return copyStringMap(src, ctx)
}

func copyAny(src interface{}, ctx CycleDetectionContext) interface{} {
	switch v := src.(type) {
	case nil:
		return nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128, time.Time, time.Duration:
		return v
	case map[string]interface{}:
		if v == nil {
			return v
		}
		return copyStringMap(v, ctx)
	case []interface{}:
		if v == nil {
			return v
		}
		return copyInterfaceSlice(v, ctx)
	case []string:
		if v == nil {
			return v
		}
		return append([]string(nil), v...)
	case map[string]string:
		if v == nil {
			return v
		}
		cpy := make(map[string]string, len(v))
		for k, s := range v {
			cpy[k] = s
		}
		return cpy
	default:
		out := copyValue(reflect.ValueOf(src), ctx)
		if !out.IsValid() {
			return nil
		}
		return out.Interface()
	}
}

func copyStringMap(src map[string]interface{}, ctx CycleDetectionContext) map[string]interface{} {
	key := copyKey{addr: reflect.ValueOf(src).Pointer(), typ: reflect.TypeOf(src)}
	if seen, ok := ctx[key]; ok {
		return seen.Interface().(map[string]interface{})
	}
	cpy := make(map[string]interface{}, len(src))
	ctx[key] = reflect.ValueOf(cpy)
	for k, v := range src {
		cpy[k] = copyAny(v, ctx)
	}
	return cpy
}

func copyInterfaceSlice(src []interface{}, ctx CycleDetectionContext) []interface{} {
	key := copyKey{addr: reflect.ValueOf(src).Pointer(), typ: reflect.TypeOf(src), len: len(src)}
	if seen, ok := ctx[key]; ok {
		return seen.Interface().([]interface{})
	}
	cpy := make([]interface{}, len(src))
	ctx[key] = reflect.ValueOf(cpy)
	for i, v := range src {
		cpy[i] = copyAny(v, ctx)
	}
	return cpy
}

// copyValue is the reflection fallback. It always returns a value assignable
// to original's type, or the invalid Value when original is invalid.
func copyValue(original reflect.Value, ctx CycleDetectionContext) reflect.Value {
	if !original.IsValid() {
		return original
	}
	typ := original.Type()

	switch original.Kind() {
	case reflect.Ptr:
		if original.IsNil() {
			return reflect.Zero(typ)
		}
		key := copyKey{addr: original.Pointer(), typ: typ}
		if seen, ok := ctx[key]; ok {
			return seen
		}
		ptr := reflect.New(typ.Elem())
		ctx[key] = ptr
		ptr.Elem().Set(copyValue(original.Elem(), ctx))
		return ptr

	case reflect.Interface:
		if original.IsNil() {
			return reflect.Zero(typ)
		}
		inner := copyValue(original.Elem(), ctx)
		out := reflect.New(typ).Elem()
		out.Set(inner)
		return out

	case reflect.Map:
		if original.IsNil() {
			return reflect.Zero(typ)
		}
		key := copyKey{addr: original.Pointer(), typ: typ}
		if seen, ok := ctx[key]; ok {
			return seen
		}
		cpy := reflect.MakeMapWithSize(typ, original.Len())
		ctx[key] = cpy
		iter := original.MapRange()
		for iter.Next() {
			cpy.SetMapIndex(copyValue(iter.Key(), ctx), copyValue(iter.Value(), ctx))
		}
		return cpy

	case reflect.Slice:
		if original.IsNil() {
			return reflect.Zero(typ)
		}
		key := copyKey{addr: original.Pointer(), typ: typ, len: original.Len()}
		if seen, ok := ctx[key]; ok {
			return seen
		}
		cpy := reflect.MakeSlice(typ, original.Len(), original.Len())
		ctx[key] = cpy
		for i := 0; i < original.Len(); i++ {
			cpy.Index(i).Set(copyValue(original.Index(i), ctx))
		}
		return cpy

	case reflect.Array:
		cpy := reflect.New(typ).Elem()
		for i := 0; i < original.Len(); i++ {
			cpy.Index(i).Set(copyValue(original.Index(i), ctx))
		}
		return cpy

	case reflect.Struct:
		if typ == reflect.TypeOf(time.Time{}) {
			return original
		}
		cpy := reflect.New(typ).Elem()
		cpy.Set(original)
		for i := 0; i < original.NumField(); i++ {
			if !typ.Field(i).IsExported() {
				continue
			}
			cpy.Field(i).Set(copyValue(original.Field(i), ctx))
		}
		return cpy

	default:
		return original
	}
}
