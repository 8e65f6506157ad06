package structopt

import (
	"reflect"
)

// Overlay copies the set fields of src onto the fields of dst with the same name.
// A non-zero src field is set. A non-nil pointer is set too, even when it points at
// a zero value, which is how a caller overrides with zero. Nested structs are
// overlaid field by field, maps are merged key by key and non-empty slices replace
// dst's slice. Fields with no counterpart of an assignable type are ignored.
func Overlay[D, S any](dst *D, src *S) {
	if dst == nil || src == nil {
		return
	}
	overlayStruct(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func overlayStruct(dst, src reflect.Value) {
	if dst.Kind() != reflect.Struct || src.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < src.NumField(); i++ {
		field := src.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		d := dst.FieldByName(field.Name)
		if !d.IsValid() || !d.CanSet() {
			continue
		}
		overlay(d, src.Field(i))
	}
}

func overlay(dst, src reflect.Value) {
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return
		}
		target := dst
		if dst.Kind() == reflect.Pointer {
			if dst.IsNil() {
				dst.Set(reflect.New(dst.Type().Elem()))
			}
			target = dst.Elem()
		}
		elem := src.Elem()
		if elem.Kind() == reflect.Struct && target.Kind() == reflect.Struct {
			overlayStruct(target, elem)
			return
		}
		if elem.Type().AssignableTo(target.Type()) {
			target.Set(elem)
		}
		return
	}

	if src.IsZero() {
		return
	}
	switch src.Kind() {
	case reflect.Struct:
		overlayStruct(dst, src)
	case reflect.Map:
		if dst.Kind() != reflect.Map || !src.Type().AssignableTo(dst.Type()) {
			return
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
		}
		iter := src.MapRange()
		for iter.Next() {
			dst.SetMapIndex(iter.Key(), iter.Value())
		}
	case reflect.Slice:
		if src.Len() > 0 && src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
		}
	default:
		if src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
		}
	}
}
