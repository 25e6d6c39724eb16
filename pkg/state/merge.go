package state

import (
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Merge returns the result of applying patch on top of prev.
// A nil prev yields a copy of patch. Neither argument is modified.
func Merge(prev, patch *State) *State {
	if patch == nil {
		return Clone(prev)
	}
	if prev == nil {
		return Clone(patch)
	}

	out := mergeStruct(reflect.ValueOf(*prev), reflect.ValueOf(*patch))
	s := out.Interface().(State)
	return &s
}

// Clone returns a deep copy of s.
func Clone(s *State) *State {
	if s == nil {
		return nil
	}
	c := cloneValue(reflect.ValueOf(*s)).Interface().(State)
	return &c
}

// mergeStruct merges two values of the same struct type field by field.
func mergeStruct(prev, patch reflect.Value) reflect.Value {
	out := reflect.New(patch.Type()).Elem()
	for i := 0; i < patch.NumField(); i++ {
		out.Field(i).Set(mergeValue(prev.Field(i), patch.Field(i)))
	}
	return out
}

func mergeValue(prev, patch reflect.Value) reflect.Value {
	switch patch.Kind() {
	case reflect.Pointer:
		if patch.IsNil() {
			return cloneValue(prev)
		}
		if prev.IsNil() || !isRecord(patch.Type().Elem()) {
			return cloneValue(patch)
		}
		p := reflect.New(patch.Type().Elem())
		p.Elem().Set(mergeStruct(prev.Elem(), patch.Elem()))
		return p

	case reflect.Map:
		if patch.Len() == 0 {
			return cloneValue(prev)
		}
		if prev.Len() == 0 {
			return cloneValue(patch)
		}
		m := reflect.MakeMapWithSize(patch.Type(), prev.Len()+patch.Len())
		iter := prev.MapRange()
		for iter.Next() {
			m.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		iter = patch.MapRange()
		for iter.Next() {
			existing := m.MapIndex(iter.Key())
			if existing.IsValid() && isRecord(iter.Value().Type()) {
				m.SetMapIndex(iter.Key(), mergeStruct(existing, iter.Value()))
				continue
			}
			m.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return m

	case reflect.Slice:
		if patch.IsNil() {
			return cloneValue(prev)
		}
		return cloneValue(patch)

	case reflect.Struct:
		if patch.Type() == timeType {
			if patch.IsZero() {
				return prev
			}
			return patch
		}
		return mergeStruct(prev, patch)

	default:
		return patch
	}
}

// isRecord reports whether t is merged field by field rather than replaced.
func isRecord(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(cloneValue(v.Elem()))
		return p

	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		m := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return m

	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		s := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			s.Index(i).Set(cloneValue(v.Index(i)))
		}
		return s

	case reflect.Struct:
		if v.Type() == timeType {
			return v
		}
		s := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			s.Field(i).Set(cloneValue(v.Field(i)))
		}
		return s

	default:
		return v
	}
}
