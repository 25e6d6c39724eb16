package state

import (
	"reflect"
)

// Diff computes the minimal patch that turns prev into next.
// It returns false when nothing outside Meta differs. A nil prev is treated
// as an empty snapshot.
func Diff(prev, next *State) (*State, bool) {
	if next == nil {
		return nil, false
	}
	pv := reflect.ValueOf(State{})
	if prev != nil {
		pv = reflect.ValueOf(*prev)
	}

	out, changed := diffStruct(pv, reflect.ValueOf(*next))
	if !changed {
		return nil, false
	}
	s := out.Interface().(State)
	return &s, true
}

// Equal reports whether a and b carry the same values outside Meta.
func Equal(a, b *State) bool {
	if a == nil || b == nil {
		return a == b
	}
	_, ab := Diff(a, b)
	_, ba := Diff(b, a)
	return !ab && !ba
}

func diffStruct(prev, next reflect.Value) (reflect.Value, bool) {
	t := next.Type()
	out := reflect.New(t).Elem()
	changed := false

	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("diff") == "-" {
			continue
		}
		pf, nf := prev.Field(i), next.Field(i)

		if isValueField(nf.Type()) {
			// Identity fields travel with every patched record.
			out.Field(i).Set(nf)
			if !reflect.DeepEqual(pf.Interface(), nf.Interface()) {
				changed = true
			}
			continue
		}

		if d, ok := diffValue(pf, nf); ok {
			out.Field(i).Set(d)
			changed = true
		}
	}
	return out, changed
}

func diffValue(prev, next reflect.Value) (reflect.Value, bool) {
	switch next.Kind() {
	case reflect.Pointer:
		if next.IsNil() {
			return reflect.Value{}, false
		}
		if prev.IsNil() {
			return cloneValue(next), true
		}
		if isRecord(next.Type().Elem()) {
			d, ok := diffStruct(prev.Elem(), next.Elem())
			if !ok {
				return reflect.Value{}, false
			}
			p := reflect.New(next.Type().Elem())
			p.Elem().Set(d)
			return p, true
		}
		if reflect.DeepEqual(prev.Elem().Interface(), next.Elem().Interface()) {
			return reflect.Value{}, false
		}
		return cloneValue(next), true

	case reflect.Map:
		if next.Len() == 0 {
			return reflect.Value{}, false
		}
		var m reflect.Value
		iter := next.MapRange()
		for iter.Next() {
			var (
				d  reflect.Value
				ok bool
			)
			old := reflect.Value{}
			if prev.Len() > 0 {
				old = prev.MapIndex(iter.Key())
			}
			switch {
			case !old.IsValid():
				d, ok = cloneValue(iter.Value()), true
			case isRecord(iter.Value().Type()):
				d, ok = diffStruct(old, iter.Value())
			default:
				d, ok = cloneValue(iter.Value()), !reflect.DeepEqual(old.Interface(), iter.Value().Interface())
			}
			if !ok {
				continue
			}
			if !m.IsValid() {
				m = reflect.MakeMap(next.Type())
			}
			m.SetMapIndex(iter.Key(), d)
		}
		return m, m.IsValid()

	case reflect.Slice:
		if next.IsNil() {
			return reflect.Value{}, false
		}
		if !prev.IsNil() && reflect.DeepEqual(prev.Interface(), next.Interface()) {
			return reflect.Value{}, false
		}
		return cloneValue(next), true

	case reflect.Struct:
		return diffStruct(prev, next)

	default:
		if reflect.DeepEqual(prev.Interface(), next.Interface()) {
			return reflect.Value{}, false
		}
		return next, true
	}
}

// isValueField reports whether t is a plain scalar carried by value inside a
// record rather than an optional leaf.
func isValueField(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Struct, reflect.Interface:
		return false
	default:
		return true
	}
}
