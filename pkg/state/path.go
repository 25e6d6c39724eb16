package state

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
)

// Path errors.
var (
	ErrEmptyPath   = errors.New("empty path")
	ErrInvalidPath = errors.New("invalid path format")
)

// ParsePath splits a dotted path such as "ams.trays.254.type" into its
// segments.
func ParsePath(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}
	if strings.HasPrefix(input, ".") || strings.HasSuffix(input, ".") || strings.Contains(input, "..") {
		return nil, ErrInvalidPath
	}
	return strings.Split(input, "."), nil
}

// Select returns the value at path, addressed by JSON field names and map
// keys. The second result is false when any segment is absent.
func Select(s *State, path string) (any, bool) {
	parts, err := ParsePath(path)
	if err != nil || s == nil {
		return nil, false
	}

	cur := reflect.ValueOf(*s)
	for _, part := range parts {
		for cur.Kind() == reflect.Pointer {
			if cur.IsNil() {
				return nil, false
			}
			cur = cur.Elem()
		}

		switch cur.Kind() {
		case reflect.Struct:
			f, ok := fieldByJSONName(cur, part)
			if !ok {
				return nil, false
			}
			cur = f

		case reflect.Map:
			key, ok := mapKey(cur.Type().Key(), part)
			if !ok {
				return nil, false
			}
			cur = cur.MapIndex(key)
			if !cur.IsValid() {
				return nil, false
			}

		case reflect.Slice:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= cur.Len() {
				return nil, false
			}
			cur = cur.Index(idx)

		default:
			return nil, false
		}
	}

	for cur.Kind() == reflect.Pointer {
		if cur.IsNil() {
			return nil, false
		}
		cur = cur.Elem()
	}
	if (cur.Kind() == reflect.Map || cur.Kind() == reflect.Slice) && cur.IsNil() {
		return nil, false
	}
	return cur.Interface(), true
}

func fieldByJSONName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		tagName, _, _ := strings.Cut(tag, ",")
		if tagName == "" {
			tagName = t.Field(i).Name
		}
		if tagName == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func mapKey(t reflect.Type, part string) (reflect.Value, bool) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(part).Convert(t), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(t), true
	default:
		return reflect.Value{}, false
	}
}
