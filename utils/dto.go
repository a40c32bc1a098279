package utils

import (
	"reflect"
	"strconv"
	"strings"
)

// NormalizeDTO trims string fields and rounds float64 fields on a pointer-to-struct DTO.
// Pointer fields are followed when non-nil; nils stay nil so GORM won't update them.
// A `normalize:"lower"` tag additionally lower-cases the string (emails); `normalize:"-"`
// leaves the field untouched (passwords).
func NormalizeDTO(dto any) {
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr {
		return
	}
	s := v.Elem()
	if s.Kind() != reflect.Struct {
		return
	}
	t := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() || t.Field(i).Tag.Get("normalize") == "-" {
			continue
		}
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				continue
			}
			f = f.Elem()
		}
		switch f.Kind() {
		case reflect.String:
			val := strings.TrimSpace(f.String())
			if t.Field(i).Tag.Get("normalize") == "lower" {
				val = strings.ToLower(val)
			}
			f.SetString(val)
		case reflect.Float64:
			f.SetFloat(Round2(f.Float()))
		}
	}
}

// UpdatesFromPtrDTO builds a map[string]any containing only non-nil *fields from a pointer DTO.
// The key is the `db` tag when present, else the `json` tag name.
func UpdatesFromPtrDTO(dto any) map[string]any {
	res := make(map[string]any)
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr {
		return res
	}
	s := v.Elem()
	if s.Kind() != reflect.Struct {
		return res
	}
	t := s.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := s.Field(i)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		name := sf.Tag.Get("db")
		if name == "-" {
			continue
		}
		if name == "" {
			jsonTag := sf.Tag.Get("json")
			if jsonTag == "" || jsonTag == "-" {
				continue
			}
			name = strings.Split(jsonTag, ",")[0]
		}
		res[name] = fv.Elem().Interface()
	}
	return res
}

func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}
