// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"bytes"
	"math"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// UnmarshalValue decodes msgpack data into v, which must be a pointer, and
// puts the result in canonical form.
//
// Description:
//
//	Concrete types decode to themselves. Values held in interfaces (a
//	DB[any] payload, or an `any` field) lose their Go type on the wire and
//	come back as:
//
//	  integers  -> int64 (uint64 only above math.MaxInt64)
//	  floats    -> float64
//	  maps      -> map[string]any
//	  arrays    -> []any
//	  []byte    -> string
//
//	Every time.Time, typed or dynamic, comes back in UTC. The instant is
//	preserved; the location is not stored.
//
//	Storing values already in canonical form makes Load(Write(db)) equal
//	to db under reflect.DeepEqual.
func UnmarshalValue(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(v); err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().Set(canonicalize(rv.Elem()))
	}
	return nil
}

var timeType = reflect.TypeFor[time.Time]()

// canonicalize returns v with times in UTC and dynamic unsigned integers
// narrowed to int64. Slices, maps and pointees are updated in place.
func canonicalize(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	if v.Type() == timeType {
		return reflect.ValueOf(v.Interface().(time.Time).UTC())
	}

	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			e := v.Elem()
			e.Set(canonicalize(e))
		}

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		inner := canonicalize(v.Elem())
		if inner.Kind() == reflect.Uint64 && inner.Uint() <= math.MaxInt64 {
			inner = reflect.ValueOf(int64(inner.Uint()))
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range out.NumField() {
			if f := out.Field(i); f.CanSet() {
				f.Set(canonicalize(f))
			}
		}
		return out

	case reflect.Array:
		if isScalar(v.Type().Elem()) {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range out.Len() {
			e := out.Index(i)
			e.Set(canonicalize(e))
		}
		return out

	case reflect.Slice:
		if v.IsNil() || isScalar(v.Type().Elem()) {
			return v
		}
		for i := range v.Len() {
			e := v.Index(i)
			e.Set(canonicalize(e))
		}

	case reflect.Map:
		if v.IsNil() || isScalar(v.Type().Elem()) {
			return v
		}
		keys := v.MapKeys()
		for _, k := range keys {
			v.SetMapIndex(k, canonicalize(v.MapIndex(k)))
		}
	}
	return v
}

// isScalar reports whether values of t can hold neither a time nor an
// interface.
func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
