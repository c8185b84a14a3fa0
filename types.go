package misc

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
)

const (
	VersionV1 uint16 = 1

	fixedHeaderSizeV1 = 16
)

// Magic is the 8-byte signature of a binary document file.
var Magic = [8]byte{'G', 'O', 'D', 'O', 'C', '\r', '\n', 0x1A}

// Format selects the on-disk representation used by Save and Load.
type Format uint8

const (
	FormatJSON Format = iota
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat maps a format name to a Format. "gob" is accepted as an alias
// for "binary".
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "binary", "gob":
		return FormatBinary, nil
	default:
		return 0, fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, name)
	}
}

type Compression uint16

const (
	CompNone Compression = 0x0
	CompZIP  Compression = 0x1
	CompZSTD Compression = 0x2
	CompLZ4  Compression = 0x3
	CompBR   Compression = 0x4
)

func (c Compression) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompZIP:
		return "zip"
	case CompZSTD:
		return "zstd"
	case CompLZ4:
		return "lz4"
	case CompBR:
		return "brotli"
	default:
		return fmt.Sprintf("compression(%d)", uint16(c))
	}
}

// ParseCompression maps a compression name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompNone, nil
	case "zip":
		return CompZIP, nil
	case "zstd":
		return CompZSTD, nil
	case "lz4":
		return CompLZ4, nil
	case "br", "brotli":
		return CompBR, nil
	default:
		return 0, fmt.Errorf("%w: unknown compression %q", ErrInvalidPayload, name)
	}
}

const (
	flagCompressionMask    uint16 = 0x000F
	flagHasUncompressedLen uint16 = 0x0010
)

// Document is an in-memory mapping persisted by Save and restored by Load.
//
// Values may be nil, booleans, integers, floats, strings, []byte, []any,
// nested Documents or map[string]any, integer-keyed maps and *Array.
//
// The binary format restores every value with its Go type. The JSON format
// keeps only what JSON can say: integers load as int (uint64 when too large),
// floats as float64, typed slices as []any, nested maps as map[string]any
// with string keys. Use an *Array where the element type must survive.
type Document map[string]any

// Equal reports whether d and o hold equal values. Arrays are compared with
// Array.Equal and blobs with bytes.Equal. Numbers compare by value, so
// int64(5), 5 and 5.0 are equal; slices compare element by element whatever
// their Go type; maps compare by entries, with integer keys matching their
// decimal strings. A Document loaded from JSON is therefore Equal to the one
// saved.
func (d Document) Equal(o Document) bool {
	return valuesEqual(map[string]any(d), map[string]any(o))
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case *Array:
		bv, ok := b.(*Array)
		return ok && av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	}
	if am, ok := stringKeyed(a); ok {
		bm, ok := stringKeyed(b)
		return ok && mapsEqual(am, bm)
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if eq, ok := numbersEqual(ra, rb); ok {
		return eq
	}
	if isSequence(ra) && isSequence(rb) {
		if ra.Len() != rb.Len() {
			return false
		}
		for i := range ra.Len() {
			if !valuesEqual(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// numbersEqual compares two numeric values by value. ok is false unless both
// are numbers.
func numbersEqual(a, b reflect.Value) (eq, ok bool) {
	if !isNumber(a) || !isNumber(b) {
		return false, false
	}
	switch {
	case a.CanInt() && b.CanInt():
		return a.Int() == b.Int(), true
	case a.CanUint() && b.CanUint():
		return a.Uint() == b.Uint(), true
	case a.CanInt() && b.CanUint():
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint(), true
	case a.CanUint() && b.CanInt():
		return b.Int() >= 0 && a.Uint() == uint64(b.Int()), true
	}
	return asFloat(a) == asFloat(b), true
}

func isNumber(v reflect.Value) bool {
	return v.CanInt() || v.CanUint() || v.CanFloat()
}

func asFloat(v reflect.Value) float64 {
	switch {
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	}
	return v.Float()
}

func isSequence(v reflect.Value) bool {
	k := v.Kind()
	return k == reflect.Slice || k == reflect.Array
}

func mapsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

// stringKeyed views a map as map[string]any, writing integer keys in decimal.
func stringKeyed(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, ok := mapKeyString(iter.Key())
		if !ok {
			return nil, false
		}
		out[key] = iter.Value().Interface()
	}
	return out, true
}
