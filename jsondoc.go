package misc

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
)

// Tagged sub-documents stand in for values JSON cannot represent natively:
//
//	{"type": "array", "dtype": "float32", "shape": [2, 10], "data": [...]}
//	{"type": "blob", "data": "<base64>"}
//
// A map of the caller's that would read back as a tag is wrapped on encode
// and unwrapped on decode:
//
//	{"type": "map", "data": {...}}
const (
	tagKey   = "type"
	tagArray = "array"
	tagBlob  = "blob"
	tagPlain = "map"
)

func encodeJSON(w io.Writer, doc Document, cfg saveConfig) error {
	if doc == nil {
		doc = Document{}
	}
	tree, err := tagValue(map[string]any(doc))
	if err != nil {
		return err
	}
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if cfg.indent != "" {
		enc.SetIndent("", cfg.indent)
	}
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

func decodeJSON(r io.Reader, cfg loadConfig) (Document, error) {
	b, err := readAll(io.LimitReader(r, int64(cfg.limits.MaxFileLen)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > cfg.limits.MaxFileLen {
		return nil, fmt.Errorf("%w: json document exceeds %d bytes", ErrLimitExceeded, cfg.limits.MaxFileLen)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return Document{}, nil
	}
	dec := gojson.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after json object", ErrInvalidFormat)
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level must be a json object", ErrInvalidFormat)
	}
	out, err := untagValue(top, cfg.limits)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is a tagged %T, not an object", ErrInvalidFormat, out)
	}
	return Document(m), nil
}

// tagValue walks v pre-order and returns a tree the JSON encoder can write,
// with arrays and blobs replaced by tagged sub-documents.
func tagValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v, nil
	case float64:
		return floatNumber(x, 64)
	case float32:
		return floatNumber(float64(x), 32)
	case *Array:
		if x == nil {
			return nil, nil
		}
		data := x.data
		if b, ok := data.([]uint8); ok {
			// []uint8 would otherwise be written as a base64 string.
			wide := make([]uint16, len(b))
			for i, e := range b {
				wide[i] = uint16(e)
			}
			data = wide
		}
		return map[string]any{
			tagKey:  tagArray,
			"dtype": string(x.dtype),
			"shape": x.Shape(),
			"data":  data,
		}, nil
	case []byte:
		return map[string]any{tagKey: tagBlob, "data": EncodeBlob(x)}, nil
	case Document:
		return tagMap(x)
	case map[string]any:
		return tagMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			t, err := tagValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}
	return tagReflect(reflect.ValueOf(v))
}

func tagMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, e := range m {
		t, err := tagValue(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = t
	}
	return wrapLookalike(out), nil
}

// wrapLookalike wraps m if decoding it would rebuild a tagged value.
func wrapLookalike(m map[string]any) map[string]any {
	_, blob := blobTag(m)
	_, plain := plainTag(m)
	if isArrayTag(m) || blob || plain {
		return map[string]any{tagKey: tagPlain, "data": m}
	}
	return m
}

// tagReflect handles typed maps and slices that may hold arrays. Integer map
// keys are written as decimal strings. Anything else is left to the encoder.
func tagReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := mapKeyString(iter.Key())
			if !ok {
				return rv.Interface(), nil
			}
			t, err := tagValue(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = t
		}
		return wrapLookalike(out), nil
	case reflect.Slice, reflect.Array:
		switch rv.Type().Elem().Kind() {
		case reflect.Interface, reflect.Map, reflect.Slice, reflect.Pointer, reflect.Float32, reflect.Float64:
		default:
			return rv.Interface(), nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			t, err := tagValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	case reflect.Float32, reflect.Float64:
		return floatNumber(rv.Float(), rv.Type().Bits())
	}
	return rv.Interface(), nil
}

func mapKeyString(k reflect.Value) (string, bool) {
	switch {
	case k.Kind() == reflect.String:
		return k.String(), true
	case k.CanInt():
		return strconv.FormatInt(k.Int(), 10), true
	case k.CanUint():
		return strconv.FormatUint(k.Uint(), 10), true
	}
	return "", false
}

// floatNumber formats f so that it reads back as a float, even when integral.
func floatNumber(f float64, bits int) (gojson.Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v has no json representation", ErrInvalidFormat, f)
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return gojson.Number(s), nil
}

// untagValue walks a decoded tree depth-first, rebuilding tagged
// sub-documents and resolving numbers.
func untagValue(v any, limits Limits) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if isArrayTag(x) {
			return decodeArrayTag(x, limits)
		}
		if data, ok := blobTag(x); ok {
			b, err := DecodeBlob(data)
			if err != nil {
				return nil, fmt.Errorf("%w: blob: %v", ErrInvalidFormat, err)
			}
			return b, nil
		}
		if inner, ok := plainTag(x); ok {
			return untagEntries(inner, limits)
		}
		return untagEntries(x, limits)
	case []any:
		for i, e := range x {
			u, err := untagValue(e, limits)
			if err != nil {
				return nil, err
			}
			x[i] = u
		}
		return x, nil
	case gojson.Number:
		return parseNumber(x)
	}
	return v, nil
}

func untagEntries(m map[string]any, limits Limits) (map[string]any, error) {
	for k, e := range m {
		u, err := untagValue(e, limits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		m[k] = u
	}
	return m, nil
}

func isArrayTag(m map[string]any) bool {
	if len(m) != 4 || m[tagKey] != tagArray {
		return false
	}
	for _, k := range []string{"dtype", "shape", "data"} {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func blobTag(m map[string]any) (string, bool) {
	if len(m) != 2 || m[tagKey] != tagBlob {
		return "", false
	}
	data, ok := m["data"].(string)
	return data, ok
}

func plainTag(m map[string]any) (map[string]any, bool) {
	if len(m) != 2 || m[tagKey] != tagPlain {
		return nil, false
	}
	data, ok := m["data"].(map[string]any)
	return data, ok
}

func decodeArrayTag(m map[string]any, limits Limits) (*Array, error) {
	name, ok := m["dtype"].(string)
	if !ok || !DType(name).Valid() {
		return nil, fmt.Errorf("%w: unknown dtype %v", ErrInvalidArray, m["dtype"])
	}
	dt := DType(name)
	rawShape, ok := m["shape"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: shape must be a list", ErrInvalidArray)
	}
	shape := make([]int, len(rawShape))
	for i, d := range rawShape {
		num, ok := d.(gojson.Number)
		if !ok {
			return nil, fmt.Errorf("%w: shape entry %v is not a number", ErrInvalidArray, d)
		}
		n, err := strconv.Atoi(num.String())
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad dimension %s", ErrInvalidArray, num)
		}
		shape[i] = n
	}
	n, err := shapeSize(shape)
	if err != nil {
		return nil, err
	}
	if n > limits.MaxArrayElements {
		return nil, fmt.Errorf("%w: array of %d elements", ErrLimitExceeded, n)
	}
	data, ok := m["data"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: data must be a list", ErrInvalidArray)
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrInvalidArray, shape, n, len(data))
	}
	values := reflect.MakeSlice(dt.sliceType(), n, n)
	for i, e := range data {
		num, ok := e.(gojson.Number)
		if !ok {
			return nil, fmt.Errorf("%w: element %d (%v) is not a number", ErrInvalidArray, i, e)
		}
		if err := setElement(values.Index(i), num.String()); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidArray, i, err)
		}
	}
	return &Array{dtype: dt, shape: shape, data: values.Interface()}, nil
}

// setElement parses s at the bit size of elem, rejecting out-of-range values.
func setElement(elem reflect.Value, s string) error {
	bits := elem.Type().Bits()
	switch {
	case elem.CanInt():
		i, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return err
		}
		elem.SetInt(i)
	case elem.CanUint():
		u, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return err
		}
		elem.SetUint(u)
	default:
		f, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return err
		}
		elem.SetFloat(f)
	}
	return nil
}

// parseNumber maps integer literals to int (uint64 when too large for int)
// and everything else to float64.
func parseNumber(n gojson.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 0); err == nil {
			return int(i), nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: number %s: %v", ErrInvalidFormat, s, err)
	}
	return f, nil
}
