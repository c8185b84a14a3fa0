package misc

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var arrayComparer = cmp.Comparer(func(a, b *Array) bool { return a.Equal(b) })

func sampleArrays(t *testing.T) Document {
	t.Helper()
	arange, err := Arange(20, Float32)
	if err != nil {
		t.Fatal(err)
	}
	a, err := arange.Reshape(2, -1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := a.Ravel().Slice(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	first, err := a.At(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return Document{"a": a, "b": b, "c": Scalar(first.(float32))}
}

func TestJSONSimple(t *testing.T) {
	doc := Document{"a": 1, "b": "bb", "3": "33", "mock": map[string]any{"mock": true}}
	path := filepath.Join(t.TempDir(), "test")
	if err := SaveJSON(path, doc); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON empty: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty document, got %#v", got)
	}

	_, err = LoadJSON(path + "_bis")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveEmptyThenTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := SaveJSON(path, Document{}); err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty document, got %#v", got)
	}
}

func TestLoadMissing_BothFormats(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatBinary} {
		t.Run(format.String(), func(t *testing.T) {
			_, err := Load(filepath.Join(t.TempDir(), "nope"), format)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestNumericArrays_RoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		opts   []SaveOption
	}{
		{"json", FormatJSON, nil},
		{"json-compact", FormatJSON, []SaveOption{WithIndent("")}},
		{"binary", FormatBinary, nil},
		{"binary-zip", FormatBinary, []SaveOption{WithCompression(CompZIP)}},
		{"binary-zstd", FormatBinary, []SaveOption{WithCompression(CompZSTD)}},
		{"binary-lz4", FormatBinary, []SaveOption{WithCompression(CompLZ4)}},
		{"binary-brotli", FormatBinary, []SaveOption{WithCompression(CompBR)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := sampleArrays(t)
			path := filepath.Join(t.TempDir(), "test")
			if err := Save(path, doc, tc.format, tc.opts...); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := Load(path, tc.format)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			a, ok := got["a"].(*Array)
			if !ok {
				t.Fatalf("a is %T, want *Array", got["a"])
			}
			if a.DType() != Float32 {
				t.Fatalf("dtype = %s, want float32", a.DType())
			}
			if !cmp.Equal(a.Shape(), []int{2, 10}) {
				t.Fatalf("shape = %v, want [2 10]", a.Shape())
			}
			c := got["c"].(*Array)
			if c.Ndim() != 0 || c.Size() != 1 {
				t.Fatalf("scalar came back with shape %v", c.Shape())
			}
			if diff := cmp.Diff(doc, got, arrayComparer); diff != "" {
				t.Fatalf("document mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJSONArrayLayout(t *testing.T) {
	doc := Document{"a": MustArray([]int16{1, 2, 3, 4, 5, 6}, 2, 3)}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatJSON, WithIndent("")); err != nil {
		t.Fatal(err)
	}
	want := `{"a":{"data":[1,2,3,4,5,6],"dtype":"int16","shape":[2,3],"type":"array"}}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %s\nwant %s", buf.String(), want)
	}
}

func TestJSONNestedArrays(t *testing.T) {
	inner := MustArray([]float64{0.5, 1.5, -2}, 3)
	doc := Document{
		"list": []any{
			map[string]any{"w": inner, "n": 1},
			[]any{Scalar[int64](-7), "x"},
		},
		"typed": map[string]*Array{"u": MustArray([]uint8{0, 128, 255}, 3)},
		"maps":  []map[string]any{{"v": Scalar[uint32](9)}},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatJSON); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := Document{
		"list": []any{
			map[string]any{"w": inner, "n": 1},
			[]any{Scalar[int64](-7), "x"},
		},
		"typed": map[string]any{"u": MustArray([]uint8{0, 128, 255}, 3)},
		"maps":  []any{map[string]any{"v": Scalar[uint32](9)}},
	}
	if diff := cmp.Diff(want, got, arrayComparer); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONScalars(t *testing.T) {
	doc := Document{
		"whole":  2.0,
		"half":   float32(1.5),
		"big":    uint64(math.MaxUint64),
		"neg":    int64(-3),
		"null":   nil,
		"blob":   []byte{0x00, 0xff, 0x10},
		"intkey": map[int]string{2: "20", 3: "30"},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatJSON); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := Document{
		"whole":  2.0,
		"half":   1.5,
		"big":    uint64(math.MaxUint64),
		"neg":    -3,
		"null":   nil,
		"blob":   []byte{0x00, 0xff, 0x10},
		"intkey": map[string]any{"2": "20", "3": "30"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONRejectsNaN(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, Document{"x": math.NaN()}, FormatJSON)
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestJSONDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"garbage", "not json", ErrInvalidFormat},
		{"top-level list", "[1, 2]", ErrInvalidFormat},
		{"trailing", `{"a": 1} {"b": 2}`, ErrInvalidFormat},
		{"bad dtype", `{"x": {"type": "array", "dtype": "complex", "shape": [1], "data": [1]}}`, ErrInvalidArray},
		{"overflow", `{"x": {"type": "array", "dtype": "int8", "shape": [1], "data": [300]}}`, ErrInvalidArray},
		{"short data", `{"x": {"type": "array", "dtype": "float32", "shape": [2], "data": [1]}}`, ErrInvalidArray},
		{"negative dim", `{"x": {"type": "array", "dtype": "float32", "shape": [-1], "data": []}}`, ErrInvalidArray},
		{"string element", `{"x": {"type": "array", "dtype": "float32", "shape": [1], "data": ["1"]}}`, ErrInvalidArray},
		{"bad blob", `{"x": {"type": "blob", "data": "***"}}`, ErrInvalidFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.in), FormatJSON)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestJSONUntaggedLookalike(t *testing.T) {
	in := `{"x": {"type": "array", "dtype": "float32", "shape": [1]}}`
	got, err := Decode(strings.NewReader(in), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := Document{"x": map[string]any{"type": "array", "dtype": "float32", "shape": []any{1}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLimits(t *testing.T) {
	doc := Document{"a": MustArray(make([]float64, 10))}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatJSON); err != nil {
		t.Fatal(err)
	}
	_, err := Decode(bytes.NewReader(buf.Bytes()), FormatJSON, WithLoadLimits(Limits{MaxArrayElements: 4}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	_, err = Decode(bytes.NewReader(buf.Bytes()), FormatJSON, WithLoadLimits(Limits{MaxFileLen: 8}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	buf.Reset()
	if err := Encode(&buf, doc, FormatBinary, WithCompression(CompZSTD)); err != nil {
		t.Fatal(err)
	}
	_, err = Decode(bytes.NewReader(buf.Bytes()), FormatBinary, WithLoadLimits(Limits{MaxUncompressedLen: 16}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestBinaryPreservesTypes(t *testing.T) {
	doc := Document{
		"a":      1,
		"f":      2.0,
		"b":      "bb",
		"3":      "33",
		"mock":   Document{"mock": true},
		"plain":  map[string]any{"k": []any{int64(1), "two"}},
		"intkey": map[int]string{2: "20", 3: "30"},
		"blob":   []byte("raw"),
		"arr":    MustArray([]uint64{1, math.MaxUint64}, 1, 2),
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatBinary); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf, FormatBinary)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(doc, got, arrayComparer); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
	if !doc.Equal(got) {
		t.Fatal("Equal reported a difference")
	}
}

func TestBinaryDecodeErrors(t *testing.T) {
	var good bytes.Buffer
	if err := Encode(&good, Document{"a": 1}, FormatBinary); err != nil {
		t.Fatal(err)
	}

	t.Run("empty", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(nil), FormatBinary)
		if !errors.Is(err, ErrInvalidHeader) {
			t.Fatalf("expected ErrInvalidHeader, got %v", err)
		}
	})
	t.Run("magic", func(t *testing.T) {
		b := bytes.Clone(good.Bytes())
		b[0] = 'X'
		_, err := Decode(bytes.NewReader(b), FormatBinary)
		if !errors.Is(err, ErrInvalidMagic) {
			t.Fatalf("expected ErrInvalidMagic, got %v", err)
		}
	})
	t.Run("version", func(t *testing.T) {
		b := bytes.Clone(good.Bytes())
		b[8] = 2
		_, err := Decode(bytes.NewReader(b), FormatBinary)
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
		}
	})
	t.Run("payload", func(t *testing.T) {
		b := append(bytes.Clone(good.Bytes()[:fixedHeaderSizeV1]), 0xde, 0xad, 0xbe, 0xef)
		_, err := Decode(bytes.NewReader(b), FormatBinary)
		if !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})
	t.Run("json as binary", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"a": 1, "padding": true}`), FormatBinary)
		if !errors.Is(err, ErrInvalidMagic) {
			t.Fatalf("expected ErrInvalidMagic, got %v", err)
		}
	})
}

func TestUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Document{}, Format(9)); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if _, err := Decode(&buf, Format(9)); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{"json": FormatJSON, "JSON": FormatJSON, "binary": FormatBinary, "gob": FormatBinary} {
		got, err := ParseFormat(name)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseFormat("pickle"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestSaveGobErrorLeavesNoFile(t *testing.T) {
	orig := gobEncodeDocument
	gobEncodeDocument = func(Document) ([]byte, error) { return nil, errors.New("boom") }
	defer func() { gobEncodeDocument = orig }()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.gob")
	err := SaveBinary(path, Document{"a": 1})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestDocumentEqual(t *testing.T) {
	a := Document{"x": MustArray([]float32{1, 2}), "m": Document{"b": []byte("z")}}
	b := Document{"x": MustArray([]float32{1, 2}), "m": map[string]any{"b": []byte("z")}}
	if !a.Equal(b) {
		t.Fatal("expected equal documents")
	}
	b["x"] = MustArray([]float64{1, 2})
	if a.Equal(b) {
		t.Fatal("dtype difference not detected")
	}
	if a.Equal(Document{"x": a["x"]}) {
		t.Fatal("missing key not detected")
	}
}

func TestJSONTypedValuesStayEqual(t *testing.T) {
	doc := Document{
		"i64":    int64(5),
		"u16":    uint16(7),
		"floats": []float64{1, 2.5},
		"f32s":   []float32{3},
		"ints":   []int32{-1, 2},
		"intkey": map[int]string{2: "20"},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatJSON); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := Document{
		"i64":    5,
		"u16":    7,
		"floats": []any{1.0, 2.5},
		"f32s":   []any{3.0},
		"ints":   []any{-1, 2},
		"intkey": map[string]any{"2": "20"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
	if !doc.Equal(got) {
		t.Fatalf("loaded document not Equal to saved one: %#v", got)
	}
}

func TestJSONTagLookalikes(t *testing.T) {
	doc := Document{
		"blobish":  map[string]any{"type": "blob", "data": "AAA="},
		"arrayish": map[string]any{"type": "array", "dtype": "int8", "shape": []any{1}, "data": []any{1}},
		"wrapped":  map[string]any{"type": "map", "data": map[string]any{"k": 1}},
		"typed":    map[string]string{"type": "blob", "data": "AAA="},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatJSON); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := Document{
		"blobish":  map[string]any{"type": "blob", "data": "AAA="},
		"arrayish": map[string]any{"type": "array", "dtype": "int8", "shape": []any{1}, "data": []any{1}},
		"wrapped":  map[string]any{"type": "map", "data": map[string]any{"k": 1}},
		"typed":    map[string]any{"type": "blob", "data": "AAA="},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}

	top := Document{"type": "blob", "data": "AAA="}
	buf.Reset()
	if err := Encode(&buf, top, FormatJSON); err != nil {
		t.Fatal(err)
	}
	got, err = Decode(&buf, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(top, got); diff != "" {
		t.Fatalf("top-level mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONTopLevelTag(t *testing.T) {
	for _, in := range []string{
		`{"type": "blob", "data": "AAA="}`,
		`{"type": "array", "dtype": "int8", "shape": [], "data": [1]}`,
	} {
		if _, err := Decode(strings.NewReader(in), FormatJSON); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Decode(%s): expected ErrInvalidFormat, got %v", in, err)
		}
	}
}

func TestDocumentEqualNumbers(t *testing.T) {
	cases := []struct {
		a, b any
		want bool
	}{
		{int64(5), 5, true},
		{5, 5.0, true},
		{uint64(math.MaxUint64), uint64(math.MaxUint64), true},
		{-1, uint64(math.MaxUint64), false},
		{float32(1.5), 1.5, true},
		{5, "5", false},
		{[]float64{1, 2.5}, []any{1, 2.5}, true},
		{[]int{1, 2}, []any{1}, false},
		{map[int]string{2: "20"}, map[string]any{"2": "20"}, true},
		{true, 1, false},
	}
	for _, tc := range cases {
		if got := (Document{"v": tc.a}).Equal(Document{"v": tc.b}); got != tc.want {
			t.Errorf("Equal(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
