package misc

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"slices"
)

// DType names the element type of an Array.
type DType string

const (
	Int8    DType = "int8"
	Int16   DType = "int16"
	Int32   DType = "int32"
	Int64   DType = "int64"
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Uint32  DType = "uint32"
	Uint64  DType = "uint64"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

var dtypeElems = map[DType]reflect.Type{
	Int8:    reflect.TypeFor[int8](),
	Int16:   reflect.TypeFor[int16](),
	Int32:   reflect.TypeFor[int32](),
	Int64:   reflect.TypeFor[int64](),
	Uint8:   reflect.TypeFor[uint8](),
	Uint16:  reflect.TypeFor[uint16](),
	Uint32:  reflect.TypeFor[uint32](),
	Uint64:  reflect.TypeFor[uint64](),
	Float32: reflect.TypeFor[float32](),
	Float64: reflect.TypeFor[float64](),
}

// Valid reports whether dt is a known element type.
func (dt DType) Valid() bool {
	_, ok := dtypeElems[dt]
	return ok
}

// ItemSize returns the size in bytes of one element, or 0 for an unknown dtype.
func (dt DType) ItemSize() int {
	t, ok := dtypeElems[dt]
	if !ok {
		return 0
	}
	return int(t.Size())
}

func (dt DType) sliceType() reflect.Type {
	return reflect.SliceOf(dtypeElems[dt])
}

// Element is the set of Go types an Array can hold.
type Element interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

func dtypeOf[T Element]() DType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

// Array is a rectangular, homogeneously typed block of numbers stored in
// row-major order. A rank-0 Array has an empty shape and holds one element.
//
// Arrays are immutable values: every method that changes shape or type
// returns a new Array backed by its own storage.
type Array struct {
	dtype DType
	shape []int
	data  any // []T where T matches dtype
}

// NewArray copies data into a new Array. With no shape the Array is 1-D;
// one dimension may be -1 and is inferred from len(data).
func NewArray[T Element](data []T, shape ...int) (*Array, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	resolved, err := resolveShape(shape, len(data))
	if err != nil {
		return nil, err
	}
	cloned := slices.Clone(data)
	if cloned == nil {
		cloned = []T{}
	}
	return &Array{dtype: dtypeOf[T](), shape: resolved, data: cloned}, nil
}

// MustArray is like NewArray but panics on error.
func MustArray[T Element](data []T, shape ...int) *Array {
	a, err := NewArray(data, shape...)
	if err != nil {
		panic(err)
	}
	return a
}

// Scalar returns a rank-0 Array holding v.
func Scalar[T Element](v T) *Array {
	return &Array{dtype: dtypeOf[T](), shape: []int{}, data: []T{v}}
}

// Zeros returns a zero-filled Array of the given dtype and shape.
func Zeros(dt DType, shape ...int) (*Array, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unknown dtype %q", ErrInvalidArray, dt)
	}
	n, err := shapeSize(shape)
	if err != nil {
		return nil, err
	}
	return &Array{
		dtype: dt,
		shape: append([]int{}, shape...),
		data:  reflect.MakeSlice(dt.sliceType(), n, n).Interface(),
	}, nil
}

// Arange returns the 1-D Array [0, 1, ..., n-1] of the given dtype.
func Arange(n int, dt DType) (*Array, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidArray, n)
	}
	a, err := Zeros(dt, n)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(a.data)
	for i := 0; i < n; i++ {
		elem := v.Index(i)
		switch {
		case elem.CanInt():
			if elem.OverflowInt(int64(i)) {
				return nil, fmt.Errorf("%w: %d overflows %s", ErrInvalidArray, i, dt)
			}
			elem.SetInt(int64(i))
		case elem.CanUint():
			if elem.OverflowUint(uint64(i)) {
				return nil, fmt.Errorf("%w: %d overflows %s", ErrInvalidArray, i, dt)
			}
			elem.SetUint(uint64(i))
		default:
			elem.SetFloat(float64(i))
		}
	}
	return a, nil
}

// Values returns a copy of the flattened elements of a.
// It fails if T does not match the dtype of a.
func Values[T Element](a *Array) ([]T, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil array", ErrInvalidArray)
	}
	data, ok := a.data.([]T)
	if !ok {
		return nil, fmt.Errorf("%w: dtype is %s, not %s", ErrInvalidArray, a.dtype, dtypeOf[T]())
	}
	return slices.Clone(data), nil
}

func (a *Array) DType() DType { return a.dtype }

// Shape returns a copy of the dimension sizes. It is empty for rank 0.
func (a *Array) Shape() []int { return append([]int{}, a.shape...) }

func (a *Array) Ndim() int { return len(a.shape) }

// Size returns the number of elements.
func (a *Array) Size() int { return reflect.ValueOf(a.data).Len() }

// Reshape returns a copy of a with a new shape. One dimension may be -1.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	resolved, err := resolveShape(shape, a.Size())
	if err != nil {
		return nil, err
	}
	return &Array{dtype: a.dtype, shape: resolved, data: a.cloneData()}, nil
}

// Ravel returns a 1-D copy of a.
func (a *Array) Ravel() *Array {
	return &Array{dtype: a.dtype, shape: []int{a.Size()}, data: a.cloneData()}
}

// Slice returns the 1-D Array of flattened elements [lo, hi).
func (a *Array) Slice(lo, hi int) (*Array, error) {
	n := a.Size()
	if lo < 0 || hi > n || lo > hi {
		return nil, fmt.Errorf("%w: slice [%d:%d] out of range for size %d", ErrInvalidArray, lo, hi, n)
	}
	sub := reflect.ValueOf(a.data).Slice(lo, hi)
	out := reflect.MakeSlice(sub.Type(), hi-lo, hi-lo)
	reflect.Copy(out, sub)
	return &Array{dtype: a.dtype, shape: []int{hi - lo}, data: out.Interface()}, nil
}

// At returns the element at the given index, one coordinate per dimension.
func (a *Array) At(index ...int) (any, error) {
	if len(index) != len(a.shape) {
		return nil, fmt.Errorf("%w: %d indices for rank %d", ErrInvalidArray, len(index), len(a.shape))
	}
	off := 0
	for i, idx := range index {
		if idx < 0 || idx >= a.shape[i] {
			return nil, fmt.Errorf("%w: index %d out of range for axis %d of size %d", ErrInvalidArray, idx, i, a.shape[i])
		}
		off = off*a.shape[i] + idx
	}
	return reflect.ValueOf(a.data).Index(off).Interface(), nil
}

// Item returns the single element of an Array of size 1.
func (a *Array) Item() (any, error) {
	if a.Size() != 1 {
		return nil, fmt.Errorf("%w: item of array with %d elements", ErrInvalidArray, a.Size())
	}
	return reflect.ValueOf(a.data).Index(0).Interface(), nil
}

// Astype returns a copy of a converted to dt using Go conversion rules.
func (a *Array) Astype(dt DType) (*Array, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unknown dtype %q", ErrInvalidArray, dt)
	}
	if dt == a.dtype {
		return &Array{dtype: a.dtype, shape: a.Shape(), data: a.cloneData()}, nil
	}
	src := reflect.ValueOf(a.data)
	n := src.Len()
	dst := reflect.MakeSlice(dt.sliceType(), n, n)
	elem := dtypeElems[dt]
	for i := 0; i < n; i++ {
		dst.Index(i).Set(src.Index(i).Convert(elem))
	}
	return &Array{dtype: dt, shape: a.Shape(), data: dst.Interface()}, nil
}

// Float64s returns the flattened elements converted to float64.
func (a *Array) Float64s() []float64 {
	v := reflect.ValueOf(a.data)
	out := make([]float64, v.Len())
	for i := range out {
		e := v.Index(i)
		switch {
		case e.CanInt():
			out[i] = float64(e.Int())
		case e.CanUint():
			out[i] = float64(e.Uint())
		default:
			out[i] = e.Float()
		}
	}
	return out
}

// Equal reports whether a and b have the same dtype, shape and elements.
// NaNs in the same position compare equal.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.dtype != b.dtype || !slices.Equal(a.shape, b.shape) {
		return false
	}
	if a.dtype != Float32 && a.dtype != Float64 {
		return reflect.DeepEqual(a.data, b.data)
	}
	af, bf := a.Float64s(), b.Float64s()
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i] != bf[i] && !(math.IsNaN(af[i]) && math.IsNaN(bf[i])) {
			return false
		}
	}
	return true
}

func (a *Array) String() string {
	if a == nil {
		return "array(nil)"
	}
	return fmt.Sprintf("array(%v, dtype=%s, shape=%v)", a.data, a.dtype, a.shape)
}

func (a *Array) cloneData() any {
	src := reflect.ValueOf(a.data)
	dst := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
	reflect.Copy(dst, src)
	return dst.Interface()
}

// arrayWire is the gob form of an Array: elements travel as little-endian bytes.
type arrayWire struct {
	DType string
	Shape []int
	Data  []byte
}

// GobEncode implements gob.GobEncoder.
func (a *Array) GobEncode() ([]byte, error) {
	raw, err := binary.Append(nil, binary.LittleEndian, a.data)
	if err != nil {
		return nil, err
	}
	return gobEncode(arrayWire{DType: string(a.dtype), Shape: a.shape, Data: raw})
}

// GobDecode implements gob.GobDecoder.
func (a *Array) GobDecode(b []byte) error {
	var w arrayWire
	if err := gobDecode(b, &w); err != nil {
		return err
	}
	built, err := arrayFromRaw(DType(w.DType), w.Shape, w.Data)
	if err != nil {
		return err
	}
	*a = *built
	return nil
}

func arrayFromRaw(dt DType, shape []int, raw []byte) (*Array, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unknown dtype %q", ErrInvalidArray, dt)
	}
	size := dt.ItemSize()
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %s", ErrInvalidArray, len(raw), dt)
	}
	n := len(raw) / size
	want, err := shapeSize(shape)
	if err != nil {
		return nil, err
	}
	if want != n {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrInvalidArray, shape, want, n)
	}
	data := reflect.MakeSlice(dt.sliceType(), n, n).Interface()
	if n > 0 {
		if _, err := binary.Decode(raw, binary.LittleEndian, data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArray, err)
		}
	}
	return &Array{dtype: dt, shape: append([]int{}, shape...), data: data}, nil
}

// resolveShape validates shape against n elements, inferring a single -1.
func resolveShape(shape []int, n int) ([]int, error) {
	out := append([]int{}, shape...)
	infer := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("%w: more than one inferred dimension in %v", ErrInvalidArray, shape)
			}
			infer = i
		case d < 0:
			return nil, fmt.Errorf("%w: negative dimension in %v", ErrInvalidArray, shape)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || n%known != 0 {
			return nil, fmt.Errorf("%w: cannot infer dimension of %v for %d elements", ErrInvalidArray, shape, n)
		}
		out[infer] = n / known
		known = n
	}
	if known != n {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrInvalidArray, shape, known, n)
	}
	return out, nil
}

func shapeSize(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrInvalidArray, shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v is too large", ErrLimitExceeded, shape)
		}
		n *= d
	}
	return n, nil
}
