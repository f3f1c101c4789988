package grid

import (
	"fmt"
	"math"
)

// DType tags the logical element type of an array. Storage is always
// float64; Bool arrays hold 0 or 1.
type DType int

const (
	Float64 DType = iota
	Bool
)

func (d DType) String() string {
	if d == Bool {
		return "bool"
	}
	return "float64"
}

// Coordinate is an ordered axis: a dimension label plus one value per
// position along that dimension.
type Coordinate struct {
	Name   string
	Values []float64
}

// Len returns the number of positions along the coordinate.
func (c Coordinate) Len() int { return len(c.Values) }

// Equal reports whether two coordinates share label, length and values.
func (c Coordinate) Equal(other Coordinate) bool {
	if c.Name != other.Name || len(c.Values) != len(other.Values) {
		return false
	}
	for i, v := range c.Values {
		if v != other.Values[i] && !(math.IsNaN(v) && math.IsNaN(other.Values[i])) {
			return false
		}
	}
	return true
}

func (c Coordinate) slice(offset, length int) Coordinate {
	return Coordinate{Name: c.Name, Values: c.Values[offset : offset+length]}
}

// Array is a named dense array over labeled coordinates.
type Array struct {
	Name   string
	Coords []Coordinate
	Attrs  map[string]string
	DType  DType
	Data   []float64

	shape   []int
	strides []int
}

// New builds an array over the given coordinates with freshly allocated,
// zero-filled storage.
func New(name string, dtype DType, coords ...Coordinate) *Array {
	a := &Array{Name: name, Coords: coords, DType: dtype}
	a.reindex()
	a.Data = make([]float64, a.Size())
	return a
}

// FromData builds an array around an existing buffer. The buffer length
// must match the coordinate shape.
func FromData(name string, dtype DType, data []float64, coords ...Coordinate) (*Array, error) {
	a := &Array{Name: name, Coords: coords, DType: dtype, Data: data}
	a.reindex()
	if len(data) != a.Size() {
		return nil, fmt.Errorf("grid: array %q: data length %d does not match shape %v", name, len(data), a.shape)
	}
	return a, nil
}

// Scalar builds a dimensionless single-value array.
func Scalar(name string, value float64) *Array {
	a := New(name, Float64)
	a.Data[0] = value
	return a
}

func (a *Array) reindex() {
	a.shape = make([]int, len(a.Coords))
	a.strides = make([]int, len(a.Coords))
	stride := 1
	for i := len(a.Coords) - 1; i >= 0; i-- {
		a.shape[i] = a.Coords[i].Len()
		a.strides[i] = stride
		stride *= a.shape[i]
	}
}

// Dims returns the ordered dimension labels.
func (a *Array) Dims() []string {
	dims := make([]string, len(a.Coords))
	for i, c := range a.Coords {
		dims[i] = c.Name
	}
	return dims
}

// Shape returns the length of each dimension, in dimension order.
func (a *Array) Shape() []int {
	shape := make([]int, len(a.shape))
	copy(shape, a.shape)
	return shape
}

// Size returns the total element count.
func (a *Array) Size() int {
	n := 1
	for _, s := range a.shape {
		n *= s
	}
	return n
}

// NBytes returns the storage footprint of the array data.
func (a *Array) NBytes() int64 { return int64(a.Size()) * 8 }

// HasDim reports whether the array carries the given dimension label.
func (a *Array) HasDim(label string) bool {
	return a.axis(label) >= 0
}

func (a *Array) axis(label string) int {
	for i, c := range a.Coords {
		if c.Name == label {
			return i
		}
	}
	return -1
}

// Coord returns the coordinate for a dimension label.
func (a *Array) Coord(label string) (Coordinate, bool) {
	if i := a.axis(label); i >= 0 {
		return a.Coords[i], true
	}
	return Coordinate{}, false
}

// DimLen returns the length of the named dimension, or -1 when absent.
func (a *Array) DimLen(label string) int {
	if i := a.axis(label); i >= 0 {
		return a.shape[i]
	}
	return -1
}

// Flat converts a multi-index into a flat offset into Data.
func (a *Array) Flat(idx ...int) int {
	offset := 0
	for i, ix := range idx {
		offset += ix * a.strides[i]
	}
	return offset
}

// At returns the value at a multi-index.
func (a *Array) At(idx ...int) float64 { return a.Data[a.Flat(idx...)] }

// SetAt stores a value at a multi-index.
func (a *Array) SetAt(v float64, idx ...int) { a.Data[a.Flat(idx...)] = v }

// Value returns the sole element of a dimensionless array.
func (a *Array) Value() float64 { return a.Data[0] }

// Fill sets every element to v.
func (a *Array) Fill(v float64) {
	for i := range a.Data {
		a.Data[i] = v
	}
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	data := make([]float64, len(a.Data))
	copy(data, a.Data)
	attrs := make(map[string]string, len(a.Attrs))
	for k, v := range a.Attrs {
		attrs[k] = v
	}
	coords := make([]Coordinate, len(a.Coords))
	copy(coords, a.Coords)
	c := &Array{Name: a.Name, Coords: coords, Attrs: attrs, DType: a.DType, Data: data}
	c.reindex()
	return c
}

// SameLayout reports whether two arrays agree on dims, shape and dtype.
// The reason explains the first disagreement found.
func (a *Array) SameLayout(other *Array) (bool, string) {
	if a.DType != other.DType {
		return false, fmt.Sprintf("dtype %s != %s", other.DType, a.DType)
	}
	if len(a.Coords) != len(other.Coords) {
		return false, fmt.Sprintf("rank %d != %d", len(other.Coords), len(a.Coords))
	}
	for i, c := range a.Coords {
		if other.Coords[i].Name != c.Name {
			return false, fmt.Sprintf("dimension %d is %q, want %q", i, other.Coords[i].Name, c.Name)
		}
		if other.shape[i] != a.shape[i] {
			return false, fmt.Sprintf("dimension %q has length %d, want %d", c.Name, other.shape[i], a.shape[i])
		}
	}
	return true, ""
}
