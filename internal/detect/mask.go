// Package detect turns a change raster into a cleaned binary flood mask:
// threshold classification (fixed or Otsu) followed by morphological
// cleanup of speckle-sized regions and small enclosed gaps.
package detect

// Mask pixel states. Unknown marks pixels that were nodata in either input
// scene; they are excluded from classification and never coerced to either
// class.
const (
	NotFlooded uint8 = 0
	Flooded    uint8 = 1
	Unknown    uint8 = 255
)

// Mask is a tri-state flood grid sharing the change raster's georeferencing.
type Mask struct {
	Values     []uint8 // row-major
	Width      int
	Height     int
	Transform  [6]float64
	Projection string
}

// FloodedCount returns the number of flooded pixels.
func (m *Mask) FloodedCount() int {
	n := 0
	for _, v := range m.Values {
		if v == Flooded {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := *m
	out.Values = make([]uint8, len(m.Values))
	copy(out.Values, m.Values)
	return &out
}
