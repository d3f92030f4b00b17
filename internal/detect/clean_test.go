package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maskFrom builds a mask from rows of '0' (not flooded), '1' (flooded), and
// 'U' (unknown).
func maskFrom(rows ...string) *Mask {
	h := len(rows)
	w := len(rows[0])
	values := make([]uint8, 0, w*h)
	for _, row := range rows {
		for _, ch := range row {
			switch ch {
			case '0':
				values = append(values, NotFlooded)
			case '1':
				values = append(values, Flooded)
			case 'U':
				values = append(values, Unknown)
			}
		}
	}
	return &Mask{Values: values, Width: w, Height: h, Transform: [6]float64{0, 1, 0, 0, 0, -1}}
}

func TestLabelFlooded_EightConnected(t *testing.T) {
	m := maskFrom(
		"100",
		"010",
		"001",
	)
	labels, count := LabelFlooded(m)
	assert.Equal(t, 1, count, "diagonal pixels form one region")
	assert.Equal(t, int32(1), labels[0])
	assert.Equal(t, int32(1), labels[4])
	assert.Equal(t, int32(1), labels[8])
}

func TestLabelFlooded_SeparateRegionsRowMajorOrder(t *testing.T) {
	m := maskFrom(
		"10001",
		"00000",
		"10000",
	)
	labels, count := LabelFlooded(m)
	require.Equal(t, 3, count)
	assert.Equal(t, int32(1), labels[0], "first pixel in row-major order labels first")
	assert.Equal(t, int32(2), labels[4])
	assert.Equal(t, int32(3), labels[10])
}

func TestClean_RemovesSmallRegions(t *testing.T) {
	m := maskFrom(
		"11000",
		"11000",
		"00001",
	)
	out := Clean(m, 4, 0)

	assert.Equal(t, 4, out.FloodedCount(), "the 4-pixel block survives, the singleton goes")
	assert.Equal(t, NotFlooded, out.Values[14])
	assert.Equal(t, Flooded, out.Values[0])
}

func TestClean_KeepsRegionAtExactMinimum(t *testing.T) {
	m := maskFrom(
		"111",
		"000",
	)
	out := Clean(m, 3, 0)
	assert.Equal(t, 3, out.FloodedCount())
}

func TestClean_FillsEnclosedHole(t *testing.T) {
	m := maskFrom(
		"11111",
		"11011",
		"11111",
	)
	out := Clean(m, 0, 1)
	assert.Equal(t, Flooded, out.Values[7])
	assert.Equal(t, 15, out.FloodedCount())
}

func TestClean_HoleLargerThanLimitStays(t *testing.T) {
	m := maskFrom(
		"11111",
		"10011",
		"11111",
	)
	out := Clean(m, 0, 1)
	assert.Equal(t, NotFlooded, out.Values[6])
	assert.Equal(t, NotFlooded, out.Values[7])
}

func TestClean_GapTouchingEdgeIsNotAHole(t *testing.T) {
	m := maskFrom(
		"11011",
		"11011",
		"11111",
	)
	out := Clean(m, 0, 5)
	assert.Equal(t, NotFlooded, out.Values[2], "gap open to the grid edge")
	assert.Equal(t, NotFlooded, out.Values[7])
}

func TestClean_GapNextToUnknownIsNotFilled(t *testing.T) {
	m := maskFrom(
		"11111",
		"10U11",
		"11111",
	)
	out := Clean(m, 0, 5)
	assert.Equal(t, NotFlooded, out.Values[6], "extent next to unknown cannot be established")
	assert.Equal(t, Unknown, out.Values[7], "unknown is never reclassified")
}

func TestClean_UnknownNeverReclassified(t *testing.T) {
	m := maskFrom(
		"UU1",
		"UU1",
		"111",
	)
	out := Clean(m, 10, 10)
	for i, v := range m.Values {
		if v == Unknown {
			assert.Equal(t, Unknown, out.Values[i], "pixel %d", i)
		}
	}
}

// Holes are filled only after small regions are removed, so a filled hole
// never resurrects a removed region and a second pass changes nothing.
func TestClean_Idempotent(t *testing.T) {
	m := maskFrom(
		"1111100",
		"1101100",
		"1111001",
		"0000000",
		"1100U10",
		"1100UU0",
	)
	once := Clean(m, 3, 2)
	twice := Clean(once, 3, 2)
	assert.Equal(t, once.Values, twice.Values)
}

func TestClean_DoesNotModifyInput(t *testing.T) {
	m := maskFrom(
		"110",
		"000",
	)
	original := append([]uint8(nil), m.Values...)
	Clean(m, 5, 5)
	assert.Equal(t, original, m.Values)
}

func TestClean_ZeroParametersNoOp(t *testing.T) {
	m := maskFrom(
		"101",
		"010",
	)
	out := Clean(m, 0, 0)
	assert.Equal(t, m.Values, out.Values)
}
