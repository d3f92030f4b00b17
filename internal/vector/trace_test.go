package vector

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodsight/sar-flood-mapping/internal/detect"
)

// testTransform places the grid origin at (10, 20) with half-degree pixels,
// north up.
var testTransform = [6]float64{10, 0.5, 0, 20, 0, -0.5}

const testPixelArea = 0.25

func maskFrom(rows ...string) *detect.Mask {
	h := len(rows)
	w := len(rows[0])
	values := make([]uint8, 0, w*h)
	for _, row := range rows {
		for _, ch := range row {
			switch ch {
			case '0':
				values = append(values, detect.NotFlooded)
			case '1':
				values = append(values, detect.Flooded)
			case 'U':
				values = append(values, detect.Unknown)
			}
		}
	}
	return &detect.Mask{Values: values, Width: w, Height: h, Transform: testTransform}
}

func TestTrace_EmptyMask(t *testing.T) {
	m := maskFrom(
		"000",
		"0U0",
	)
	assert.Empty(t, Trace(m), "nothing to trace, no error")
}

func TestTrace_SinglePixel(t *testing.T) {
	m := maskFrom(
		"000",
		"010",
		"000",
	)
	polys := Trace(m)
	require.Len(t, polys, 1)
	assert.Equal(t, 1, polys[0].Region)

	require.Len(t, polys[0].Geom, 1)
	ring := polys[0].Geom[0]
	require.Len(t, ring, 5, "square plus closing vertex")
	assert.Equal(t, ring[0], ring[len(ring)-1])

	// Pixel (row 1, col 1) corners through the transform.
	want := []geom.Point{
		{X: 10.5, Y: 19.5}, {X: 11, Y: 19.5}, {X: 11, Y: 19}, {X: 10.5, Y: 19},
	}
	for _, p := range want {
		assert.Contains(t, ring, p)
	}
	assert.InDelta(t, testPixelArea, polys[0].Geom.Area(), 1e-12)
}

func TestTrace_FullMask(t *testing.T) {
	m := maskFrom(
		"1111",
		"1111",
		"1111",
	)
	polys := Trace(m)
	require.Len(t, polys, 1)
	require.Len(t, polys[0].Geom, 1, "one exterior ring, no holes")
	assert.InDelta(t, 12*testPixelArea, polys[0].Geom.Area(), 1e-12)
}

func TestTrace_AreaEqualsPixelCount(t *testing.T) {
	m := maskFrom(
		"1100101",
		"1100011",
		"0011100",
		"110U100",
	)
	flooded := m.FloodedCount()
	polys := Trace(m)
	assert.InDelta(t, float64(flooded)*testPixelArea, TotalArea(polys), 1e-9)
}

func TestTrace_HoleIsPreserved(t *testing.T) {
	m := maskFrom(
		"111",
		"101",
		"111",
	)
	polys := Trace(m)
	require.Len(t, polys, 1)
	require.Len(t, polys[0].Geom, 2, "exterior ring plus hole ring")
	assert.InDelta(t, 8*testPixelArea, polys[0].Geom.Area(), 1e-12)
}

func TestTrace_StaircaseIsPreserved(t *testing.T) {
	m := maskFrom(
		"100",
		"110",
		"111",
	)
	polys := Trace(m)
	require.Len(t, polys, 1)
	assert.InDelta(t, 6*testPixelArea, polys[0].Geom.Area(), 1e-12)
	require.NoError(t, Validate(polys[0].Geom, "vectorize", ""))
}

// Two pixels touching only at a corner are one 8-connected region. The
// sharpest-left-turn rule must route the boundary around the pinch without
// self-intersection.
func TestTrace_DiagonalPinch(t *testing.T) {
	m := maskFrom(
		"10",
		"01",
	)
	polys := Trace(m)
	require.Len(t, polys, 1, "diagonal pixels are one region")
	assert.InDelta(t, 2*testPixelArea, TotalArea(polys), 1e-12)
	require.NoError(t, Validate(polys[0].Geom, "vectorize", ""))

	for _, ring := range polys[0].Geom {
		assert.Equal(t, ring[0], ring[len(ring)-1], "every ring closed")
	}
}

func TestTrace_Deterministic(t *testing.T) {
	m := maskFrom(
		"1010",
		"0101",
		"1010",
	)
	first := Trace(m)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Trace(m), "repeat run %d", i)
	}
}

func TestTrace_RegionNumbersFollowMaskOrder(t *testing.T) {
	m := maskFrom(
		"100",
		"000",
		"001",
	)
	polys := Trace(m)
	require.Len(t, polys, 2)
	assert.Equal(t, 1, polys[0].Region)
	assert.Equal(t, 2, polys[1].Region)
	assert.Contains(t, polys[0].Geom[0], geom.Point{X: 10, Y: 20},
		"first region is the north-west pixel")
}

func TestTrace_UnknownIsNotTraced(t *testing.T) {
	m := maskFrom(
		"UU",
		"U1",
	)
	polys := Trace(m)
	require.Len(t, polys, 1)
	assert.InDelta(t, testPixelArea, TotalArea(polys), 1e-12)
}
