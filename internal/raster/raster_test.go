package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(scene string, w, h int, bands ...[]float64) *Raster {
	return &Raster{
		Scene:      scene,
		Bands:      bands,
		Width:      w,
		Height:     h,
		Transform:  [6]float64{126.8, 0.001, 0, 37.65, 0, -0.001},
		Projection: "WGS84",
		NoData:     -9999,
	}
}

func flat(w, h int, v float64) []float64 {
	b := make([]float64, w*h)
	for i := range b {
		b[i] = v
	}
	return b
}

func TestCheckGridMatch_Identical(t *testing.T) {
	ref := grid("ref", 4, 3, flat(4, 3, -8))
	flood := grid("flood", 4, 3, flat(4, 3, -12))
	require.NoError(t, CheckGridMatch(ref, flood))
}

func TestCheckGridMatch_ShapeMismatch(t *testing.T) {
	ref := grid("ref", 4, 3, flat(4, 3, -8))
	flood := grid("flood", 3, 4, flat(3, 4, -12))

	err := CheckGridMatch(ref, flood)
	require.Error(t, err)

	var mismatch *GridMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "shape", mismatch.Field)
	assert.Equal(t, "ref", mismatch.RefScene)
	assert.Equal(t, "flood", mismatch.FloodScene)
	assert.Equal(t, "4x3", mismatch.Ref)
	assert.Equal(t, "3x4", mismatch.Flood)
}

func TestCheckGridMatch_TransformMismatch(t *testing.T) {
	ref := grid("ref", 4, 3, flat(4, 3, -8))
	flood := grid("flood", 4, 3, flat(4, 3, -12))
	flood.Transform[1] = 0.002

	err := CheckGridMatch(ref, flood)
	var mismatch *GridMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "transform", mismatch.Field)
}

func TestCheckGridMatch_ProjectionMismatch(t *testing.T) {
	ref := grid("ref", 4, 3, flat(4, 3, -8))
	flood := grid("flood", 4, 3, flat(4, 3, -12))
	flood.Projection = "EPSG:32652"

	err := CheckGridMatch(ref, flood)
	var mismatch *GridMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "projection", mismatch.Field)
}

func TestCheckGridMatch_BandCountMismatch(t *testing.T) {
	ref := grid("ref", 4, 3, flat(4, 3, -8), flat(4, 3, -14))
	flood := grid("flood", 4, 3, flat(4, 3, -12))

	err := CheckGridMatch(ref, flood)
	var mismatch *GridMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "band count", mismatch.Field)
}

func TestIsNoData_SentinelValue(t *testing.T) {
	r := grid("ref", 2, 2, flat(2, 2, -8))
	assert.True(t, r.IsNoData(-9999))
	assert.False(t, r.IsNoData(-8))
	assert.False(t, r.IsNoData(math.NaN()))
}

func TestIsNoData_NaNSentinel(t *testing.T) {
	r := grid("ref", 2, 2, flat(2, 2, -8))
	r.NoData = math.NaN()
	assert.True(t, r.IsNoData(math.NaN()))
	assert.False(t, r.IsNoData(-9999))
}

func TestPixelArea(t *testing.T) {
	r := grid("ref", 2, 2, flat(2, 2, -8))
	assert.InDelta(t, 1e-6, r.PixelArea(), 1e-12)

	// Rotation terms participate via the determinant.
	r.Transform = [6]float64{0, 2, 1, 0, 1, 2}
	assert.InDelta(t, 3.0, r.PixelArea(), 1e-12)
}
