package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodsight/sar-flood-mapping/internal/config"
	"github.com/floodsight/sar-flood-mapping/internal/raster"
)

func changeRaster(w, h int, values []float64) *raster.ChangeRaster {
	return &raster.ChangeRaster{
		Values:     values,
		Width:      w,
		Height:     h,
		Transform:  [6]float64{0, 1, 0, 0, 0, -1},
		RefScene:   "ref",
		FloodScene: "flood",
	}
}

func fixedConfig(threshold float64) *config.Config {
	return &config.Config{ThresholdMode: config.ThresholdFixed, FixedThresholdDB: threshold}
}

func TestClassify_FixedStrictGreater(t *testing.T) {
	nan := math.NaN()
	c := changeRaster(4, 1, []float64{2.9, 3.0, 3.1, nan})

	m, threshold, err := Classify(c, fixedConfig(3.0))
	require.NoError(t, err)

	assert.Equal(t, 3.0, threshold)
	assert.Equal(t, []uint8{NotFlooded, NotFlooded, Flooded, Unknown}, m.Values,
		"equality with the threshold is not flooded")
	assert.Equal(t, 1, m.FloodedCount())
	assert.Equal(t, c.Transform, m.Transform)
}

func TestClassify_AllNoData(t *testing.T) {
	nan := math.NaN()
	c := changeRaster(2, 1, []float64{nan, nan})

	_, _, err := Classify(c, fixedConfig(3.0))
	var empty *EmptyInputError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "ref", empty.RefScene)
	assert.Equal(t, "flood", empty.FloodScene)
}

func TestClassify_AutomaticSeparatesBimodal(t *testing.T) {
	// 60 background pixels near 0 dB, 40 flooded pixels near 6 dB.
	values := make([]float64, 100)
	for i := 0; i < 60; i++ {
		values[i] = 0.5
	}
	for i := 60; i < 100; i++ {
		values[i] = 6.5
	}
	c := changeRaster(10, 10, values)

	cfg := &config.Config{ThresholdMode: config.ThresholdAutomatic}
	m, threshold, err := Classify(c, cfg)
	require.NoError(t, err)

	assert.Greater(t, threshold, 0.5)
	assert.Less(t, threshold, 6.5)
	assert.Equal(t, 40, m.FloodedCount())
}

func TestOtsuThreshold_Deterministic(t *testing.T) {
	values := []float64{0.1, 0.4, 0.2, 5.9, 6.3, 6.1, 0.3, 5.8, 0.2, 6.2}
	c := changeRaster(5, 2, values)

	first, err := OtsuThreshold(c)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := OtsuThreshold(c)
		require.NoError(t, err)
		assert.Equal(t, first, again, "repeat run %d", i)
	}
}

func TestOtsuThreshold_IgnoresNoData(t *testing.T) {
	nan := math.NaN()
	with := changeRaster(4, 2, []float64{0.1, 0.2, 6.1, 6.2, nan, nan, nan, nan})
	without := changeRaster(2, 2, []float64{0.1, 0.2, 6.1, 6.2})

	a, err := OtsuThreshold(with)
	require.NoError(t, err)
	b, err := OtsuThreshold(without)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestOtsuThreshold_UniformValues(t *testing.T) {
	c := changeRaster(3, 1, []float64{4.2, 4.2, 4.2})

	threshold, err := OtsuThreshold(c)
	require.NoError(t, err)
	assert.Equal(t, 4.2, threshold)

	// With strict-greater classification nothing is flooded.
	cfg := &config.Config{ThresholdMode: config.ThresholdAutomatic}
	m, _, err := Classify(c, cfg)
	require.NoError(t, err)
	assert.Zero(t, m.FloodedCount())
}

func TestOtsuThreshold_EmptyInput(t *testing.T) {
	nan := math.NaN()
	c := changeRaster(2, 1, []float64{nan, nan})

	_, err := OtsuThreshold(c)
	var empty *EmptyInputError
	require.ErrorAs(t, err, &empty)
}
