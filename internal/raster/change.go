package raster

import (
	"math"
	"strconv"

	"github.com/floodsight/sar-flood-mapping/internal/config"
)

// ChangeRaster is the per-pixel backscatter drop between a reference and a
// flood scene. Water darkens SAR imagery, so positive values are a plausible
// flood signal. It lives only for the duration of one pipeline run.
type ChangeRaster struct {
	Values     []float64 // row-major, NaN marks nodata
	Width      int
	Height     int
	Transform  [6]float64
	Projection string
	RefScene   string
	FloodScene string
}

// Valid reports whether the pixel at index i carries a usable change value.
func (c *ChangeRaster) Valid(i int) bool { return !math.IsNaN(c.Values[i]) }

// Change computes C = R - F under the configured band combination policy.
// A nodata pixel in any consumed band of either input propagates to nodata
// in C; it is never treated as zero. Pure function: inputs are not modified.
//
// Grid compatibility must have been established with CheckGridMatch; Change
// verifies it again so the precondition cannot be bypassed.
func Change(ref, flood *Raster, cfg *config.Config) (*ChangeRaster, error) {
	if err := CheckGridMatch(ref, flood); err != nil {
		return nil, err
	}
	bands, weights, err := selectBands(ref, cfg)
	if err != nil {
		return nil, err
	}

	n := ref.Width * ref.Height
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = combinedDrop(ref, flood, bands, weights, i)
	}

	return &ChangeRaster{
		Values:     values,
		Width:      ref.Width,
		Height:     ref.Height,
		Transform:  ref.Transform,
		Projection: ref.Projection,
		RefScene:   ref.Scene,
		FloodScene: flood.Scene,
	}, nil
}

// combinedDrop evaluates the weighted backscatter drop at pixel i, or NaN if
// any consumed band is nodata in either scene.
func combinedDrop(ref, flood *Raster, bands []int, weights []float64, i int) float64 {
	sum := 0.0
	for k, b := range bands {
		rv := ref.Bands[b][i]
		fv := flood.Bands[b][i]
		if ref.IsNoData(rv) || flood.IsNoData(fv) {
			return math.NaN()
		}
		sum += weights[k] * (rv - fv)
	}
	return sum
}

// selectBands resolves the band combination policy into band indices and
// per-band weights.
func selectBands(ref *Raster, cfg *config.Config) ([]int, []float64, error) {
	switch cfg.BandPolicy {
	case config.BandSingle:
		if cfg.BandIndex >= len(ref.Bands) {
			return nil, nil, &config.ConfigurationError{
				Option: "BAND_INDEX",
				Value:  strconv.Itoa(cfg.BandIndex),
				Reason: "scene has only " + strconv.Itoa(len(ref.Bands)) + " band(s)",
			}
		}
		return []int{cfg.BandIndex}, []float64{1}, nil
	case config.BandSum:
		bands := make([]int, len(ref.Bands))
		weights := make([]float64, len(ref.Bands))
		for i := range bands {
			bands[i] = i
			weights[i] = 1
		}
		return bands, weights, nil
	case config.BandWeighted:
		if len(cfg.BandWeights) != len(ref.Bands) {
			return nil, nil, &config.ConfigurationError{
				Option: "BAND_WEIGHTS",
				Value:  strconv.Itoa(len(cfg.BandWeights)) + " weight(s)",
				Reason: "scene has " + strconv.Itoa(len(ref.Bands)) + " band(s)",
			}
		}
		bands := make([]int, len(ref.Bands))
		for i := range bands {
			bands[i] = i
		}
		return bands, cfg.BandWeights, nil
	default:
		return nil, nil, &config.ConfigurationError{
			Option: "BAND_POLICY", Value: cfg.BandPolicy, Reason: "unsupported policy",
		}
	}
}
