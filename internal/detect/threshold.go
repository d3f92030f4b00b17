package detect

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/floodsight/sar-flood-mapping/internal/config"
	"github.com/floodsight/sar-flood-mapping/internal/raster"
)

// otsuBins is the histogram resolution for automatic thresholding. 256 bins
// over the observed value range mirrors the classic 8-bit formulation.
const otsuBins = 256

// EmptyInputError means the change raster held no valid pixels to classify.
type EmptyInputError struct {
	RefScene   string
	FloodScene string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no valid pixels to classify in change raster (%q - %q)",
		e.RefScene, e.FloodScene)
}

// Classify converts a change raster into a flood mask. A pixel is flooded
// iff its change value is strictly greater than the threshold; equality is
// not flooded. Nodata pixels become Unknown. The threshold actually applied
// is returned for reporting.
func Classify(c *raster.ChangeRaster, cfg *config.Config) (*Mask, float64, error) {
	threshold := cfg.FixedThresholdDB
	if cfg.ThresholdMode == config.ThresholdAutomatic {
		t, err := OtsuThreshold(c)
		if err != nil {
			return nil, 0, err
		}
		threshold = t
	} else if !hasValidPixel(c) {
		return nil, 0, &EmptyInputError{RefScene: c.RefScene, FloodScene: c.FloodScene}
	}

	m := &Mask{
		Values:     make([]uint8, len(c.Values)),
		Width:      c.Width,
		Height:     c.Height,
		Transform:  c.Transform,
		Projection: c.Projection,
	}
	for i, v := range c.Values {
		switch {
		case !c.Valid(i):
			m.Values[i] = Unknown
		case v > threshold:
			m.Values[i] = Flooded
		default:
			m.Values[i] = NotFlooded
		}
	}
	return m, threshold, nil
}

// OtsuThreshold selects the change value that maximizes between-class
// variance over a fixed-width histogram of the valid pixels. The scan is a
// deterministic left-to-right pass; among equal criteria the lowest
// threshold wins.
func OtsuThreshold(c *raster.ChangeRaster) (float64, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	valid := 0
	for i, v := range c.Values {
		if !c.Valid(i) {
			continue
		}
		valid++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if valid == 0 {
		return 0, &EmptyInputError{RefScene: c.RefScene, FloodScene: c.FloodScene}
	}
	if lo == hi {
		// Degenerate histogram, one class only. With strict-greater
		// classification this marks every pixel not flooded.
		return lo, nil
	}

	counts := make([]float64, otsuBins)
	binWidth := (hi - lo) / otsuBins
	for i, v := range c.Values {
		if !c.Valid(i) {
			continue
		}
		bin := int((v - lo) / binWidth)
		if bin >= otsuBins {
			bin = otsuBins - 1
		}
		counts[bin]++
	}

	// Cumulative pixel counts and cumulative first moments per bin.
	weighted := make([]float64, otsuBins)
	for b := range counts {
		weighted[b] = counts[b] * float64(b)
	}
	cumCount := make([]float64, otsuBins)
	cumMoment := make([]float64, otsuBins)
	floats.CumSum(cumCount, counts)
	floats.CumSum(cumMoment, weighted)

	total := cumCount[otsuBins-1]
	totalMoment := cumMoment[otsuBins-1]

	bestBin := 0
	bestVariance := -1.0
	for b := 0; b < otsuBins-1; b++ {
		w0 := cumCount[b]
		w1 := total - w0
		if w0 == 0 || w1 == 0 {
			continue
		}
		mu0 := cumMoment[b] / w0
		mu1 := (totalMoment - cumMoment[b]) / w1
		variance := w0 * w1 * (mu0 - mu1) * (mu0 - mu1)
		if variance > bestVariance {
			bestVariance = variance
			bestBin = b
		}
	}

	// The split falls on the upper edge of the winning bin: values in the
	// bin stay in the lower class under strict-greater comparison.
	return lo + float64(bestBin+1)*binWidth, nil
}

func hasValidPixel(c *raster.ChangeRaster) bool {
	for i := range c.Values {
		if c.Valid(i) {
			return true
		}
	}
	return false
}
