// Package raster models georeferenced SAR backscatter grids and the
// change metric computed between a dry reference scene and a flood scene.
//
// Grids are band-major, row-major float64 decibel values. The six-element
// transform follows the GDAL geotransform convention:
//
//	x = t[0] + col*t[1] + row*t[2]
//	y = t[3] + col*t[4] + row*t[5]
//
// Two rasters entering change detection must share transform, projection,
// and shape exactly; mismatches are a precondition failure, never a silent
// resample.
package raster

import (
	"fmt"
	"math"
)

// Raster is an immutable georeferenced backscatter grid.
type Raster struct {
	Scene      string      // identifier for diagnostics, usually the file name
	Bands      [][]float64 // band-major, each len Width*Height
	Width      int
	Height     int
	Transform  [6]float64
	Projection string // WKT as read from the source, informational
	NoData     float64
}

// GridMismatchError reports a precondition failure between two scenes.
type GridMismatchError struct {
	Field      string
	RefScene   string
	FloodScene string
	Ref        string
	Flood      string
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("grid mismatch between %q and %q: %s differs (%s vs %s)",
		e.RefScene, e.FloodScene, e.Field, e.Ref, e.Flood)
}

// IsNoData reports whether v is the raster's nodata sentinel. NaN sentinels
// are matched with IsNaN since NaN != NaN.
func (r *Raster) IsNoData(v float64) bool {
	if math.IsNaN(r.NoData) {
		return math.IsNaN(v)
	}
	return v == r.NoData
}

// PixelArea returns the area of one pixel in the grid's own units, from the
// determinant of the affine transform's linear part.
func (r *Raster) PixelArea() float64 {
	return math.Abs(r.Transform[1]*r.Transform[5] - r.Transform[2]*r.Transform[4])
}

// CheckGridMatch verifies that two scenes share transform, projection, and
// shape. Returns a *GridMismatchError naming the offending field.
func CheckGridMatch(ref, flood *Raster) error {
	mismatch := func(field, a, b string) error {
		return &GridMismatchError{
			Field: field, RefScene: ref.Scene, FloodScene: flood.Scene, Ref: a, Flood: b,
		}
	}

	if ref.Width != flood.Width || ref.Height != flood.Height {
		return mismatch("shape",
			fmt.Sprintf("%dx%d", ref.Width, ref.Height),
			fmt.Sprintf("%dx%d", flood.Width, flood.Height))
	}
	if ref.Transform != flood.Transform {
		return mismatch("transform",
			fmt.Sprintf("%v", ref.Transform), fmt.Sprintf("%v", flood.Transform))
	}
	if ref.Projection != flood.Projection {
		return mismatch("projection", ref.Projection, flood.Projection)
	}
	if len(ref.Bands) != len(flood.Bands) {
		return mismatch("band count",
			fmt.Sprintf("%d", len(ref.Bands)), fmt.Sprintf("%d", len(flood.Bands)))
	}
	return nil
}
