// Package geotiff reads SAR backscatter scenes from, and writes mask and
// change products to, GeoTIFF files via GDAL. It is the only package that
// touches godal, keeping the cgo dependency out of the computation path.
package geotiff

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/floodsight/sar-flood-mapping/internal/detect"
	"github.com/floodsight/sar-flood-mapping/internal/raster"
)

var registerOnce sync.Once

// register loads GDAL drivers once per process.
func register() {
	registerOnce.Do(godal.RegisterAll)
}

// Load reads every band of a georeferenced scene into a raster.Raster. The
// dataset handle is closed before returning, success or not.
func Load(path string) (*raster.Raster, error) {
	register()

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene %q: %w", path, err)
	}
	defer ds.Close()

	transform, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("scene %q: read geotransform: %w", path, err)
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("scene %q has no bands", path)
	}
	structure := bands[0].Structure()
	width, height := structure.SizeX, structure.SizeY

	nodata := math.NaN()
	if v, ok := bands[0].NoData(); ok {
		nodata = v
	}

	r := &raster.Raster{
		Scene:      filepath.Base(path),
		Bands:      make([][]float64, len(bands)),
		Width:      width,
		Height:     height,
		Transform:  transform,
		Projection: ds.Projection(),
		NoData:     nodata,
	}
	for i, band := range bands {
		data := make([]float64, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("scene %q: read band %d: %w", path, i+1, err)
		}
		r.Bands[i] = data
	}
	return r, nil
}

// WriteMask writes the tri-state flood mask as a single-band byte GeoTIFF
// with the source georeferencing. Unknown pixels carry the nodata value 255,
// so the dashboard renders them as transparent rather than dry.
func WriteMask(path string, m *detect.Mask) error {
	register()

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Byte, m.Width, m.Height)
	if err != nil {
		return fmt.Errorf("create mask %q: %w", path, err)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(m.Transform); err != nil {
		return fmt.Errorf("mask %q: set geotransform: %w", path, err)
	}
	if m.Projection != "" {
		if err := ds.SetProjection(m.Projection); err != nil {
			return fmt.Errorf("mask %q: set projection: %w", path, err)
		}
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(float64(detect.Unknown)); err != nil {
		return fmt.Errorf("mask %q: set nodata: %w", path, err)
	}
	if err := band.Write(0, 0, m.Values, m.Width, m.Height); err != nil {
		return fmt.Errorf("mask %q: write band: %w", path, err)
	}
	return nil
}

// WriteChange writes the change raster as a float32 GeoTIFF, nodata NaN.
// The intermediate product is kept so a run can be inspected without
// recomputing the backscatter difference.
func WriteChange(path string, c *raster.ChangeRaster) error {
	register()

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, c.Width, c.Height)
	if err != nil {
		return fmt.Errorf("create change map %q: %w", path, err)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(c.Transform); err != nil {
		return fmt.Errorf("change map %q: set geotransform: %w", path, err)
	}
	if c.Projection != "" {
		if err := ds.SetProjection(c.Projection); err != nil {
			return fmt.Errorf("change map %q: set projection: %w", path, err)
		}
	}

	values := make([]float32, len(c.Values))
	for i, v := range c.Values {
		values[i] = float32(v)
	}
	band := ds.Bands()[0]
	if err := band.SetNoData(math.NaN()); err != nil {
		return fmt.Errorf("change map %q: set nodata: %w", path, err)
	}
	if err := band.Write(0, 0, values, c.Width, c.Height); err != nil {
		return fmt.Errorf("change map %q: write band: %w", path, err)
	}
	return nil
}

// WriteScene writes a backscatter raster as a multi-band float32 GeoTIFF.
// Used by the fixture generator; Load reads the result back unchanged.
func WriteScene(path string, r *raster.Raster) error {
	register()

	ds, err := godal.Create(godal.GTiff, path, len(r.Bands), godal.Float32, r.Width, r.Height)
	if err != nil {
		return fmt.Errorf("create scene %q: %w", path, err)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(r.Transform); err != nil {
		return fmt.Errorf("scene %q: set geotransform: %w", path, err)
	}
	if r.Projection != "" {
		if err := ds.SetProjection(r.Projection); err != nil {
			return fmt.Errorf("scene %q: set projection: %w", path, err)
		}
	}

	for bi, band := range ds.Bands() {
		if err := band.SetNoData(r.NoData); err != nil {
			return fmt.Errorf("scene %q band %d: set nodata: %w", path, bi, err)
		}
		values := make([]float32, len(r.Bands[bi]))
		for i, v := range r.Bands[bi] {
			values[i] = float32(v)
		}
		if err := band.Write(0, 0, values, r.Width, r.Height); err != nil {
			return fmt.Errorf("scene %q band %d: write: %w", path, bi, err)
		}
	}
	return nil
}
