package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/floodsight/sar-flood-mapping/internal/region"
	"github.com/floodsight/sar-flood-mapping/internal/stats"
	"github.com/floodsight/sar-flood-mapping/internal/vector"
)

// LoadRegions reads administrative boundaries from a GeoJSON feature
// collection. Every feature needs an "id" property (or a feature ID); "name"
// and "total_area_m2" are optional. Duplicate identifiers are rejected.
func LoadRegions(path string) ([]region.Region, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}

	regions := make([]region.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		boundary, err := toGeom(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("boundaries %q: feature %d: %w", path, i, err)
		}
		regions = append(regions, region.Region{
			ID:          featureID(f),
			Name:        propString(f, "name"),
			Boundary:    boundary,
			TotalAreaM2: propFloat(f, "total_area_m2"),
		})
	}

	if err := region.ValidateUnique(regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// LoadUrban reads the urban-extent boundary and dissolves all features into
// a single polygonal.
func LoadUrban(path string) (geom.Polygonal, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("urban extent %q has no features", path)
	}

	var extent geom.Polygonal = geom.Polygon{}
	for i, f := range fc.Features {
		g, err := toGeom(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("urban extent %q: feature %d: %w", path, i, err)
		}
		extent = extent.Union(g)
	}
	return extent, nil
}

// WriteFloodAreas writes the raw flood polygons, in the raster CRS, one
// feature per connected region. tolerance > 0 applies Douglas-Peucker
// smoothing to the staircase edges; 0 keeps them exact.
func WriteFloodAreas(path string, polys []vector.FloodPolygon, tolerance float64) error {
	fc := orbjson.NewFeatureCollection()
	for _, p := range polys {
		f := orbjson.NewFeature(smooth(toOrb(p.Geom), tolerance))
		f.Properties = orbjson.Properties{
			"region":  p.Region,
			"area":    p.Geom.Area(),
			"flooded": 1,
		}
		fc.Append(f)
	}
	return writeFeatureCollection(path, fc)
}

// WriteRegionStats writes one feature per region plus the aggregate feature,
// geometries in the output CRS, carrying the dashboard-facing attributes.
// Record order matches the region input order; the aggregate comes last.
func WriteRegionStats(path string, res *region.Result, records []stats.StatRecord, tolerance float64) error {
	if len(records) != len(res.PerRegion)+1 {
		return fmt.Errorf("stat records (%d) do not match regions (%d) plus aggregate",
			len(records), len(res.PerRegion))
	}

	fc := orbjson.NewFeatureCollection()
	for i, rf := range res.PerRegion {
		fc.Append(statFeature(rf.Geom, records[i], tolerance))
	}
	fc.Append(statFeature(res.TotalGeom, records[len(records)-1], tolerance))
	return writeFeatureCollection(path, fc)
}

func statFeature(g geom.Polygonal, rec stats.StatRecord, tolerance float64) *orbjson.Feature {
	f := orbjson.NewFeature(smooth(toOrb(g), tolerance))
	fraction := rec.FloodedFraction
	if math.IsNaN(fraction) {
		// JSON has no NaN; the fraction key is simply absent for
		// zero-area regions.
		f.Properties = orbjson.Properties{
			"region_id":       rec.RegionID,
			"region_name":     rec.RegionName,
			"flooded_area_m2": rec.FloodedAreaM2,
		}
		return f
	}
	f.Properties = orbjson.Properties{
		"region_id":        rec.RegionID,
		"region_name":      rec.RegionName,
		"flooded_area_m2":  rec.FloodedAreaM2,
		"flooded_fraction": fraction,
	}
	return f
}

func smooth(mp orb.MultiPolygon, tolerance float64) orb.Geometry {
	if tolerance <= 0 {
		return mp
	}
	return simplify.DouglasPeucker(tolerance).Simplify(mp)
}

func readFeatureCollection(path string) (*orbjson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	fc, err := orbjson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	return fc, nil
}

func writeFeatureCollection(path string, fc *orbjson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

func featureID(f *orbjson.Feature) string {
	if s := propString(f, "id"); s != "" {
		return s
	}
	if f.ID != nil {
		return fmt.Sprintf("%v", f.ID)
	}
	return ""
}

func propString(f *orbjson.Feature, key string) string {
	if v, ok := f.Properties[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func propFloat(f *orbjson.Feature, key string) float64 {
	if v, ok := f.Properties[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return 0
}
