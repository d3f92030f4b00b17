package geojson

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/geom"
	orbjson "github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodsight/sar-flood-mapping/internal/config"
	"github.com/floodsight/sar-flood-mapping/internal/region"
	"github.com/floodsight/sar-flood-mapping/internal/stats"
	"github.com/floodsight/sar-flood-mapping/internal/vector"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.geojson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const regionsFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"id": "gu-nw", "name": "Northwest District", "total_area_m2": 12500.0},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    },
    {
      "type": "Feature",
      "properties": {"id": "gu-ne"},
      "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[2,0],[3,0],[3,1],[2,1],[2,0]]],
        [[[4,0],[5,0],[5,1],[4,1],[4,0]]]
      ]}
    }
  ]
}`

func TestLoadRegions(t *testing.T) {
	path := writeFixture(t, regionsFixture)

	regions, err := LoadRegions(path)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, "gu-nw", regions[0].ID)
	assert.Equal(t, "Northwest District", regions[0].Name)
	assert.Equal(t, 12500.0, regions[0].TotalAreaM2)
	assert.InDelta(t, 1.0, regions[0].Boundary.Area(), 1e-12)

	assert.Equal(t, "gu-ne", regions[1].ID)
	assert.Empty(t, regions[1].Name)
	assert.Zero(t, regions[1].TotalAreaM2)
	assert.InDelta(t, 2.0, regions[1].Boundary.Area(), 1e-12, "both multipolygon parts count")
}

func TestLoadRegions_DuplicateID(t *testing.T) {
	path := writeFixture(t, `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"id": "dup"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"id": "dup"},
     "geometry": {"type": "Polygon", "coordinates": [[[2,0],[3,0],[3,1],[2,0]]]}}
  ]
}`)

	_, err := LoadRegions(path)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "dup", cfgErr.Value)
}

func TestLoadRegions_MissingID(t *testing.T) {
	path := writeFixture(t, `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "anonymous"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}}
  ]
}`)

	_, err := LoadRegions(path)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "missing an id")
}

func TestLoadRegions_FeatureIDFallback(t *testing.T) {
	path := writeFixture(t, `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "from-feature-id", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}}
  ]
}`)

	regions, err := LoadRegions(path)
	require.NoError(t, err)
	assert.Equal(t, "from-feature-id", regions[0].ID)
}

func TestLoadRegions_RejectsPointGeometry(t *testing.T) {
	path := writeFixture(t, `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"id": "pt"},
     "geometry": {"type": "Point", "coordinates": [0, 0]}}
  ]
}`)

	_, err := LoadRegions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported geometry type")
}

func TestLoadUrban_DissolvesFeatures(t *testing.T) {
	path := writeFixture(t, `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[1,1],[3,1],[3,3],[1,3],[1,1]]]}}
  ]
}`)

	extent, err := LoadUrban(path)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, extent.Area(), 1e-9, "overlap is not double counted")
}

func TestLoadUrban_EmptyCollection(t *testing.T) {
	path := writeFixture(t, `{"type": "FeatureCollection", "features": []}`)
	_, err := LoadUrban(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no features")
}

func TestWriteFloodAreas_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flood_areas.geojson")
	polys := []vector.FloodPolygon{
		{Region: 1, Geom: geom.Polygon{{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0},
		}}},
		{Region: 2, Geom: geom.Polygon{{
			{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 6, Y: 6}, {X: 5, Y: 6}, {X: 5, Y: 5},
		}}},
	}

	require.NoError(t, WriteFloodAreas(path, polys, 0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := orbjson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	assert.Equal(t, 1.0, fc.Features[0].Properties["region"])
	assert.Equal(t, 1.0, fc.Features[0].Properties["area"])

	back, err := toGeom(fc.Features[1].Geometry)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, back.Area(), 1e-12)
}

func TestWriteRegionStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flood_regions.geojson")
	now := time.Date(2022, time.August, 9, 6, 0, 0, 0, time.UTC)

	sq := geom.Polygon{{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}, {X: 0, Y: 0},
	}}
	res := &region.Result{
		PerRegion: []region.RegionFlood{{
			Region: region.Region{ID: "gu-nw", Name: "Northwest"},
			Geom:   sq,
		}},
		TotalGeom: sq,
	}
	records := []stats.StatRecord{
		{RegionID: "gu-nw", RegionName: "Northwest", FloodedAreaM2: 10000, RegionAreaM2: 40000, FloodedFraction: 0.25, ProcessedAt: now},
		{RegionID: stats.TotalID, FloodedAreaM2: 10000, FloodedFraction: math.NaN(), ProcessedAt: now},
	}

	require.NoError(t, WriteRegionStats(path, res, records, 0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := orbjson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0].Properties
	assert.Equal(t, "gu-nw", first["region_id"])
	assert.Equal(t, "Northwest", first["region_name"])
	assert.Equal(t, 10000.0, first["flooded_area_m2"])
	assert.Equal(t, 0.25, first["flooded_fraction"])

	total := fc.Features[1].Properties
	assert.Equal(t, stats.TotalID, total["region_id"])
	_, hasFraction := total["flooded_fraction"]
	assert.False(t, hasFraction, "NaN fraction is omitted, JSON has no NaN")
}

func TestWriteRegionStats_RecordCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flood_regions.geojson")
	res := &region.Result{TotalGeom: geom.Polygon{}}
	err := WriteRegionStats(path, res, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")
}

func TestWriteFloodAreas_SimplifyReducesVertices(t *testing.T) {
	// A staircase edge with many collinear-ish vertices.
	stair := geom.Polygon{{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 0.01}, {X: 2, Y: 0.01},
		{X: 2, Y: 0.02}, {X: 3, Y: 0.02}, {X: 3, Y: 3}, {X: 0, Y: 3}, {X: 0, Y: 0},
	}}
	polys := []vector.FloodPolygon{{Region: 1, Geom: stair}}

	exactPath := filepath.Join(t.TempDir(), "exact.geojson")
	require.NoError(t, WriteFloodAreas(exactPath, polys, 0))
	smoothPath := filepath.Join(t.TempDir(), "smooth.geojson")
	require.NoError(t, WriteFloodAreas(smoothPath, polys, 0.1))

	assert.Greater(t, countVertices(t, exactPath), countVertices(t, smoothPath))
}

func countVertices(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := orbjson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)

	n := 0
	for _, f := range fc.Features {
		g, err := toGeom(f.Geometry)
		require.NoError(t, err)
		for _, poly := range g.Polygons() {
			for _, ring := range poly {
				n += len(ring)
			}
		}
	}
	return n
}
