// Command validate performs integrity checks across the products of one
// pipeline run: the flood mask GeoTIFF, the flood-area and region GeoJSON
// files, and the stats CSV. It verifies that the raster, vector, and tabular
// views of the run agree with each other.
//
// Usage:
//
//	go run ./cmd/validate -dir out
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	orbjson "github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/floodsight/sar-flood-mapping/internal/adapter/geotiff"
	"github.com/floodsight/sar-flood-mapping/internal/pipeline"
	"github.com/floodsight/sar-flood-mapping/internal/raster"
	"github.com/floodsight/sar-flood-mapping/internal/stats"
)

const relTolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory containing the run products")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Flood Product Integrity Validation ===")
	fmt.Println()

	mask, err := geotiff.Load(filepath.Join(dir, pipeline.MaskFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load mask: %v\n", err)
		return 1
	}
	areas, err := loadFeatureCollection(filepath.Join(dir, pipeline.FloodAreasFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load flood areas: %v\n", err)
		return 1
	}
	regions, err := loadFeatureCollection(filepath.Join(dir, pipeline.RegionStatsFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load region stats: %v\n", err)
		return 1
	}
	records, err := loadStatsCSV(filepath.Join(dir, pipeline.StatsCSVFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load stats CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateMaskVectorParity(mask, areas),
		validateRegionFeatures(regions),
		validateRecords(records),
		validateTabularParity(regions, records),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Products: %dx%d mask, %d flood polygons, %d region features, %d stat rows\n",
		mask.Width, mask.Height, len(areas.Features), len(regions.Features), len(records))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Validation phases ──

// validateMaskVectorParity checks that the vector flood area in the raster
// CRS equals the flooded pixel count times the pixel area. Tracing follows
// pixel boundaries exactly, so the two must agree to rounding error.
func validateMaskVectorParity(mask *raster.Raster, areas *orbjson.FeatureCollection) *phase {
	p := &phase{name: "mask / vector area parity"}

	flooded := 0
	for _, v := range mask.Bands[0] {
		if v == 1 {
			flooded++
		}
	}
	want := float64(flooded) * mask.PixelArea()

	var got float64
	for _, f := range areas.Features {
		got += planar.Area(f.Geometry)
	}

	if !approxEqual(want, got) {
		p.errorf("flooded pixels %d x pixel area = %g, vector area = %g", flooded, want, got)
	}
	return p
}

func validateRegionFeatures(fc *orbjson.FeatureCollection) *phase {
	p := &phase{name: "region feature integrity"}

	seen := map[string]bool{}
	foundTotal := false
	for i, f := range fc.Features {
		id, ok := f.Properties["region_id"].(string)
		if !ok || id == "" {
			p.errorf("feature %d: missing region_id", i)
			continue
		}
		if seen[id] {
			p.errorf("duplicate region_id %q", id)
		}
		seen[id] = true
		if id == stats.TotalID {
			foundTotal = true
			if i != len(fc.Features)-1 {
				p.errorf("aggregate feature %q is not last", id)
			}
		}
		if frac, ok := f.Properties["flooded_fraction"].(float64); ok {
			if frac < 0 || frac > 1 {
				p.errorf("region %q: flooded_fraction %g out of [0,1]", id, frac)
			}
		}
	}
	if !foundTotal {
		p.errorf("no aggregate feature (region_id %q)", stats.TotalID)
	}
	return p
}

func validateRecords(records []statRow) *phase {
	p := &phase{name: "stats CSV integrity"}

	if len(records) == 0 {
		p.errorf("no stat rows")
		return p
	}
	var regionSum float64
	var total float64
	for _, r := range records {
		if r.floodedAreaM2 < 0 {
			p.errorf("region %q: negative flooded area %g", r.regionID, r.floodedAreaM2)
		}
		if r.hasFraction && (r.fraction < 0 || r.fraction > 1) {
			p.errorf("region %q: fraction %g out of [0,1]", r.regionID, r.fraction)
		}
		if r.regionID == stats.TotalID {
			total = r.floodedAreaM2
		} else {
			regionSum += r.floodedAreaM2
		}
	}
	last := records[len(records)-1]
	if last.regionID != stats.TotalID {
		p.errorf("last row is %q, want aggregate %q", last.regionID, stats.TotalID)
	}
	// Regions partition the AOI, so their flooded areas cannot exceed the
	// aggregate. An urban clip shrinks only the aggregate, so allow equality
	// violations no larger than rounding when no clip was applied.
	if regionSum > total*(1+relTolerance) && total > 0 {
		fmt.Printf("  note: per-region sum %g exceeds aggregate %g (urban clip in effect?)\n", regionSum, total)
	}
	return p
}

func validateTabularParity(fc *orbjson.FeatureCollection, records []statRow) *phase {
	p := &phase{name: "CSV / GeoJSON parity"}

	if len(fc.Features) != len(records) {
		p.errorf("feature count %d != row count %d", len(fc.Features), len(records))
		return p
	}
	for i, f := range fc.Features {
		id, _ := f.Properties["region_id"].(string)
		if id != records[i].regionID {
			p.errorf("row %d: geojson region %q, csv region %q", i, id, records[i].regionID)
			continue
		}
		area, _ := f.Properties["flooded_area_m2"].(float64)
		if !approxEqual(area, records[i].floodedAreaM2) {
			p.errorf("region %q: geojson area %g, csv area %g", id, area, records[i].floodedAreaM2)
		}
	}
	return p
}

// ── Data loading ──

func loadFeatureCollection(path string) (*orbjson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return orbjson.UnmarshalFeatureCollection(data)
}

type statRow struct {
	regionID      string
	floodedAreaM2 float64
	fraction      float64
	hasFraction   bool
}

func loadStatsCSV(path string) ([]statRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}
	for _, want := range []string{"region_id", "flooded_area_m2", "flooded_fraction"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, want)
		}
	}

	var rows []statRow
	for i, rec := range all[1:] {
		area, err := strconv.ParseFloat(rec[col["flooded_area_m2"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: flooded_area_m2: %w", path, i+2, err)
		}
		row := statRow{regionID: rec[col["region_id"]], floodedAreaM2: area}
		if s := rec[col["flooded_fraction"]]; s != "" {
			frac, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: flooded_fraction: %w", path, i+2, err)
			}
			row.fraction = frac
			row.hasFraction = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= relTolerance*scale
}
