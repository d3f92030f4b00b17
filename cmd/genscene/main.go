// Command genscene writes a synthetic Sentinel-1 style scene pair plus the
// boundary fixtures the pipeline needs, so the full chain can be exercised
// without real imagery. The dry scene carries an urban-clutter background
// with a low-backscatter river strip; the flood scene widens the strip and
// scatters shallow-water patches over the city.
//
// Usage:
//
//	go run ./cmd/genscene -out testdata/scene
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"

	"github.com/floodsight/sar-flood-mapping/internal/adapter/geotiff"
	"github.com/floodsight/sar-flood-mapping/internal/raster"
)

// Bounding box over the Han river reach the real analysis targets.
const (
	lonMin = 126.80
	lonMax = 127.20
	latMin = 37.45
	latMax = 37.65
)

const sceneNoData = -9999.0

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for the fixture set")
	width := flag.Int("width", 400, "scene width in pixels")
	height := flag.Int("height", 300, "scene height in pixels")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	w, h := *width, *height

	base := baseImage(rng, w, h)
	river := riverMask(w, h)

	dry := applyWater(rng, base, river, -18, 1.5)
	floodMaskPx := expandRiver(river, w, h, maxInt(2, h/30))
	flood := applyWater(rng, base, river, -18, 1.5)
	for i := range flood {
		if floodMaskPx[i] && !river[i] {
			flood[i] = -15 + rng.NormFloat64()*2
		}
	}
	addFloodPatches(rng, flood, w, h, 12)
	maskNoDataCorner(dry, flood, w, h)

	transform := [6]float64{
		lonMin, (lonMax - lonMin) / float64(w), 0,
		latMax, 0, -(latMax - latMin) / float64(h),
	}
	write := func(name string, values []float64) error {
		r := &raster.Raster{
			Scene:     name,
			Bands:     [][]float64{values},
			Width:     w,
			Height:    h,
			Transform: transform,
			NoData:    sceneNoData,
		}
		return geotiff.WriteScene(filepath.Join(*outDir, name), r)
	}
	if err := write("s1_dry.tif", dry); err != nil {
		return err
	}
	if err := write("s1_flood.tif", flood); err != nil {
		return err
	}

	if err := writeRegions(filepath.Join(*outDir, "regions.geojson")); err != nil {
		return err
	}
	if err := writeUrban(filepath.Join(*outDir, "urban.geojson")); err != nil {
		return err
	}

	log.Printf("wrote scene pair and boundaries: %s (%dx%d, seed %d)", *outDir, w, h, *seed)
	return nil
}

// baseImage fills the grid with urban/vegetation clutter around -8 dB.
func baseImage(rng *rand.Rand, w, h int) []float64 {
	out := make([]float64, w*h)
	for i := range out {
		out[i] = -8 + rng.NormFloat64()*3
	}
	return out
}

// riverMask marks a meandering horizontal strip as permanent water.
func riverMask(w, h int) []bool {
	mask := make([]bool, w*h)
	halfWidth := float64(h) / 14
	amplitude := float64(h) / 8
	for c := 0; c < w; c++ {
		center := float64(h)/2 + amplitude*math.Sin(3*math.Pi*float64(c)/float64(w))
		for r := 0; r < h; r++ {
			if math.Abs(float64(r)-center) <= halfWidth {
				mask[r*w+c] = true
			}
		}
	}
	return mask
}

// applyWater copies the base image and overwrites water pixels with low
// backscatter around db.
func applyWater(rng *rand.Rand, base []float64, water []bool, db, sigma float64) []float64 {
	out := make([]float64, len(base))
	copy(out, base)
	for i := range out {
		if water[i] {
			out[i] = db + rng.NormFloat64()*sigma
		}
	}
	return out
}

// expandRiver dilates the water mask by radius pixels (8-neighbourhood), the
// flooded footprint during the event.
func expandRiver(water []bool, w, h, radius int) []bool {
	cur := make([]bool, len(water))
	copy(cur, water)
	for it := 0; it < radius; it++ {
		next := make([]bool, len(cur))
		copy(next, cur)
		for r := 0; r < h; r++ {
			for c := 0; c < w; c++ {
				if cur[r*w+c] {
					continue
				}
			neighbours:
				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						nr, nc := r+dr, c+dc
						if nr < 0 || nr >= h || nc < 0 || nc >= w {
							continue
						}
						if cur[nr*w+nc] {
							next[r*w+c] = true
							break neighbours
						}
					}
				}
			}
		}
		cur = next
	}
	return cur
}

// addFloodPatches scatters rectangular shallow-water patches over the city,
// standing in for pluvial street flooding away from the river.
func addFloodPatches(rng *rand.Rand, img []float64, w, h, n int) {
	for i := 0; i < n; i++ {
		pw := 5 + rng.Intn(15)
		ph := 3 + rng.Intn(12)
		px := rng.Intn(w - pw)
		py := rng.Intn(h - ph)
		for r := py; r < py+ph; r++ {
			for c := px; c < px+pw; c++ {
				img[r*w+c] = -14 + rng.NormFloat64()*2
			}
		}
	}
}

// maskNoDataCorner blanks a swath in the north-west corner of both scenes,
// standing in for the burst edge real acquisitions carry.
func maskNoDataCorner(dry, flood []float64, w, h int) {
	for r := 0; r < h/10; r++ {
		for c := 0; c < w/10-r; c++ {
			dry[r*w+c] = sceneNoData
			flood[r*w+c] = sceneNoData
		}
	}
}

// writeRegions writes four quadrant districts covering the scene bounds.
func writeRegions(path string) error {
	midLon := (lonMin + lonMax) / 2
	midLat := (latMin + latMax) / 2
	quads := []struct {
		id, name       string
		x0, y0, x1, y1 float64
	}{
		{"gu-nw", "Northwest District", lonMin, midLat, midLon, latMax},
		{"gu-ne", "Northeast District", midLon, midLat, lonMax, latMax},
		{"gu-sw", "Southwest District", lonMin, latMin, midLon, midLat},
		{"gu-se", "Southeast District", midLon, latMin, lonMax, midLat},
	}

	fc := orbjson.NewFeatureCollection()
	for _, q := range quads {
		f := orbjson.NewFeature(boxPolygon(q.x0, q.y0, q.x1, q.y1))
		f.Properties["id"] = q.id
		f.Properties["name"] = q.name
		fc.Append(f)
	}
	return writeGeoJSON(path, fc)
}

// writeUrban writes one built-up extent covering the central 80% of the
// scene, so edge flooding falls outside the urban clip.
func writeUrban(path string) error {
	dLon := (lonMax - lonMin) * 0.1
	dLat := (latMax - latMin) * 0.1
	fc := orbjson.NewFeatureCollection()
	f := orbjson.NewFeature(boxPolygon(lonMin+dLon, latMin+dLat, lonMax-dLon, latMax-dLat))
	f.Properties["name"] = "built-up extent"
	fc.Append(f)
	return writeGeoJSON(path, fc)
}

func boxPolygon(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}}
}

func writeGeoJSON(path string, fc *orbjson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
