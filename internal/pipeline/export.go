package pipeline

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/floodsight/sar-flood-mapping/internal/adapter/geojson"
	"github.com/floodsight/sar-flood-mapping/internal/adapter/geotiff"
	"github.com/floodsight/sar-flood-mapping/internal/config"
	"github.com/floodsight/sar-flood-mapping/internal/stats"
)

// Product file names within the output directory.
const (
	MaskFile        = "flood_mask.tif"
	ChangeFile      = "change_map.tif"
	FloodAreasFile  = "flood_areas.geojson"
	RegionStatsFile = "flood_regions.geojson"
	StatsCSVFile    = "flood_stats.csv"
)

// Exporter writes all run products into one directory. Every product is
// written to a temporary name first and the whole set is renamed into place
// only after each write succeeded, so a failed run never leaves a directory
// that looks complete.
type Exporter struct {
	OutDir    string
	Tolerance float64
	Logger    *slog.Logger
}

// NewExporter creates an Exporter for the output directory.
func NewExporter(outDir string, cfg *config.Config, logger *slog.Logger) *Exporter {
	return &Exporter{OutDir: outDir, Tolerance: cfg.SimplifyTolerance, Logger: logger}
}

// Write commits all products of a run.
func (e *Exporter) Write(p *Products) error {
	if err := os.MkdirAll(e.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", e.OutDir, err)
	}

	steps := []struct {
		name  string
		write func(path string) error
	}{
		{MaskFile, func(path string) error { return geotiff.WriteMask(path, p.Mask) }},
		{ChangeFile, func(path string) error { return geotiff.WriteChange(path, p.Change) }},
		{FloodAreasFile, func(path string) error {
			return geojson.WriteFloodAreas(path, p.Polygons, e.Tolerance)
		}},
		{RegionStatsFile, func(path string) error {
			return geojson.WriteRegionStats(path, p.Clipped, p.Records, e.Tolerance)
		}},
		{StatsCSVFile, func(path string) error { return writeStatsCSV(path, p.Records) }},
	}

	staged := make([]string, 0, len(steps))
	finals := make([]string, 0, len(steps))
	for _, s := range steps {
		tmp := filepath.Join(e.OutDir, "."+s.name+".partial")
		if err := s.write(tmp); err != nil {
			for _, t := range staged {
				os.Remove(t)
			}
			os.Remove(tmp)
			return fmt.Errorf("writing %s: %w", s.name, err)
		}
		staged = append(staged, tmp)
		finals = append(finals, filepath.Join(e.OutDir, s.name))
	}

	return e.commit(staged, finals)
}

// commit renames the staged temps into place. A rename failure rolls back:
// the remaining temps and every product already renamed are removed, so the
// directory never holds a subset of finals that looks like a complete run.
func (e *Exporter) commit(staged, finals []string) error {
	for i := range staged {
		if err := os.Rename(staged[i], finals[i]); err != nil {
			for _, tmp := range staged[i:] {
				os.Remove(tmp)
			}
			for _, done := range finals[:i] {
				os.Remove(done)
			}
			return fmt.Errorf("committing %s: %w", filepath.Base(finals[i]), err)
		}
		e.Logger.Debug("wrote product", "file", finals[i])
	}
	return nil
}

func writeStatsCSV(path string, records []stats.StatRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"region_id", "region_name", "flooded_area_m2", "region_area_m2",
		"flooded_fraction", "parts", "processed_at",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		fraction := ""
		if !math.IsNaN(rec.FloodedFraction) {
			fraction = strconv.FormatFloat(rec.FloodedFraction, 'f', -1, 64)
		}
		row := []string{
			rec.RegionID,
			rec.RegionName,
			strconv.FormatFloat(rec.FloodedAreaM2, 'f', -1, 64),
			strconv.FormatFloat(rec.RegionAreaM2, 'f', -1, 64),
			fraction,
			strconv.Itoa(rec.Parts),
			rec.ProcessedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
