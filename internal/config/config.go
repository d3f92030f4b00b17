package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Threshold classification modes.
const (
	ThresholdFixed     = "fixed"
	ThresholdAutomatic = "automatic"
)

// Band combination policies for multi-polarization scenes.
const (
	BandSingle   = "single"
	BandSum      = "sum"
	BandWeighted = "weighted"
)

// Default proj4 definitions. Input scenes from the sample generator are in
// geographic WGS84; areas are computed in a Lambert conformal conic centered
// on the Korean peninsula so square meters are locally accurate.
const (
	DefaultRasterProj = "+proj=longlat +datum=WGS84 +no_defs"
	DefaultOutputProj = "+proj=lcc +lat_1=34 +lat_2=38 +lat_0=36 +lon_0=127.5 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs"
)

// ConfigurationError reports an option whose value is outside its domain.
// It is fatal at startup, before any raster is opened.
type ConfigurationError struct {
	Option string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s=%q: %s", e.Option, e.Value, e.Reason)
}

// Config holds all pipeline settings, populated from environment variables.
// Input and output file paths are command-line flags, not configuration.
type Config struct {
	ThresholdMode    string
	FixedThresholdDB float64
	MinRegionSizePx  int
	HoleFillSizePx   int

	BandPolicy  string
	BandIndex   int
	BandWeights []float64

	RasterProj        string
	OutputProj        string
	SimplifyTolerance float64
	GeometryRepair    bool
	RegionWorkers     int

	LogLevel  string
	LogFormat string

	// Optional run-summary publication for the dashboard.
	KafkaBrokers      []string
	KafkaSummaryTopic string

	// Optional Pushgateway delivery of batch metrics.
	MetricsPushURL string
}

// Load reads configuration from environment variables, applying defaults
// where unset and rejecting out-of-domain values.
func Load() (*Config, error) {
	cfg := &Config{
		ThresholdMode:     envOrDefault("THRESHOLD_MODE", ThresholdFixed),
		BandPolicy:        envOrDefault("BAND_POLICY", BandSingle),
		RasterProj:        envOrDefault("RASTER_PROJ", DefaultRasterProj),
		OutputProj:        envOrDefault("OUTPUT_PROJ", DefaultOutputProj),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "json"),
		KafkaBrokers:      splitNonEmpty(os.Getenv("KAFKA_BROKERS"), ","),
		KafkaSummaryTopic: envOrDefault("KAFKA_SUMMARY_TOPIC", "flood-run-summaries"),
		MetricsPushURL:    os.Getenv("METRICS_PUSH_URL"),
	}

	var err error
	if cfg.FixedThresholdDB, err = parseFloat("FIXED_THRESHOLD_DB", 3.0); err != nil {
		return nil, err
	}
	if cfg.MinRegionSizePx, err = parseNonNegativeInt("MIN_REGION_SIZE_PX", 50); err != nil {
		return nil, err
	}
	if cfg.HoleFillSizePx, err = parseNonNegativeInt("HOLE_FILL_SIZE_PX", 10); err != nil {
		return nil, err
	}
	if cfg.BandIndex, err = parseNonNegativeInt("BAND_INDEX", 0); err != nil {
		return nil, err
	}
	if cfg.SimplifyTolerance, err = parseFloat("SIMPLIFY_TOLERANCE", 0); err != nil {
		return nil, err
	}
	if cfg.RegionWorkers, err = parseNonNegativeInt("REGION_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.RegionWorkers == 0 {
		cfg.RegionWorkers = runtime.GOMAXPROCS(0)
	}
	if v := os.Getenv("GEOMETRY_REPAIR"); v != "" {
		cfg.GeometryRepair = v == "true"
	}
	if cfg.BandWeights, err = parseWeights(os.Getenv("BAND_WEIGHTS")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ThresholdMode {
	case ThresholdFixed, ThresholdAutomatic:
	default:
		return &ConfigurationError{Option: "THRESHOLD_MODE", Value: c.ThresholdMode,
			Reason: "must be fixed or automatic"}
	}

	switch c.BandPolicy {
	case BandSingle, BandSum:
	case BandWeighted:
		if len(c.BandWeights) == 0 {
			return &ConfigurationError{Option: "BAND_WEIGHTS", Value: "",
				Reason: "required when BAND_POLICY=weighted"}
		}
	default:
		return &ConfigurationError{Option: "BAND_POLICY", Value: c.BandPolicy,
			Reason: "must be single, sum, or weighted"}
	}

	if c.SimplifyTolerance < 0 {
		return &ConfigurationError{Option: "SIMPLIFY_TOLERANCE",
			Value: strconv.FormatFloat(c.SimplifyTolerance, 'g', -1, 64),
			Reason: "must not be negative"}
	}

	if err := validateProj("RASTER_PROJ", c.RasterProj); err != nil {
		return err
	}
	if err := validateProj("OUTPUT_PROJ", c.OutputProj); err != nil {
		return err
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaSummaryTopic == "" {
		return &ConfigurationError{Option: "KAFKA_SUMMARY_TOPIC", Value: "",
			Reason: "required when KAFKA_BROKERS is set"}
	}
	return nil
}

// validateProj resolves the projection rather than just parsing it.
// proj.Parse accepts any +proj name and defers the lookup until a transform
// runs, which would surface an unsupported CRS midway through a run instead
// of before any raster is opened. Building a transform to geographic WGS84
// and pushing one point through it forces the lookup now.
func validateProj(option, value string) error {
	sr, err := proj.Parse(value)
	if err != nil {
		return &ConfigurationError{Option: option, Value: value, Reason: err.Error()}
	}
	longlat, err := proj.Parse(DefaultRasterProj)
	if err != nil {
		return fmt.Errorf("parse geographic reference: %w", err)
	}
	transform, err := sr.NewTransform(longlat)
	if err != nil {
		return &ConfigurationError{Option: option, Value: value, Reason: err.Error()}
	}
	if _, err := (geom.Point{}).Transform(transform); err != nil {
		return &ConfigurationError{Option: option, Value: value, Reason: err.Error()}
	}
	return nil
}

// SummaryEnabled reports whether run summaries should be published to Kafka.
func (c *Config) SummaryEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ConfigurationError{Option: key, Value: s, Reason: "not a number"}
	}
	return v, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, &ConfigurationError{Option: key, Value: s, Reason: "must be a non-negative integer"}
	}
	return v, nil
}

// parseWeights parses a comma-separated weight list. Weights may be zero
// individually but must not all be zero.
func parseWeights(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	weights := make([]float64, 0, len(parts))
	sum := 0.0
	for _, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &ConfigurationError{Option: "BAND_WEIGHTS", Value: s, Reason: "not a number list"}
		}
		weights = append(weights, w)
		sum += w
	}
	if sum == 0 {
		return nil, &ConfigurationError{Option: "BAND_WEIGHTS", Value: s, Reason: "weights sum to zero"}
	}
	return weights, nil
}

func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
