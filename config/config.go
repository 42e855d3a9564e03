// Package config - Aggregated runtime configuration with .env file and
// LINECOUNT_* environment overrides.
package config

import (
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-linecount/annotate"
	"github.com/nvr-ai/go-linecount/counter"
	"github.com/nvr-ai/go-linecount/detector"
	"github.com/nvr-ai/go-linecount/pipeline"
	"github.com/pkg/errors"
)

// Environment keys.
const (
	EnvConfThreshold  = "LINECOUNT_CONF_THRESHOLD"
	EnvNMSThreshold   = "LINECOUNT_NMS_THRESHOLD"
	EnvNMSClassAware  = "LINECOUNT_NMS_CLASS_AWARE"
	EnvBandDivisor    = "LINECOUNT_BAND_DIVISOR"
	EnvBandHalfHeight = "LINECOUNT_BAND_HALF_HEIGHT"
	EnvTolerance      = "LINECOUNT_TOLERANCE"
	EnvPolicy         = "LINECOUNT_POLICY"
	EnvBackend        = "LINECOUNT_BACKEND"
	EnvModel          = "LINECOUNT_MODEL"
	EnvModelConfig    = "LINECOUNT_MODEL_CONFIG"
	EnvLayout         = "LINECOUNT_LAYOUT"
	EnvInputSize      = "LINECOUNT_INPUT_SIZE"
	EnvNumClasses     = "LINECOUNT_NUM_CLASSES"
	EnvORTLibrary     = "LINECOUNT_ORT_LIB"
	EnvLabels         = "LINECOUNT_LABELS"
	EnvStore          = "LINECOUNT_STORE"
	EnvMetricsAddr    = "LINECOUNT_METRICS_ADDR"
	EnvShowBand       = "LINECOUNT_SHOW_BAND"
	EnvReportInterval = "LINECOUNT_REPORT_INTERVAL"
)

// Config is the full configuration of a counting run.
type Config struct {
	Detector detector.Config `json:"detector" yaml:"detector"`
	Pipeline pipeline.Config `json:"pipeline" yaml:"pipeline"`
	Counter  counter.Config  `json:"counter" yaml:"counter"`
	Annotate annotate.Config `json:"annotate" yaml:"annotate"`
	// LabelsPath is a line-delimited class name file. Empty uses the built-in
	// COCO names.
	LabelsPath string `json:"labels_path" yaml:"labels_path"`
	// StorePath is the sqlite crossing store. Empty disables persistence.
	StorePath string `json:"store_path" yaml:"store_path"`
	// MetricsAddr is the listen address for /metrics. Empty disables it.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
	// ReportInterval is the profiler summary interval. Zero disables reports.
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Detector:       detector.DefaultConfig(),
		Pipeline:       pipeline.DefaultConfig(),
		Counter:        counter.DefaultConfig(),
		ReportInterval: 30 * time.Second,
	}
}

// Load builds the configuration from the defaults, an optional .env file and
// the process environment. Process variables win over the file.
//
// Arguments:
//   - envFile: Path of a .env file, or empty.
//
// Returns:
//   - Config: The merged configuration.
//   - error: If the file cannot be read or a value does not parse.
func Load(envFile string) (Config, error) {
	fileEnv := map[string]string{}
	if envFile != "" {
		var err error
		fileEnv, err = godotenv.Read(envFile)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read env file %s", envFile)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the variables lookup reports as set.
//
// Arguments:
//   - lookup: Returns a variable's value and whether it is set.
//
// Returns:
//   - error: The first value that does not parse.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get(EnvConfThreshold); ok {
		f, err := parseFloat32(EnvConfThreshold, v)
		if err != nil {
			return err
		}
		c.Pipeline.ConfThreshold = f
		c.Pipeline.NMS.ScoreThreshold = f
	}
	if v, ok := get(EnvNMSThreshold); ok {
		f, err := parseFloat32(EnvNMSThreshold, v)
		if err != nil {
			return err
		}
		c.Pipeline.NMS.IoUThreshold = f
	}
	if v, ok := get(EnvNMSClassAware); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvNMSClassAware)
		}
		c.Pipeline.NMS.ClassAware = b
	}
	if v, ok := get(EnvBandDivisor); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvBandDivisor)
		}
		c.Counter.BandDivisor = n
	}
	if v, ok := get(EnvBandHalfHeight); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvBandHalfHeight)
		}
		c.Counter.BandHalfHeight = n
	}
	if v, ok := get(EnvTolerance); ok {
		f, err := parseFloat32(EnvTolerance, v)
		if err != nil {
			return err
		}
		c.Counter.Tolerance = f
	}
	if v, ok := get(EnvPolicy); ok {
		p, err := counter.ParsePolicy(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvPolicy)
		}
		c.Counter.Policy = p
	}
	if v, ok := get(EnvBackend); ok {
		c.Detector.Backend = detector.Backend(strings.ToLower(v))
	}
	if v, ok := get(EnvModel); ok {
		c.Detector.ModelPath = v
	}
	if v, ok := lookup(EnvModelConfig); ok {
		// An explicitly empty value selects a single-file model.
		c.Detector.ConfigPath = strings.TrimSpace(v)
	}
	if v, ok := get(EnvLayout); ok {
		c.Detector.Layout = detector.Layout(strings.ToLower(v))
	}
	if v, ok := get(EnvInputSize); ok {
		size, err := ParseSize(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvInputSize)
		}
		c.Detector.InputSize = size
	}
	if v, ok := get(EnvNumClasses); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvNumClasses)
		}
		c.Detector.NumClasses = n
	}
	if v, ok := get(EnvORTLibrary); ok {
		c.Detector.SharedLibPath = v
	}
	if v, ok := get(EnvLabels); ok {
		c.LabelsPath = v
	}
	if v, ok := get(EnvStore); ok {
		c.StorePath = v
	}
	if v, ok := get(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := get(EnvShowBand); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvShowBand)
		}
		c.Annotate.ShowBand = b
	}
	if v, ok := get(EnvReportInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvReportInterval)
		}
		c.ReportInterval = d
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if err := c.Counter.Validate(); err != nil {
		return errors.Wrap(err, "counter")
	}
	if c.Pipeline.ConfThreshold < 0 || c.Pipeline.ConfThreshold >= 1 {
		return errors.Errorf("confidence threshold must be in [0, 1), got %g", c.Pipeline.ConfThreshold)
	}
	if c.Pipeline.NMS.IoUThreshold <= 0 || c.Pipeline.NMS.IoUThreshold > 1 {
		return errors.Errorf("nms threshold must be in (0, 1], got %g", c.Pipeline.NMS.IoUThreshold)
	}
	return nil
}

// ParseSize parses "320" or "608x608" into a width and height.
func ParseSize(s string) (image.Point, error) {
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	width, err := strconv.Atoi(w)
	if err != nil {
		return image.Point{}, errors.Wrapf(err, "invalid size %q", s)
	}
	height := width
	if found {
		if height, err = strconv.Atoi(h); err != nil {
			return image.Point{}, errors.Wrapf(err, "invalid size %q", s)
		}
	}
	if width <= 0 || height <= 0 {
		return image.Point{}, errors.Errorf("invalid size %q", s)
	}
	return image.Pt(width, height), nil
}

func parseFloat32(key, v string) (float32, error) {
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	return float32(f), nil
}
