// Package config holds index-wide configuration: process defaults loadable
// from the environment (adapted from config.LoadFromEnv's load-and-
// validate pattern) and the on-disk "prf" property file format, grounded
// on the original C++ library's PropertySet.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the tunables an Index is constructed with.
type Config struct {
	DataDir string // root of the persisted directory layout

	Dimensions int
	Metric     string // name matched against pkg/metric.Metric.String()
	ScalarKind string // name matched against pkg/metric.ScalarKind.String()

	EdgeSizeForCreation      int
	EdgeSizeLimitForCreation int
	TruncationThreshold      int

	NumBlobs     int
	NumSubspaces int
	CodebookSize int
	NProbes      int

	Verbose bool
}

// Default returns the library's baseline configuration.
func Default() *Config {
	return &Config{
		DataDir:                  "./data",
		Dimensions:               128,
		Metric:                   "L2",
		ScalarKind:               "F32",
		EdgeSizeForCreation:      10,
		EdgeSizeLimitForCreation: 5,
		TruncationThreshold:      50,
		NumBlobs:                 64,
		NumSubspaces:             8,
		CodebookSize:             256,
		NProbes:                  4,
		Verbose:                  false,
	}
}

// LoadFromEnv overlays NGT_* environment variables onto Default().
func LoadFromEnv() *Config {
	cfg := Default()

	if dir := os.Getenv("NGT_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if dims := os.Getenv("NGT_DIMENSIONS"); dims != "" {
		if d, err := strconv.Atoi(dims); err == nil {
			cfg.Dimensions = d
		}
	}
	if m := os.Getenv("NGT_METRIC"); m != "" {
		cfg.Metric = m
	}
	if sk := os.Getenv("NGT_SCALAR_KIND"); sk != "" {
		cfg.ScalarKind = sk
	}
	if v := os.Getenv("NGT_EDGE_SIZE_FOR_CREATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EdgeSizeForCreation = n
		}
	}
	if v := os.Getenv("NGT_EDGE_SIZE_LIMIT_FOR_CREATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EdgeSizeLimitForCreation = n
		}
	}
	if v := os.Getenv("NGT_TRUNCATION_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TruncationThreshold = n
		}
	}
	if v := os.Getenv("NGT_NUM_BLOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumBlobs = n
		}
	}
	if v := os.Getenv("NGT_NUM_SUBSPACES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumSubspaces = n
		}
	}
	if v := os.Getenv("NGT_CODEBOOK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CodebookSize = n
		}
	}
	if v := os.Getenv("NGT_NPROBES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NProbes = n
		}
	}
	if os.Getenv("NGT_VERBOSE") == "true" {
		cfg.Verbose = true
	}
	return cfg
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data directory not specified")
	}
	if c.Dimensions < 1 {
		return fmt.Errorf("config: invalid dimensions %d (must be > 0)", c.Dimensions)
	}
	if c.EdgeSizeLimitForCreation < 1 {
		return fmt.Errorf("config: invalid edge size limit %d (must be > 0)", c.EdgeSizeLimitForCreation)
	}
	if c.EdgeSizeForCreation < c.EdgeSizeLimitForCreation {
		return fmt.Errorf("config: edge size for creation (%d) must be >= edge size limit (%d)", c.EdgeSizeForCreation, c.EdgeSizeLimitForCreation)
	}
	if c.NumBlobs < 1 {
		return fmt.Errorf("config: invalid num blobs %d (must be > 0)", c.NumBlobs)
	}
	switch c.CodebookSize {
	case 16, 256, 65536:
	default:
		return fmt.Errorf("config: invalid codebook size %d (must be 16, 256, or 65536)", c.CodebookSize)
	}
	return nil
}
