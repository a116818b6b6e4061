// Package config loads and validates the prediction engine configuration.
// Files may be JSON or YAML; fields omitted from the file fall back to the
// Get* defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical defaults file. This is the
// single source of truth for the shipped route table and engine defaults.
const DefaultConfigPath = "config/prediction.defaults.json"

// Operating modes for the prediction engine.
const (
	ModeNormal         = "normal"
	ModeDataCollection = "data-collection"
	ModeFrameDump      = "frame-dump-only"
)

// IsValidMode checks if mode is a known operating mode.
func IsValidMode(mode string) bool {
	switch mode {
	case ModeNormal, ModeDataCollection, ModeFrameDump:
		return true
	}
	return false
}

// RouteEntry declares one (obstacle type, obstacle status) to evaluator
// mapping consumed by route resolution. Entries with missing fields are
// skipped with a diagnostic at resolution time, not rejected here.
type RouteEntry struct {
	ObstacleType   string `json:"obstacle_type,omitempty" yaml:"obstacle_type,omitempty"`
	ObstacleStatus string `json:"obstacle_status,omitempty" yaml:"obstacle_status,omitempty"`
	Evaluator      string `json:"evaluator_type,omitempty" yaml:"evaluator_type,omitempty"`
}

// PredictionConfig represents the root configuration for the prediction
// engine: worker pool sizing, operating mode, route table and ego profile.
type PredictionConfig struct {
	// Worker pool sizing
	TotalWorkers   *int  `json:"total_workers,omitempty" yaml:"total_workers,omitempty"`
	CautionWorkers *int  `json:"caution_workers,omitempty" yaml:"caution_workers,omitempty"`
	MultiThread    *bool `json:"multi_thread,omitempty" yaml:"multi_thread,omitempty"`

	// Engine behaviour
	SemanticMap   *bool   `json:"semantic_map,omitempty" yaml:"semantic_map,omitempty"`
	OperatingMode *string `json:"operating_mode,omitempty" yaml:"operating_mode,omitempty"`
	EgoVehicleID  *int    `json:"ego_vehicle_id,omitempty" yaml:"ego_vehicle_id,omitempty"`

	// Obstacle container params
	HistoryCapacity     *int     `json:"history_capacity,omitempty" yaml:"history_capacity,omitempty"`
	StillSpeedThreshold *float64 `json:"still_speed_threshold,omitempty" yaml:"still_speed_threshold,omitempty"`
	StaleAfter          *string  `json:"stale_after,omitempty" yaml:"stale_after,omitempty"` // duration string like "5s"

	// Feature store flush params
	FlushInterval *string `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"` // duration string like "5s"

	// Ego vehicle profile (metres)
	EgoLength *float64 `json:"ego_length,omitempty" yaml:"ego_length,omitempty"`
	EgoWidth  *float64 `json:"ego_width,omitempty" yaml:"ego_width,omitempty"`
	EgoHeight *float64 `json:"ego_height,omitempty" yaml:"ego_height,omitempty"`

	// Route table
	Routes []RouteEntry `json:"routes,omitempty" yaml:"routes,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPredictionConfig returns a PredictionConfig with all fields set to
// nil. Use LoadPredictionConfig to load actual values from a file.
func EmptyPredictionConfig() *PredictionConfig {
	return &PredictionConfig{}
}

// LoadPredictionConfig loads a PredictionConfig from a JSON or YAML file,
// chosen by extension. The file must be under the max file size.
func LoadPredictionConfig(path string) (*PredictionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPredictionConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent
// directories. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *PredictionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/prediction/evaluators/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadPredictionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. The worker pool
// constraint matters most: both the caution and normal sub-pools must be
// non-empty or the bucket assignment would divide by zero.
func (c *PredictionConfig) Validate() error {
	total := c.GetTotalWorkers()
	caution := c.GetCautionWorkers()
	if total < 2 {
		return fmt.Errorf("total_workers must be at least 2, got %d", total)
	}
	if caution < 1 {
		return fmt.Errorf("caution_workers must be at least 1, got %d", caution)
	}
	if caution >= total {
		return fmt.Errorf("caution_workers (%d) must be less than total_workers (%d)", caution, total)
	}

	if c.OperatingMode != nil && !IsValidMode(*c.OperatingMode) {
		return fmt.Errorf("unknown operating_mode %q", *c.OperatingMode)
	}

	if c.HistoryCapacity != nil && *c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be at least 1, got %d", *c.HistoryCapacity)
	}

	if c.StillSpeedThreshold != nil && *c.StillSpeedThreshold < 0 {
		return fmt.Errorf("still_speed_threshold must be non-negative, got %f", *c.StillSpeedThreshold)
	}

	if c.StaleAfter != nil && *c.StaleAfter != "" {
		if _, err := time.ParseDuration(*c.StaleAfter); err != nil {
			return fmt.Errorf("invalid stale_after '%s': %w", *c.StaleAfter, err)
		}
	}

	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}

	if c.EgoLength != nil && *c.EgoLength <= 0 {
		return fmt.Errorf("ego_length must be positive, got %f", *c.EgoLength)
	}
	if c.EgoWidth != nil && *c.EgoWidth <= 0 {
		return fmt.Errorf("ego_width must be positive, got %f", *c.EgoWidth)
	}
	if c.EgoHeight != nil && *c.EgoHeight <= 0 {
		return fmt.Errorf("ego_height must be positive, got %f", *c.EgoHeight)
	}

	return nil
}

// GetTotalWorkers returns the total_workers value or the default.
func (c *PredictionConfig) GetTotalWorkers() int {
	if c.TotalWorkers == nil {
		return 4 // default
	}
	return *c.TotalWorkers
}

// GetCautionWorkers returns the caution_workers value or the default.
func (c *PredictionConfig) GetCautionWorkers() int {
	if c.CautionWorkers == nil {
		return 1 // default
	}
	return *c.CautionWorkers
}

// GetNormalWorkers returns the size of the normal sub-pool.
func (c *PredictionConfig) GetNormalWorkers() int {
	return c.GetTotalWorkers() - c.GetCautionWorkers()
}

// GetMultiThread returns the multi_thread value or the default.
func (c *PredictionConfig) GetMultiThread() bool {
	if c.MultiThread == nil {
		return true // default
	}
	return *c.MultiThread
}

// GetSemanticMap returns the semantic_map value or the default.
func (c *PredictionConfig) GetSemanticMap() bool {
	if c.SemanticMap == nil {
		return false // default: semantic mapping disabled
	}
	return *c.SemanticMap
}

// GetOperatingMode returns the operating_mode value or the default.
func (c *PredictionConfig) GetOperatingMode() string {
	if c.OperatingMode == nil || *c.OperatingMode == "" {
		return ModeNormal
	}
	return *c.OperatingMode
}

// GetEgoVehicleID returns the ego_vehicle_id value or the default.
func (c *PredictionConfig) GetEgoVehicleID() int {
	if c.EgoVehicleID == nil {
		return -1 // default
	}
	return *c.EgoVehicleID
}

// GetHistoryCapacity returns the history_capacity value or the default.
func (c *PredictionConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return 10 // default
	}
	return *c.HistoryCapacity
}

// GetStillSpeedThreshold returns the still_speed_threshold value or the default.
func (c *PredictionConfig) GetStillSpeedThreshold() float64 {
	if c.StillSpeedThreshold == nil {
		return 0.99 // default (m/s)
	}
	return *c.StillSpeedThreshold
}

// GetStaleAfter parses and returns the StaleAfter as a time.Duration.
func (c *PredictionConfig) GetStaleAfter() time.Duration {
	if c.StaleAfter == nil || *c.StaleAfter == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StaleAfter)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *PredictionConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetEgoLength returns the ego_length value or the default.
func (c *PredictionConfig) GetEgoLength() float64 {
	if c.EgoLength == nil {
		return 4.933 // default (metres)
	}
	return *c.EgoLength
}

// GetEgoWidth returns the ego_width value or the default.
func (c *PredictionConfig) GetEgoWidth() float64 {
	if c.EgoWidth == nil {
		return 2.11 // default (metres)
	}
	return *c.EgoWidth
}

// GetEgoHeight returns the ego_height value or the default.
func (c *PredictionConfig) GetEgoHeight() float64 {
	if c.EgoHeight == nil {
		return 1.48 // default (metres)
	}
	return *c.EgoHeight
}
