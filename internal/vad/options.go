package vad

import (
	"fmt"

	"github.com/scrubslab/scrubs/internal/config"
)

// Options control a single analysis run. All durations are in seconds.
type Options struct {
	// EnergyThreshold is the user sensitivity applied between the measured
	// noise floor and energy peak. Valid range is 0.01-0.50.
	EnergyThreshold float64 `json:"energyThreshold"`
	// MinSegmentDuration is the shortest segment (speech or silence) kept
	// during classification; shorter runs are merged into a neighbor.
	MinSegmentDuration float64 `json:"minSegmentDuration"`
	// MinSilenceDuration is the shortest silence gap kept after padding;
	// shorter gaps are absorbed into the surrounding speech.
	MinSilenceDuration float64 `json:"minSilenceDuration"`
	// FrameSizeMs is the analysis window length. One of 10, 20 or 30.
	FrameSizeMs int `json:"frameSizeMs"`
	// PaddingMs is added on each side of every speech segment (0-500).
	PaddingMs int `json:"paddingMs"`
}

// OptionsFromConfig builds analysis options from the configured defaults
func OptionsFromConfig(cfg config.VADConfig) Options {
	return Options{
		EnergyThreshold:    cfg.EnergyThreshold,
		MinSegmentDuration: float64(cfg.MinSegmentDurationMs) / 1000.0,
		MinSilenceDuration: float64(cfg.MinSilenceDurationMs) / 1000.0,
		FrameSizeMs:        cfg.FrameSizeMs,
		PaddingMs:          cfg.PaddingMs,
	}
}

// Validate rejects out-of-range options before an analysis run starts
func (o Options) Validate() error {
	if o.EnergyThreshold < 0.01 || o.EnergyThreshold > 0.50 {
		return fmt.Errorf("energy threshold %.3f out of range [0.01, 0.50]", o.EnergyThreshold)
	}
	if o.MinSegmentDuration < 0 {
		return fmt.Errorf("min segment duration must not be negative: %f", o.MinSegmentDuration)
	}
	if o.MinSilenceDuration < 0 {
		return fmt.Errorf("min silence duration must not be negative: %f", o.MinSilenceDuration)
	}
	switch o.FrameSizeMs {
	case 10, 20, 30:
	default:
		return fmt.Errorf("frame size %dms not supported (10, 20 or 30)", o.FrameSizeMs)
	}
	if o.PaddingMs < 0 || o.PaddingMs > 500 {
		return fmt.Errorf("padding %dms out of range [0, 500]", o.PaddingMs)
	}
	return nil
}
