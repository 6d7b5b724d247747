package vad

import "sort"

// Threshold is the speech/silence decision boundary derived from one
// buffer's energy distribution.
type Threshold struct {
	NoiseFloor float64 // 10th percentile of frame energies
	Peak       float64 // 95th percentile of frame energies
	Value      float64 // noiseFloor + sensitivity * (peak - noiseFloor)
	// Degenerate marks a near-silent or constant buffer (peak <= noise
	// floor); every frame classifies as silence.
	Degenerate bool
}

// ComputeThreshold derives the adaptive decision boundary from all frame
// energies of a buffer and the user sensitivity (0.01-0.50).
func ComputeThreshold(frames []Frame, sensitivity float64) Threshold {
	if len(frames) == 0 {
		return Threshold{Degenerate: true}
	}

	energies := make([]float64, len(frames))
	for i, f := range frames {
		energies[i] = f.Energy
	}
	sort.Float64s(energies)

	noiseFloor := energies[percentileIndex(len(energies), 0.10)]
	peak := energies[percentileIndex(len(energies), 0.95)]

	if peak <= noiseFloor {
		return Threshold{
			NoiseFloor: noiseFloor,
			Peak:       peak,
			Value:      noiseFloor,
			Degenerate: true,
		}
	}

	return Threshold{
		NoiseFloor: noiseFloor,
		Peak:       peak,
		Value:      noiseFloor + sensitivity*(peak-noiseFloor),
	}
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
