package vad

import "math"

// Frame is one fixed-duration analysis window over the sample buffer.
// Frames are immutable once computed; only the label is assigned later
// by classification.
type Frame struct {
	Index            int
	Start            float64 // seconds
	End              float64 // seconds
	Energy           float64 // RMS of the window
	ZeroCrossingRate float64 // sign changes / (frame length - 1)
	Speech           bool    // label, unset until classification
}

// AnalyzeFrames splits a mono buffer into overlapping frames (50% hop) and
// computes per-frame RMS energy and zero-crossing rate. A final partial
// frame is zero-padded if it covers at least half a frame, otherwise dropped.
func AnalyzeFrames(samples []float32, sampleRate int, frameSizeMs int) []Frame {
	if sampleRate <= 0 || frameSizeMs <= 0 {
		return nil
	}

	frameSize := sampleRate * frameSizeMs / 1000
	if frameSize < 2 {
		return nil
	}
	hopSize := frameSize / 2

	var frames []Frame
	for pos := 0; pos < len(samples); pos += hopSize {
		remaining := len(samples) - pos
		if remaining < frameSize {
			// zero-pad the tail frame if it covers at least half a window
			if remaining < frameSize/2 {
				break
			}
		}

		end := pos + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[pos:end]

		frames = append(frames, Frame{
			Index:            len(frames),
			Start:            float64(pos) / float64(sampleRate),
			End:              float64(pos+frameSize) / float64(sampleRate),
			Energy:           rms(window, frameSize),
			ZeroCrossingRate: zeroCrossingRate(window, frameSize),
		})
	}

	return frames
}

// rms computes root-mean-square energy over frameSize samples, treating
// anything past len(window) as zero padding.
func rms(window []float32, frameSize int) float64 {
	if frameSize == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(frameSize))
}

// zeroCrossingRate computes the fraction of sample-to-sample sign changes
// over frameSize samples. Zero padding counts as non-negative, matching the
// sign convention used for real samples.
func zeroCrossingRate(window []float32, frameSize int) float64 {
	if frameSize < 2 {
		return 0
	}
	crossings := 0
	prevNonNeg := len(window) == 0 || window[0] >= 0
	for i := 1; i < frameSize; i++ {
		nonNeg := true
		if i < len(window) {
			nonNeg = window[i] >= 0
		}
		if nonNeg != prevNonNeg {
			crossings++
		}
		prevNonNeg = nonNeg
	}
	return float64(crossings) / float64(frameSize-1)
}
