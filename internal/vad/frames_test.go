package vad

import (
	"math"
	"testing"
)

func TestAnalyzeFramesOverlap(t *testing.T) {
	sampleRate := 1000
	frameSizeMs := 30 // 30 samples per frame, 15 sample hop
	samples := make([]float32, 90)

	frames := AnalyzeFrames(samples, sampleRate, frameSizeMs)
	// five full frames plus a zero-padded tail covering the last hop
	if len(frames) != 6 {
		t.Fatalf("Expected 6 frames, got %d", len(frames))
	}

	for i, f := range frames {
		wantStart := float64(i*15) / 1000.0
		if math.Abs(f.Start-wantStart) > 1e-9 {
			t.Errorf("Frame %d: expected start %f, got %f", i, wantStart, f.Start)
		}
		if math.Abs(f.End-f.Start-0.030) > 1e-9 {
			t.Errorf("Frame %d: expected 30ms duration, got %f", i, f.End-f.Start)
		}
		if f.Index != i {
			t.Errorf("Frame %d: expected index %d, got %d", i, i, f.Index)
		}
	}
}

func TestAnalyzeFramesTailHandling(t *testing.T) {
	tests := []struct {
		name       string
		numSamples int
		wantFrames int
	}{
		// frame size is 30 samples, hop 15
		{"hop multiple keeps half-window tail", 60, 4},
		{"single full frame keeps half-window tail", 30, 2},
		{"tail of 20 samples is padded", 50, 3},
		{"exactly half a frame is padded", 15, 1},
		{"shorter than half a frame is dropped", 10, 0},
		{"empty buffer", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]float32, tt.numSamples)
			frames := AnalyzeFrames(samples, 1000, 30)
			if len(frames) != tt.wantFrames {
				t.Errorf("Expected %d frames, got %d", tt.wantFrames, len(frames))
			}
		})
	}
}

func TestAnalyzeFramesEnergy(t *testing.T) {
	// constant amplitude buffer: RMS of every full frame equals the amplitude
	samples := make([]float32, 300)
	for i := range samples {
		samples[i] = 0.5
	}

	frames := AnalyzeFrames(samples, 1000, 30)
	if len(frames) == 0 {
		t.Fatal("Expected frames, got none")
	}
	for _, f := range frames {
		if f.End <= 0.3 && math.Abs(f.Energy-0.5) > 1e-6 {
			t.Errorf("Frame at %f: expected energy 0.5, got %f", f.Start, f.Energy)
		}
	}
}

func TestAnalyzeFramesPaddedTailEnergy(t *testing.T) {
	// 50 samples of amplitude 1.0 with frame size 30: the final frame covers
	// 20 real samples and 10 padded zeros, so its RMS is sqrt(20/30)
	samples := make([]float32, 50)
	for i := range samples {
		samples[i] = 1.0
	}

	frames := AnalyzeFrames(samples, 1000, 30)
	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(frames))
	}

	want := math.Sqrt(20.0 / 30.0)
	if math.Abs(frames[2].Energy-want) > 1e-6 {
		t.Errorf("Expected padded tail energy %f, got %f", want, frames[2].Energy)
	}
}

func TestZeroCrossingRate(t *testing.T) {
	// alternating signs: every sample pair crosses zero
	samples := make([]float32, 30)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}

	frames := AnalyzeFrames(samples, 1000, 30)
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if math.Abs(frames[0].ZeroCrossingRate-1.0) > 1e-9 {
		t.Errorf("Expected ZCR 1.0, got %f", frames[0].ZeroCrossingRate)
	}
}

func TestZeroCrossingRateConstant(t *testing.T) {
	samples := make([]float32, 30)
	for i := range samples {
		samples[i] = 0.25
	}

	frames := AnalyzeFrames(samples, 1000, 30)
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if frames[0].ZeroCrossingRate != 0 {
		t.Errorf("Expected ZCR 0, got %f", frames[0].ZeroCrossingRate)
	}
}

func TestAnalyzeFramesInvalidInput(t *testing.T) {
	samples := make([]float32, 100)
	if frames := AnalyzeFrames(samples, 0, 30); frames != nil {
		t.Errorf("Expected nil frames for zero sample rate, got %d", len(frames))
	}
	if frames := AnalyzeFrames(samples, 1000, 0); frames != nil {
		t.Errorf("Expected nil frames for zero frame size, got %d", len(frames))
	}
}
