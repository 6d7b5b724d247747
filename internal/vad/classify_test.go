package vad

import (
	"math"
	"testing"
)

func defaultTestOptions() Options {
	return Options{
		EnergyThreshold:    0.15,
		MinSegmentDuration: 0.1,
		MinSilenceDuration: 0.3,
		FrameSizeMs:        30,
		PaddingMs:          150,
	}
}

// buildBuffer produces a mono buffer where speech is a constant amplitude and
// the given spans carry silence.
func buildBuffer(duration float64, sampleRate int, silence [][2]float64) []float32 {
	samples := make([]float32, int(duration*float64(sampleRate)))
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		amp := float32(0.5)
		for _, s := range silence {
			if t >= s[0] && t < s[1] {
				amp = 0
				break
			}
		}
		samples[i] = amp
	}
	return samples
}

func TestDetectSilenceGap(t *testing.T) {
	// 10 seconds of speech with silence between 2s and 4s. With 150ms of
	// padding on each speech edge the detected silence region shrinks to
	// roughly [2.15, 3.85]; allow one frame of tolerance for the frame grid.
	sampleRate := 8000
	samples := buildBuffer(10.0, sampleRate, [][2]float64{{2.0, 4.0}})

	res, err := Detect(samples, sampleRate, defaultTestOptions())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(res.SilenceSegments) != 1 {
		t.Fatalf("Expected 1 silence segment, got %d: %+v", len(res.SilenceSegments), res.SilenceSegments)
	}

	tolerance := 0.030
	got := res.SilenceSegments[0]
	if math.Abs(got.Start-2.15) > tolerance {
		t.Errorf("Expected silence start near 2.15, got %f", got.Start)
	}
	if math.Abs(got.End-3.85) > tolerance {
		t.Errorf("Expected silence end near 3.85, got %f", got.End)
	}

	if len(res.SpeechSegments) != 2 {
		t.Fatalf("Expected 2 speech segments, got %d", len(res.SpeechSegments))
	}
	if res.SpeechSegments[0].Start != 0 {
		t.Errorf("Expected first speech segment to start at 0, got %f", res.SpeechSegments[0].Start)
	}
	if math.Abs(res.SpeechSegments[1].End-10.0) > 1e-9 {
		t.Errorf("Expected last speech segment to end at 10, got %f", res.SpeechSegments[1].End)
	}

	total := res.TotalSpeechDuration + res.TotalSilenceDuration
	if math.Abs(total-10.0) > 1e-6 {
		t.Errorf("Expected durations to sum to 10, got %f", total)
	}
}

func TestDetectSegmentsCoverTrack(t *testing.T) {
	sampleRate := 8000
	samples := buildBuffer(6.0, sampleRate, [][2]float64{{1.0, 2.0}, {4.0, 5.0}})

	res, err := Detect(samples, sampleRate, defaultTestOptions())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// Segments must be sorted, non-overlapping and cover [0, 6] exactly
	prevEnd := 0.0
	for i, s := range res.Segments {
		if math.Abs(s.Start-prevEnd) > 1e-9 {
			t.Errorf("Segment %d: expected start %f, got %f", i, prevEnd, s.Start)
		}
		if s.End <= s.Start {
			t.Errorf("Segment %d: non-positive duration [%f, %f]", i, s.Start, s.End)
		}
		prevEnd = s.End
	}
	if math.Abs(prevEnd-6.0) > 1e-9 {
		t.Errorf("Expected segments to end at 6, got %f", prevEnd)
	}
}

func TestDetectDegenerateBuffers(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
	}{
		{"all zero", make([]float32, 8000)},
		{"constant amplitude", buildBuffer(1.0, 8000, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Detect(tt.samples, 8000, defaultTestOptions())
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(res.SpeechSegments) != 0 {
				t.Errorf("Expected no speech segments, got %d", len(res.SpeechSegments))
			}
			if len(res.SilenceSegments) != 1 {
				t.Fatalf("Expected 1 silence segment, got %d", len(res.SilenceSegments))
			}
			if math.Abs(res.TotalSilenceDuration-1.0) > 1e-6 {
				t.Errorf("Expected 1s of silence, got %f", res.TotalSilenceDuration)
			}
		})
	}
}

func TestDetectEmptyBuffer(t *testing.T) {
	res, err := Detect(nil, 8000, defaultTestOptions())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(res.Segments) != 0 {
		t.Errorf("Expected no segments for empty buffer, got %d", len(res.Segments))
	}
}

func TestDetectInvalidOptions(t *testing.T) {
	opts := defaultTestOptions()
	opts.FrameSizeMs = 25
	if _, err := Detect(make([]float32, 8000), 8000, opts); err == nil {
		t.Error("Expected error for unsupported frame size")
	}

	opts = defaultTestOptions()
	opts.EnergyThreshold = 0.6
	if _, err := Detect(make([]float32, 8000), 8000, opts); err == nil {
		t.Error("Expected error for out-of-range sensitivity")
	}
}

func TestLabelFramesZCROverride(t *testing.T) {
	th := Threshold{NoiseFloor: 0.1, Peak: 0.9, Value: 0.5}
	frames := []Frame{
		{Energy: 0.51, ZeroCrossingRate: 0.2},  // borderline, speech-like ZCR
		{Energy: 0.51, ZeroCrossingRate: 0.05}, // borderline, too few crossings
		{Energy: 0.51, ZeroCrossingRate: 0.8},  // borderline, noise-like ZCR
		{Energy: 0.9, ZeroCrossingRate: 0.8},   // clear speech, ZCR ignored
		{Energy: 0.1, ZeroCrossingRate: 0.2},   // clear silence
	}

	labels := labelFrames(frames, th)
	want := []bool{true, false, false, true, false}
	for i, w := range want {
		if labels[i] != w {
			t.Errorf("Frame %d: expected label %v, got %v", i, w, labels[i])
		}
	}
}

func TestMedianFilterRemovesFlips(t *testing.T) {
	labels := []bool{true, true, false, true, true, true, true, false, false, false}
	smoothed := medianFilter(labels, 5)

	if !smoothed[2] {
		t.Error("Expected isolated silence frame to be smoothed to speech")
	}
	if smoothed[8] {
		t.Error("Expected silence run to survive smoothing")
	}
}

func TestMergeShortSegments(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1.0, Speech: true},
		{Start: 1.0, End: 1.05, Speech: false}, // short, absorbed
		{Start: 1.05, End: 3.0, Speech: true},
		{Start: 3.0, End: 4.0, Speech: false},
	}

	merged := mergeShortSegments(segments, 0.1)
	if len(merged) != 2 {
		t.Fatalf("Expected 2 segments after merge, got %d: %+v", len(merged), merged)
	}
	if !merged[0].Speech || merged[0].Start != 0 || merged[0].End != 3.0 {
		t.Errorf("Expected merged speech segment [0, 3], got %+v", merged[0])
	}
	if merged[1].Speech || merged[1].End != 4.0 {
		t.Errorf("Expected trailing silence [3, 4], got %+v", merged[1])
	}
}

func TestMergeShortSegmentsTieForward(t *testing.T) {
	// equal-length neighbors: the short segment merges into the following one
	segments := []Segment{
		{Start: 0, End: 1.0, Speech: true},
		{Start: 1.0, End: 1.05, Speech: false},
		{Start: 1.05, End: 2.05, Speech: true},
	}

	merged := mergeShortSegments(segments, 0.1)
	if len(merged) != 1 {
		t.Fatalf("Expected 1 segment after merge, got %d: %+v", len(merged), merged)
	}
	if merged[0].Start != 0 || merged[0].End != 2.05 || !merged[0].Speech {
		t.Errorf("Expected single speech segment [0, 2.05], got %+v", merged[0])
	}
}

func TestPadSpeechSegmentsClamping(t *testing.T) {
	segments := []Segment{
		{Start: 0.05, End: 1.0, Speech: true},
		{Start: 1.0, End: 1.5, Speech: false},
		{Start: 1.5, End: 2.0, Speech: true},
	}

	// the 0.5s gap is fully consumed by 0.3s of padding from each side, so
	// the two speech segments merge; both outer edges clamp to the track
	padded := padSpeechSegments(segments, 0.3, 2.0)
	if len(padded) != 1 {
		t.Fatalf("Expected 1 padded segment, got %d: %+v", len(padded), padded)
	}
	if padded[0].Start != 0 {
		t.Errorf("Expected segment clamped to 0, got %f", padded[0].Start)
	}
	if padded[0].End != 2.0 {
		t.Errorf("Expected segment clamped to 2, got %f", padded[0].End)
	}
}

func TestPadSpeechSegmentsKeepsWideGap(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 1.0, Speech: true},
		{Start: 1.0, End: 3.0, Speech: false},
		{Start: 3.0, End: 4.0, Speech: true},
	}

	padded := padSpeechSegments(segments, 0.15, 4.0)
	if len(padded) != 2 {
		t.Fatalf("Expected 2 padded segments, got %d: %+v", len(padded), padded)
	}
	if math.Abs(padded[0].End-1.15) > 1e-9 {
		t.Errorf("Expected first segment padded to 1.15, got %f", padded[0].End)
	}
	if math.Abs(padded[1].Start-2.85) > 1e-9 {
		t.Errorf("Expected second segment to start at 2.85, got %f", padded[1].Start)
	}
}

func TestDropShortGaps(t *testing.T) {
	speech := []Segment{
		{Start: 0.1, End: 1.0, Speech: true},
		{Start: 1.2, End: 2.0, Speech: true}, // 0.2s gap, below the floor
		{Start: 3.0, End: 3.9, Speech: true}, // 1.0s gap, kept
	}

	out := dropShortGaps(speech, 0.3, 4.0)
	if len(out) != 2 {
		t.Fatalf("Expected 2 segments, got %d: %+v", len(out), out)
	}
	if out[0].Start != 0 {
		t.Errorf("Expected short leading gap to be absorbed, got start %f", out[0].Start)
	}
	if out[0].End != 2.0 {
		t.Errorf("Expected merged segment to end at 2.0, got %f", out[0].End)
	}
	if out[1].End != 4.0 {
		t.Errorf("Expected short trailing gap to be absorbed, got end %f", out[1].End)
	}
}
