package vad

import (
	"math"
	"sort"
)

// Segment is a maximal contiguous run of same-labeled audio, [Start, End)
type Segment struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Speech bool    `json:"isSpeech"`
}

// Duration returns the segment length in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Result is the outcome of one analysis run. It is produced atomically and
// fully replaced, never patched, by a later run.
type Result struct {
	Segments             []Segment `json:"segments"`
	SpeechSegments       []Segment `json:"speechSegments"`
	SilenceSegments      []Segment `json:"silenceSegments"`
	TotalSpeechDuration  float64   `json:"totalSpeechDuration"`
	TotalSilenceDuration float64   `json:"totalSilenceDuration"`
}

// Detect runs the full analysis chain over a mono buffer: framing, adaptive
// thresholding and segment classification. Degenerate input (empty or
// near-silent buffers) yields a valid all-silence result, never an error.
func Detect(samples []float32, sampleRate int, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	totalDuration := 0.0
	if sampleRate > 0 {
		totalDuration = float64(len(samples)) / float64(sampleRate)
	}

	frames := AnalyzeFrames(samples, sampleRate, opts.FrameSizeMs)
	if len(frames) == 0 {
		res := &Result{}
		if totalDuration > 0 {
			res.Segments = []Segment{{Start: 0, End: totalDuration}}
			res.SilenceSegments = res.Segments
			res.TotalSilenceDuration = totalDuration
		}
		return res, nil
	}

	th := ComputeThreshold(frames, opts.EnergyThreshold)
	labels := labelFrames(frames, th)
	labels = medianFilter(labels, 5)

	segments := framesToSegments(frames, labels, totalDuration)
	segments = mergeShortSegments(segments, opts.MinSegmentDuration)

	padding := float64(opts.PaddingMs) / 1000.0
	speech := padSpeechSegments(segments, padding, totalDuration)
	speech = dropShortGaps(speech, opts.MinSilenceDuration, totalDuration)
	silence := complementSegments(speech, totalDuration)

	return assembleResult(speech, silence), nil
}

// labelFrames applies the single energy decision boundary per frame, with a
// zero-crossing-rate override for borderline frames: within ±10% of the
// threshold, a ZCR outside [0.1, 0.3] reclassifies the frame as silence.
func labelFrames(frames []Frame, th Threshold) []bool {
	labels := make([]bool, len(frames))
	if th.Degenerate {
		return labels
	}
	band := 0.10 * th.Value
	for i, f := range frames {
		speech := f.Energy >= th.Value
		if speech && math.Abs(f.Energy-th.Value) <= band {
			if f.ZeroCrossingRate < 0.1 || f.ZeroCrossingRate > 0.3 {
				speech = false
			}
		}
		labels[i] = speech
	}
	return labels
}

// medianFilter smooths the boolean label sequence with a sliding majority
// window, removing isolated single-frame flips
func medianFilter(labels []bool, window int) []bool {
	if len(labels) == 0 || window < 2 {
		return labels
	}
	smoothed := make([]bool, len(labels))
	half := window / 2
	for i := range labels {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(labels) {
			end = len(labels)
		}
		count := 0
		for _, l := range labels[start:end] {
			if l {
				count++
			}
		}
		smoothed[i] = count > (end-start)/2
	}
	return smoothed
}

// framesToSegments run-length encodes frame labels into contiguous segments.
// Boundaries fall on frame start times; the final segment ends at the buffer
// duration.
func framesToSegments(frames []Frame, labels []bool, totalDuration float64) []Segment {
	var segments []Segment
	current := labels[0]
	segmentStart := 0.0

	for i, label := range labels {
		if label != current {
			segments = append(segments, Segment{
				Start:  segmentStart,
				End:    frames[i].Start,
				Speech: current,
			})
			segmentStart = frames[i].Start
			current = label
		}
	}
	if totalDuration > segmentStart {
		segments = append(segments, Segment{
			Start:  segmentStart,
			End:    totalDuration,
			Speech: current,
		})
	}
	return segments
}

// mergeShortSegments repeatedly absorbs any segment shorter than minDuration
// into its longer neighbor (ties favor the following segment) until every
// remaining segment is at or above the floor
func mergeShortSegments(segments []Segment, minDuration float64) []Segment {
	for len(segments) > 1 {
		idx := -1
		for i, s := range segments {
			if s.Duration() >= minDuration {
				continue
			}
			if idx == -1 || s.Duration() < segments[idx].Duration() {
				idx = i
			}
		}
		if idx == -1 {
			break
		}

		// Pick the absorbing neighbor: the longer of the two, ties forward
		mergeForward := true
		switch {
		case idx == 0:
			mergeForward = true
		case idx == len(segments)-1:
			mergeForward = false
		default:
			prev, next := segments[idx-1], segments[idx+1]
			mergeForward = next.Duration() >= prev.Duration()
		}

		if mergeForward {
			segments[idx+1].Start = segments[idx].Start
		} else {
			segments[idx-1].End = segments[idx].End
		}
		segments = append(segments[:idx], segments[idx+1:]...)
		segments = coalesceSegments(segments)
	}
	return segments
}

// coalesceSegments merges adjacent segments that carry the same label
func coalesceSegments(segments []Segment) []Segment {
	if len(segments) < 2 {
		return segments
	}
	out := segments[:1]
	for _, s := range segments[1:] {
		last := &out[len(out)-1]
		if s.Speech == last.Speech {
			last.End = s.End
		} else {
			out = append(out, s)
		}
	}
	return out
}

// padSpeechSegments extends every speech segment by padding on each side,
// clamped to the track bounds and to the neighboring speech segments so that
// padding only consumes adjacent silence. Returns the padded speech segments.
func padSpeechSegments(segments []Segment, padding, totalDuration float64) []Segment {
	var speech []Segment
	for _, s := range segments {
		if s.Speech {
			speech = append(speech, s)
		}
	}

	padded := make([]Segment, 0, len(speech))
	for i, s := range speech {
		start := s.Start - padding
		end := s.End + padding

		if start < 0 {
			start = 0
		}
		if end > totalDuration {
			end = totalDuration
		}
		// padding stops at the neighboring speech segment's territory
		if i+1 < len(speech) && end > speech[i+1].Start {
			end = speech[i+1].Start
		}
		if len(padded) > 0 && start < padded[len(padded)-1].End {
			start = padded[len(padded)-1].End
		}

		// merge with the previous padded segment if they now touch
		if len(padded) > 0 && start <= padded[len(padded)-1].End {
			if end > padded[len(padded)-1].End {
				padded[len(padded)-1].End = end
			}
			continue
		}

		padded = append(padded, Segment{Start: start, End: end, Speech: true})
	}
	return padded
}

// dropShortGaps merges speech segments separated by a silence gap shorter
// than minSilence, including leading and trailing gaps against the track
// edges
func dropShortGaps(speech []Segment, minSilence, totalDuration float64) []Segment {
	if len(speech) == 0 {
		return speech
	}

	out := speech[:1]
	for _, s := range speech[1:] {
		last := &out[len(out)-1]
		if s.Start-last.End < minSilence {
			last.End = s.End
		} else {
			out = append(out, s)
		}
	}

	if out[0].Start > 0 && out[0].Start < minSilence {
		out[0].Start = 0
	}
	if gap := totalDuration - out[len(out)-1].End; gap > 0 && gap < minSilence {
		out[len(out)-1].End = totalDuration
	}
	return out
}

// complementSegments returns the silence segments between speech segments
// over [0, totalDuration]
func complementSegments(speech []Segment, totalDuration float64) []Segment {
	var silence []Segment
	prevEnd := 0.0
	for _, s := range speech {
		if s.Start > prevEnd {
			silence = append(silence, Segment{Start: prevEnd, End: s.Start})
		}
		prevEnd = s.End
	}
	if prevEnd < totalDuration {
		silence = append(silence, Segment{Start: prevEnd, End: totalDuration})
	}
	return silence
}

func assembleResult(speech, silence []Segment) *Result {
	res := &Result{
		SpeechSegments:  speech,
		SilenceSegments: silence,
	}

	res.Segments = make([]Segment, 0, len(speech)+len(silence))
	res.Segments = append(res.Segments, speech...)
	res.Segments = append(res.Segments, silence...)
	sort.Slice(res.Segments, func(i, j int) bool {
		return res.Segments[i].Start < res.Segments[j].Start
	})

	for _, s := range speech {
		res.TotalSpeechDuration += s.Duration()
	}
	for _, s := range silence {
		res.TotalSilenceDuration += s.Duration()
	}
	return res
}
