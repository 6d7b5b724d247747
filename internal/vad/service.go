package vad

import (
	"context"
	"sync"

	"github.com/scrubslab/scrubs/internal/regions"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// Service runs analysis off the interactive thread and seeds the region
// store from completed runs. Each run carries a monotonically increasing
// identifier; when runs overlap, only the newest one's result is applied
// and anything older is discarded on arrival (last-writer-wins).
type Service struct {
	store  *regions.Store
	logger *logger.Logger

	mu         sync.Mutex
	nextRunID  uint64
	appliedRun uint64
	result     *Result
}

// NewService creates an analysis service bound to the given region store
func NewService(store *regions.Store, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log.Named("vad-service"),
	}
}

// Analyze validates options and starts an analysis run in the background,
// returning the run identifier. Invalid options are rejected before the run
// starts; the previous result and the region store remain unchanged.
func (s *Service) Analyze(ctx context.Context, samples []float32, sampleRate int, opts Options) (uint64, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.nextRunID++
	runID := s.nextRunID
	s.mu.Unlock()

	totalDuration := 0.0
	if sampleRate > 0 {
		totalDuration = float64(len(samples)) / float64(sampleRate)
	}

	go s.run(ctx, runID, samples, sampleRate, totalDuration, opts)
	return runID, nil
}

// AnalyzeSync runs the analysis on the calling goroutine and applies the
// result before returning
func (s *Service) AnalyzeSync(samples []float32, sampleRate int, opts Options) (*Result, error) {
	res, err := Detect(samples, sampleRate, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextRunID++
	runID := s.nextRunID
	s.mu.Unlock()

	totalDuration := 0.0
	if sampleRate > 0 {
		totalDuration = float64(len(samples)) / float64(sampleRate)
	}
	s.commit(runID, res, totalDuration)
	return res, nil
}

func (s *Service) run(ctx context.Context, runID uint64, samples []float32, sampleRate int, totalDuration float64, opts Options) {
	res, err := Detect(samples, sampleRate, opts)
	if err != nil {
		// options were validated up front; anything else is unexpected
		s.logger.Error("Analysis run failed", logger.Uint64("run_id", runID), logger.Error(err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	s.commit(runID, res, totalDuration)
}

// commit applies a completed run unless a newer run has already been
// applied. The region store is seeded atomically: it only ever sees the
// full result, never a partial one.
func (s *Service) commit(runID uint64, res *Result, totalDuration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID <= s.appliedRun {
		s.logger.Debug("Discarding stale analysis result",
			logger.Uint64("run_id", runID),
			logger.Uint64("applied_run", s.appliedRun),
		)
		return
	}
	s.appliedRun = runID
	s.result = res

	silence := make([]regions.Span, len(res.SilenceSegments))
	for i, seg := range res.SilenceSegments {
		silence[i] = regions.Span{Start: seg.Start, End: seg.End}
	}
	s.store.Seed(silence, totalDuration)

	s.logger.Info("Analysis result applied",
		logger.Uint64("run_id", runID),
		logger.Int("silence_regions", len(silence)),
		logger.Float64("total_speech", res.TotalSpeechDuration),
		logger.Float64("total_silence", res.TotalSilenceDuration),
	)
}

// Result returns the most recently applied analysis result, if any
func (s *Service) Result() (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}
