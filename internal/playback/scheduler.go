package playback

import (
	"math"
	"sync"

	"github.com/scrubslab/scrubs/internal/regions"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// State is the scheduler's playback state
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Output repositions the host's audio-output sources. Stopping and starting
// is a short synchronous operation on the tick path; implementations must
// not block.
type Output interface {
	// StartSources starts output sources positioned at the given time
	StartSources(at float64)
	// StopSources stops all active output sources
	StopSources()
}

// NopOutput is an Output that does nothing, for hosts that drive their own
// audio pipeline from the scheduler's position alone
type NopOutput struct{}

func (NopOutput) StartSources(float64) {}
func (NopOutput) StopSources()         {}

// Status is a snapshot of the scheduler for display by the host UI
type Status struct {
	State       State   `json:"state"`
	Position    float64 `json:"position"`
	Speed       float64 `json:"speed"`
	SkipSilence bool    `json:"skipSilence"`
	LoopEnabled bool    `json:"loopEnabled"`
	LoopStart   float64 `json:"loopStart"`
	LoopEnd     float64 `json:"loopEnd"`
	Duration    float64 `json:"duration"`
}

// Scheduler is the fixed-cadence playback control loop. The host drives it
// by calling Advance at its tick rate (~60 Hz); the scheduler advances the
// play position, consults the silence index, and repositions audio sources
// when a genuine skip occurs. Dependencies are injected at construction.
type Scheduler struct {
	store  *regions.Store
	index  *regions.Cache
	output Output
	logger *logger.Logger

	mu            sync.Mutex
	state         State
	current       float64
	speed         float64
	skipSilence   bool
	loopEnabled   bool
	loopStart     float64
	loopEnd       float64
	trackDuration float64
	skipEpsilon   float64 // seconds; jumps beyond ordinary advance + epsilon restart sources
}

// NewScheduler creates a stopped scheduler over the given store and index
func NewScheduler(store *regions.Store, index *regions.Cache, output Output, skipEpsilon float64, log *logger.Logger) *Scheduler {
	if output == nil {
		output = NopOutput{}
	}
	if skipEpsilon <= 0 {
		skipEpsilon = 0.05
	}
	return &Scheduler{
		store:       store,
		index:       index,
		output:      output,
		logger:      log.Named("playback"),
		state:       StateStopped,
		speed:       1.0,
		skipEpsilon: skipEpsilon,
	}
}

// SetTrackDuration sets the end-of-track boundary
func (sc *Scheduler) SetTrackDuration(d float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if d < 0 {
		d = 0
	}
	sc.trackDuration = d
}

// Start begins or resumes playback from the current position
func (sc *Scheduler) Start() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.state == StatePlaying {
		return
	}
	sc.state = StatePlaying
	sc.output.StartSources(sc.current)
	sc.logger.Debug("Playback started", logger.Float64("position", sc.current))
}

// Pause halts playback, keeping the current position
func (sc *Scheduler) Pause() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.state != StatePlaying {
		return
	}
	sc.state = StatePaused
	sc.output.StopSources()
	sc.logger.Debug("Playback paused", logger.Float64("position", sc.current))
}

// Stop halts playback and rewinds to the start of the track
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.state == StatePlaying {
		sc.output.StopSources()
	}
	sc.state = StateStopped
	sc.current = 0
	sc.logger.Debug("Playback stopped")
}

// Seek moves the play position. While skip-silence is active a seek into an
// enabled region snaps forward to that region's end; silence is not
// addressable by direct seek.
func (sc *Scheduler) Seek(t float64) float64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if t < 0 {
		t = 0
	}
	if sc.trackDuration > 0 && t > sc.trackDuration {
		t = sc.trackDuration
	}
	if sc.skipSilence {
		t = sc.index.Index().NextSpeechTime(t)
		if sc.trackDuration > 0 && t > sc.trackDuration {
			t = sc.trackDuration
		}
	}
	sc.current = t
	if sc.state == StatePlaying {
		sc.output.StopSources()
		sc.output.StartSources(t)
	}
	return t
}

// SetSkipSilence toggles transparent skipping of enabled silence regions
func (sc *Scheduler) SetSkipSilence(enabled bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.skipSilence = enabled
}

// SetSpeed sets the playback rate. Negative values play in reverse; zero is
// ignored.
func (sc *Scheduler) SetSpeed(speed float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if speed == 0 {
		return
	}
	sc.speed = speed
}

// SetLoop configures the loop boundary rules applied on each tick
func (sc *Scheduler) SetLoop(enabled bool, start, end float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if end < start {
		start, end = end, start
	}
	sc.loopEnabled = enabled
	sc.loopStart = start
	sc.loopEnd = end
}

// Status returns a snapshot for display
func (sc *Scheduler) Status() Status {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return Status{
		State:       sc.state,
		Position:    sc.current,
		Speed:       sc.speed,
		SkipSilence: sc.skipSilence,
		LoopEnabled: sc.loopEnabled,
		LoopStart:   sc.loopStart,
		LoopEnd:     sc.loopEnd,
		Duration:    sc.trackDuration,
	}
}

// Position returns the current play position
func (sc *Scheduler) Position() float64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.current
}

// State returns the current playback state
func (sc *Scheduler) State() State {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// Advance performs one control tick: advance the tentative position by
// elapsed wall time at the current speed, apply loop and end-of-track rules,
// skip silence through the current index, and reposition audio sources if a
// genuine jump occurred. Ordinary continuous advance never restarts sources.
func (sc *Scheduler) Advance(elapsed float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.state != StatePlaying || elapsed <= 0 {
		return
	}

	prev := sc.current
	step := elapsed * sc.speed
	tentative := prev + step
	forward := sc.speed > 0

	// Loop and end-of-track boundary rules
	if sc.loopEnabled {
		if forward && tentative >= sc.loopEnd {
			tentative = sc.loopStart
		} else if !forward && tentative <= sc.loopStart {
			tentative = sc.loopEnd
		}
	} else if forward && sc.trackDuration > 0 && tentative >= sc.trackDuration {
		sc.current = sc.trackDuration
		sc.state = StateStopped
		sc.output.StopSources()
		sc.logger.Debug("Playback reached end of track")
		return
	} else if !forward && tentative <= 0 {
		sc.current = 0
		sc.state = StateStopped
		sc.output.StopSources()
		return
	}

	if sc.skipSilence {
		idx := sc.index.Index()
		if forward {
			tentative = idx.NextSpeechTime(tentative)
			if sc.trackDuration > 0 && tentative > sc.trackDuration {
				tentative = sc.trackDuration
			}
		} else {
			tentative = idx.PrevSpeechTime(tentative)
			if tentative < 0 {
				tentative = 0
			}
		}
	}

	sc.current = tentative

	// A jump beyond the ordinary per-tick advance means a skip or loop wrap
	// happened; only then are sources repositioned.
	if math.Abs(sc.current-prev) > math.Abs(step)+sc.skipEpsilon {
		sc.output.StopSources()
		sc.output.StartSources(sc.current)
		sc.logger.Debug("Repositioned audio sources",
			logger.Float64("from", prev),
			logger.Float64("to", sc.current),
		)
	}
}
