package regions

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// minWidth is the smallest width a region may be clamped to. Edits that
// would invert start/end stop here instead of failing.
const minWidth = 0.001

// Span is a plain [Start, End) interval in seconds
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Region is a user-visible, editable silence interval. Disabled regions
// ("restored audio") are retained so they can be re-enabled later.
type Region struct {
	ID      string  `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Enabled bool    `json:"enabled"`
}

// Store owns the mutable set of silence regions. Enabled regions are kept
// sorted by start and pairwise non-overlapping at all times; disabled
// regions may overlap freely since they are excluded from the index.
// Every mutation advances a monotonic revision counter used by Index
// consumers for cache invalidation.
type Store struct {
	mu            sync.RWMutex
	regions       []Region
	trackDuration float64
	revision      uint64
	logger        *logger.Logger
}

// NewStore creates an empty region store
func NewStore(log *logger.Logger) *Store {
	return &Store{logger: log.Named("region-store")}
}

// Seed atomically replaces all regions with freshly generated ones derived
// from an analysis run's silence segments
func (s *Store) Seed(silence []Span, trackDuration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regions = make([]Region, 0, len(silence))
	for _, span := range silence {
		if span.End <= span.Start {
			continue
		}
		s.regions = append(s.regions, Region{
			ID:      uuid.NewString(),
			Start:   span.Start,
			End:     span.End,
			Enabled: true,
		})
	}
	s.trackDuration = trackDuration
	s.normalizeLocked("")
	s.revision++

	s.logger.Debug("Seeded regions from analysis",
		logger.Int("count", len(s.regions)),
		logger.Float64("track_duration", trackDuration),
	)
}

// Restore replaces all regions with a previously persisted set
func (s *Store) Restore(saved []Region, trackDuration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regions = make([]Region, 0, len(saved))
	for _, r := range saved {
		if r.End <= r.Start || r.ID == "" {
			continue
		}
		s.regions = append(s.regions, r)
	}
	s.trackDuration = trackDuration
	s.normalizeLocked("")
	s.revision++
}

// Resize clamps the requested edge(s) so the region never inverts and never
// overlaps an adjacent enabled region. It always produces a valid state; an
// unknown id is a no-op returning false.
func (s *Store) Resize(id string, start, end *float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return false
	}
	r := &s.regions[idx]

	lo, hi := 0.0, s.trackDuration
	if r.Enabled {
		if p := s.prevEnabledLocked(idx); p >= 0 {
			lo = s.regions[p].End
		}
		if n := s.nextEnabledLocked(idx); n >= 0 {
			hi = s.regions[n].Start
		}
	}

	if start != nil {
		r.Start = clamp(*start, lo, r.End-minWidth)
	}
	if end != nil {
		r.End = clamp(*end, r.Start+minWidth, hi)
	}

	s.normalizeLocked(id)
	s.revision++
	return true
}

// Move shifts both edges by delta seconds, clamped to the track bounds and
// to the gap between neighboring enabled regions. The region's duration is
// preserved whenever the clamp allows it.
func (s *Store) Move(id string, delta float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return false
	}
	r := &s.regions[idx]

	minDelta, maxDelta := -r.Start, s.trackDuration-r.End
	if r.Enabled {
		if p := s.prevEnabledLocked(idx); p >= 0 {
			if d := s.regions[p].End - r.Start; d > minDelta {
				minDelta = d
			}
		}
		if n := s.nextEnabledLocked(idx); n >= 0 {
			if d := s.regions[n].Start - r.End; d < maxDelta {
				maxDelta = d
			}
		}
	}
	if minDelta > maxDelta {
		// no room to move at all
		s.revision++
		return true
	}

	delta = clamp(delta, minDelta, maxDelta)
	r.Start += delta
	r.End += delta

	s.normalizeLocked(id)
	s.revision++
	return true
}

// Disable restores the audio under a region: it is excluded from the index
// but retained so it can be re-enabled
func (s *Store) Disable(id string) bool {
	return s.setEnabled(id, false)
}

// Enable marks a region as silence again. If it now overlaps or touches a
// neighboring enabled region the two are merged into their union.
func (s *Store) Enable(id string) bool {
	return s.setEnabled(id, true)
}

func (s *Store) setEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return false
	}
	s.regions[idx].Enabled = enabled
	s.normalizeLocked("")
	s.revision++
	return true
}

// Regions returns a copy of all regions, sorted by start
func (s *Store) Regions() []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// Enabled returns a copy of the enabled regions, sorted by start
func (s *Store) Enabled() []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Region
	for _, r := range s.regions {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Revision returns the current structural revision counter
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// TrackDuration returns the duration the store was seeded with
func (s *Store) TrackDuration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackDuration
}

// normalizeLocked re-sorts by start and merges enabled regions that overlap
// or share an endpoint, keeping the invariant that enabled regions are
// pairwise disjoint. The one exception is a shared endpoint produced by the
// current clamped edit: a resize or move stopped flush against a neighbor
// must not swallow it, so editedID and its neighbor stay separate.
func (s *Store) normalizeLocked(editedID string) {
	sort.SliceStable(s.regions, func(i, j int) bool {
		return s.regions[i].Start < s.regions[j].Start
	})

	var lastEnabled = -1
	out := s.regions[:0]
	for _, r := range s.regions {
		if r.Enabled && lastEnabled >= 0 {
			last := &out[lastEnabled]
			merge := r.Start < last.End
			if !merge && r.Start == last.End && r.ID != editedID && last.ID != editedID {
				merge = true
			}
			if merge {
				// merge into the union, drop the duplicate id
				if r.End > last.End {
					last.End = r.End
				}
				continue
			}
		}
		out = append(out, r)
		if r.Enabled {
			lastEnabled = len(out) - 1
		}
	}
	s.regions = out
}

func (s *Store) findLocked(id string) int {
	for i := range s.regions {
		if s.regions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) prevEnabledLocked(idx int) int {
	for i := idx - 1; i >= 0; i-- {
		if s.regions[i].Enabled {
			return i
		}
	}
	return -1
}

func (s *Store) nextEnabledLocked(idx int) int {
	for i := idx + 1; i < len(s.regions); i++ {
		if s.regions[i].Enabled {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
