package regions

import (
	"sort"
	"sync"
)

// Index is a read-only binary-search view over a store's enabled regions.
// It carries the store revision it was built from; consumers compare that
// against the store's current revision and rebuild on mismatch.
type Index struct {
	revision uint64
	regions  []Region // enabled, sorted by start, pairwise disjoint
}

// BuildIndex snapshots the store's enabled regions into a query structure
func BuildIndex(s *Store) *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var enabled []Region
	for _, r := range s.regions {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return &Index{revision: s.revision, regions: enabled}
}

// Revision returns the store revision the index was built from
func (ix *Index) Revision() uint64 {
	return ix.revision
}

// Len returns the number of indexed regions
func (ix *Index) Len() int {
	return len(ix.regions)
}

// InSilence reports whether t lies inside an enabled silence region
func (ix *Index) InSilence(t float64) bool {
	_, ok := ix.find(t)
	return ok
}

// NextSpeechTime returns the end of the enabled region containing t, or t
// unchanged if t is not inside any enabled region
func (ix *Index) NextSpeechTime(t float64) float64 {
	if r, ok := ix.find(t); ok {
		return r.End
	}
	return t
}

// PrevSpeechTime returns the start of the enabled region containing t, or t
// unchanged if t is not inside any enabled region
func (ix *Index) PrevSpeechTime(t float64) float64 {
	if r, ok := ix.find(t); ok {
		return r.Start
	}
	return t
}

// find locates the region with start <= t < end in O(log n)
func (ix *Index) find(t float64) (Region, bool) {
	// first region with Start > t, candidate is the one before it
	i := sort.Search(len(ix.regions), func(i int) bool {
		return ix.regions[i].Start > t
	})
	if i == 0 {
		return Region{}, false
	}
	r := ix.regions[i-1]
	if t < r.End {
		return r, true
	}
	return Region{}, false
}

// Cache holds the lazily rebuilt index for a store. The rebuild happens at
// most once per store revision, amortizing the O(n) build over the edit
// rather than paying it per query.
type Cache struct {
	store *Store
	mu    sync.Mutex
	index *Index
}

// NewCache creates an index cache over the given store
func NewCache(store *Store) *Cache {
	return &Cache{store: store}
}

// Index returns an index matching the store's current revision, rebuilding
// it first if the store has changed since the last call
func (c *Cache) Index() *Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil || c.index.revision != c.store.Revision() {
		c.index = BuildIndex(c.store)
	}
	return c.index
}
