package regions

import (
	"math/rand"
	"testing"

	"github.com/scrubslab/scrubs/pkg/logger"
)

func TestIndexQueries(t *testing.T) {
	s := seededStore(t, []Span{{Start: 1, End: 2}, {Start: 4, End: 5}, {Start: 7, End: 8}}, 10)
	ix := BuildIndex(s)

	tests := []struct {
		t          float64
		inSilence  bool
		nextSpeech float64
		prevSpeech float64
	}{
		{0.0, false, 0.0, 0.0},
		{0.999, false, 0.999, 0.999},
		{1.0, true, 2.0, 1.0}, // region start is inclusive
		{1.5, true, 2.0, 1.0},
		{2.0, false, 2.0, 2.0}, // region end is exclusive
		{4.999, true, 5.0, 4.0},
		{7.5, true, 8.0, 7.0},
		{9.0, false, 9.0, 9.0},
	}

	for _, tt := range tests {
		if got := ix.InSilence(tt.t); got != tt.inSilence {
			t.Errorf("InSilence(%f): expected %v, got %v", tt.t, tt.inSilence, got)
		}
		if got := ix.NextSpeechTime(tt.t); got != tt.nextSpeech {
			t.Errorf("NextSpeechTime(%f): expected %f, got %f", tt.t, tt.nextSpeech, got)
		}
		if got := ix.PrevSpeechTime(tt.t); got != tt.prevSpeech {
			t.Errorf("PrevSpeechTime(%f): expected %f, got %f", tt.t, tt.prevSpeech, got)
		}
	}
}

func TestIndexExcludesDisabledRegions(t *testing.T) {
	s := seededStore(t, []Span{{Start: 1, End: 2}, {Start: 4, End: 5}}, 10)
	s.Disable(s.Regions()[0].ID)

	ix := BuildIndex(s)
	if ix.Len() != 1 {
		t.Fatalf("Expected 1 indexed region, got %d", ix.Len())
	}
	if ix.InSilence(1.5) {
		t.Error("Expected disabled region to be excluded from the index")
	}
	if !ix.InSilence(4.5) {
		t.Error("Expected enabled region to remain in the index")
	}
}

func TestIndexEmpty(t *testing.T) {
	s := NewStore(logger.NewNop())
	ix := BuildIndex(s)

	if ix.Len() != 0 {
		t.Fatalf("Expected empty index, got %d regions", ix.Len())
	}
	if ix.InSilence(1.0) {
		t.Error("Expected no silence in empty index")
	}
	if got := ix.NextSpeechTime(3.0); got != 3.0 {
		t.Errorf("Expected NextSpeechTime to pass through, got %f", got)
	}
}

func TestIndexMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var spans []Span
	pos := 0.0
	for pos < 100 {
		pos += rng.Float64() * 2
		width := 0.1 + rng.Float64()
		if pos+width > 100 {
			break
		}
		spans = append(spans, Span{Start: pos, End: pos + width})
		pos += width
	}

	s := seededStore(t, spans, 100)
	ix := BuildIndex(s)
	enabled := s.Enabled()

	linear := func(t float64) (Region, bool) {
		for _, r := range enabled {
			if t >= r.Start && t < r.End {
				return r, true
			}
		}
		return Region{}, false
	}

	for i := 0; i < 1000; i++ {
		q := rng.Float64() * 100
		want, wantOK := linear(q)
		gotOK := ix.InSilence(q)
		if gotOK != wantOK {
			t.Fatalf("InSilence(%f): expected %v, got %v", q, wantOK, gotOK)
		}
		if wantOK {
			if got := ix.NextSpeechTime(q); got != want.End {
				t.Fatalf("NextSpeechTime(%f): expected %f, got %f", q, want.End, got)
			}
			if got := ix.PrevSpeechTime(q); got != want.Start {
				t.Fatalf("PrevSpeechTime(%f): expected %f, got %f", q, want.Start, got)
			}
		}
	}
}

func TestCacheRebuildsOnRevisionChange(t *testing.T) {
	s := seededStore(t, []Span{{Start: 1, End: 2}}, 10)
	c := NewCache(s)

	first := c.Index()
	if first.Revision() != s.Revision() {
		t.Fatalf("Expected index revision %d, got %d", s.Revision(), first.Revision())
	}

	// no edits: the same index is returned
	if second := c.Index(); second != first {
		t.Error("Expected cached index to be reused while the store is unchanged")
	}

	id := s.Regions()[0].ID
	s.Disable(id)

	rebuilt := c.Index()
	if rebuilt == first {
		t.Error("Expected index rebuild after a store edit")
	}
	if rebuilt.Revision() != s.Revision() {
		t.Errorf("Expected rebuilt index at revision %d, got %d", s.Revision(), rebuilt.Revision())
	}
	if rebuilt.InSilence(1.5) {
		t.Error("Expected rebuilt index to reflect the disabled region")
	}
}
