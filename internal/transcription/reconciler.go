package transcription

// minWordWidth is the smallest adjusted word duration in seconds. Offsets
// that would collapse a word below this are corrected by extending the end.
const minWordWidth = 0.01

// AdjustWords applies the global offset and any per-word offsets from the
// metadata to the original word timings for search and highlighting.
//
// Array length and order are always preserved. The adjusted start is
// clamped at zero; the adjusted end is extended if needed to keep at least
// minWordWidth of width. Overlaps between adjusted words are permitted and
// left to the UI.
func AdjustWords(words []Word, meta Metadata) []Word {
	perWord := make(map[string]float64, len(meta.WordAdjustments))
	for _, adj := range meta.WordAdjustments {
		perWord[adj.WordID] = adj.OffsetMs
	}

	adjusted := make([]Word, len(words))
	for i, w := range words {
		shift := (meta.GlobalOffsetMs + perWord[w.ID]) / 1000.0

		start := w.Start + shift
		if start < 0 {
			start = 0
		}
		end := w.End + shift
		if end < start+minWordWidth {
			end = start + minWordWidth
		}

		adjusted[i] = Word{
			ID:         w.ID,
			Text:       w.Text,
			Start:      start,
			End:        end,
			Confidence: w.Confidence,
		}
	}
	return adjusted
}
