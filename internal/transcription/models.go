package transcription

import "time"

// Word is one transcribed word with its source timing. The word array from
// a recognition run is ordered and treated as immutable.
type Word struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"` // seconds
	End        float64 `json:"end"`   // seconds
	Confidence float64 `json:"confidence"`
}

// WordTimingAdjustment is a user-applied per-word timing offset
type WordTimingAdjustment struct {
	WordID   string  `json:"wordId"`
	OffsetMs float64 `json:"offsetMs"`
}

// Metadata ties a transcription and its timing offsets to an audio file
type Metadata struct {
	AudioPath       string                 `json:"audioPath"`
	AudioHash       string                 `json:"audioHash,omitempty"`
	GlobalOffsetMs  float64                `json:"globalOffsetMs"`
	WordAdjustments []WordTimingAdjustment `json:"wordAdjustments"`
	Words           []Word                 `json:"words"`
	FullText        string                 `json:"fullText"`
	Language        string                 `json:"language"`
	SavedAt         time.Time              `json:"savedAt"`
}

// Result is the raw output of one recognition run
type Result struct {
	Words    []Word `json:"words"`
	Text     string `json:"text"`
	Language string `json:"language"`
}
