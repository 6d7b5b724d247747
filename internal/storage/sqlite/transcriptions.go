package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/scrubslab/scrubs/internal/transcription"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// TranscriptionStorage handles persistence of transcription metadata:
// the word list, the global timing offset and any per-word adjustments
type TranscriptionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTranscriptionStorage creates a new SQLite transcription storage
func NewTranscriptionStorage(db *sql.DB, logger *logger.Logger) *TranscriptionStorage {
	storage := &TranscriptionStorage{
		db:     db,
		logger: logger.Named("sqlite-transcriptions"),
	}

	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize transcription storage", Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *TranscriptionStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcription_metadata (
			audio_path TEXT PRIMARY KEY,
			audio_hash TEXT,
			global_offset_ms REAL NOT NULL DEFAULT 0,
			full_text TEXT NOT NULL,
			language TEXT NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcription_metadata table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcription_words (
			id TEXT PRIMARY KEY,
			audio_path TEXT NOT NULL,
			word_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			start_time REAL NOT NULL,
			end_time REAL NOT NULL,
			confidence REAL NOT NULL,
			FOREIGN KEY (audio_path) REFERENCES transcription_metadata(audio_path) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcription_words table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS word_adjustments (
			word_id TEXT PRIMARY KEY,
			audio_path TEXT NOT NULL,
			offset_ms REAL NOT NULL,
			FOREIGN KEY (audio_path) REFERENCES transcription_metadata(audio_path) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create word_adjustments table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_transcription_words_path ON transcription_words(audio_path, word_index)`,
		`CREATE INDEX IF NOT EXISTS idx_word_adjustments_path ON word_adjustments(audio_path)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create transcription index: %w", err)
		}
	}

	return nil
}

// SaveMetadata stores the full transcription metadata for an audio file,
// replacing any previous record
func (s *TranscriptionStorage) SaveMetadata(meta *transcription.Metadata) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	savedAt := meta.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	_, err = tx.Exec(
		`INSERT INTO transcription_metadata (audio_path, audio_hash, global_offset_ms, full_text, language, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(audio_path) DO UPDATE SET
			audio_hash = excluded.audio_hash,
			global_offset_ms = excluded.global_offset_ms,
			full_text = excluded.full_text,
			language = excluded.language,
			saved_at = excluded.saved_at`,
		meta.AudioPath,
		meta.AudioHash,
		meta.GlobalOffsetMs,
		meta.FullText,
		meta.Language,
		savedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transcription metadata: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM transcription_words WHERE audio_path = ?`, meta.AudioPath); err != nil {
		return fmt.Errorf("failed to clear previous words: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM word_adjustments WHERE audio_path = ?`, meta.AudioPath); err != nil {
		return fmt.Errorf("failed to clear previous adjustments: %w", err)
	}

	for i, w := range meta.Words {
		_, err = tx.Exec(
			`INSERT INTO transcription_words (id, audio_path, word_index, text, start_time, end_time, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.ID, meta.AudioPath, i, w.Text, w.Start, w.End, w.Confidence,
		)
		if err != nil {
			return fmt.Errorf("failed to insert word %s: %w", w.ID, err)
		}
	}

	for _, adj := range meta.WordAdjustments {
		_, err = tx.Exec(
			`INSERT INTO word_adjustments (word_id, audio_path, offset_ms) VALUES (?, ?, ?)`,
			adj.WordID, meta.AudioPath, adj.OffsetMs,
		)
		if err != nil {
			return fmt.Errorf("failed to insert adjustment for word %s: %w", adj.WordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcription metadata: %w", err)
	}

	s.logger.Debug("Saved transcription metadata",
		String("audio_path", meta.AudioPath),
		Int("words", len(meta.Words)),
		Int("adjustments", len(meta.WordAdjustments)),
	)
	return nil
}

// LoadMetadata returns the saved transcription metadata for an audio file,
// or nil if none exists
func (s *TranscriptionStorage) LoadMetadata(audioPath string) (*transcription.Metadata, error) {
	var (
		meta      transcription.Metadata
		audioHash sql.NullString
		savedAt   string
	)
	err := s.db.QueryRow(
		`SELECT audio_path, audio_hash, global_offset_ms, full_text, language, saved_at
		FROM transcription_metadata WHERE audio_path = ?`,
		audioPath,
	).Scan(&meta.AudioPath, &audioHash, &meta.GlobalOffsetMs, &meta.FullText, &meta.Language, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transcription metadata: %w", err)
	}

	if audioHash.Valid {
		meta.AudioHash = audioHash.String
	}
	meta.SavedAt, err = time.Parse(time.RFC3339, savedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse saved_at: %w", err)
	}

	meta.Words, err = s.loadWords(audioPath)
	if err != nil {
		return nil, err
	}
	meta.WordAdjustments, err = s.loadAdjustments(audioPath)
	if err != nil {
		return nil, err
	}

	return &meta, nil
}

// DeleteMetadata removes the saved transcription metadata for an audio file
func (s *TranscriptionStorage) DeleteMetadata(audioPath string) error {
	if _, err := s.db.Exec(`DELETE FROM transcription_metadata WHERE audio_path = ?`, audioPath); err != nil {
		return fmt.Errorf("failed to delete transcription metadata: %w", err)
	}
	return nil
}

func (s *TranscriptionStorage) loadWords(audioPath string) ([]transcription.Word, error) {
	rows, err := s.db.Query(
		`SELECT id, text, start_time, end_time, confidence
		FROM transcription_words
		WHERE audio_path = ?
		ORDER BY word_index ASC`,
		audioPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query words: %w", err)
	}
	defer rows.Close()

	var words []transcription.Word
	for rows.Next() {
		var w transcription.Word
		if err := rows.Scan(&w.ID, &w.Text, &w.Start, &w.End, &w.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

func (s *TranscriptionStorage) loadAdjustments(audioPath string) ([]transcription.WordTimingAdjustment, error) {
	rows, err := s.db.Query(
		`SELECT word_id, offset_ms FROM word_adjustments WHERE audio_path = ?`,
		audioPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []transcription.WordTimingAdjustment
	for rows.Next() {
		var adj transcription.WordTimingAdjustment
		if err := rows.Scan(&adj.WordID, &adj.OffsetMs); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}
