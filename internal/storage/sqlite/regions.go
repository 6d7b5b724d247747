package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/scrubslab/scrubs/internal/regions"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// RegionSet is a persisted set of silence regions for one audio file
type RegionSet struct {
	AudioPath     string           `json:"audio_path"`
	TrackDuration float64          `json:"track_duration"`
	Regions       []regions.Region `json:"regions"`
	SavedAt       time.Time        `json:"saved_at"`
}

// RegionStorage handles persistence of silence region sets
type RegionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRegionStorage creates a new SQLite region storage
func NewRegionStorage(db *sql.DB, logger *logger.Logger) *RegionStorage {
	storage := &RegionStorage{
		db:     db,
		logger: logger.Named("sqlite-regions"),
	}

	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize region storage", Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *RegionStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS region_sets (
			audio_path TEXT PRIMARY KEY,
			track_duration REAL NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create region_sets table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS silence_regions (
			id TEXT PRIMARY KEY,
			audio_path TEXT NOT NULL,
			start_time REAL NOT NULL,
			end_time REAL NOT NULL,
			enabled INTEGER NOT NULL,
			FOREIGN KEY (audio_path) REFERENCES region_sets(audio_path) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create silence_regions table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_silence_regions_path ON silence_regions(audio_path)`)
	if err != nil {
		return fmt.Errorf("failed to create silence_regions index: %w", err)
	}

	return nil
}

// SaveRegionSet stores the full region set for an audio file, replacing any
// previously saved set
func (s *RegionStorage) SaveRegionSet(set *RegionSet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO region_sets (audio_path, track_duration, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(audio_path) DO UPDATE SET track_duration = excluded.track_duration, saved_at = excluded.saved_at`,
		set.AudioPath,
		set.TrackDuration,
		set.SavedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert region set: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM silence_regions WHERE audio_path = ?`, set.AudioPath); err != nil {
		return fmt.Errorf("failed to clear previous regions: %w", err)
	}

	for _, r := range set.Regions {
		_, err = tx.Exec(
			`INSERT INTO silence_regions (id, audio_path, start_time, end_time, enabled)
			VALUES (?, ?, ?, ?, ?)`,
			r.ID, set.AudioPath, r.Start, r.End, r.Enabled,
		)
		if err != nil {
			return fmt.Errorf("failed to insert region %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit region set: %w", err)
	}

	s.logger.Debug("Saved region set",
		String("audio_path", set.AudioPath),
		Int("regions", len(set.Regions)),
	)
	return nil
}

// LoadRegionSet returns the saved region set for an audio file, or nil if
// none exists
func (s *RegionStorage) LoadRegionSet(audioPath string) (*RegionSet, error) {
	var (
		set     RegionSet
		savedAt string
	)
	err := s.db.QueryRow(
		`SELECT audio_path, track_duration, saved_at FROM region_sets WHERE audio_path = ?`,
		audioPath,
	).Scan(&set.AudioPath, &set.TrackDuration, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query region set: %w", err)
	}

	set.SavedAt, err = time.Parse(time.RFC3339, savedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse saved_at: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT id, start_time, end_time, enabled
		FROM silence_regions
		WHERE audio_path = ?
		ORDER BY start_time ASC`,
		audioPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r regions.Region
		if err := rows.Scan(&r.ID, &r.Start, &r.End, &r.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		set.Regions = append(set.Regions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read regions: %w", err)
	}

	return &set, nil
}

// DeleteRegionSet removes the saved region set for an audio file
func (s *RegionStorage) DeleteRegionSet(audioPath string) error {
	if _, err := s.db.Exec(`DELETE FROM region_sets WHERE audio_path = ?`, audioPath); err != nil {
		return fmt.Errorf("failed to delete region set: %w", err)
	}
	return nil
}
