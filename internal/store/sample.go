package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample is one recorded frame sequence a template was trained from.
// Data holds the frames as sent by the client.
type Sample struct {
	ID          int64           `json:"id"`
	GestureID   string          `json:"gesture_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository keeps the recordings behind each trained template so it
// can be retrained later.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Replace swaps the gesture's samples for the given ones in one transaction.
func (r *SampleRepository) Replace(gestureID string, samples []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gesture_samples WHERE gesture_id = ?`, gestureID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO gesture_samples (gesture_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, data := range samples {
		if _, err := stmt.Exec(gestureID, i, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByGestureID retrieves all samples for a given gesture in recording order.
func (r *SampleRepository) GetByGestureID(gestureID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, gesture_id, sample_index, data, created_at
		 FROM gesture_samples
		 WHERE gesture_id = ?
		 ORDER BY sample_index`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.GestureID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// Count returns how many samples are stored for a gesture.
func (r *SampleRepository) Count(gestureID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM gesture_samples WHERE gesture_id = ?`, gestureID).Scan(&n)
	return n, err
}

// DeleteByGestureID removes all samples for a given gesture.
func (r *SampleRepository) DeleteByGestureID(gestureID string) error {
	_, err := r.db.Exec(`DELETE FROM gesture_samples WHERE gesture_id = ?`, gestureID)
	return err
}
