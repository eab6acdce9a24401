package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// GestureType represents the type of gesture (static or dynamic).
type GestureType string

const (
	// GestureTypeStatic represents a static hand pose gesture.
	GestureTypeStatic GestureType = "static"
	// GestureTypeDynamic represents a dynamic motion-based gesture.
	GestureTypeDynamic GestureType = "dynamic"
)

// DefaultAppContext is the context tag of gestures that apply everywhere.
const DefaultAppContext = "global"

// Gesture represents a gesture template stored in the database.
type Gesture struct {
	ID         string
	Name       string
	Type       GestureType
	Tolerance  float64
	AppContext string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Landmark is one stored joint position of a static template.
type Landmark struct {
	X, Y, Z float64
}

// PathPoint is one stored fingertip position of a dynamic template.
type PathPoint struct {
	X, Y        float64
	TimestampMs int64
}

// GestureRepository provides CRUD operations for gestures.
type GestureRepository struct {
	db *sql.DB
}

// Gestures returns the gesture repository for this store.
func (s *Store) Gestures() *GestureRepository {
	return &GestureRepository{db: s.db}
}

const gestureColumns = `id, name, type, tolerance, app_context, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGesture(row rowScanner) (*Gesture, error) {
	g := &Gesture{}
	var gestureType string
	if err := row.Scan(&g.ID, &g.Name, &gestureType, &g.Tolerance, &g.AppContext, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Type = GestureType(gestureType)
	return g, nil
}

// Create inserts a new gesture into the database.
func (r *GestureRepository) Create(g *Gesture) error {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.AppContext == "" {
		g.AppContext = DefaultAppContext
	}

	_, err := r.db.Exec(
		`INSERT INTO gestures (`+gestureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, string(g.Type), g.Tolerance, g.AppContext, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// GetByID retrieves a gesture by its ID.
func (r *GestureRepository) GetByID(id string) (*Gesture, error) {
	g, err := scanGesture(r.db.QueryRow(`SELECT `+gestureColumns+` FROM gestures WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// GetByName retrieves a gesture by its name.
func (r *GestureRepository) GetByName(name string) (*Gesture, error) {
	g, err := scanGesture(r.db.QueryRow(`SELECT `+gestureColumns+` FROM gestures WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// List retrieves all gestures from the database, newest first.
func (r *GestureRepository) List() ([]*Gesture, error) {
	rows, err := r.db.Query(`SELECT ` + gestureColumns + ` FROM gestures ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gestures []*Gesture
	for rows.Next() {
		g, err := scanGesture(rows)
		if err != nil {
			return nil, err
		}
		gestures = append(gestures, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return gestures, nil
}

// Count returns the number of stored gestures.
func (r *GestureRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM gestures`).Scan(&n)
	return n, err
}

// Update updates an existing gesture in the database.
func (r *GestureRepository) Update(g *Gesture) error {
	g.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE gestures SET name = ?, type = ?, tolerance = ?, app_context = ?, updated_at = ?
		 WHERE id = ?`,
		g.Name, string(g.Type), g.Tolerance, g.AppContext, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return err
	}

	return expectAffected(result)
}

// Delete removes a gesture from the database by its ID.
func (r *GestureRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM gestures WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLandmarks replaces the stored pose of a static gesture.
func (r *GestureRepository) SetLandmarks(gestureID string, landmarks []Landmark) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gesture_landmarks WHERE gesture_id = ?`, gestureID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO gesture_landmarks (gesture_id, landmark_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, l := range landmarks {
		if _, err := stmt.Exec(gestureID, i, l.X, l.Y, l.Z); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetLandmarks returns the stored pose of a static gesture in joint order.
func (r *GestureRepository) GetLandmarks(gestureID string) ([]Landmark, error) {
	rows, err := r.db.Query(
		`SELECT x, y, z FROM gesture_landmarks WHERE gesture_id = ? ORDER BY landmark_index`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var landmarks []Landmark
	for rows.Next() {
		var l Landmark
		if err := rows.Scan(&l.X, &l.Y, &l.Z); err != nil {
			return nil, err
		}
		landmarks = append(landmarks, l)
	}
	return landmarks, rows.Err()
}

// SetPath replaces the stored path of a dynamic gesture.
func (r *GestureRepository) SetPath(gestureID string, path []PathPoint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gesture_paths WHERE gesture_id = ?`, gestureID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO gesture_paths (gesture_id, sequence, x, y, timestamp_ms) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range path {
		if _, err := stmt.Exec(gestureID, i, p.X, p.Y, p.TimestampMs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPath returns the stored path of a dynamic gesture in sequence order.
func (r *GestureRepository) GetPath(gestureID string) ([]PathPoint, error) {
	rows, err := r.db.Query(
		`SELECT x, y, timestamp_ms FROM gesture_paths WHERE gesture_id = ? ORDER BY sequence`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var path []PathPoint
	for rows.Next() {
		var p PathPoint
		if err := rows.Scan(&p.X, &p.Y, &p.TimestampMs); err != nil {
			return nil, err
		}
		path = append(path, p)
	}
	return path, rows.Err()
}
