package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Action binds a gesture to a plugin action executed when it matches.
type Action struct {
	ID         string
	GestureID  string
	PluginName string
	ActionName string
	Config     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// ActionRepository provides access to action bindings.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

// Create inserts a new action binding.
func (r *ActionRepository) Create(a *Action) error {
	a.CreatedAt = time.Now()

	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO actions (id, gesture_id, plugin_name, action_name, config, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.GestureID, a.PluginName, a.ActionName, string(config), a.Enabled, a.CreatedAt,
	)
	return err
}

// GetByGestureID retrieves the binding of a gesture.
// Returns nil, nil if no action is bound to the gesture.
func (r *ActionRepository) GetByGestureID(gestureID string) (*Action, error) {
	a := &Action{}
	var config string
	var enabled int

	err := r.db.QueryRow(
		`SELECT id, gesture_id, plugin_name, action_name, config, enabled, created_at
		 FROM actions WHERE gesture_id = ? ORDER BY created_at DESC LIMIT 1`,
		gestureID,
	).Scan(&a.ID, &a.GestureID, &a.PluginName, &a.ActionName, &config, &enabled, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	a.Config = json.RawMessage(config)
	a.Enabled = enabled != 0
	return a, nil
}

// DeleteByGestureID removes every binding of a gesture.
func (r *ActionRepository) DeleteByGestureID(gestureID string) error {
	_, err := r.db.Exec(`DELETE FROM actions WHERE gesture_id = ?`, gestureID)
	return err
}
