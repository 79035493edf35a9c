package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActivationStatus tracks what happened to a confirmed target's action.
type ActivationStatus string

const (
	// StatusQueued means the action was handed to the dispatcher.
	StatusQueued ActivationStatus = "queued"
	// StatusDropped means the dispatch queue was full.
	StatusDropped ActivationStatus = "dropped"
	// StatusDone means the plugin ran successfully.
	StatusDone ActivationStatus = "done"
	// StatusFailed means the plugin returned an error.
	StatusFailed ActivationStatus = "failed"
	// StatusNoAction means the target has no bound plugin action.
	StatusNoAction ActivationStatus = "no_action"
)

// Activation records one confirmation of a target.
type Activation struct {
	ID          string           `json:"id"`
	TargetID    string           `json:"target_id"`
	TargetName  string           `json:"target_name"`
	Status      ActivationStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}

// ActivationRepository records target confirmations.
type ActivationRepository struct {
	db *sql.DB
}

// Activations returns the activation repository for this store.
func (s *Store) Activations() *ActivationRepository {
	return &ActivationRepository{db: s.db}
}

// Record inserts an activation, assigning an ID when empty.
func (r *ActivationRepository) Record(a *Activation) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = StatusQueued
	}
	if a.ConfirmedAt.IsZero() {
		a.ConfirmedAt = time.Now()
	}
	// Stored as UTC text so ordering by confirmed_at stays chronological.
	a.ConfirmedAt = a.ConfirmedAt.UTC()

	_, err := r.db.Exec(
		`INSERT INTO activations (id, target_id, target_name, status, error, confirmed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.TargetID, a.TargetName, string(a.Status), a.Error, a.ConfirmedAt,
	)
	return err
}

// SetStatus updates the outcome of an activation.
func (r *ActivationRepository) SetStatus(id string, status ActivationStatus, errMsg string) error {
	result, err := r.db.Exec(
		`UPDATE activations SET status = ?, error = ? WHERE id = ?`,
		string(status), errMsg, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves an activation by its ID.
func (r *ActivationRepository) GetByID(id string) (*Activation, error) {
	a := &Activation{}
	var status string

	err := r.db.QueryRow(
		`SELECT id, target_id, target_name, status, error, confirmed_at
		 FROM activations WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.TargetID, &a.TargetName, &status, &a.Error, &a.ConfirmedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Status = ActivationStatus(status)
	return a, nil
}

// List returns the most recent activations, newest first. A non-positive
// limit returns all of them.
func (r *ActivationRepository) List(limit int) ([]*Activation, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, target_id, target_name, status, error, confirmed_at
		 FROM activations ORDER BY confirmed_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activations []*Activation
	for rows.Next() {
		a := &Activation{}
		var status string
		if err := rows.Scan(&a.ID, &a.TargetID, &a.TargetName, &status, &a.Error, &a.ConfirmedAt); err != nil {
			return nil, err
		}
		a.Status = ActivationStatus(status)
		activations = append(activations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return activations, nil
}

// DeleteBefore prunes activations confirmed before t and returns how many
// were removed.
func (r *ActivationRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM activations WHERE confirmed_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
