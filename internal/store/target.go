package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Shape is the hit-region kind of a target.
type Shape string

const (
	// ShapeCircle is a circle around (X, Y) with Radius.
	ShapeCircle Shape = "circle"
	// ShapeRect is an axis-aligned rectangle from (X, Y) spanning Width x Height.
	ShapeRect Shape = "rect"
)

// PolicyKind selects how a target confirms.
type PolicyKind string

const (
	// PolicyTime confirms after the hand dwells for Hold.
	PolicyTime PolicyKind = "time"
	// PolicyDepth confirms after the hand pushes PressDepth toward the sensor.
	PolicyDepth PolicyKind = "depth"
)

// Target is a virtual button stored in the database. Coordinates are
// relative to the engagement anchor.
type Target struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Shape      Shape           `json:"shape"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Radius     float64         `json:"radius,omitempty"`
	Width      float64         `json:"width,omitempty"`
	Height     float64         `json:"height,omitempty"`
	Policy     PolicyKind      `json:"policy"`
	Hold       time.Duration   `json:"hold,omitempty"`
	PressDepth float64         `json:"press_depth,omitempty"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config,omitempty"`
	Position   int             `json:"position"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TargetRepository provides CRUD operations for targets.
type TargetRepository struct {
	db *sql.DB
}

// Targets returns the target repository for this store.
func (s *Store) Targets() *TargetRepository {
	return &TargetRepository{db: s.db}
}

const targetColumns = `id, name, shape, x, y, radius, width, height, policy, hold_ms, press_depth,
	plugin_name, action_name, config, position, enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*Target, error) {
	t := &Target{}
	var shape, policy, config string
	var holdMs int64
	var enabled int

	err := row.Scan(&t.ID, &t.Name, &shape, &t.X, &t.Y, &t.Radius, &t.Width, &t.Height,
		&policy, &holdMs, &t.PressDepth, &t.PluginName, &t.ActionName, &config,
		&t.Position, &enabled, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Shape = Shape(shape)
	t.Policy = PolicyKind(policy)
	t.Hold = time.Duration(holdMs) * time.Millisecond
	t.Config = json.RawMessage(config)
	t.Enabled = enabled != 0
	return t, nil
}

func rawConfig(c json.RawMessage) string {
	if len(c) == 0 {
		return "{}"
	}
	return string(c)
}

// Create inserts a new target into the database.
func (r *TargetRepository) Create(t *Target) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO targets (`+targetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, string(t.Shape), t.X, t.Y, t.Radius, t.Width, t.Height,
		string(t.Policy), t.Hold.Milliseconds(), t.PressDepth, t.PluginName, t.ActionName,
		rawConfig(t.Config), t.Position, t.Enabled, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a target by its ID.
func (r *TargetRepository) GetByID(id string) (*Target, error) {
	t, err := scanTarget(r.db.QueryRow(
		`SELECT `+targetColumns+` FROM targets WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List retrieves all targets in layout order. Registration order decides
// which target wins where regions overlap.
func (r *TargetRepository) List() ([]*Target, error) {
	rows, err := r.db.Query(
		`SELECT ` + targetColumns + ` FROM targets ORDER BY position ASC, created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []*Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}

// Count returns the number of stored targets.
func (r *TargetRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM targets`).Scan(&n)
	return n, err
}

// Update updates an existing target in the database.
func (r *TargetRepository) Update(t *Target) error {
	t.UpdatedAt = time.Now()

	enabled := 0
	if t.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE targets SET name = ?, shape = ?, x = ?, y = ?, radius = ?, width = ?, height = ?,
		 policy = ?, hold_ms = ?, press_depth = ?, plugin_name = ?, action_name = ?, config = ?,
		 position = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, string(t.Shape), t.X, t.Y, t.Radius, t.Width, t.Height,
		string(t.Policy), t.Hold.Milliseconds(), t.PressDepth, t.PluginName, t.ActionName,
		rawConfig(t.Config), t.Position, enabled, t.UpdatedAt, t.ID,
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

// Delete removes a target from the database by its ID.
func (r *TargetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM targets WHERE id = ?`, id)
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
