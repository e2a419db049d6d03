// Package store is the simulated host's project file: a SQLite database holding
// compositions, their layers and the marker timelines attached to either.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/doeshing/compai/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MemoryPath opens a private in-memory project.
const MemoryPath = ":memory:"

// ErrNoActiveComposition is returned when the project has no active composition.
var ErrNoActiveComposition = errors.New("no active composition")

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the project database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the project file at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
			return nil, fmt.Errorf("create project directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open project file: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes host calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Path is the project file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection as a Querier for single statements.
func (s *Store) DB() Querier {
	return s.db
}

// WithTx runs fn inside one transaction.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CompRecord is a composition with its row id.
type CompRecord struct {
	ID int64
	domain.Composition
}

// LayerRecord is a layer with its row id.
type LayerRecord struct {
	ID int64
	domain.Layer
}

const compColumns = "id, name, width, height, duration, frame_rate, playhead"

func scanComp(row interface{ Scan(...any) error }) (CompRecord, error) {
	var rec CompRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Width, &rec.Height, &rec.Duration, &rec.FrameRate, &rec.CurrentTime)
	return rec, err
}

// ActiveComposition returns the active composition or ErrNoActiveComposition.
func ActiveComposition(ctx context.Context, q Querier) (CompRecord, error) {
	rec, err := scanComp(q.QueryRowContext(ctx, "SELECT "+compColumns+" FROM compositions WHERE active = 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return CompRecord{}, ErrNoActiveComposition
	}
	if err != nil {
		return CompRecord{}, fmt.Errorf("load active composition: %w", err)
	}
	return rec, nil
}

// CompositionByName looks a composition up by its unique name.
func CompositionByName(ctx context.Context, q Querier, name string) (CompRecord, bool, error) {
	rec, err := scanComp(q.QueryRowContext(ctx, "SELECT "+compColumns+" FROM compositions WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return CompRecord{}, false, nil
	}
	if err != nil {
		return CompRecord{}, false, fmt.Errorf("load composition %q: %w", name, err)
	}
	return rec, true, nil
}

// InsertComposition adds a composition and returns its id.
func InsertComposition(ctx context.Context, q Querier, comp domain.Composition) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO compositions (name, width, height, duration, frame_rate, playhead) VALUES (?, ?, ?, ?, ?, ?)`,
		comp.Name, comp.Width, comp.Height, comp.Duration, comp.FrameRate, comp.CurrentTime)
	if err != nil {
		return 0, fmt.Errorf("insert composition %q: %w", comp.Name, err)
	}
	return res.LastInsertId()
}

// Activate makes compID the only active composition.
func Activate(ctx context.Context, q Querier, compID int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE compositions SET active = CASE WHEN id = ? THEN 1 ELSE 0 END`, compID); err != nil {
		return fmt.Errorf("activate composition: %w", err)
	}
	return nil
}

// SetPlayhead moves the composition's current time.
func SetPlayhead(ctx context.Context, q Querier, compID int64, seconds float64) error {
	if _, err := q.ExecContext(ctx, `UPDATE compositions SET playhead = ? WHERE id = ?`, seconds, compID); err != nil {
		return fmt.Errorf("set playhead: %w", err)
	}
	return nil
}

// CountCompositions returns the number of compositions in the project.
func CountCompositions(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM compositions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count compositions: %w", err)
	}
	return n, nil
}

// Layers returns the composition's layers with 1-based indices in stacking order.
func Layers(ctx context.Context, q Querier, compID int64) ([]LayerRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, type, text, color FROM layers WHERE comp_id = ? ORDER BY position, id`, compID)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	defer rows.Close()

	var layers []LayerRecord
	for rows.Next() {
		var rec LayerRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Type, &rec.Text, &rec.Color); err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		rec.Index = len(layers) + 1
		layers = append(layers, rec)
	}
	return layers, rows.Err()
}

// InsertLayer appends a layer at the bottom of the stack.
func InsertLayer(ctx context.Context, q Querier, compID int64, layer domain.Layer) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO layers (comp_id, position, name, type, text, color)
		 VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM layers WHERE comp_id = ?), ?, ?, ?, ?)`,
		compID, compID, layer.Name, layer.Type, layer.Text, layer.Color)
	if err != nil {
		return 0, fmt.Errorf("insert layer: %w", err)
	}
	return res.LastInsertId()
}

// UpdateLayer writes the layer's name and text back.
func UpdateLayer(ctx context.Context, q Querier, rec LayerRecord) error {
	if _, err := q.ExecContext(ctx, `UPDATE layers SET name = ?, text = ?, color = ? WHERE id = ?`,
		rec.Name, rec.Text, rec.Color, rec.ID); err != nil {
		return fmt.Errorf("update layer: %w", err)
	}
	return nil
}

// DeleteLayer removes a layer and its markers.
func DeleteLayer(ctx context.Context, q Querier, compID, layerID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM markers WHERE comp_id = ? AND layer_id = ?`, compID, layerID); err != nil {
		return fmt.Errorf("delete layer markers: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM layers WHERE id = ?`, layerID); err != nil {
		return fmt.Errorf("delete layer: %w", err)
	}
	return nil
}

// Markers returns the timeline in time order with 1-based indices.
// layerID 0 selects the composition timeline.
func Markers(ctx context.Context, q Querier, compID, layerID int64) ([]domain.Marker, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT time, comment, chapter, url, frame_target, cue_point_name, duration, label
		 FROM markers WHERE comp_id = ? AND layer_id = ? ORDER BY time`, compID, layerID)
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	defer rows.Close()

	markers := []domain.Marker{}
	for rows.Next() {
		var m domain.Marker
		if err := rows.Scan(&m.Time, &m.Comment, &m.Chapter, &m.URL, &m.FrameTarget, &m.CuePointName, &m.Duration, &m.Label); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		m.Index = len(markers) + 1
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// PutMarker writes a marker keyed by its time; an existing marker at that time is replaced.
func PutMarker(ctx context.Context, q Querier, compID, layerID int64, m domain.Marker) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO markers (comp_id, layer_id, time, comment, chapter, url, frame_target, cue_point_name, duration, label)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (comp_id, layer_id, time) DO UPDATE SET
		   comment = excluded.comment,
		   chapter = excluded.chapter,
		   url = excluded.url,
		   frame_target = excluded.frame_target,
		   cue_point_name = excluded.cue_point_name,
		   duration = excluded.duration,
		   label = excluded.label`,
		compID, layerID, m.Time, m.Comment, m.Chapter, m.URL, m.FrameTarget, m.CuePointName, m.Duration, m.Label)
	if err != nil {
		return fmt.Errorf("write marker at %gs: %w", m.Time, err)
	}
	return nil
}

// DeleteMarker removes the marker at exactly seconds.
func DeleteMarker(ctx context.Context, q Querier, compID, layerID int64, seconds float64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM markers WHERE comp_id = ? AND layer_id = ? AND time = ?`,
		compID, layerID, seconds); err != nil {
		return fmt.Errorf("delete marker at %gs: %w", seconds, err)
	}
	return nil
}
