package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

// FileName is the catalog kept next to the rendered images.
const FileName = "polarmap.db"

// Run describes one configured render run, keyed by its input base name.
type Run struct {
	Key      string
	Variable string
	Title    string
	Units    string
	Palette  string
	Lower    float64
	Upper    float64
	Levels   int
	Extend   string
	Input    string
	DayBegin int
	DayEnd   int
	Updated  time.Time
}

// Frame is one written day image with a summary of its field.
type Frame struct {
	Run      string
	Day      int
	Path     string
	Format   string
	Levels   int
	Min      float64
	Max      float64
	Mean     float64
	Valid    int
	Bytes    int64
	Rendered time.Time
}

// Catalog is the sqlite record of the runs and frames written to a figure
// directory.
type Catalog struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens or creates the catalog at dbPath.
func Open(dbPath string, clock clockwork.Clock) (*Catalog, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; day workers share this connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_key TEXT PRIMARY KEY,
			variable TEXT,
			title TEXT,
			units TEXT,
			palette TEXT,
			lower REAL,
			upper REAL,
			levels INTEGER,
			extend TEXT,
			input TEXT,
			day_begin INTEGER,
			day_end INTEGER,
			updated_at INTEGER
		);
		CREATE TABLE IF NOT EXISTS frames (
			run_key TEXT,
			day INTEGER,
			path TEXT,
			format TEXT,
			levels INTEGER,
			min_value REAL,
			max_value REAL,
			mean_value REAL,
			valid_cells INTEGER,
			bytes INTEGER,
			rendered_at INTEGER,
			PRIMARY KEY (run_key, day, format)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT,
			value TEXT,
			PRIMARY KEY (name)
		);
		CREATE INDEX IF NOT EXISTS idx_frames on frames (run_key, day);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO metadata VALUES
		('name', 'polarmap catalog'),
		('version', '1'),
		('projection', 'north polar stereographic, lon_0=0, boundary 47N');
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db, clock: clock}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error { return c.db.Close() }

// UpsertRun records the settings of a run, replacing an earlier record.
// Frames of the run outside its new day range are dropped.
func (c *Catalog) UpsertRun(ctx context.Context, r Run) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", r.Key, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_key, variable, title, units, palette, lower, upper, levels, extend, input, day_begin, day_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Key, r.Variable, r.Title, r.Units, r.Palette, r.Lower, r.Upper, r.Levels, r.Extend, r.Input,
		r.DayBegin, r.DayEnd, c.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", r.Key, err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM frames WHERE run_key = ? AND (day < ? OR day > ?)`,
		r.Key, r.DayBegin, r.DayEnd)
	if err != nil {
		return fmt.Errorf("prune frames of %s: %w", r.Key, err)
	}
	return tx.Commit()
}

// RecordFrame stores a written image. Re-rendering the same day and format
// replaces the row. Rendered is set from the catalog clock.
func (c *Catalog) RecordFrame(ctx context.Context, f Frame) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO frames
		(run_key, day, path, format, levels, min_value, max_value, mean_value, valid_cells, bytes, rendered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Run, f.Day, f.Path, f.Format, f.Levels, nullable(f.Min), nullable(f.Max), nullable(f.Mean),
		f.Valid, f.Bytes, c.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("record frame %s day %d: %w", f.Run, f.Day, err)
	}
	return nil
}

// Frames lists the frames of a run in day order. An empty format matches
// every format.
func (c *Catalog) Frames(ctx context.Context, run, format string) ([]Frame, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_key, day, path, format, levels, min_value, max_value, mean_value, valid_cells, bytes, rendered_at
		FROM frames
		WHERE run_key = ? AND (? = '' OR format = ?)
		ORDER BY day, format`, run, format, format)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var (
			f             Frame
			lo, hi, mean  sql.NullFloat64
			renderedNanos int64
		)
		if err := rows.Scan(&f.Run, &f.Day, &f.Path, &f.Format, &f.Levels, &lo, &hi, &mean,
			&f.Valid, &f.Bytes, &renderedNanos); err != nil {
			return nil, err
		}
		f.Min, f.Max, f.Mean = orNaN(lo), orNaN(hi), orNaN(mean)
		f.Rendered = time.Unix(0, renderedNanos).UTC()
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Runs lists every catalogued run ordered by key.
func (c *Catalog) Runs(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_key, variable, title, units, palette, lower, upper, levels, extend, input, day_begin, day_end, updated_at
		FROM runs ORDER BY run_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r            Run
			updatedNanos int64
		)
		if err := rows.Scan(&r.Key, &r.Variable, &r.Title, &r.Units, &r.Palette, &r.Lower, &r.Upper,
			&r.Levels, &r.Extend, &r.Input, &r.DayBegin, &r.DayEnd, &updatedNanos); err != nil {
			return nil, err
		}
		r.Updated = time.Unix(0, updatedNanos).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UpdateMetadata sets a catalog metadata entry.
func (c *Catalog) UpdateMetadata(ctx context.Context, name, value string) error {
	_, err := c.db.ExecContext(ctx, "INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)", name, value)
	return err
}

// Metadata returns every metadata entry.
func (c *Catalog) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

func nullable(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
