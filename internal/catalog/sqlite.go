package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLite reads the web layer's schedule tables.
//
// It holds its own read-mostly connection; the web layer and the state store
// may share the same database file (WAL mode tolerates that).
type SQLite struct {
	db *sql.DB
}

type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// OpenSQLite opens the catalog database and ensures the schema exists so a
// factory-fresh device can boot before the web layer has written anything.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog: sqlite path is required")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")

	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(string(b)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (c *SQLite) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *SQLite) ListEnabled(ctx context.Context) ([]Schedule, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, hour, minute, days, clip_id, COALESCE(chime_id, 0), announce_time, position
		 FROM schedules WHERE enabled = 1
		 ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var s Schedule
		var days string
		var announce int
		if err := rows.Scan(&s.ID, &s.Hour, &s.Minute, &days, &s.ClipID, &s.ChimeID, &announce, &s.Position); err != nil {
			return nil, err
		}
		s.Days = ParseDays(days)
		s.Enabled = true
		s.AnnounceTime = announce != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *SQLite) ResolveClip(ctx context.Context, id int64) (Clip, error) {
	var cl Clip
	var durMS int64
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, path, duration_ms FROM clips WHERE id = ?`, id).
		Scan(&cl.ID, &cl.Name, &cl.Path, &durMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Clip{}, ErrNotFound
	}
	if err != nil {
		return Clip{}, err
	}
	cl.Duration = time.Duration(durMS) * time.Millisecond
	return cl, nil
}

func (c *SQLite) ResolveChime(ctx context.Context, id int64) (Chime, error) {
	var ch Chime
	var enabled int
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, opening_path, closing_path, enabled FROM chimes WHERE id = ?`, id).
		Scan(&ch.ID, &ch.Name, &ch.OpeningPath, &ch.ClosingPath, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return Chime{}, ErrNotFound
	}
	if err != nil {
		return Chime{}, err
	}
	ch.Enabled = enabled != 0
	return ch, nil
}
