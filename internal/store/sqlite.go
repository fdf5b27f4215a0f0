package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joescharf/sos/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Archive writes come from
	// background goroutines, so serialize through a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Incidents ---

func (s *SQLiteStore) ArchiveIncident(ctx context.Context, inc *models.Incident) error {
	if inc == nil || inc.ID == "" {
		return fmt.Errorf("archive incident: missing id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive incident: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM incident_events WHERE incident_id = ?", inc.ID); err != nil {
		return fmt.Errorf("archive incident: clear events: %w", err)
	}

	lat, lng := coordArgs(inc.Location)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO incidents (id, category_final, started_at, resolved_at, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_final=excluded.category_final, started_at=excluded.started_at,
			resolved_at=excluded.resolved_at, latitude=excluded.latitude, longitude=excluded.longitude`,
		inc.ID, string(inc.Category), inc.StartedAt.UTC(), inc.ResolvedAt.UTC(), lat, lng,
	)
	if err != nil {
		return fmt.Errorf("archive incident: %w", err)
	}

	for i, ev := range inc.Events {
		lat, lng := coordArgs(ev.Location)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO incident_events (incident_id, seq, kind, category, previous_category, description, latitude, longitude, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inc.ID, i, string(ev.Kind), string(ev.Category), string(ev.PreviousCategory),
			ev.Description, lat, lng, ev.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("archive incident event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive incident: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	inc := &models.Incident{}
	var category string
	var lat, lng sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, category_final, started_at, resolved_at, latitude, longitude
		FROM incidents WHERE id = ?`, id,
	).Scan(&inc.ID, &category, &inc.StartedAt, &inc.ResolvedAt, &lat, &lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	inc.Category = models.Category(category)
	inc.Location = coordsFrom(lat, lng)

	events, err := s.incidentEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	inc.Events = events
	return inc, nil
}

func (s *SQLiteStore) incidentEvents(ctx context.Context, id string) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, category, previous_category, description, latitude, longitude, at
		FROM incident_events WHERE incident_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list incident events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.HistoryEntry
	for rows.Next() {
		var kind, category, previous string
		var lat, lng sql.NullFloat64
		ev := models.HistoryEntry{SessionID: id}
		if err := rows.Scan(&kind, &category, &previous, &ev.Description, &lat, &lng, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan incident event: %w", err)
		}
		ev.Kind = models.HistoryKind(kind)
		ev.Category = models.Category(category)
		ev.PreviousCategory = models.Category(previous)
		ev.Location = coordsFrom(lat, lng)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) ListIncidents(ctx context.Context, limit int) ([]*models.Incident, error) {
	query := `SELECT id, category_final, started_at, resolved_at, latitude, longitude
		FROM incidents ORDER BY resolved_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var incidents []*models.Incident
	for rows.Next() {
		inc := &models.Incident{}
		var category string
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&inc.ID, &category, &inc.StartedAt, &inc.ResolvedAt, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.Category = models.Category(category)
		inc.Location = coordsFrom(lat, lng)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

func (s *SQLiteStore) CountIncidents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM incidents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteIncident(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM incidents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return nil
}

func coordArgs(c *models.Coordinates) (any, any) {
	if c == nil {
		return nil, nil
	}
	return c.Latitude, c.Longitude
}

func coordsFrom(lat, lng sql.NullFloat64) *models.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &models.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
}
