package datasource

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// SQLiteReader provides read access to an exported graph database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	// Open in read-only mode with various pragmas for read performance
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		_, _ = db.Exec(pragma) // best effort
	}

	return &SQLiteReader{
		db:   db,
		path: source.Path,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadGraph rebuilds the store: nodes in their exported position and each
// dependency list in its original order, duplicates included.
func (r *SQLiteReader) LoadGraph() (*model.RefGraph, error) {
	defer metrics.Timer(metrics.GraphLoad)()

	rows, err := r.db.Query(`SELECT label FROM nodes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan node: %w", err)
		}
		labels = append(labels, label)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	deps, err := r.loadReferences()
	if err != nil {
		return nil, err
	}

	b := model.NewBuilder()
	for _, label := range labels {
		b.Add(label, deps[label]...)
	}
	return b.Build()
}

func (r *SQLiteReader) loadReferences() (map[string][]string, error) {
	rows, err := r.db.Query(`SELECT from_label, to_label FROM node_refs ORDER BY from_label, ref_index`)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		deps[from] = append(deps[from], to)
	}
	return deps, rows.Err()
}

// CountNodes returns the number of nodes without loading references.
func (r *SQLiteReader) CountNodes() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Dependencies returns one node's dependency list.
func (r *SQLiteReader) Dependencies(label string) ([]string, error) {
	rows, err := r.db.Query(`SELECT to_label FROM node_refs WHERE from_label = ? ORDER BY ref_index`, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deps := []string{}
	for rows.Next() {
		var to string
		if err := rows.Scan(&to); err != nil {
			return nil, err
		}
		deps = append(deps, to)
	}
	return deps, rows.Err()
}

// Meta returns one export_meta value, or "" when absent.
func (r *SQLiteReader) Meta(key string) (string, error) {
	var value sql.NullString
	err := r.db.QueryRow(`SELECT value FROM export_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// GetLastModified returns the export timestamp recorded in the database.
func (r *SQLiteReader) GetLastModified() (time.Time, error) {
	s, err := r.Meta("generated_at")
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
