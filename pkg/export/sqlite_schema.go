// Package export writes analysis results in formats other tools can consume.
//
// This file implements SQLite schema creation for report export.
package export

import (
	"database/sql"
	"fmt"
)

// Schema version for tracking migrations
const SchemaVersion = 1

// CreateSchema creates all tables and indexes in the database.
func CreateSchema(db *sql.DB) error {
	if err := createCoreTables(db); err != nil {
		return fmt.Errorf("create core tables: %w", err)
	}

	if err := createAnalysisTables(db); err != nil {
		return fmt.Errorf("create analysis tables: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	if err := createMetaTable(db); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	return nil
}

// createCoreTables creates the nodes and node_refs tables.
// Together they hold the whole store, so a graph can be read back from an export.
func createCoreTables(db *sql.DB) error {
	nodesSQL := `
		CREATE TABLE IF NOT EXISTS nodes (
			position INTEGER PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			out_degree INTEGER NOT NULL DEFAULT 0,
			in_degree INTEGER NOT NULL DEFAULT 0,
			in_cycle INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := db.Exec(nodesSQL); err != nil {
		return fmt.Errorf("create nodes table: %w", err)
	}

	// ref_index keeps list order and duplicate entries of a dependency list.
	refsSQL := `
		CREATE TABLE IF NOT EXISTS node_refs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_label TEXT NOT NULL,
			to_label TEXT NOT NULL,
			ref_index INTEGER NOT NULL,
			dangling INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (from_label) REFERENCES nodes(label)
		)
	`
	if _, err := db.Exec(refsSQL); err != nil {
		return fmt.Errorf("create node_refs table: %w", err)
	}

	return nil
}

// createAnalysisTables creates tables for computed results.
func createAnalysisTables(db *sql.DB) error {
	tables := []struct {
		name string
		sql  string
	}{
		{"cycles", `
			CREATE TABLE IF NOT EXISTS cycles (
				id INTEGER PRIMARY KEY,
				length INTEGER NOT NULL,
				path TEXT NOT NULL
			)
		`},
		{"cycle_members", `
			CREATE TABLE IF NOT EXISTS cycle_members (
				cycle_id INTEGER NOT NULL,
				position INTEGER NOT NULL,
				label TEXT NOT NULL,
				PRIMARY KEY (cycle_id, position),
				FOREIGN KEY (cycle_id) REFERENCES cycles(id)
			)
		`},
		{"orders", `
			CREATE TABLE IF NOT EXISTS orders (
				kind TEXT NOT NULL,
				position INTEGER NOT NULL,
				label TEXT NOT NULL,
				PRIMARY KEY (kind, position)
			)
		`},
		{"graph_stats", `
			CREATE TABLE IF NOT EXISTS graph_stats (
				key TEXT PRIMARY KEY,
				value REAL NOT NULL
			)
		`},
	}

	for _, tbl := range tables {
		if _, err := db.Exec(tbl.sql); err != nil {
			return fmt.Errorf("create %s table: %w", tbl.name, err)
		}
	}
	return nil
}

// createIndexes creates indexes for dependents and membership lookups.
func createIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_refs_from ON node_refs(from_label, ref_index)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_to ON node_refs(to_label)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_in_degree ON nodes(in_degree DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_members_label ON cycle_members(label)`,
	}

	for _, sql := range indexes {
		if _, err := db.Exec(sql); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// createMetaTable creates the export metadata table.
func createMetaTable(db *sql.DB) error {
	metaSQL := `
		CREATE TABLE IF NOT EXISTS export_meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)
	`
	if _, err := db.Exec(metaSQL); err != nil {
		return fmt.Errorf("create export_meta table: %w", err)
	}

	return nil
}

// OptimizeDatabase compacts the file as the final step before closing.
func OptimizeDatabase(db *sql.DB) error {
	optimizations := []string{
		`PRAGMA journal_mode=DELETE`,
		`ANALYZE`,
		`PRAGMA optimize`,
	}

	for _, sql := range optimizations {
		if _, err := db.Exec(sql); err != nil {
			// Some pragmas may fail depending on state, continue
			continue
		}
	}

	// VACUUM must be last and outside transaction
	if _, err := db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}

	return nil
}

// InsertMetaValue inserts or updates a metadata key-value pair.
func InsertMetaValue(db *sql.DB, key, value string) error {
	sql := `INSERT OR REPLACE INTO export_meta (key, value) VALUES (?, ?)`
	_, err := db.Exec(sql, key, value)
	return err
}
