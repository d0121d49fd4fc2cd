// This file implements the SQLiteExporter which writes a graph and its
// analysis report to a SQLite database for ad-hoc querying.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/debug"
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"

	_ "modernc.org/sqlite"
)

// DatabaseName is the file written inside the export directory.
const DatabaseName = "refgraph.sqlite3"

// Order kinds stored in the orders table.
const (
	OrderKindDeletion   = "deletion"
	OrderKindDependency = "dependency"
)

// SQLiteExportConfig configures the SQLite export.
type SQLiteExportConfig struct {
	// Title is stored in export_meta when set.
	Title string

	// IncludeJSON writes data/report.json and data/meta.json next to the database.
	IncludeJSON bool
}

// DefaultSQLiteExportConfig returns the default export configuration.
func DefaultSQLiteExportConfig() SQLiteExportConfig {
	return SQLiteExportConfig{IncludeJSON: true}
}

// ExportMeta describes one export run.
type ExportMeta struct {
	RunID          string    `json:"run_id"`
	Version        string    `json:"version,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	NodeCount      int       `json:"node_count"`
	ReferenceCount int       `json:"reference_count"`
	CycleCount     int       `json:"cycle_count"`
	SchemaVersion  int       `json:"schema_version"`
	Title          string    `json:"title,omitempty"`
}

// SQLiteExporter exports a graph and its report to a SQLite database.
type SQLiteExporter struct {
	Graph  *model.RefGraph
	Report *analysis.Report
	Config SQLiteExportConfig

	runID   string
	version string
}

// NewSQLiteExporter creates a new exporter with the given data.
// A nil report is computed on Export with the default analysis configuration.
func NewSQLiteExporter(g *model.RefGraph, report *analysis.Report) *SQLiteExporter {
	return &SQLiteExporter{
		Graph:  g,
		Report: report,
		Config: DefaultSQLiteExportConfig(),
		runID:  uuid.NewString(),
	}
}

// SetVersion records the producing tool version in export_meta.
func (e *SQLiteExporter) SetVersion(version string) {
	e.version = version
}

// RunID identifies this export in export_meta.
func (e *SQLiteExporter) RunID() string {
	return e.runID
}

// Export writes the SQLite database and supporting files to the output directory.
// It returns the database path.
func (e *SQLiteExporter) Export(outputDir string) (string, error) {
	defer metrics.Timer(metrics.Export)()
	defer debug.LogEnterExit("export.SQLite")()

	if e.Graph == nil {
		return "", fmt.Errorf("export: %w", analysis.ErrNilGraph)
	}
	if e.Report == nil {
		report, err := analysis.NewAnalyzer(e.Graph).Analyze(context.Background())
		if err != nil {
			return "", fmt.Errorf("analyze: %w", err)
		}
		e.Report = report
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	dbPath := filepath.Join(outputDir, DatabaseName)

	// Remove existing database if present
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	steps := []struct {
		name string
		run  func(*sql.DB) error
	}{
		{"create schema", CreateSchema},
		{"insert nodes", e.insertNodes},
		{"insert references", e.insertReferences},
		{"insert cycles", e.insertCycles},
		{"insert orders", e.insertOrders},
		{"insert stats", e.insertStats},
		{"insert meta", e.insertMeta},
		{"optimize database", OptimizeDatabase},
	}
	for _, step := range steps {
		if err := step.run(db); err != nil {
			return "", fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if err := db.Close(); err != nil {
		return "", fmt.Errorf("close database: %w", err)
	}
	dbClosed = true

	if e.Config.IncludeJSON {
		dataDir := filepath.Join(outputDir, "data")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
		if err := writeJSON(filepath.Join(dataDir, "report.json"), e.Report); err != nil {
			return "", fmt.Errorf("write report.json: %w", err)
		}
		if err := writeJSON(filepath.Join(dataDir, "meta.json"), e.meta()); err != nil {
			return "", fmt.Errorf("write meta.json: %w", err)
		}
	}

	debug.Log("export: wrote %s (%d nodes)", dbPath, e.Graph.Len())
	return dbPath, nil
}

// insertNodes inserts every node with its degrees and cycle membership.
func (e *SQLiteExporter) insertNodes(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO nodes (position, label, out_degree, in_degree, in_cycle)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	inDegree := analysis.DependentCounts(e.Graph)
	inCycle := e.Report.InCycle()
	for i, label := range e.Graph.Labels() {
		_, err := stmt.Exec(i, label, e.Graph.OutDegree(label), inDegree[label], boolInt(inCycle[label]))
		if err != nil {
			return fmt.Errorf("insert node %s: %w", label, err)
		}
	}

	return tx.Commit()
}

// insertReferences inserts every dependency-list entry, duplicates included.
func (e *SQLiteExporter) insertReferences(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO node_refs (from_label, to_label, ref_index, dangling)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, label := range e.Graph.Labels() {
		for i, dep := range e.Graph.Dependencies(label) {
			if _, err := stmt.Exec(label, dep, i, boolInt(!e.Graph.Has(dep))); err != nil {
				return fmt.Errorf("insert reference %s->%s: %w", label, dep, err)
			}
		}
	}

	return tx.Commit()
}

// insertCycles inserts the reported cycles and their members in walk order.
func (e *SQLiteExporter) insertCycles(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cycleStmt, err := tx.Prepare(`INSERT INTO cycles (id, length, path) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer cycleStmt.Close()

	memberStmt, err := tx.Prepare(`INSERT INTO cycle_members (cycle_id, position, label) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer memberStmt.Close()

	for id, c := range e.Report.Cycles {
		if _, err := cycleStmt.Exec(id, c.Len(), strings.Join(c, " -> ")); err != nil {
			return fmt.Errorf("insert cycle %d: %w", id, err)
		}
		for pos, label := range c.Nodes() {
			if _, err := memberStmt.Exec(id, pos, label); err != nil {
				return fmt.Errorf("insert cycle member %d/%s: %w", id, label, err)
			}
		}
	}

	return tx.Commit()
}

// insertOrders inserts both elimination orders. A plan blocked by a cycle has
// no rows.
func (e *SQLiteExporter) insertOrders(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO orders (kind, position, label) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	plans := map[string]analysis.OrderPlan{
		OrderKindDeletion:   e.Report.DeletionOrder,
		OrderKindDependency: e.Report.DependencyOrder,
	}
	for kind, plan := range plans {
		for pos, label := range plan.Order {
			if _, err := stmt.Exec(kind, pos, label); err != nil {
				return fmt.Errorf("insert %s order %s: %w", kind, label, err)
			}
		}
	}

	return tx.Commit()
}

// insertStats stores the aggregate statistics as key/value rows.
func (e *SQLiteExporter) insertStats(db *sql.DB) error {
	s := e.Report.Stats
	values := map[string]float64{
		"node_count":      float64(s.NodeCount),
		"edge_count":      float64(s.EdgeCount),
		"max_out_degree":  float64(s.MaxOutDegree),
		"max_in_degree":   float64(s.MaxInDegree),
		"avg_out_degree":  s.AvgOutDegree,
		"density":         s.Density,
		"dangling_count":  float64(s.DanglingCount),
		"self_loop_count": float64(s.SelfLoopCount),
		"cycle_count":     float64(len(e.Report.Cycles)),
	}
	for key, value := range values {
		if _, err := db.Exec(`INSERT OR REPLACE INTO graph_stats (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("insert stat %s: %w", key, err)
		}
	}
	return nil
}

func (e *SQLiteExporter) meta() ExportMeta {
	return ExportMeta{
		RunID:          e.runID,
		Version:        e.version,
		GeneratedAt:    time.Now().UTC(),
		NodeCount:      e.Graph.Len(),
		ReferenceCount: e.Graph.EdgeCount(),
		CycleCount:     len(e.Report.Cycles),
		SchemaVersion:  SchemaVersion,
		Title:          e.Config.Title,
	}
}

// insertMeta inserts export metadata.
func (e *SQLiteExporter) insertMeta(db *sql.DB) error {
	m := e.meta()
	meta := map[string]string{
		"run_id":          m.RunID,
		"generated_at":    m.GeneratedAt.Format(time.RFC3339),
		"node_count":      strconv.Itoa(m.NodeCount),
		"reference_count": strconv.Itoa(m.ReferenceCount),
		"schema_version":  strconv.Itoa(SchemaVersion),
	}

	if m.Version != "" {
		meta["version"] = m.Version
	}
	if m.Title != "" {
		meta["title"] = m.Title
	}

	for key, value := range meta {
		if err := InsertMetaValue(db, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}

	return nil
}

// writeJSON writes data as JSON to a file.
func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
