package stats

import (
	"database/sql"
	"fmt"

	// Registers the sqlite3 driver under database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteWriter persists Registry snapshots to a SQLite file, grounded on
// the teacher's tracing/sqlite.go SQLiteTraceWriter: a single table, a
// prepared INSERT statement, and a batched Flush wrapped in a transaction.
type SQLiteWriter struct {
	*sql.DB

	statement *sql.Stmt

	dbPath  string
	pending []pendingSample
}

type pendingSample struct {
	runID string
	tick  float64
	s     Sample
}

// NewSQLiteWriter creates a writer backed by the SQLite file at path. It
// registers an atexit handler that flushes any buffered samples, mirroring
// the teacher's atexit.Register(func() { w.Flush() }).
func NewSQLiteWriter(path string) *SQLiteWriter {
	w := &SQLiteWriter{dbPath: path}
	atexit.Register(func() { w.Flush() })
	return w
}

// Init opens the database connection, creates the stats table, and
// prepares the insert statement.
func (w *SQLiteWriter) Init() {
	db, err := sql.Open("sqlite3", w.dbPath)
	if err != nil {
		panic(err)
	}
	w.DB = db

	w.mustExecute(`
		CREATE TABLE IF NOT EXISTS stats (
			run_id    VARCHAR(200) NOT NULL,
			tick      FLOAT        NOT NULL,
			component VARCHAR(200) NOT NULL,
			metric    VARCHAR(100) NOT NULL,
			command   VARCHAR(100) DEFAULT '',
			master_id INTEGER      DEFAULT -1,
			value     INTEGER      NOT NULL
		);
	`)
	w.mustExecute(`CREATE INDEX IF NOT EXISTS stats_component_index ON stats (component);`)
	w.mustExecute(`CREATE INDEX IF NOT EXISTS stats_tick_index ON stats (tick);`)

	stmt, err := w.Prepare(`
		INSERT INTO stats (run_id, tick, component, metric, command, master_id, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		panic(err)
	}
	w.statement = stmt
}

// WriteSnapshot buffers every sample of snapshot, tagged with runID and
// the tick it was taken at.
func (w *SQLiteWriter) WriteSnapshot(runID string, tick float64, snapshot []Sample) {
	for _, s := range snapshot {
		w.pending = append(w.pending, pendingSample{runID: runID, tick: tick, s: s})
	}
}

// Flush writes every buffered sample inside one transaction.
func (w *SQLiteWriter) Flush() {
	if len(w.pending) == 0 || w.DB == nil {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	for _, p := range w.pending {
		_, err := w.statement.Exec(
			p.runID, p.tick, p.s.Component, p.s.Metric, p.s.Command, int(p.s.MasterID), p.s.Value,
		)
		if err != nil {
			panic(err)
		}
	}
	w.mustExecute("COMMIT TRANSACTION")

	w.pending = nil
}

func (w *SQLiteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		panic(fmt.Errorf("stats: failed to execute %q: %w", query, err))
	}
	return res
}

// NewRunID generates a fresh identifier for one simulation run's worth of
// snapshots, the same way the teacher tags every trace row.
func NewRunID() string { return xid.New().String() }
