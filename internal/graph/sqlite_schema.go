package graph

// SQLite schema DDL constants. Everything is IF NOT EXISTS so opening an
// already-initialized store is a no-op.

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    label TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    props TEXT,
    UNIQUE(label, type)
)`

const schemaEdges = `
CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    src INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    dst INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    type TEXT NOT NULL DEFAULT '',
    props TEXT,
    UNIQUE(src, dst, type)
)`

// idx_edges_src serves the per-frontier expansion query in BFS traversal.
const indexEdgesSrc = `CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src)`
const indexEdgesDst = `CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst)`

// SQLite pragmas. foreign_keys must be ON for the cascade semantics on the
// edges table; the rest mirror the usual single-writer tuning.
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaFK = `PRAGMA foreign_keys=ON`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

func allSchemaStatements() []string {
	return []string{
		schemaNodes,
		schemaEdges,
		indexEdgesSrc,
		indexEdgesDst,
	}
}

func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaFK,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
