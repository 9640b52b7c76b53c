package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. Uniqueness is
// enforced by the schema's UNIQUE indexes; referential integrity by foreign
// keys with cascade delete. Multi-record imports run in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx so the upsert helpers can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite opens (creating if necessary) a graph database at path. Schema
// setup is idempotent; reopening an initialized store changes nothing.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertNode(ctx context.Context, n *Node) (int64, error) {
	return upsertNode(ctx, s.db, n)
}

func upsertNode(ctx context.Context, q querier, n *Node) (int64, error) {
	if n.Label == "" && n.ID == 0 {
		return 0, fmt.Errorf("node label must not be empty")
	}

	propsJSON, err := marshalProps(n.Props)
	if err != nil {
		return 0, err
	}

	// Id-qualified call: rewrite the node in place.
	if n.ID != 0 {
		res, err := q.ExecContext(ctx,
			`UPDATE nodes SET label = ?, type = ?, props = ? WHERE id = ?`,
			n.Label, n.Type, propsJSON, n.ID,
		)
		if err != nil {
			if isConstraintViolation(err) {
				return 0, &ConstraintError{Op: "upsert node", Err: err}
			}
			return 0, fmt.Errorf("updating node: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("updating node: %w", err)
		}
		if affected == 0 {
			return 0, fmt.Errorf("updating node %d: %w", n.ID, ErrNotFound)
		}
		return n.ID, nil
	}

	// Dedup path: an existing (label, type) keeps its identity and gets the
	// new props merged in.
	if id, merged, err := mergeExisting(ctx, q, n); err != nil || merged {
		return id, err
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO nodes (label, type, props) VALUES (?, ?, ?)`,
		n.Label, n.Type, propsJSON,
	)
	if err != nil {
		if isConstraintViolation(err) {
			// Lost an insert race; fall back to the dedup path.
			if id, merged, mErr := mergeExisting(ctx, q, n); mErr == nil && merged {
				return id, nil
			}
			return 0, &ConstraintError{Op: "upsert node", Err: err}
		}
		return 0, fmt.Errorf("inserting node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inserting node: %w", err)
	}
	return id, nil
}

// mergeExisting merges n.Props into the node with n's (label, type), if one
// exists. The bool reports whether a node was found.
func mergeExisting(ctx context.Context, q querier, n *Node) (int64, bool, error) {
	var (
		id       int64
		rawProps sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, props FROM nodes WHERE label = ? AND type = ?`,
		n.Label, n.Type,
	).Scan(&id, &rawProps)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up node: %w", err)
	}

	if len(n.Props) == 0 {
		return id, true, nil
	}

	props, err := unmarshalProps(rawProps)
	if err != nil {
		return 0, false, err
	}
	propsJSON, err := marshalProps(mergeProps(props, n.Props))
	if err != nil {
		return 0, false, err
	}
	if _, err := q.ExecContext(ctx, `UPDATE nodes SET props = ? WHERE id = ?`, propsJSON, id); err != nil {
		return 0, false, fmt.Errorf("merging node props: %w", err)
	}
	return id, true, nil
}

func (s *SQLiteStore) GetNodeByLabel(ctx context.Context, label, typ string) (*Node, error) {
	return getNodeByLabel(ctx, s.db, label, typ)
}

func getNodeByLabel(ctx context.Context, q querier, label, typ string) (*Node, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, label, type, props FROM nodes WHERE label = ? AND type = ?`,
		label, typ,
	)
	return scanNode(row)
}

func getNode(ctx context.Context, q querier, id int64) (*Node, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, label, type, props FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

func scanNode(row *sql.Row) (*Node, error) {
	var (
		n        Node
		rawProps sql.NullString
	)
	err := row.Scan(&n.ID, &n.Label, &n.Type, &rawProps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning node: %w", err)
	}
	if n.Props, err = unmarshalProps(rawProps); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *SQLiteStore) AddEdge(ctx context.Context, e *Edge) (int64, error) {
	return addEdge(ctx, s.db, e)
}

func addEdge(ctx context.Context, q querier, e *Edge) (int64, error) {
	for _, end := range []struct {
		name string
		id   int64
	}{{"src", e.Src}, {"dst", e.Dst}} {
		var one int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, end.id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &ConstraintError{
				Op:  "add edge",
				Err: fmt.Errorf("%s node %d does not exist", end.name, end.id),
			}
		}
		if err != nil {
			return 0, fmt.Errorf("checking edge endpoint: %w", err)
		}
	}

	// Idempotent insert: a duplicate (src, dst, type) is a no-op returning
	// the existing edge's id.
	if id, ok, err := findEdge(ctx, q, e); err != nil || ok {
		return id, err
	}

	propsJSON, err := marshalProps(e.Props)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO edges (src, dst, type, props) VALUES (?, ?, ?, ?)`,
		e.Src, e.Dst, e.Type, propsJSON,
	)
	if err != nil {
		if isConstraintViolation(err) {
			if id, ok, fErr := findEdge(ctx, q, e); fErr == nil && ok {
				return id, nil
			}
			return 0, &ConstraintError{Op: "add edge", Err: err}
		}
		return 0, fmt.Errorf("inserting edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inserting edge: %w", err)
	}
	return id, nil
}

func findEdge(ctx context.Context, q querier, e *Edge) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM edges WHERE src = ? AND dst = ? AND type = ?`,
		e.Src, e.Dst, e.Type,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up edge: %w", err)
	}
	return id, true, nil
}

// expand enumerates outgoing edge destinations in edge insertion order, one
// query per BFS frontier node. Per-round queries keep latency bounded and the
// traversal identical to the in-memory backend; a recursive CTE would not.
func (s *SQLiteStore) expand(ctx context.Context, id int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dst FROM edges WHERE src = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("expanding node %d: %w", id, err)
	}
	defer rows.Close()

	var dsts []int64
	for rows.Next() {
		var dst int64
		if err := rows.Scan(&dst); err != nil {
			return nil, fmt.Errorf("scanning edge destination: %w", err)
		}
		dsts = append(dsts, dst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edge destinations: %w", err)
	}
	return dsts, nil
}

// resolveRef turns a NodeRef into a concrete id, or 0 when it references
// nothing.
func (s *SQLiteStore) resolveRef(ctx context.Context, ref NodeRef) (int64, error) {
	if ref.byID {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, ref.id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("resolving node %d: %w", ref.id, err)
		}
		return ref.id, nil
	}
	n, err := getNodeByLabel(ctx, s.db, ref.label, ref.typ)
	if err != nil || n == nil {
		return 0, err
	}
	return n.ID, nil
}

func (s *SQLiteStore) Neighbors(ctx context.Context, ref NodeRef, depth, limit int) ([]Node, error) {
	normalizeBounds(&depth, &limit)

	start, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if start == 0 {
		return []Node{}, nil
	}

	ids, err := collectNeighbors(ctx, start, depth, limit, s.expand)
	if err != nil {
		return nil, err
	}
	return s.fetchNodes(ctx, ids)
}

func (s *SQLiteStore) Path(ctx context.Context, from, to NodeRef, maxDepth int) ([]Node, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	src, err := s.resolveRef(ctx, from)
	if err != nil {
		return nil, err
	}
	dst, err := s.resolveRef(ctx, to)
	if err != nil {
		return nil, err
	}
	if src == 0 || dst == 0 {
		return []Node{}, nil
	}

	ids, err := shortestPath(ctx, src, dst, maxDepth, s.expand)
	if err != nil {
		return nil, err
	}
	return s.fetchNodes(ctx, ids)
}

func (s *SQLiteStore) fetchNodes(ctx context.Context, ids []int64) ([]Node, error) {
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, err := getNode(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes, nil
}

func (s *SQLiteStore) ImportFromNotes(ctx context.Context, records []SourceRecord) (Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if err := importRecord(ctx, tx, rec); err != nil {
			return Stats{}, fmt.Errorf("importing note %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("committing import: %w", err)
	}
	return s.Stats(ctx)
}

// importRecord materializes one source record: a note node, a key node with
// a has_key edge, and a tag node plus has_tag edge per tag. Every step is a
// dedup-on-conflict upsert, so re-importing the same record changes nothing.
func importRecord(ctx context.Context, q querier, rec SourceRecord) error {
	noteID, err := upsertNode(ctx, q, &Node{Label: noteLabel(rec), Type: TypeNote})
	if err != nil {
		return err
	}

	if rec.Key != "" {
		keyID, err := upsertNode(ctx, q, &Node{Label: keyLabel(rec.Key), Type: TypeKey})
		if err != nil {
			return err
		}
		if _, err := addEdge(ctx, q, &Edge{Src: noteID, Dst: keyID, Type: EdgeHasKey}); err != nil {
			return err
		}
	}

	for _, tag := range rec.Tags {
		if tag == "" {
			continue
		}
		tagID, err := upsertNode(ctx, q, &Node{Label: tagLabel(tag), Type: TypeTag})
		if err != nil {
			return err
		}
		if _, err := addEdge(ctx, q, &Edge{Src: noteID, Dst: tagID, Type: EdgeHasTag}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&st.Nodes); err != nil {
		return Stats{}, fmt.Errorf("counting nodes: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&st.Edges); err != nil {
		return Stats{}, fmt.Errorf("counting edges: %w", err)
	}
	return st, nil
}

func marshalProps(props map[string]any) (string, error) {
	if props == nil {
		return "", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("marshaling props: %w", err)
	}
	return string(data), nil
}

func unmarshalProps(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw.String), &props); err != nil {
		return nil, fmt.Errorf("unmarshaling props: %w", err)
	}
	return props, nil
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
