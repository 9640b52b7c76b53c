// Package graph provides the property-graph layer of the knowledge index.
//
// The graph materializes relationships between notes, their keys, and their
// tags (note -> key, note -> tag) and answers neighbor-expansion and
// shortest-path queries over them. Two interchangeable backends implement the
// same Store contract: a persistent SQLite backend and a pure in-memory
// backend. A Neo4j backend is available for deployments that already run one.
// Callers pick the backend at startup; nothing in this package depends on
// which one is active.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by UpsertNode when an explicit node id does not
// resolve to an existing node. Read operations never return it; unresolved
// lookups produce empty results instead.
var ErrNotFound = errors.New("node not found")

// ConstraintError reports a uniqueness or referential violation that the
// dedup-on-conflict paths did not absorb, such as an edge referencing a
// nonexistent endpoint.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Node is a labeled vertex. The pair (Label, Type) is unique across the
// store; an empty Type is a distinct category of its own, not "no type".
// Props are opaque to the store: stored, returned, never indexed.
type Node struct {
	ID    int64          `json:"id"`
	Label string         `json:"label"`
	Type  string         `json:"type,omitempty"`
	Props map[string]any `json:"props,omitempty"`
}

// Edge is a directed, typed relationship between two existing node ids.
// The triple (Src, Dst, Type) is unique; inserting it twice returns the
// existing edge's id.
type Edge struct {
	ID    int64          `json:"id"`
	Src   int64          `json:"src"`
	Dst   int64          `json:"dst"`
	Type  string         `json:"type,omitempty"`
	Props map[string]any `json:"props,omitempty"`
}

// Stats holds total node and edge counts.
type Stats struct {
	Nodes int64 `json:"nodes"`
	Edges int64 `json:"edges"`
}

// SourceRecord is the read-only note shape consumed by ImportFromNotes.
// Only the first 10 characters of CreatedAt are used, coarsening note labels
// to day granularity.
type SourceRecord struct {
	ID        int64    `json:"id"`
	CreatedAt string   `json:"created_at"`
	Key       string   `json:"key"`
	Tags      []string `json:"tags"`
}

// NodeRef identifies a node either by id or by its (label, type) uniqueness
// key. The zero value refers to nothing and resolves to an empty result.
type NodeRef struct {
	id    int64
	label string
	typ   string
	byID  bool
}

// ByID references a node by its backend-assigned id.
func ByID(id int64) NodeRef {
	return NodeRef{id: id, byID: true}
}

// ByLabel references a node by its (label, type) pair. An omitted type is the
// empty-string category.
func ByLabel(label, typ string) NodeRef {
	return NodeRef{label: label, typ: typ}
}

func (r NodeRef) String() string {
	if r.byID {
		return fmt.Sprintf("#%d", r.id)
	}
	return fmt.Sprintf("%s/%s", r.label, r.typ)
}

// Default traversal bounds, applied when a caller passes a non-positive
// depth, limit, or maxDepth.
const (
	DefaultDepth    = 1
	DefaultLimit    = 50
	DefaultMaxDepth = 4
)

// Store is the contract shared by every backend. Implementations must be
// observationally identical: any sequence of calls replayed against two
// backends yields equivalent results.
//
// Mutating calls are atomic individually; there is no multi-call transaction
// surface. Backends add no locking of their own beyond what their storage
// engine provides, and the in-memory backend is not safe for concurrent use.
type Store interface {
	// UpsertNode inserts or updates a node and returns its id. With n.ID set
	// it rewrites the existing node, failing with ErrNotFound if the id is
	// stale. Without an id it dedups on (label, type): an existing node keeps
	// its label and type, has the given props merged in, and its id is
	// returned.
	UpsertNode(ctx context.Context, n *Node) (int64, error)

	// GetNodeByLabel looks a node up by its uniqueness key. A miss returns
	// (nil, nil), not an error.
	GetNodeByLabel(ctx context.Context, label, typ string) (*Node, error)

	// AddEdge inserts an edge, or returns the existing edge's id when the
	// (src, dst, type) triple is already present. Both endpoints must exist;
	// a missing endpoint is a ConstraintError.
	AddEdge(ctx context.Context, e *Edge) (int64, error)

	// Neighbors returns up to limit distinct nodes reachable from ref over
	// outgoing edges within depth hops, in first-discovered breadth-first
	// order, excluding the start node. An unresolvable ref yields an empty
	// slice.
	Neighbors(ctx context.Context, ref NodeRef, depth, limit int) ([]Node, error)

	// Path returns the first shortest path (fewest hops) from one node to the
	// other, inclusive of both endpoints, discovered within maxDepth+1 rounds
	// of expansion. Unresolvable endpoints or no path within the bound yield
	// an empty slice.
	Path(ctx context.Context, from, to NodeRef, maxDepth int) ([]Node, error)

	// ImportFromNotes idempotently materializes one note node, one key node,
	// a has_key edge, and a tag node plus has_tag edge per tag, for every
	// record. The returned Stats are cumulative post-import totals, not a
	// delta of what this call created.
	ImportFromNotes(ctx context.Context, records []SourceRecord) (Stats, error)

	// Stats returns total node and edge counts.
	Stats(ctx context.Context) (Stats, error)

	Close(ctx context.Context) error
}

// Node label and type vocabulary written by ImportFromNotes.
const (
	TypeNote = "note"
	TypeKey  = "key"
	TypeTag  = "tag"

	EdgeHasKey = "has_key"
	EdgeHasTag = "has_tag"
)

// noteLabel coarsens a record to a day-granular label, e.g. "note:42:2025-08-01".
func noteLabel(rec SourceRecord) string {
	day := rec.CreatedAt
	if len(day) > 10 {
		day = day[:10]
	}
	return fmt.Sprintf("note:%d:%s", rec.ID, day)
}

func keyLabel(key string) string { return "key:" + key }
func tagLabel(tag string) string { return "tag:" + tag }

func mergeProps(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func normalizeBounds(depth, limit *int) {
	if *depth <= 0 {
		*depth = DefaultDepth
	}
	if *limit <= 0 {
		*limit = DefaultLimit
	}
}
