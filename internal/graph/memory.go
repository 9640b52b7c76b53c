package graph

import (
	"context"
	"fmt"
)

// MemoryStore implements Store entirely in process memory. It is the
// fallback backend for deployments without a writable data directory and the
// workhorse for tests; it reproduces every client-visible behavior of the
// SQLite backend, including dedup semantics and traversal ordering.
//
// MemoryStore is not safe for concurrent use. Callers that share one across
// goroutines must serialize access themselves.
type MemoryStore struct {
	nodes      []Node
	edges      []Edge
	byID       map[int64]int      // node id -> index into nodes
	byLabel    map[labelKey]int64 // (label, type) -> node id
	byEdge     map[edgeKey]int64  // (src, dst, type) -> edge id
	out        map[int64][]int64  // adjacency, dst ids in insertion order
	nextNodeID int64
	nextEdgeID int64
}

type labelKey struct {
	label string
	typ   string
}

type edgeKey struct {
	src int64
	dst int64
	typ string
}

// NewMemory creates an empty in-memory graph store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]int),
		byLabel: make(map[labelKey]int64),
		byEdge:  make(map[edgeKey]int64),
		out:     make(map[int64][]int64),
	}
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) UpsertNode(ctx context.Context, n *Node) (int64, error) {
	if n.Label == "" && n.ID == 0 {
		return 0, fmt.Errorf("node label must not be empty")
	}

	if n.ID != 0 {
		idx, ok := s.byID[n.ID]
		if !ok {
			return 0, fmt.Errorf("updating node %d: %w", n.ID, ErrNotFound)
		}
		existing := &s.nodes[idx]
		newKey := labelKey{n.Label, n.Type}
		if other, taken := s.byLabel[newKey]; taken && other != n.ID {
			return 0, &ConstraintError{
				Op:  "upsert node",
				Err: fmt.Errorf("label %q type %q already used by node %d", n.Label, n.Type, other),
			}
		}
		delete(s.byLabel, labelKey{existing.Label, existing.Type})
		existing.Label = n.Label
		existing.Type = n.Type
		existing.Props = cloneProps(n.Props)
		s.byLabel[newKey] = n.ID
		return n.ID, nil
	}

	if id, ok := s.byLabel[labelKey{n.Label, n.Type}]; ok {
		existing := &s.nodes[s.byID[id]]
		if len(n.Props) > 0 {
			existing.Props = mergeProps(existing.Props, cloneProps(n.Props))
		}
		return id, nil
	}

	s.nextNodeID++
	id := s.nextNodeID
	s.nodes = append(s.nodes, Node{ID: id, Label: n.Label, Type: n.Type, Props: cloneProps(n.Props)})
	s.byID[id] = len(s.nodes) - 1
	s.byLabel[labelKey{n.Label, n.Type}] = id
	return id, nil
}

func (s *MemoryStore) GetNodeByLabel(ctx context.Context, label, typ string) (*Node, error) {
	id, ok := s.byLabel[labelKey{label, typ}]
	if !ok {
		return nil, nil
	}
	return s.snapshot(id), nil
}

// snapshot returns a value copy so callers never hold references into
// storage.
func (s *MemoryStore) snapshot(id int64) *Node {
	idx, ok := s.byID[id]
	if !ok {
		return nil
	}
	n := s.nodes[idx]
	n.Props = cloneProps(n.Props)
	return &n
}

func (s *MemoryStore) AddEdge(ctx context.Context, e *Edge) (int64, error) {
	for _, end := range []struct {
		name string
		id   int64
	}{{"src", e.Src}, {"dst", e.Dst}} {
		if _, ok := s.byID[end.id]; !ok {
			return 0, &ConstraintError{
				Op:  "add edge",
				Err: fmt.Errorf("%s node %d does not exist", end.name, end.id),
			}
		}
	}

	key := edgeKey{e.Src, e.Dst, e.Type}
	if id, ok := s.byEdge[key]; ok {
		return id, nil
	}

	s.nextEdgeID++
	id := s.nextEdgeID
	s.edges = append(s.edges, Edge{ID: id, Src: e.Src, Dst: e.Dst, Type: e.Type, Props: cloneProps(e.Props)})
	s.byEdge[key] = id
	s.out[e.Src] = append(s.out[e.Src], e.Dst)
	return id, nil
}

func (s *MemoryStore) expand(ctx context.Context, id int64) ([]int64, error) {
	return s.out[id], nil
}

func (s *MemoryStore) resolveRef(ref NodeRef) int64 {
	if ref.byID {
		if _, ok := s.byID[ref.id]; !ok {
			return 0
		}
		return ref.id
	}
	return s.byLabel[labelKey{ref.label, ref.typ}]
}

func (s *MemoryStore) Neighbors(ctx context.Context, ref NodeRef, depth, limit int) ([]Node, error) {
	normalizeBounds(&depth, &limit)

	start := s.resolveRef(ref)
	if start == 0 {
		return []Node{}, nil
	}

	ids, err := collectNeighbors(ctx, start, depth, limit, s.expand)
	if err != nil {
		return nil, err
	}
	return s.fetchNodes(ids), nil
}

func (s *MemoryStore) Path(ctx context.Context, from, to NodeRef, maxDepth int) ([]Node, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	src := s.resolveRef(from)
	dst := s.resolveRef(to)
	if src == 0 || dst == 0 {
		return []Node{}, nil
	}

	ids, err := shortestPath(ctx, src, dst, maxDepth, s.expand)
	if err != nil {
		return nil, err
	}
	return s.fetchNodes(ids), nil
}

func (s *MemoryStore) fetchNodes(ids []int64) []Node {
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n := s.snapshot(id); n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes
}

func (s *MemoryStore) ImportFromNotes(ctx context.Context, records []SourceRecord) (Stats, error) {
	for _, rec := range records {
		if err := s.importRecord(ctx, rec); err != nil {
			return Stats{}, fmt.Errorf("importing note %d: %w", rec.ID, err)
		}
	}
	return s.Stats(ctx)
}

func (s *MemoryStore) importRecord(ctx context.Context, rec SourceRecord) error {
	noteID, err := s.UpsertNode(ctx, &Node{Label: noteLabel(rec), Type: TypeNote})
	if err != nil {
		return err
	}

	if rec.Key != "" {
		keyID, err := s.UpsertNode(ctx, &Node{Label: keyLabel(rec.Key), Type: TypeKey})
		if err != nil {
			return err
		}
		if _, err := s.AddEdge(ctx, &Edge{Src: noteID, Dst: keyID, Type: EdgeHasKey}); err != nil {
			return err
		}
	}

	for _, tag := range rec.Tags {
		if tag == "" {
			continue
		}
		tagID, err := s.UpsertNode(ctx, &Node{Label: tagLabel(tag), Type: TypeTag})
		if err != nil {
			return err
		}
		if _, err := s.AddEdge(ctx, &Edge{Src: noteID, Dst: tagID, Type: EdgeHasTag}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	return Stats{Nodes: int64(len(s.nodes)), Edges: int64(len(s.edges))}, nil
}
