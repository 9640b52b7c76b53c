package graph

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// Every test here runs against both the SQLite and the in-memory backend;
// the two must be observationally identical.

type storeFactory func(t *testing.T) Store

func backendFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"sqlite": func(t *testing.T) Store {
			t.Helper()
			s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "graph.db"))
			if err != nil {
				t.Fatalf("opening sqlite store: %v", err)
			}
			t.Cleanup(func() { s.Close(context.Background()) })
			return s
		},
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func mustUpsert(t *testing.T, s Store, n *Node) int64 {
	t.Helper()
	id, err := s.UpsertNode(context.Background(), n)
	if err != nil {
		t.Fatalf("upserting node %q: %v", n.Label, err)
	}
	return id
}

func mustAddEdge(t *testing.T, s Store, src, dst int64, typ string) int64 {
	t.Helper()
	id, err := s.AddEdge(context.Background(), &Edge{Src: src, Dst: dst, Type: typ})
	if err != nil {
		t.Fatalf("adding edge %d->%d: %v", src, dst, err)
	}
	return id
}

func mustStats(t *testing.T, s Store) Stats {
	t.Helper()
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("reading stats: %v", err)
	}
	return st
}

func labels(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}

func TestUpsertNodeDedup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first := mustUpsert(t, s, &Node{Label: "key:sql", Type: "key"})
		second := mustUpsert(t, s, &Node{Label: "key:sql", Type: "key", Props: map[string]any{"seen": true}})

		if first != second {
			t.Errorf("dedup returned different ids: %d vs %d", first, second)
		}
		if st := mustStats(t, s); st.Nodes != 1 {
			t.Errorf("want 1 node after dedup, got %d", st.Nodes)
		}

		// The dedup call merged its props into the existing node.
		n, err := s.GetNodeByLabel(ctx, "key:sql", "key")
		if err != nil {
			t.Fatalf("getting node: %v", err)
		}
		if n == nil {
			t.Fatal("node missing after upsert")
		}
		if v, ok := n.Props["seen"].(bool); !ok || !v {
			t.Errorf("props not merged, got %v", n.Props)
		}
	})
}

func TestUpsertNodeEmptyTypeIsDistinct(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		untyped := mustUpsert(t, s, &Node{Label: "shared"})
		typed := mustUpsert(t, s, &Node{Label: "shared", Type: "tag"})

		if untyped == typed {
			t.Error("empty type deduped against non-empty type")
		}
		if st := mustStats(t, s); st.Nodes != 2 {
			t.Errorf("want 2 nodes, got %d", st.Nodes)
		}
	})
}

func TestUpsertNodeByID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		id := mustUpsert(t, s, &Node{Label: "before", Type: "tag"})

		// An id-qualified call may rewrite the uniqueness key.
		updated, err := s.UpsertNode(ctx, &Node{ID: id, Label: "after", Type: "tag"})
		if err != nil {
			t.Fatalf("updating node by id: %v", err)
		}
		if updated != id {
			t.Errorf("update changed id: %d -> %d", id, updated)
		}

		if n, _ := s.GetNodeByLabel(ctx, "before", "tag"); n != nil {
			t.Error("old label still resolves after rewrite")
		}
		n, err := s.GetNodeByLabel(ctx, "after", "tag")
		if err != nil {
			t.Fatalf("getting rewritten node: %v", err)
		}
		if n == nil || n.ID != id {
			t.Fatalf("rewritten node not found under new label, got %+v", n)
		}
	})
}

func TestUpsertNodeStaleID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.UpsertNode(context.Background(), &Node{ID: 9999, Label: "ghost", Type: "tag"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("want ErrNotFound for stale id, got %v", err)
		}
	})
}

func TestAddEdgeDedup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		a := mustUpsert(t, s, &Node{Label: "a", Type: "note"})
		b := mustUpsert(t, s, &Node{Label: "b", Type: "tag"})

		first := mustAddEdge(t, s, a, b, EdgeHasTag)
		second := mustAddEdge(t, s, a, b, EdgeHasTag)

		if first != second {
			t.Errorf("duplicate edge returned different ids: %d vs %d", first, second)
		}
		if st := mustStats(t, s); st.Edges != 1 {
			t.Errorf("want 1 edge after dedup, got %d", st.Edges)
		}

		// A different type is a different edge.
		mustAddEdge(t, s, a, b, "references")
		if st := mustStats(t, s); st.Edges != 2 {
			t.Errorf("want 2 edges after distinct type, got %d", st.Edges)
		}
	})
}

func TestAddEdgeMissingEndpoint(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		a := mustUpsert(t, s, &Node{Label: "a", Type: "note"})

		_, err := s.AddEdge(context.Background(), &Edge{Src: a, Dst: 9999, Type: EdgeHasTag})
		var cerr *ConstraintError
		if !errors.As(err, &cerr) {
			t.Fatalf("want ConstraintError for missing endpoint, got %v", err)
		}

		_, err = s.AddEdge(context.Background(), &Edge{Src: 9999, Dst: a, Type: EdgeHasTag})
		if !errors.As(err, &cerr) {
			t.Fatalf("want ConstraintError for missing src, got %v", err)
		}
	})
}

func TestGetNodeByLabelMiss(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		n, err := s.GetNodeByLabel(context.Background(), "nope", "")
		if err != nil {
			t.Fatalf("lookup miss must not error, got %v", err)
		}
		if n != nil {
			t.Errorf("lookup miss returned node %+v", n)
		}
	})
}

// buildChain creates a -> b -> c -> d and returns the ids in order.
func buildChain(t *testing.T, s Store) []int64 {
	t.Helper()
	ids := make([]int64, 0, 4)
	for _, label := range []string{"a", "b", "c", "d"} {
		ids = append(ids, mustUpsert(t, s, &Node{Label: label, Type: "note"}))
	}
	for i := 0; i < len(ids)-1; i++ {
		mustAddEdge(t, s, ids[i], ids[i+1], "next")
	}
	return ids
}

func TestNeighborsDepthBound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		buildChain(t, s)

		tests := []struct {
			depth int
			want  []string
		}{
			{1, []string{"b"}},
			{2, []string{"b", "c"}},
			{3, []string{"b", "c", "d"}},
		}
		for _, tt := range tests {
			got, err := s.Neighbors(ctx, ByLabel("a", "note"), tt.depth, 0)
			if err != nil {
				t.Fatalf("neighbors depth %d: %v", tt.depth, err)
			}
			if gl := labels(got); !equalStrings(gl, tt.want) {
				t.Errorf("depth %d: want %v, got %v", tt.depth, tt.want, gl)
			}
		}
	})
}

func TestNeighborsOrderAndLimit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		hub := mustUpsert(t, s, &Node{Label: "hub", Type: "note"})
		for _, label := range []string{"n1", "n2", "n3", "n4", "n5"} {
			id := mustUpsert(t, s, &Node{Label: label, Type: "tag"})
			mustAddEdge(t, s, hub, id, EdgeHasTag)
		}

		// First-discovered order is edge insertion order, and the limit cuts
		// the walk mid-round.
		got, err := s.Neighbors(ctx, ByID(hub), 1, 3)
		if err != nil {
			t.Fatalf("neighbors: %v", err)
		}
		want := []string{"n1", "n2", "n3"}
		if gl := labels(got); !equalStrings(gl, want) {
			t.Errorf("want %v, got %v", want, gl)
		}
	})
}

func TestNeighborsExcludesStartAndMissingStart(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids := buildChain(t, s)

		// A cycle back to the start must not re-emit it.
		mustAddEdge(t, s, ids[3], ids[0], "next")
		got, err := s.Neighbors(ctx, ByLabel("a", "note"), 10, 0)
		if err != nil {
			t.Fatalf("neighbors: %v", err)
		}
		for _, n := range got {
			if n.Label == "a" {
				t.Error("start node appeared in its own neighbors")
			}
		}

		// Unresolvable start degrades to empty, not an error.
		got, err = s.Neighbors(ctx, ByLabel("missing", ""), 1, 0)
		if err != nil {
			t.Fatalf("neighbors of missing start: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("want empty result for missing start, got %v", labels(got))
		}
	})
}

func TestPathShortest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids := buildChain(t, s)

		// A longer parallel route must not win: add a -> x -> y -> z -> d.
		prev := ids[0]
		for _, label := range []string{"x", "y", "z"} {
			id := mustUpsert(t, s, &Node{Label: label, Type: "note"})
			mustAddEdge(t, s, prev, id, "next")
			prev = id
		}
		mustAddEdge(t, s, prev, ids[3], "next")

		got, err := s.Path(ctx, ByLabel("a", "note"), ByLabel("d", "note"), 4)
		if err != nil {
			t.Fatalf("path: %v", err)
		}
		want := []string{"a", "b", "c", "d"}
		if gl := labels(got); !equalStrings(gl, want) {
			t.Errorf("want shortest route %v, got %v", want, gl)
		}
	})
}

func TestPathBoundAndMisses(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids := buildChain(t, s)

		// a -> d is three hops; maxDepth=1 gives two expansion rounds, not
		// enough to reach it.
		got, err := s.Path(ctx, ByID(ids[0]), ByID(ids[3]), 1)
		if err != nil {
			t.Fatalf("path: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("want empty path outside bound, got %v", labels(got))
		}

		// No route at all: d has no outgoing edges toward a.
		got, err = s.Path(ctx, ByID(ids[3]), ByID(ids[0]), 4)
		if err != nil {
			t.Fatalf("path: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("want empty path when unreachable, got %v", labels(got))
		}

		// Unresolvable endpoints degrade to empty.
		got, err = s.Path(ctx, ByLabel("missing", ""), ByID(ids[0]), 4)
		if err != nil {
			t.Fatalf("path with missing endpoint: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("want empty path for missing endpoint, got %v", labels(got))
		}

		// From a node to itself.
		got, err = s.Path(ctx, ByID(ids[0]), ByID(ids[0]), 4)
		if err != nil {
			t.Fatalf("path to self: %v", err)
		}
		if gl := labels(got); !equalStrings(gl, []string{"a"}) {
			t.Errorf("want single-node path to self, got %v", gl)
		}
	})
}

func TestKeyTagScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		run := func() {
			a := mustUpsert(t, s, &Node{Label: "key:sql", Type: "key"})
			b := mustUpsert(t, s, &Node{Label: "tag:performance", Type: "tag"})
			mustAddEdge(t, s, a, b, EdgeHasTag)
		}
		run()

		got, err := s.Neighbors(ctx, ByLabel("key:sql", "key"), 1, 0)
		if err != nil {
			t.Fatalf("neighbors: %v", err)
		}
		if gl := labels(got); !equalStrings(gl, []string{"tag:performance"}) {
			t.Errorf("want [tag:performance], got %v", gl)
		}

		path, err := s.Path(ctx, ByLabel("key:sql", "key"), ByLabel("tag:performance", "tag"), 1)
		if err != nil {
			t.Fatalf("path: %v", err)
		}
		if gl := labels(path); !equalStrings(gl, []string{"key:sql", "tag:performance"}) {
			t.Errorf("want [key:sql tag:performance], got %v", gl)
		}

		// Re-running the same mutations leaves the totals untouched.
		run()
		if st := mustStats(t, s); st.Nodes != 2 || st.Edges != 1 {
			t.Errorf("want stats {2 1}, got %+v", st)
		}
	})
}

func TestImportFromNotes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		records := []SourceRecord{{
			ID:        1,
			CreatedAt: "2025-01-01T00:00:00Z",
			Key:       "javascript.tips",
			Tags:      []string{"javascript", "es6"},
		}}

		st, err := s.ImportFromNotes(ctx, records)
		if err != nil {
			t.Fatalf("importing notes: %v", err)
		}
		if st.Nodes != 4 || st.Edges != 3 {
			t.Errorf("want stats {4 3}, got %+v", st)
		}

		// Import is idempotent; the returned totals are cumulative, so a
		// second identical call reports the same figures.
		st, err = s.ImportFromNotes(ctx, records)
		if err != nil {
			t.Fatalf("re-importing notes: %v", err)
		}
		if st.Nodes != 4 || st.Edges != 3 {
			t.Errorf("want unchanged stats {4 3}, got %+v", st)
		}

		// The note node carries the day-granular label and links out to its
		// key and tags.
		got, err := s.Neighbors(ctx, ByLabel("note:1:2025-01-01", TypeNote), 1, 0)
		if err != nil {
			t.Fatalf("neighbors: %v", err)
		}
		want := []string{"key:javascript.tips", "tag:javascript", "tag:es6"}
		if gl := labels(got); !equalStrings(gl, want) {
			t.Errorf("want %v, got %v", want, gl)
		}
	})
}

func TestImportSharedTags(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		records := []SourceRecord{
			{ID: 1, CreatedAt: "2025-02-01T10:00:00Z", Key: "go.concurrency", Tags: []string{"go"}},
			{ID: 2, CreatedAt: "2025-02-02T11:00:00Z", Key: "go.errors", Tags: []string{"go"}},
		}

		st, err := s.ImportFromNotes(ctx, records)
		if err != nil {
			t.Fatalf("importing notes: %v", err)
		}
		// 2 notes + 2 keys + 1 shared tag; 2 has_key + 2 has_tag.
		if st.Nodes != 5 || st.Edges != 4 {
			t.Errorf("want stats {5 4}, got %+v", st)
		}

		// Edges point note -> tag only, so the shared tag node is a neighbor
		// of both notes.
		for _, label := range []string{"note:1:2025-02-01", "note:2:2025-02-02"} {
			got, err := s.Neighbors(ctx, ByLabel(label, TypeNote), 1, 0)
			if err != nil {
				t.Fatalf("neighbors of %s: %v", label, err)
			}
			found := false
			for _, n := range got {
				if n.Label == "tag:go" {
					found = true
				}
			}
			if !found {
				t.Errorf("%s missing tag:go neighbor, got %v", label, labels(got))
			}
		}
	})
}

func TestBackendEquivalence(t *testing.T) {
	ctx := context.Background()

	sqlite := backendFactories()["sqlite"](t)
	memory := backendFactories()["memory"](t)

	replay := func(s Store) {
		t.Helper()
		_, err := s.ImportFromNotes(ctx, []SourceRecord{
			{ID: 1, CreatedAt: "2025-03-01T08:00:00Z", Key: "react.hooks", Tags: []string{"react", "frontend"}},
			{ID: 2, CreatedAt: "2025-03-02T09:00:00Z", Key: "react.state", Tags: []string{"react"}},
			{ID: 3, CreatedAt: "2025-03-03T10:00:00Z", Key: "sql.tuning", Tags: []string{"performance"}},
		})
		if err != nil {
			t.Fatalf("replaying import: %v", err)
		}
		a := mustUpsert(t, s, &Node{Label: "key:react.hooks", Type: "key", Props: map[string]any{"weight": 2.0}})
		b := mustUpsert(t, s, &Node{Label: "tag:performance", Type: "tag"})
		mustAddEdge(t, s, a, b, "related")
	}
	replay(sqlite)
	replay(memory)

	sqliteStats := mustStats(t, sqlite)
	memoryStats := mustStats(t, memory)
	if sqliteStats != memoryStats {
		t.Errorf("stats diverge: sqlite %+v, memory %+v", sqliteStats, memoryStats)
	}

	// Neighbor sets and shortest-path lengths must agree for every probe.
	probes := []NodeRef{
		ByLabel("note:1:2025-03-01", TypeNote),
		ByLabel("key:react.hooks", TypeKey),
		ByLabel("tag:react", TypeTag),
	}
	for _, probe := range probes {
		for _, depth := range []int{1, 2, 3} {
			sn, err := sqlite.Neighbors(ctx, probe, depth, 0)
			if err != nil {
				t.Fatalf("sqlite neighbors %v: %v", probe, err)
			}
			mn, err := memory.Neighbors(ctx, probe, depth, 0)
			if err != nil {
				t.Fatalf("memory neighbors %v: %v", probe, err)
			}
			if !equalLabelSets(labels(sn), labels(mn)) {
				t.Errorf("neighbors(%v, depth=%d) diverge: sqlite %v, memory %v", probe, depth, labels(sn), labels(mn))
			}
		}
	}

	from := ByLabel("note:1:2025-03-01", TypeNote)
	to := ByLabel("tag:performance", TypeTag)
	sp, err := sqlite.Path(ctx, from, to, 4)
	if err != nil {
		t.Fatalf("sqlite path: %v", err)
	}
	mp, err := memory.Path(ctx, from, to, 4)
	if err != nil {
		t.Fatalf("memory path: %v", err)
	}
	if len(sp) != len(mp) {
		t.Errorf("path lengths diverge: sqlite %v, memory %v", labels(sp), labels(mp))
	}
}

func TestSQLiteSchemaSetupIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")

	s, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	mustUpsert(t, s, &Node{Label: "persisted", Type: "note"})
	if err := s.Close(ctx); err != nil {
		t.Fatalf("closing store: %v", err)
	}

	// Reopening runs schema setup again; it must be a no-op, not an error,
	// and the data must survive.
	s, err = NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer s.Close(ctx)

	n, err := s.GetNodeByLabel(ctx, "persisted", "note")
	if err != nil {
		t.Fatalf("getting persisted node: %v", err)
	}
	if n == nil {
		t.Fatal("node lost across reopen")
	}
}

func TestNodeSnapshotIsolation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		mustUpsert(t, s, &Node{Label: "iso", Type: "note", Props: map[string]any{"k": "v"}})
		first, err := s.GetNodeByLabel(ctx, "iso", "note")
		if err != nil || first == nil {
			t.Fatalf("getting node: %v", err)
		}

		// Mutating the returned snapshot must not leak into storage.
		first.Props["k"] = "mutated"

		second, err := s.GetNodeByLabel(ctx, "iso", "note")
		if err != nil || second == nil {
			t.Fatalf("re-getting node: %v", err)
		}
		if second.Props["k"] != "v" {
			t.Errorf("snapshot mutation leaked into storage: %v", second.Props)
		}
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalLabelSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		set[s]--
		if set[s] < 0 {
			return false
		}
	}
	return true
}
