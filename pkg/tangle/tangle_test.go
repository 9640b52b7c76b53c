package tangle

import (
	"bytes"
	"context"
	"testing"

	"github.com/tanglehq/tangle/internal/backup"
	"github.com/tanglehq/tangle/internal/config"
)

func openTestTangle(t *testing.T) *Tangle {
	t.Helper()
	ctx := context.Background()

	tg, err := Open(ctx, config.Config{
		DataDir:      t.TempDir(),
		GraphBackend: config.BackendSQLite,
		Port:         "0",
	})
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	t.Cleanup(func() { tg.Close(context.Background()) })
	return tg
}

func TestOpenRejectsBadBackend(t *testing.T) {
	_, err := Open(context.Background(), config.Config{
		DataDir:      t.TempDir(),
		GraphBackend: "etcd",
	})
	if err == nil {
		t.Fatal("unknown backend accepted")
	}
}

func TestNoteAndGraphRoundTrip(t *testing.T) {
	ctx := context.Background()
	tg := openTestTangle(t)

	n, err := tg.CreateNote(ctx, "Benchmarks lie without warm caches", "perf.bench", []string{"performance"})
	if err != nil {
		t.Fatalf("creating note: %v", err)
	}
	if n.ID == 0 {
		t.Fatal("note id not assigned")
	}

	st, err := tg.BuildGraph(ctx)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	if st.Nodes != 3 || st.Edges != 2 {
		t.Errorf("unexpected totals: %+v", st)
	}

	day := n.Created.UTC().Format("2006-01-02")
	neighbors, err := tg.Neighbors(ctx, "note:1:"+day, "note", 0, 0)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(neighbors) != 2 {
		t.Errorf("want key and tag neighbors, got %+v", neighbors)
	}

	hits, err := tg.SearchNotes(ctx, "benchmarks", 10)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("want 1 hit, got %d", len(hits))
	}
}

func TestAnalyzeNote(t *testing.T) {
	ctx := context.Background()
	tg := openTestTangle(t)

	n, err := tg.CreateNote(ctx, "great release, great tooling, reach me at dev@example.com", "", nil)
	if err != nil {
		t.Fatalf("creating note: %v", err)
	}

	report, err := tg.AnalyzeNote(ctx, n.ID, 3)
	if err != nil {
		t.Fatalf("analyzing: %v", err)
	}
	if report.Sentiment.Label != "positive" {
		t.Errorf("unexpected sentiment: %+v", report.Sentiment)
	}
	if len(report.Entities) == 0 {
		t.Error("email entity not found")
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := openTestTangle(t)

	if _, err := src.CreateNote(ctx, "portable knowledge", "meta.backup", nil); err != nil {
		t.Fatalf("creating note: %v", err)
	}

	var buf bytes.Buffer
	manifest, err := src.Export(ctx, &buf)
	if err != nil {
		t.Fatalf("exporting: %v", err)
	}
	if manifest.Notes != 1 {
		t.Errorf("unexpected manifest: %+v", manifest)
	}

	dst := openTestTangle(t)
	result, err := dst.Import(ctx, &buf, backup.ImportOptions{RebuildGraph: true})
	if err != nil {
		t.Fatalf("importing: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	st, err := dst.GraphStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Nodes != 2 || st.Edges != 1 {
		t.Errorf("graph not rebuilt: %+v", st)
	}
}
