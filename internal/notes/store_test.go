package notes

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("opening note store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, &Note{
		Content: "Use prepared statements for hot queries",
		Key:     "sql.performance",
		Tags:    []string{"sql", "performance"},
	})
	if err != nil {
		t.Fatalf("creating note: %v", err)
	}

	n, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("getting note: %v", err)
	}
	if n.Key != "sql.performance" {
		t.Errorf("wrong key: got %s", n.Key)
	}
	if len(n.Tags) != 2 || n.Tags[0] != "sql" {
		t.Errorf("wrong tags: got %v", n.Tags)
	}
	if n.Created.IsZero() || n.Updated.IsZero() {
		t.Error("timestamps not assigned")
	}
}

func TestCreateRejectsEmptyContent(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Create(context.Background(), &Note{Content: "   "}); err == nil {
		t.Error("blank content accepted")
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, &Note{Content: "draft", Key: "misc"})
	if err != nil {
		t.Fatalf("creating note: %v", err)
	}

	t.Run("Update", func(t *testing.T) {
		err := s.Update(ctx, &Note{ID: id, Content: "final", Key: "misc.final", Tags: []string{"done"}})
		if err != nil {
			t.Fatalf("updating note: %v", err)
		}
		n, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("getting updated note: %v", err)
		}
		if n.Content != "final" || n.Key != "misc.final" {
			t.Errorf("update not applied: %+v", n)
		}
	})

	t.Run("Update missing", func(t *testing.T) {
		err := s.Update(ctx, &Note{ID: 9999, Content: "x"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(ctx, id); err != nil {
			t.Fatalf("deleting note: %v", err)
		}
		if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("note still present after delete: %v", err)
		}
		if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("double delete: want ErrNotFound, got %v", err)
		}
	})
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"oldest", "middle", "newest"} {
		_, err := s.Create(ctx, &Note{Content: content, Created: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("creating note: %v", err)
		}
	}

	got, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("listing notes: %v", err)
	}
	if len(got) != 2 || got[0].Content != "newest" || got[1].Content != "middle" {
		t.Errorf("wrong list order/limit: %+v", got)
	}
}

func TestSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := []Note{
		{Content: "Indexes speed up lookups", Key: "sql.indexes", Tags: []string{"sql"}},
		{Content: "Goroutines are cheap", Key: "go.concurrency", Tags: []string{"go"}},
		{Content: "EXPLAIN shows the query plan", Key: "sql.tuning", Tags: []string{"sql", "performance"}},
	}
	for i := range seed {
		if _, err := s.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding note: %v", err)
		}
	}

	t.Run("content match", func(t *testing.T) {
		got, err := s.Search(ctx, "goroutines", 10)
		if err != nil {
			t.Fatalf("searching: %v", err)
		}
		if len(got) != 1 || got[0].Key != "go.concurrency" {
			t.Errorf("want the goroutine note, got %+v", got)
		}
	})

	t.Run("tag match", func(t *testing.T) {
		got, err := s.Search(ctx, "performance", 10)
		if err != nil {
			t.Fatalf("searching: %v", err)
		}
		if len(got) != 1 || got[0].Key != "sql.tuning" {
			t.Errorf("want the tuning note, got %+v", got)
		}
	})

	t.Run("no hits", func(t *testing.T) {
		got, err := s.Search(ctx, "kubernetes", 10)
		if err != nil {
			t.Fatalf("searching: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("want no hits, got %+v", got)
		}
	})
}

func TestSourceRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 5, 2, 9, 30, 0, 0, time.UTC)
	id, err := s.Create(ctx, &Note{
		Content: "Hooks replace lifecycle methods",
		Key:     "react.hooks",
		Tags:    []string{"react", "frontend"},
		Created: created,
	})
	if err != nil {
		t.Fatalf("creating note: %v", err)
	}

	records, err := s.SourceRecords(ctx)
	if err != nil {
		t.Fatalf("reading source records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("want 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.ID != id || rec.Key != "react.hooks" || len(rec.Tags) != 2 {
		t.Errorf("wrong record: %+v", rec)
	}
	if rec.CreatedAt[:10] != "2025-05-02" {
		t.Errorf("wrong creation date: %s", rec.CreatedAt)
	}
}

func TestTagCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := []Note{
		{Content: "one", Tags: []string{"go", "performance"}},
		{Content: "two", Tags: []string{"go"}},
		{Content: "three", Tags: []string{"sql"}},
		{Content: "four"},
	}
	for i := range seed {
		if _, err := s.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("creating note: %v", err)
		}
	}

	counts, err := s.TagCounts(ctx)
	if err != nil {
		t.Fatalf("counting tags: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("want 3 tags, got %+v", counts)
	}
	if counts[0].Tag != "go" || counts[0].Count != 2 {
		t.Errorf("most used tag wrong: %+v", counts[0])
	}
	// Remaining single-use tags come back alphabetically.
	if counts[1].Tag != "performance" || counts[2].Tag != "sql" {
		t.Errorf("tie-break order wrong: %+v", counts)
	}
}
