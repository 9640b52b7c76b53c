// Package tangle is the embeddable entry point for the knowledge index. It
// assembles the note store and the configured graph backend behind one
// handle, for use by the CLI, the daemon, and external programs.
package tangle

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tanglehq/tangle/internal/analysis"
	"github.com/tanglehq/tangle/internal/backup"
	"github.com/tanglehq/tangle/internal/config"
	"github.com/tanglehq/tangle/internal/graph"
	"github.com/tanglehq/tangle/internal/notes"
)

// Tangle bundles the note store and graph store for one data directory.
type Tangle struct {
	cfg   config.Config
	notes *notes.Store
	graph graph.Store
}

// Open initializes the stores described by cfg, creating the data directory
// when missing.
func Open(ctx context.Context, cfg config.Config) (*Tangle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	ns, err := notes.Open(ctx, cfg.NotesPath())
	if err != nil {
		return nil, fmt.Errorf("opening note store: %w", err)
	}

	g, err := openGraph(ctx, cfg)
	if err != nil {
		ns.Close()
		return nil, err
	}

	return &Tangle{cfg: cfg, notes: ns, graph: g}, nil
}

func openGraph(ctx context.Context, cfg config.Config) (graph.Store, error) {
	switch cfg.GraphBackend {
	case config.BackendMemory:
		return graph.NewMemory(), nil
	case config.BackendSQLite:
		return graph.NewSQLite(ctx, cfg.GraphPath())
	case config.BackendNeo4j:
		return graph.NewNeo4j(ctx, graph.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
	default:
		return nil, fmt.Errorf("unknown graph backend: %s", cfg.GraphBackend)
	}
}

// Close releases both stores.
func (t *Tangle) Close(ctx context.Context) error {
	gErr := t.graph.Close(ctx)
	nErr := t.notes.Close()
	if gErr != nil {
		return gErr
	}
	return nErr
}

// Config returns the configuration the handle was opened with.
func (t *Tangle) Config() config.Config { return t.cfg }

// Notes returns the note store.
func (t *Tangle) Notes() *notes.Store { return t.notes }

// Graph returns the graph store.
func (t *Tangle) Graph() graph.Store { return t.graph }

// CreateNote stores a note and returns it with its assigned id.
func (t *Tangle) CreateNote(ctx context.Context, content, key string, tags []string) (*notes.Note, error) {
	n := &notes.Note{Content: content, Key: key, Tags: tags}
	if _, err := t.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	return t.notes.Get(ctx, n.ID)
}

// GetNote retrieves a note by id.
func (t *Tangle) GetNote(ctx context.Context, id int64) (*notes.Note, error) {
	return t.notes.Get(ctx, id)
}

// DeleteNote removes a note by id.
func (t *Tangle) DeleteNote(ctx context.Context, id int64) error {
	return t.notes.Delete(ctx, id)
}

// ListNotes returns notes newest first.
func (t *Tangle) ListNotes(ctx context.Context, limit, offset int) ([]notes.Note, error) {
	return t.notes.List(ctx, limit, offset)
}

// TagCounts returns every distinct tag with its usage count.
func (t *Tangle) TagCounts(ctx context.Context) ([]notes.TagCount, error) {
	return t.notes.TagCounts(ctx)
}

// SearchNotes runs a full-text search over content, keys, and tags.
func (t *Tangle) SearchNotes(ctx context.Context, term string, limit int) ([]notes.Note, error) {
	return t.notes.Search(ctx, term, limit)
}

// BuildGraph re-imports every note into the graph and returns cumulative
// totals. Safe to run repeatedly.
func (t *Tangle) BuildGraph(ctx context.Context) (graph.Stats, error) {
	records, err := t.notes.SourceRecords(ctx)
	if err != nil {
		return graph.Stats{}, err
	}
	return t.graph.ImportFromNotes(ctx, records)
}

// Neighbors lists nodes reachable from the given label within depth hops.
func (t *Tangle) Neighbors(ctx context.Context, label, typ string, depth, limit int) ([]graph.Node, error) {
	return t.graph.Neighbors(ctx, graph.ByLabel(label, typ), depth, limit)
}

// Path finds the shortest route between two labeled nodes.
func (t *Tangle) Path(ctx context.Context, fromLabel, fromType, toLabel, toType string, maxDepth int) ([]graph.Node, error) {
	return t.graph.Path(ctx, graph.ByLabel(fromLabel, fromType), graph.ByLabel(toLabel, toType), maxDepth)
}

// GraphStats returns total node and edge counts.
func (t *Tangle) GraphStats(ctx context.Context) (graph.Stats, error) {
	return t.graph.Stats(ctx)
}

// NoteReport bundles the analysis results for one note.
type NoteReport struct {
	ID        int64              `json:"id"`
	Keywords  []analysis.Keyword `json:"keywords"`
	Sentiment analysis.Sentiment `json:"sentiment"`
	Entities  []analysis.Entity  `json:"entities"`
}

// AnalyzeNote extracts keywords, sentiment, and entities from one note.
func (t *Tangle) AnalyzeNote(ctx context.Context, id int64, keywords int) (*NoteReport, error) {
	n, err := t.notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &NoteReport{
		ID:        n.ID,
		Keywords:  analysis.Keywords(n.Content, keywords),
		Sentiment: analysis.Sentimental(n.Content),
		Entities:  analysis.Entities(n.Content),
	}, nil
}

// Export writes the full archive to w.
func (t *Tangle) Export(ctx context.Context, w io.Writer) (backup.Manifest, error) {
	return backup.Export(ctx, t.notes, t.graph, w)
}

// Import restores notes from an archive.
func (t *Tangle) Import(ctx context.Context, r io.Reader, opts backup.ImportOptions) (backup.ImportResult, error) {
	return backup.Import(ctx, t.notes, t.graph, r, opts)
}
