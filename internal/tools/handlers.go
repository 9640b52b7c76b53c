package tools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tanglehq/tangle/internal/analysis"
	"github.com/tanglehq/tangle/internal/backup"
	"github.com/tanglehq/tangle/internal/graph"
	"github.com/tanglehq/tangle/internal/notes"
	"github.com/tanglehq/tangle/internal/server/events"
)

// Service binds the tool catalog to the stores.
type Service struct {
	notes *notes.Store
	graph graph.Store
	emit  events.Emitter
}

// NewService wires the stores into a tool service. The emitter may be nil.
func NewService(ns *notes.Store, g graph.Store, emit events.Emitter) *Service {
	if emit == nil {
		emit = func(events.Event) {}
	}
	return &Service{notes: ns, graph: g, emit: emit}
}

// Registry builds the full catalog. Registration cannot fail because tool
// names are compile-time constants, so errors here are programming mistakes.
func (s *Service) Registry() *Registry {
	r := NewRegistry()
	handlers := map[string]Handler{
		"note_create":     s.noteCreate,
		"note_get":        s.noteGet,
		"note_update":     s.noteUpdate,
		"note_delete":     s.noteDelete,
		"note_list":       s.noteList,
		"note_search":     s.noteSearch,
		"note_analyze":    s.noteAnalyze,
		"note_duplicates": s.noteDuplicates,
		"graph_build":     s.graphBuild,
		"graph_neighbors": s.graphNeighbors,
		"graph_path":      s.graphPath,
		"graph_stats":     s.graphStats,
		"backup_export":   s.backupExport,
		"backup_import":   s.backupImport,
	}
	for _, def := range defs() {
		h, ok := handlers[def.Name]
		if !ok {
			panic(fmt.Sprintf("tool %s has no handler", def.Name))
		}
		if err := r.Register(def, h); err != nil {
			panic(err)
		}
	}
	return r
}

func (s *Service) noteCreate(ctx context.Context, args map[string]any) (any, error) {
	content, err := stringArg(args, "content", true)
	if err != nil {
		return nil, err
	}
	key, _ := stringArg(args, "key", false)
	tags, err := stringsArg(args, "tags")
	if err != nil {
		return nil, err
	}

	n := &notes.Note{Content: content, Key: key, Tags: tags}
	id, err := s.notes.Create(ctx, n)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	s.emit(events.NoteEvent(events.EventNoteCreated, id))
	return n, nil
}

func (s *Service) noteGet(ctx context.Context, args map[string]any) (any, error) {
	id, err := intArg(args, "id", true, 0)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Get(ctx, int64(id))
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return n, nil
}

func (s *Service) noteUpdate(ctx context.Context, args map[string]any) (any, error) {
	id, err := intArg(args, "id", true, 0)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Get(ctx, int64(id))
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if content, ok := args["content"]; ok {
		str, ok := content.(string)
		if !ok {
			return nil, invalidArg("content must be a string")
		}
		n.Content = str
	}
	if key, ok := args["key"]; ok {
		str, ok := key.(string)
		if !ok {
			return nil, invalidArg("key must be a string")
		}
		n.Key = str
	}
	if _, ok := args["tags"]; ok {
		tags, err := stringsArg(args, "tags")
		if err != nil {
			return nil, err
		}
		n.Tags = tags
	}

	if err := s.notes.Update(ctx, n); err != nil {
		return nil, wrapStoreErr(err)
	}
	s.emit(events.NoteEvent(events.EventNoteUpdated, n.ID))
	return n, nil
}

func (s *Service) noteDelete(ctx context.Context, args map[string]any) (any, error) {
	id, err := intArg(args, "id", true, 0)
	if err != nil {
		return nil, err
	}
	if err := s.notes.Delete(ctx, int64(id)); err != nil {
		return nil, wrapStoreErr(err)
	}
	s.emit(events.NoteEvent(events.EventNoteDeleted, int64(id)))
	return map[string]any{"deleted": true, "id": id}, nil
}

func (s *Service) noteList(ctx context.Context, args map[string]any) (any, error) {
	limit, err := intArg(args, "limit", false, 20)
	if err != nil {
		return nil, err
	}
	offset, err := intArg(args, "offset", false, 0)
	if err != nil {
		return nil, err
	}
	list, err := s.notes.List(ctx, limit, offset)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return map[string]any{"notes": list, "count": len(list)}, nil
}

func (s *Service) noteSearch(ctx context.Context, args map[string]any) (any, error) {
	query, err := stringArg(args, "query", true)
	if err != nil {
		return nil, err
	}
	limit, err := intArg(args, "limit", false, 20)
	if err != nil {
		return nil, err
	}
	hits, err := s.notes.Search(ctx, query, limit)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return map[string]any{"notes": hits, "count": len(hits)}, nil
}

func (s *Service) noteAnalyze(ctx context.Context, args map[string]any) (any, error) {
	id, err := intArg(args, "id", true, 0)
	if err != nil {
		return nil, err
	}
	k, err := intArg(args, "keywords", false, 5)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Get(ctx, int64(id))
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return map[string]any{
		"id":        n.ID,
		"keywords":  analysis.Keywords(n.Content, k),
		"sentiment": analysis.Sentimental(n.Content),
		"entities":  analysis.Entities(n.Content),
	}, nil
}

func (s *Service) noteDuplicates(ctx context.Context, args map[string]any) (any, error) {
	threshold := analysis.DuplicateThreshold
	if raw, ok := args["threshold"]; ok {
		f, ok := raw.(float64)
		if !ok || f <= 0 || f > 1 {
			return nil, invalidArg("threshold must be a number in (0, 1]")
		}
		threshold = f
	}

	records, err := s.notes.SourceRecords(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	texts := make([]string, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		n, err := s.notes.Get(ctx, rec.ID)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		texts = append(texts, n.Content)
		ids = append(ids, n.ID)
	}

	pairs := analysis.Duplicates(texts, threshold)
	out := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, map[string]any{
			"a":     ids[p.A],
			"b":     ids[p.B],
			"score": p.Score,
		})
	}
	return map[string]any{"pairs": out, "count": len(out)}, nil
}

func (s *Service) graphBuild(ctx context.Context, args map[string]any) (any, error) {
	records, err := s.notes.SourceRecords(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	st, err := s.graph.ImportFromNotes(ctx, records)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	s.emit(events.GraphEvent(st.Nodes, st.Edges))
	return st, nil
}

func (s *Service) graphNeighbors(ctx context.Context, args map[string]any) (any, error) {
	label, err := stringArg(args, "label", true)
	if err != nil {
		return nil, err
	}
	typ, err := stringArg(args, "type", true)
	if err != nil {
		return nil, err
	}
	depth, err := intArg(args, "depth", false, 0)
	if err != nil {
		return nil, err
	}
	limit, err := intArg(args, "limit", false, 0)
	if err != nil {
		return nil, err
	}

	nodes, err := s.graph.Neighbors(ctx, graph.ByLabel(label, typ), depth, limit)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return map[string]any{"nodes": nodes, "count": len(nodes)}, nil
}

func (s *Service) graphPath(ctx context.Context, args map[string]any) (any, error) {
	fromLabel, err := stringArg(args, "from_label", true)
	if err != nil {
		return nil, err
	}
	fromType, err := stringArg(args, "from_type", true)
	if err != nil {
		return nil, err
	}
	toLabel, err := stringArg(args, "to_label", true)
	if err != nil {
		return nil, err
	}
	toType, err := stringArg(args, "to_type", true)
	if err != nil {
		return nil, err
	}
	maxDepth, err := intArg(args, "max_depth", false, 0)
	if err != nil {
		return nil, err
	}

	path, err := s.graph.Path(ctx, graph.ByLabel(fromLabel, fromType), graph.ByLabel(toLabel, toType), maxDepth)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return map[string]any{"path": path, "found": len(path) > 0, "hops": max(len(path)-1, 0)}, nil
}

func (s *Service) graphStats(ctx context.Context, args map[string]any) (any, error) {
	st, err := s.graph.Stats(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return st, nil
}

func (s *Service) backupExport(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path", true)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, ToolError{Code: ErrorInternal, Message: fmt.Sprintf("creating archive: %v", err)}
	}
	defer f.Close()

	manifest, err := backup.Export(ctx, s.notes, s.graph, f)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	s.emit(events.New(events.EventBackupExported))
	return manifest, nil
}

func (s *Service) backupImport(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path", true)
	if err != nil {
		return nil, err
	}
	onConflict, _ := stringArg(args, "on_conflict", false)
	switch onConflict {
	case "", backup.Skip, backup.Replace:
	default:
		return nil, invalidArg("on_conflict must be %q or %q", backup.Skip, backup.Replace)
	}
	rebuild, err := boolArg(args, "rebuild_graph")
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ToolError{Code: ErrorNotFound, Message: fmt.Sprintf("opening archive: %v", err)}
	}
	defer f.Close()

	result, err := backup.Import(ctx, s.notes, s.graph, f, backup.ImportOptions{
		OnConflict:   onConflict,
		RebuildGraph: rebuild,
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	s.emit(events.New(events.EventBackupImported))
	return result, nil
}

// Argument coercion. JSON numbers decode as float64, so integer arguments
// arrive as floats and are narrowed here.

func stringArg(args map[string]any, name string, required bool) (string, error) {
	raw, ok := args[name]
	if !ok {
		if required {
			return "", invalidArg("%s is required", name)
		}
		return "", nil
	}
	str, ok := raw.(string)
	if !ok || (required && str == "") {
		return "", invalidArg("%s must be a non-empty string", name)
	}
	return str, nil
}

func intArg(args map[string]any, name string, required bool, def int) (int, error) {
	raw, ok := args[name]
	if !ok {
		if required {
			return 0, invalidArg("%s is required", name)
		}
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, invalidArg("%s must be an integer", name)
	}
}

func stringsArg(args map[string]any, name string) ([]string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, invalidArg("%s must be a list of strings", name)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, invalidArg("%s must be a list of strings", name)
	}
}

func boolArg(args map[string]any, name string) (bool, error) {
	raw, ok := args[name]
	if !ok {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, invalidArg("%s must be a boolean", name)
	}
	return b, nil
}

func wrapStoreErr(err error) error {
	var toolErr ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	var constraint *graph.ConstraintError
	switch {
	case errors.Is(err, notes.ErrNotFound), errors.Is(err, graph.ErrNotFound):
		return ToolError{Code: ErrorNotFound, Message: err.Error()}
	case errors.As(err, &constraint):
		return ToolError{Code: ErrorConstraint, Message: err.Error()}
	default:
		return ToolError{Code: ErrorInternal, Message: err.Error()}
	}
}
