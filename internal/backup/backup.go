// Package backup exports and imports the knowledge index as a single JSON
// archive. Notes are the source of truth; the graph is derived data and is
// rebuilt from the restored notes rather than serialized edge by edge.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tanglehq/tangle/internal/graph"
	"github.com/tanglehq/tangle/internal/notes"
)

// Version is the current archive format version.
const Version = 1

// Conflict resolution strategies for import.
const (
	Skip    = "skip"    // keep the existing note, drop the imported one
	Replace = "replace" // overwrite the existing note's content and tags
)

// Manifest describes an archive.
type Manifest struct {
	Version int       `json:"version"`
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Notes   int       `json:"notes"`
	Nodes   int64     `json:"nodes"`
	Edges   int64     `json:"edges"`
}

// Archive is the on-disk JSON shape.
type Archive struct {
	Manifest Manifest     `json:"manifest"`
	Notes    []notes.Note `json:"notes"`
}

// ImportOptions configures import behavior.
type ImportOptions struct {
	OnConflict   string // Skip or Replace; Skip when empty
	RebuildGraph bool   // re-run the graph import after restoring notes
}

// ImportResult reports what an import did.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Replaced int `json:"replaced"`
}

const pageSize = 500

// Export writes every note plus graph totals to w as one JSON document.
func Export(ctx context.Context, store *notes.Store, g graph.Store, w io.Writer) (Manifest, error) {
	all, err := allNotes(ctx, store)
	if err != nil {
		return Manifest{}, err
	}

	manifest := Manifest{
		Version: Version,
		ID:      uuid.New().String(),
		Created: time.Now().UTC(),
		Notes:   len(all),
	}
	if g != nil {
		st, err := g.Stats(ctx)
		if err != nil {
			return Manifest{}, fmt.Errorf("reading graph stats: %w", err)
		}
		manifest.Nodes = st.Nodes
		manifest.Edges = st.Edges
	}

	if err := encodeArchive(w, &Archive{Manifest: manifest, Notes: all}); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

func encodeArchive(w io.Writer, archive *Archive) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(archive); err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}
	return nil
}

func allNotes(ctx context.Context, store *notes.Store) ([]notes.Note, error) {
	var all []notes.Note
	for offset := 0; ; offset += pageSize {
		page, err := store.List(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("listing notes: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// Import restores notes from an archive. Conflicts are detected on the
// (created, key) pair and resolved per the configured strategy. With
// RebuildGraph set the graph is re-imported from the full post-restore note
// set.
func Import(ctx context.Context, store *notes.Store, g graph.Store, r io.Reader, opts ImportOptions) (ImportResult, error) {
	archive, err := Read(r)
	if err != nil {
		return ImportResult{}, err
	}

	onConflict := opts.OnConflict
	if onConflict == "" {
		onConflict = Skip
	}
	if onConflict != Skip && onConflict != Replace {
		return ImportResult{}, fmt.Errorf("unknown conflict strategy %q", onConflict)
	}

	existing, err := allNotes(ctx, store)
	if err != nil {
		return ImportResult{}, err
	}
	byKey := make(map[string]notes.Note, len(existing))
	for _, n := range existing {
		byKey[conflictKey(n)] = n
	}

	var result ImportResult
	for _, incoming := range archive.Notes {
		found, conflict := byKey[conflictKey(incoming)]
		switch {
		case !conflict:
			n := incoming
			n.ID = 0
			if _, err := store.Create(ctx, &n); err != nil {
				return result, fmt.Errorf("restoring note: %w", err)
			}
			result.Imported++
		case onConflict == Replace:
			n := incoming
			n.ID = found.ID
			if err := store.Update(ctx, &n); err != nil {
				return result, fmt.Errorf("replacing note %d: %w", found.ID, err)
			}
			result.Replaced++
		default:
			result.Skipped++
		}
	}

	if opts.RebuildGraph && g != nil {
		records, err := store.SourceRecords(ctx)
		if err != nil {
			return result, err
		}
		if _, err := g.ImportFromNotes(ctx, records); err != nil {
			return result, fmt.Errorf("rebuilding graph: %w", err)
		}
	}
	return result, nil
}

func conflictKey(n notes.Note) string {
	return n.Created.UTC().Format(time.RFC3339) + "|" + n.Key
}

// Read decodes and verifies an archive.
func Read(r io.Reader) (*Archive, error) {
	var archive Archive
	if err := json.NewDecoder(r).Decode(&archive); err != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}
	if err := Verify(&archive); err != nil {
		return nil, err
	}
	return &archive, nil
}

// Verify checks archive integrity before any write happens.
func Verify(archive *Archive) error {
	if archive.Manifest.Version != Version {
		return fmt.Errorf("unsupported archive version %d", archive.Manifest.Version)
	}
	if archive.Manifest.Notes != len(archive.Notes) {
		return fmt.Errorf("manifest claims %d notes, archive holds %d", archive.Manifest.Notes, len(archive.Notes))
	}
	for i, n := range archive.Notes {
		if strings.TrimSpace(n.Content) == "" {
			return fmt.Errorf("note %d has empty content", i)
		}
	}
	return nil
}
