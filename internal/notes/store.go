// Package notes stores short text notes in SQLite with FTS5 full-text
// search. Each note carries a dot-path key (e.g. "react.hooks") and a tag
// set; those two fields feed the graph layer through SourceRecords.
package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tanglehq/tangle/internal/graph"
)

// ErrNotFound is returned when a note id does not exist.
var ErrNotFound = errors.New("note not found")

// Note is a stored note. Tags are kept as a JSON array in SQLite.
type Note struct {
	ID      int64     `json:"id"`
	Content string    `json:"content"`
	Key     string    `json:"key,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Store is the SQLite-backed note store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a note database at path. Schema setup
// is idempotent.
func Open(ctx context.Context, path string) (*Store, error) {
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

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new note, fills in n's id and timestamps, and returns the
// id. A caller-provided Created time is preserved (imports keep original
// creation times).
func (s *Store) Create(ctx context.Context, n *Note) (int64, error) {
	if strings.TrimSpace(n.Content) == "" {
		return 0, fmt.Errorf("note content must not be empty")
	}

	now := time.Now().UTC()
	created := n.Created
	if created.IsZero() {
		created = now
	}

	tagsJSON, err := marshalTags(n.Tags)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (content, key, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.Content, n.Key, tagsJSON, created.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inserting note: %w", err)
	}
	n.ID = id
	n.Created = created
	n.Updated = now
	return id, nil
}

// Get retrieves a note by id; a missing id is ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, key, tags, created_at, updated_at
		FROM notes WHERE id = ?
	`, id)

	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Update rewrites a note's content, key, and tags in place.
func (s *Store) Update(ctx context.Context, n *Note) error {
	tagsJSON, err := marshalTags(n.Tags)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET content = ?, key = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`, n.Content, n.Key, tagsJSON, time.Now().UTC().Format(time.RFC3339), n.ID)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("updating note %d: %w", n.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a note. Deleting a missing id is ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deleting note %d: %w", id, ErrNotFound)
	}
	return nil
}

// List returns notes newest-first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Note, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, key, tags, created_at, updated_at
		FROM notes
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// Search performs FTS5 full-text search over content, key, and tags, falling
// back to a LIKE scan when the FTS query cannot be parsed.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 50
	}

	// Escape embedded quotes and search as a phrase.
	escaped := strings.ReplaceAll(term, `"`, `""`)
	ftsQuery := fmt.Sprintf(`"%s"`, escaped)

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.content, n.key, n.tags, n.created_at, n.updated_at
		FROM notes n
		JOIN notes_fts fts ON n.id = fts.rowid
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return s.searchLike(ctx, term, limit)
	}
	defer rows.Close()

	return scanNotes(rows)
}

func (s *Store) searchLike(ctx context.Context, term string, limit int) ([]Note, error) {
	like := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, key, tags, created_at, updated_at
		FROM notes
		WHERE content LIKE ? OR key LIKE ? OR tags LIKE ?
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// TagCount pairs a tag with the number of notes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// TagCounts returns every distinct tag with its usage count, most used
// first. Tags are unpacked from the JSON arrays with json_each.
func (s *Store) TagCounts(ctx context.Context) ([]TagCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT je.value, COUNT(*)
		FROM notes, json_each(notes.tags) je
		GROUP BY je.value
		ORDER BY COUNT(*) DESC, je.value
	`)
	if err != nil {
		return nil, fmt.Errorf("counting tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning tag count: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag counts: %w", err)
	}
	return out, nil
}

// Count returns the number of stored notes.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return count, nil
}

// SourceRecords returns every note's graph-import shape (id, creation date,
// key, tags) in id order.
func (s *Store) SourceRecords(ctx context.Context) ([]graph.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, key, tags FROM notes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("reading source records: %w", err)
	}
	defer rows.Close()

	var records []graph.SourceRecord
	for rows.Next() {
		var (
			rec     graph.SourceRecord
			rawTags string
		)
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Key, &rawTags); err != nil {
			return nil, fmt.Errorf("scanning source record: %w", err)
		}
		if rec.Tags, err = unmarshalTags(rawTags); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	var (
		n                  Note
		rawTags            string
		createdAt, updated string
	)
	if err := row.Scan(&n.ID, &n.Content, &n.Key, &rawTags, &createdAt, &updated); err != nil {
		return nil, err
	}

	var err error
	if n.Tags, err = unmarshalTags(rawTags); err != nil {
		return nil, err
	}
	if n.Created, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if n.Updated, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updated, err)
	}
	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	var out []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return out, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshaling tags: %w", err)
	}
	return string(data), nil
}

func unmarshalTags(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}
