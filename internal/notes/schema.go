package notes

// SQLite schema DDL constants. All statements are idempotent.

const schemaNotes = `
CREATE TABLE IF NOT EXISTS notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content TEXT NOT NULL,
    key TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
)`

// FTS5 virtual table for full-text search over note content, key, and tags
const schemaNotesFTS = `
CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
    content,
    key,
    tags,
    content='notes',
    content_rowid='id'
)`

// Triggers to keep the FTS index in sync with the notes table
const triggerFTSInsert = `
CREATE TRIGGER IF NOT EXISTS notes_fts_insert AFTER INSERT ON notes BEGIN
    INSERT INTO notes_fts(rowid, content, key, tags)
    VALUES (NEW.id, NEW.content, NEW.key, NEW.tags);
END`

const triggerFTSDelete = `
CREATE TRIGGER IF NOT EXISTS notes_fts_delete AFTER DELETE ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, content, key, tags)
    VALUES ('delete', OLD.id, OLD.content, OLD.key, OLD.tags);
END`

const triggerFTSUpdate = `
CREATE TRIGGER IF NOT EXISTS notes_fts_update AFTER UPDATE ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, content, key, tags)
    VALUES ('delete', OLD.id, OLD.content, OLD.key, OLD.tags);
    INSERT INTO notes_fts(rowid, content, key, tags)
    VALUES (NEW.id, NEW.content, NEW.key, NEW.tags);
END`

const indexNotesKey = `CREATE INDEX IF NOT EXISTS idx_notes_key ON notes(key)`
const indexNotesCreated = `CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at)`

const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

func allSchemaStatements() []string {
	return []string{
		schemaNotes,
		schemaNotesFTS,
		triggerFTSInsert,
		triggerFTSDelete,
		triggerFTSUpdate,
		indexNotesKey,
		indexNotesCreated,
	}
}

func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
