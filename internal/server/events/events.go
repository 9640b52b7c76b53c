// Package events fans out change notifications from the stores to
// in-process subscribers and webhook sinks.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event describes a change to the notes or graph state.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Note event fields
	NoteID int64 `json:"note_id,omitempty"`

	// Graph event fields
	Nodes int64 `json:"nodes,omitempty"`
	Edges int64 `json:"edges,omitempty"`

	Meta map[string]any `json:"meta,omitempty"`
}

// Event type constants
const (
	EventNoteCreated    = "note.created"
	EventNoteUpdated    = "note.updated"
	EventNoteDeleted    = "note.deleted"
	EventGraphImported  = "graph.imported"
	EventBackupExported = "backup.exported"
	EventBackupImported = "backup.imported"
)

// New builds an event with a fresh id and timestamp.
func New(typ string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

// NoteEvent builds a note lifecycle event.
func NoteEvent(typ string, noteID int64) Event {
	ev := New(typ)
	ev.NoteID = noteID
	return ev
}

// GraphEvent builds a graph import event carrying the new totals.
func GraphEvent(nodes, edges int64) Event {
	ev := New(EventGraphImported)
	ev.Nodes = nodes
	ev.Edges = edges
	return ev
}
