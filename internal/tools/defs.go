package tools

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func defs() []Def {
	return []Def{
		{
			Name:        "note_create",
			Description: "Create a note. Returns the new note with its assigned id.",
			InputSchema: objectSchema(map[string]any{
				"content": prop("string", "Note body text"),
				"key":     prop("string", "Optional topic key, e.g. 'go.context'"),
				"tags":    prop("array", "Optional list of tag strings"),
			}, "content"),
		},
		{
			Name:        "note_get",
			Description: "Fetch a note by id, including its key and tags.",
			InputSchema: objectSchema(map[string]any{
				"id": prop("integer", "Note id"),
			}, "id"),
		},
		{
			Name:        "note_update",
			Description: "Update a note's content, key, or tags. Omitted fields keep their current value.",
			InputSchema: objectSchema(map[string]any{
				"id":      prop("integer", "Note id"),
				"content": prop("string", "Replacement body text"),
				"key":     prop("string", "Replacement topic key"),
				"tags":    prop("array", "Replacement tag list"),
			}, "id"),
		},
		{
			Name:        "note_delete",
			Description: "Delete a note by id.",
			InputSchema: objectSchema(map[string]any{
				"id": prop("integer", "Note id"),
			}, "id"),
		},
		{
			Name:        "note_list",
			Description: "List notes newest first.",
			InputSchema: objectSchema(map[string]any{
				"limit":  prop("integer", "Maximum notes to return (default 20)"),
				"offset": prop("integer", "Number of notes to skip"),
			}),
		},
		{
			Name:        "note_search",
			Description: "Full-text search over note content, keys, and tags.",
			InputSchema: objectSchema(map[string]any{
				"query": prop("string", "Search terms"),
				"limit": prop("integer", "Maximum hits to return (default 20)"),
			}, "query"),
		},
		{
			Name:        "note_analyze",
			Description: "Extract keywords, sentiment, and entities from one note.",
			InputSchema: objectSchema(map[string]any{
				"id":       prop("integer", "Note id"),
				"keywords": prop("integer", "Number of keywords to extract (default 5)"),
			}, "id"),
		},
		{
			Name:        "note_duplicates",
			Description: "Report pairs of notes whose content is near-duplicate.",
			InputSchema: objectSchema(map[string]any{
				"threshold": prop("number", "Similarity threshold between 0 and 1 (default 0.8)"),
			}),
		},
		{
			Name:        "graph_build",
			Description: "Rebuild the knowledge graph from all notes. Idempotent; returns cumulative node and edge totals.",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "graph_neighbors",
			Description: "List nodes reachable from a start node in breadth-first order.",
			InputSchema: objectSchema(map[string]any{
				"label": prop("string", "Start node label, e.g. 'tag:performance'"),
				"type":  prop("string", "Start node type (note, key, or tag)"),
				"depth": prop("integer", "Hop bound (default 1)"),
				"limit": prop("integer", "Maximum nodes to return (default 50)"),
			}, "label", "type"),
		},
		{
			Name:        "graph_path",
			Description: "Find the shortest path between two nodes, endpoints included.",
			InputSchema: objectSchema(map[string]any{
				"from_label": prop("string", "Source node label"),
				"from_type":  prop("string", "Source node type"),
				"to_label":   prop("string", "Target node label"),
				"to_type":    prop("string", "Target node type"),
				"max_depth":  prop("integer", "Hop bound (default 4)"),
			}, "from_label", "from_type", "to_label", "to_type"),
		},
		{
			Name:        "graph_stats",
			Description: "Return total node and edge counts.",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "backup_export",
			Description: "Write every note plus graph totals to a JSON archive file.",
			InputSchema: objectSchema(map[string]any{
				"path": prop("string", "Destination file path"),
			}, "path"),
		},
		{
			Name:        "backup_import",
			Description: "Restore notes from a JSON archive file.",
			InputSchema: objectSchema(map[string]any{
				"path":          prop("string", "Archive file path"),
				"on_conflict":   prop("string", "Conflict strategy: skip (default) or replace"),
				"rebuild_graph": prop("boolean", "Rebuild the graph after restoring"),
			}, "path"),
		},
	}
}
