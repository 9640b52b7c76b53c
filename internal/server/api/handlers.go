// Package api exposes the note store, graph store, and tool catalog over
// HTTP with chi routing.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tanglehq/tangle/internal/graph"
	"github.com/tanglehq/tangle/internal/notes"
	"github.com/tanglehq/tangle/internal/tools"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	notes    *notes.Store
	graph    graph.Store
	registry *tools.Registry
	log      *slog.Logger
}

// New creates an API server.
func New(ns *notes.Store, g graph.Store, registry *tools.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{notes: ns, graph: g, registry: registry, log: log}
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/notes", s.CreateNote)
		r.Get("/notes", s.ListNotes)
		r.Get("/notes/search", s.SearchNotes)
		r.Get("/notes/{id}", s.GetNote)
		r.Put("/notes/{id}", s.UpdateNote)
		r.Delete("/notes/{id}", s.DeleteNote)

		r.Post("/graph/build", s.BuildGraph)
		r.Get("/graph/stats", s.GraphStats)
		r.Get("/graph/neighbors", s.Neighbors)
		r.Get("/graph/path", s.Path)

		r.Get("/tools", s.ListTools)
		r.Post("/tools/{name}", s.CallTool)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var toolErr tools.ToolError
	if errors.As(err, &toolErr) {
		resp.Code = toolErr.Code
	}
	s.writeJSON(w, status, resp)
}

// storeStatus maps store errors to HTTP status codes.
func storeStatus(err error) int {
	var constraint *graph.ConstraintError
	switch {
	case errors.Is(err, notes.ErrNotFound), errors.Is(err, graph.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &constraint):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	count, err := s.notes.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"notes":  count,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Content string   `json:"content"`
	Key     string   `json:"key,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// CreateNote handles POST /api/notes
func (s *Server) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	n := &notes.Note{Content: req.Content, Key: req.Key, Tags: req.Tags}
	if _, err := s.notes.Create(r.Context(), n); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, n)
}

// GetNote handles GET /api/notes/{id}
func (s *Server) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid note id"))
		return
	}

	n, err := s.notes.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, storeStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

// UpdateNoteRequest is the request body for updating a note. Omitted fields
// keep their current value.
type UpdateNoteRequest struct {
	Content *string   `json:"content,omitempty"`
	Key     *string   `json:"key,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// UpdateNote handles PUT /api/notes/{id}
func (s *Server) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid note id"))
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	n, err := s.notes.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, storeStatus(err), err)
		return
	}
	if req.Content != nil {
		n.Content = *req.Content
	}
	if req.Key != nil {
		n.Key = *req.Key
	}
	if req.Tags != nil {
		n.Tags = *req.Tags
	}

	if err := s.notes.Update(r.Context(), n); err != nil {
		s.writeError(w, storeStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}
func (s *Server) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid note id"))
		return
	}

	if err := s.notes.Delete(r.Context(), id); err != nil {
		s.writeError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotes handles GET /api/notes
func (s *Server) ListNotes(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	list, err := s.notes.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"notes": list, "count": len(list)})
}

// SearchNotes handles GET /api/notes/search?q=term
func (s *Server) SearchNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("q parameter is required"))
		return
	}
	limit := queryInt(r, "limit", 20)

	hits, err := s.notes.Search(r.Context(), q, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"notes": hits, "count": len(hits)})
}

// BuildGraph handles POST /api/graph/build
func (s *Server) BuildGraph(w http.ResponseWriter, r *http.Request) {
	records, err := s.notes.SourceRecords(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	st, err := s.graph.ImportFromNotes(r.Context(), records)
	if err != nil {
		s.writeError(w, storeStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// GraphStats handles GET /api/graph/stats
func (s *Server) GraphStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.graph.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// Neighbors handles GET /api/graph/neighbors?label=L&type=T&depth=N&limit=N
func (s *Server) Neighbors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	label := query.Get("label")
	typ := query.Get("type")
	if label == "" || typ == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("label and type parameters are required"))
		return
	}

	nodes, err := s.graph.Neighbors(r.Context(), graph.ByLabel(label, typ),
		queryInt(r, "depth", 0), queryInt(r, "limit", 0))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "count": len(nodes)})
}

// Path handles GET /api/graph/path?from_label=..&from_type=..&to_label=..&to_type=..
func (s *Server) Path(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fromLabel, fromType := query.Get("from_label"), query.Get("from_type")
	toLabel, toType := query.Get("to_label"), query.Get("to_type")
	if fromLabel == "" || fromType == "" || toLabel == "" || toType == "" {
		s.writeError(w, http.StatusBadRequest,
			errors.New("from_label, from_type, to_label, and to_type parameters are required"))
		return
	}

	path, err := s.graph.Path(r.Context(), graph.ByLabel(fromLabel, fromType),
		graph.ByLabel(toLabel, toType), queryInt(r, "max_depth", 0))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"path":  path,
		"found": len(path) > 0,
	})
}

// ListTools handles GET /api/tools
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.Defs()})
}

// CallTool handles POST /api/tools/{name}
func (s *Server) CallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result, err := s.registry.Call(r.Context(), name, args)
	if err != nil {
		s.writeError(w, toolStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

func toolStatus(err error) int {
	var toolErr tools.ToolError
	if !errors.As(err, &toolErr) {
		return http.StatusInternalServerError
	}
	switch toolErr.Code {
	case tools.ErrorInvalidArgument:
		return http.StatusBadRequest
	case tools.ErrorNotFound:
		return http.StatusNotFound
	case tools.ErrorConstraint:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
