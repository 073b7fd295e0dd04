package cmd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/archive-service/internal/view"
	"github.com/redhat-et/script-archive/pkg/logger"
)

// ScriptResponse is the API view of a script. Field names follow the
// ledger's record format.
type ScriptResponse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Timestamp        int64    `json:"timestamp"`
	Owner            string   `json:"owner"`
	Era              string   `json:"era"`
	Status           string   `json:"status"`
	Themes           []string `json:"themes"`
	CharacterNetwork string   `json:"characterNetwork"`
}

func newScriptResponse(s script.Script) ScriptResponse {
	themes := s.Themes
	if themes == nil {
		themes = []string{}
	}
	return ScriptResponse{
		ID:               s.ID,
		Title:            s.Title,
		Content:          s.Content,
		Timestamp:        s.CreatedAt,
		Owner:            s.Owner,
		Era:              s.Era,
		Status:           string(s.Status),
		Themes:           themes,
		CharacterNetwork: s.CharacterNetwork,
	}
}

// ListResponse is one page of the collection.
type ListResponse struct {
	Items      []ScriptResponse `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
	TotalItems int              `json:"total_items"`
	Query      string           `json:"q,omitempty"`
	Counts     view.Counts      `json:"counts"`
	Version    uint64           `json:"version"`
}

// ArchiveServer serves the collection and its lifecycle operations.
type ArchiveServer struct {
	manager   *lifecycle.Manager
	pageSize  int
	topThemes int
	log       *logger.Logger
}

func (s *ArchiveServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /scripts", s.handleList)
	mux.HandleFunc("POST /scripts", s.handleCreate)
	mux.HandleFunc("GET /scripts/{id}", s.handleGet)
	mux.HandleFunc("POST /scripts/{id}/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /scripts/{id}/archive", s.handleArchive)
	mux.HandleFunc("GET /themes", s.handleThemes)
	mux.HandleFunc("POST /reload", s.handleReload)
	mux.HandleFunc("POST /repair", s.handleRepair)
}

// jsonError writes a JSON error response
func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"reason": message,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a lifecycle error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrInFlight),
		errors.Is(err, lifecycle.ErrUserRejected):
		return http.StatusConflict
	case script.IsDecodeError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *ArchiveServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	var denied *lifecycle.DeniedError
	if errors.As(err, &denied) {
		msg = denied.Reason
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.log.Debug("Request refused", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	jsonError(w, msg, code)
}

func (s *ArchiveServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// queryInt reads a positive integer query parameter, falling back to def
// when it is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func (s *ArchiveServer) handleList(w http.ResponseWriter, r *http.Request) {
	snap := s.manager.Snapshot()
	res := view.Query(snap.Scripts,
		r.URL.Query().Get("q"),
		queryInt(r, "page", 1),
		queryInt(r, "page_size", s.pageSize))

	items := make([]ScriptResponse, 0, len(res.Items))
	for _, sc := range res.Items {
		items = append(items, newScriptResponse(sc))
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Items:      items,
		Page:       res.Number,
		PageSize:   res.Size,
		TotalPages: res.TotalPages,
		TotalItems: res.TotalItems,
		Query:      res.Term,
		Counts:     res.Counts,
		Version:    snap.Version,
	})
}

func (s *ArchiveServer) handleGet(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, "script not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newScriptResponse(sc))
}

func (s *ArchiveServer) handleThemes(w http.ResponseWriter, r *http.Request) {
	themes := view.TopThemes(s.manager.Scripts(), queryInt(r, "top", s.topThemes))
	writeJSON(w, http.StatusOK, map[string]any{"themes": themes})
}

func (s *ArchiveServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sc, err := s.manager.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newScriptResponse(sc))
}

func (s *ArchiveServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sc, err := s.manager.Analyze(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScriptResponse(sc))
}

func (s *ArchiveServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	sc, err := s.manager.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScriptResponse(sc))
}

func (s *ArchiveServer) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.Reload(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version,
		"count":   len(snap.Scripts),
	})
}

func (s *ArchiveServer) handleRepair(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.Repair(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
