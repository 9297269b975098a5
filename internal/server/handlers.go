package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/models"
)

// handleTool dispatches a tool call. The body is the tool's argument object;
// the response is the tool result. Tool-level failures come back as HTTP 200
// with isError set — only an unknown tool name or an unreadable body is an
// HTTP-level error.
func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.registry.Has(name) {
		s.respondError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("tool request", zap.String("tool", name))
	result := s.registry.Dispatch(r.Context(), name, body)
	s.respondJSON(w, http.StatusOK, result)
}

// handleToolCall dispatches a tool call carried as a request envelope
// ({"name": ..., "arguments": {...}}) for clients that put the tool name in
// the payload instead of the URL.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var req models.ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.registry.Has(req.Name) {
		s.respondError(w, http.StatusNotFound, "unknown tool: "+req.Name)
		return
	}
	s.logger.Debug("tool request", zap.String("tool", req.Name))
	result := s.registry.Dispatch(r.Context(), req.Name, req.Arguments)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	reindexed, failed, err := s.coordinator.ReconcileOrphans(r.Context())
	if err != nil {
		s.logger.Error("reconcile failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{
		"reindexed": reindexed,
		"failed":    failed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteCount, err := s.storage.CountNotes(ctx)
	if err != nil {
		s.logger.Error("status: count notes failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	orphanCount, err := s.storage.CountOrphans(ctx)
	if err != nil {
		s.logger.Error("status: count orphans failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	indexSize, err := s.index.Size(ctx)
	if err != nil {
		s.logger.Error("status: index size failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"notes":             noteCount,
		"orphans":           orphanCount,
		"vector_index_size": indexSize,
		"tools":             s.registry.Names(),
		"config": map[string]interface{}{
			"vector_index_type": s.index.Type(),
			"dimensions":        s.config.Vector.Dimensions,
			"segmenter_enabled": s.config.Segmenter.Enabled,
			"chunk_size":        s.config.Segmenter.ChunkSize,
			"chunk_overlap":     s.config.Segmenter.ChunkOverlap,
			"database_path":     s.config.Storage.DatabasePath,
			"retrieval_top_k":   s.config.Answer.TopK,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
