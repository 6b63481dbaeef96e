package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/skuline/catalog-importer/internal/logging"
)

// startImportRequest is the body of POST /api/imports. The file path is
// local to the server: the input file is delivered out of band (shared
// volume, scp), matching the flat-file contract of the pipeline.
type startImportRequest struct {
	File string `json:"file"`
}

type startImportResponse struct {
	BatchID    string `json:"batchId"`
	SourceFile string `json:"sourceFile"`
	StartedAt  string `json:"startedAt"`
}

func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req startImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.File == "" {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	// Fail fast on an unreadable path; the run itself re-checks.
	if _, err := os.Stat(req.File); err != nil {
		writeError(w, http.StatusBadRequest, "file not found: "+req.File)
		return
	}

	batch := s.service.Start(req.File)
	log.Info("import accepted", "batch_id", batch.ID, "file", req.File)

	writeJSON(w, http.StatusAccepted, startImportResponse{
		BatchID:    batch.ID,
		SourceFile: batch.SourceFile,
		StartedAt:  batch.StartedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	recs, err := s.service.History(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("list imports", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list imports")
		return
	}

	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	rec, err := s.service.Report(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unknown batch: "+batchID)
			return
		}
		logging.FromContext(r.Context()).Error("get import", "batch_id", batchID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load import")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
