package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
	"github.com/matzehuels/text2block/pkg/history"
	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
)

type analyzeRequest struct {
	Prompt  string `json:"prompt"`
	Refresh bool   `json:"refresh,omitempty"`
}

type analyzeResponse struct {
	Flowchart   string           `json:"flowchart"`
	Format      render.Format    `json:"format"`
	MIMEType    string           `json:"mime_type"`
	Explanation string           `json:"explanation"`
	Details     []explain.Detail `json:"details,omitempty"`
	Description string           `json:"description"`
	Attempts    int              `json:"attempts"`
	RequestID   string           `json:"request_id"`
	Cached      bool             `json:"cached"`
}

// handleAnalyze is POST /api/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if err := errors.ValidateIntent(req.Prompt); err != nil {
		writeError(w, err)
		return
	}

	dir, err := os.MkdirTemp(s.tempDir, "text2block-*")
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "create request directory"))
		return
	}
	defer os.RemoveAll(dir)

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	dest := render.NewFileDestination(filepath.Join(dir, "diagram."+string(s.format)))
	res, err := s.runner.Execute(ctx, pipeline.Options{
		Intent:  req.Prompt,
		Dest:    dest,
		Refresh: req.Refresh,
	})
	if err != nil {
		s.logger.Warn("analyze failed",
			"code", errors.GetCode(err),
			"stage", errors.StageOf(err),
			"attempts", errors.AttemptsOf(err),
			"request_id", middleware.GetReqID(r.Context()))
		writeError(w, err)
		return
	}

	data, err := os.ReadFile(dest.Location())
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "read artifact"))
		return
	}

	id := res.RecordID
	if id == "" {
		id = middleware.GetReqID(r.Context())
	}
	format := res.Artifact.Format
	writeJSON(w, http.StatusOK, analyzeResponse{
		Flowchart:   base64.StdEncoding.EncodeToString(data),
		Format:      format,
		MIMEType:    format.MIMEType(),
		Explanation: res.Explanation.Overview,
		Details:     res.Explanation.Details,
		Description: res.Description.String(),
		Attempts:    len(res.Attempts),
		RequestID:   id,
		Cached:      res.Cached,
	})
}

// handleListHistory is GET /api/history.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := s.runner.History.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*history.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleGetHistory is GET /api/history/{id}.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateRecordID(id); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.runner.History.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleHealth is GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
