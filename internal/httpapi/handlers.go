// ABOUTME: Route handlers for generation, improvement, retrieval, history and samples
// ABOUTME: Each handler runs one pipeline operation per request
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/agents"
	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/models"
)

type generateRequest struct {
	Text    string `json:"text" validate:"required,max=10000"`
	Improve bool   `json:"improve"`
	// Save defaults to true
	Save *bool `json:"save"`
}

type generateResponse struct {
	Result *core.Result `json:"result"`
	Case   *models.Case `json:"case,omitempty"`
	// Set when the optional improvement failed; the base result is still saved
	ImprovementError string `json:"improvement_error,omitempty"`
	FailedStage      string `json:"failed_stage,omitempty"`
}

type ragRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
	TopK int    `json:"top_k" validate:"gte=0,lte=50"`
}

type listQuery struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type samplesQuery struct {
	N int `json:"n" validate:"gte=0,lte=20"`
}

type samplesResponse struct {
	Samples    []string           `json:"samples"`
	Diagnostic *agents.Diagnostic `json:"diagnostic,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.pipeline.Run(r.Context(), req.Text)
	if err != nil {
		s.handleServiceError(w, err, result)
		return
	}

	resp := generateResponse{Result: result}
	if req.Improve {
		if im, err := s.pipeline.Improve(r.Context(), result); err != nil {
			s.logger.Warn("improvement failed, keeping base result", zap.Error(err))
			resp.ImprovementError = err.Error()
			if im != nil {
				resp.FailedStage = im.FailedStage
			}
		}
	}

	if req.Save == nil || *req.Save {
		saved, err := s.pipeline.Save(r.Context(), result)
		if err != nil {
			s.handleServiceError(w, err, result)
			return
		}
		resp.Case = &saved
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImprove(w http.ResponseWriter, r *http.Request) {
	id, ok := caseID(w, r)
	if !ok {
		return
	}

	c, err := s.cases.Get(r.Context(), id)
	if err != nil {
		s.handleServiceError(w, err, nil)
		return
	}
	if c.HasImprovement() {
		writeError(w, http.StatusConflict, fmt.Sprintf("case %d already has an improved revision", id))
		return
	}

	result := core.ResultFromCase(*c)
	if _, err := s.pipeline.Improve(r.Context(), result); err != nil {
		s.handleServiceError(w, err, result)
		return
	}

	saved, err := s.pipeline.Save(r.Context(), result)
	if err != nil {
		s.handleServiceError(w, err, result)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Result: result, Case: &saved})
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TopK == 0 {
		req.TopK = s.defaultTopK
	}

	result, err := s.pipeline.RunRAG(r.Context(), req.Text, req.TopK)
	if err != nil {
		s.handleServiceError(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	q := listQuery{Date: r.URL.Query().Get("date")}
	if !s.check(w, q) {
		return
	}

	var (
		cases []models.Case
		err   error
	)
	if q.Date != "" {
		cases, err = s.cases.ListByDate(r.Context(), q.Date)
	} else {
		cases, err = s.cases.ListAll(r.Context())
	}
	if err != nil {
		s.handleServiceError(w, err, nil)
		return
	}
	if cases == nil {
		cases = []models.Case{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"cases": cases, "count": len(cases)})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id, ok := caseID(w, r)
	if !ok {
		return
	}

	c, err := s.cases.Get(r.Context(), id)
	if err != nil {
		s.handleServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	var q samplesQuery
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "n must be an integer")
			return
		}
		q.N = n
	}
	if !s.check(w, q) {
		return
	}

	samples, diag, err := s.pipeline.Agents().Samples.Samples(r.Context(), q.N)
	if err != nil {
		s.handleServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, samplesResponse{Samples: samples, Diagnostic: diag})
}

func caseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "caseId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "case id must be a positive integer")
		return 0, false
	}
	return id, true
}
