// ABOUTME: JSON response helpers and domain error to status mapping
// ABOUTME: Request bodies are decoded strictly and validated with struct tags
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/agents"
	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/retrieval"
	"github.com/harper/mwgen/internal/storage/sqlite"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx response
type errorResponse struct {
	Error       string `json:"error"`
	FailedStage string `json:"failed_stage,omitempty"`
	Result      any    `json:"result,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body into dst and validates it
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return s.check(w, dst)
}

// check validates v and writes a 400 on failure
func (s *Server) check(w http.ResponseWriter, v any) bool {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			writeError(w, http.StatusBadRequest, "validation failed: "+strings.Join(msgs, ", "))
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var stageErr *core.StageError
	switch {
	case errors.Is(err, agents.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrAlreadyImproved), errors.Is(err, core.ErrEmptyStore):
		return http.StatusConflict
	case errors.Is(err, core.ErrIncompleteResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, retrieval.ErrIndexUnavailable), llm.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &stageErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError converts service errors to appropriate HTTP responses, attaching any partial result
func (s *Server) handleServiceError(w http.ResponseWriter, err error, partial any) {
	status := statusFor(err)
	if v := reflect.ValueOf(partial); partial != nil && v.Kind() == reflect.Pointer && v.IsNil() {
		partial = nil
	}
	body := errorResponse{Error: err.Error(), Result: partial}

	var stageErr *core.StageError
	if errors.As(err, &stageErr) {
		body.FailedStage = stageErr.Stage
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}
