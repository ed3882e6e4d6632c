package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/artifact"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

type errorResponse struct {
	Error   string    `json:"error"`
	Mode    engine.ID `json:"mode,omitempty"`
	Advice  string    `json:"advice,omitempty"`
	Details string    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps the error taxonomy to an HTTP status and response body.
func statusFor(err error) (int, errorResponse) {
	resp := errorResponse{Error: err.Error()}

	var unavailable *engine.UnavailableError
	var toolErr *engine.ToolError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &unavailable):
		resp.Mode = unavailable.Mode
		resp.Advice = unavailable.Advice
		return http.StatusConflict, resp
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, resp
	case errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound, resp
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest, resp
	case errors.Is(err, engine.ErrToolNotInstalled):
		return http.StatusConflict, resp
	case errors.Is(err, engine.ErrToolTimeout):
		if errors.As(err, &toolErr) {
			resp.Details = toolErr.Output
		}
		return http.StatusGatewayTimeout, resp
	case errors.Is(err, engine.ErrToolFailed):
		if errors.As(err, &toolErr) {
			resp.Details = toolErr.Output
		}
		return http.StatusBadGateway, resp
	case errors.Is(err, engine.ErrEngineFailure):
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp
	}
	return http.StatusInternalServerError, resp
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, resp := statusFor(err)
	log := s.logger.WithFields(logger.Fields{"request_id": RequestIDFrom(r.Context()), "status": code})
	if code >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Warn("Request rejected")
	}
	writeJSON(w, code, resp)
}
