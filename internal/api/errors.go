package api

import (
	"encoding/json"
	"errors"
	"modelhub/internal/logger"
	"modelhub/internal/service"
	"net/http"
)

var errorStatusMap = map[error]int{
	service.ErrValidation:   http.StatusBadRequest,
	service.ErrUnauthorized: http.StatusUnauthorized,
	service.ErrForbidden:    http.StatusForbidden,
	service.ErrNotFound:     http.StatusNotFound,
	service.ErrConflict:     http.StatusConflict,
	service.ErrUnavailable:  http.StatusServiceUnavailable,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError maps a service error to its status. Unclassified errors are
// logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	message := service.Message(err)

	switch {
	case status == http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error().Err(err).Msg("request failed")
		message = "internal server error"
	case status == http.StatusServiceUnavailable:
		logger.FromContext(r.Context()).Warn().Err(err).Msg("dependency unavailable")
		w.Header().Set("Retry-After", "1")
	}
	if message == "" {
		message = http.StatusText(status)
	}

	writeMessage(w, status, message)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &service.Error{Kind: service.ErrValidation, Message: "invalid request body", Err: err}
	}
	return nil
}
