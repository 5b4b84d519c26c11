package server

import (
	"encoding/json"
	"net/http"

	"github.com/matzehuels/text2block/pkg/errors"
)

type errorResponse struct {
	Error      string       `json:"error"`
	Code       errors.Code  `json:"code"`
	Stage      errors.Stage `json:"stage,omitempty"`
	Attempts   int          `json:"attempts,omitempty"`
	Diagnostic string       `json:"diagnostic,omitempty"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRetryBudgetExhausted, errors.ErrCodeRenderFailure:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeMalformedOutput, errors.ErrCodeCollaborator:
		return http.StatusBadGateway
	case errors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), errorResponse{
		Error:      errors.UserMessage(err),
		Code:       code,
		Stage:      errors.StageOf(err),
		Attempts:   errors.AttemptsOf(err),
		Diagnostic: errors.DiagnosticOf(err),
	})
}
