package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// Error response codes.
const (
	codeBadRequest     = "bad_request"
	codeValidation     = "validation_failed"
	codeNotFound       = "not_found"
	codeProviderError  = "provider_error"
	codeNotImplemented = "not_implemented"
	codeInternalError  = "internal_error"
	codeUnauthorized   = "unauthorized"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelStatus maps a domain sentinel to its HTTP status and code.
type sentinelStatus struct {
	sentinel error
	status   int
	code     string
}

var sentinelStatuses = []sentinelStatus{
	{domain.ErrKnowledgeNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrIndexNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrValidation, http.StatusBadRequest, codeValidation},
	{domain.ErrNoDocuments, http.StatusBadRequest, codeValidation},
	{domain.ErrEmbeddingProvider, http.StatusBadGateway, codeProviderError},
	{domain.ErrCompletionProvider, http.StatusBadGateway, codeProviderError},
	{domain.ErrNotImplemented, http.StatusNotImplemented, codeNotImplemented},
}

// handleDomainError maps a usecase error onto the HTTP surface. Unrecognized
// errors become opaque 500s; the detail stays in the server log.
func handleDomainError(w http.ResponseWriter, err error) {
	for _, m := range sentinelStatuses {
		if errors.Is(err, m.sentinel) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
