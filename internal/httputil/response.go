package httputil

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Error codes returned alongside messages
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// ErrorResponse represents the standard error response format:
// {"status": "fail", "code": "NOT_FOUND", "message": "Post not found"}
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// Development-only diagnostics
	Error string `json:"error,omitempty"`
	Stack string `json:"stack,omitempty"`
}

// DataResponse wraps a payload as {"status": "success", "data": ...}.
type DataResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// MessageResponse is {"status": "success", "message": ...}.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ListResponse carries a page of results and its metadata.
type ListResponse struct {
	Status       string      `json:"status"`
	Results      int         `json:"results"`
	CurrentPage  int         `json:"currentPage"`
	TotalPages   int         `json:"totalPages"`
	TotalResults int         `json:"totalResults"`
	Data         interface{} `json:"data"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.WithError(err).Warn("[httputil] Failed to encode response")
		}
	}
}

// WriteData writes {"status": "success", "data": data}.
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, DataResponse{Status: StatusSuccess, Data: data})
}

// WriteMessage writes {"status": "success", "message": message}.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, MessageResponse{Status: StatusSuccess, Message: message})
}

// WriteList writes a paginated list envelope.
func WriteList(w http.ResponseWriter, data interface{}, results, page, totalPages, total int) {
	WriteJSON(w, http.StatusOK, ListResponse{
		Status:       StatusSuccess,
		Results:      results,
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalResults: total,
		Data:         data,
	})
}

// WriteError writes an error envelope; status is "fail" for 4xx and "error" for 5xx.
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{
		Status:  envelopeStatus(status),
		Code:    code,
		Message: message,
	})
}

func envelopeStatus(status int) string {
	if status >= 500 {
		return StatusError
	}
	return StatusFail
}

// WriteTooManyRequests writes a 429 error
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, message)
}
