package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloo-solutions/wizvec/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// DecodeJSON reads an optional JSON body of at most limit bytes into v. An
// empty body leaves v untouched. Oversized or malformed bodies are returned
// as VALIDATION_ERROR domain errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any, limit int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if limit > 0 {
		if r.ContentLength > limit {
			return bodyTooLarge(&http.MaxBytesError{Limit: limit})
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return bodyTooLarge(tooLarge)
		default:
			return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid request body", err)
		}
	}
	return nil
}

func bodyTooLarge(err *http.MaxBytesError) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
		fmt.Sprintf("request body exceeds %d bytes", err.Limit), err)
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeRunInProgress:
		return http.StatusConflict
	// The snapshot lives in an upstream store we could not read.
	case domain.ErrCodeSourceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the error with its status and domain code.
func HandleError(w http.ResponseWriter, err error) {
	JSON(w, DomainErrorToHTTP(err), ErrorResponse{Error: err.Error(), Code: domain.ErrorCode(err)})
}
