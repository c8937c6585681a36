// Package httputil provides shared helpers for writing JSON HTTP responses
// and translating domain errors into wire errors.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/sentinel"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps err to an HTTP status and writes a JSON error body.
//
// Coded domain errors drive the status via their code; bare sentinel errors
// get a best-effort mapping. Internal errors never leak their message to
// the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""

	var dErr *dErrors.Error
	switch {
	case errors.As(err, &dErr):
		code = dErr.Code
		message = dErr.Message
	case errors.Is(err, sentinel.ErrNotFound):
		code = dErrors.CodeNotFound
		message = "resource not found"
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrAlreadyUsed):
		code = dErrors.CodeConflict
		message = "conflicting state"
	case errors.Is(err, sentinel.ErrInvalidState):
		code = dErrors.CodeInvariantViolation
		message = "invalid state"
	}

	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}
