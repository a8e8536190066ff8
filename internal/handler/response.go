package handler

// RESPONSE HELPERS:
// Every JSON endpoint answers with the same envelope:
//
//	{"type": "Success", "errors": [],          "data": {...}}
//	{"type": "Error",   "errors": ["message"], "data": {"code": "bad-signature"}}
//
// Clients branch on "type" and show "errors" to a human. The machine code in
// data.code is stable; the messages are not.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/social-host/internal/apperror"
)

const (
	typeSuccess = "Success"
	typeError   = "Error"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Type   string          `json:"type"`
	Errors []string        `json:"errors"`
	Data   any             `json:"data"`
	Links  map[string]Link `json:"_links,omitempty"`
}

// Link describes one entry of the root document's link directory.
type Link struct {
	Href        string `json:"href"`
	Method      string `json:"method"`
	Description string `json:"description,omitempty"`
}

// errorData is the data member of an Error envelope.
type errorData struct {
	Code apperror.Code `json:"code"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set before the body: once Encode writes, the
// header block is gone and later changes are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeSuccess wraps data in a Success envelope with status 200.
func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		Type:   typeSuccess,
		Errors: []string{},
		Data:   data,
	})
}

// writeError maps a domain error to an HTTP status and sends an Error envelope.
//
// ERROR MAPPING:
// The service layer returns apperror kinds and knows nothing about HTTP.
// This is the single place where a kind becomes a status:
//
//	ErrValidation      → 400
//	ErrConflict        → 400 (duplicate nickname, redirect blocking upload, nothing to clear)
//	ErrUnauthorized    → 401
//	ErrNotFound        → 404
//	ErrPayloadTooLarge → 413
//
// errors.As walks the wrap chain, so an AppError wrapped with fmt.Errorf("...: %w")
// is still found. Anything that is not an AppError is a 500 with a generic
// message: raw errors can carry SQL or file paths.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, Envelope{
			Type:   typeError,
			Errors: []string{"An internal error occurred"},
			Data:   errorData{Code: "internal-error"},
		})
		return
	}

	writeJSON(w, statusFor(err), Envelope{
		Type:   typeError,
		Errors: []string{appErr.Message},
		Data:   errorData{Code: appErr.Code},
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
