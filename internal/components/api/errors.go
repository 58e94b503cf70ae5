// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 OpenCloudMesh Authors

// Package api provides common HTTP API utilities including error handling.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
)

// Deterministic reason codes for stable error classification.
// These codes should remain stable across versions for client compatibility.
// Scheduling failures carry their own reason codes (scheduling.Reason*).
const (
	// Authentication
	ReasonUnauthenticated = "unauthenticated"
	ReasonTokenExpired    = "token_expired"

	// Rate limiting
	ReasonRateLimited = "rate_limited"

	// Request validation
	ReasonBadRequest   = "bad_request"
	ReasonMissingField = "missing_field"
	ReasonInvalidField = "invalid_field"
	ReasonNotFound     = "not_found"
	ReasonConflict     = "conflict"

	// Server errors
	ReasonInternalError      = "internal_error"
	ReasonServiceUnavailable = "service_unavailable"
)

// ErrorEnvelope is the standard error response format.
// All error responses should use this structure for consistency.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text (e.g., "Forbidden")
	ReasonCode string `json:"reason_code"` // Deterministic reason code
	Message    string `json:"message"`     // Human-readable message
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	WriteJSON(w, statusCode, ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	})
}

// StatusForKind maps a scheduling error kind to an HTTP status.
func StatusForKind(k scheduling.Kind) int {
	switch k {
	case scheduling.KindBadRequest:
		return http.StatusBadRequest
	case scheduling.KindUnauthorized:
		return http.StatusUnauthorized
	case scheduling.KindForbidden:
		return http.StatusForbidden
	case scheduling.KindNotFound:
		return http.StatusNotFound
	case scheduling.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteSchedulingError renders an error returned by the scheduling engine or
// aggregator. Only the safe Message is rendered; the cause was logged by the caller.
func WriteSchedulingError(w http.ResponseWriter, err error) {
	var se *scheduling.Error
	if !errors.As(err, &se) {
		WriteInternalError(w, "internal error")
		return
	}
	status := StatusForKind(se.Kind)
	if status == http.StatusInternalServerError {
		WriteInternalError(w, "internal error")
		return
	}
	WriteError(w, status, se.Reason, se.Message)
}

// Common error helpers for frequently used patterns

// WriteUnauthorized writes a 401 Unauthorized error.
func WriteUnauthorized(w http.ResponseWriter, reasonCode, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="busyday"`)
	WriteError(w, http.StatusUnauthorized, reasonCode, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// Be careful not to leak sensitive information in the message.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}
