// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 OpenCloudMesh Authors

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MahdiBaghbani/busyday-go/internal/components/api"
	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) api.ErrorEnvelope {
	t.Helper()
	var envelope api.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return envelope
}

func TestWriteError_EnvelopeShape(t *testing.T) {
	w := httptest.NewRecorder()

	api.WriteError(w, http.StatusConflict, scheduling.ReasonDayBusy, "selected day is already busy")

	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	envelope := decodeEnvelope(t, w)
	if envelope.Error.Code != "Conflict" {
		t.Errorf("expected code 'Conflict', got %q", envelope.Error.Code)
	}
	if envelope.Error.ReasonCode != scheduling.ReasonDayBusy {
		t.Errorf("expected reason_code %q, got %q", scheduling.ReasonDayBusy, envelope.Error.ReasonCode)
	}
	if envelope.Error.Message != "selected day is already busy" {
		t.Errorf("unexpected message: %q", envelope.Error.Message)
	}
}

func TestWriteError_StableReasonCodes(t *testing.T) {
	// Clients match on these strings.
	codes := map[string]string{
		"unauthenticated":   api.ReasonUnauthenticated,
		"rate_limited":      api.ReasonRateLimited,
		"not_found":         api.ReasonNotFound,
		"internal_error":    api.ReasonInternalError,
		"invalid_date":      scheduling.ReasonInvalidDate,
		"past_date":         scheduling.ReasonPastDate,
		"duplicate_date":    scheduling.ReasonDuplicateDate,
		"not_friends":       scheduling.ReasonNotFriends,
		"day_busy":          scheduling.ReasonDayBusy,
		"date_not_proposed": scheduling.ReasonDateNotProposed,
	}

	for expected, actual := range codes {
		if actual != expected {
			t.Errorf("reason code constant changed: expected %q, got %q", expected, actual)
		}
	}
}

func TestWriteSchedulingError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"bad request", &scheduling.Error{Kind: scheduling.KindBadRequest, Reason: scheduling.ReasonPastDate, Message: "past"}, 400, scheduling.ReasonPastDate},
		{"forbidden", &scheduling.Error{Kind: scheduling.KindForbidden, Reason: scheduling.ReasonNotFriends, Message: "forbidden"}, 403, scheduling.ReasonNotFriends},
		{"not found", &scheduling.Error{Kind: scheduling.KindNotFound, Reason: scheduling.ReasonInvitationNotFound, Message: "invitation not found"}, 404, scheduling.ReasonInvitationNotFound},
		{"conflict wrapped", fmt.Errorf("accept: %w", &scheduling.Error{Kind: scheduling.KindConflict, Reason: scheduling.ReasonDayBusy, Message: "busy"}), 409, scheduling.ReasonDayBusy},
		{"foreign error", context.DeadlineExceeded, 500, api.ReasonInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.WriteSchedulingError(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decodeEnvelope(t, w).Error.ReasonCode; got != tt.wantReason {
				t.Errorf("reason_code = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestWriteSchedulingError_InternalHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteSchedulingError(w, &scheduling.Error{
		Kind:    scheduling.KindInternal,
		Reason:  scheduling.ReasonInternal,
		Message: "accept invitation failed",
		Err:     errors.New("UNIQUE constraint failed: busydays.user_id, busydays.date"),
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "UNIQUE") || strings.Contains(w.Body.String(), "busydays") {
		t.Errorf("storage details leaked: %s", w.Body.String())
	}
}

func TestWriteUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteUnauthorized(w, api.ReasonTokenExpired, "token has expired")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Errorf("expected Bearer challenge, got %q", w.Header().Get("WWW-Authenticate"))
	}
	if got := decodeEnvelope(t, w).Error.ReasonCode; got != api.ReasonTokenExpired {
		t.Errorf("expected reason_code %q, got %q", api.ReasonTokenExpired, got)
	}
}

func TestWriteTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteTooManyRequests(w, "too many requests")

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
	if got := decodeEnvelope(t, w).Error.ReasonCode; got != api.ReasonRateLimited {
		t.Errorf("expected reason_code %q, got %q", api.ReasonRateLimited, got)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		pinger api.Pinger
		want   int
		status string
	}{
		{"no pinger", nil, http.StatusOK, "ok"},
		{"healthy store", pingFunc(func(context.Context) error { return nil }), http.StatusOK, "ok"},
		{"store down", pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.NewHealthHandler(tt.pinger)(w, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var resp api.HealthResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Status != tt.status {
				t.Errorf("body status = %q, want %q", resp.Status, tt.status)
			}
		})
	}
}
