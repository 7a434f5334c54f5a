package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pilotd/internal/errs"
	"pilotd/internal/gate"
)

func TestCallerID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	if got := callerID(r); got != gate.AnonymousUser {
		t.Fatalf("callerID without header = %q, want %q", got, gate.AnonymousUser)
	}

	r.Header.Set(userHeader, "alice@example.com")
	if got := callerID(r); got != "alice@example.com" {
		t.Fatalf("callerID = %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid session", err: errs.InvalidSession("nope"), want: http.StatusUnauthorized},
		{name: "validation", err: errs.Validation("bad field"), want: http.StatusBadRequest},
		{name: "rate limited", err: errs.RateLimited("slow down"), want: http.StatusTooManyRequests},
		{name: "permission denied", err: errs.PermissionDenied("no role"), want: http.StatusForbidden},
		{name: "not found", err: errs.ErrNotFound, want: http.StatusNotFound},
		{name: "service unavailable", err: errs.ServiceUnavailable("down"), want: http.StatusServiceUnavailable},
		{name: "anything else", err: errs.ErrUnexpected, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"message": "hi", "admin": true}`))

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err == nil {
		t.Fatal("decodeJSON accepted unknown fields")
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	respondError(w, http.StatusForbidden, errs.PermissionDenied("no role"))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "permission denied") {
		t.Fatalf("body = %q", w.Body.String())
	}
}
