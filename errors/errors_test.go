package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := InvalidInput("op", nil, "test message")

	if err.Code != http.StatusBadRequest {
		t.Errorf("expected code %d, got %d", http.StatusBadRequest, err.Code)
	}
	if err.Error() != "test message" {
		t.Errorf("expected error string 'test message', got '%s'", err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := Internal("inner", nil, "cause error")
	err := InvalidInput("outer", cause, "test message")

	expected := "test message: cause error"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"not found error", NotFound("op", nil, "not found"), true},
		{"wrapped not found", fmt.Errorf("lookup: %w", NotFound("op", nil, "not found")), true},
		{"nested under internal", Internal("op", NotFound("op", nil, "missing"), "failed"), true},
		{"other error", InvalidInput("op", nil, "bad request"), false},
		{"non-custom error", fmt.Errorf("standard error"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.expected {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestKindCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		kind Kind
		code int
	}{
		{"unauthorized", Unauthorized("op", nil, "x"), KindUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("op", nil, "x"), KindUnauthorized, http.StatusForbidden},
		{"not ready", NotReady("op", nil, "x"), KindNotReady, http.StatusConflict},
		{"storage", Storage("op", nil, "x"), KindStorage, http.StatusInternalServerError},
		{"transient", Transient("op", nil, "x"), KindTransientUpstream, http.StatusBadGateway},
		{"terminal", Terminal("op", nil, "x"), KindTerminalUpstream, http.StatusBadGateway},
		{"malformed", Malformed("op", nil, "x"), KindMalformedResponse, http.StatusBadGateway},
		{"configuration", Configuration("op", nil, "x"), KindConfiguration, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, tt.err.Kind)
			}
			if tt.err.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, tt.err.Code)
			}
		})
	}
}

func TestIsTransientUsesOutermostKind(t *testing.T) {
	if !IsTransient(fmt.Errorf("call: %w", Transient("op", nil, "rate limited"))) {
		t.Error("expected wrapped transient error to be transient")
	}
	if IsTransient(Terminal("op", Transient("op", nil, "rate limited"), "gave up")) {
		t.Error("expected terminal wrapper to hide inner transient error")
	}
	if IsTransient(fmt.Errorf("plain")) {
		t.Error("expected plain error to be terminal")
	}
}

func TestUpstream(t *testing.T) {
	malformed := Malformed("op", nil, "bad json")
	if got := Upstream("ask", malformed); got != malformed {
		t.Errorf("expected malformed error to pass through, got %v", got)
	}

	got := Upstream("ask", Transient("op", nil, "rate limited"))
	if got.Kind != KindTerminalUpstream || got.Code != http.StatusBadGateway {
		t.Errorf("expected terminal upstream failure, got %s/%d", got.Kind, got.Code)
	}
}
