package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      New(KindConfig, "invalid listen address"),
			expected: "invalid listen address",
		},
		{
			name:     "message hides cause",
			err:      Wrap(KindProcess, "failed to signal pid 42", errors.New("operation not permitted")),
			expected: "failed to signal pid 42",
		},
		{
			name:     "empty message falls back to cause",
			err:      Wrap(KindTransport, "", errors.New("connection refused")),
			expected: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	err := Wrap(KindRemote, "wrapped", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the original cause")
	}
	if New(KindConfig, "x").Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindUnknown},
		{"direct", Ownership("refusing"), KindOwnership},
		{"wrapped", fmt.Errorf("stop: %w", Process("still alive")), KindProcess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
	if got := Message(fmt.Errorf("outer: %w", Config("bad token"))); got != "bad token" {
		t.Errorf("Message() = %q, want %q", got, "bad token")
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Errorf("Message() = %q, want %q", got, "plain")
	}
	if !Is(Config("x"), KindConfig) {
		t.Error("Is() should match the kind")
	}
}
