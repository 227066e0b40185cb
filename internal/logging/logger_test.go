package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "secret is redacted",
			input:    "Endpoint=sb://ns.servicebus.windows.net/;SharedAccessKey=abc",
			expected: "[REDACTED]",
		},
		{
			name:     "empty secret is still redacted",
			input:    "",
			expected: "[REDACTED]",
		},
		{
			name:     "complex secret is redacted",
			input:    "password123!@#",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Secret(tt.input).String()
			if result != tt.expected {
				t.Errorf("Secret(%q).String() = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSecretGoString(t *testing.T) {
	if got := Secret("SharedAccessKey=xyz").GoString(); got != "[REDACTED]" {
		t.Errorf("Expected [REDACTED] for GoString, got %s", got)
	}
}

func TestRedactReplacesAllOccurrences(t *testing.T) {
	connStr := "Endpoint=sb://ns/;SharedAccessKey=key123"
	msg := "stored " + connStr + " then re-read " + connStr

	redacted := Redact(msg, []string{connStr, ""})
	if strings.Contains(redacted, "key123") {
		t.Errorf("Redact left secret material in: %s", redacted)
	}
	if strings.Count(redacted, "[REDACTED]") != 2 {
		t.Errorf("Expected both occurrences redacted, got: %s", redacted)
	}
}

func TestLoggerDebugMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(false, true, &buf)

	logger.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("Debug output written with debug disabled: %s", buf.String())
	}

	logger = NewWithWriter(true, true, &buf)
	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("Debug output missing with debug enabled: %s", buf.String())
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(false, true, &buf)

	logger.Info("info %d", 1)
	logger.Warn("warn %d", 2)
	logger.Error("error %d", 3)

	out := buf.String()
	for _, want := range []string{"info 1", "warn 2", "error 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output: %s", want, out)
		}
	}
}
