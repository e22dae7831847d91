package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WARN, false)
	logger.SetOutput(&buf)

	logger.Debug("not shown")
	logger.Info("not shown either")
	logger.Warn("visible warning")
	logger.Error("visible error")

	out := buf.String()
	if strings.Contains(out, "not shown") {
		t.Errorf("Low-level lines leaked through: %s", out)
	}
	if !strings.Contains(out, "visible warning") || !strings.Contains(out, "visible error") {
		t.Errorf("Expected warn and error lines, got: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	logger.Info("ownership updated", map[string]interface{}{"resource": "billing-db", "action": "accept_proposed"})

	var entry struct {
		Timestamp string                 `json:"timestamp"`
		Level     string                 `json:"level"`
		Message   string                 `json:"message"`
		Fields    map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log line as JSON: %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "ownership updated" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if entry.Fields["resource"] != "billing-db" {
		t.Errorf("Expected resource field, got %v", entry.Fields)
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	scoped := logger.WithField("component", "pruner")
	scoped.Info("pass complete")

	if !strings.Contains(buf.String(), `"component":"pruner"`) {
		t.Errorf("Expected component field on every line, got: %s", buf.String())
	}

	// The parent logger is unchanged.
	buf.Reset()
	logger.Info("plain line")
	if strings.Contains(buf.String(), "pruner") {
		t.Errorf("Parent logger picked up child fields: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
