package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesJSONLineWithFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("session.status", map[string]any{
		"session_id": "s-1",
		"status":     "running",
	})

	line := strings.TrimSpace(buf.String())
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode log json %q: %v", line, err)
	}
	if payload["session_id"] != "s-1" {
		t.Fatalf("expected session_id field, got %v", payload["session_id"])
	}
	if payload["status"] != "running" {
		t.Fatalf("expected status field, got %v", payload["status"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts field in %v", payload)
	}
}

func TestSetLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	SetLevel("info")
	Debug("noisy", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be suppressed, got %q", buf.String())
	}
}
