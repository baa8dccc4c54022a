// internal/logging/logging_test.go
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testStringer string

func (s testStringer) String() string { return string(s) }

func TestInitAndLoggingToFile(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "nested", "hrdesk.log")

	if err := Init(logPath); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
	})

	LogEvent("hello %s", "world")
	LogAccess("POST", "/chats", "127.0.0.1:9999", 200, 12)
	_ = Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "hello world") {
		t.Fatalf("expected LogEvent content, got: %s", content)
	}
	if !strings.Contains(content, "[ACCESS] POST /chats remote=127.0.0.1:9999 status=200 duration_ms=12") {
		t.Fatalf("expected access log line, got: %s", content)
	}
}

func TestBuildRequestMessageDefaults(t *testing.T) {
	msg := buildRequestMessage(" send ", " ", "", " embeddings ", map[string]any{"ok": true})
	if !strings.Contains(msg, "[SEND]") {
		t.Fatalf("expected uppercased direction, got: %s", msg)
	}
	if !strings.Contains(msg, "host=unknown") {
		t.Fatalf("expected default host, got: %s", msg)
	}
	if !strings.Contains(msg, "deployment=unknown") {
		t.Fatalf("expected default deployment, got: %s", msg)
	}
	if !strings.Contains(msg, "operation=embeddings") {
		t.Fatalf("expected operation name, got: %s", msg)
	}
	if !strings.Contains(msg, "payload={\"ok\":true}") {
		t.Fatalf("expected payload json, got: %s", msg)
	}
}

func TestFormatPayloadVariants(t *testing.T) {
	if got := formatPayload(nil); got != "null" {
		t.Fatalf("nil payload: %s", got)
	}
	if got := formatPayload(" "); got != `""` {
		t.Fatalf("empty string payload: %s", got)
	}
	if got := formatPayload([]byte("hi")); got != "hi" {
		t.Fatalf("byte payload: %s", got)
	}
	if got := formatPayload(testStringer("ok")); got != "ok" {
		t.Fatalf("stringer payload: %s", got)
	}
}

func TestReinitClosesPreviousFile(t *testing.T) {
	tempDir := t.TempDir()
	first := filepath.Join(tempDir, "first.log")
	second := filepath.Join(tempDir, "second.log")

	if err := Init(first); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if err := Init(second); err != nil {
		t.Fatalf("re-Init error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
	})

	LogEvent("after reinit")
	_ = Close()

	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "after reinit") {
		t.Fatalf("expected event in second log, got: %s", data)
	}
	firstData, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first log: %v", err)
	}
	if strings.Contains(string(firstData), "after reinit") {
		t.Fatalf("first log should not receive events after reinit: %s", firstData)
	}
}
