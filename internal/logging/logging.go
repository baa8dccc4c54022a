// internal/logging/logging.go
// Package logging routes the standard logger to stdout plus an optional
// log file and provides helpers for application events and outbound
// API traffic.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init points the standard logger at stdout and, when logPath is non-empty,
// at an append-only log file as well. Calling Init again closes the
// previous file.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close flushes the log file and restores the standard logger to stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// LogEvent writes a formatted application event to the log.
func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogRequest records one outbound call to a hosted deployment. Direction is
// "send" or "recv"; operation names the API surface (embeddings, chat).
func LogRequest(direction, host, deployment, operation string, payload any) {
	msg := buildRequestMessage(direction, host, deployment, operation, payload)
	log.Println(msg)
}

// LogAccess records one handled HTTP request in a single access-log line.
func LogAccess(method, path, remote string, status int, durationMs int64) {
	log.Printf("[ACCESS] %s %s remote=%s status=%d duration_ms=%d", method, path, remote, status, durationMs)
}

func buildRequestMessage(direction, host, deployment, operation string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	hostValue := strings.TrimSpace(host)
	if hostValue == "" {
		hostValue = "unknown"
	}
	deploymentValue := strings.TrimSpace(deployment)
	if deploymentValue == "" {
		deploymentValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("host=%s", hostValue))
	parts = append(parts, fmt.Sprintf("deployment=%s", deploymentValue))
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, fmt.Sprintf("operation=%s", operation))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
