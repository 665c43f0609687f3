// Package logging provides the append-only audit trail for queries the
// dispatcher could not route. Events are structured JSONL for offline
// product review; they are never surfaced to the user beyond the canned
// "can't do that" reply.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	// AuditUnhandledAction records an (action, entity type) pair with no handler.
	AuditUnhandledAction AuditEventType = "unhandled_action"
	// AuditUnknownEntity records a query whose subject could not be typed.
	AuditUnknownEntity AuditEventType = "unknown_entity"
	// AuditAnalyzerExhausted records a query the analyzer gave up on.
	AuditAnalyzerExhausted AuditEventType = "analyzer_exhausted"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp int64          `json:"ts"` // unix milliseconds
	Type      AuditEventType `json:"type"`
	UserID    string         `json:"user_id"`
	Query     string         `json:"query"`
	Action    string         `json:"action,omitempty"`
	Entity    string         `json:"entity,omitempty"`
	Detail    string         `json:"detail,omitempty"`
}

// AuditLog appends structured events to a JSONL file. Safe for concurrent
// use. A nil *AuditLog is a valid no-op sink.
type AuditLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenAudit opens (creating if needed) the audit log at path.
func OpenAudit(path string) (*AuditLog, error) {
	if path == "" {
		return nil, fmt.Errorf("audit path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{path: path, file: f}, nil
}

// Record appends one event. Errors are swallowed: the audit log is
// best-effort and must never fail a user turn.
func (a *AuditLog) Record(ev AuditEvent) {
	if a == nil {
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(append(line, '\n'))
}

// Close flushes and closes the underlying file.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
