// Package audit appends one line per validated generation to a log file:
//
//	[2006-01-02 15:04:05] User: <id> | Natural: <text> | SQL: <sql> | Usage: <json>
//
// Line breaks inside fields are replaced by spaces so every generation stays
// on a single line.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"llmquery/models"
)

const timeLayout = "2006-01-02 15:04:05"

type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// New opens path for appending, creating it and its directory if needed.
func New(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Logger{file: f}, nil
}

func (l *Logger) Log(entry models.AuditEntry) error {
	line := FormatLine(entry)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// FormatLine renders entry as a newline-terminated audit line.
func FormatLine(entry models.AuditEntry) string {
	return fmt.Sprintf("[%s] User: %s | Natural: %s | SQL: %s | Usage: %s\n",
		entry.Time.Format(timeLayout),
		flatten(entry.UserID),
		flatten(entry.NaturalQuery),
		flatten(entry.SQL),
		usageJSON(entry.Usage),
	)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func flatten(s string) string {
	return lineBreaks.Replace(s)
}

func usageJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return flatten(string(raw))
	}
	if s := buf.String(); s != "null" && s != "{}" && s != "[]" {
		return s
	}
	return ""
}
