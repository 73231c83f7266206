package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmquery/models"
)

func TestFormatLine(t *testing.T) {
	line := FormatLine(models.AuditEntry{
		Time:         time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		UserID:       "42",
		NaturalQuery: "top 5 customers\nby spend",
		SQL:          "SELECT name\nFROM customers\r\nLIMIT 5",
		Usage:        json.RawMessage("{\n  \"total_tokens\": 15\n}"),
	})
	assert.Equal(t,
		"[2026-05-06 07:08:09] User: 42 | Natural: top 5 customers by spend | SQL: SELECT name FROM customers LIMIT 5 | Usage: {\"total_tokens\":15}\n",
		line)
}

func TestFormatLineWithoutUsage(t *testing.T) {
	for _, usage := range []json.RawMessage{nil, json.RawMessage("null"), json.RawMessage("{}")} {
		line := FormatLine(models.AuditEntry{UserID: "unknown", SQL: "SELECT 1", Usage: usage})
		assert.True(t, strings.HasSuffix(line, "| Usage: \n"), line)
	}
}

func TestLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm_queries.log")

	l, err := New(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Log(models.AuditEntry{Time: time.Now(), UserID: "u", SQL: "SELECT 1"}))
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	l, err = New(path)
	require.NoError(t, err)
	require.NoError(t, l.Log(models.AuditEntry{Time: time.Now(), UserID: "u", SQL: "SELECT 2"}))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Len(t, lines, 11)
	assert.Contains(t, lines[10], "SQL: SELECT 2")
}
