package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// QueryRequest is the body of POST /api/query. Which fields are read depends on Action.
type QueryRequest struct {
	Action       string `json:"action" example:"generate"`
	NaturalQuery string `json:"natural_query,omitempty" example:"top 5 customers by spend"`
	Execute      bool   `json:"execute,omitempty" example:"true"`
	SQLQuery     string `json:"sql_query,omitempty" example:"SELECT * FROM customers LIMIT 10"`
}

// ExportRequest is the body of POST /api/query/export.
type ExportRequest struct {
	SQLQuery string `json:"sql_query" example:"SELECT * FROM customers LIMIT 10"`
}

// ErrorResponse is the uniform failure payload.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error"`
}

type GenerationRequest struct {
	NaturalQuery string
	Execute      bool
	UserID       string
}

// LLMExchange is one round trip to the completions API. It is the value
// stored in the response cache.
type LLMExchange struct {
	SystemPrompt string          `json:"system_prompt"`
	UserPrompt   string          `json:"user_prompt"`
	Content      string          `json:"content"`
	Usage        json.RawMessage `json:"usage,omitempty"`
	Cached       bool            `json:"-"`
}

type ExtractedStatement struct {
	SQL         string
	Explanation string
}

type ValidationVerdict struct {
	Valid  bool
	Reason string
}

// Row is one result row. Values line up with Columns, and the JSON form keeps
// the database's column order.
type Row struct {
	Columns []string
	Values  []any
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value of the first column named col.
func (r Row) Get(col string) (any, bool) {
	for i, c := range r.Columns {
		if c == col && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// QueryResult holds at most MaxRows rows. RowCount is what the database
// returned before truncation.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"results"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"limited"`
}

type HistoryEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	NaturalQuery string    `json:"natural_query"`
	SQL          string    `json:"sql_query,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type TableStats struct {
	Table    string
	RowCount int64
}

// AuditEntry is one line of the audit log, written after a generation passes
// validation.
type AuditEntry struct {
	Time         time.Time
	UserID       string
	NaturalQuery string
	SQL          string
	Usage        json.RawMessage
}
