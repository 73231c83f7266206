package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name            string
		raw             string
		wantSQL         string
		wantExplanation string
	}{
		{
			name:            "sql fence with explanation",
			raw:             "This joins orders to customers.\n```sql\nSELECT c.name FROM customers c LIMIT 5;\n```\nDone.",
			wantSQL:         "SELECT c.name FROM customers c LIMIT 5",
			wantExplanation: "This joins orders to customers.",
		},
		{
			name:    "upper case fence tag",
			raw:     "```SQL\nselect 1;\n```",
			wantSQL: "select 1",
		},
		{
			name:    "sql fence wins over earlier generic fence",
			raw:     "```\nSELECT 'draft'\n```\n```sql\nSELECT 'final'\n```",
			wantSQL: "SELECT 'final'",
		},
		{
			name:            "generic fence starting with select",
			raw:             "Here you go:\n```\nSELECT * FROM orders\n```",
			wantSQL:         "SELECT * FROM orders",
			wantExplanation: "Here you go:",
		},
		{
			name:            "bare statement ends at first semicolon",
			raw:             "The query is SELECT id FROM orders; and nothing else; really",
			wantSQL:         "SELECT id FROM orders",
			wantExplanation: "The query is",
		},
		{
			name:    "fallback to whole text",
			raw:     "  I cannot answer that.  ",
			wantSQL: "I cannot answer that.",
		},
		{
			name:    "bare select without semicolon falls back",
			raw:     "SELECT * FROM x",
			wantSQL: "SELECT * FROM x",
		},
		{
			name:    "repeated trailing semicolons",
			raw:     "```sql\nSELECT 1;;\n```",
			wantSQL: "SELECT 1",
		},
		{
			name:    "empty",
			raw:     "",
			wantSQL: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.raw)
			assert.Equal(t, tt.wantSQL, got.SQL)
			assert.Equal(t, tt.wantExplanation, got.Explanation)
		})
	}
}

func TestExtractNeverKeepsFenceMarkers(t *testing.T) {
	inputs := []string{
		"```sql\nSELECT a FROM b;\n```",
		"text ```sql SELECT a FROM b``` more",
		"```\nselect a from b;\n```",
	}
	for _, in := range inputs {
		got := Extract(in)
		assert.NotContains(t, got.SQL, "```", "input %q", in)
		assert.NotRegexp(t, `;\s*$`, got.SQL, "input %q", in)
	}
}
