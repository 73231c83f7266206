package ai

import (
	"fmt"
	"strings"
)

const (
	DefaultDialect   = "MySQL 8"
	DefaultMaxRows   = 1000
	DefaultQuoteChar = "`"
)

// PromptOptions tunes the system prompt. Zero values fall back to the
// defaults above.
type PromptOptions struct {
	Dialect   string
	MaxRows   int
	QuoteChar string
}

func (o PromptOptions) withDefaults() PromptOptions {
	if strings.TrimSpace(o.Dialect) == "" {
		o.Dialect = DefaultDialect
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.QuoteChar == "" {
		o.QuoteChar = DefaultQuoteChar
	}
	return o
}

// BuildSystemPrompt constructs the system prompt for SQL generation. The
// schema is embedded verbatim; the same inputs always give the same prompt.
func BuildSystemPrompt(schema string, dialect string) string {
	return BuildSystemPromptWith(schema, PromptOptions{Dialect: dialect})
}

func BuildSystemPromptWith(schema string, opts PromptOptions) string {
	opts = opts.withDefaults()
	openQ, closeQ := opts.QuoteChar, opts.QuoteChar
	if openQ == "[" {
		closeQ = "]"
	}

	var promptBuilder strings.Builder
	promptBuilder.WriteString(fmt.Sprintf("You are an SQL expert who converts natural language requests into SQL queries for %s.\n", opts.Dialect))
	promptBuilder.WriteString("You have access to the complete database schema below.\n\n")
	promptBuilder.WriteString("IMPORTANT:\n")
	promptBuilder.WriteString("- Generate ONLY SELECT queries (no INSERT, UPDATE, DELETE, DROP, etc.)\n")
	promptBuilder.WriteString(fmt.Sprintf("- Use %s syntax\n", opts.Dialect))
	promptBuilder.WriteString("- Optimize queries with appropriate indexes\n")
	promptBuilder.WriteString("- Use JOIN instead of subqueries when possible\n")
	promptBuilder.WriteString(fmt.Sprintf("- Limit results to a maximum of %d rows with LIMIT\n", opts.MaxRows))
	promptBuilder.WriteString("- Return ONLY the SQL code, without additional explanations in the code itself\n")
	promptBuilder.WriteString("- You can add a comment before the query to explain your reasoning\n")
	promptBuilder.WriteString(fmt.Sprintf("- Add %s to the table names (%stable%s)\n", quoteName(openQ), openQ, closeQ))
	promptBuilder.WriteString("\nDDL statements:\n")
	promptBuilder.WriteString(schema)
	promptBuilder.WriteString("\n\nAnswer with the SQL query and optionally a brief explanation before the code.")

	return promptBuilder.String()
}

func quoteName(q string) string {
	switch q {
	case "`":
		return "backticks"
	case `"`:
		return "double quotes"
	case "[":
		return "square brackets"
	default:
		return q
	}
}
