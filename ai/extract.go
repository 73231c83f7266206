package ai

import (
	"regexp"
	"strings"

	"llmquery/models"
)

var (
	sqlFence     = regexp.MustCompile("(?is)```sql\\b\\s*(.*?)\\s*```")
	selectFence  = regexp.MustCompile("(?is)```\\s*(SELECT.*?)\\s*```")
	bareSelect   = regexp.MustCompile(`(?is)(SELECT\s+.*?;)`)
	codeOrSelect = regexp.MustCompile("(?i)```|SELECT")
)

// Extract pulls the SQL statement and the explanation out of a model answer.
// It tries, in order: a ```sql fence, a plain fence starting with SELECT, the
// first "SELECT ...;" and finally the whole trimmed answer. It never fails;
// whatever comes out still has to pass validation.
func Extract(raw string) models.ExtractedStatement {
	var sql string
	switch {
	case sqlFence.MatchString(raw):
		sql = sqlFence.FindStringSubmatch(raw)[1]
	case selectFence.MatchString(raw):
		sql = selectFence.FindStringSubmatch(raw)[1]
	case bareSelect.MatchString(raw):
		sql = bareSelect.FindStringSubmatch(raw)[1]
	default:
		sql = raw
	}
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSpace(strings.TrimRight(sql, ";"))

	var explanation string
	if loc := codeOrSelect.FindStringIndex(raw); loc != nil {
		explanation = strings.TrimSpace(raw[:loc[0]])
	}

	return models.ExtractedStatement{SQL: sql, Explanation: explanation}
}
