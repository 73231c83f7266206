package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"llmquery/apperrors"
	"llmquery/models"
)

// MaxNaturalQueryLength bounds the natural-language input, in characters.
const MaxNaturalQueryLength = 10000

const (
	ReasonNotSelect       = "only SELECT statements are permitted"
	ReasonTableNotAllowed = "table not permitted"
)

// DefaultForbiddenKeywords are rejected anywhere in a statement.
var DefaultForbiddenKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "INSERT", "UPDATE",
	"ALTER", "CREATE", "GRANT", "REVOKE", "EXEC",
	"EXECUTE", "SCRIPT", "JAVASCRIPT", "<script",
}

var (
	selectPrefix = regexp.MustCompile(`(?i)^SELECT\s+`)
	limitClause  = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
)

// Policy is the security policy applied to every statement before it may be
// executed.
type Policy struct {
	ForbiddenKeywords []string
	// AllowedTablePrefixes, when it has at least one non-empty entry,
	// requires the statement to mention one of them.
	AllowedTablePrefixes []string
}

type keywordRule struct {
	keyword string
	pattern *regexp.Regexp
}

// Validator applies a Policy. Keyword patterns are compiled once, so a
// Validator is safe to share between requests.
type Validator struct {
	keywords []keywordRule
	prefixes []string
}

func NewValidator(policy Policy) *Validator {
	v := &Validator{}
	for _, kw := range policy.ForbiddenKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		v.keywords = append(v.keywords, keywordRule{keyword: kw, pattern: keywordPattern(kw)})
	}
	for _, p := range policy.AllowedTablePrefixes {
		if p = strings.TrimSpace(p); p != "" {
			v.prefixes = append(v.prefixes, strings.ToLower(p))
		}
	}
	return v
}

// keywordPattern matches kw as a whole word, case-insensitively. A word
// boundary is only required on a side where kw starts or ends with a word
// character, so "<script" still matches "<script>".
func keywordPattern(kw string) *regexp.Regexp {
	expr := regexp.QuoteMeta(kw)
	first, _ := utf8.DecodeRuneInString(kw)
	lastRune, _ := utf8.DecodeLastRuneInString(kw)
	if isWordRune(first) {
		expr = `\b` + expr
	}
	if isWordRune(lastRune) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

func isWordRune(r rune) bool {
	return r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// Validate checks sql in order: statement kind, forbidden keywords, table
// prefixes. The first failure decides the verdict. sql is never modified.
func (v *Validator) Validate(sql string) models.ValidationVerdict {
	sql = strings.TrimSpace(sql)

	if !selectPrefix.MatchString(sql) {
		return models.ValidationVerdict{Reason: ReasonNotSelect}
	}

	for _, rule := range v.keywords {
		if rule.pattern.MatchString(sql) {
			return models.ValidationVerdict{Reason: fmt.Sprintf("forbidden keyword: %s", rule.keyword)}
		}
	}

	if len(v.prefixes) > 0 {
		lower := strings.ToLower(sql)
		allowed := false
		for _, p := range v.prefixes {
			if strings.Contains(lower, p) {
				allowed = true
				break
			}
		}
		if !allowed {
			return models.ValidationVerdict{Reason: ReasonTableNotAllowed}
		}
	}

	return models.ValidationVerdict{Valid: true}
}

// Validate is a convenience for one-off checks. Long-lived callers should
// build a Validator once.
func Validate(sql string, policy Policy) models.ValidationVerdict {
	return NewValidator(policy).Validate(sql)
}

// HasLimit reports whether sql carries a numeric LIMIT clause. A missing
// LIMIT is tolerated; nothing appends one.
func HasLimit(sql string) bool {
	return limitClause.MatchString(sql)
}

// CheckNaturalQuery rejects natural-language input that cannot be sent to
// the model.
func CheckNaturalQuery(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return apperrors.New(apperrors.InputError, "natural_query is required")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxNaturalQueryLength {
		return apperrors.New(apperrors.InputError,
			fmt.Sprintf("natural_query is too long (%d characters, max %d)", n, MaxNaturalQueryLength))
	}
	return nil
}
