package validation

import (
	"regexp"
	"strings"
)

// tableAliasPattern finds "<join keyword> [`]table[`] [AS] alias". The
// character after the alias is checked separately so that the next table
// reference is never swallowed by the match.
var tableAliasPattern = regexp.MustCompile("(?i)\\b(FROM|JOIN|LEFT\\s+JOIN|RIGHT\\s+JOIN|INNER\\s+JOIN|OUTER\\s+JOIN|CROSS\\s+JOIN)\\s+`?(\\w+)`?\\s+(?:(AS)\\s+)?(\\w+)")

var nextToken = regexp.MustCompile(`^\s*(\w+|\S)`)

// FixReservedAliases back-quotes table aliases that collide with MySQL
// reserved words, e.g. "JOIN order_item AS order" becomes
// "JOIN `order_item` AS `order`". The table identifier is quoted too.
//
// Aliases written entirely in upper case are left alone: they are assumed to
// be keywords the model meant, not aliases. Without AS, a word that opens a
// clause in that position ("where", "on", "order by", ...) is not an alias.
// Applying the function twice gives the same result as applying it once.
func FixReservedAliases(sql string) string {
	var b strings.Builder
	changed := false
	pos, last := 0, 0

	for pos < len(sql) {
		m := tableAliasPattern.FindStringSubmatchIndex(sql[pos:])
		if m == nil {
			break
		}
		for i := range m {
			if m[i] >= 0 {
				m[i] += pos
			}
		}
		start := m[0]
		keyword := sql[m[2]:m[3]]
		table := sql[m[4]:m[5]]
		hasAS := m[6] >= 0
		aliasStart, aliasEnd := m[8], m[9]
		alias := sql[aliasStart:aliasEnd]

		// An alias that is not rewritten may itself be the next keyword,
		// as in "FROM orders JOIN order_item AS order".
		pos = aliasStart

		if !endsReference(sql, aliasEnd) || !needsQuoting(sql, start, aliasEnd, alias, hasAS) {
			continue
		}

		if !changed {
			b.Grow(len(sql) + 16)
			changed = true
		}
		b.WriteString(sql[last:start])
		b.WriteString(keyword)
		b.WriteString(" `")
		b.WriteString(table)
		b.WriteString("` ")
		if hasAS {
			b.WriteString("AS ")
		}
		b.WriteString("`")
		b.WriteString(alias)
		b.WriteString("`")
		last, pos = aliasEnd, aliasEnd
	}

	if !changed {
		return sql
	}
	b.WriteString(sql[last:])
	return b.String()
}

// endsReference reports whether the alias ending at i is followed by
// whitespace, a comma, a closing parenthesis or the end of the input.
func endsReference(sql string, i int) bool {
	if i >= len(sql) {
		return true
	}
	switch sql[i] {
	case ' ', '\t', '\n', '\r', '\f', '\v', ',', ')':
		return true
	}
	return false
}

func needsQuoting(sql string, start, aliasEnd int, alias string, hasAS bool) bool {
	upper := strings.ToUpper(alias)
	if upper == alias {
		return false
	}
	if !IsReserved(alias) {
		return false
	}
	if !hasAS && opensClause(upper, sql[aliasEnd:]) {
		return false
	}
	return !strings.Contains(sql[start:aliasEnd], "`"+alias+"`")
}

func opensClause(word, rest string) bool {
	follows, ok := clauseKeywords[word]
	if !ok {
		return false
	}
	if follows == nil {
		return true
	}
	m := nextToken.FindStringSubmatch(rest)
	if m == nil {
		return false
	}
	next := strings.ToUpper(m[1])
	for _, f := range follows {
		if next == f {
			return true
		}
	}
	return false
}
