package database

import (
	"strconv"
	"strings"
)

// Dialect adapts statements written with `?` placeholders to a driver.
type Dialect struct {
	numbered bool
}

// DialectFor reports the placeholder style of a database/sql driver name.
func DialectFor(driver string) Dialect {
	switch driver {
	case "pgx", "postgres":
		return Dialect{numbered: true}
	default:
		return Dialect{}
	}
}

// Rebind rewrites `?` placeholders as `$1..$n` for numbered dialects.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
