package querystore

import "strings"

// Substitute replaces every :name placeholder equal to placeholder (e.g.
// ":mid_list") with literal. Text inside quoted literals, quoted identifiers
// and -- comments is left alone, so formats like 'HH24:MI:SS' survive.
// The literal is inserted verbatim.
// No escaping is applied; callers pass validated ids or operator input only.
func Substitute(query, placeholder, literal string) string {
	return SubstituteAll(query, map[string]string{placeholder: literal})
}

// SubstituteAll replaces each placeholder in params in a single pass. Empty
// values are skipped so their placeholders stay in the text. Placeholders
// match whole names, so ":start" never clobbers ":start_time".
func SubstituteAll(query string, params map[string]string) string {
	var b strings.Builder
	b.Grow(len(query))
	last := 0
	scanPlaceholders(query, func(p string, at int) {
		v := params[p]
		if v == "" {
			return
		}
		b.WriteString(query[last:at])
		b.WriteString(v)
		last = at + len(p)
	})
	b.WriteString(query[last:])
	return b.String()
}

// Placeholders returns the distinct :name placeholders of query in order of
// first appearance. Casts such as ::int and text inside quotes or comments
// are not placeholders.
func Placeholders(query string) []string {
	seen := map[string]bool{}
	var out []string
	scanPlaceholders(query, func(p string, _ int) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	})
	return out
}

// scanPlaceholders calls fn with each placeholder and its byte offset.
// Single-quoted literals ('' escapes), double-quoted identifiers and
// -- line comments are skipped.
func scanPlaceholders(query string, fn func(p string, at int)) {
	for i := 0; i < len(query); i++ {
		switch ch := query[i]; {
		case ch == '\'' || ch == '"':
			for i++; i < len(query); i++ {
				if query[i] != ch {
					continue
				}
				if i+1 < len(query) && query[i+1] == ch {
					i++
					continue
				}
				break
			}
		case ch == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case ch == ':':
			if i+1 < len(query) && query[i+1] == ':' {
				i++ // cast
				continue
			}
			if i > 0 && query[i-1] == ':' {
				continue
			}
			j := i + 1
			for j < len(query) && isNameByte(query[j], j == i+1) {
				j++
			}
			if j > i+1 {
				fn(query[i:j], i)
				i = j - 1
			}
		}
	}
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

// IsListPlaceholder reports whether p expects a QuoteList fragment.
func IsListPlaceholder(p string) bool {
	return strings.HasSuffix(p, "_list") || strings.HasSuffix(p, "_ids")
}

// Quote wraps s in single quotes.
func Quote(s string) string {
	return "'" + s + "'"
}

// QuoteList renders ids as a comma-joined list of quoted literals for an
// IN clause: 'a','b','c'.
func QuoteList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = Quote(id)
	}
	return strings.Join(quoted, ",")
}
