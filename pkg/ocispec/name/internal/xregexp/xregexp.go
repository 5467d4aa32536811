// Package xregexp provides small helpers for building up regular
// expressions from named fragments, and for reading named capture groups
// back out of a match.
package xregexp

import (
	"regexp"
	"strings"
)

// Literal compiles s into a literal regular expression, escaping any regexp
// reserved characters.
func Literal(s string) string {
	return regexp.QuoteMeta(s)
}

// Expression defines a full expression, where each regular expression must
// follow the previous.
func Expression(res ...string) string {
	return strings.Join(res, "")
}

// Optional wraps the expression in a non-capturing group and makes the
// production optional.
func Optional(res ...string) string {
	return Group(Expression(res...)) + `?`
}

// Repeated wraps the regexp in a non-capturing group to get one or more
// matches.
func Repeated(res ...string) string {
	return Group(Expression(res...)) + `+`
}

// Group wraps the regexp in a non-capturing group.
func Group(res ...string) string {
	return `(?:` + Expression(res...) + `)`
}

// Capture wraps the expression in a capturing group.
func Capture(res ...string) string {
	return `(` + Expression(res...) + `)`
}

// Anchored anchors the regular expression by adding start and end
// delimiters.
func Anchored(res ...string) string {
	return `^` + Expression(res...) + `$`
}

// SubmatchCaptures matches target against re and returns its named capture
// groups. The second return value reports whether re matched at all; empty
// captures are omitted from the map.
func SubmatchCaptures(re *regexp.Regexp, target string) (map[string]string, bool) {
	match := re.FindStringSubmatch(target)
	if match == nil {
		return nil, false
	}
	names := re.SubexpNames()
	captures := make(map[string]string, len(names))
	for i, name := range names {
		if i == 0 || name == "" || match[i] == "" {
			continue
		}
		captures[name] = match[i]
	}
	return captures, true
}
