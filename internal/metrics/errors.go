package metrics

import (
	"strings"
	"unicode"
)

var friendlyAliases = map[string]string{
	"runner.HTTPError":              "HTTP error response",
	"url.Error":                     "Request URL error",
	"net.OpError":                   "Network error",
	"context.deadlineExceededError": "Context deadline exceeded",
	"errors.errorString":            "Error",
	"fmt.wrapError":                 "Wrapped error",
}

// FriendlyErrorName turns a %T error type name, as stored in the error
// breakdown, into a label suitable for reports.
func FriendlyErrorName(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "Unknown error"
	}
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	if alias, ok := friendlyAliases[name]; ok {
		return alias
	}

	pkg, typ := "", name
	if idx := strings.Index(name, "."); idx != -1 {
		pkg, typ = name[:idx], name[idx+1:]
	}
	pretty := splitCamel(typ)
	if pkg == "" || pkg == "main" {
		return pretty
	}
	return pretty + " (" + pkg + ")"
}

// splitCamel inserts spaces at camel-case boundaries and capitalises the
// first letter: "deadlineExceededError" -> "Deadline Exceeded Error".
func splitCamel(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
