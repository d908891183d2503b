package logging

import (
	"fmt"
	"regexp"
)

// Redactor masks credentials in log fields so that tokens and upstream
// API keys never reach log storage.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern is one compiled regex and its replacement.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*redactPattern{
			{
				name:        "api_key",
				regex:       regexp.MustCompile(`(sk-[a-zA-Z0-9]+|api[-_]?key[-_:]\s*[a-zA-Z0-9]+)`),
				replacement: "sk-***",
			},
			{
				name:        "bearer_token",
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			{
				name:        "client_token",
				regex:       regexp.MustCompile(`tok-[a-zA-Z0-9\-]+`),
				replacement: "tok-***",
			},
		},
	}
}

// RedactString applies every pattern to the input.
func (r *Redactor) RedactString(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// RedactArgs redacts string values in a slog key/value argument list.
// Keys and non-string values pass through unchanged.
func (r *Redactor) RedactArgs(args ...any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		// Even indexes are keys in well-formed slog arg lists.
		if i%2 == 0 {
			out[i] = arg
			continue
		}
		switch v := arg.(type) {
		case string:
			out[i] = r.RedactString(v)
		case error:
			out[i] = fmt.Errorf("%s", r.RedactString(v.Error()))
		default:
			out[i] = arg
		}
	}
	return out
}
