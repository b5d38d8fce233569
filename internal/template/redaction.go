package template

import (
	"errors"
	"strings"
)

// DefaultRedactedKeywords are the lower case markers after which values in
// worker error output are masked before they are logged.
var DefaultRedactedKeywords = map[string]struct{}{
	"api_key":  {},
	"apikey":   {},
	"password": {},
	"secret":   {},
	"token":    {},
}

// RedactSecretsInString masks what follows a keyword on each line of input,
// e.g. "OPENAI_API_KEY=sk-123" becomes "OPENAI_API_KEY=[REDACTED]".
func RedactSecretsInString(input string, keywords map[string]struct{}) string {
	if len(keywords) == 0 || input == "" {
		return input
	}

	redacted := false
	lines := strings.Split(input, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		for keyword := range keywords {
			idx := strings.Index(lower, keyword)
			if idx == -1 {
				continue
			}
			start := idx + len(keyword)
			for start < len(line) && strings.ContainsRune(":= '\"", rune(line[start])) {
				start++
			}
			if start < len(line) {
				lines[i] = line[:start] + "[REDACTED]"
				redacted = true
				break
			}
		}
	}
	if !redacted {
		return input
	}
	return strings.Join(lines, "\n")
}

// RedactSecretsInError returns err, or a plain error with a redacted message
// when the message contained a keyword.
func RedactSecretsInError(err error, keywords map[string]struct{}) error {
	if err == nil || len(keywords) == 0 {
		return err
	}
	msg := err.Error()
	if redacted := RedactSecretsInString(msg, keywords); redacted != msg {
		return errors.New(redacted)
	}
	return err
}
