package usecase

import "regexp"

// namePattern matches "my name is X", "I'm X" and "I am X". The lead-in is
// case-insensitive; X must start with an upper-case letter. False negatives
// ("call me al") and false positives ("I am Tired") are accepted.
var namePattern = regexp.MustCompile(`(?:^|[^\p{L}])(?i:my\s+name\s+is|i['’]m|i\s+am)\s+(\p{Lu}[\p{L}'-]*)`)

// extractName returns the first display name introduced in text.
func extractName(text string) (string, bool) {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
