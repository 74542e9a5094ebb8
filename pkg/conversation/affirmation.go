package conversation

import "strings"

// affirmativeWords are single-token identity confirmations.
var affirmativeWords = map[string]bool{
	"yes":      true,
	"yeah":     true,
	"yep":      true,
	"yup":      true,
	"speaking": true,
	"correct":  true,
}

// affirmativePhrases are multi-word confirmations matched as substrings of
// the lowered text.
var affirmativePhrases = []string{
	"that's me",
	"thats me",
	"this is she",
	"this is he",
	"i am",
}

// IsAffirmative reports whether a human turn confirms identity. Detection
// is deliberately lexical: an explicit "no" anywhere outranks any
// affirmative token, so "no, yes I mean maybe" does not confirm.
func IsAffirmative(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return false
	}

	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})

	for _, token := range tokens {
		if token == "no" || token == "nope" || token == "not" || token == "wrong" {
			return false
		}
	}

	for _, token := range tokens {
		if affirmativeWords[token] {
			return true
		}
	}

	for _, phrase := range affirmativePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}

	return false
}
