// Package trends derives trending topics from post content: keyword
// extraction, time-windowed aggregation, and headline synthesis.
package trends

import (
	"regexp"
	"strings"
)

// capitalRunRe matches runs of capitalized words. Runs of two or more become
// a single multi-word topic; every matched word is claimed so it is not
// double-counted as a standalone keyword.
var capitalRunRe = regexp.MustCompile(`[A-Z][A-Za-z']*(?:[ \t][A-Z][A-Za-z']*)*`)

// stopWords are never emitted as standalone topics. Hashtags bypass this
// list entirely.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"if": true, "then": true, "else": true, "when": true, "while": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "by": true,
	"for": true, "with": true, "about": true, "against": true, "between": true,
	"into": true, "through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "from": true, "up": true, "down": true,
	"out": true, "off": true, "over": true, "under": true, "again": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "am": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "having": true,
	"will": true, "would": true, "can": true, "could": true, "should": true,
	"shall": true, "may": true, "might": true, "must": true,
	"i": true, "you": true, "he": true, "she": true, "it": true, "we": true,
	"they": true, "me": true, "him": true, "her": true, "us": true, "them": true,
	"my": true, "your": true, "his": true, "its": true, "our": true, "their": true,
	"this": true, "that": true, "these": true, "those": true,
	"what": true, "which": true, "who": true, "whom": true, "whose": true,
	"where": true, "why": true, "how": true,
	"not": true, "no": true, "nor": true, "so": true, "too": true, "very": true,
	"just": true, "now": true, "here": true, "there": true, "all": true,
	"any": true, "both": true, "each": true, "few": true, "more": true,
	"most": true, "other": true, "some": true, "such": true, "only": true,
	"own": true, "same": true, "than": true, "also": true, "like": true,
	"get": true, "got": true, "one": true, "as": true, "lol": true, "omg": true,
}

// Extract derives candidate topic keywords from free-text post content.
// Capitalized runs of two or more words become one lowercased phrase topic;
// any capitalized word is claimed and never re-emitted alone. Hashtags are
// kept unconditionally with the marker stripped. Remaining words survive the
// stop-word list and a minimum length of three. Each post contributes each
// distinct keyword at most once; no stemming is performed, so "goal" and
// "goals" are distinct topics.
func Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := make(map[string]bool)
	claimed := make(map[string]bool)
	var topics []string

	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		topics = append(topics, t)
	}

	for _, run := range capitalRunRe.FindAllString(text, -1) {
		words := strings.Fields(run)
		for _, w := range words {
			claimed[strings.ToLower(w)] = true
		}
		if len(words) >= 2 {
			add(strings.ToLower(strings.Join(words, " ")))
		}
	}

	for _, token := range strings.Fields(stripPunct(text)) {
		if rest, ok := strings.CutPrefix(token, "#"); ok {
			// Hashtags are explicit topic declarations; no further rules.
			add(strings.ToLower(strings.Trim(rest, "#")))
			continue
		}
		word := strings.ToLower(token)
		if len(word) <= 2 || stopWords[word] || claimed[word] {
			continue
		}
		add(word)
	}

	return topics
}

// stripPunct replaces punctuation with spaces, preserving hashtag markers so
// tokenization can still recognize them.
func stripPunct(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '#', r == '\'':
			return r
		default:
			return ' '
		}
	}, text)
}
