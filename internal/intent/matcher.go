package intent

import "strings"

// Matcher decides whether a transcript asks to end the session. It returns
// the phrase or rule that matched.
type Matcher interface {
	Match(transcript string) (string, bool)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(transcript string) (string, bool)

// Match calls f.
func (f MatcherFunc) Match(transcript string) (string, bool) {
	return f(transcript)
}

// PhraseMatcher matches when any configured phrase occurs anywhere in the
// transcript. Phrases are checked in order and the first hit wins.
type PhraseMatcher struct {
	phrases  []string
	foldCase bool
}

// NewPhraseMatcher builds a matcher for phrases. Empty phrases are ignored.
// Matching is exact and case-sensitive unless foldCase is set.
func NewPhraseMatcher(phrases []string, foldCase bool) *PhraseMatcher {
	m := &PhraseMatcher{foldCase: foldCase}
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if foldCase {
			p = strings.ToLower(p)
		}
		m.phrases = append(m.phrases, p)
	}
	return m
}

// Match implements Matcher.
func (m *PhraseMatcher) Match(transcript string) (string, bool) {
	if m.foldCase {
		transcript = strings.ToLower(transcript)
	}
	for _, p := range m.phrases {
		if strings.Contains(transcript, p) {
			return p, true
		}
	}
	return "", false
}

// Phrases returns the configured phrases.
func (m *PhraseMatcher) Phrases() []string {
	return append([]string(nil), m.phrases...)
}

// AnyOf combines matchers; the first one that matches wins.
func AnyOf(ms ...Matcher) Matcher {
	return MatcherFunc(func(transcript string) (string, bool) {
		for _, m := range ms {
			if p, ok := m.Match(transcript); ok {
				return p, true
			}
		}
		return "", false
	})
}
