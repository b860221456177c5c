// Package intent decides what a transcribed utterance asks the pipeline to do.
package intent

import (
	"strings"
	"unicode"
)

// Intent is the routing decision for one utterance.
type Intent int

const (
	// Continue forwards the utterance to the completion engine.
	Continue Intent = iota
	// EndSession clears the conversation and says goodbye.
	EndSession
	// Empty means nothing usable was heard.
	Empty
)

// Unknown labels turns that failed before classification.
const Unknown Intent = -1

func (i Intent) String() string {
	switch i {
	case Continue:
		return "continue"
	case EndSession:
		return "end_session"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// DefaultMinRunes is the default threshold below which a transcript is
// treated as empty.
const DefaultMinRunes = 2

// Classifier maps a transcript to an Intent. It is stateless and safe for
// concurrent use.
type Classifier struct {
	matcher  Matcher
	minRunes int
}

// NewClassifier returns a classifier using m for end-of-session detection.
// minRunes below 1 selects DefaultMinRunes; a nil m never ends a session.
func NewClassifier(m Matcher, minRunes int) *Classifier {
	if minRunes < 1 {
		minRunes = DefaultMinRunes
	}
	if m == nil {
		m = MatcherFunc(func(string) (string, bool) { return "", false })
	}
	return &Classifier{matcher: m, minRunes: minRunes}
}

// Classify returns Empty for transcripts with fewer than the minimum number
// of letters or digits, EndSession when the matcher fires, and Continue
// otherwise.
func (c *Classifier) Classify(transcript string) Intent {
	d, _ := c.Explain(transcript)
	return d
}

// Explain is Classify that also returns the exit phrase that matched, if any.
func (c *Classifier) Explain(transcript string) (Intent, string) {
	text := strings.TrimSpace(transcript)
	if meaningfulRunes(text) < c.minRunes {
		return Empty, ""
	}
	if phrase, ok := c.matcher.Match(text); ok {
		return EndSession, phrase
	}
	return Continue, ""
}

// meaningfulRunes counts letters and digits. Punctuation and whitespace
// that recognizers emit for silence ("。", "...") do not count.
func meaningfulRunes(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
