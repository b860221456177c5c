package provider

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the role and separator tokens chat
// formats add around every message.
const perMessageOverhead = 4

// TokenCounter estimates prompt sizes before a request is sent.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	name string
}

// NewTokenCounter returns a counter for encodingName (for example
// "cl100k_base"). The encoding is loaded on first use; if it cannot be
// loaded the counter falls back to one token per rune.
func NewTokenCounter(encodingName string) *TokenCounter {
	return &TokenCounter{name: encodingName}
}

func (c *TokenCounter) load() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.name)
		if err == nil {
			c.enc = enc
		}
	})
}

// Count estimates the number of tokens in text.
func (c *TokenCounter) Count(text string) int {
	c.load()
	if c.enc == nil {
		return utf8.RuneCountInString(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessages estimates the prompt size of a message list.
func (c *TokenCounter) CountMessages(msgs []LLMMessage) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + c.Count(m.Content)
	}
	return total
}
