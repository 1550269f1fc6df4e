package memory

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const encoding = "cl100k_base"

// TokenCounter counts cl100k tokens. The BPE ranks are fetched on first use; when
// that fails (offline hosts) it falls back to a rune based estimate.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// NewEstimatingCounter never fetches BPE ranks and always estimates.
func NewEstimatingCounter() *TokenCounter {
	c := &TokenCounter{}
	c.once.Do(func() {})
	return c
}

func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(encoding)
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return estimate(text)
}

func estimate(text string) int {
	n := (utf8.RuneCountInString(text) + 3) / 4
	if n == 0 {
		return 1
	}
	return n
}
