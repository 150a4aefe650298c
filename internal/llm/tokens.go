package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const truncatedMarker = "\n[truncated]"

// Truncator caps tool observations to a token budget. The encoding is loaded
// on first use; if it cannot be loaded, runes are counted as tokens.
type Truncator struct {
	model     string
	maxTokens int

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTruncator creates a truncator for model's encoding. maxTokens <= 0
// disables truncation.
func NewTruncator(model string, maxTokens int) *Truncator {
	return &Truncator{model: model, maxTokens: maxTokens}
}

func (t *Truncator) encoding() *tiktoken.Tiktoken {
	t.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(t.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return
			}
		}
		t.enc = enc
	})
	return t.enc
}

// Truncate returns s cut to the token budget.
func (t *Truncator) Truncate(s string) string {
	// A token is at least one byte.
	if t.maxTokens <= 0 || len(s) <= t.maxTokens {
		return s
	}

	if enc := t.encoding(); enc != nil {
		tokens := enc.Encode(s, nil, nil)
		if len(tokens) <= t.maxTokens {
			return s
		}
		return validPrefix(enc.Decode(tokens[:t.maxTokens])) + truncatedMarker
	}

	r := []rune(s)
	if len(r) <= t.maxTokens {
		return s
	}
	return string(r[:t.maxTokens]) + truncatedMarker
}

// validPrefix drops the partial character a token cut can leave at the end
// of multi-byte text.
func validPrefix(s string) string {
	return strings.ToValidUTF8(s, "")
}
