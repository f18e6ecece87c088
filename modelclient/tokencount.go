package modelclient

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoder() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

// estimateTokens approximates the prompt token count of req so the
// token bucket can be pre-charged before the provider call is made.
// Falls back to a chars/4 heuristic if the encoder failed to load.
func estimateTokens(req Request) int {
	var sb strings.Builder
	sb.WriteString(req.System)
	for _, m := range req.Messages {
		sb.WriteString(m.Content)
	}
	text := sb.String()

	if e := encoder(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	if len(text) == 0 {
		return 0
	}
	return len(text)/4 + 1
}
