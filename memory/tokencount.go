package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/agentmesh/engine/types"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// countTokens estimates the cl100k_base token count of messages. If the
// encoder cannot be loaded it falls back to a conservative
// characters/4 estimate rather than failing the caller outright.
func countTokens(messages []types.ConversationMessage) int {
	e, err := encoding()
	if err != nil {
		total := 0
		for _, m := range messages {
			total += len(m.Content) / 4
		}
		return total
	}

	total := 0
	for _, m := range messages {
		total += len(e.Encode(m.Content, nil, nil))
	}
	return total
}

func renderConversation(messages []types.ConversationMessage) string {
	var b strings.Builder
	for _, m := range messages {
		speaker := m.SpeakerAgentID
		if speaker == "" {
			speaker = string(m.Role)
		}
		fmt.Fprintf(&b, "[%s] %s\n", speaker, m.Content)
	}
	return b.String()
}
