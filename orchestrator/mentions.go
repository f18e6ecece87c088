package orchestrator

import (
	"sort"
	"strings"

	"github.com/agentmesh/engine/agents"
)

type mentionHit struct {
	agentID string
	pos     int
}

// parseMentions scans free text for explicit references to registered
// agents, either an "@agent_id" form or a case-insensitive occurrence
// of the agent's display name, and returns the distinct agent ids
// found, ordered by where each first appears in the text.
func parseMentions(text string, registry *agents.Registry) []string {
	lower := strings.ToLower(text)

	var hits []mentionHit
	for _, rec := range registry.All() {
		pos := -1
		if idx := strings.Index(lower, "@"+rec.ID); idx >= 0 {
			pos = idx
		}
		if idx := strings.Index(lower, strings.ToLower(rec.DisplayName)); idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
		if pos >= 0 {
			hits = append(hits, mentionHit{agentID: rec.ID, pos: pos})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.agentID)
	}
	return ids
}
