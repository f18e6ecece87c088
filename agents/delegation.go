package agents

import "strings"

const (
	delegateMarkerPrefix = "---DELEGATE:"
	delegateMarkerSuffix = "---"
	endMarker            = "---END---"
)

// Directive is one accepted or rejected delegation request parsed out
// of an agent's response.
type Directive struct {
	Callee    string
	SubPrompt string
}

// ParseDelegations splits resp into the text the agent meant to be
// visible and the trailing ---DELEGATE:<id>--- / ---END--- blocks, in
// the order they appear. Visible text ends at the first delegate
// marker line; a block that is unterminated or names no callee yields
// no directive and is not kept in the visible text either.
func ParseDelegations(resp string) (visible string, directives []Directive) {
	lines := strings.Split(resp, "\n")

	cut := len(lines)
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), delegateMarkerPrefix) {
			cut = i
			break
		}
	}
	visible = strings.TrimRight(strings.Join(lines[:cut], "\n"), "\n")

	i := cut
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, delegateMarkerPrefix) {
			i++
			continue
		}
		callee := strings.TrimSuffix(strings.TrimPrefix(line, delegateMarkerPrefix), delegateMarkerSuffix)
		callee = strings.TrimSpace(callee)

		var body []string
		j := i + 1
		closed := false
		for j < len(lines) {
			if strings.TrimSpace(lines[j]) == endMarker {
				closed = true
				break
			}
			body = append(body, lines[j])
			j++
		}
		if !closed || callee == "" {
			i++
			continue
		}

		directives = append(directives, Directive{
			Callee:    callee,
			SubPrompt: strings.TrimSpace(strings.Join(body, "\n")),
		})
		i = j + 1
	}

	return visible, directives
}
