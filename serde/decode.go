package serde

import (
	"fmt"
	"strconv"
	"strings"
)

type rawLine struct {
	indent  int
	content string
}

// Decode parses the compact textual form produced by Encode back into a
// Value. decode(encode(v)) == v for every cycle-free Value (the
// round-trip property tested in compact_test.go).
func Decode(text string) (Value, error) {
	lines, err := splitLines(text)
	if err != nil {
		return Value{}, err
	}
	if len(lines) == 0 {
		return Null(), nil
	}
	v, next, err := parseBlock(lines, 0, lines[0].indent)
	if err != nil {
		return Value{}, err
	}
	if next != len(lines) {
		return Value{}, fmt.Errorf("serde: unexpected trailing content at line %d", next)
	}
	return v, nil
}

func splitLines(text string) ([]rawLine, error) {
	raw := strings.Split(text, "\n")
	var out []rawLine
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := 0
		for n < len(l) && l[n] == ' ' {
			n++
		}
		if n%2 != 0 {
			return nil, fmt.Errorf("serde: odd indentation in line %q", l)
		}
		out = append(out, rawLine{indent: n / 2, content: l[n:]})
	}
	return out, nil
}

// parseBlock parses the block starting at lines[start], which must all
// share the given depth, until indentation drops below depth or input
// ends. It returns the parsed value and the index of the first
// unconsumed line.
func parseBlock(lines []rawLine, start, depth int) (Value, int, error) {
	if start >= len(lines) {
		return Null(), start, nil
	}
	first := lines[start]
	if first.indent != depth {
		return Value{}, start, fmt.Errorf("serde: indentation mismatch at line %d", start)
	}

	switch {
	case first.content == "[]":
		return Sequence(), start + 1, nil
	case first.content == "{}":
		return Mapping(), start + 1, nil
	case first.content == "|":
		return parseBlockScalar(lines, start, depth)
	case first.content == "-" || strings.HasPrefix(first.content, "- "):
		return parseSequence(lines, start, depth)
	case looksLikeMappingKey(first.content):
		return parseMapping(lines, start, depth)
	default:
		return parseScalar(first.content), start + 1, nil
	}
}

// parseBlockScalar collects the lines following a bare "|" marker at
// depth, dedenting them back to their relative indentation.
func parseBlockScalar(lines []rawLine, start, depth int) (Value, int, error) {
	var sb strings.Builder
	j := start + 1
	first := true
	for j < len(lines) && lines[j].indent >= depth+1 {
		if !first {
			sb.WriteByte('\n')
		}
		first = false
		pad := strings.Repeat("  ", lines[j].indent-(depth+1))
		sb.WriteString(pad)
		sb.WriteString(lines[j].content)
		j++
	}
	return String(sb.String()), j, nil
}

func looksLikeMappingKey(content string) bool {
	if strings.HasPrefix(content, `"`) {
		return false
	}
	idx := strings.Index(content, ":")
	if idx < 0 {
		return false
	}
	// "key:" or "key: value" — but not a bare scalar that happens to
	// contain a colon with no following space/end (we require either
	// end-of-string or a following space, matching the encoder's
	// "key:" / "key: value" output exactly).
	return idx == len(content)-1 || content[idx+1] == ' '
}

func parseSequence(lines []rawLine, start, depth int) (Value, int, error) {
	var items []Value
	i := start
	for i < len(lines) && lines[i].indent == depth && (lines[i].content == "-" || strings.HasPrefix(lines[i].content, "- ")) {
		rest := strings.TrimPrefix(lines[i].content, "-")
		rest = strings.TrimPrefix(rest, " ")
		if rest == "" {
			v, next, err := parseBlock(lines, i+1, depth+1)
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, v)
			i = next
			continue
		}

		switch {
		case rest == "|":
			v, next, err := parseBlockScalar(lines, i, depth)
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, v)
			i = next
		case looksLikeMappingKey(rest):
			v, next, err := parseInlineMapping(lines, i, depth, rest)
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, v)
			i = next
		case rest == "-" || strings.HasPrefix(rest, "- "):
			v, next, err := parseInlineSequence(lines, i, depth, rest)
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, v)
			i = next
		default:
			items = append(items, parseScalar(rest))
			i++
		}
	}
	return Sequence(items...), i, nil
}

// parseInlineSequence handles a "- - first" style nested sequence whose
// first element shares the outer "-" line.
func parseInlineSequence(lines []rawLine, at, depth int, firstRest string) (Value, int, error) {
	synthetic := append([]rawLine{{indent: depth + 1, content: firstRest}}, lines[at+1:]...)
	v, next, err := parseSequence(synthetic, 0, depth+1)
	if err != nil {
		return Value{}, 0, err
	}
	return v, at + next, nil
}

// parseInlineMapping handles a "- key: value" style nested mapping
// whose first entry shares the outer "-" line.
func parseInlineMapping(lines []rawLine, at, depth int, firstRest string) (Value, int, error) {
	synthetic := append([]rawLine{{indent: depth + 1, content: firstRest}}, lines[at+1:]...)
	v, next, err := parseMapping(synthetic, 0, depth+1)
	if err != nil {
		return Value{}, 0, err
	}
	return v, at + next, nil
}

func parseMapping(lines []rawLine, start, depth int) (Value, int, error) {
	var kvs []KV
	i := start
	for i < len(lines) && lines[i].indent == depth && looksLikeMappingKey(lines[i].content) {
		content := lines[i].content
		idx := strings.Index(content, ":")
		key := content[:idx]
		valStr := strings.TrimSpace(content[idx+1:])

		switch {
		case valStr == "|":
			v, next, err := parseBlockScalar(lines, i, depth)
			if err != nil {
				return Value{}, 0, err
			}
			kvs = append(kvs, KV{Key: key, Value: v})
			i = next
		case valStr == "":
			v, next, err := parseBlock(lines, i+1, depth+1)
			if err != nil {
				return Value{}, 0, err
			}
			kvs = append(kvs, KV{Key: key, Value: v})
			i = next
		default:
			kvs = append(kvs, KV{Key: key, Value: parseScalar(valStr)})
			i++
		}
	}
	return Mapping(kvs...), i, nil
}

func parseScalar(s string) Value {
	switch s {
	case "null":
		return Null()
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "[]":
		return Sequence()
	case "{}":
		return Mapping()
	}
	if strings.HasPrefix(s, `"`) {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return String(unquoted)
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}
