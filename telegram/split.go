package telegram

import (
	"strings"

	"github.com/eqtlab/whale-tracker/tracker"
)

// htmlReserve leaves room for the tags closed and reopened around a cut.
const htmlReserve = 64

// splitMessage cuts text into parts of at most limit runes, preferring report separators, then line breaks.
// Lines longer than limit are cut outside html tags and entities, and tags left open by a cut are
// closed at the end of the part and reopened at the start of the next one.
func splitMessage(text string, limit int) []string {
	if runeLen(text) <= limit {
		return []string{text}
	}

	if !strings.Contains(text, "<") {
		return pack(text, limit)
	}
	return balanceTags(pack(text, limit-min(htmlReserve, limit/4)))
}

func pack(text string, limit int) []string {
	var parts []string
	var current string
	for _, section := range splitKeep(text, tracker.Separator) {
		if runeLen(current)+runeLen(section) <= limit {
			current += section
			continue
		}
		if current != "" {
			parts = append(parts, strings.TrimSuffix(current, tracker.Separator))
			current = ""
		}
		for _, line := range splitKeep(section, "\n") {
			for runeLen(line) > limit {
				r := []rune(line)
				if current != "" {
					parts = append(parts, current)
					current = ""
				}
				cut := safeCut(r, limit)
				parts = append(parts, string(r[:cut]))
				line = string(r[cut:])
			}
			if runeLen(current)+runeLen(line) > limit {
				parts = append(parts, current)
				current = ""
			}
			current += line
		}
	}
	if current = strings.TrimSuffix(current, tracker.Separator); current != "" {
		parts = append(parts, current)
	}

	return parts
}

// safeCut returns the greatest position up to limit that is outside a tag and an entity.
// A line with no such position is cut at limit.
func safeCut(r []rune, limit int) int {
	cut := 0
	inTag, inEntity := false, false
	for i := 0; i < len(r) && i <= limit; i++ {
		if i > 0 && !inTag && !inEntity {
			cut = i
		}
		switch {
		case inTag:
			inTag = r[i] != '>'
		case inEntity:
			inEntity = r[i] != ';'
		case r[i] == '<':
			inTag = true
		case r[i] == '&':
			inEntity = true
		}
	}
	if cut == 0 {
		return limit
	}
	return cut
}

func balanceTags(parts []string) []string {
	out := make([]string, len(parts))
	var open []string
	for i, part := range parts {
		reopened := strings.Join(open, "")
		open = openTags(open, part)
		out[i] = reopened + part + closingTags(open)
	}
	return out
}

// openTags returns the opening tags still in effect after s, given those open before it.
func openTags(open []string, s string) []string {
	stack := append([]string(nil), open...)
	for {
		start := strings.IndexByte(s, '<')
		if start < 0 {
			return stack
		}
		end := strings.IndexByte(s[start:], '>')
		if end < 0 {
			return stack
		}
		tag := s[start : start+end+1]
		s = s[start+end+1:]

		if !strings.HasPrefix(tag, "</") {
			stack = append(stack, tag)
			continue
		}
		name := tagName(tag)
		for i := len(stack) - 1; i >= 0; i-- {
			if tagName(stack[i]) == name {
				stack = stack[:i]
				break
			}
		}
	}
}

func closingTags(open []string) string {
	var sb strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		sb.WriteString("</" + tagName(open[i]) + ">")
	}
	return sb.String()
}

func tagName(tag string) string {
	name := strings.TrimPrefix(strings.TrimPrefix(tag, "<"), "/")
	if i := strings.IndexAny(name, " >"); i >= 0 {
		name = name[:i]
	}
	return name
}

// splitKeep splits s after every sep, keeping sep at the end of each piece.
func splitKeep(s, sep string) []string {
	pieces := strings.SplitAfter(s, sep)
	if pieces[len(pieces)-1] == "" {
		pieces = pieces[:len(pieces)-1]
	}
	return pieces
}

func runeLen(s string) int {
	return len([]rune(s))
}
