package telegram

import (
	"strings"
	"unicode"
)

// ParseCommand reads "/method@bot key=value key="quoted value"" messages.
// ok is false when text is not a slash command.
func ParseCommand(text string) (method string, kwargs map[string]string, ok bool) {
	tokens := tokenize(strings.TrimSpace(text))
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], "/") {
		return "", nil, false
	}

	method = strings.TrimPrefix(tokens[0], "/")
	if i := strings.IndexByte(method, '@'); i >= 0 {
		method = method[:i]
	}
	if method == "" {
		return "", nil, false
	}

	kwargs = make(map[string]string, len(tokens)-1)
	for _, tok := range tokens[1:] {
		key, value, _ := strings.Cut(tok, "=")
		kwargs[strings.ToLower(key)] = value
	}

	return strings.ToLower(method), kwargs, true
}

// tokenize splits on whitespace outside double quotes and drops the quotes.
func tokenize(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		started bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		started = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()

	return tokens
}
