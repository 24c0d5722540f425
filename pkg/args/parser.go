package args

import (
	"fmt"
	"strings"
)

// ParseTokens scans raw CLI tokens left to right into a key to raw-value
// mapping. It accepts "--key=value", "--key value" and bare "--key"; a bare
// flag whose next token is absent or is itself a flag becomes "true". Bare
// non-flag tokens are malformed input.
//
// Values are taken verbatim from their token: embedded spaces and special
// characters are preserved, and a "--key value" pair never re-splits the
// value.
func ParseTokens(tokens []string) (map[string]string, error) {
	out := make(map[string]string, len(tokens))

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if !strings.HasPrefix(tok, "--") {
			return nil, fmt.Errorf("malformed argument %q: expected a --key flag", tok)
		}

		body := strings.TrimPrefix(tok, "--")
		if body == "" {
			return nil, fmt.Errorf("malformed argument %q: empty flag name", tok)
		}

		// --key=value splits on the first '=' only.
		if eq := strings.Index(body, "="); eq >= 0 {
			key := body[:eq]
			if key == "" {
				return nil, fmt.Errorf("malformed argument %q: empty flag name", tok)
			}
			out[key] = body[eq+1:]
			continue
		}

		// Bare --key: look ahead. A following flag is never consumed as
		// this flag's value.
		if i+1 >= len(tokens) || strings.HasPrefix(tokens[i+1], "--") {
			out[body] = "true"
			continue
		}

		out[body] = tokens[i+1]
		i++
	}

	return out, nil
}
