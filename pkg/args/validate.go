package args

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxSuggestDistance bounds how far a typo may be from a known key before we
// stop suggesting it.
const maxSuggestDistance = 3

// ArgumentError reports a validation failure for one or more arguments. It
// is always surfaced before any subprocess launches.
type ArgumentError struct {
	// Command is the "plugin:command" the arguments were validated against.
	Command string

	// Problems lists each individual failure.
	Problems []string

	// Usage is a rendered usage block for the command's schema.
	Usage string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	msg := fmt.Sprintf("argument validation failed for '%s':\n  %s",
		e.Command, strings.Join(e.Problems, "\n  "))
	if e.Usage != "" {
		msg += "\n\n" + e.Usage
	}
	return msg
}

// Validate checks the raw key to value mapping produced by ParseTokens
// against schema and returns the typed, defaulted result.
//
// Every required argument must be present or carry a declared default.
// Optional arguments fall back to their default when absent. Unknown keys
// fail with a closest-known-key suggestion rather than being dropped.
func Validate(provided map[string]string, schema *CommandSchema) (*Parsed, error) {
	if schema == nil {
		// No declaration means no validation: accept everything as strings.
		parsed := newParsed()
		for k, v := range provided {
			parsed.set(k, v, v)
		}
		return parsed, nil
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema for '%s': %w", schema.Command, err)
	}

	parsed := newParsed()
	var problems []string

	for _, name := range sortedKeys(schema.Required) {
		spec := schema.Required[name]
		raw, ok := provided[name]
		if !ok {
			if spec.Default != nil {
				raw = *spec.Default
			} else {
				problems = append(problems, fmt.Sprintf("missing required argument '--%s'", name))
				continue
			}
		}
		value, canonical, err := coerce(raw, spec.Type)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid value for required argument '--%s': %v", name, err))
			continue
		}
		parsed.set(name, value, canonical)
	}

	for _, name := range sortedKeys(schema.Optional) {
		spec := schema.Optional[name]
		raw, ok := provided[name]
		if !ok {
			if spec.Default == nil {
				continue
			}
			raw = *spec.Default
		}
		value, canonical, err := coerce(raw, spec.Type)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid value for optional argument '--%s': %v", name, err))
			continue
		}
		parsed.set(name, value, canonical)
	}

	known := schema.knownKeys()
	for _, name := range sortedKeys(provided) {
		if _, ok := schema.lookup(name); ok {
			continue
		}
		problem := fmt.Sprintf("unknown argument '--%s'", name)
		if suggestion := suggestKey(name, known); suggestion != "" {
			problem += fmt.Sprintf(" (did you mean '--%s'?)", suggestion)
		}
		problems = append(problems, problem)
	}

	if len(problems) > 0 {
		return nil, &ArgumentError{
			Command:  schema.Command,
			Problems: problems,
			Usage:    renderUsage(schema),
		}
	}

	return parsed, nil
}

// suggestKey returns the known key closest to name by Levenshtein distance,
// or "" when nothing is plausibly close.
func suggestKey(name string, known []string) string {
	best := ""
	bestDist := maxSuggestDistance + 1

	for _, candidate := range known {
		dist := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(candidate))
		if dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}
	return best
}

// renderUsage produces a short usage block for schema, required arguments
// first, sorted within each group.
func renderUsage(schema *CommandSchema) string {
	var b strings.Builder

	fmt.Fprintf(&b, "usage: skipper run %s", schema.Command)
	for _, name := range sortedKeys(schema.Required) {
		fmt.Fprintf(&b, " --%s <value>", name)
	}
	for _, name := range sortedKeys(schema.Optional) {
		fmt.Fprintf(&b, " [--%s <value>]", name)
	}

	if len(schema.Required) > 0 {
		b.WriteString("\n\nrequired:")
		for _, name := range sortedKeys(schema.Required) {
			spec := schema.Required[name]
			fmt.Fprintf(&b, "\n  --%-16s %s (%s)", name, spec.Description, spec.Type)
		}
	}
	if len(schema.Optional) > 0 {
		b.WriteString("\n\noptional:")
		for _, name := range sortedKeys(schema.Optional) {
			spec := schema.Optional[name]
			fmt.Fprintf(&b, "\n  --%-16s %s (%s)", name, spec.Description, spec.Type)
			if spec.Default != nil {
				fmt.Fprintf(&b, " [default: %s]", *spec.Default)
			}
		}
	}

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
