// Package args parses and validates heterogeneous command-line arguments
// against a command's declared schema.
//
// Plugins declare their arguments in the plugin manifest; the host CLI
// forwards everything after the command name to this package. Three surface
// forms are accepted and may be mixed freely:
//
//	--key value
//	--key=value
//	--key            (boolean true)
//
// Validation resolves defaults, enforces required arguments, type-checks
// every value, and rejects unknown keys with a closest-match suggestion.
package args

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is the primitive type of a declared argument.
type Type string

const (
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeInteger Type = "integer"
	TypeFloat   Type = "float"
)

// Valid reports whether t is one of the supported primitive types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeBoolean, TypeInteger, TypeFloat:
		return true
	}
	return false
}

// Spec declares a single argument of a plugin command.
type Spec struct {
	// Description is the human-readable purpose of the argument.
	Description string `toml:"description" json:"description"`

	// Type is the primitive type the value must parse as.
	Type Type `toml:"type" json:"type"`

	// Default is the fallback value for optional arguments. Required
	// arguments may also declare one, in which case it satisfies the
	// requirement when the argument is absent.
	Default *string `toml:"default" json:"default,omitempty"`
}

// CommandSchema is the declared argument surface of one plugin command.
// Required and Optional must be disjoint; any key in neither set is unknown.
type CommandSchema struct {
	Command  string          `toml:"-" json:"command"`
	Required map[string]Spec `toml:"required" json:"required,omitempty"`
	Optional map[string]Spec `toml:"optional" json:"optional,omitempty"`
}

// Validate checks the schema itself: disjoint name sets and known types.
func (s *CommandSchema) Validate() error {
	for name, spec := range s.Required {
		if !spec.Type.Valid() {
			return fmt.Errorf("argument '--%s': unknown type %q", name, spec.Type)
		}
		if _, dup := s.Optional[name]; dup {
			return fmt.Errorf("argument '--%s' declared both required and optional", name)
		}
	}
	for name, spec := range s.Optional {
		if !spec.Type.Valid() {
			return fmt.Errorf("argument '--%s': unknown type %q", name, spec.Type)
		}
	}
	return nil
}

// knownKeys returns all declared argument names, sorted.
func (s *CommandSchema) knownKeys() []string {
	keys := make([]string, 0, len(s.Required)+len(s.Optional))
	for name := range s.Required {
		keys = append(keys, name)
	}
	for name := range s.Optional {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// lookup returns the spec for name from either set.
func (s *CommandSchema) lookup(name string) (Spec, bool) {
	if spec, ok := s.Required[name]; ok {
		return spec, true
	}
	spec, ok := s.Optional[name]
	return spec, ok
}

// Parsed is a validated key to typed-value mapping. Values are string, bool,
// int64 or float64 according to the schema. The raw string form of every
// value is kept so the arguments can be reconstructed into subprocess tokens
// without loss.
type Parsed struct {
	values map[string]interface{}
	raw    map[string]string
}

func newParsed() *Parsed {
	return &Parsed{
		values: make(map[string]interface{}),
		raw:    make(map[string]string),
	}
}

func (p *Parsed) set(key string, value interface{}, raw string) {
	p.values[key] = value
	p.raw[key] = raw
}

// Len returns the number of validated arguments.
func (p *Parsed) Len() int {
	return len(p.values)
}

// Has reports whether key carries a value.
func (p *Parsed) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Get returns the typed value for key.
func (p *Parsed) Get(key string) (interface{}, bool) {
	v, ok := p.values[key]
	return v, ok
}

// GetString returns the string value for key, or def when absent or not a
// string.
func (p *Parsed) GetString(key, def string) string {
	if v, ok := p.values[key].(string); ok {
		return v
	}
	return def
}

// GetBool returns the boolean value for key, or def when absent.
func (p *Parsed) GetBool(key string, def bool) bool {
	if v, ok := p.values[key].(bool); ok {
		return v
	}
	return def
}

// GetInt returns the integer value for key, or def when absent.
func (p *Parsed) GetInt(key string, def int64) int64 {
	if v, ok := p.values[key].(int64); ok {
		return v
	}
	return def
}

// GetFloat returns the float value for key, or def when absent.
func (p *Parsed) GetFloat(key string, def float64) float64 {
	if v, ok := p.values[key].(float64); ok {
		return v
	}
	return def
}

// Map returns the arguments as a plain map for JSON serialization into the
// plugin execution context. The returned map is a copy.
func (p *Parsed) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Tokens reconstructs the arguments into a token sequence suitable for a
// subprocess invocation. Each argument becomes "--key" followed by its value
// as a separate token, so values containing spaces or shell metacharacters
// survive verbatim. Key and value are never re-joined with "=". An empty
// value emits the bare "--key" alone. Output order is sorted by key for
// determinism.
func (p *Parsed) Tokens() []string {
	keys := make([]string, 0, len(p.raw))
	for k := range p.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tokens := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		tokens = append(tokens, "--"+k)
		if p.raw[k] != "" {
			tokens = append(tokens, p.raw[k])
		}
	}
	return tokens
}

// coerce parses raw according to t and returns the typed value plus the
// canonical raw form kept for reconstruction.
func coerce(raw string, t Type) (interface{}, string, error) {
	switch t {
	case TypeString:
		return raw, raw, nil

	case TypeBoolean:
		b, err := parseBool(raw)
		if err != nil {
			return nil, "", err
		}
		return b, strconv.FormatBool(b), nil

	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("expected integer value, got %q", raw)
		}
		return n, raw, nil

	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, "", fmt.Errorf("expected float value, got %q", raw)
		}
		return f, raw, nil

	default:
		return nil, "", fmt.Errorf("unknown argument type %q", t)
	}
}

// parseBool accepts the documented boolean spellings, case-insensitively.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("expected boolean value (true/false), got %q", raw)
}
