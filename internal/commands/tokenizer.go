// Package commands implements the chat command engine: a tokenizer for
// prefixed lines, declarative command descriptors with validation, a
// dispatcher that routes parsed input to descriptors, and a typed-result
// pipeline for commands that compute a value before presenting it.
package commands

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// tokenPattern matches a double-quoted run (quotes kept) or a run of
// non-whitespace characters.
var tokenPattern = regexp.MustCompile(`"[^"\n]+"|\S+`)

// Prefixes configures how a line is recognized and split.
type Prefixes struct {
	Command string `yaml:"command" json:"command"`
	Flag    string `yaml:"flag" json:"flag"`
	Pair    string `yaml:"pair" json:"pair"`
}

// DefaultPrefixes returns "!" for commands, "--" for flags and "-" for pairs.
func DefaultPrefixes() Prefixes {
	return Prefixes{Command: "!", Flag: "--", Pair: "-"}
}

// Validate reports whether the prefixes can produce an unambiguous parse.
func (p Prefixes) Validate() error {
	if p.Flag == "" || p.Pair == "" {
		return invalidf("flag and pair prefixes are required")
	}
	if p.Flag == p.Pair {
		return invalidf("flag and pair prefixes must differ (both %q)", p.Flag)
	}
	// Flags are checked first, so a pair prefix that starts with the flag
	// prefix would never match.
	if strings.HasPrefix(p.Pair, p.Flag) {
		return invalidf("pair prefix %q must not start with flag prefix %q", p.Pair, p.Flag)
	}
	return nil
}

// Tokenizer turns raw lines into Args. It is immutable and safe for
// concurrent use.
type Tokenizer struct {
	prefixes Prefixes
}

// NewTokenizer validates the prefixes and returns a Tokenizer.
func NewTokenizer(p Prefixes) (*Tokenizer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Tokenizer{prefixes: p}, nil
}

// Prefixes returns the prefixes the tokenizer was built with.
func (t *Tokenizer) Prefixes() Prefixes { return t.prefixes }

// Parse splits rawText into an identifier, flags, pairs and raw arguments.
func (t *Tokenizer) Parse(rawText string) (*Args, error) {
	if !strings.HasPrefix(rawText, t.prefixes.Command) {
		return nil, fmt.Errorf("%w: missing prefix %q", ErrMalformedInput, t.prefixes.Command)
	}
	rest := rawText[len(t.prefixes.Command):]

	spans := tokenPattern.FindAllStringIndex(rest, -1)
	if len(spans) == 0 || spans[0][0] != 0 {
		return nil, fmt.Errorf("%w: no command after prefix", ErrMalformedInput)
	}

	args := &Args{
		identifier:   rest[spans[0][0]:spans[0][1]],
		pairs:        make(map[string]string),
		rawText:      rawText,
		argumentText: strings.TrimSpace(rest[spans[0][1]:]),
	}

	tokens := make([]string, 0, len(spans)-1)
	for _, s := range spans[1:] {
		tokens = append(tokens, rest[s[0]:s[1]])
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok != t.prefixes.Flag && strings.HasPrefix(tok, t.prefixes.Flag):
			args.flags = append(args.flags, tok[len(t.prefixes.Flag):])
		case tok != t.prefixes.Pair && strings.HasPrefix(tok, t.prefixes.Pair):
			key := tok[len(t.prefixes.Pair):]
			if _, dup := args.pairs[key]; dup {
				return nil, fmt.Errorf("%w %s%s", ErrDuplicateParam, t.prefixes.Pair, key)
			}
			value := ""
			if i+1 < len(tokens) {
				value = tokens[i+1]
				i++
			}
			args.pairs[key] = value
		default:
			args.raw = append(args.raw, tok)
		}
	}
	return args, nil
}

// Args is the parsed form of one input line.
type Args struct {
	identifier   string
	flags        []string
	pairs        map[string]string
	raw          []string
	rawText      string
	argumentText string
}

// Identifier is the routing key, without the command prefix.
func (a *Args) Identifier() string { return a.identifier }

// Flags returns the flags in input order, duplicates included.
func (a *Args) Flags() []string { return slices.Clone(a.flags) }

// Pairs returns a copy of the key/value pairs.
func (a *Args) Pairs() map[string]string { return maps.Clone(a.pairs) }

// Raw returns the tokens that were neither flags nor pairs.
func (a *Args) Raw() []string { return slices.Clone(a.raw) }

// RawText is the full input line.
func (a *Args) RawText() string { return a.rawText }

// ArgumentText is everything after the identifier, trimmed.
func (a *Args) ArgumentText() string { return a.argumentText }

// HasFlag reports whether flag was given at least once.
func (a *Args) HasFlag(flag string) bool { return slices.Contains(a.flags, flag) }

// HasPair reports whether key was given as a pair.
func (a *Args) HasPair(key string) bool {
	_, ok := a.pairs[key]
	return ok
}

// Value returns the value for key.
func (a *Args) Value(key string) (string, bool) {
	v, ok := a.pairs[key]
	return v, ok
}

// Clone returns a deep copy so one descriptor's defaults never leak into
// another's view of the same input.
func (a *Args) Clone() *Args {
	return &Args{
		identifier:   a.identifier,
		flags:        slices.Clone(a.flags),
		pairs:        maps.Clone(a.pairs),
		raw:          slices.Clone(a.raw),
		rawText:      a.rawText,
		argumentText: a.argumentText,
	}
}

// setDefault stores value under key if key is absent.
func (a *Args) setDefault(key, value string) {
	if _, ok := a.pairs[key]; !ok {
		a.pairs[key] = value
	}
}

// Unquote strips one pair of surrounding double quotes from s.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
