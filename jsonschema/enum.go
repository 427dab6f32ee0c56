package jsonschema

import (
	"encoding/json"

	ahocorasick "github.com/pgavlin/aho-corasick"
)

// EnumMatcher checks a candidate value's canonical JSON encoding
// against an enum's literal list using a single Aho-Corasick automaton
// instead of a per-candidate linear string scan, the same multi-
// pattern matching primitive used elsewhere in the corpus for
// scanning a buffer against many literal patterns at once.
type EnumMatcher struct {
	encoded [][]byte
	matcher ahocorasick.AhoCorasick
}

// NewEnumMatcher builds a matcher over the canonical JSON encodings of
// values.
func NewEnumMatcher(values []any) (*EnumMatcher, error) {
	encoded := make([][]byte, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		encoded[i] = b
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{})
	ac := builder.BuildByte(encoded)
	return &EnumMatcher{encoded: encoded, matcher: ac}, nil
}

// Contains reports whether value's canonical JSON encoding exactly
// equals one of the enum's encodings.
func (m *EnumMatcher) Contains(value any) bool {
	candidate, err := json.Marshal(value)
	if err != nil {
		return false
	}
	iter := m.matcher.IterOverlappingByte(candidate)
	for {
		match := iter.Next()
		if match == nil {
			return false
		}
		if match.Start() == 0 && match.End() == len(candidate) {
			return true
		}
	}
}
