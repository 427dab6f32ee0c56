// Package ast defines the tagged-variant tree used to describe a
// structural tag: a declarative constraint on a language model's output.
package ast

// Format is a node in the constraint tree. Each concrete type carries
// only data; dispatch happens in the parser, analyzer, and emitter, not
// here.
type Format interface {
	isFormat()
}

// StructuralTag is the top-level document: a single root Format.
type StructuralTag struct {
	Format Format
}

// ConstString matches exactly Value.
type ConstString struct {
	Value string
}

func (*ConstString) isFormat() {}

// JSONSchema matches any instance conforming to Schema, a serialized
// JSON Schema document.
type JSONSchema struct {
	Schema string
}

func (*JSONSchema) isFormat() {}

// QwenXmlParameter matches the Qwen XML tool-calling encoding derived
// from Schema, a serialized JSON Schema document.
type QwenXmlParameter struct {
	Schema string
}

func (*QwenXmlParameter) isFormat() {}

// Grammar embeds a user-supplied EBNF grammar verbatim.
type Grammar struct {
	EBNF string
}

func (*Grammar) isFormat() {}

// Regex matches Pattern minus any string containing a substring in
// Excludes.
type Regex struct {
	Pattern  string
	Excludes []string
}

func (*Regex) isFormat() {}

// AnyText matches arbitrary text up to (but not including) any
// terminator in DetectedEnds, never containing any substring in
// Excludes. DetectedEnds is filled in by the analyzer, not the parser.
type AnyText struct {
	Excludes     []string
	DetectedEnds []string
}

func (*AnyText) isFormat() {}

// Sequence is a concatenation of Elements. Unbounded is set by the
// analyzer: true iff the last element is unbounded.
type Sequence struct {
	Elements  []Format
	Unbounded bool
}

func (*Sequence) isFormat() {}

// Or is an alternation of Elements. Unbounded is set by the analyzer:
// true iff every element is unbounded (mixing is rejected).
type Or struct {
	Elements  []Format
	Unbounded bool
}

func (*Or) isFormat() {}

// Tag is Begin, then Content, then one of End. The analyzer clears End
// when Content is unbounded: the terminators move to Content's own
// DetectedEnds field and are no longer emitted as a Tag suffix.
type Tag struct {
	Begin   string
	Content Format
	End     []string
}

func (*Tag) isFormat() {}

// TriggeredTags is free text interleaved with Tags, each entered once
// its Begin is seen to start with one of Triggers. DetectedEnds is
// filled in by the analyzer.
type TriggeredTags struct {
	Triggers       []string
	Tags           []*Tag
	Excludes       []string
	AtLeastOne     bool
	StopAfterFirst bool
	DetectedEnds   []string
}

func (*TriggeredTags) isFormat() {}

// TagsWithSeparator is Tags joined by Separator. DetectedEnds is filled
// in by the analyzer.
type TagsWithSeparator struct {
	Tags           []*Tag
	Separator      string
	AtLeastOne     bool
	StopAfterFirst bool
	DetectedEnds   []string
}

func (*TagsWithSeparator) isFormat() {}
