// Package parser turns a structural-tag JSON document into a typed
// ast.Format tree.
package parser

import (
	"encoding/json"
	"fmt"

	"github.com/ricohasgit/xgrammar/ast"
)

const defaultMaxRecursionDepth = 64

// JSONSyntaxError wraps a failure to parse the input as JSON at all,
// distinguishing it from a structural/semantic validation failure.
type JSONSyntaxError struct {
	Err error
}

func (e *JSONSyntaxError) Error() string { return "invalid JSON: " + e.Err.Error() }
func (e *JSONSyntaxError) Unwrap() error { return e.Err }

// Parser parses structural tag JSON documents into ast.Format trees.
type Parser struct {
	maxDepth int
	depth    int
	warnings []string
}

// New creates a Parser with the default recursion depth limit.
func New() *Parser {
	return &Parser{maxDepth: defaultMaxRecursionDepth}
}

// NewWithMaxDepth creates a Parser with a caller-chosen recursion depth
// limit on nested format objects.
func NewWithMaxDepth(maxDepth int) *Parser {
	return &Parser{maxDepth: maxDepth}
}

// Warnings returns any warnings generated during the last Parse.
func (p *Parser) Warnings() []string {
	return p.warnings
}

// Parse parses a structural tag JSON document into an ast.StructuralTag.
// The returned error is *JSONSyntaxError if the input is not valid JSON,
// or a plain error describing a structural/semantic validation failure
// otherwise.
func (p *Parser) Parse(input string) (*ast.StructuralTag, error) {
	p.warnings = nil
	p.depth = 0

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(input), &top); err != nil {
		if json.Valid([]byte(input)) {
			return nil, fmt.Errorf("structural tag must be a JSON object: %w", err)
		}
		return nil, &JSONSyntaxError{Err: err}
	}

	if typRaw, ok := top["type"]; ok {
		var typ string
		if err := json.Unmarshal(typRaw, &typ); err != nil || typ != "structural_tag" {
			return nil, fmt.Errorf(`structural tag's type must be a string "structural_tag"`)
		}
	}

	formatRaw, ok := top["format"]
	if !ok {
		return nil, fmt.Errorf("structural tag must have a format field")
	}

	format, err := p.parseFormat(formatRaw)
	if err != nil {
		return nil, err
	}
	return &ast.StructuralTag{Format: format}, nil
}

// parseFormat parses a single Format value, dispatching on its "type"
// field when present, or trying each variant (Tag first) when absent.
func (p *Parser) parseFormat(raw json.RawMessage) (ast.Format, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		return nil, fmt.Errorf("format recursion depth exceeded (limit %d)", p.maxDepth)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("format must be an object: %w", err)
	}

	if typRaw, ok := obj["type"]; ok {
		var typ string
		if err := json.Unmarshal(typRaw, &typ); err != nil {
			return nil, fmt.Errorf("format's type must be a string")
		}
		switch typ {
		case "const_string":
			return p.parseConstString(obj)
		case "json_schema":
			return p.parseJSONSchema(obj)
		case "qwen_xml_parameter":
			return p.parseQwenXmlParameter(obj)
		case "any_text":
			return p.parseAnyText(obj)
		case "grammar":
			return p.parseGrammar(obj)
		case "regex":
			return p.parseRegex(obj)
		case "sequence":
			return p.parseSequence(obj)
		case "or":
			return p.parseOr(obj)
		case "tag":
			return p.parseTag(obj)
		case "triggered_tags":
			return p.parseTriggeredTags(obj)
		case "tags_with_separator":
			return p.parseTagsWithSeparator(obj)
		default:
			return nil, fmt.Errorf("format type not recognized: %s", typ)
		}
	}

	// No type field: try each variant in priority order, Tag first.
	if f, err := p.parseTag(obj); err == nil {
		return f, nil
	}
	if f, err := p.parseConstString(obj); err == nil {
		return f, nil
	}
	if f, err := p.parseJSONSchema(obj); err == nil {
		return f, nil
	}
	if f, err := p.parseAnyText(obj); err == nil {
		return f, nil
	}
	if f, err := p.parseSequence(obj); err == nil {
		return f, nil
	}
	if f, err := p.parseOr(obj); err == nil {
		return f, nil
	}
	if f, err := p.parseTriggeredTags(obj); err == nil {
		return f, nil
	}
	if f, err := p.parseTagsWithSeparator(obj); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("invalid format: %s", string(raw))
}

func (p *Parser) parseConstString(obj map[string]json.RawMessage) (*ast.ConstString, error) {
	value, ok := stringField(obj, "value")
	if !ok || value == "" {
		return nil, fmt.Errorf("const_string format must have a value field with a non-empty string")
	}
	return &ast.ConstString{Value: value}, nil
}

func (p *Parser) parseJSONSchema(obj map[string]json.RawMessage) (*ast.JSONSchema, error) {
	canon, err := canonicalSchema(obj, "json_schema")
	if err != nil {
		return nil, fmt.Errorf("json_schema format: %w", err)
	}
	return &ast.JSONSchema{Schema: canon}, nil
}

func (p *Parser) parseQwenXmlParameter(obj map[string]json.RawMessage) (*ast.QwenXmlParameter, error) {
	canon, err := canonicalSchema(obj, "json_schema")
	if err != nil {
		return nil, fmt.Errorf("qwen_xml_parameter format: %w", err)
	}
	return &ast.QwenXmlParameter{Schema: canon}, nil
}

// canonicalSchema requires field to be a JSON object or boolean, and
// re-serializes it to canonical JSON text.
func canonicalSchema(obj map[string]json.RawMessage, field string) (string, error) {
	raw, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("must have a %s field with an object or boolean value", field)
	}
	var asBool bool
	var asObj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return marshalCanonical(asBool)
	}
	if err := json.Unmarshal(raw, &asObj); err != nil {
		return "", fmt.Errorf("must have a %s field with an object or boolean value", field)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	return marshalCanonical(generic)
}

func marshalCanonical(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *Parser) parseAnyText(obj map[string]json.RawMessage) (*ast.AnyText, error) {
	excludesRaw, hasExcludes := obj["excludes"]
	if !hasExcludes {
		if len(nonTypeKeys(obj)) > 0 {
			return nil, fmt.Errorf("any_text format should not have any fields other than type")
		}
		return &ast.AnyText{}, nil
	}
	excludes, err := stringArrayField(excludesRaw)
	if err != nil {
		return nil, fmt.Errorf("any_text format's excludes field must be an array of strings: %w", err)
	}
	return &ast.AnyText{Excludes: excludes}, nil
}

func (p *Parser) parseGrammar(obj map[string]json.RawMessage) (*ast.Grammar, error) {
	ebnf, ok := stringField(obj, "grammar")
	if !ok || ebnf == "" {
		return nil, fmt.Errorf("grammar format must have a grammar field with a non-empty string")
	}
	return &ast.Grammar{EBNF: ebnf}, nil
}

func (p *Parser) parseRegex(obj map[string]json.RawMessage) (*ast.Regex, error) {
	pattern, ok := stringField(obj, "pattern")
	if !ok || pattern == "" {
		return nil, fmt.Errorf("regex format must have a pattern field with a non-empty string")
	}
	var excludes []string
	if excludesRaw, ok := obj["excludes"]; ok {
		arr, err := stringArrayField(excludesRaw)
		if err != nil {
			return nil, fmt.Errorf("regex format's excludes field must be an array: %w", err)
		}
		for _, e := range arr {
			if e == "" {
				return nil, fmt.Errorf("regex format's excludes array must contain non-empty strings")
			}
		}
		excludes = arr
	}
	return &ast.Regex{Pattern: pattern, Excludes: excludes}, nil
}

func (p *Parser) parseSequence(obj map[string]json.RawMessage) (*ast.Sequence, error) {
	elementsRaw, ok := obj["elements"]
	if !ok {
		return nil, fmt.Errorf("sequence format must have an elements field with an array")
	}
	var rawElems []json.RawMessage
	if err := json.Unmarshal(elementsRaw, &rawElems); err != nil {
		return nil, fmt.Errorf("sequence format must have an elements field with an array: %w", err)
	}

	var elements []ast.Format
	for _, raw := range rawElems {
		f, err := p.parseFormat(raw)
		if err != nil {
			return nil, err
		}
		// Flatten nested sequences: splice a child Sequence's elements
		// inline rather than nesting.
		if nested, ok := f.(*ast.Sequence); ok {
			elements = append(elements, nested.Elements...)
		} else {
			elements = append(elements, f)
		}
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("sequence format must have at least one element")
	}
	return &ast.Sequence{Elements: elements}, nil
}

func (p *Parser) parseOr(obj map[string]json.RawMessage) (*ast.Or, error) {
	elementsRaw, ok := obj["elements"]
	if !ok {
		return nil, fmt.Errorf("or format must have an elements field with an array")
	}
	var rawElems []json.RawMessage
	if err := json.Unmarshal(elementsRaw, &rawElems); err != nil {
		return nil, fmt.Errorf("or format must have an elements field with an array: %w", err)
	}

	var elements []ast.Format
	for _, raw := range rawElems {
		f, err := p.parseFormat(raw)
		if err != nil {
			return nil, err
		}
		elements = append(elements, f)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("or format must have at least one element")
	}
	return &ast.Or{Elements: elements}, nil
}

func (p *Parser) parseTag(obj map[string]json.RawMessage) (*ast.Tag, error) {
	if typRaw, ok := obj["type"]; ok {
		var typ string
		if err := json.Unmarshal(typRaw, &typ); err != nil || typ != "tag" {
			return nil, fmt.Errorf(`tag format's type must be a string "tag"`)
		}
	}

	begin, ok := stringField(obj, "begin")
	if !ok {
		return nil, fmt.Errorf("tag format's begin field must be a string")
	}

	contentRaw, ok := obj["content"]
	if !ok {
		return nil, fmt.Errorf("tag format must have a content field")
	}
	content, err := p.parseFormat(contentRaw)
	if err != nil {
		return nil, err
	}

	endRaw, ok := obj["end"]
	if !ok {
		return nil, fmt.Errorf("tag format must have an end field")
	}
	end, err := parseEndField(endRaw)
	if err != nil {
		return nil, err
	}

	return &ast.Tag{Begin: begin, Content: content, End: end}, nil
}

func parseEndField(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("tag format's end field must be a string or array of strings")
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("tag format's end array cannot be empty")
	}
	out := make([]string, len(arr))
	for i, item := range arr {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("tag format's end array must contain only strings")
		}
		out[i] = s
	}
	return out, nil
}

func (p *Parser) parseTriggeredTags(obj map[string]json.RawMessage) (*ast.TriggeredTags, error) {
	triggersRaw, ok := obj["triggers"]
	if !ok {
		return nil, fmt.Errorf("triggered_tags format must have a triggers field with an array")
	}
	triggers, err := stringArrayField(triggersRaw)
	if err != nil {
		return nil, fmt.Errorf("triggered_tags format's triggers must be an array of strings: %w", err)
	}
	if len(triggers) == 0 {
		return nil, fmt.Errorf("triggered_tags format's triggers must be non-empty")
	}
	for _, t := range triggers {
		if t == "" {
			return nil, fmt.Errorf("triggered_tags format's triggers must be non-empty strings")
		}
	}

	tagsRaw, ok := obj["tags"]
	if !ok {
		return nil, fmt.Errorf("triggered_tags format must have a tags field with an array")
	}
	tags, err := p.parseTagArray(tagsRaw)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("triggered_tags format's tags must be non-empty")
	}

	var excludes []string
	if excludesRaw, ok := obj["excludes"]; ok {
		excludes, err = stringArrayField(excludesRaw)
		if err != nil {
			return nil, fmt.Errorf("triggered_tags format's excludes field must be an array: %w", err)
		}
		for _, e := range excludes {
			if e == "" {
				return nil, fmt.Errorf("triggered_tags format's excludes must be non-empty strings")
			}
		}
	}

	atLeastOne, err := p.boolField(obj, "at_least_one")
	if err != nil {
		return nil, err
	}
	stopAfterFirst, err := p.boolField(obj, "stop_after_first")
	if err != nil {
		return nil, err
	}

	return &ast.TriggeredTags{
		Triggers:       triggers,
		Tags:           tags,
		Excludes:       excludes,
		AtLeastOne:     atLeastOne,
		StopAfterFirst: stopAfterFirst,
	}, nil
}

func (p *Parser) parseTagsWithSeparator(obj map[string]json.RawMessage) (*ast.TagsWithSeparator, error) {
	tagsRaw, ok := obj["tags"]
	if !ok {
		return nil, fmt.Errorf("tags_with_separator format must have a tags field with an array")
	}
	tags, err := p.parseTagArray(tagsRaw)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("tags_with_separator format's tags must be non-empty")
	}

	separator, ok := stringField(obj, "separator")
	if !ok {
		return nil, fmt.Errorf("tags_with_separator format's separator field must be a string")
	}

	atLeastOne, err := p.boolField(obj, "at_least_one")
	if err != nil {
		return nil, err
	}
	stopAfterFirst, err := p.boolField(obj, "stop_after_first")
	if err != nil {
		return nil, err
	}

	return &ast.TagsWithSeparator{
		Tags:           tags,
		Separator:      separator,
		AtLeastOne:     atLeastOne,
		StopAfterFirst: stopAfterFirst,
	}, nil
}

func (p *Parser) parseTagArray(raw json.RawMessage) ([]*ast.Tag, error) {
	var rawTags []json.RawMessage
	if err := json.Unmarshal(raw, &rawTags); err != nil {
		return nil, fmt.Errorf("tags field must be an array: %w", err)
	}
	tags := make([]*ast.Tag, 0, len(rawTags))
	for _, rt := range rawTags {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rt, &obj); err != nil {
			return nil, fmt.Errorf("tag format must be an object: %w", err)
		}
		tag, err := p.parseTag(obj)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (p *Parser) boolField(obj map[string]json.RawMessage, field string) (bool, error) {
	raw, ok := obj[field]
	if !ok {
		p.warnings = append(p.warnings, fmt.Sprintf("%s not present, defaulting to false", field))
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("%s must be a boolean", field)
	}
	return b, nil
}

func stringField(obj map[string]json.RawMessage, field string) (string, bool) {
	raw, ok := obj[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func stringArrayField(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("must be an array")
	}
	out := make([]string, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("array must contain only strings")
		}
		out[i] = s
	}
	return out, nil
}

func nonTypeKeys(obj map[string]json.RawMessage) []string {
	var keys []string
	for k := range obj {
		if k != "type" {
			keys = append(keys, k)
		}
	}
	return keys
}
