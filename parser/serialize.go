package parser

import (
	"encoding/json"
	"fmt"

	"github.com/ricohasgit/xgrammar/ast"
)

// Serialize renders a Format tree back to the structural-tag JSON shape
// parseFormat accepts, the inverse spec.md §8's round-trip property
// checks against Parse. Every object carries an explicit "type" field
// so re-parsing never falls through to the untyped-dispatch order, and
// a Tag's End is always emitted as an array (Parse also accepts a bare
// string, but the array form is canonical). Fields the analyzer fills
// in after parsing (DetectedEnds) are not parser input, so they're not
// serialized.
func Serialize(f ast.Format) (string, error) {
	v, err := serializeValue(f)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func serializeValue(f ast.Format) (map[string]any, error) {
	switch n := f.(type) {
	case *ast.ConstString:
		return map[string]any{"type": "const_string", "value": n.Value}, nil

	case *ast.JSONSchema:
		var schema any
		if err := json.Unmarshal([]byte(n.Schema), &schema); err != nil {
			return nil, fmt.Errorf("serializing json_schema: %w", err)
		}
		return map[string]any{"type": "json_schema", "json_schema": schema}, nil

	case *ast.QwenXmlParameter:
		var schema any
		if err := json.Unmarshal([]byte(n.Schema), &schema); err != nil {
			return nil, fmt.Errorf("serializing qwen_xml_parameter: %w", err)
		}
		return map[string]any{"type": "qwen_xml_parameter", "json_schema": schema}, nil

	case *ast.Grammar:
		return map[string]any{"type": "grammar", "grammar": n.EBNF}, nil

	case *ast.Regex:
		m := map[string]any{"type": "regex", "pattern": n.Pattern}
		if n.Excludes != nil {
			m["excludes"] = n.Excludes
		}
		return m, nil

	case *ast.AnyText:
		m := map[string]any{"type": "any_text"}
		if n.Excludes != nil {
			m["excludes"] = n.Excludes
		}
		return m, nil

	case *ast.Sequence:
		elements := make([]map[string]any, len(n.Elements))
		for i, e := range n.Elements {
			v, err := serializeValue(e)
			if err != nil {
				return nil, err
			}
			elements[i] = v
		}
		return map[string]any{"type": "sequence", "elements": elements}, nil

	case *ast.Or:
		elements := make([]map[string]any, len(n.Elements))
		for i, e := range n.Elements {
			v, err := serializeValue(e)
			if err != nil {
				return nil, err
			}
			elements[i] = v
		}
		return map[string]any{"type": "or", "elements": elements}, nil

	case *ast.Tag:
		return serializeTag(n)

	case *ast.TriggeredTags:
		tags := make([]map[string]any, len(n.Tags))
		for i, t := range n.Tags {
			v, err := serializeTag(t)
			if err != nil {
				return nil, err
			}
			tags[i] = v
		}
		m := map[string]any{
			"type":     "triggered_tags",
			"triggers": n.Triggers,
			"tags":     tags,
		}
		if n.Excludes != nil {
			m["excludes"] = n.Excludes
		}
		if n.AtLeastOne {
			m["at_least_one"] = true
		}
		if n.StopAfterFirst {
			m["stop_after_first"] = true
		}
		return m, nil

	case *ast.TagsWithSeparator:
		tags := make([]map[string]any, len(n.Tags))
		for i, t := range n.Tags {
			v, err := serializeTag(t)
			if err != nil {
				return nil, err
			}
			tags[i] = v
		}
		m := map[string]any{
			"type":      "tags_with_separator",
			"tags":      tags,
			"separator": n.Separator,
		}
		if n.AtLeastOne {
			m["at_least_one"] = true
		}
		if n.StopAfterFirst {
			m["stop_after_first"] = true
		}
		return m, nil

	default:
		return nil, fmt.Errorf("serialize: unsupported format type %T", f)
	}
}

func serializeTag(t *ast.Tag) (map[string]any, error) {
	content, err := serializeValue(t.Content)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":    "tag",
		"begin":   t.Begin,
		"content": content,
		"end":     t.End,
	}, nil
}
