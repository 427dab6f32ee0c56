package convert

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// qwenXMLSchema is the subset of a JSON Schema object this translator
// understands: a set of named parameters, each rendered as an XML-ish
// tag pair wrapping arbitrary text, with non-required parameters made
// optional.
type qwenXMLSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

// qwenXMLToolCallingToEBNF translates a JSON Schema describing a tool
// call's parameters into the small EBNF dialect the ebnf package reads,
// modeling the Qwen XML tool-calling convention: each parameter is
// wrapped in its own <name>...</name> tag, required parameters always
// present, optional ones individually skippable.
func qwenXMLToolCallingToEBNF(schemaJSON string) (string, error) {
	var schema qwenXMLSchema
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return "", fmt.Errorf("decoding qwen_xml_parameter schema: %w", err)
	}

	if len(schema.Properties) == 0 {
		return `root ::= "";`, nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var params strings.Builder
	var rootParts []string
	for _, name := range names {
		ruleName := "param_" + sanitizeRuleName(name)
		fmt.Fprintf(&params, "%s ::= %q any_text %q;\n", ruleName, "<"+name+">", "</"+name+">")
		if required[name] {
			rootParts = append(rootParts, ruleName)
		} else {
			rootParts = append(rootParts, "("+ruleName+")?")
		}
	}

	// root is declared first: ebnf.AddToBuilder returns the rule id of
	// the first-declared rule.
	var b strings.Builder
	fmt.Fprintf(&b, "root ::= %s;\n", strings.Join(rootParts, " "))
	b.WriteString(params.String())
	return b.String(), nil
}

// sanitizeRuleName maps an arbitrary JSON Schema property name to a
// valid EBNF identifier by replacing any character outside [A-Za-z0-9_]
// with an underscore.
func sanitizeRuleName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
