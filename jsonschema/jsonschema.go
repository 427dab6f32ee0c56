// Package jsonschema validates structural-tag JSON Schema documents
// and lowers the common JSON Schema vocabulary to grammar rules.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ricohasgit/xgrammar/grammar"
)

// Compile parses and compiles a raw JSON Schema document, catching a
// malformed schema before any attempt is made to lower it to grammar
// rules.
func Compile(schemaJSON string) (*jsonschema.Schema, error) {
	schemaData, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing json schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("loading json schema: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling json schema: %w", err)
	}
	return compiled, nil
}

// schemaNode is the subset of raw JSON Schema fields this package
// lowers to grammar rules.
type schemaNode struct {
	Type                 any             `json:"type"`
	Enum                 []any           `json:"enum"`
	Const                json.RawMessage `json:"const"`
	Default              json.RawMessage `json:"default"`
	Properties           map[string]json.RawMessage `json:"properties"`
	Required             []string        `json:"required"`
	AdditionalProperties *bool           `json:"additionalProperties"`
	Items                json.RawMessage `json:"items"`
	MinLength            *int            `json:"minLength"`
	MaxLength            *int            `json:"maxLength"`
	Pattern              string          `json:"pattern"`
}

// AddToBuilder validates schemaJSON and lowers it to a grammar rule,
// returning the rule id of the top-level schema. Compile is run first
// so a malformed schema is rejected before any lowering is attempted.
func AddToBuilder(b *grammar.Builder, schemaJSON string) (grammar.RuleID, error) {
	if strings.TrimSpace(schemaJSON) == "true" {
		return anyJSONValue(b), nil
	}
	if strings.TrimSpace(schemaJSON) == "false" {
		return b.AddEmptyRuleWithHint("json_schema_false"), nil // never matches: body left [ε]-free, i.e. unsatisfiable
	}

	if _, err := Compile(schemaJSON); err != nil {
		return 0, err
	}

	var node schemaNode
	if err := json.Unmarshal([]byte(schemaJSON), &node); err != nil {
		return 0, fmt.Errorf("parsing json schema: %w", err)
	}
	return addNode(b, &node)
}

func addNode(b *grammar.Builder, n *schemaNode) (grammar.RuleID, error) {
	if len(n.Const) > 0 {
		return addConst(b, n.Const)
	}
	if len(n.Enum) > 0 {
		return addEnum(b, n.Enum, n.Default)
	}

	typeName, _ := n.Type.(string)
	switch typeName {
	case "string":
		return addString(b, n)
	case "number", "integer":
		return addNumber(b, typeName == "integer")
	case "boolean":
		return addBoolean(b)
	case "null":
		return addLiteral(b, "null")
	case "array":
		return addArray(b, n)
	case "object", "":
		return addObject(b, n)
	default:
		return 0, fmt.Errorf("unsupported json schema type %q", typeName)
	}
}

func addLiteral(b *grammar.Builder, text string) (grammar.RuleID, error) {
	return b.AddRuleWithHint("json_literal", b.AddByteString([]byte(text))), nil
}

func addConst(b *grammar.Builder, raw json.RawMessage) (grammar.RuleID, error) {
	return b.AddRuleWithHint("json_const", b.AddByteString(canonicalJSON(raw))), nil
}

// addEnum builds a choice over the canonical JSON encoding of each
// enum value. When the schema also carries a default, it is checked
// against the enum with an EnumMatcher (an Aho-Corasick automaton over
// the enum's encodings, instead of a linear string scan) before the
// grammar is built at all: a default outside its own enum is a
// malformed schema, caught here rather than silently producing a
// grammar whose default a caller can never actually supply.
func addEnum(b *grammar.Builder, values []any, defaultRaw json.RawMessage) (grammar.RuleID, error) {
	var alts []grammar.ExprID
	for _, v := range values {
		encoded, err := json.Marshal(v)
		if err != nil {
			return 0, fmt.Errorf("encoding enum value: %w", err)
		}
		alts = append(alts, b.AddByteString(encoded))
	}

	if len(defaultRaw) > 0 {
		matcher, err := NewEnumMatcher(values)
		if err != nil {
			return 0, fmt.Errorf("building enum matcher: %w", err)
		}
		var defaultValue any
		if err := json.Unmarshal(defaultRaw, &defaultValue); err != nil {
			return 0, fmt.Errorf("parsing default value: %w", err)
		}
		if !matcher.Contains(defaultValue) {
			return 0, fmt.Errorf("default value %s is not one of the enum's values", defaultRaw)
		}
	}

	return b.AddRuleWithHint("json_enum", b.AddChoices(alts)), nil
}

func addString(b *grammar.Builder, n *schemaNode) (grammar.RuleID, error) {
	// A plain JSON string body: a quote, any run (possibly empty) of
	// characters other than the quote, backslash and control characters,
	// a quote. Escape sequences are not accepted, and minLength/maxLength/
	// pattern are not applied.
	inner := b.AddCharacterClassStar([][2]rune{{0x20, 0x21}, {0x23, 0x5B}, {0x5D, 0x10FFFF}})
	quote := b.AddByteString([]byte{'"'})
	return b.AddRuleWithHint("json_string", b.AddSequence([]grammar.ExprID{quote, inner, quote})), nil
}

func addNumber(b *grammar.Builder, integer bool) (grammar.RuleID, error) {
	digits := b.AddCharacterClass([][2]rune{{'0', '9'}})
	digitsStar := b.AddCharacterClassStar([][2]rune{{'0', '9'}})
	sign := b.AddCharacterClass([][2]rune{{'-', '-'}})
	optSign := b.AddChoices([]grammar.ExprID{sign, b.AddEmptyStr()})
	intPart := b.AddSequence([]grammar.ExprID{optSign, digits, digitsStar})
	if integer {
		return b.AddRuleWithHint("json_integer", intPart), nil
	}
	dot := b.AddByteString([]byte{'.'})
	frac := b.AddSequence([]grammar.ExprID{dot, digits, digitsStar})
	optFrac := b.AddChoices([]grammar.ExprID{frac, b.AddEmptyStr()})
	return b.AddRuleWithHint("json_number", b.AddSequence([]grammar.ExprID{intPart, optFrac})), nil
}

func addBoolean(b *grammar.Builder) (grammar.RuleID, error) {
	t := b.AddByteString([]byte("true"))
	f := b.AddByteString([]byte("false"))
	return b.AddRuleWithHint("json_boolean", b.AddChoices([]grammar.ExprID{t, f})), nil
}

func addArray(b *grammar.Builder, n *schemaNode) (grammar.RuleID, error) {
	open := b.AddByteString([]byte{'['})
	close_ := b.AddByteString([]byte{']'})

	var itemRule grammar.RuleID
	if len(n.Items) > 0 {
		var itemNode schemaNode
		if err := json.Unmarshal(n.Items, &itemNode); err != nil {
			return 0, fmt.Errorf("parsing items schema: %w", err)
		}
		id, err := addNode(b, &itemNode)
		if err != nil {
			return 0, err
		}
		itemRule = id
	} else {
		itemRule = anyJSONValueRule(b)
	}

	itemRef := b.AddRuleRef(itemRule)
	comma := b.AddByteString([]byte{','})

	restID := b.AddEmptyRuleWithHint("json_array_rest")
	restBody := b.AddChoices([]grammar.ExprID{
		b.AddSequence([]grammar.ExprID{comma, itemRef, b.AddRuleRef(restID)}),
		b.AddEmptyStr(),
	})
	b.UpdateRuleBody(restID, restBody)

	nonEmpty := b.AddSequence([]grammar.ExprID{itemRef, b.AddRuleRef(restID)})
	body := b.AddChoices([]grammar.ExprID{nonEmpty, b.AddEmptyStr()})

	return b.AddRuleWithHint("json_array", b.AddSequence([]grammar.ExprID{open, body, close_})), nil
}

func addObject(b *grammar.Builder, n *schemaNode) (grammar.RuleID, error) {
	open := b.AddByteString([]byte{'{'})
	close_ := b.AddByteString([]byte{'}'})
	comma := b.AddByteString([]byte{','})
	colon := b.AddByteString([]byte{':'})

	if len(n.Properties) == 0 {
		// No declared shape: accept any well-formed object body.
		keyRule := anyJSONStringRule(b)
		valRule := anyJSONValueRule(b)
		entry := b.AddSequence([]grammar.ExprID{b.AddRuleRef(keyRule), colon, b.AddRuleRef(valRule)})
		restID := b.AddEmptyRuleWithHint("json_object_rest")
		b.UpdateRuleBody(restID, b.AddChoices([]grammar.ExprID{
			b.AddSequence([]grammar.ExprID{comma, entry, b.AddRuleRef(restID)}),
			b.AddEmptyStr(),
		}))
		body := b.AddChoices([]grammar.ExprID{
			b.AddSequence([]grammar.ExprID{entry, b.AddRuleRef(restID)}),
			b.AddEmptyStr(),
		})
		return b.AddRuleWithHint("json_object", b.AddSequence([]grammar.ExprID{open, body, close_})), nil
	}

	required := map[string]bool{}
	for _, r := range n.Required {
		required[r] = true
	}

	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	type slot struct {
		entry    grammar.ExprID
		required bool
	}
	slots := make([]slot, len(names))
	for i, name := range names {
		var propNode schemaNode
		if err := json.Unmarshal(n.Properties[name], &propNode); err != nil {
			return 0, fmt.Errorf("parsing property %q: %w", name, err)
		}
		valID, err := addNode(b, &propNode)
		if err != nil {
			return 0, fmt.Errorf("property %q: %w", name, err)
		}
		key := b.AddByteString(canonicalJSON(json.RawMessage(fmt.Sprintf("%q", name))))
		slots[i] = slot{
			entry:    b.AddSequence([]grammar.ExprID{key, colon, b.AddRuleRef(valID)}),
			required: required[name],
		}
	}

	// Walk the property slots back to front, folding each slot's leading
	// comma into its own presence choice rather than splicing commas
	// unconditionally between slots: rest[i] is "the tail starting at
	// slot i, given nothing has been emitted yet"; afterRest[i] is the
	// same tail given some earlier slot was already emitted (so a
	// present slot i needs a leading comma). This keeps the comma count
	// exactly matched to the number of slots actually present, for any
	// subset of optional slots.
	rest := b.AddEmptyStr()
	afterRest := b.AddEmptyStr()
	for i := len(slots) - 1; i >= 0; i-- {
		s := slots[i]
		if s.required {
			newRest := b.AddSequence([]grammar.ExprID{s.entry, afterRest})
			newAfterRest := b.AddSequence([]grammar.ExprID{comma, s.entry, afterRest})
			rest, afterRest = newRest, newAfterRest
			continue
		}
		present := b.AddSequence([]grammar.ExprID{s.entry, afterRest})
		presentAfter := b.AddSequence([]grammar.ExprID{comma, s.entry, afterRest})
		newRest := b.AddChoices([]grammar.ExprID{present, rest})
		newAfterRest := b.AddChoices([]grammar.ExprID{presentAfter, afterRest})
		rest, afterRest = newRest, newAfterRest
	}

	return b.AddRuleWithHint("json_object", b.AddSequence([]grammar.ExprID{open, rest, close_})), nil
}

func anyJSONValue(b *grammar.Builder) grammar.RuleID {
	return anyJSONValueRule(b)
}

// anyJSONValueRule builds a rule accepting any well-formed JSON
// scalar, used where a schema leaves a position unconstrained (array
// items with no "items" schema, values of an object with no declared
// properties, and the `true` schema).
func anyJSONValueRule(b *grammar.Builder) grammar.RuleID {
	str := anyJSONStringRule(b)
	num, _ := addNumber(b, false)
	boolRule, _ := addBoolean(b)
	nullLit := b.AddByteString([]byte("null"))
	choice := b.AddChoices([]grammar.ExprID{
		b.AddRuleRef(str),
		b.AddRuleRef(num),
		b.AddRuleRef(boolRule),
		nullLit,
	})
	return b.AddRuleWithHint("json_any_value", choice)
}

func anyJSONStringRule(b *grammar.Builder) grammar.RuleID {
	id, _ := addString(b, &schemaNode{})
	return id
}

// canonicalJSON re-encodes raw through encoding/json to normalize
// whitespace and key order.
func canonicalJSON(raw json.RawMessage) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}
