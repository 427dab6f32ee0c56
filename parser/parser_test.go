package parser

import (
	"reflect"
	"testing"

	"github.com/ricohasgit/xgrammar/ast"
)

func TestParseConstString(t *testing.T) {
	tag, err := New().Parse(`{"type":"structural_tag","format":{"type":"const_string","value":"hello"}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cs, ok := tag.Format.(*ast.ConstString)
	if !ok {
		t.Fatalf("got %T, want *ast.ConstString", tag.Format)
	}
	if cs.Value != "hello" {
		t.Errorf("Value = %q, want %q", cs.Value, "hello")
	}
}

func TestParseConstStringEmptyRejected(t *testing.T) {
	_, err := New().Parse(`{"format":{"type":"const_string","value":""}}`)
	if err == nil {
		t.Fatal("expected error for empty const_string value")
	}
}

func TestParseInvalidJSONReportsSyntaxError(t *testing.T) {
	_, err := New().Parse(`{not json`)
	var syn *JSONSyntaxError
	if !isJSONSyntaxError(err, &syn) {
		t.Fatalf("expected *JSONSyntaxError, got %T: %v", err, err)
	}
}

func isJSONSyntaxError(err error, target **JSONSyntaxError) bool {
	e, ok := err.(*JSONSyntaxError)
	if ok {
		*target = e
	}
	return ok
}

func TestParseTagWithStringEnd(t *testing.T) {
	doc := `{"format":{"type":"tag","begin":"<x>","content":{"type":"const_string","value":"v"},"end":"</x>"}}`
	tag, err := New().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tg, ok := tag.Format.(*ast.Tag)
	if !ok {
		t.Fatalf("got %T, want *ast.Tag", tag.Format)
	}
	if tg.Begin != "<x>" || len(tg.End) != 1 || tg.End[0] != "</x>" {
		t.Errorf("unexpected tag: %+v", tg)
	}
}

func TestParseTagWithArrayEnd(t *testing.T) {
	doc := `{"format":{"type":"tag","begin":"<x>","content":{"type":"const_string","value":"v"},"end":["</x>","</y>"]}}`
	tag, err := New().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tg := tag.Format.(*ast.Tag)
	if len(tg.End) != 2 {
		t.Errorf("End = %v, want 2 elements", tg.End)
	}
}

func TestParseUntypedDispatchPrefersTag(t *testing.T) {
	doc := `{"format":{"begin":"<x>","content":{"type":"const_string","value":"v"},"end":"</x>"}}`
	tag, err := New().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := tag.Format.(*ast.Tag); !ok {
		t.Fatalf("got %T, want *ast.Tag", tag.Format)
	}
}

func TestParseSequenceFlattensNested(t *testing.T) {
	doc := `{"format":{"type":"sequence","elements":[
		{"type":"const_string","value":"a"},
		{"type":"sequence","elements":[
			{"type":"const_string","value":"b"},
			{"type":"const_string","value":"c"}
		]}
	]}}`
	tag, err := New().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	seq := tag.Format.(*ast.Sequence)
	if len(seq.Elements) != 3 {
		t.Fatalf("Elements = %d, want 3 (flattened)", len(seq.Elements))
	}
}

func TestParseSequenceRequiresAtLeastOneElement(t *testing.T) {
	_, err := New().Parse(`{"format":{"type":"sequence","elements":[]}}`)
	if err == nil {
		t.Fatal("expected error for empty sequence")
	}
}

func TestParseOrRequiresAtLeastOneElement(t *testing.T) {
	_, err := New().Parse(`{"format":{"type":"or","elements":[]}}`)
	if err == nil {
		t.Fatal("expected error for empty or")
	}
}

func TestParseRegexWithExcludes(t *testing.T) {
	doc := `{"format":{"type":"regex","pattern":"[a-z]+","excludes":["bad"]}}`
	tag, err := New().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	re := tag.Format.(*ast.Regex)
	if re.Pattern != "[a-z]+" || len(re.Excludes) != 1 || re.Excludes[0] != "bad" {
		t.Errorf("unexpected regex: %+v", re)
	}
}

func TestParseTriggeredTagsRequiresNonEmptyTriggers(t *testing.T) {
	doc := `{"format":{"type":"triggered_tags","triggers":[],"tags":[
		{"begin":"<a>","content":{"type":"const_string","value":"v"},"end":"</a>"}
	]}}`
	_, err := New().Parse(doc)
	if err == nil {
		t.Fatal("expected error for empty triggers")
	}
}

func TestParseTagsWithSeparator(t *testing.T) {
	doc := `{"format":{"type":"tags_with_separator","separator":",","tags":[
		{"begin":"<a>","content":{"type":"const_string","value":"v"},"end":"</a>"}
	],"at_least_one":true}}`
	tag, err := New().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tws := tag.Format.(*ast.TagsWithSeparator)
	if tws.Separator != "," || !tws.AtLeastOne || len(tws.Tags) != 1 {
		t.Errorf("unexpected tags_with_separator: %+v", tws)
	}
}

func TestParseMissingFormatField(t *testing.T) {
	_, err := New().Parse(`{"type":"structural_tag"}`)
	if err == nil {
		t.Fatal("expected error for missing format field")
	}
}

func TestParseRecursionDepthExceeded(t *testing.T) {
	doc := `{"type":"const_string","value":"v"}`
	for i := 0; i < 100; i++ {
		doc = `{"type":"tag","begin":"<a>","content":` + doc + `,"end":"</a>"}`
	}
	_, err := NewWithMaxDepth(16).Parse(`{"format":` + doc + `}`)
	if err == nil {
		t.Fatal("expected recursion depth error")
	}
}

// TestParseSerializeRoundTrip checks spec.md §8's round-trip property:
// parse(serialize(t)) reproduces t, for a seed format covering every
// variant. DetectedEnds isn't compared directly since it's filled in
// by the analyzer, not the parser — both sides are freshly parsed, so
// it's nil on both.
func TestParseSerializeRoundTrip(t *testing.T) {
	docs := []string{
		`{"type":"const_string","value":"hello"}`,
		`{"type":"json_schema","json_schema":{"type":"string"}}`,
		`{"type":"qwen_xml_parameter","json_schema":{"type":"object"}}`,
		`{"type":"grammar","grammar":"root ::= \"x\""}`,
		`{"type":"regex","pattern":"[a-z]+","excludes":["bad"]}`,
		`{"type":"any_text","excludes":["nope"]}`,
		`{"type":"sequence","elements":[
			{"type":"const_string","value":"a"},
			{"type":"const_string","value":"b"}
		]}`,
		`{"type":"or","elements":[
			{"type":"const_string","value":"a"},
			{"type":"const_string","value":"b"}
		]}`,
		`{"type":"tag","begin":"<x>","content":{"type":"const_string","value":"v"},"end":["</x>","</y>"]}`,
		`{"type":"triggered_tags","triggers":["<t"],"tags":[
			{"begin":"<t>","content":{"type":"const_string","value":"v"},"end":"</t>"}
		],"at_least_one":true,"stop_after_first":true,"excludes":["bad"]}`,
		`{"type":"tags_with_separator","separator":",","tags":[
			{"begin":"<t>","content":{"type":"const_string","value":"v"},"end":"</t>"}
		],"at_least_one":true}`,
	}

	for _, doc := range docs {
		original, err := New().Parse(`{"format":` + doc + `}`)
		if err != nil {
			t.Fatalf("Parse(%s): %v", doc, err)
		}

		serialized, err := Serialize(original.Format)
		if err != nil {
			t.Fatalf("Serialize(%s): %v", doc, err)
		}

		roundTripped, err := New().Parse(`{"format":` + serialized + `}`)
		if err != nil {
			t.Fatalf("Parse(Serialize(%s)) = %v", doc, err)
		}

		if !reflect.DeepEqual(original.Format, roundTripped.Format) {
			t.Errorf("round trip mismatch for %s:\n  original:  %+v\n  round-trip: %+v", doc, original.Format, roundTripped.Format)
		}
	}
}

func TestParseJSONSchemaCanonicalizes(t *testing.T) {
	doc := `{"format":{"type":"json_schema","json_schema":{"b":1,"a":2}}}`
	tag, err := New().Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	js := tag.Format.(*ast.JSONSchema)
	if js.Schema != `{"a":2,"b":1}` {
		t.Errorf("Schema = %q, want sorted-key canonical form", js.Schema)
	}
}
