package jsonschema

import (
	"strings"
	"testing"

	"github.com/ricohasgit/xgrammar/grammar"
)

func TestAddToBuilderString(t *testing.T) {
	b := grammar.NewBuilder()
	id, err := AddToBuilder(b, `{"type":"string"}`)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	out := b.Get(id).Normalize().String()
	if !strings.Contains(out, `"`) {
		t.Errorf("String() = %q, want a quote literal", out)
	}
}

func TestAddToBuilderObjectWithProperties(t *testing.T) {
	schema := `{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"integer"}},"required":["name"]}`
	b := grammar.NewBuilder()
	id, err := AddToBuilder(b, schema)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	out := b.Get(id).Normalize().String()
	if !strings.Contains(out, "name") {
		t.Errorf("String() = %q, want the property key \"name\"", out)
	}
}

func TestAddToBuilderRejectsMalformedSchema(t *testing.T) {
	b := grammar.NewBuilder()
	_, err := AddToBuilder(b, `{"type":"string","minLength":"not a number"}`)
	if err == nil {
		t.Fatal("expected an error for a malformed schema")
	}
}

func TestAddToBuilderEnum(t *testing.T) {
	b := grammar.NewBuilder()
	id, err := AddToBuilder(b, `{"enum":["a","b","c"]}`)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	out := b.Get(id).Normalize().String()
	if !strings.Contains(out, `"\"a\""`) || !strings.Contains(out, `"\"b\""`) {
		t.Errorf("String() = %q, want enum literals", out)
	}
}

func TestAddToBuilderEnumWithValidDefault(t *testing.T) {
	b := grammar.NewBuilder()
	_, err := AddToBuilder(b, `{"enum":["a","b","c"],"default":"b"}`)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
}

func TestAddToBuilderEnumWithInvalidDefaultRejected(t *testing.T) {
	b := grammar.NewBuilder()
	_, err := AddToBuilder(b, `{"enum":["a","b","c"],"default":"z"}`)
	if err == nil {
		t.Fatal("expected an error for a default value outside the enum")
	}
}

func TestEnumMatcherContains(t *testing.T) {
	m, err := NewEnumMatcher([]any{"red", "green", "blue"})
	if err != nil {
		t.Fatalf("NewEnumMatcher: %v", err)
	}
	if !m.Contains("green") {
		t.Error("expected Contains(\"green\") to be true")
	}
	if m.Contains("re") {
		t.Error("expected Contains(\"re\") to be false (not an exact enum member)")
	}
	if m.Contains("greenish") {
		t.Error("expected Contains(\"greenish\") to be false (substring match, not exact)")
	}
}
