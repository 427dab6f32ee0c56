package ebnf

import (
	"strings"
	"testing"

	"github.com/ricohasgit/xgrammar/grammar"
)

func TestAddToBuilderSimpleRule(t *testing.T) {
	b := grammar.NewBuilder()
	id, err := AddToBuilder(b, `greeting ::= "hello" "world";`)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	out := b.Get(id).Normalize().String()
	if !strings.Contains(out, `"hello"`) || !strings.Contains(out, `"world"`) {
		t.Errorf("String() = %q, want both literals", out)
	}
}

func TestAddToBuilderAlternationAndRuleRef(t *testing.T) {
	src := `
		root ::= "a" suffix | "b" suffix;
		suffix ::= "!";
	`
	b := grammar.NewBuilder()
	id, err := AddToBuilder(b, src)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	out := b.Get(id).Normalize().String()
	if !strings.Contains(out, "suffix ::=") {
		t.Errorf("String() = %q, want the suffix rule spliced in", out)
	}
	if !strings.Contains(out, "|") {
		t.Errorf("String() = %q, want an alternation", out)
	}
}

func TestAddToBuilderStarRepeat(t *testing.T) {
	b := grammar.NewBuilder()
	id, err := AddToBuilder(b, `root ::= "x"*;`)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	out := b.Get(id).Normalize().String()
	if !strings.Contains(out, `"x"`) {
		t.Errorf("String() = %q, want the repeated literal", out)
	}
}

func TestAddToBuilderAnyTextBuiltin(t *testing.T) {
	b := grammar.NewBuilder()
	id, err := AddToBuilder(b, `root ::= "<x>" any_text "</x>";`)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	out := b.Get(id).Normalize().String()
	if !strings.Contains(out, "*") {
		t.Errorf("String() = %q, want the any_text star expansion", out)
	}
}

func TestAddToBuilderUndeclaredRuleErrors(t *testing.T) {
	b := grammar.NewBuilder()
	_, err := AddToBuilder(b, `root ::= missing;`)
	if err == nil {
		t.Fatal("expected an error for a reference to an undeclared rule")
	}
}

func TestAddToBuilderDuplicateRuleErrors(t *testing.T) {
	b := grammar.NewBuilder()
	_, err := AddToBuilder(b, `root ::= "a"; root ::= "b";`)
	if err == nil {
		t.Fatal("expected an error for a duplicate rule name")
	}
}
