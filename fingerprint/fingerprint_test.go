package fingerprint

import (
	"testing"

	"github.com/ricohasgit/xgrammar/ast"
)

func TestOfConstString(t *testing.T) {
	if got := Of(&ast.ConstString{Value: "hi"}); got != "CS:hi" {
		t.Errorf("Of = %q, want %q", got, "CS:hi")
	}
}

func TestOfRegexWithExcludes(t *testing.T) {
	got := Of(&ast.Regex{Pattern: "a+", Excludes: []string{"b", "c"}})
	want := "RX:a+:X:b|c|"
	if got != want {
		t.Errorf("Of = %q, want %q", got, want)
	}
}

func TestOfRegexWithoutExcludes(t *testing.T) {
	got := Of(&ast.Regex{Pattern: "a+"})
	if got != "RX:a+" {
		t.Errorf("Of = %q, want %q", got, "RX:a+")
	}
}

func TestOfSequenceIsInjectiveOverChildren(t *testing.T) {
	a := Of(&ast.Sequence{Elements: []ast.Format{&ast.ConstString{Value: "a"}, &ast.ConstString{Value: "b"}}})
	b := Of(&ast.Sequence{Elements: []ast.Format{&ast.ConstString{Value: "ab"}}})
	if a == b {
		t.Errorf("fingerprints collided for distinct sequences: %q", a)
	}
}

func TestOfTagNested(t *testing.T) {
	got := Of(&ast.Tag{Begin: "<x>", Content: &ast.ConstString{Value: "v"}, End: []string{"</x>", "</y>"}})
	want := "TG:<x>:{CS:v}:</x>|</y>|"
	if got != want {
		t.Errorf("Of = %q, want %q", got, want)
	}
}

func TestOfTriggeredTagsCoarse(t *testing.T) {
	got := Of(&ast.TriggeredTags{Triggers: []string{"<a", "<b"}, AtLeastOne: true, StopAfterFirst: false})
	want := "TT:<a,<b:true,false"
	if got != want {
		t.Errorf("Of = %q, want %q", got, want)
	}
}

func TestOfSameInputsProduceEqualFingerprints(t *testing.T) {
	f1 := &ast.ConstString{Value: "dup"}
	f2 := &ast.ConstString{Value: "dup"}
	if Of(f1) != Of(f2) {
		t.Error("identical leaves produced different fingerprints")
	}
}
