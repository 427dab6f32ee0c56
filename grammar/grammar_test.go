package grammar

import (
	"strings"
	"testing"
)

func TestByteStringRoundTrip(t *testing.T) {
	b := NewBuilder()
	e := b.AddByteString([]byte("hello"))
	r := b.AddRuleWithHint("root", e)
	g := b.Get(r)
	out := g.String()
	if !strings.Contains(out, `"hello"`) {
		t.Errorf("String() = %q, want it to contain a quoted hello", out)
	}
}

func TestSequenceAndChoices(t *testing.T) {
	b := NewBuilder()
	a := b.AddByteString([]byte("a"))
	c := b.AddByteString([]byte("c"))
	seq := b.AddSequence([]ExprID{a, c})
	choice := b.AddChoices([]ExprID{seq, a})
	r := b.AddRuleWithHint("root", choice)
	g := b.Get(r)
	out := g.String()
	if !strings.Contains(out, "|") {
		t.Errorf("String() = %q, want a choice separator", out)
	}
}

func TestRuleRefPullsReferencedRuleIntoOutput(t *testing.T) {
	b := NewBuilder()
	helperBody := b.AddByteString([]byte("x"))
	helper := b.AddRuleWithHint("helper", helperBody)
	ref := b.AddRuleRef(helper)
	root := b.AddRuleWithHint("root", ref)
	g := b.Get(root)
	out := g.String()
	if !strings.Contains(out, "helper ::=") {
		t.Errorf("String() = %q, want it to include the helper rule", out)
	}
}

func TestEmptyRuleWithHintThenUpdate(t *testing.T) {
	b := NewBuilder()
	id := b.AddEmptyRuleWithHint("helper")
	body := b.AddEmptyStr()
	b.UpdateRuleBody(id, body)
	ref := b.AddRuleRef(id)
	root := b.AddRuleWithHint("root", ref)
	g := b.Get(root)
	out := g.String()
	if !strings.Contains(out, `helper ::= ""`) {
		t.Errorf("String() = %q, want helper's updated body", out)
	}
}

func TestNormalizeDropsUnreachableRules(t *testing.T) {
	b := NewBuilder()
	usedBody := b.AddByteString([]byte("used"))
	used := b.AddRuleWithHint("used", usedBody)
	unusedBody := b.AddByteString([]byte("unused"))
	b.AddRuleWithHint("unused", unusedBody)
	ref := b.AddRuleRef(used)
	root := b.AddRuleWithHint("root", ref)
	g := b.Get(root).Normalize()
	if g.RuleCount() != 2 {
		t.Errorf("RuleCount() = %d, want 2 (root + used)", g.RuleCount())
	}
	out := g.String()
	if strings.Contains(out, "unused") {
		t.Errorf("String() = %q, want unreachable rule dropped", out)
	}
}

func TestCharacterClassStarRendersWithStar(t *testing.T) {
	b := NewBuilder()
	e := b.AddCharacterClassStar([][2]rune{{0, 0x10FFFF}})
	r := b.AddRuleWithHint("root", e)
	g := b.Get(r)
	out := g.String()
	if !strings.HasSuffix(strings.TrimSpace(out), "*") {
		t.Errorf("String() = %q, want trailing *", out)
	}
}

func TestTagDispatchRenders(t *testing.T) {
	b := NewBuilder()
	tagBody := b.AddByteString([]byte("a"))
	tagRule := b.AddRuleWithHint("tag_a", tagBody)
	d := b.AddTagDispatch(TagDispatchConfig{
		Entries:           []DispatchEntry{{Trigger: "<a", Rule: tagRule}},
		StopStrings:       []string{"</x>"},
		LoopAfterDispatch: true,
	})
	r := b.AddRuleWithHint("root", d)
	g := b.Get(r)
	out := g.String()
	if !strings.Contains(out, "tag_dispatch(") {
		t.Errorf("String() = %q, want a tag_dispatch rendering", out)
	}
}
