package grammar

import (
	"fmt"
	"strconv"
	"strings"
)

// Grammar is an immutable snapshot of a Builder's rule table, rooted
// at Root.
type Grammar struct {
	exprs []expr
	rules []rule
	Root  RuleID
}

// RuleCount returns the number of rules in the grammar.
func (g *Grammar) RuleCount() int {
	return len(g.rules)
}

// String renders the grammar as an EBNF-ish textual form, root rule
// first, suitable for human inspection (e.g. the CLI's output).
func (g *Grammar) String() string {
	var b strings.Builder
	order := []RuleID{g.Root}
	seen := map[RuleID]bool{g.Root: true}
	for i := 0; i < len(order); i++ {
		id := order[i]
		g.collectRefs(g.rules[id].body, seen, &order)
	}
	for _, id := range order {
		r := g.rules[id]
		fmt.Fprintf(&b, "%s ::= %s\n", r.name, g.renderExpr(r.body))
	}
	return b.String()
}

func (g *Grammar) collectRefs(id ExprID, seen map[RuleID]bool, order *[]RuleID) {
	if int(id) < 0 || int(id) >= len(g.exprs) {
		return
	}
	e := g.exprs[id]
	switch e.kind {
	case exprRuleRef:
		if !seen[e.ruleRef] {
			seen[e.ruleRef] = true
			*order = append(*order, e.ruleRef)
		}
	case exprSequence, exprChoices:
		for _, c := range e.children {
			g.collectRefs(c, seen, order)
		}
	case exprTagDispatch:
		for _, ent := range e.dispatch.Entries {
			if !seen[ent.Rule] {
				seen[ent.Rule] = true
				*order = append(*order, ent.Rule)
			}
		}
	}
}

func (g *Grammar) renderExpr(id ExprID) string {
	if int(id) < 0 || int(id) >= len(g.exprs) {
		return "<unset>"
	}
	e := g.exprs[id]
	switch e.kind {
	case exprByteString:
		return strconv.Quote(string(e.bytes))
	case exprEmptyStr:
		return "\"\""
	case exprCharClass:
		return renderRanges(e.ranges)
	case exprCharClassStar:
		return renderRanges(e.ranges) + "*"
	case exprSequence:
		parts := make([]string, len(e.children))
		for i, c := range e.children {
			parts[i] = g.renderExpr(c)
		}
		return strings.Join(parts, " ")
	case exprChoices:
		parts := make([]string, len(e.children))
		for i, c := range e.children {
			parts[i] = g.renderExpr(c)
		}
		return strings.Join(parts, " | ")
	case exprRuleRef:
		return g.rules[e.ruleRef].name
	case exprTagDispatch:
		return renderDispatch(g, e.dispatch)
	default:
		return "<?>"
	}
}

func renderRanges(ranges []charRange) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, r := range ranges {
		if r.Lo == r.Hi {
			fmt.Fprintf(&b, "%c", r.Lo)
		} else {
			fmt.Fprintf(&b, "%c-%c", r.Lo, r.Hi)
		}
	}
	b.WriteByte(']')
	return b.String()
}

func renderDispatch(g *Grammar, d *TagDispatchConfig) string {
	var b strings.Builder
	b.WriteString("tag_dispatch(")
	for i, ent := range d.Entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=>%s", strconv.Quote(ent.Trigger), g.rules[ent.Rule].name)
	}
	fmt.Fprintf(&b, "; stop_eos=%t; stop=%v; loop=%t; excludes=%v)",
		d.StopEOS, d.StopStrings, d.LoopAfterDispatch, d.Excludes)
	return b.String()
}

// Normalize returns an equivalent grammar containing only rules
// reachable from Root, compacted to sequential rule ids. This is the
// grammar normalizer the emitter runs its output through before
// returning it to the caller.
func (g *Grammar) Normalize() *Grammar {
	seen := map[RuleID]bool{g.Root: true}
	order := []RuleID{g.Root}
	for i := 0; i < len(order); i++ {
		g.collectRefs(g.rules[order[i]].body, seen, &order)
	}

	remap := make(map[RuleID]RuleID, len(order))
	for i, id := range order {
		remap[id] = RuleID(i)
	}

	out := &Grammar{Root: remap[g.Root]}
	exprRemap := make(map[ExprID]ExprID)
	for _, id := range order {
		r := g.rules[id]
		newBody := g.copyExprRemapped(r.body, remap, exprRemap, out)
		out.rules = append(out.rules, rule{name: r.name, body: newBody})
	}
	return out
}

// copyExprRemapped copies the expression subtree rooted at id into
// out's expression table, rewriting any rule references through
// remap, and memoizes by original id so shared subexpressions are
// copied once.
func (g *Grammar) copyExprRemapped(id ExprID, remap map[RuleID]RuleID, memo map[ExprID]ExprID, out *Grammar) ExprID {
	if int(id) < 0 || int(id) >= len(g.exprs) {
		return id
	}
	if nid, ok := memo[id]; ok {
		return nid
	}
	e := g.exprs[id]
	switch e.kind {
	case exprRuleRef:
		e.ruleRef = remap[e.ruleRef]
	case exprSequence, exprChoices:
		children := make([]ExprID, len(e.children))
		for i, c := range e.children {
			children[i] = g.copyExprRemapped(c, remap, memo, out)
		}
		e.children = children
	case exprTagDispatch:
		d := *e.dispatch
		entries := make([]DispatchEntry, len(d.Entries))
		for i, ent := range d.Entries {
			entries[i] = DispatchEntry{Trigger: ent.Trigger, Rule: remap[ent.Rule]}
		}
		d.Entries = entries
		e.dispatch = &d
	}
	out.exprs = append(out.exprs, e)
	nid := ExprID(len(out.exprs) - 1)
	memo[id] = nid
	return nid
}
