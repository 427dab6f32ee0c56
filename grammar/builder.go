// Package grammar implements the rule/expression table that the
// emitter populates and the textual CFG it eventually produces.
package grammar

import "fmt"

// ExprID identifies an expression node in a Builder's expression table.
type ExprID int

// RuleID identifies a named rule in a Builder's rule table.
type RuleID int

type exprKind int

const (
	exprByteString exprKind = iota
	exprEmptyStr
	exprCharClass
	exprCharClassStar
	exprSequence
	exprChoices
	exprRuleRef
	exprTagDispatch
)

type charRange struct {
	Lo, Hi rune
}

// DispatchEntry is one (trigger, rule) pair in a tag dispatch table.
type DispatchEntry struct {
	Trigger string
	Rule    RuleID
}

// TagDispatchConfig configures AddTagDispatch.
type TagDispatchConfig struct {
	Entries           []DispatchEntry
	StopEOS           bool
	StopStrings       []string
	LoopAfterDispatch bool
	Excludes          []string
}

type expr struct {
	kind     exprKind
	bytes    []byte
	ranges   []charRange
	star     bool
	children []ExprID
	ruleRef  RuleID
	dispatch *TagDispatchConfig
}

type rule struct {
	name string
	body ExprID // -1 until UpdateRuleBody/AddRuleWithHint sets it
}

// Builder is the grammar-construction collaborator the emitter drives.
// A Builder is owned by exactly one conversion; it is not safe for
// concurrent use across goroutines.
type Builder struct {
	exprs []expr
	rules []rule
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) addExpr(e expr) ExprID {
	b.exprs = append(b.exprs, e)
	return ExprID(len(b.exprs) - 1)
}

// AddByteString adds a literal byte-string expression.
func (b *Builder) AddByteString(s []byte) ExprID {
	cp := make([]byte, len(s))
	copy(cp, s)
	return b.addExpr(expr{kind: exprByteString, bytes: cp})
}

// AddEmptyStr adds the empty-string expression (epsilon).
func (b *Builder) AddEmptyStr() ExprID {
	return b.addExpr(expr{kind: exprEmptyStr})
}

// AddCharacterClass adds an expression matching exactly one code point
// from the union of the given inclusive [lo,hi] ranges.
func (b *Builder) AddCharacterClass(ranges [][2]rune) ExprID {
	return b.addExpr(expr{kind: exprCharClass, ranges: toRanges(ranges)})
}

// AddCharacterClassStar adds an expression matching zero or more code
// points, each from the union of the given inclusive [lo,hi] ranges.
func (b *Builder) AddCharacterClassStar(ranges [][2]rune) ExprID {
	return b.addExpr(expr{kind: exprCharClassStar, ranges: toRanges(ranges)})
}

func toRanges(in [][2]rune) []charRange {
	out := make([]charRange, len(in))
	for i, r := range in {
		out[i] = charRange{Lo: r[0], Hi: r[1]}
	}
	return out
}

// AddSequence adds the concatenation of the given expressions.
func (b *Builder) AddSequence(parts []ExprID) ExprID {
	return b.addExpr(expr{kind: exprSequence, children: append([]ExprID(nil), parts...)})
}

// AddChoices adds the alternation of the given expressions.
func (b *Builder) AddChoices(alts []ExprID) ExprID {
	return b.addExpr(expr{kind: exprChoices, children: append([]ExprID(nil), alts...)})
}

// AddRuleRef adds an expression that refers to an existing rule.
func (b *Builder) AddRuleRef(id RuleID) ExprID {
	return b.addExpr(expr{kind: exprRuleRef, ruleRef: id})
}

// AddEmptyRuleWithHint reserves a rule slot named name (not checked
// against existing rules, so several rules may share a name) whose
// body is filled in later via UpdateRuleBody. Used to allocate a rule id
// before its body expression can be constructed, e.g. for recursive
// helper rules.
func (b *Builder) AddEmptyRuleWithHint(name string) RuleID {
	b.rules = append(b.rules, rule{name: name, body: -1})
	return RuleID(len(b.rules) - 1)
}

// AddRuleWithHint adds a new rule named name with the given body.
func (b *Builder) AddRuleWithHint(name string, body ExprID) RuleID {
	b.rules = append(b.rules, rule{name: name, body: body})
	return RuleID(len(b.rules) - 1)
}

// UpdateRuleBody sets (or replaces) the body of an existing rule,
// typically one previously allocated by AddEmptyRuleWithHint.
func (b *Builder) UpdateRuleBody(id RuleID, body ExprID) {
	b.rules[id].body = body
}

// AddTagDispatch adds a tag-dispatch expression: a loop that reads
// input, branching into cfg.Entries whenever the upcoming text starts
// with that entry's Trigger, and otherwise emitting arbitrary text
// (never containing any cfg.Excludes substring) until it sees one of
// cfg.StopStrings or, if cfg.StopEOS, the end of output. When
// cfg.LoopAfterDispatch is false the dispatch returns after the first
// tag or stop condition instead of looping.
func (b *Builder) AddTagDispatch(cfg TagDispatchConfig) ExprID {
	cp := cfg
	cp.Entries = append([]DispatchEntry(nil), cfg.Entries...)
	cp.StopStrings = append([]string(nil), cfg.StopStrings...)
	cp.Excludes = append([]string(nil), cfg.Excludes...)
	return b.addExpr(expr{kind: exprTagDispatch, dispatch: &cp})
}

// Get materializes the Grammar rooted at root. The Builder remains
// usable afterward; Get takes a snapshot.
func (b *Builder) Get(root RuleID) *Grammar {
	g := &Grammar{
		exprs: append([]expr(nil), b.exprs...),
		rules: append([]rule(nil), b.rules...),
		Root:  root,
	}
	return g
}

func (b *Builder) ruleName(id RuleID) string {
	if int(id) < 0 || int(id) >= len(b.rules) {
		return fmt.Sprintf("rule%d", id)
	}
	return b.rules[id].name
}
