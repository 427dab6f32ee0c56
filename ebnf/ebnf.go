// Package ebnf reads a small EBNF dialect and splices it into a
// grammar.Builder, backing the Grammar Format and (after translation)
// the EBNF QwenXmlParameter emits.
//
// The dialect is deliberately small: named rules of the form
// `name ::= alternation ;`, alternation separated by `|`, sequences of
// juxtaposed terms, and postfix `*`/`+`/`?` on a term. A term is an
// identifier (a rule reference, or the builtin "any_text" standing for
// an unbounded run of arbitrary text), a double-quoted string
// literal, or a parenthesized sub-alternation.
package ebnf

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ricohasgit/xgrammar/grammar"
)

type document struct {
	Rules []*ruleDecl `parser:"@@+"`
}

type ruleDecl struct {
	Name string   `parser:"@Ident Assign"`
	Alt  *altExpr `parser:"@@ Semi?"`
}

type altExpr struct {
	Left  *seqExpr   `parser:"@@"`
	Right []*seqExpr `parser:"(Bar @@)*"`
}

type seqExpr struct {
	Terms []*termExpr `parser:"@@+"`
}

type termExpr struct {
	Primary *primaryExpr `parser:"@@"`
	Repeat  string       `parser:"(@(Star|Plus|Quest))?"`
}

type primaryExpr struct {
	Ident  string   `parser:"( @Ident"`
	String string   `parser:"| @String"`
	Group  *altExpr `parser:"| LParen @@ RParen )"`
}

var ebnfLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Assign", Pattern: `::=`},
	{Name: "Bar", Pattern: `\|`},
	{Name: "Star", Pattern: `\*`},
	{Name: "Plus", Pattern: `\+`},
	{Name: "Quest", Pattern: `\?`},
	{Name: "Semi", Pattern: `;`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Comment", Pattern: `#[^\n]*`},
})

var ebnfParser = participle.MustBuild[document](
	participle.Lexer(ebnfLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
)

// AddToBuilder parses source and splices every rule it defines into
// b, returning the rule id of its first-declared rule.
func AddToBuilder(b *grammar.Builder, source string) (grammar.RuleID, error) {
	doc, err := ebnfParser.ParseString("", source)
	if err != nil {
		return 0, fmt.Errorf("parsing grammar: %w", err)
	}
	if len(doc.Rules) == 0 {
		return 0, fmt.Errorf("grammar must declare at least one rule")
	}

	ids := make(map[string]grammar.RuleID, len(doc.Rules))
	for _, r := range doc.Rules {
		if _, dup := ids[r.Name]; dup {
			return 0, fmt.Errorf("grammar rule %q declared more than once", r.Name)
		}
		ids[r.Name] = b.AddEmptyRuleWithHint(r.Name)
	}

	for _, r := range doc.Rules {
		expr, err := lowerAlt(b, r.Alt, ids)
		if err != nil {
			return 0, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		b.UpdateRuleBody(ids[r.Name], expr)
	}

	return ids[doc.Rules[0].Name], nil
}

func lowerAlt(b *grammar.Builder, a *altExpr, ids map[string]grammar.RuleID) (grammar.ExprID, error) {
	alts := make([]grammar.ExprID, 0, 1+len(a.Right))
	first, err := lowerSeq(b, a.Left, ids)
	if err != nil {
		return 0, err
	}
	alts = append(alts, first)
	for _, s := range a.Right {
		e, err := lowerSeq(b, s, ids)
		if err != nil {
			return 0, err
		}
		alts = append(alts, e)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return b.AddChoices(alts), nil
}

func lowerSeq(b *grammar.Builder, s *seqExpr, ids map[string]grammar.RuleID) (grammar.ExprID, error) {
	parts := make([]grammar.ExprID, 0, len(s.Terms))
	for _, t := range s.Terms {
		e, err := lowerTerm(b, t, ids)
		if err != nil {
			return 0, err
		}
		parts = append(parts, e)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return b.AddSequence(parts), nil
}

func lowerTerm(b *grammar.Builder, t *termExpr, ids map[string]grammar.RuleID) (grammar.ExprID, error) {
	base, err := lowerPrimary(b, t.Primary, ids)
	if err != nil {
		return 0, err
	}
	switch t.Repeat {
	case "*":
		return starOf(b, base), nil
	case "+":
		return b.AddSequence([]grammar.ExprID{base, starOf(b, base)}), nil
	case "?":
		return b.AddChoices([]grammar.ExprID{base, b.AddEmptyStr()}), nil
	default:
		return base, nil
	}
}

// starOf wraps an arbitrary expression in "zero or more" by routing
// it through a fresh helper rule, since AddCharacterClassStar only
// covers character classes, not arbitrary subexpressions.
func starOf(b *grammar.Builder, e grammar.ExprID) grammar.ExprID {
	id := b.AddEmptyRuleWithHint("ebnf_star")
	ref := b.AddRuleRef(id)
	b.UpdateRuleBody(id, b.AddChoices([]grammar.ExprID{
		b.AddSequence([]grammar.ExprID{e, ref}),
		b.AddEmptyStr(),
	}))
	return b.AddRuleRef(id)
}

func lowerPrimary(b *grammar.Builder, p *primaryExpr, ids map[string]grammar.RuleID) (grammar.ExprID, error) {
	switch {
	case p.Ident != "":
		id, ok := ids[p.Ident]
		if !ok {
			if p.Ident == "any_text" {
				return b.AddCharacterClassStar([][2]rune{{0, 0x10FFFF}}), nil
			}
			return 0, fmt.Errorf("reference to undeclared rule %q", p.Ident)
		}
		return b.AddRuleRef(id), nil
	case p.String != "":
		unquoted, err := unquote(p.String)
		if err != nil {
			return 0, err
		}
		return b.AddByteString([]byte(unquoted)), nil
	case p.Group != nil:
		return lowerAlt(b, p.Group, ids)
	default:
		return 0, fmt.Errorf("empty term")
	}
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("malformed string literal %q", s)
	}
	inner := s[1 : len(s)-1]
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
			switch inner[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, inner[i])
			}
			continue
		}
		out = append(out, inner[i])
	}
	return string(out), nil
}
