package convert

import (
	"fmt"
	"strings"

	"github.com/wasilibs/go-re2/experimental"

	"github.com/ricohasgit/xgrammar/ast"
	"github.com/ricohasgit/xgrammar/ebnf"
	"github.com/ricohasgit/xgrammar/fingerprint"
	"github.com/ricohasgit/xgrammar/fsm"
	"github.com/ricohasgit/xgrammar/grammar"
	"github.com/ricohasgit/xgrammar/jsonschema"
)

type emitter struct {
	builder  *grammar.Builder
	cache    map[string]grammar.RuleID
	depth    int
	maxDepth int
}

func newEmitter(maxDepth int) *emitter {
	return &emitter{
		builder:  grammar.NewBuilder(),
		cache:    map[string]grammar.RuleID{},
		maxDepth: maxDepth,
	}
}

// visit lowers f to a rule id, consulting and populating the
// fingerprint cache so identical subtrees are emitted once.
func (e *emitter) visit(f ast.Format) (grammar.RuleID, error) {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.maxDepth {
		return 0, fmt.Errorf("emitter recursion depth exceeded (limit %d)", e.maxDepth)
	}

	// TriggeredTags and TagsWithSeparator fingerprints deliberately omit
	// sub-tree structure (see fingerprint.Of); caching on them risks
	// reusing a rule for a structurally different node, so only the
	// other variants consult the cache.
	_, skipCache := f.(*ast.TriggeredTags)
	if _, ok := f.(*ast.TagsWithSeparator); ok {
		skipCache = true
	}

	var fp string
	if !skipCache {
		fp = fingerprint.Of(f)
		if id, ok := e.cache[fp]; ok {
			return id, nil
		}
	}

	var id grammar.RuleID
	var err error
	switch n := f.(type) {
	case *ast.ConstString:
		id, err = e.visitConstString(n)
	case *ast.JSONSchema:
		id, err = e.visitJSONSchema(n)
	case *ast.QwenXmlParameter:
		id, err = e.visitQwenXmlParameter(n)
	case *ast.Grammar:
		id, err = e.visitGrammar(n)
	case *ast.Regex:
		id, err = e.visitRegex(n)
	case *ast.AnyText:
		id, err = e.visitAnyText(n)
	case *ast.Sequence:
		id, err = e.visitSequence(n)
	case *ast.Or:
		id, err = e.visitOr(n)
	case *ast.Tag:
		id, err = e.visitTag(n)
	case *ast.TriggeredTags:
		id, err = e.visitTriggeredTags(n)
	case *ast.TagsWithSeparator:
		id, err = e.visitTagsWithSeparator(n)
	default:
		err = fmt.Errorf("emitter: unrecognized format node %T", f)
	}
	if err != nil {
		return 0, err
	}
	if !skipCache {
		e.cache[fp] = id
	}
	return id, nil
}

// A. ConstString.
func (e *emitter) visitConstString(n *ast.ConstString) (grammar.RuleID, error) {
	return e.builder.AddRuleWithHint("const_string", e.builder.AddByteString([]byte(n.Value))), nil
}

// B. JsonSchema.
func (e *emitter) visitJSONSchema(n *ast.JSONSchema) (grammar.RuleID, error) {
	id, err := jsonschema.AddToBuilder(e.builder, n.Schema)
	if err != nil {
		return 0, fmt.Errorf("json_schema: %w", err)
	}
	return id, nil
}

// C. QwenXmlParameter.
func (e *emitter) visitQwenXmlParameter(n *ast.QwenXmlParameter) (grammar.RuleID, error) {
	ebnfSrc, err := qwenXMLToolCallingToEBNF(n.Schema)
	if err != nil {
		return 0, fmt.Errorf("qwen_xml_parameter: %w", err)
	}
	id, err := ebnf.AddToBuilder(e.builder, ebnfSrc)
	if err != nil {
		return 0, fmt.Errorf("qwen_xml_parameter: %w", err)
	}
	return id, nil
}

// D. Grammar.
func (e *emitter) visitGrammar(n *ast.Grammar) (grammar.RuleID, error) {
	id, err := ebnf.AddToBuilder(e.builder, n.EBNF)
	if err != nil {
		return 0, fmt.Errorf("grammar: %w", err)
	}
	return id, nil
}

// E, F. Regex, with or without excludes.
func (e *emitter) visitRegex(n *ast.Regex) (grammar.RuleID, error) {
	// Sanity gate: reject a pattern RE2 itself can't compile before
	// spending any effort on the FSM path.
	if _, err := experimental.CompileLatin1(n.Pattern); err != nil {
		return 0, fmt.Errorf("regex: invalid pattern: %w", err)
	}

	patternFSM, err := fsm.Compile(n.Pattern)
	if err != nil {
		return 0, fmt.Errorf("regex: %w", err)
	}
	if len(n.Excludes) == 0 {
		return fsm.ToGrammar(e.builder, patternFSM), nil
	}

	filter := fsm.BuildExclusionFilter(n.Excludes)
	product, err := fsm.Intersect(patternFSM, filter)
	if err != nil {
		return 0, fmt.Errorf("regex: %w", err)
	}
	return fsm.ToGrammar(e.builder, product), nil
}

// G. AnyText.
func (e *emitter) visitAnyText(n *ast.AnyText) (grammar.RuleID, error) {
	if len(n.DetectedEnds) == 0 {
		body := e.builder.AddCharacterClassStar([][2]rune{{0, 0x10FFFF}})
		return e.builder.AddRuleWithHint("any_text", body), nil
	}
	expr := e.builder.AddTagDispatch(grammar.TagDispatchConfig{
		StopEOS:           false,
		StopStrings:       nonEmpty(n.DetectedEnds),
		LoopAfterDispatch: false,
		Excludes:          n.Excludes,
	})
	return e.builder.AddRuleWithHint("any_text_dispatch", expr), nil
}

// H. Sequence.
func (e *emitter) visitSequence(n *ast.Sequence) (grammar.RuleID, error) {
	parts := make([]grammar.ExprID, len(n.Elements))
	for i, el := range n.Elements {
		id, err := e.visit(el)
		if err != nil {
			return 0, err
		}
		parts[i] = e.builder.AddRuleRef(id)
	}
	body := e.builder.AddChoices([]grammar.ExprID{e.builder.AddSequence(parts)})
	return e.builder.AddRuleWithHint("sequence", body), nil
}

// I. Or.
func (e *emitter) visitOr(n *ast.Or) (grammar.RuleID, error) {
	alts := make([]grammar.ExprID, len(n.Elements))
	for i, el := range n.Elements {
		id, err := e.visit(el)
		if err != nil {
			return 0, err
		}
		alts[i] = e.builder.AddSequence([]grammar.ExprID{e.builder.AddRuleRef(id)})
	}
	return e.builder.AddRuleWithHint("or", e.builder.AddChoices(alts)), nil
}

// J. Tag.
func (e *emitter) visitTag(t *ast.Tag) (grammar.RuleID, error) {
	c, err := e.visit(t.Content)
	if err != nil {
		return 0, err
	}
	parts := []grammar.ExprID{e.builder.AddByteString([]byte(t.Begin)), e.builder.AddRuleRef(c)}
	endExpr, err := e.tagEndExpr(t.End)
	if err != nil {
		return 0, err
	}
	if endExpr != nil {
		parts = append(parts, *endExpr)
	}
	return e.builder.AddRuleWithHint("tag", e.builder.AddSequence(parts)), nil
}

// tagEndExpr implements the 0/1/>=2 ends rule shared by Tag and the
// per-tag rendering inside TriggeredTags/TagsWithSeparator: nil for
// zero ends (unbounded content, terminators owned downstream), a bare
// literal for exactly one, or a reference to a helper choice rule for
// two or more.
func (e *emitter) tagEndExpr(ends []string) (*grammar.ExprID, error) {
	switch len(ends) {
	case 0:
		return nil, nil
	case 1:
		expr := e.byteStringOrEmpty(ends[0])
		return &expr, nil
	default:
		alts := make([]grammar.ExprID, len(ends))
		for i, s := range ends {
			alts[i] = e.byteStringOrEmpty(s)
		}
		helper := e.builder.AddRuleWithHint("tag_end", e.builder.AddChoices(alts))
		expr := e.builder.AddRuleRef(helper)
		return &expr, nil
	}
}

func (e *emitter) byteStringOrEmpty(s string) grammar.ExprID {
	if s == "" {
		return e.builder.AddEmptyStr()
	}
	return e.builder.AddByteString([]byte(s))
}

// K. TriggeredTags.
func (e *emitter) visitTriggeredTags(n *ast.TriggeredTags) (grammar.RuleID, error) {
	triggerOf := make(map[*ast.Tag]string, len(n.Tags))
	for _, t := range n.Tags {
		matched := 0
		var trigger string
		for _, trig := range n.Triggers {
			if strings.HasPrefix(t.Begin, trig) {
				matched++
				trigger = trig
			}
		}
		if matched != 1 {
			return 0, fmt.Errorf("triggered_tags: tag %q matches %d triggers, want exactly 1", t.Begin, matched)
		}
		triggerOf[t] = trigger
	}

	renderTag := func(t *ast.Tag, begin string) (grammar.ExprID, error) {
		c, err := e.visit(t.Content)
		if err != nil {
			return 0, err
		}
		parts := []grammar.ExprID{e.byteStringOrEmpty(begin), e.builder.AddRuleRef(c)}
		endExpr, err := e.tagEndExpr(t.End)
		if err != nil {
			return 0, err
		}
		if endExpr != nil {
			parts = append(parts, *endExpr)
		}
		return e.builder.AddSequence(parts), nil
	}

	if n.AtLeastOne && n.StopAfterFirst {
		var choices []grammar.ExprID
		for _, t := range n.Tags {
			seq, err := renderTag(t, t.Begin)
			if err != nil {
				return 0, err
			}
			choices = append(choices, seq)
		}
		body := e.builder.AddChoices(choices)

		ends := n.DetectedEnds
		if len(ends) == 0 {
			return e.builder.AddRuleWithHint("triggered_tags", body), nil
		}
		sub := e.builder.AddRuleWithHint("triggered_tags_choice", body)
		var term grammar.ExprID
		if len(ends) == 1 {
			term = e.byteStringOrEmpty(ends[0])
		} else {
			alts := make([]grammar.ExprID, len(ends))
			for i, s := range ends {
				alts[i] = e.byteStringOrEmpty(s)
			}
			term = e.builder.AddChoices(alts)
		}
		wrapped := e.builder.AddSequence([]grammar.ExprID{e.builder.AddRuleRef(sub), term})
		return e.builder.AddRuleWithHint("triggered_tags", wrapped), nil
	}

	// Otherwise: a tag-dispatch table grouping tags by trigger.
	var entries []grammar.DispatchEntry
	for _, trig := range n.Triggers {
		var group []grammar.ExprID
		for _, t := range n.Tags {
			if triggerOf[t] != trig {
				continue
			}
			seq, err := renderTag(t, strings.TrimPrefix(t.Begin, trig))
			if err != nil {
				return 0, err
			}
			group = append(group, seq)
		}
		if len(group) == 0 {
			continue
		}
		groupRule := e.builder.AddRuleWithHint("triggered_tags_group", e.builder.AddChoices(group))
		entries = append(entries, grammar.DispatchEntry{Trigger: trig, Rule: groupRule})
	}

	stopStrings := nonEmpty(n.DetectedEnds)
	dispatch := e.builder.AddTagDispatch(grammar.TagDispatchConfig{
		Entries:           entries,
		StopEOS:           len(stopStrings) == 0,
		StopStrings:       stopStrings,
		LoopAfterDispatch: !n.StopAfterFirst,
		Excludes:          n.Excludes,
	})
	dispatchRule := e.builder.AddRuleWithHint("triggered_tags_dispatch", dispatch)

	if !n.AtLeastOne {
		return dispatchRule, nil
	}

	var firstChoices []grammar.ExprID
	for _, t := range n.Tags {
		seq, err := renderTag(t, t.Begin)
		if err != nil {
			return 0, err
		}
		firstChoices = append(firstChoices, seq)
	}
	firstRule := e.builder.AddRuleWithHint("triggered_tags_first", e.builder.AddChoices(firstChoices))
	body := e.builder.AddSequence([]grammar.ExprID{e.builder.AddRuleRef(firstRule), e.builder.AddRuleRef(dispatchRule)})
	return e.builder.AddRuleWithHint("triggered_tags", body), nil
}

// L. TagsWithSeparator.
func (e *emitter) visitTagsWithSeparator(n *ast.TagsWithSeparator) (grammar.RuleID, error) {
	var tAlts []grammar.ExprID
	for _, t := range n.Tags {
		id, err := e.visitTag(t)
		if err != nil {
			return 0, err
		}
		tAlts = append(tAlts, e.builder.AddRuleRef(id))
	}
	tRule := e.builder.AddRuleWithHint("tags_with_separator_t", e.builder.AddChoices(tAlts))
	tRef := func() grammar.ExprID { return e.builder.AddRuleRef(tRule) }

	ends := nonEmpty(n.DetectedEnds)
	hasEnd := len(ends) > 0
	sep := n.Separator

	// separatorIsEnd is checked against the raw, unfiltered detected-end
	// list: a separator matching an empty end string is a legitimate
	// match the filtered list would hide.
	separatorIsEnd := false
	for _, end := range n.DetectedEnds {
		if end == sep {
			separatorIsEnd = true
			break
		}
	}
	stopAfterFirst := n.StopAfterFirst || (hasEnd && separatorIsEnd)

	var body grammar.ExprID
	if stopAfterFirst {
		switch {
		case n.AtLeastOne && !hasEnd:
			body = tRef()
		case n.AtLeastOne && hasEnd:
			alts := make([]grammar.ExprID, len(ends))
			for i, end := range ends {
				alts[i] = e.builder.AddSequence([]grammar.ExprID{tRef(), e.byteStringOrEmpty(end)})
			}
			body = e.builder.AddChoices(alts)
		case !n.AtLeastOne && !hasEnd:
			body = e.builder.AddChoices([]grammar.ExprID{tRef(), e.builder.AddEmptyStr()})
		default: // !AtLeastOne && hasEnd
			var alts []grammar.ExprID
			for _, end := range ends {
				alts = append(alts, e.builder.AddSequence([]grammar.ExprID{tRef(), e.byteStringOrEmpty(end)}))
			}
			for _, end := range ends {
				alts = append(alts, e.byteStringOrEmpty(end))
			}
			body = e.builder.AddChoices(alts)
		}
	} else {
		var end grammar.ExprID
		switch {
		case !hasEnd:
			end = e.builder.AddEmptyStr()
		case len(ends) == 1:
			end = e.builder.AddByteString([]byte(ends[0]))
		default:
			alts := make([]grammar.ExprID, len(ends))
			for i, s := range ends {
				alts[i] = e.byteStringOrEmpty(s)
			}
			end = e.builder.AddChoices(alts)
		}

		sID := e.builder.AddEmptyRuleWithHint("tags_with_separator_s")
		var seqParts []grammar.ExprID
		if sep != "" {
			seqParts = append(seqParts, e.builder.AddByteString([]byte(sep)))
		}
		seqParts = append(seqParts, tRef(), e.builder.AddRuleRef(sID))
		e.builder.UpdateRuleBody(sID, e.builder.AddChoices([]grammar.ExprID{
			e.builder.AddSequence(seqParts),
			end,
		}))

		rootParts := []grammar.ExprID{tRef(), e.builder.AddRuleRef(sID)}
		if n.AtLeastOne {
			body = e.builder.AddSequence(rootParts)
		} else {
			body = e.builder.AddChoices([]grammar.ExprID{e.builder.AddSequence(rootParts), end})
		}
	}

	return e.builder.AddRuleWithHint("tags_with_separator", body), nil
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
