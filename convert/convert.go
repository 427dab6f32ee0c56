// Package convert exposes StructuralTagToGrammar, the single public
// entry point that composes the parser, analyzer, and emitter into a
// grammar.
package convert

import (
	"errors"
	"fmt"

	"github.com/ricohasgit/xgrammar/analyzer"
	"github.com/ricohasgit/xgrammar/grammar"
	"github.com/ricohasgit/xgrammar/parser"
)

// InvalidJSONError reports that the input could not be parsed as JSON
// at all.
type InvalidJSONError struct {
	Message string
	Err     error
}

func (e *InvalidJSONError) Error() string { return e.Message }
func (e *InvalidJSONError) Unwrap() error { return e.Err }

// InvalidStructuralTagError reports that the input was valid JSON but
// failed a structural or semantic check: an unknown format type, a
// missing or mistyped field, an invariant violation, recursion depth
// exceeded, or an internal collaborator failure (bad regex, an empty
// regex-with-excludes intersection, a malformed EBNF or JSON Schema
// fragment).
type InvalidStructuralTagError struct {
	Message string
	Err     error
}

func (e *InvalidStructuralTagError) Error() string { return e.Message }
func (e *InvalidStructuralTagError) Unwrap() error { return e.Err }

// Options configures a conversion.
type Options struct {
	// MaxRecursionDepth bounds parse, analysis, and emission recursion.
	// Zero selects the default (64).
	MaxRecursionDepth int
}

// StructuralTagToGrammar parses, analyzes, and lowers a structural
// tag JSON document into a Grammar, using default options.
func StructuralTagToGrammar(jsonDoc string) (*grammar.Grammar, error) {
	return StructuralTagToGrammarWithOptions(jsonDoc, Options{})
}

// StructuralTagToGrammarWithOptions is StructuralTagToGrammar with
// caller-chosen Options.
func StructuralTagToGrammarWithOptions(jsonDoc string, opts Options) (*grammar.Grammar, error) {
	maxDepth := opts.MaxRecursionDepth
	if maxDepth <= 0 {
		maxDepth = 64
	}

	p := parser.NewWithMaxDepth(maxDepth)
	tag, err := p.Parse(jsonDoc)
	if err != nil {
		var syn *parser.JSONSyntaxError
		if errors.As(err, &syn) {
			return nil, &InvalidJSONError{Message: err.Error(), Err: err}
		}
		return nil, &InvalidStructuralTagError{Message: err.Error(), Err: err}
	}

	if err := analyzer.Analyze(tag, maxDepth); err != nil {
		return nil, &InvalidStructuralTagError{Message: err.Error(), Err: err}
	}

	e := newEmitter(maxDepth)
	rootID, err := e.visit(tag.Format)
	if err != nil {
		return nil, &InvalidStructuralTagError{
			Message: fmt.Sprintf("emitting grammar: %s", err),
			Err:     err,
		}
	}

	rootSeq := e.builder.AddSequence([]grammar.ExprID{e.builder.AddRuleRef(rootID)})
	root := e.builder.AddRuleWithHint("root", e.builder.AddChoices([]grammar.ExprID{rootSeq}))
	return e.builder.Get(root).Normalize(), nil
}
