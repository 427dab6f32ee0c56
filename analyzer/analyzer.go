// Package analyzer performs the semantic analysis pass over a parsed
// format tree: propagating terminator context down to unbounded nodes
// and classifying every subtree as bounded or unbounded.
package analyzer

import (
	"fmt"

	"github.com/ricohasgit/xgrammar/ast"
)

const defaultMaxRecursionDepth = 64

// Analyze mutates tag in place, filling DetectedEnds and Unbounded
// fields and clearing Tag.End wherever its content turned out
// unbounded. maxDepth <= 0 selects the default recursion limit.
func Analyze(tag *ast.StructuralTag, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = defaultMaxRecursionDepth
	}
	_, err := analyzeNode(tag.Format, nil, 0, maxDepth)
	return err
}

// analyzeNode classifies f and returns whether it is unbounded.
// nearestEnd is the End list of the nearest enclosing Tag, or nil at
// the root.
func analyzeNode(f ast.Format, nearestEnd []string, depth, maxDepth int) (bool, error) {
	depth++
	if depth > maxDepth {
		return false, fmt.Errorf("analysis recursion depth exceeded (limit %d)", maxDepth)
	}

	switch n := f.(type) {
	case *ast.ConstString, *ast.JSONSchema, *ast.QwenXmlParameter, *ast.Grammar, *ast.Regex:
		return false, nil

	case *ast.AnyText:
		n.DetectedEnds = copyStrings(nearestEnd)
		return true, nil

	case *ast.Sequence:
		for i, el := range n.Elements {
			unbounded, err := analyzeNode(el, nearestEnd, depth, maxDepth)
			if err != nil {
				return false, err
			}
			if unbounded && i != len(n.Elements)-1 {
				return false, fmt.Errorf("sequence element %d is unbounded but is not the last element", i)
			}
			if i == len(n.Elements)-1 {
				n.Unbounded = unbounded
			}
		}
		return n.Unbounded, nil

	case *ast.Or:
		var first bool
		for i, el := range n.Elements {
			unbounded, err := analyzeNode(el, nearestEnd, depth, maxDepth)
			if err != nil {
				return false, err
			}
			if i == 0 {
				first = unbounded
			} else if unbounded != first {
				return false, fmt.Errorf("or format mixes unbounded and bounded elements")
			}
		}
		n.Unbounded = first
		return first, nil

	case *ast.Tag:
		if err := analyzeTag(n, depth, maxDepth); err != nil {
			return false, err
		}
		// A Tag always owns a terminator (its own end, or one pushed
		// down onto unbounded content), so it is never itself unbounded.
		return false, nil

	case *ast.TriggeredTags:
		n.DetectedEnds = copyStrings(nearestEnd)
		for _, t := range n.Tags {
			if err := analyzeTag(t, depth, maxDepth); err != nil {
				return false, err
			}
		}
		return true, nil

	case *ast.TagsWithSeparator:
		n.DetectedEnds = copyStrings(nearestEnd)
		for _, t := range n.Tags {
			if err := analyzeTag(t, depth, maxDepth); err != nil {
				return false, err
			}
		}
		return true, nil

	default:
		return false, fmt.Errorf("analyzer: unrecognized format node %T", f)
	}
}

// analyzeTag analyzes a Tag's content against the Tag's own End list
// (the nearest enclosing terminator for that content), then enforces
// invariant 4: unbounded content requires at least one non-empty end,
// and clears End once the terminators have been handed down to the
// content as its own DetectedEnds.
func analyzeTag(t *ast.Tag, depth, maxDepth int) error {
	unbounded, err := analyzeNode(t.Content, t.End, depth, maxDepth)
	if err != nil {
		return err
	}
	if unbounded {
		if !hasNonEmpty(t.End) {
			return fmt.Errorf("tag %q has unbounded content but no non-empty end string", t.Begin)
		}
		t.End = nil
	}
	return nil
}

func hasNonEmpty(ss []string) bool {
	for _, s := range ss {
		if s != "" {
			return true
		}
	}
	return false
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}
