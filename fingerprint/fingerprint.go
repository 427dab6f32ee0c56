// Package fingerprint computes canonical string keys for format
// subtrees, used by the emitter to deduplicate identical rules.
package fingerprint

import (
	"strconv"
	"strings"

	"github.com/ricohasgit/xgrammar/ast"
)

// Of returns the canonical fingerprint of f. Leaves, Sequence, Or, and
// Tag encode exactly (equal fingerprint implies interchangeable
// output); TriggeredTags and TagsWithSeparator encode coarsely: the
// begin/content/end of their member tags are not part of the key, so
// two such nodes with different tags can share a fingerprint. The
// emitter does not cache rules for these two variants.
func Of(f ast.Format) string {
	var b strings.Builder
	write(&b, f)
	return b.String()
}

func write(b *strings.Builder, f ast.Format) {
	switch n := f.(type) {
	case *ast.ConstString:
		b.WriteString("CS:")
		b.WriteString(n.Value)

	case *ast.JSONSchema:
		b.WriteString("JS:")
		b.WriteString(n.Schema)

	case *ast.QwenXmlParameter:
		b.WriteString("QX:")
		b.WriteString(n.Schema)

	case *ast.Grammar:
		b.WriteString("GR:")
		b.WriteString(n.EBNF)

	case *ast.Regex:
		b.WriteString("RX:")
		b.WriteString(n.Pattern)
		if len(n.Excludes) > 0 {
			b.WriteString(":X:")
			joinStrings(b, n.Excludes)
		}

	case *ast.AnyText:
		b.WriteString("AT:")
		joinStrings(b, n.Excludes)
		b.WriteString("E:")
		joinStrings(b, n.DetectedEnds)

	case *ast.Sequence:
		b.WriteString("SQ[")
		for i, el := range n.Elements {
			if i > 0 {
				b.WriteByte(',')
			}
			write(b, el)
		}
		b.WriteByte(']')

	case *ast.Or:
		b.WriteString("OR[")
		for i, el := range n.Elements {
			if i > 0 {
				b.WriteByte(',')
			}
			write(b, el)
		}
		b.WriteByte(']')

	case *ast.Tag:
		b.WriteString("TG:")
		b.WriteString(n.Begin)
		b.WriteString(":{")
		write(b, n.Content)
		b.WriteString("}:")
		joinStrings(b, n.End)

	case *ast.TriggeredTags:
		b.WriteString("TT:")
		b.WriteString(strings.Join(n.Triggers, ","))
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(n.AtLeastOne))
		b.WriteByte(',')
		b.WriteString(strconv.FormatBool(n.StopAfterFirst))

	case *ast.TagsWithSeparator:
		b.WriteString("TS:")
		b.WriteString(n.Separator)
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(n.AtLeastOne))
		b.WriteByte(',')
		b.WriteString(strconv.FormatBool(n.StopAfterFirst))

	default:
		b.WriteString("??")
	}
}

// joinStrings writes each element of ss suffixed with "|", matching
// the spec's "joined with | each suffix |" encoding.
func joinStrings(b *strings.Builder, ss []string) {
	for _, s := range ss {
		b.WriteString(s)
		b.WriteByte('|')
	}
}
