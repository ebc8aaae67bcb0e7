// internal/rules/format.go
package rules

import (
	"fmt"
	"strings"
	"time"
)

// Format renders p as a compact, human-readable expression for logs and the
// explain command, e.g. and(book.title ~* "dune", not(progress.read_status = "READ")).
func Format(p Predicate) string {
	var b strings.Builder
	format(&b, p)
	return b.String()
}

func format(b *strings.Builder, p Predicate) {
	switch v := p.(type) {
	case MatchAll:
		b.WriteString("true")
	case And:
		formatTerms(b, "and", v.Terms)
	case Or:
		formatTerms(b, "or", v.Terms)
	case Not:
		b.WriteString("not(")
		format(b, v.Term)
		b.WriteString(")")
	case Compare:
		b.WriteString(accessorName(v.Accessor, v.Fold))
		fmt.Fprintf(b, " %s %s", v.Op, literal(v.Value))
	case In:
		b.WriteString(accessorName(v.Accessor, v.Fold))
		b.WriteString(" in ")
		formatList(b, v.Values)
	case Pattern:
		fmt.Fprintf(b, "%s %s %q", accessorName(v.Accessor, false), patternVerb(v.Kind), v.Literal)
	case Blank:
		fmt.Fprintf(b, "blank(%s)", accessorName(v.Accessor, false))
	case RelatedIn:
		names := make([]any, len(v.Names))
		for i, n := range v.Names {
			names[i] = n
		}
		fmt.Fprintf(b, "any(%s) in ", v.Relation)
		formatList(b, names)
	case RelatedPattern:
		fmt.Fprintf(b, "any(%s) %s %q", v.Relation, patternVerb(v.Kind), v.Literal)
	case RelatedNone:
		fmt.Fprintf(b, "none(%s)", v.Relation)
	case NoProgress:
		b.WriteString("no_progress")
	case ProgressOwnedBy:
		fmt.Fprintf(b, "progress.user_id = %d", v.UserID)
	default:
		fmt.Fprintf(b, "<%T>", p)
	}
}

func formatTerms(b *strings.Builder, op string, terms []Predicate) {
	b.WriteString(op)
	b.WriteString("(")
	for i, t := range terms {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, t)
	}
	b.WriteString(")")
}

func formatList(b *strings.Builder, values []any) {
	b.WriteString("[")
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(literal(v))
	}
	b.WriteString("]")
}

func accessorName(acc Accessor, fold bool) string {
	var name string
	switch acc.Source {
	case SourceProgress:
		name = "progress." + acc.Name
	case SourceRelation:
		name = "related." + acc.Name
	default:
		name = "book." + acc.Name
	}
	if fold {
		return "lower(" + name + ")"
	}
	return name
}

func patternVerb(kind PatternKind) string {
	switch kind {
	case PatternPrefix:
		return "starts"
	case PatternSuffix:
		return "ends"
	default:
		return "contains"
	}
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
