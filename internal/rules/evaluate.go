// internal/rules/evaluate.go
package rules

import (
	"strings"
	"time"

	"github.com/solatis/shelfkeeper/internal/types"
)

/*
 * In-memory predicate evaluation.
 *
 * Evaluates a compiled Predicate against a fully loaded BookRecord with the
 * same meaning the SQL renderer gives it, so a book listed on a shelf is also
 * reported as a member of that shelf.
 *
 * Pair semantics: a predicate ranges over (book, progress row) pairs. A book
 * with progress rows yields one pair per row; a book without any yields a
 * single pair with no row. The book matches when any pair satisfies the
 * predicate. This is the shape of a LEFT JOIN from books to progress.
 *
 * Two-valued logic: a missing value never satisfies Compare, In or Pattern,
 * and Not is the exact complement of its term.
 */

// Evaluate reports whether rec satisfies p.
func Evaluate(p Predicate, rec *types.BookRecord) bool {
	if rec == nil {
		return false
	}
	if len(rec.Progress) == 0 {
		return eval(p, rec, nil)
	}
	for i := range rec.Progress {
		if eval(p, rec, &rec.Progress[i]) {
			return true
		}
	}
	return false
}

// eval evaluates p against one (book, progress row) pair. prog may be nil.
func eval(p Predicate, rec *types.BookRecord, prog *types.Progress) bool {
	switch v := p.(type) {
	case MatchAll:
		return true

	case And:
		for _, t := range v.Terms {
			if !eval(t, rec, prog) {
				return false
			}
		}
		return true

	case Or:
		if len(v.Terms) == 0 {
			return true
		}
		for _, t := range v.Terms {
			if eval(t, rec, prog) {
				return true
			}
		}
		return false

	case Not:
		return !eval(v.Term, rec, prog)

	case Compare:
		actual, ok := resolve(v.Accessor, rec, prog)
		if !ok {
			return false
		}
		return compareValues(fold(actual, v.Fold), v.Value, v.Op)

	case In:
		actual, ok := resolve(v.Accessor, rec, prog)
		if !ok {
			return false
		}
		actual = fold(actual, v.Fold)
		for _, want := range v.Values {
			if compareValues(actual, want, CmpEq) {
				return true
			}
		}
		return false

	case Pattern:
		actual, ok := resolve(v.Accessor, rec, prog)
		if !ok {
			return false
		}
		s, ok := actual.(string)
		if !ok {
			return false
		}
		return matchPattern(strings.ToLower(s), v.Kind, v.Literal)

	case Blank:
		actual, ok := resolve(v.Accessor, rec, prog)
		if !ok {
			return true
		}
		// Only spaces count as blank, matching SQL TRIM.
		if s, isText := actual.(string); isText && v.Text {
			return strings.Trim(s, " ") == ""
		}
		return false

	case RelatedIn:
		for _, name := range relatedNames(v.Relation, rec) {
			name = strings.ToLower(name)
			for _, want := range v.Names {
				if name == want {
					return true
				}
			}
		}
		return false

	case RelatedPattern:
		for _, name := range relatedNames(v.Relation, rec) {
			if matchPattern(strings.ToLower(name), v.Kind, v.Literal) {
				return true
			}
		}
		return false

	case RelatedNone:
		return len(relatedNames(v.Relation, rec)) == 0

	case NoProgress:
		return prog == nil

	case ProgressOwnedBy:
		return prog != nil && prog.UserID == v.UserID

	default:
		return false
	}
}

func fold(v any, enabled bool) any {
	if s, ok := v.(string); ok && enabled {
		return strings.ToLower(s)
	}
	return v
}

func matchPattern(s string, kind PatternKind, literal string) bool {
	switch kind {
	case PatternContains:
		return strings.Contains(s, literal)
	case PatternPrefix:
		return strings.HasPrefix(s, literal)
	case PatternSuffix:
		return strings.HasSuffix(s, literal)
	default:
		return false
	}
}

// compareValues applies op to two values of the same normalized kind.
// Values of different kinds never compare.
func compareValues(actual, want any, op CompareOp) bool {
	switch a := actual.(type) {
	case float64:
		w, ok := want.(float64)
		if !ok {
			return false
		}
		return ordered(cmp3(a < w, a > w), op)

	case int64:
		w, ok := want.(int64)
		if !ok {
			return false
		}
		return ordered(cmp3(a < w, a > w), op)

	case time.Time:
		w, ok := want.(time.Time)
		if !ok {
			return false
		}
		return ordered(cmp3(a.Before(w), a.After(w)), op)

	case string:
		w, ok := want.(string)
		if !ok {
			return false
		}
		return ordered(strings.Compare(a, w), op)

	default:
		return false
	}
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

func ordered(c int, op CompareOp) bool {
	switch op {
	case CmpEq:
		return c == 0
	case CmpGt:
		return c > 0
	case CmpGte:
		return c >= 0
	case CmpLt:
		return c < 0
	case CmpLte:
		return c <= 0
	default:
		return false
	}
}
