package db

import (
	"fmt"
	"strings"

	"github.com/solatis/shelfkeeper/internal/rules"
)

/*
 * Predicate rendering.
 *
 * Turns a compiled rules.Predicate into a SQL boolean expression with "?"
 * placeholders. The expression is evaluated in a scope where "b" is the
 * books row and "p" is the user_book_progress row joined with
 * LEFT JOIN user_book_progress p ON p.book_id = b.book_id.
 *
 * Every rendered leaf is two-valued: comparisons are guarded with
 * IS NOT NULL so a missing value yields FALSE, never NULL, and NOT is an
 * exact complement. This matches rules.Evaluate.
 *
 * LIKE patterns escape \, % and _ and declare ESCAPE '\', so a literal such
 * as "100%" never acts as a wildcard. Case folding uses LOWER() on the
 * stored side; literals arrive already lower-cased.
 */

const (
	sqlTrue  = "1=1"
	sqlFalse = "1=0"
)

// relationTable describes the entity and link tables behind a relation.
type relationTable struct {
	entity string
	link   string
	key    string
}

var relationTables = map[string]relationTable{
	rules.RelationAuthors:    {entity: "authors", link: "book_authors", key: "author_id"},
	rules.RelationCategories: {entity: "categories", link: "book_categories", key: "category_id"},
	rules.RelationMoods:      {entity: "moods", link: "book_moods", key: "mood_id"},
	rules.RelationTags:       {entity: "tags", link: "book_tags", key: "tag_id"},
}

// RenderPredicate renders p into a SQL expression and its arguments.
func RenderPredicate(p rules.Predicate) (string, []any, error) {
	r := &renderer{}
	sql, err := r.render(p)
	if err != nil {
		return "", nil, err
	}
	return sql, r.args, nil
}

type renderer struct {
	args []any
}

func (r *renderer) arg(v any) string {
	r.args = append(r.args, v)
	return "?"
}

func (r *renderer) render(p rules.Predicate) (string, error) {
	switch v := p.(type) {
	case rules.MatchAll:
		return sqlTrue, nil

	case rules.And:
		return r.join(v.Terms, " AND ")

	case rules.Or:
		return r.join(v.Terms, " OR ")

	case rules.Not:
		inner, err := r.render(v.Term)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil

	case rules.Compare:
		col, err := column(v.Accessor)
		if err != nil {
			return "", err
		}
		lhs := col
		if v.Fold {
			lhs = "LOWER(" + col + ")"
		}
		return fmt.Sprintf("(%s IS NOT NULL AND %s %s %s)", col, lhs, v.Op, r.arg(v.Value)), nil

	case rules.In:
		if len(v.Values) == 0 {
			return sqlFalse, nil
		}
		col, err := column(v.Accessor)
		if err != nil {
			return "", err
		}
		lhs := col
		if v.Fold {
			lhs = "LOWER(" + col + ")"
		}
		return fmt.Sprintf("(%s IS NOT NULL AND %s IN (%s))", col, lhs, r.list(v.Values)), nil

	case rules.Pattern:
		col, err := column(v.Accessor)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`(%s IS NOT NULL AND LOWER(%s) LIKE %s ESCAPE '\')`,
			col, col, r.arg(likePattern(v.Kind, v.Literal))), nil

	case rules.Blank:
		col, err := column(v.Accessor)
		if err != nil {
			return "", err
		}
		if v.Text {
			return fmt.Sprintf("(%s IS NULL OR TRIM(%s) = '')", col, col), nil
		}
		return col + " IS NULL", nil

	case rules.RelatedIn:
		if len(v.Names) == 0 {
			return sqlFalse, nil
		}
		rel, ok := relationTables[v.Relation]
		if !ok {
			return "", fmt.Errorf("unknown relation: %s", v.Relation)
		}
		names := make([]any, len(v.Names))
		for i, n := range v.Names {
			names[i] = n
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s l JOIN %s e ON e.%s = l.%s WHERE l.book_id = b.book_id AND LOWER(e.name) IN (%s))",
			rel.link, rel.entity, rel.key, rel.key, r.list(names)), nil

	case rules.RelatedPattern:
		rel, ok := relationTables[v.Relation]
		if !ok {
			return "", fmt.Errorf("unknown relation: %s", v.Relation)
		}
		return fmt.Sprintf(`EXISTS (SELECT 1 FROM %s l JOIN %s e ON e.%s = l.%s WHERE l.book_id = b.book_id AND LOWER(e.name) LIKE %s ESCAPE '\')`,
			rel.link, rel.entity, rel.key, rel.key, r.arg(likePattern(v.Kind, v.Literal))), nil

	case rules.RelatedNone:
		rel, ok := relationTables[v.Relation]
		if !ok {
			return "", fmt.Errorf("unknown relation: %s", v.Relation)
		}
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s l WHERE l.book_id = b.book_id)", rel.link), nil

	case rules.NoProgress:
		return "p.user_id IS NULL", nil

	case rules.ProgressOwnedBy:
		return fmt.Sprintf("(p.user_id IS NOT NULL AND p.user_id = %s)", r.arg(v.UserID)), nil

	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func (r *renderer) join(terms []rules.Predicate, sep string) (string, error) {
	if len(terms) == 0 {
		return sqlTrue, nil
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		s, err := r.render(t)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (r *renderer) list(values []any) string {
	marks := make([]string, len(values))
	for i, v := range values {
		marks[i] = r.arg(v)
	}
	return strings.Join(marks, ", ")
}

// column qualifies a scalar accessor with its table alias.
func column(acc rules.Accessor) (string, error) {
	if !safeIdent(acc.Name) {
		return "", fmt.Errorf("invalid column name: %q", acc.Name)
	}
	switch acc.Source {
	case rules.SourceBook:
		return "b." + acc.Name, nil
	case rules.SourceProgress:
		return "p." + acc.Name, nil
	default:
		return "", fmt.Errorf("accessor %s is not a column", acc.Name)
	}
}

func safeIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z') && c != '_' {
			return false
		}
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds the LIKE argument for a pattern test.
func likePattern(kind rules.PatternKind, literal string) string {
	esc := likeEscaper.Replace(literal)
	switch kind {
	case rules.PatternPrefix:
		return esc + "%"
	case rules.PatternSuffix:
		return "%" + esc
	default:
		return "%" + esc + "%"
	}
}
