// internal/rules/compile.go
package rules

import (
	"errors"
	"log/slog"

	"github.com/solatis/shelfkeeper/internal/types"
)

/*
 * Rule compilation.
 *
 * Walks a GroupRule tree and emits one composable Predicate.
 *
 * Compilation workflow:
 *   1. Log and drop children the decoder could not read (GroupRule.Skipped)
 *   2. Compile each child: groups recurse, leaves dispatch on
 *      (field category, operator) in operators.go
 *   3. Combine child predicates with AllOf/AnyOf per the group's join
 *
 * Lenient fallback: an unknown field, an operator that means nothing for the
 * field's category, or a literal that fails normalization compiles to
 * MatchAll and logs a warning. Compile never returns an error. Inside an OR
 * the MatchAll absorbs its siblings; inside an AND it is dropped.
 *
 * An empty group compiles to MatchAll, the identity for both joins.
 */

// errUnsupportedOperator marks an operator that has no meaning for a category.
var errUnsupportedOperator = errors.New("operator not supported for field category")

// compiler carries the logger used to report fallbacks.
type compiler struct {
	logger *slog.Logger
}

// compileGroup compiles a group and its subtree.
func (c *compiler) compileGroup(g *types.GroupRule) Predicate {
	if g == nil {
		return MatchAll{}
	}

	for _, skipped := range g.Skipped {
		c.logger.Warn("skipping malformed rule",
			"group", g.Name,
			"index", skipped.Index,
			"error", skipped.Err)
	}

	terms := make([]Predicate, 0, len(g.Rules))
	for _, child := range g.Rules {
		switch n := child.(type) {
		case *types.Rule:
			terms = append(terms, c.compileRule(n))
		case *types.GroupRule:
			terms = append(terms, c.compileGroup(n))
		}
	}

	if len(terms) == 0 {
		return MatchAll{}
	}
	if g.Join == types.JoinOr {
		return AnyOf(terms...)
	}
	return AllOf(terms...)
}

// compileRule compiles one leaf, degrading to MatchAll on any failure.
func (c *compiler) compileRule(r *types.Rule) Predicate {
	if r == nil {
		return MatchAll{}
	}

	desc, ok := Describe(r.Field)
	if !ok {
		c.logger.Warn("unknown rule field, leaf matches all",
			"field", r.Field,
			"operator", r.Operator)
		return MatchAll{}
	}

	p, err := compileLeaf(r, desc)
	if err != nil {
		c.logger.Warn("rule leaf not compilable, leaf matches all",
			"field", r.Field,
			"operator", r.Operator,
			"category", desc.Category.String(),
			"error", err)
		return MatchAll{}
	}
	return p
}
