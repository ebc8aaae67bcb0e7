// internal/rules/operators.go
package rules

import (
	"github.com/solatis/shelfkeeper/internal/types"
)

/*
 * Operator handlers.
 *
 * compileLeaf dispatches on the operator; each handler then switches on the
 * field category. Handlers return errUnsupportedOperator or
 * types.ErrUnparsableValue instead of a predicate when the leaf cannot be
 * compiled, and the caller substitutes MatchAll.
 *
 * Negated operators (not_equals, does_not_contain, is_not_empty,
 * excludes_all) are the Negate of their positive operator's predicate. A
 * positive leaf that fails stays MatchAll; it is never negated into
 * match-nothing.
 *
 * Families:
 *   - equality: exact instant for dates, numeric for numbers, absence test
 *     for read status "UNSET", case-insensitive for text, existential for
 *     relations
 *   - pattern: case-insensitive contains/prefix/suffix on text and relations
 *   - ordering and in_between: numbers and dates only, inclusive range
 *   - emptiness: null or blank scalar, or no related entity
 *   - membership: existential over relation names; plain IN for scalars;
 *     read status splits "UNSET" into an absence test
 */

// compileLeaf compiles a leaf whose field has a catalog entry.
func compileLeaf(r *types.Rule, d FieldDescriptor) (Predicate, error) {
	switch r.Operator {
	case types.OpEquals:
		return equals(d, r.Value)
	case types.OpNotEquals:
		return negated(equals(d, r.Value))
	case types.OpContains:
		return pattern(d, PatternContains, r.Value)
	case types.OpDoesNotContain:
		return negated(pattern(d, PatternContains, r.Value))
	case types.OpStartsWith:
		return pattern(d, PatternPrefix, r.Value)
	case types.OpEndsWith:
		return pattern(d, PatternSuffix, r.Value)
	case types.OpGreaterThan:
		return ordering(d, CmpGt, r.Value)
	case types.OpGreaterThanEqualTo:
		return ordering(d, CmpGte, r.Value)
	case types.OpLessThan:
		return ordering(d, CmpLt, r.Value)
	case types.OpLessThanEqualTo:
		return ordering(d, CmpLte, r.Value)
	case types.OpInBetween:
		return between(d, r.ValueStart, r.ValueEnd)
	case types.OpIsEmpty:
		return empty(d)
	case types.OpIsNotEmpty:
		return negated(empty(d))
	case types.OpIncludesAny:
		return includesAny(d, r.Value)
	case types.OpExcludesAll:
		return negated(includesAny(d, r.Value))
	case types.OpIncludesAll:
		return includesAll(d, r.Value)
	default:
		return nil, errUnsupportedOperator
	}
}

// negated complements a successfully compiled predicate.
func negated(p Predicate, err error) (Predicate, error) {
	if err != nil {
		return nil, err
	}
	return Negate(p), nil
}

// equals compiles the equality family.
func equals(d FieldDescriptor, value any) (Predicate, error) {
	switch d.Category {
	case CategoryRelation:
		v, err := Normalize(value, d.Category)
		if err != nil {
			return nil, err
		}
		return RelatedIn{Relation: d.Accessor.Name, Names: []string{v.(string)}}, nil

	case CategoryEnum:
		v, err := Normalize(value, d.Category)
		if err != nil {
			return nil, err
		}
		if v == types.StatusUnset {
			return NoProgress{}, nil
		}
		return Compare{Accessor: d.Accessor, Op: CmpEq, Value: v}, nil

	case CategoryString:
		v, err := Normalize(value, d.Category)
		if err != nil {
			return nil, err
		}
		return Compare{Accessor: d.Accessor, Op: CmpEq, Value: v, Fold: true}, nil

	case CategoryNumber, CategoryDate, CategoryIdentifier:
		v, err := Normalize(value, d.Category)
		if err != nil {
			return nil, err
		}
		return Compare{Accessor: d.Accessor, Op: CmpEq, Value: v}, nil

	default:
		return nil, errUnsupportedOperator
	}
}

// pattern compiles contains/starts_with/ends_with.
func pattern(d FieldDescriptor, kind PatternKind, value any) (Predicate, error) {
	switch d.Category {
	case CategoryString:
		v, err := Normalize(value, d.Category)
		if err != nil {
			return nil, err
		}
		return Pattern{Accessor: d.Accessor, Kind: kind, Literal: v.(string)}, nil

	case CategoryRelation:
		v, err := Normalize(value, d.Category)
		if err != nil {
			return nil, err
		}
		return RelatedPattern{Relation: d.Accessor.Name, Kind: kind, Literal: v.(string)}, nil

	default:
		return nil, errUnsupportedOperator
	}
}

// ordering compiles the four ordering comparisons.
func ordering(d FieldDescriptor, op CompareOp, value any) (Predicate, error) {
	switch d.Category {
	case CategoryNumber, CategoryDate:
		v, err := Normalize(value, d.Category)
		if err != nil {
			return nil, err
		}
		return Compare{Accessor: d.Accessor, Op: op, Value: v}, nil
	default:
		return nil, errUnsupportedOperator
	}
}

// between compiles an inclusive range. Both bounds must normalize.
func between(d FieldDescriptor, start, end any) (Predicate, error) {
	switch d.Category {
	case CategoryNumber, CategoryDate:
	default:
		return nil, errUnsupportedOperator
	}

	lo, err := Normalize(start, d.Category)
	if err != nil {
		return nil, err
	}
	hi, err := Normalize(end, d.Category)
	if err != nil {
		return nil, err
	}
	return AllOf(
		Compare{Accessor: d.Accessor, Op: CmpGte, Value: lo},
		Compare{Accessor: d.Accessor, Op: CmpLte, Value: hi},
	), nil
}

// empty compiles is_empty.
func empty(d FieldDescriptor) (Predicate, error) {
	switch d.Category {
	case CategoryRelation:
		return RelatedNone{Relation: d.Accessor.Name}, nil
	case CategoryString, CategoryEnum:
		return Blank{Accessor: d.Accessor, Text: true}, nil
	case CategoryNumber, CategoryDate, CategoryIdentifier:
		return Blank{Accessor: d.Accessor}, nil
	default:
		return nil, errUnsupportedOperator
	}
}

// includesAny compiles includes_any.
func includesAny(d FieldDescriptor, value any) (Predicate, error) {
	switch d.Category {
	case CategoryRelation, CategoryEnum, CategoryString, CategoryIdentifier:
	default:
		return nil, errUnsupportedOperator
	}

	values, err := NormalizeList(value, d.Category)
	if err != nil {
		return nil, err
	}

	switch d.Category {
	case CategoryRelation:
		return RelatedIn{Relation: d.Accessor.Name, Names: toStrings(values)}, nil
	case CategoryEnum:
		return statusMembership(d.Accessor, values), nil
	case CategoryString:
		return In{Accessor: d.Accessor, Values: values, Fold: true}, nil
	default:
		return In{Accessor: d.Accessor, Values: values}, nil
	}
}

// includesAll compiles includes_all. For relations every value needs its own
// existential match; one entity may satisfy several values. Read status has a
// single value per progress row, so it uses plain membership.
func includesAll(d FieldDescriptor, value any) (Predicate, error) {
	switch d.Category {
	case CategoryRelation:
		values, err := NormalizeList(value, d.Category)
		if err != nil {
			return nil, err
		}
		terms := make([]Predicate, 0, len(values))
		for _, name := range toStrings(values) {
			terms = append(terms, RelatedIn{Relation: d.Accessor.Name, Names: []string{name}})
		}
		return AllOf(terms...), nil

	case CategoryEnum:
		values, err := NormalizeList(value, d.Category)
		if err != nil {
			return nil, err
		}
		return statusMembership(d.Accessor, values), nil

	default:
		return nil, errUnsupportedOperator
	}
}

// statusMembership builds a read status "in list" test. "UNSET" in the list
// becomes an absence test OR-ed with membership of the remaining values.
func statusMembership(acc Accessor, values []any) Predicate {
	statuses := make([]any, 0, len(values))
	unset := false
	for _, v := range values {
		if v == types.StatusUnset {
			unset = true
			continue
		}
		statuses = append(statuses, v)
	}

	switch {
	case unset && len(statuses) == 0:
		return NoProgress{}
	case unset:
		return AnyOf(NoProgress{}, In{Accessor: acc, Values: statuses})
	default:
		return In{Accessor: acc, Values: statuses}
	}
}

func toStrings(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.(string)
	}
	return out
}
