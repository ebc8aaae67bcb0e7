// internal/rules/predicate.go
package rules

// Predicate is a compiled, storage-agnostic filter over a book paired with at
// most one progress row. Renderers (SQL) and Evaluate (in memory) give every
// variant the same two-valued meaning: a missing value never satisfies a
// comparison, and Not is an exact complement.
type Predicate interface {
	isPredicate()
}

// MatchAll holds for every record.
type MatchAll struct{}

// And holds when every term holds. An empty And is MatchAll.
type And struct {
	Terms []Predicate
}

// Or holds when any term holds. An empty Or is MatchAll, like an empty
// rule group.
type Or struct {
	Terms []Predicate
}

// Not is the complement of Term.
type Not struct {
	Term Predicate
}

// CompareOp is the comparison applied by Compare.
type CompareOp int

const (
	CmpEq CompareOp = iota + 1
	CmpGt
	CmpGte
	CmpLt
	CmpLte
)

func (op CompareOp) String() string {
	switch op {
	case CmpEq:
		return "="
	case CmpGt:
		return ">"
	case CmpGte:
		return ">="
	case CmpLt:
		return "<"
	case CmpLte:
		return "<="
	default:
		return "?"
	}
}

// Compare tests a scalar accessor against Value (float64, int64, time.Time or
// string). With Fold the stored text is lower-cased before comparing; Value is
// already lower-case.
type Compare struct {
	Accessor Accessor
	Op       CompareOp
	Value    any
	Fold     bool
}

// In tests scalar membership in Values.
type In struct {
	Accessor Accessor
	Values   []any
	Fold     bool
}

// PatternKind selects the substring test applied by Pattern.
type PatternKind int

const (
	PatternContains PatternKind = iota + 1
	PatternPrefix
	PatternSuffix
)

// Pattern is a case-insensitive substring test. Literal is lower-case and
// carries no metacharacters; renderers escape it for their match mechanism.
type Pattern struct {
	Accessor Accessor
	Kind     PatternKind
	Literal  string
}

// Blank holds when the accessor is null, or for Text accessors when the value
// is blank after trimming.
type Blank struct {
	Accessor Accessor
	Text     bool
}

// RelatedIn holds when at least one related entity's lower-cased name is in Names.
type RelatedIn struct {
	Relation string
	Names    []string
}

// RelatedPattern holds when at least one related entity's name matches.
type RelatedPattern struct {
	Relation string
	Kind     PatternKind
	Literal  string
}

// RelatedNone holds when the book has no entity of the relation at all.
type RelatedNone struct {
	Relation string
}

// NoProgress holds when the record is paired with no progress row.
type NoProgress struct{}

// ProgressOwnedBy holds when the paired progress row belongs to UserID.
type ProgressOwnedBy struct {
	UserID int64
}

func (MatchAll) isPredicate()        {}
func (And) isPredicate()             {}
func (Or) isPredicate()              {}
func (Not) isPredicate()             {}
func (Compare) isPredicate()         {}
func (In) isPredicate()              {}
func (Pattern) isPredicate()         {}
func (Blank) isPredicate()           {}
func (RelatedIn) isPredicate()       {}
func (RelatedPattern) isPredicate()  {}
func (RelatedNone) isPredicate()     {}
func (NoProgress) isPredicate()      {}
func (ProgressOwnedBy) isPredicate() {}

// AllOf conjoins terms. MatchAll terms are dropped, nested Ands are
// flattened, and the result of no remaining terms is MatchAll.
func AllOf(terms ...Predicate) Predicate {
	out := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case MatchAll:
			continue
		case And:
			out = append(out, v.Terms...)
		default:
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return MatchAll{}
	case 1:
		return out[0]
	default:
		return And{Terms: out}
	}
}

// AnyOf disjoins terms. Any MatchAll term makes the whole disjunction
// MatchAll, and so does an empty term list.
func AnyOf(terms ...Predicate) Predicate {
	out := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case MatchAll:
			return MatchAll{}
		case Or:
			if len(v.Terms) == 0 {
				return MatchAll{}
			}
			out = append(out, v.Terms...)
		default:
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return MatchAll{}
	case 1:
		return out[0]
	default:
		return Or{Terms: out}
	}
}

// Negate returns the complement of p, removing a double negation.
func Negate(p Predicate) Predicate {
	if n, ok := p.(Not); ok {
		return n.Term
	}
	return Not{Term: p}
}
