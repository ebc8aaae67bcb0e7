// internal/rules/scope.go
package rules

// Scope restricts a compiled predicate to the querying user's view: the
// paired progress row must be absent or belong to userID. Apply it once, to
// the root predicate. Applying it per leaf would let an OR branch on book
// columns match through another user's progress row.
func Scope(p Predicate, userID int64) Predicate {
	return AllOf(p, Visibility(userID))
}

// Visibility is the clause Scope conjoins with the compiled predicate.
func Visibility(userID int64) Predicate {
	return AnyOf(NoProgress{}, ProgressOwnedBy{UserID: userID})
}
