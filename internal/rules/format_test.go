package rules

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	title := Accessor{Source: SourceBook, Name: "title"}
	status := Accessor{Source: SourceProgress, Name: "read_status"}
	published := Accessor{Source: SourceBook, Name: "published_date"}

	tests := []struct {
		name string
		p    Predicate
		want string
	}{
		{"match all", MatchAll{}, "true"},
		{"folded equality", Compare{Accessor: title, Op: CmpEq, Value: "dune", Fold: true}, `lower(book.title) = "dune"`},
		{"date bound", Compare{Accessor: published, Op: CmpGte, Value: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}, "book.published_date >= 2020-01-01T00:00:00Z"},
		{"membership", In{Accessor: status, Values: []any{"READ", "PAUSED"}}, `progress.read_status in ["READ", "PAUSED"]`},
		{"pattern", Pattern{Accessor: title, Kind: PatternPrefix, Literal: "the"}, `book.title starts "the"`},
		{"relation", RelatedIn{Relation: RelationTags, Names: []string{"horror"}}, `any(tags) in ["horror"]`},
		{"relation empty", RelatedNone{Relation: RelationMoods}, "none(moods)"},
		{
			"scoped",
			Scope(Negate(Blank{Accessor: title, Text: true}), 7),
			"and(not(blank(book.title)), or(no_progress, progress.user_id = 7))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.p); got != tt.want {
				t.Errorf("Format() = %s, want %s", got, tt.want)
			}
		})
	}
}
