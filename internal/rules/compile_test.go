// internal/rules/compile_test.go
package rules

import (
	"bytes"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/solatis/shelfkeeper/internal/types"
)

func quietEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func compileDoc(t *testing.T, e *Engine, doc string) Predicate {
	t.Helper()
	g, err := types.ParseGroupRule([]byte(doc))
	if err != nil {
		t.Fatalf("ParseGroupRule() error = %v", err)
	}
	return e.Compile(g)
}

func bookCol(name string) Accessor {
	return Accessor{Source: SourceBook, Name: name}
}

func progressCol(name string) Accessor {
	return Accessor{Source: SourceProgress, Name: name}
}

func TestCompile_Leaves(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Predicate
	}{
		{
			name: "empty group matches all",
			doc:  `{"join":"and","rules":[]}`,
			want: MatchAll{},
		},
		{
			name: "empty OR group matches all",
			doc:  `{"join":"or","rules":[]}`,
			want: MatchAll{},
		},
		{
			name: "title equals folds case",
			doc:  `{"join":"and","rules":[{"field":"title","operator":"equals","value":"Dune"}]}`,
			want: Compare{Accessor: bookCol("title"), Op: CmpEq, Value: "dune", Fold: true},
		},
		{
			name: "title not_equals negates equality",
			doc:  `{"join":"and","rules":[{"field":"title","operator":"not_equals","value":"Dune"}]}`,
			want: Not{Term: Compare{Accessor: bookCol("title"), Op: CmpEq, Value: "dune", Fold: true}},
		},
		{
			name: "title contains",
			doc:  `{"join":"and","rules":[{"field":"title","operator":"contains","value":"100%"}]}`,
			want: Pattern{Accessor: bookCol("title"), Kind: PatternContains, Literal: "100%"},
		},
		{
			name: "title starts_with",
			doc:  `{"join":"and","rules":[{"field":"title","operator":"starts_with","value":"The"}]}`,
			want: Pattern{Accessor: bookCol("title"), Kind: PatternPrefix, Literal: "the"},
		},
		{
			name: "publisher ends_with",
			doc:  `{"join":"and","rules":[{"field":"publisher","operator":"ends_with","value":"Press"}]}`,
			want: Pattern{Accessor: bookCol("publisher"), Kind: PatternSuffix, Literal: "press"},
		},
		{
			name: "page count greater_than",
			doc:  `{"join":"and","rules":[{"field":"pageCount","operator":"greater_than","value":300}]}`,
			want: Compare{Accessor: bookCol("page_count"), Op: CmpGt, Value: 300.0},
		},
		{
			name: "personal rating from numeric string",
			doc:  `{"join":"and","rules":[{"field":"personalRating","operator":"greater_than_equal_to","value":"4"}]}`,
			want: Compare{Accessor: progressCol("personal_rating"), Op: CmpGte, Value: 4.0},
		},
		{
			name: "page count in_between is inclusive",
			doc:  `{"join":"and","rules":[{"field":"pageCount","operator":"in_between","valueStart":100,"valueEnd":200}]}`,
			want: And{Terms: []Predicate{
				Compare{Accessor: bookCol("page_count"), Op: CmpGte, Value: 100.0},
				Compare{Accessor: bookCol("page_count"), Op: CmpLte, Value: 200.0},
			}},
		},
		{
			name: "library equals identifier",
			doc:  `{"join":"and","rules":[{"field":"library","operator":"equals","value":3}]}`,
			want: Compare{Accessor: bookCol("library_id"), Op: CmpEq, Value: int64(3)},
		},
		{
			name: "library includes_any",
			doc:  `{"join":"and","rules":[{"field":"library","operator":"includes_any","value":[1,2]}]}`,
			want: In{Accessor: bookCol("library_id"), Values: []any{int64(1), int64(2)}},
		},
		{
			name: "title is_empty",
			doc:  `{"join":"and","rules":[{"field":"title","operator":"is_empty"}]}`,
			want: Blank{Accessor: bookCol("title"), Text: true},
		},
		{
			name: "page count is_not_empty",
			doc:  `{"join":"and","rules":[{"field":"pageCount","operator":"is_not_empty"}]}`,
			want: Not{Term: Blank{Accessor: bookCol("page_count")}},
		},
		{
			name: "authors contains is existential",
			doc:  `{"join":"and","rules":[{"field":"authors","operator":"contains","value":"King"}]}`,
			want: RelatedPattern{Relation: RelationAuthors, Kind: PatternContains, Literal: "king"},
		},
		{
			name: "authors equals is existential",
			doc:  `{"join":"and","rules":[{"field":"authors","operator":"equals","value":"Stephen King"}]}`,
			want: RelatedIn{Relation: RelationAuthors, Names: []string{"stephen king"}},
		},
		{
			name: "categories includes_any",
			doc:  `{"join":"and","rules":[{"field":"categories","operator":"includes_any","value":["Horror","Fantasy"]}]}`,
			want: RelatedIn{Relation: RelationCategories, Names: []string{"horror", "fantasy"}},
		},
		{
			name: "moods excludes_all",
			doc:  `{"join":"and","rules":[{"field":"moods","operator":"excludes_all","value":["dark"]}]}`,
			want: Not{Term: RelatedIn{Relation: RelationMoods, Names: []string{"dark"}}},
		},
		{
			name: "tags includes_all needs each value",
			doc:  `{"join":"and","rules":[{"field":"tags","operator":"includes_all","value":["Fantasy","SciFi"]}]}`,
			want: And{Terms: []Predicate{
				RelatedIn{Relation: RelationTags, Names: []string{"fantasy"}},
				RelatedIn{Relation: RelationTags, Names: []string{"scifi"}},
			}},
		},
		{
			name: "tags is_empty",
			doc:  `{"join":"and","rules":[{"field":"tags","operator":"is_empty"}]}`,
			want: RelatedNone{Relation: RelationTags},
		},
		{
			name: "read status UNSET is absence",
			doc:  `{"join":"and","rules":[{"field":"READ_STATUS","operator":"EQUALS","value":"UNSET"}]}`,
			want: NoProgress{},
		},
		{
			name: "read status not UNSET",
			doc:  `{"join":"and","rules":[{"field":"readStatus","operator":"not_equals","value":"UNSET"}]}`,
			want: Not{Term: NoProgress{}},
		},
		{
			name: "read status equals is exact",
			doc:  `{"join":"and","rules":[{"field":"readStatus","operator":"equals","value":"READ"}]}`,
			want: Compare{Accessor: progressCol("read_status"), Op: CmpEq, Value: "READ"},
		},
		{
			name: "read status includes_any with UNSET",
			doc:  `{"join":"and","rules":[{"field":"readStatus","operator":"includes_any","value":["UNSET","READ"]}]}`,
			want: Or{Terms: []Predicate{
				NoProgress{},
				In{Accessor: progressCol("read_status"), Values: []any{"READ"}},
			}},
		},
		{
			name: "read status includes_any only UNSET",
			doc:  `{"join":"and","rules":[{"field":"readStatus","operator":"includes_any","value":["UNSET"]}]}`,
			want: NoProgress{},
		},
		{
			name: "published date less_than",
			doc:  `{"join":"and","rules":[{"field":"publishedDate","operator":"less_than","value":"2000-01-01"}]}`,
			want: Compare{Accessor: bookCol("published_date"), Op: CmpLt, Value: mustDate(t, "2000-01-01")},
		},
	}

	e := quietEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileDoc(t, e, tt.doc)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Compile() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCompile_LenientFallback(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", `{"join":"and","rules":[{"field":"shelfColour","operator":"equals","value":"red"}]}`},
		{"unknown operator", `{"join":"and","rules":[{"field":"title","operator":"resembles","value":"x"}]}`},
		{"ordering on string", `{"join":"and","rules":[{"field":"title","operator":"greater_than","value":"m"}]}`},
		{"ordering on relation", `{"join":"and","rules":[{"field":"tags","operator":"greater_than","value":1}]}`},
		{"pattern on number", `{"join":"and","rules":[{"field":"pageCount","operator":"contains","value":"3"}]}`},
		{"includes_all on string", `{"join":"and","rules":[{"field":"title","operator":"includes_all","value":["a"]}]}`},
		{"non-numeric number", `{"join":"and","rules":[{"field":"pageCount","operator":"equals","value":"many"}]}`},
		{"unparsable date", `{"join":"and","rules":[{"field":"publishedDate","operator":"greater_than","value":"last year"}]}`},
		{"in_between missing end", `{"join":"and","rules":[{"field":"pageCount","operator":"in_between","valueStart":10}]}`},
		{"in_between unparsable start", `{"join":"and","rules":[{"field":"publishedDate","operator":"in_between","valueStart":"soon","valueEnd":"2020-01-01"}]}`},
		{"equals with no value", `{"join":"and","rules":[{"field":"title","operator":"equals"}]}`},
		{"includes_any empty list", `{"join":"and","rules":[{"field":"tags","operator":"includes_any","value":[]}]}`},
	}

	e := quietEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileDoc(t, e, tt.doc)
			if _, ok := got.(MatchAll); !ok {
				t.Errorf("Compile() = %#v, want MatchAll", got)
			}
		})
	}
}

func TestCompile_FailedLeafIsNeverNegated(t *testing.T) {
	e := quietEngine()
	for _, op := range []string{"not_equals", "does_not_contain", "excludes_all"} {
		doc := `{"join":"and","rules":[{"field":"shelfColour","operator":"` + op + `","value":"red"}]}`
		got := compileDoc(t, e, doc)
		if _, ok := got.(MatchAll); !ok {
			t.Errorf("Compile(%s on unknown field) = %#v, want MatchAll", op, got)
		}
	}

	doc := `{"join":"and","rules":[{"field":"pageCount","operator":"not_equals","value":"many"}]}`
	if got := compileDoc(t, e, doc); !reflect.DeepEqual(got, MatchAll{}) {
		t.Errorf("Compile(not_equals unparsable) = %#v, want MatchAll", got)
	}
}

func TestCompile_FallbackInsideGroups(t *testing.T) {
	e := quietEngine()
	title := Compare{Accessor: bookCol("title"), Op: CmpEq, Value: "dune", Fold: true}

	and := compileDoc(t, e, `{"join":"and","rules":[
		{"field":"title","operator":"equals","value":"Dune"},
		{"field":"shelfColour","operator":"equals","value":"red"}
	]}`)
	if !reflect.DeepEqual(and, title) {
		t.Errorf("AND with fallback leaf = %#v, want %#v", and, title)
	}

	or := compileDoc(t, e, `{"join":"or","rules":[
		{"field":"title","operator":"equals","value":"Dune"},
		{"field":"shelfColour","operator":"equals","value":"red"}
	]}`)
	if !reflect.DeepEqual(or, MatchAll{}) {
		t.Errorf("OR with fallback leaf = %#v, want MatchAll", or)
	}
}

func TestCompile_NestedGroups(t *testing.T) {
	doc := `{"join":"and","rules":[
		{"field":"library","operator":"equals","value":3},
		{"join":"or","rules":[
			{"field":"categories","operator":"includes_any","value":["Horror"]},
			{"field":"personalRating","operator":"greater_than_equal_to","value":4}
		]}
	]}`

	want := And{Terms: []Predicate{
		Compare{Accessor: bookCol("library_id"), Op: CmpEq, Value: int64(3)},
		Or{Terms: []Predicate{
			RelatedIn{Relation: RelationCategories, Names: []string{"horror"}},
			Compare{Accessor: progressCol("personal_rating"), Op: CmpGte, Value: 4.0},
		}},
	}}

	got := compileDoc(t, quietEngine(), doc)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compile() = %#v, want %#v", got, want)
	}
}

func TestCompile_LogsFallbacks(t *testing.T) {
	var buf bytes.Buffer
	e := NewEngine(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	compileDoc(t, e, `{"join":"and","rules":[
		null,
		{"field":"shelfColour","operator":"equals","value":"red"},
		{"field":"pageCount","operator":"greater_than","value":"many"},
		{"field":"title","operator":"equals","value":"Dune"}
	]}`)

	out := buf.String()
	if n := strings.Count(out, "level=WARN"); n != 3 {
		t.Errorf("WARN lines = %d, want 3\n%s", n, out)
	}
	for _, want := range []string{"skipping malformed rule", "unknown rule field", "rule leaf not compilable", "field=shelfColour", "category=number"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q\n%s", want, out)
		}
	}
}

func TestCompileForUser_ScopesOnce(t *testing.T) {
	g := &types.GroupRule{Join: types.JoinAnd}
	got := quietEngine().CompileForUser(g, 7)
	want := Or{Terms: []Predicate{NoProgress{}, ProgressOwnedBy{UserID: 7}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CompileForUser(empty) = %#v, want %#v", got, want)
	}
}

func TestCompileFilter_InvalidDocument(t *testing.T) {
	if _, err := quietEngine().CompileFilter([]byte(`[1,2]`), 1); err == nil {
		t.Error("CompileFilter([1,2]) error = nil, want error")
	}
}
