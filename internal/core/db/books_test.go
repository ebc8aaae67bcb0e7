package db

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/shelfkeeper/internal/rules"
	"github.com/solatis/shelfkeeper/internal/types"
)

func strp(s string) *string { return &s }

func fltp(f float64) *float64 { return &f }

func timep(t time.Time) *time.Time { return &t }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

type fixture struct {
	store *Store
	me    int64
	other int64
	libs  []int64
	books map[string]int64
}

func progress(userID int64, status string, rating float64) types.Progress {
	p := types.Progress{UserID: userID, ReadStatus: strp(status)}
	if rating > 0 {
		p.PersonalRating = fltp(rating)
	}
	return p
}

// seedLibrary creates three libraries and a mixed set of books. Book keys
// name what makes each book interesting to a filter.
func seedLibrary(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := openTestStore(t)

	me, err := store.CreateUser(ctx, "reader", false, true)
	require.NoError(t, err)
	other, err := store.CreateUser(ctx, "neighbour", false, true)
	require.NoError(t, err)

	f := &fixture{store: store, me: me.ID, other: other.ID, books: map[string]int64{}}
	for _, name := range []string{"Fiction", "Comics", "Archive"} {
		id, err := store.CreateLibrary(ctx, name)
		require.NoError(t, err)
		f.libs = append(f.libs, id)
	}
	lib1, lib2, lib3 := f.libs[0], f.libs[1], f.libs[2]

	finished := time.Date(2023, 3, 14, 18, 0, 0, 0, time.UTC)
	records := map[string]*types.BookRecord{
		"lib1-horror": {
			Book:       types.Book{LibraryID: lib1, Title: strp("It"), PageCount: fltp(1138)},
			Authors:    []string{"Stephen King"},
			Categories: []string{"Horror"},
		},
		"lib2-rated5": {
			Book:     types.Book{LibraryID: lib2, Title: strp("Watchmen"), FileType: strp("cbz")},
			Progress: []types.Progress{progress(me.ID, types.StatusRead, 5)},
		},
		"lib3-horror-unread": {
			Book: types.Book{
				LibraryID:     lib3,
				Title:         strp("The Shining: 100% Edition"),
				Publisher:     strp("Doubleday"),
				PublishedDate: timep(time.Date(1977, 1, 28, 0, 0, 0, 0, time.UTC)),
				PageCount:     fltp(447),
			},
			Authors:    []string{"Stephen King"},
			Categories: []string{"Horror", "Classics"},
			Tags:       []string{"Fantasy", "SciFi"},
		},
		"lib3-rated4": {
			Book: types.Book{
				LibraryID:     lib3,
				Title:         strp("Pride and Prejudice"),
				Subtitle:      strp("   "),
				PublishedDate: timep(time.Date(1813, 1, 28, 0, 0, 0, 0, time.UTC)),
				PageCount:     fltp(279),
			},
			Authors:    []string{"Jane Austen"},
			Categories: []string{"Romance"},
			Tags:       []string{"Fantasy"},
			Progress: []types.Progress{{
				UserID:         me.ID,
				ReadStatus:     strp(types.StatusRead),
				PersonalRating: fltp(4),
				DateFinished:   timep(finished),
			}},
		},
		"lib3-rated3": {
			Book: types.Book{
				LibraryID: lib3,
				Title:     strp("Emma"),
				Subtitle:  strp("\t"),
				FileName:  strp("Emma.EPUB"),
				PageCount: fltp(474),
			},
			Categories: []string{"Romance"},
			Progress:   []types.Progress{progress(me.ID, types.StatusReading, 3.5)},
		},
		"lib3-shared": {
			Book:       types.Book{LibraryID: lib3, Title: strp("Persuasion"), SeriesName: strp("Austen_Collected")},
			Categories: []string{"Romance"},
			Moods:      []string{"wistful"},
			Progress: []types.Progress{
				progress(other.ID, types.StatusRead, 5),
				progress(me.ID, types.StatusAbandoned, 2),
			},
		},
		"lib3-others-only": {
			Book:       types.Book{LibraryID: lib3, Title: strp("Carrie")},
			Categories: []string{"Horror"},
			Progress:   []types.Progress{progress(other.ID, types.StatusRead, 5)},
		},
		"lib3-bare": {
			Book: types.Book{LibraryID: lib3},
		},
	}

	for key, rec := range records {
		id, err := store.CreateBook(ctx, rec)
		require.NoError(t, err, key)
		f.books[key] = id
	}
	return f
}

func (f *fixture) ids(keys ...string) []int64 {
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		out = append(out, f.books[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (f *fixture) list(t *testing.T, doc string, userID int64) []int64 {
	t.Helper()
	p, err := quietEngine().CompileFilter([]byte(doc), userID)
	require.NoError(t, err)

	listing, err := f.store.ListBooks(context.Background(), BookQuery{
		Predicate:    p,
		AllLibraries: true,
		Page:         types.Page{Number: 0, Size: 1000},
	})
	require.NoError(t, err)

	out := make([]int64, 0, len(listing.Books))
	for _, b := range listing.Books {
		out = append(out, b.ID)
	}
	return out
}

func TestListBooks_LibraryScenario(t *testing.T) {
	f := seedLibrary(t)
	doc := `{"join":"AND","rules":[
		{"field":"LIBRARY","operator":"EQUALS","value":` + itoa(f.libs[2]) + `},
		{"join":"OR","rules":[
			{"field":"CATEGORIES","operator":"INCLUDES_ANY","value":["Horror"]},
			{"field":"PERSONAL_RATING","operator":"GREATER_THAN_EQUAL_TO","value":4}
		]}
	]}`

	got := f.list(t, doc, f.me)
	// lib3-others-only is Horror but only carries another user's progress,
	// so the visibility clause hides it.
	assert.Equal(t, f.ids("lib3-horror-unread", "lib3-rated4"), got)
}

func TestListBooks_MatchesInMemoryEvaluation(t *testing.T) {
	f := seedLibrary(t)
	ctx := context.Background()
	engine := quietEngine()

	var records []*types.BookRecord
	for _, id := range f.books {
		rec, err := f.store.GetBookRecord(ctx, id)
		require.NoError(t, err)
		records = append(records, rec)
	}

	docs := []string{
		`{"join":"and","rules":[]}`,
		`{"join":"and","rules":[{"field":"title","operator":"contains","value":"SHIN"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"contains","value":"100%"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"contains","value":"1%0"}]}`,
		`{"join":"and","rules":[{"field":"seriesName","operator":"contains","value":"n_c"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"contains","value":"persu_sion"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"does_not_contain","value":"e"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"starts_with","value":"the"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"ends_with","value":"edition"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"equals","value":"EMMA"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"not_equals","value":"emma"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"is_empty"}]}`,
		`{"join":"and","rules":[{"field":"subtitle","operator":"is_empty"}]}`,
		`{"join":"and","rules":[{"field":"subtitle","operator":"is_not_empty"}]}`,
		`{"join":"and","rules":[{"field":"title","operator":"includes_any","value":["emma","it"]}]}`,
		`{"join":"and","rules":[{"field":"fileType","operator":"equals","value":"CBZ"}]}`,
		`{"join":"and","rules":[{"field":"fileType","operator":"equals","value":"epub"}]}`,
		`{"join":"and","rules":[{"field":"fileType","operator":"is_empty"}]}`,
		`{"join":"and","rules":[{"field":"pageCount","operator":"greater_than","value":400}]}`,
		`{"join":"and","rules":[{"field":"pageCount","operator":"less_than_equal_to","value":447}]}`,
		`{"join":"and","rules":[{"field":"pageCount","operator":"in_between","valueStart":279,"valueEnd":447}]}`,
		`{"join":"and","rules":[{"field":"pageCount","operator":"not_equals","value":279}]}`,
		`{"join":"and","rules":[{"field":"pageCount","operator":"is_empty"}]}`,
		`{"join":"and","rules":[{"field":"publishedDate","operator":"less_than","value":"1900-01-01"}]}`,
		`{"join":"and","rules":[{"field":"publishedDate","operator":"equals","value":"1977-01-28"}]}`,
		`{"join":"and","rules":[{"field":"publishedDate","operator":"in_between","valueStart":"1800-01-01","valueEnd":"1977-01-28T00:00:00Z"}]}`,
		`{"join":"and","rules":[{"field":"publishedDate","operator":"is_not_empty"}]}`,
		`{"join":"and","rules":[{"field":"dateFinished","operator":"greater_than","value":"2023-03-14T17:59:59Z"}]}`,
		`{"join":"and","rules":[{"field":"dateFinished","operator":"is_empty"}]}`,
		`{"join":"and","rules":[{"field":"personalRating","operator":"greater_than_equal_to","value":4}]}`,
		`{"join":"and","rules":[{"field":"personalRating","operator":"not_equals","value":5}]}`,
		`{"join":"and","rules":[{"field":"readStatus","operator":"equals","value":"UNSET"}]}`,
		`{"join":"and","rules":[{"field":"readStatus","operator":"not_equals","value":"UNSET"}]}`,
		`{"join":"and","rules":[{"field":"readStatus","operator":"equals","value":"READ"}]}`,
		`{"join":"and","rules":[{"field":"readStatus","operator":"not_equals","value":"READ"}]}`,
		`{"join":"and","rules":[{"field":"readStatus","operator":"includes_any","value":["UNSET","READ"]}]}`,
		`{"join":"and","rules":[{"field":"readStatus","operator":"excludes_all","value":["UNSET","READING"]}]}`,
		`{"join":"and","rules":[{"field":"readStatus","operator":"is_empty"}]}`,
		`{"join":"and","rules":[{"field":"authors","operator":"equals","value":"stephen king"}]}`,
		`{"join":"and","rules":[{"field":"authors","operator":"contains","value":"AUST"}]}`,
		`{"join":"and","rules":[{"field":"authors","operator":"does_not_contain","value":"king"}]}`,
		`{"join":"and","rules":[{"field":"categories","operator":"includes_any","value":["horror","romance"]}]}`,
		`{"join":"and","rules":[{"field":"categories","operator":"excludes_all","value":["Horror"]}]}`,
		`{"join":"and","rules":[{"field":"tags","operator":"includes_all","value":["Fantasy","SciFi"]}]}`,
		`{"join":"and","rules":[{"field":"tags","operator":"includes_all","value":["Fantasy","Horror"]}]}`,
		`{"join":"and","rules":[{"field":"moods","operator":"is_empty"}]}`,
		`{"join":"and","rules":[{"field":"moods","operator":"is_not_empty"}]}`,
		`{"join":"and","rules":[{"field":"shelfColour","operator":"equals","value":"red"}]}`,
		`{"join":"or","rules":[
			{"field":"readStatus","operator":"equals","value":"ABANDONED"},
			{"join":"and","rules":[
				{"field":"categories","operator":"includes_any","value":["Horror"]},
				{"field":"pageCount","operator":"less_than","value":1000}
			]}
		]}`,
	}

	for _, doc := range docs {
		p, err := engine.CompileFilter([]byte(doc), f.me)
		require.NoError(t, err)

		var want []int64
		for _, rec := range records {
			if rules.Evaluate(p, rec) {
				want = append(want, rec.ID)
			}
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		if want == nil {
			want = []int64{}
		}

		assert.Equal(t, want, f.list(t, doc, f.me), doc)
	}
}

func TestListBooks_PaginationAndScoping(t *testing.T) {
	f := seedLibrary(t)
	ctx := context.Background()
	p, err := quietEngine().CompileFilter([]byte(`{"join":"and","rules":[]}`), f.me)
	require.NoError(t, err)

	// Everything visible to me: all books except lib3-others-only.
	first, err := f.store.ListBooks(ctx, BookQuery{Predicate: p, AllLibraries: true, Page: types.Page{Number: 0, Size: 3}})
	require.NoError(t, err)
	assert.Equal(t, 7, first.Total)
	assert.Len(t, first.Books, 3)

	last, err := f.store.ListBooks(ctx, BookQuery{Predicate: p, AllLibraries: true, Page: types.Page{Number: 2, Size: 3}})
	require.NoError(t, err)
	assert.Len(t, last.Books, 1)

	scoped, err := f.store.ListBooks(ctx, BookQuery{Predicate: p, LibraryIDs: []int64{f.libs[0], f.libs[1]}, Page: types.Page{Size: 10}})
	require.NoError(t, err)
	assert.Equal(t, 2, scoped.Total)

	none, err := f.store.ListBooks(ctx, BookQuery{Predicate: p, Page: types.Page{Size: 10}})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Total)
	assert.Empty(t, none.Books)
}

func TestDeleteBook_HidesFromShelves(t *testing.T) {
	f := seedLibrary(t)
	ctx := context.Background()
	id := f.books["lib1-horror"]

	require.NoError(t, f.store.DeleteBook(ctx, id))
	assert.ErrorIs(t, f.store.DeleteBook(ctx, id), types.ErrBookNotFound)

	_, err := f.store.GetBookRecord(ctx, id)
	assert.ErrorIs(t, err, types.ErrBookNotFound)

	got := f.list(t, `{"join":"and","rules":[{"field":"categories","operator":"includes_any","value":["Horror"]}]}`, f.me)
	assert.NotContains(t, got, id)
}

func TestGetBookRecord(t *testing.T) {
	f := seedLibrary(t)
	rec, err := f.store.GetBookRecord(context.Background(), f.books["lib3-shared"])
	require.NoError(t, err)

	assert.Equal(t, "Persuasion", *rec.Title)
	assert.Equal(t, []string{"Romance"}, rec.Categories)
	assert.Equal(t, []string{"wistful"}, rec.Moods)
	assert.Empty(t, rec.Authors)
	require.Len(t, rec.Progress, 2)
	assert.Equal(t, f.me, rec.Progress[0].UserID)
	assert.Equal(t, types.StatusAbandoned, *rec.Progress[0].ReadStatus)
}

func TestCreateBook_DerivesFileType(t *testing.T) {
	f := seedLibrary(t)
	ctx := context.Background()

	rec, err := f.store.GetBookRecord(ctx, f.books["lib3-rated3"])
	require.NoError(t, err)
	require.NotNil(t, rec.FileType)
	assert.Equal(t, "epub", *rec.FileType)

	explicit, err := f.store.GetBookRecord(ctx, f.books["lib2-rated5"])
	require.NoError(t, err)
	assert.Equal(t, "cbz", *explicit.FileType)

	got := f.list(t, `{"join":"and","rules":[{"field":"fileType","operator":"equals","value":"epub"}]}`, f.me)
	assert.Equal(t, f.ids("lib3-rated3"), got)
}

func TestListBooks_BlankTextTrimsSpacesOnly(t *testing.T) {
	f := seedLibrary(t)

	// lib3-rated4 has a subtitle of spaces; lib3-rated3 has a tab.
	empty := f.list(t, `{"join":"and","rules":[{"field":"subtitle","operator":"is_empty"}]}`, f.me)
	assert.Contains(t, empty, f.books["lib3-rated4"])
	assert.NotContains(t, empty, f.books["lib3-rated3"])

	rec, err := f.store.GetBookRecord(context.Background(), f.books["lib3-rated3"])
	require.NoError(t, err)
	p, err := quietEngine().CompileFilter([]byte(`{"join":"and","rules":[{"field":"subtitle","operator":"is_empty"}]}`), f.me)
	require.NoError(t, err)
	assert.False(t, rules.Evaluate(p, rec))
}

func TestSetProgress_Replaces(t *testing.T) {
	f := seedLibrary(t)
	ctx := context.Background()
	id := f.books["lib3-bare"]

	require.NoError(t, f.store.SetProgress(ctx, types.Progress{UserID: f.me, BookID: id, ReadStatus: strp(types.StatusReading)}))
	require.NoError(t, f.store.SetProgress(ctx, types.Progress{UserID: f.me, BookID: id, ReadStatus: strp(types.StatusRead), PersonalRating: fltp(5)}))

	rec, err := f.store.GetBookRecord(ctx, id)
	require.NoError(t, err)
	require.Len(t, rec.Progress, 1)
	assert.Equal(t, types.StatusRead, *rec.Progress[0].ReadStatus)
	assert.Equal(t, 5.0, *rec.Progress[0].PersonalRating)
}
