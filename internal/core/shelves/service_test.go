package shelves

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/shelfkeeper/internal/core/config"
	"github.com/solatis/shelfkeeper/internal/core/db"
	"github.com/solatis/shelfkeeper/internal/rules"
	"github.com/solatis/shelfkeeper/internal/types"
)

func strp(s string) *string { return &s }

type fixture struct {
	svc   *Service
	store *db.Store

	owner, reader, outsider, admin *types.User

	// books by title
	books map[string]int64
}

// newFixture seeds two libraries. owner and reader share library A, admin
// is granted nothing, outsider has no catalog access.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "shelves.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.MigrateUp(ctx, conn))
	store, err := db.NewStore(conn)
	require.NoError(t, err)

	f := &fixture{store: store, books: map[string]int64{}}
	f.owner, err = store.CreateUser(ctx, "owner", false, true)
	require.NoError(t, err)
	f.reader, err = store.CreateUser(ctx, "reader", false, true)
	require.NoError(t, err)
	f.outsider, err = store.CreateUser(ctx, "outsider", false, false)
	require.NoError(t, err)
	f.admin, err = store.CreateUser(ctx, "admin", true, true)
	require.NoError(t, err)

	libA, err := store.CreateLibrary(ctx, "A")
	require.NoError(t, err)
	libB, err := store.CreateLibrary(ctx, "B")
	require.NoError(t, err)
	for _, u := range []*types.User{f.owner, f.reader, f.outsider} {
		require.NoError(t, store.GrantLibrary(ctx, u.ID, libA))
	}

	add := func(title string, lib int64, tags []string, progress ...types.Progress) {
		id, err := store.CreateBook(ctx, &types.BookRecord{
			Book:     types.Book{LibraryID: lib, Title: strp(title)},
			Tags:     tags,
			Progress: progress,
		})
		require.NoError(t, err)
		f.books[title] = id
	}
	read := func(u *types.User) types.Progress {
		return types.Progress{UserID: u.ID, ReadStatus: strp(types.StatusRead)}
	}

	add("Dracula", libA, []string{"horror"}, read(f.owner))
	add("Carmilla", libA, []string{"horror"}, read(f.reader))
	add("Emma", libA, []string{"classic"})
	add("The Shining", libB, []string{"horror"})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(store, rules.NewEngine(logger),
		config.ShelvesConfig{DefaultPageSize: 2, MaxPageSize: 3}, logger)
	return f
}

func (f *fixture) titles(listing *db.BookListing) []string {
	out := []string{}
	for _, b := range listing.Books {
		out = append(out, *b.Title)
	}
	return out
}

const (
	horrorFilter = `{"join":"and","rules":[{"field":"tags","operator":"includes_any","value":["Horror"]}]}`
	readFilter   = `{"join":"and","rules":[{"field":"readStatus","operator":"equals","value":"READ"}]}`
)

func input(name, filter string, public bool) ShelfInput {
	return ShelfInput{Name: name, Icon: "book", Filter: json.RawMessage(filter), IsPublic: public}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deep := `{"rules":[]}`
	for i := 0; i < types.MaxRuleDepth; i++ {
		deep = `{"type":"group","join":"and","rules":[` + deep + `]}`
	}

	tests := []struct {
		name string
		in   ShelfInput
		want error
	}{
		{"blank name", input("   ", horrorFilter, false), types.ErrInvalidShelf},
		{"filter not an object", input("x", `[1,2]`, false), types.ErrInvalidFilter},
		{"filter missing", input("x", ``, false), types.ErrInvalidFilter},
		{"too deep", input("x", deep, false), types.ErrRuleTooDeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.owner.ID, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsClientError(err))
		})
	}

	shelf, err := f.svc.Create(ctx, f.owner.ID, input("  Horror  ", horrorFilter, false))
	require.NoError(t, err)
	assert.Equal(t, "Horror", shelf.Name)
	assert.Equal(t, f.owner.ID, shelf.UserID)

	_, err = f.svc.Create(ctx, f.owner.ID, input("Horror", readFilter, false))
	assert.ErrorIs(t, err, types.ErrShelfNameTaken)
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	private, err := f.svc.Create(ctx, f.owner.ID, input("Private", horrorFilter, false))
	require.NoError(t, err)
	public, err := f.svc.Create(ctx, f.owner.ID, input("Public", horrorFilter, true))
	require.NoError(t, err)

	t.Run("only owner edits", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.reader.ID, public.ID, input("Mine", horrorFilter, true))
		assert.ErrorIs(t, err, types.ErrShelfForbidden)
		assert.ErrorIs(t, f.svc.Delete(ctx, f.reader.ID, public.ID), types.ErrShelfForbidden)
	})

	t.Run("read access", func(t *testing.T) {
		_, err := f.svc.Get(ctx, f.owner.ID, private.ID)
		assert.NoError(t, err)
		_, err = f.svc.Get(ctx, f.reader.ID, private.ID)
		assert.ErrorIs(t, err, types.ErrShelfForbidden)
		_, err = f.svc.Get(ctx, f.reader.ID, public.ID)
		assert.NoError(t, err)
		_, err = f.svc.Get(ctx, f.outsider.ID, public.ID)
		assert.ErrorIs(t, err, types.ErrShelfForbidden)
	})

	t.Run("listing", func(t *testing.T) {
		list, err := f.svc.List(ctx, f.reader.ID)
		require.NoError(t, err)
		assert.Empty(t, list.Owned)
		require.Len(t, list.Public, 1)
		assert.Equal(t, public.ID, list.Public[0].ID)

		list, err = f.svc.List(ctx, f.outsider.ID)
		require.NoError(t, err)
		assert.Empty(t, list.Public)
	})

	t.Run("owner updates and deletes", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, f.owner.ID, private.ID, input("Renamed", readFilter, false))
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.JSONEq(t, readFilter, updated.FilterJSON)

		require.NoError(t, f.svc.Delete(ctx, f.owner.ID, private.ID))
		_, err = f.svc.Get(ctx, f.owner.ID, private.ID)
		assert.ErrorIs(t, err, types.ErrShelfNotFound)
	})
}

func TestBooks_ScopedToReader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shelf, err := f.svc.Create(ctx, f.owner.ID, input("Finished", readFilter, true))
	require.NoError(t, err)

	own, err := f.svc.Books(ctx, f.owner.ID, shelf.ID, types.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dracula"}, f.titles(own))

	theirs, err := f.svc.Books(ctx, f.reader.ID, shelf.ID, types.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carmilla"}, f.titles(theirs))
}

func TestBooks_LibraryScopingAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shelf, err := f.svc.Create(ctx, f.admin.ID, input("Horror", horrorFilter, false))
	require.NoError(t, err)

	// admin has no grants but sees every library; Dracula and Carmilla
	// carry another user's progress and are therefore hidden
	all, err := f.svc.Books(ctx, f.admin.ID, shelf.ID, types.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"The Shining"}, f.titles(all))

	preview, err := f.svc.Preview(ctx, f.owner.ID, json.RawMessage(`{"rules":[]}`), types.Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, preview.Total, "library B is outside the owner's grants")
	assert.Len(t, preview.Books, 2)

	page, err := f.svc.normalizePage(types.Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Size)
	page, err = f.svc.normalizePage(types.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Size)

	second, err := f.svc.Preview(ctx, f.owner.ID, json.RawMessage(`{"rules":[]}`), types.Page{Number: 1, Size: 1})
	require.NoError(t, err)
	assert.Len(t, second.Books, 1)

	_, err = f.svc.Preview(ctx, f.owner.ID, json.RawMessage(`{"rules":[]}`), types.Page{Number: -1})
	assert.ErrorIs(t, err, types.ErrInvalidPage)
}

func TestShelvesForBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	horror, err := f.svc.Create(ctx, f.owner.ID, input("Horror", horrorFilter, false))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.owner.ID, input("Classics", `{"rules":[{"field":"tags","operator":"equals","value":"classic"}]}`, false))
	require.NoError(t, err)

	shelves, err := f.svc.ShelvesForBook(ctx, f.owner.ID, f.books["Dracula"])
	require.NoError(t, err)
	require.Len(t, shelves, 1)
	assert.Equal(t, horror.ID, shelves[0].ID)

	_, err = f.svc.ShelvesForBook(ctx, f.owner.ID, f.books["The Shining"])
	assert.ErrorIs(t, err, types.ErrBookNotFound, "library B is not granted")
}

func TestExplain(t *testing.T) {
	f := newFixture(t)

	ex, err := f.svc.Explain(context.Background(), f.owner.ID, json.RawMessage(horrorFilter), types.Page{})
	require.NoError(t, err)
	assert.Contains(t, ex.ListSQL, "LEFT JOIN user_book_progress p")
	assert.Contains(t, ex.ListSQL, "EXISTS")
	assert.Contains(t, ex.CountSQL, "COUNT(*)")
	assert.Contains(t, ex.Args, "horror")
}
