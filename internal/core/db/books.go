package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/shelfkeeper/internal/rules"
	"github.com/solatis/shelfkeeper/internal/types"
)

// bookColumns lists the books columns scanned into types.Book.
var bookColumns = []string{
	"book_id", "library_id", "title", "subtitle", "publisher", "language",
	"series_name", "series_number", "series_total", "page_count",
	"published_date", "file_name", "file_type", "file_size_kb",
	"metadata_match_score", "amazon_rating", "amazon_review_count",
	"goodreads_rating", "goodreads_review_count", "hardcover_rating",
	"hardcover_review_count",
}

// relationQueries names the statements that maintain one relation.
type relationQueries struct {
	insert string
	getID  string
	link   string
	list   string
}

var relationStatements = map[string]relationQueries{
	rules.RelationAuthors:    {"insert-author", "get-author-id", "link-book-author", "list-book-authors"},
	rules.RelationCategories: {"insert-category", "get-category-id", "link-book-category", "list-book-categories"},
	rules.RelationMoods:      {"insert-mood", "get-mood-id", "link-book-mood", "list-book-moods"},
	rules.RelationTags:       {"insert-tag", "get-tag-id", "link-book-tag", "list-book-tags"},
}

// BookQuery selects the books matching a compiled shelf predicate.
type BookQuery struct {
	// Predicate must already carry the user scope (rules.Scope).
	Predicate rules.Predicate

	// AllLibraries disables library scoping. Otherwise only books in
	// LibraryIDs are returned, and an empty LibraryIDs returns nothing.
	AllLibraries bool
	LibraryIDs   []int64

	Page types.Page
}

// BookListing is one page of a shelf listing.
type BookListing struct {
	Books []types.Book
	Total int
}

// BuildBookQuery renders the listing and count statements for bq with the
// driver's placeholder style. Both statements take the same arguments up to
// the LIMIT/OFFSET pair, which only the listing statement appends.
func (s *Store) BuildBookQuery(bq BookQuery) (listSQL, countSQL string, args []any, err error) {
	where, args, err := RenderPredicate(bq.Predicate)
	if err != nil {
		return "", "", nil, err
	}

	var filter strings.Builder
	filter.WriteString("bk.deleted_at IS NULL AND bk.book_id IN (")
	filter.WriteString("SELECT b.book_id FROM books b ")
	filter.WriteString("LEFT JOIN user_book_progress p ON p.book_id = b.book_id ")
	filter.WriteString("WHERE ")
	filter.WriteString(where)
	filter.WriteString(")")
	if !bq.AllLibraries {
		marks := make([]string, len(bq.LibraryIDs))
		for i, id := range bq.LibraryIDs {
			marks[i] = "?"
			args = append(args, id)
		}
		filter.WriteString(" AND bk.library_id IN (")
		filter.WriteString(strings.Join(marks, ", "))
		filter.WriteString(")")
	}

	cols := make([]string, len(bookColumns))
	for i, c := range bookColumns {
		cols[i] = "bk." + c
	}

	bind := sqlx.BindType(s.db.DriverName())
	listSQL = sqlx.Rebind(bind, fmt.Sprintf("SELECT %s FROM books bk WHERE %s ORDER BY bk.book_id LIMIT ? OFFSET ?",
		strings.Join(cols, ", "), filter.String()))
	countSQL = sqlx.Rebind(bind, "SELECT COUNT(*) FROM books bk WHERE "+filter.String())
	return listSQL, countSQL, args, nil
}

// ListBooks returns one page of the books matching bq, ordered by id.
func (s *Store) ListBooks(ctx context.Context, bq BookQuery) (*BookListing, error) {
	if !bq.AllLibraries && len(bq.LibraryIDs) == 0 {
		return &BookListing{Books: []types.Book{}}, nil
	}

	listSQL, countSQL, args, err := s.BuildBookQuery(bq)
	if err != nil {
		return nil, fmt.Errorf("render shelf filter: %w", err)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, countSQL, args...); err != nil {
		return nil, fmt.Errorf("count shelf books: %w", err)
	}

	books := []types.Book{}
	pageArgs := append(append([]any{}, args...), bq.Page.Size, bq.Page.Offset())
	if err := s.db.SelectContext(ctx, &books, listSQL, pageArgs...); err != nil {
		return nil, fmt.Errorf("list shelf books: %w", err)
	}

	return &BookListing{Books: books, Total: total}, nil
}

// CreateBook inserts a book with its related entities and progress rows.
// Entity names are created on first use.
func (s *Store) CreateBook(ctx context.Context, rec *types.BookRecord) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(q *Queries) error {
		b := rec.Book
		err := q.Get(ctx, "insert-book", &id,
			b.LibraryID, b.Title, b.Subtitle, b.Publisher, b.Language,
			b.SeriesName, b.SeriesNumber, b.SeriesTotal, b.PageCount,
			utc(b.PublishedDate), b.FileName, b.EffectiveFileType(), b.FileSizeKB,
			b.MetadataMatchScore, b.AmazonRating, b.AmazonReviewCount,
			b.GoodreadsRating, b.GoodreadsReviewCount, b.HardcoverRating,
			b.HardcoverReviewCount, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert book: %w", err)
		}

		relations := map[string][]string{
			rules.RelationAuthors:    rec.Authors,
			rules.RelationCategories: rec.Categories,
			rules.RelationMoods:      rec.Moods,
			rules.RelationTags:       rec.Tags,
		}
		for relation, names := range relations {
			for _, name := range names {
				if err := linkRelated(ctx, q, relation, id, name); err != nil {
					return err
				}
			}
		}

		for _, p := range rec.Progress {
			p.BookID = id
			if err := upsertProgress(ctx, q, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func linkRelated(ctx context.Context, q *Queries, relation string, bookID int64, name string) error {
	stmts := relationStatements[relation]
	if _, err := q.Exec(ctx, stmts.insert, name); err != nil {
		return fmt.Errorf("insert %s %q: %w", relation, name, err)
	}
	var entityID int64
	if err := q.Get(ctx, stmts.getID, &entityID, name); err != nil {
		return fmt.Errorf("lookup %s %q: %w", relation, name, err)
	}
	if _, err := q.Exec(ctx, stmts.link, bookID, entityID); err != nil {
		return fmt.Errorf("link %s %q: %w", relation, name, err)
	}
	return nil
}

// SetProgress creates or replaces a user's progress row for a book.
func (s *Store) SetProgress(ctx context.Context, p types.Progress) error {
	return upsertProgress(ctx, s.q, p)
}

func upsertProgress(ctx context.Context, q *Queries, p types.Progress) error {
	_, err := q.Exec(ctx, "upsert-progress",
		p.UserID, p.BookID, p.ReadStatus, utc(p.DateFinished), utc(p.LastReadTime), p.PersonalRating)
	if err != nil {
		return fmt.Errorf("upsert progress for user %d book %d: %w", p.UserID, p.BookID, err)
	}
	return nil
}

// GetBookRecord loads a live book with its related names and every user's
// progress row.
func (s *Store) GetBookRecord(ctx context.Context, bookID int64) (*types.BookRecord, error) {
	rec := &types.BookRecord{}
	err := s.q.Get(ctx, "get-book", &rec.Book, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", bookID, err)
	}

	targets := map[string]*[]string{
		rules.RelationAuthors:    &rec.Authors,
		rules.RelationCategories: &rec.Categories,
		rules.RelationMoods:      &rec.Moods,
		rules.RelationTags:       &rec.Tags,
	}
	for relation, dest := range targets {
		if err := s.q.Select(ctx, relationStatements[relation].list, dest, bookID); err != nil {
			return nil, fmt.Errorf("list %s for book %d: %w", relation, bookID, err)
		}
	}

	if err := s.q.Select(ctx, "list-book-progress", &rec.Progress, bookID); err != nil {
		return nil, fmt.Errorf("list progress for book %d: %w", bookID, err)
	}
	return rec, nil
}

// DeleteBook soft-deletes a book; it disappears from every shelf.
func (s *Store) DeleteBook(ctx context.Context, bookID int64) error {
	res, err := s.q.Exec(ctx, "soft-delete-book", time.Now().UTC(), bookID)
	if err != nil {
		return fmt.Errorf("delete book %d: %w", bookID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrBookNotFound
	}
	return nil
}

// utc normalizes an optional timestamp before it is written.
// SQLite stores timestamps as text, so one zone keeps them ordered.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
