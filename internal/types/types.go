// Package types provides domain models shared across shelfkeeper components.
//
// The rule AST in rules.go is the in-memory form of a magic shelf's persisted
// filter document. Book and progress records mirror the storage schema and are
// what compiled predicates are evaluated against, either by the SQL renderer in
// internal/core/db or by the in-memory evaluator in internal/rules.
package types

import (
	"path/filepath"
	"strings"
	"time"
)

// ShelfID represents a UUIDv7 magic shelf identifier.
// String alias enables type safety while maintaining JSON string serialization.
type ShelfID string

// ReadStatus values stored on a user's progress record.
// StatusUnset is never stored; it names the absence of a progress record.
const (
	StatusUnread        = "UNREAD"
	StatusReading       = "READING"
	StatusReReading     = "RE_READING"
	StatusRead          = "READ"
	StatusPartiallyRead = "PARTIALLY_READ"
	StatusPaused        = "PAUSED"
	StatusWontRead      = "WONT_READ"
	StatusAbandoned     = "ABANDONED"
	StatusUnset         = "UNSET"
)

// StoredStatuses lists the read statuses a progress record may hold.
var StoredStatuses = []string{
	StatusUnread, StatusReading, StatusReReading, StatusRead,
	StatusPartiallyRead, StatusPaused, StatusWontRead, StatusAbandoned,
}

// MagicShelf is a named, persisted rule tree owned by one user.
type MagicShelf struct {
	ID         ShelfID   `db:"shelf_id" json:"id"`
	UserID     int64     `db:"user_id" json:"userId"`
	Name       string    `db:"name" json:"name"`
	Icon       string    `db:"icon" json:"icon"`
	FilterJSON string    `db:"filter_json" json:"filterJson"`
	IsPublic   bool      `db:"is_public" json:"isPublic"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// User is the subset of account data needed for shelf access decisions.
type User struct {
	ID            int64  `db:"user_id" json:"id"`
	Username      string `db:"username" json:"username"`
	IsAdmin       bool   `db:"is_admin" json:"isAdmin"`
	CatalogAccess bool   `db:"catalog_access" json:"catalogAccess"`
}

// Book is a stored book row. Nullable columns are pointers.
type Book struct {
	ID                   int64      `db:"book_id" json:"id"`
	LibraryID            int64      `db:"library_id" json:"libraryId"`
	Title                *string    `db:"title" json:"title,omitempty"`
	Subtitle             *string    `db:"subtitle" json:"subtitle,omitempty"`
	Publisher            *string    `db:"publisher" json:"publisher,omitempty"`
	Language             *string    `db:"language" json:"language,omitempty"`
	SeriesName           *string    `db:"series_name" json:"seriesName,omitempty"`
	SeriesNumber         *float64   `db:"series_number" json:"seriesNumber,omitempty"`
	SeriesTotal          *float64   `db:"series_total" json:"seriesTotal,omitempty"`
	PageCount            *float64   `db:"page_count" json:"pageCount,omitempty"`
	PublishedDate        *time.Time `db:"published_date" json:"publishedDate,omitempty"`
	FileName             *string    `db:"file_name" json:"fileName,omitempty"`
	FileType             *string    `db:"file_type" json:"fileType,omitempty"`
	FileSizeKB           *float64   `db:"file_size_kb" json:"fileSizeKb,omitempty"`
	MetadataMatchScore   *float64   `db:"metadata_match_score" json:"metadataMatchScore,omitempty"`
	AmazonRating         *float64   `db:"amazon_rating" json:"amazonRating,omitempty"`
	AmazonReviewCount    *float64   `db:"amazon_review_count" json:"amazonReviewCount,omitempty"`
	GoodreadsRating      *float64   `db:"goodreads_rating" json:"goodreadsRating,omitempty"`
	GoodreadsReviewCount *float64   `db:"goodreads_review_count" json:"goodreadsReviewCount,omitempty"`
	HardcoverRating      *float64   `db:"hardcover_rating" json:"hardcoverRating,omitempty"`
	HardcoverReviewCount *float64   `db:"hardcover_review_count" json:"hardcoverReviewCount,omitempty"`
}

// EffectiveFileType returns the stored file type, falling back to the
// lower-cased extension of the file name without its dot.
func (b *Book) EffectiveFileType() *string {
	if b.FileType != nil {
		return b.FileType
	}
	if b.FileName == nil {
		return nil
	}
	ext := strings.TrimPrefix(filepath.Ext(*b.FileName), ".")
	if ext == "" {
		return nil
	}
	ext = strings.ToLower(ext)
	return &ext
}

// Progress is one user's reading state for one book.
type Progress struct {
	UserID         int64      `db:"user_id" json:"userId"`
	BookID         int64      `db:"book_id" json:"bookId"`
	ReadStatus     *string    `db:"read_status" json:"readStatus,omitempty"`
	DateFinished   *time.Time `db:"date_finished" json:"dateFinished,omitempty"`
	LastReadTime   *time.Time `db:"last_read_time" json:"lastReadTime,omitempty"`
	PersonalRating *float64   `db:"personal_rating" json:"personalRating,omitempty"`
}

// BookRecord is a book together with its related entity names and every
// user's progress row. It is the record graph a compiled predicate ranges over.
type BookRecord struct {
	Book
	Authors    []string
	Categories []string
	Moods      []string
	Tags       []string
	Progress   []Progress
}

// Page selects a window of a listing. Page numbers start at zero.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return p.Number * p.Size
}

// Resource limits enforced when a rule tree is saved.
const (
	// MaxRuleDepth bounds group nesting so compilation recursion stays shallow.
	MaxRuleDepth = 16

	// MaxRulesPerGroup bounds the fan-out of a single group.
	MaxRulesPerGroup = 256

	// MaxFilterSize caps the persisted filter document at 256KB.
	MaxFilterSize = 256 * 1024
)
