// internal/rules/catalog.go
package rules

import "github.com/solatis/shelfkeeper/internal/types"

/*
 * Field catalog.
 *
 * Static table from RuleField to its value category and the accessor the
 * storage layer resolves. This is the only place a filterable attribute is
 * declared; it holds data, no logic. A field without an entry is handled by
 * the compiler's lenient fallback (match-all plus a warning).
 *
 * Accessor sources:
 *   - SourceBook: column on the book row
 *   - SourceProgress: column on the querying user's progress row
 *   - SourceRelation: named relationship to a set of name-bearing entities
 */

// Category is the value category of a field.
type Category int

const (
	CategoryString Category = iota + 1
	CategoryNumber
	CategoryDate
	CategoryEnum
	CategoryRelation
	CategoryIdentifier
)

func (c Category) String() string {
	switch c {
	case CategoryString:
		return "string"
	case CategoryNumber:
		return "number"
	case CategoryDate:
		return "date"
	case CategoryEnum:
		return "enum"
	case CategoryRelation:
		return "relation"
	case CategoryIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// Source is where an accessor's value lives.
type Source int

const (
	SourceBook Source = iota + 1
	SourceProgress
	SourceRelation
)

// Accessor names a value the storage layer must resolve.
type Accessor struct {
	Source Source
	Name   string
}

// FieldDescriptor is a catalog entry.
type FieldDescriptor struct {
	Category Category
	Accessor Accessor
}

// Relation names understood by SourceRelation accessors.
const (
	RelationAuthors    = "authors"
	RelationCategories = "categories"
	RelationMoods      = "moods"
	RelationTags       = "tags"
)

func book(cat Category, column string) FieldDescriptor {
	return FieldDescriptor{Category: cat, Accessor: Accessor{Source: SourceBook, Name: column}}
}

func progress(cat Category, column string) FieldDescriptor {
	return FieldDescriptor{Category: cat, Accessor: Accessor{Source: SourceProgress, Name: column}}
}

func relation(name string) FieldDescriptor {
	return FieldDescriptor{Category: CategoryRelation, Accessor: Accessor{Source: SourceRelation, Name: name}}
}

var catalog = map[types.RuleField]FieldDescriptor{
	types.FieldLibrary: book(CategoryIdentifier, "library_id"),

	types.FieldTitle:      book(CategoryString, "title"),
	types.FieldSubtitle:   book(CategoryString, "subtitle"),
	types.FieldPublisher:  book(CategoryString, "publisher"),
	types.FieldLanguage:   book(CategoryString, "language"),
	types.FieldSeriesName: book(CategoryString, "series_name"),
	types.FieldFileType:   book(CategoryString, "file_type"),

	types.FieldFileSize:             book(CategoryNumber, "file_size_kb"),
	types.FieldMetadataScore:        book(CategoryNumber, "metadata_match_score"),
	types.FieldPageCount:            book(CategoryNumber, "page_count"),
	types.FieldSeriesNumber:         book(CategoryNumber, "series_number"),
	types.FieldSeriesTotal:          book(CategoryNumber, "series_total"),
	types.FieldAmazonRating:         book(CategoryNumber, "amazon_rating"),
	types.FieldAmazonReviewCount:    book(CategoryNumber, "amazon_review_count"),
	types.FieldGoodreadsRating:      book(CategoryNumber, "goodreads_rating"),
	types.FieldGoodreadsReviewCount: book(CategoryNumber, "goodreads_review_count"),
	types.FieldHardcoverRating:      book(CategoryNumber, "hardcover_rating"),
	types.FieldHardcoverReviewCount: book(CategoryNumber, "hardcover_review_count"),
	types.FieldPersonalRating:       progress(CategoryNumber, "personal_rating"),

	types.FieldPublishedDate: book(CategoryDate, "published_date"),
	types.FieldDateFinished:  progress(CategoryDate, "date_finished"),
	types.FieldLastReadTime:  progress(CategoryDate, "last_read_time"),

	types.FieldReadStatus: progress(CategoryEnum, "read_status"),

	types.FieldAuthors:    relation(RelationAuthors),
	types.FieldCategories: relation(RelationCategories),
	types.FieldMoods:      relation(RelationMoods),
	types.FieldTags:       relation(RelationTags),
}

// Describe returns the catalog entry for a field.
func Describe(field types.RuleField) (FieldDescriptor, bool) {
	d, ok := catalog[field]
	return d, ok
}
