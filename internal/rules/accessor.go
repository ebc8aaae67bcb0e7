// internal/rules/accessor.go
package rules

import (
	"time"

	"github.com/solatis/shelfkeeper/internal/types"
)

/*
 * Accessor resolution against in-memory records.
 *
 * Resolves catalog accessors on a BookRecord paired with at most one progress
 * row. The column names here are the same ones the SQL renderer qualifies,
 * so both evaluation paths read the same attribute for a field.
 *
 * Resolution yields one of string, float64, int64 or time.Time, with found
 * reporting whether the value is present. A nil pointer column and a
 * progress accessor on a record paired with no progress row are both absent.
 */

// resolve returns the scalar value behind acc.
func resolve(acc Accessor, rec *types.BookRecord, prog *types.Progress) (any, bool) {
	switch acc.Source {
	case SourceBook:
		return resolveBook(acc.Name, &rec.Book)
	case SourceProgress:
		if prog == nil {
			return nil, false
		}
		return resolveProgress(acc.Name, prog)
	default:
		return nil, false
	}
}

func resolveBook(column string, b *types.Book) (any, bool) {
	switch column {
	case "library_id":
		return b.LibraryID, true
	case "title":
		return text(b.Title)
	case "subtitle":
		return text(b.Subtitle)
	case "publisher":
		return text(b.Publisher)
	case "language":
		return text(b.Language)
	case "series_name":
		return text(b.SeriesName)
	case "file_type":
		return text(b.EffectiveFileType())
	case "file_size_kb":
		return number(b.FileSizeKB)
	case "metadata_match_score":
		return number(b.MetadataMatchScore)
	case "page_count":
		return number(b.PageCount)
	case "series_number":
		return number(b.SeriesNumber)
	case "series_total":
		return number(b.SeriesTotal)
	case "amazon_rating":
		return number(b.AmazonRating)
	case "amazon_review_count":
		return number(b.AmazonReviewCount)
	case "goodreads_rating":
		return number(b.GoodreadsRating)
	case "goodreads_review_count":
		return number(b.GoodreadsReviewCount)
	case "hardcover_rating":
		return number(b.HardcoverRating)
	case "hardcover_review_count":
		return number(b.HardcoverReviewCount)
	case "published_date":
		return instant(b.PublishedDate)
	default:
		return nil, false
	}
}

func resolveProgress(column string, p *types.Progress) (any, bool) {
	switch column {
	case "read_status":
		return text(p.ReadStatus)
	case "personal_rating":
		return number(p.PersonalRating)
	case "date_finished":
		return instant(p.DateFinished)
	case "last_read_time":
		return instant(p.LastReadTime)
	default:
		return nil, false
	}
}

// relatedNames returns the entity names of a relation.
func relatedNames(relation string, rec *types.BookRecord) []string {
	switch relation {
	case RelationAuthors:
		return rec.Authors
	case RelationCategories:
		return rec.Categories
	case RelationMoods:
		return rec.Moods
	case RelationTags:
		return rec.Tags
	default:
		return nil
	}
}

func text(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

func number(f *float64) (any, bool) {
	if f == nil {
		return nil, false
	}
	return *f, true
}

func instant(t *time.Time) (any, bool) {
	if t == nil {
		return nil, false
	}
	return t.UTC(), true
}
