package shelves

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/solatis/shelfkeeper/internal/types"
)

// maxPersonalRating bounds the rating a reader may give a book.
const maxPersonalRating = 10

// ProgressInput is a reader's reading state for one book.
type ProgressInput struct {
	ReadStatus     *string    `json:"readStatus"`
	DateFinished   *time.Time `json:"dateFinished"`
	LastReadTime   *time.Time `json:"lastReadTime"`
	PersonalRating *float64   `json:"personalRating"`
}

// SetProgress replaces userID's progress row for a book they can see.
// Shelves on read status or rating pick the change up on their next listing.
func (s *Service) SetProgress(ctx context.Context, userID, bookID int64, in ProgressInput) (*types.Progress, error) {
	if err := validateProgress(in); err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleBook(ctx, user, bookID); err != nil {
		return nil, err
	}

	p := types.Progress{
		UserID:         userID,
		BookID:         bookID,
		ReadStatus:     in.ReadStatus,
		DateFinished:   in.DateFinished,
		LastReadTime:   in.LastReadTime,
		PersonalRating: in.PersonalRating,
	}
	if err := s.store.SetProgress(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Debug("progress updated", "user_id", userID, "book_id", bookID)
	return &p, nil
}

// DeleteBook soft-deletes a book. Only administrators may delete.
func (s *Service) DeleteBook(ctx context.Context, userID, bookID int64) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsAdmin {
		return types.ErrAdminRequired
	}
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}
	s.logger.Info("book deleted", "book_id", bookID, "user_id", userID)
	return nil
}

// visibleBook loads a book the user may see. Books outside the user's
// libraries are reported as missing.
func (s *Service) visibleBook(ctx context.Context, user *types.User, bookID int64) (*types.BookRecord, error) {
	rec, err := s.store.GetBookRecord(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin {
		return rec, nil
	}
	libraries, err := s.store.LibraryIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(libraries, rec.LibraryID) {
		return nil, types.ErrBookNotFound
	}
	return rec, nil
}

func validateProgress(in ProgressInput) error {
	if in.ReadStatus != nil && !slices.Contains(types.StoredStatuses, *in.ReadStatus) {
		return fmt.Errorf("%w: unknown read status %q", types.ErrInvalidProgress, *in.ReadStatus)
	}
	if r := in.PersonalRating; r != nil && (*r < 0 || *r > maxPersonalRating) {
		return fmt.Errorf("%w: rating %v outside 0..%d", types.ErrInvalidProgress, *r, maxPersonalRating)
	}
	return nil
}
