// Package shelves implements magic shelf management: CRUD with ownership
// checks, shelf book listings and book-to-shelf membership.
package shelves

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solatis/shelfkeeper/internal/core/config"
	"github.com/solatis/shelfkeeper/internal/core/db"
	"github.com/solatis/shelfkeeper/internal/rules"
	"github.com/solatis/shelfkeeper/internal/types"
)

/*
 * Shelf service.
 *
 * Access rules:
 *   - only the owner may update or delete a shelf
 *   - the owner may always read a shelf; others may read it when it is
 *     public and they have catalog access
 *
 * Listings compile the persisted filter for the READER, not the owner: a
 * public shelf on read status shows each reader their own progress. Books
 * are limited to the reader's libraries unless the reader is an admin.
 *
 * Filters are validated on save (size, shape, depth, fan-out). A stored
 * filter that no longer parses is logged and treated as matching nothing
 * when listing membership, and reported as ErrInvalidFilter when listing
 * the shelf itself.
 */

// maxNameLength bounds shelf names.
const maxNameLength = 255

// Store is the persistence the service needs. Implemented by *db.Store.
type Store interface {
	CreateShelf(ctx context.Context, shelf *types.MagicShelf) error
	GetShelf(ctx context.Context, id types.ShelfID) (*types.MagicShelf, error)
	UpdateShelf(ctx context.Context, shelf *types.MagicShelf) error
	DeleteShelf(ctx context.Context, id types.ShelfID) error
	ListShelvesByOwner(ctx context.Context, userID int64) ([]types.MagicShelf, error)
	ListPublicShelves(ctx context.Context, userID int64) ([]types.MagicShelf, error)
	GetUser(ctx context.Context, userID int64) (*types.User, error)
	LibraryIDs(ctx context.Context, userID int64) ([]int64, error)
	ListBooks(ctx context.Context, bq db.BookQuery) (*db.BookListing, error)
	BuildBookQuery(bq db.BookQuery) (listSQL, countSQL string, args []any, err error)
	GetBookRecord(ctx context.Context, bookID int64) (*types.BookRecord, error)
	SetProgress(ctx context.Context, p types.Progress) error
	DeleteBook(ctx context.Context, bookID int64) error
}

// ShelfInput is the caller-supplied part of a shelf.
type ShelfInput struct {
	Name     string          `json:"name"`
	Icon     string          `json:"icon"`
	Filter   json.RawMessage `json:"filter"`
	IsPublic bool            `json:"isPublic"`
}

// ShelfList separates a user's own shelves from public shelves of others.
type ShelfList struct {
	Owned  []types.MagicShelf `json:"owned"`
	Public []types.MagicShelf `json:"public"`
}

// Explanation is the SQL a filter renders to for one reader.
type Explanation struct {
	Predicate rules.Predicate
	ListSQL   string
	CountSQL  string
	Args      []any
}

// Service manages magic shelves.
type Service struct {
	store  Store
	engine *rules.Engine
	cfg    config.ShelvesConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a shelf service.
func NewService(store Store, engine *rules.Engine, cfg config.ShelvesConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		engine: engine,
		cfg:    cfg,
		logger: logger.With("component", "shelves"),
		now:    time.Now,
	}
}

// Create validates and stores a new shelf owned by userID.
func (s *Service) Create(ctx context.Context, userID int64, in ShelfInput) (*types.MagicShelf, error) {
	filter, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	shelf := &types.MagicShelf{
		ID:         types.NewShelfID(),
		UserID:     userID,
		Name:       strings.TrimSpace(in.Name),
		Icon:       in.Icon,
		FilterJSON: filter,
		IsPublic:   in.IsPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateShelf(ctx, shelf); err != nil {
		return nil, err
	}
	s.logger.Info("shelf created", "shelf_id", shelf.ID, "user_id", userID)
	return shelf, nil
}

// Update replaces the mutable fields of a shelf owned by userID.
func (s *Service) Update(ctx context.Context, userID int64, id types.ShelfID, in ShelfInput) (*types.MagicShelf, error) {
	shelf, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	filter, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	shelf.Name = strings.TrimSpace(in.Name)
	shelf.Icon = in.Icon
	shelf.FilterJSON = filter
	shelf.IsPublic = in.IsPublic
	shelf.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateShelf(ctx, shelf); err != nil {
		return nil, err
	}
	return shelf, nil
}

// Delete removes a shelf owned by userID.
func (s *Service) Delete(ctx context.Context, userID int64, id types.ShelfID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteShelf(ctx, id); err != nil {
		return err
	}
	s.logger.Info("shelf deleted", "shelf_id", id, "user_id", userID)
	return nil
}

// Get returns a shelf userID may read.
func (s *Service) Get(ctx context.Context, userID int64, id types.ShelfID) (*types.MagicShelf, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.readable(ctx, user, id)
}

// List returns the user's shelves and, with catalog access, other users'
// public shelves.
func (s *Service) List(ctx context.Context, userID int64) (*ShelfList, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned, err := s.store.ListShelvesByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := &ShelfList{Owned: owned, Public: []types.MagicShelf{}}
	if user.CatalogAccess {
		if list.Public, err = s.store.ListPublicShelves(ctx, userID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Books lists one page of the books on a shelf as seen by userID.
func (s *Service) Books(ctx context.Context, userID int64, id types.ShelfID, page types.Page) (*db.BookListing, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	shelf, err := s.readable(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, user, []byte(shelf.FilterJSON), page)
}

// Preview lists the books an unsaved filter would match for userID.
func (s *Service) Preview(ctx context.Context, userID int64, filter json.RawMessage, page types.Page) (*db.BookListing, error) {
	if _, err := validateFilter(filter); err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, user, filter, page)
}

// Explain renders the listing SQL a filter produces for userID.
func (s *Service) Explain(ctx context.Context, userID int64, filter json.RawMessage, page types.Page) (*Explanation, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	bq, err := s.bookQuery(ctx, user, filter, page)
	if err != nil {
		return nil, err
	}
	listSQL, countSQL, args, err := s.store.BuildBookQuery(bq)
	if err != nil {
		return nil, err
	}
	return &Explanation{Predicate: bq.Predicate, ListSQL: listSQL, CountSQL: countSQL, Args: args}, nil
}

// ShelvesForBook returns the shelves readable by userID that contain bookID.
func (s *Service) ShelvesForBook(ctx context.Context, userID, bookID int64) ([]types.MagicShelf, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.visibleBook(ctx, user, bookID)
	if err != nil {
		return nil, err
	}

	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	matched := []types.MagicShelf{}
	for _, shelf := range append(list.Owned, list.Public...) {
		p, err := s.engine.CompileFilter([]byte(shelf.FilterJSON), userID)
		if err != nil {
			s.logger.Warn("stored filter unreadable, shelf skipped", "shelf_id", shelf.ID, "error", err)
			continue
		}
		if rules.Evaluate(p, rec) {
			matched = append(matched, shelf)
		}
	}
	return matched, nil
}

// owned loads a shelf and checks that userID owns it.
func (s *Service) owned(ctx context.Context, userID int64, id types.ShelfID) (*types.MagicShelf, error) {
	shelf, err := s.store.GetShelf(ctx, id)
	if err != nil {
		return nil, err
	}
	if shelf.UserID != userID {
		return nil, types.ErrShelfForbidden
	}
	return shelf, nil
}

// readable loads a shelf and checks that user may read it.
func (s *Service) readable(ctx context.Context, user *types.User, id types.ShelfID) (*types.MagicShelf, error) {
	shelf, err := s.store.GetShelf(ctx, id)
	if err != nil {
		return nil, err
	}
	if shelf.UserID == user.ID || (shelf.IsPublic && user.CatalogAccess) {
		return shelf, nil
	}
	return nil, types.ErrShelfForbidden
}

func (s *Service) list(ctx context.Context, user *types.User, filter []byte, page types.Page) (*db.BookListing, error) {
	bq, err := s.bookQuery(ctx, user, filter, page)
	if err != nil {
		return nil, err
	}
	return s.store.ListBooks(ctx, bq)
}

// bookQuery compiles filter for user and applies library scoping and paging.
func (s *Service) bookQuery(ctx context.Context, user *types.User, filter []byte, page types.Page) (db.BookQuery, error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return db.BookQuery{}, err
	}
	p, err := s.engine.CompileFilter(filter, user.ID)
	if err != nil {
		return db.BookQuery{}, err
	}

	bq := db.BookQuery{Predicate: p, AllLibraries: user.IsAdmin, Page: page}
	if !user.IsAdmin {
		if bq.LibraryIDs, err = s.store.LibraryIDs(ctx, user.ID); err != nil {
			return db.BookQuery{}, err
		}
	}
	return bq, nil
}

// normalizePage fills in the default size and clamps to the maximum.
func (s *Service) normalizePage(page types.Page) (types.Page, error) {
	if page.Number < 0 || page.Size < 0 {
		return page, fmt.Errorf("%w: page %d size %d", types.ErrInvalidPage, page.Number, page.Size)
	}
	if page.Size == 0 {
		page.Size = s.cfg.DefaultPageSize
	}
	if page.Size > s.cfg.MaxPageSize {
		page.Size = s.cfg.MaxPageSize
	}
	return page, nil
}

// validateInput checks the shelf fields and returns the filter to persist.
func validateInput(in ShelfInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", types.ErrInvalidShelf)
	}
	if len(name) > maxNameLength || len(in.Icon) > maxNameLength {
		return "", fmt.Errorf("%w: name and icon are limited to %d bytes", types.ErrInvalidShelf, maxNameLength)
	}
	if _, err := validateFilter(in.Filter); err != nil {
		return "", err
	}
	return string(in.Filter), nil
}

// validateFilter applies the save-time limits to a filter document.
func validateFilter(filter json.RawMessage) (*types.GroupRule, error) {
	if len(filter) > types.MaxFilterSize {
		return nil, fmt.Errorf("%w: filter exceeds %d bytes", types.ErrInvalidFilter, types.MaxFilterSize)
	}
	g, err := types.ParseGroupRule(filter)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// IsClientError reports whether err was caused by the request rather than
// the service.
func IsClientError(err error) bool {
	for _, target := range []error{
		types.ErrInvalidShelf, types.ErrInvalidPage, types.ErrInvalidFilter,
		types.ErrRuleTooDeep, types.ErrTooManyRules, types.ErrInvalidProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
