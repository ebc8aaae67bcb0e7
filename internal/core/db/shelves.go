package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/solatis/shelfkeeper/internal/types"
)

// CreateShelf inserts a new magic shelf.
func (s *Store) CreateShelf(ctx context.Context, shelf *types.MagicShelf) error {
	_, err := s.q.Exec(ctx, "create-shelf",
		shelf.ID, shelf.UserID, shelf.Name, shelf.Icon, shelf.FilterJSON,
		shelf.IsPublic, shelf.CreatedAt.UTC(), shelf.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return types.ErrShelfNameTaken
	}
	if err != nil {
		return fmt.Errorf("create shelf: %w", err)
	}
	return nil
}

// GetShelf loads a shelf by id.
func (s *Store) GetShelf(ctx context.Context, id types.ShelfID) (*types.MagicShelf, error) {
	var shelf types.MagicShelf
	err := s.q.Get(ctx, "get-shelf", &shelf, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrShelfNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shelf %s: %w", id, err)
	}
	return &shelf, nil
}

// UpdateShelf rewrites the mutable fields of a shelf.
func (s *Store) UpdateShelf(ctx context.Context, shelf *types.MagicShelf) error {
	res, err := s.q.Exec(ctx, "update-shelf",
		shelf.Name, shelf.Icon, shelf.FilterJSON, shelf.IsPublic, shelf.UpdatedAt.UTC(), shelf.ID)
	if isUniqueViolation(err) {
		return types.ErrShelfNameTaken
	}
	if err != nil {
		return fmt.Errorf("update shelf %s: %w", shelf.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrShelfNotFound
	}
	return nil
}

// DeleteShelf removes a shelf.
func (s *Store) DeleteShelf(ctx context.Context, id types.ShelfID) error {
	res, err := s.q.Exec(ctx, "delete-shelf", id)
	if err != nil {
		return fmt.Errorf("delete shelf %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrShelfNotFound
	}
	return nil
}

// ListShelvesByOwner returns a user's own shelves ordered by name.
func (s *Store) ListShelvesByOwner(ctx context.Context, userID int64) ([]types.MagicShelf, error) {
	shelves := []types.MagicShelf{}
	if err := s.q.Select(ctx, "list-shelves-by-owner", &shelves, userID); err != nil {
		return nil, fmt.Errorf("list shelves for user %d: %w", userID, err)
	}
	return shelves, nil
}

// ListPublicShelves returns public shelves owned by anyone but userID.
func (s *Store) ListPublicShelves(ctx context.Context, userID int64) ([]types.MagicShelf, error) {
	shelves := []types.MagicShelf{}
	if err := s.q.Select(ctx, "list-public-shelves", &shelves, true, userID); err != nil {
		return nil, fmt.Errorf("list public shelves: %w", err)
	}
	return shelves, nil
}
