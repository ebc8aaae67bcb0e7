package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/shelfkeeper/internal/types"
)

// CreateUser inserts a user account.
func (s *Store) CreateUser(ctx context.Context, username string, isAdmin, catalogAccess bool) (*types.User, error) {
	u := &types.User{Username: username, IsAdmin: isAdmin, CatalogAccess: catalogAccess}
	if err := s.q.Get(ctx, "create-user", &u.ID, username, isAdmin, catalogAccess, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	return u, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	return s.getUser(ctx, "get-user", userID)
}

// GetUserByName loads a user by username.
func (s *Store) GetUserByName(ctx context.Context, username string) (*types.User, error) {
	return s.getUser(ctx, "get-user-by-name", username)
}

func (s *Store) getUser(ctx context.Context, query string, key any) (*types.User, error) {
	var u types.User
	err := s.q.Get(ctx, query, &u, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %v: %w", key, err)
	}
	return &u, nil
}

// CreateLibrary inserts a library and returns its id.
func (s *Store) CreateLibrary(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := s.q.Get(ctx, "create-library", &id, name); err != nil {
		return 0, fmt.Errorf("create library %q: %w", name, err)
	}
	return id, nil
}

// GrantLibrary gives a user access to a library. Granting twice is a no-op.
func (s *Store) GrantLibrary(ctx context.Context, userID, libraryID int64) error {
	if _, err := s.q.Exec(ctx, "grant-library", userID, libraryID); err != nil {
		return fmt.Errorf("grant library %d to user %d: %w", libraryID, userID, err)
	}
	return nil
}

// LibraryIDs returns the libraries a user was granted.
func (s *Store) LibraryIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	if err := s.q.Select(ctx, "list-user-library-ids", &ids, userID); err != nil {
		return nil, fmt.Errorf("list libraries for user %d: %w", userID, err)
	}
	return ids, nil
}
