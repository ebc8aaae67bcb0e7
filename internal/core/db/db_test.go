package db

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/solatis/shelfkeeper/internal/rules"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "shelfkeeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, MigrateUp(context.Background(), conn))
	return conn
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(openTestDB(t))
	require.NoError(t, err)
	return store
}

func quietEngine() *rules.Engine {
	return rules.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open("mysql://localhost/db")
	require.Error(t, err)
}

func TestMigrateUp_Idempotent(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, MigrateUp(ctx, conn))

	statuses, err := MigrateStatus(ctx, conn)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		require.True(t, s.Applied, "migration %s not applied", s.ID)
		require.NotNil(t, s.AppliedAt)
	}
}

func TestSplitStatements(t *testing.T) {
	sqlText := "-- header comment\nCREATE TABLE a (x INTEGER);\n\n-- between\nCREATE TABLE b (y TEXT);\n"
	got := splitStatements(sqlText)
	require.Equal(t, []string{"CREATE TABLE a (x INTEGER)", "CREATE TABLE b (y TEXT)"}, got)
}

func TestLoadQueries_AllNamed(t *testing.T) {
	q, err := LoadQueries(openTestDB(t))
	require.NoError(t, err)

	for _, name := range []string{
		"create-shelf", "get-shelf", "update-shelf", "delete-shelf",
		"list-shelves-by-owner", "list-public-shelves",
		"create-user", "get-user", "create-library", "grant-library",
		"insert-book", "get-book", "upsert-progress", "list-book-progress",
		"insert-api-key", "get-api-key-by-hash", "update-last-used",
	} {
		_, err := q.Raw(name)
		require.NoError(t, err, name)
	}
	for _, stmts := range relationStatements {
		for _, name := range []string{stmts.insert, stmts.getID, stmts.link, stmts.list} {
			_, err := q.Raw(name)
			require.NoError(t, err, name)
		}
	}

	_, err = q.Raw("no-such-query")
	require.Error(t, err)
}
