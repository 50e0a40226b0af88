package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"fotos/internal/store"
	"fotos/internal/store/storetest"
)

// Set FOTOS_TEST_DATABASE_URL to a disposable database to run these tests.
// Every subtest truncates the tables.
func testURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("FOTOS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FOTOS_TEST_DATABASE_URL not set")
	}
	return url
}

func TestRepository(t *testing.T) {
	url := testURL(t)

	storetest.Run(t, func(t *testing.T) store.Repository {
		ctx := context.Background()
		repo, err := Open(ctx, url, 4)
		require.NoError(t, err)

		_, err = repo.db.Exec(ctx, `TRUNCATE filetags, files, tags`)
		require.NoError(t, err)
		return repo
	})
}

func TestOpenBadURL(t *testing.T) {
	_, err := Open(context.Background(), "not a url ::", 1)
	require.Error(t, err)
}
