// Package storetest checks a store.Repository implementation against the
// behavior the services layer relies on.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fotos/internal/models"
	"fotos/internal/store"
)

// Run executes the suite. open must return an empty repository; Run closes
// it when each subtest ends.
func Run(t *testing.T, open func(t *testing.T) store.Repository) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo store.Repository)
	}{
		{"InsertTagRejectsExactDuplicate", testInsertTagDuplicate},
		{"ListTagsSearchIgnoresCase", testListTagsSearch},
		{"TagExists", testTagExists},
		{"FileByPathNotFound", testFileByPathNotFound},
		{"InsertFileRejectsDuplicatePath", testInsertFileDuplicate},
		{"AddFileTagIsIdempotent", testAddFileTagIdempotent},
		{"RemoveFileTagReportsDeletion", testRemoveFileTag},
		{"FilesByTagOrderAndPrefix", testFilesByTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := open(t)
			t.Cleanup(func() { repo.Close() })
			tt.fn(t, repo)
		})
	}
}

func newTag(name string) models.Tag {
	return models.Tag{ID: uuid.NewString(), Tagname: name}
}

func newFile(path string) models.FileRecord {
	return models.FileRecord{ID: uuid.NewString(), RelativePath: path, Csum: "0123456789ABCDEF"}
}

func testInsertTagDuplicate(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.InsertTag(ctx, newTag("Mountain")))
	err := repo.InsertTag(ctx, newTag("Mountain"))
	assert.ErrorIs(t, err, store.ErrDuplicate)

	assert.NoError(t, repo.InsertTag(ctx, newTag("mountain")))
}

func testListTagsSearch(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	mountain := newTag("Mountain")
	sea := newTag("Sea")
	underscore := newTag("50%_off")
	apfel := newTag("Äpfel")
	for _, tag := range []models.Tag{mountain, sea, underscore, apfel} {
		require.NoError(t, repo.InsertTag(ctx, tag))
	}

	all, err := repo.ListTags(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Tag{mountain, sea, underscore, apfel}, all)

	found, err := repo.ListTags(ctx, "OUNT")
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{mountain}, found)

	found, err = repo.ListTags(ctx, "%_")
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{underscore}, found)

	for _, search := range []string{"äpf", "ÄPF", "pfel"} {
		found, err = repo.ListTags(ctx, search)
		require.NoError(t, err)
		assert.Equal(t, []models.Tag{apfel}, found, "search %q", search)
	}

	found, err = repo.ListTags(ctx, "forest")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func testTagExists(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	tag := newTag("Sea")
	require.NoError(t, repo.InsertTag(ctx, tag))

	ok, err := repo.TagExists(ctx, tag.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TagExists(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}

func testFileByPathNotFound(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.FileByPath(ctx, "nothing.jpg")
	assert.ErrorIs(t, err, store.ErrNotFound)

	file := newFile("penguins.jpg")
	require.NoError(t, repo.InsertFile(ctx, file))

	got, err := repo.FileByPath(ctx, "penguins.jpg")
	require.NoError(t, err)
	assert.Equal(t, file, got)
}

func testInsertFileDuplicate(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.InsertFile(ctx, newFile("penguins.jpg")))
	err := repo.InsertFile(ctx, newFile("penguins.jpg"))
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func testAddFileTagIdempotent(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	tag := newTag("Sea")
	file := newFile("penguins.jpg")
	require.NoError(t, repo.InsertTag(ctx, tag))
	require.NoError(t, repo.InsertFile(ctx, file))

	require.NoError(t, repo.AddFileTag(ctx, tag.ID, file.ID))
	require.NoError(t, repo.AddFileTag(ctx, tag.ID, file.ID))

	files, err := repo.FilesByTag(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []models.FileRecord{file}, files)
}

func testRemoveFileTag(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	tag := newTag("Sea")
	file := newFile("penguins.jpg")
	require.NoError(t, repo.InsertTag(ctx, tag))
	require.NoError(t, repo.InsertFile(ctx, file))
	require.NoError(t, repo.AddFileTag(ctx, tag.ID, file.ID))

	removed, err := repo.RemoveFileTag(ctx, tag.ID, file.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveFileTag(ctx, tag.ID, file.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.FileByPath(ctx, file.RelativePath)
	assert.NoError(t, err)
}

func testFilesByTag(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	tag := newTag("Holiday")
	other := newTag("Work")
	require.NoError(t, repo.InsertTag(ctx, tag))
	require.NoError(t, repo.InsertTag(ctx, other))

	paths := []string{"a.jpg", "B.jpg", "100%_done/x.jpg", "100x_done/y.jpg", "folder/c.jpg"}
	for _, p := range paths {
		file := newFile(p)
		require.NoError(t, repo.InsertFile(ctx, file))
		require.NoError(t, repo.AddFileTag(ctx, tag.ID, file.ID))
	}
	untagged := newFile("folder/untagged.jpg")
	require.NoError(t, repo.InsertFile(ctx, untagged))
	require.NoError(t, repo.AddFileTag(ctx, other.ID, untagged.ID))

	relative := func(files []models.FileRecord) []string {
		out := make([]string, 0, len(files))
		for _, f := range files {
			out = append(out, f.RelativePath)
		}
		return out
	}

	files, err := repo.FilesByTag(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"100%_done/x.jpg", "100x_done/y.jpg", "B.jpg", "a.jpg", "folder/c.jpg"}, relative(files))

	files, err = repo.FilesByTag(ctx, tag.ID, "folder/")
	require.NoError(t, err)
	assert.Equal(t, []string{"folder/c.jpg"}, relative(files))

	files, err = repo.FilesByTag(ctx, tag.ID, "100%_")
	require.NoError(t, err)
	assert.Equal(t, []string{"100%_done/x.jpg"}, relative(files))

	files, err = repo.FilesByTag(ctx, other.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"folder/untagged.jpg"}, relative(files))
}
