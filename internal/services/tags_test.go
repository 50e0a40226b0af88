package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fotos/internal/apierr"
	"fotos/internal/models"
	"fotos/internal/store"
	"fotos/internal/store/sqlite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TagEvent
}

func (p *recordingPublisher) Publish(event models.TagEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestRepository(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "fotos.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

type tagFixture struct {
	root   string
	svc    *TagService
	events *recordingPublisher
}

func newTagFixture(t *testing.T) tagFixture {
	t.Helper()
	root := contentTree(t)
	writeImage(t, filepath.Join(root, "folder", "beach.png"), 40, 20)
	events := &recordingPublisher{}
	return tagFixture{
		root:   root,
		svc:    NewTagService(newTestRepository(t), newTestResolver(t, root), events),
		events: events,
	}
}

func mustCreateTag(t *testing.T, svc *TagService, name string) models.Tag {
	t.Helper()
	tag, err := svc.CreateTag(context.Background(), name)
	require.NoError(t, err)
	return tag
}

func TestListTags(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()

	tags, err := f.svc.ListTags(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)

	mountain := mustCreateTag(t, f.svc, "Mountain")
	sea := mustCreateTag(t, f.svc, "Sea")

	tags, err = f.svc.ListTags(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Tag{mountain, sea}, tags)

	tags, err = f.svc.ListTags(ctx, "OUNT")
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{mountain}, tags)

	apfel := mustCreateTag(t, f.svc, "Äpfel")
	tags, err = f.svc.ListTags(ctx, "äpf")
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{apfel}, tags)

	tags, err = f.svc.ListTags(ctx, "forest")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestCreateTag(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()

	tag := mustCreateTag(t, f.svc, "Mountain")
	assert.NotEmpty(t, tag.ID)
	assert.Equal(t, "Mountain", tag.Tagname)

	_, err := f.svc.CreateTag(ctx, "Mountain")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.Conflict))

	lower, err := f.svc.CreateTag(ctx, "mountain")
	require.NoError(t, err)
	assert.NotEqual(t, tag.ID, lower.ID)

	assert.Equal(t, []string{models.EventTagCreated, models.EventTagCreated}, f.events.types())
}

func TestTagPath(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()
	tag := mustCreateTag(t, f.svc, "Sea")

	require.NoError(t, f.svc.TagPath(ctx, tag.ID, "penguins.jpg"))
	require.NoError(t, f.svc.TagPath(ctx, tag.ID, "/penguins.jpg"))

	files, err := f.svc.GetByTag(ctx, tag.ID, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "penguins.jpg", files[0].RelativePath)

	want, err := f.svc.resolver.Checksum(Resource{Path: filepath.Join(f.root, "penguins.jpg")})
	require.NoError(t, err)
	assert.Equal(t, want, files[0].Csum)
}

func TestTagPathSharesFileRecordAcrossTags(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()
	sea := mustCreateTag(t, f.svc, "Sea")
	birds := mustCreateTag(t, f.svc, "Birds")

	require.NoError(t, f.svc.TagPath(ctx, sea.ID, "penguins.jpg"))
	require.NoError(t, f.svc.TagPath(ctx, birds.ID, "penguins.jpg"))

	bySea, err := f.svc.GetByTag(ctx, sea.ID, "")
	require.NoError(t, err)
	byBirds, err := f.svc.GetByTag(ctx, birds.ID, "")
	require.NoError(t, err)

	require.Len(t, bySea, 1)
	require.Len(t, byBirds, 1)
	assert.Equal(t, bySea[0].ID, byBirds[0].ID)
}

func TestTagPathNotFound(t *testing.T) {
	f := newTagFixture(t)
	tag := mustCreateTag(t, f.svc, "Sea")

	tests := []struct {
		name    string
		tagID   string
		subpath string
	}{
		{name: "missing file", tagID: tag.ID, subpath: "not_exists.jpg"},
		{name: "unknown tag", tagID: "00000000-0000-0000-0000-000000000000", subpath: "penguins.jpg"},
		{name: "directory", tagID: tag.ID, subpath: "folder"},
		{name: "outside root", tagID: tag.ID, subpath: "../outside.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.TagPath(context.Background(), tt.tagID, tt.subpath)
			require.Error(t, err)
			assert.True(t, apierr.Is(err, apierr.NotFound), "got %v", err)
		})
	}
}

func TestTagPathConcurrentFirstUse(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()
	tag := mustCreateTag(t, f.svc, "Sea")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.TagPath(ctx, tag.ID, "apollon.jpg")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	files, err := f.svc.GetByTag(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

// racingRepository makes the first lookup miss and lets another writer
// insert the same path just before InsertFile runs.
type racingRepository struct {
	store.Repository
	winner models.FileRecord
	missed bool
}

func (r *racingRepository) FileByPath(ctx context.Context, relativePath string) (models.FileRecord, error) {
	if !r.missed {
		r.missed = true
		return models.FileRecord{}, store.ErrNotFound
	}
	return r.Repository.FileByPath(ctx, relativePath)
}

func (r *racingRepository) InsertFile(ctx context.Context, file models.FileRecord) error {
	winner := r.winner
	winner.RelativePath = file.RelativePath
	if err := r.Repository.InsertFile(ctx, winner); err != nil {
		return err
	}
	return r.Repository.InsertFile(ctx, file)
}

func TestTagPathRereadsRecordAfterLostInsert(t *testing.T) {
	root := contentTree(t)
	repo := &racingRepository{
		Repository: newTestRepository(t),
		winner:     models.FileRecord{ID: "winner", Csum: "ABC"},
	}
	svc := NewTagService(repo, newTestResolver(t, root), nil)
	ctx := context.Background()
	tag := mustCreateTag(t, svc, "Sea")

	require.NoError(t, svc.TagPath(ctx, tag.ID, "penguins.jpg"))

	files, err := svc.GetByTag(ctx, tag.ID, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "winner", files[0].ID)
	assert.Equal(t, "ABC", files[0].Csum)
}

func TestUntagPath(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()
	tag := mustCreateTag(t, f.svc, "Sea")

	require.NoError(t, f.svc.TagPath(ctx, tag.ID, "penguins.jpg"))
	require.NoError(t, f.svc.UntagPath(ctx, tag.ID, "penguins.jpg"))

	files, err := f.svc.GetByTag(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = f.svc.repo.FileByPath(ctx, "penguins.jpg")
	assert.NoError(t, err, "file record is kept after untagging")

	err = f.svc.UntagPath(ctx, tag.ID, "penguins.jpg")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))

	assert.Equal(t, []string{
		models.EventTagCreated,
		models.EventPathTagged,
		models.EventPathUntagged,
	}, f.events.types())
}

func TestUntagPathNotFound(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()
	tag := mustCreateTag(t, f.svc, "Sea")

	tests := []struct {
		name    string
		tagID   string
		subpath string
	}{
		{name: "never tagged", tagID: tag.ID, subpath: "apollon.jpg"},
		{name: "unknown tag", tagID: "unknown", subpath: "apollon.jpg"},
		{name: "missing file", tagID: tag.ID, subpath: "not_exists.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.UntagPath(ctx, tt.tagID, tt.subpath)
			require.Error(t, err)
			assert.True(t, apierr.Is(err, apierr.NotFound), "got %v", err)
		})
	}
}

func TestGetByTag(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()
	tag := mustCreateTag(t, f.svc, "Holiday")

	for _, p := range []string{"penguins.jpg", "folder/beach.png", "apollon.jpg"} {
		require.NoError(t, f.svc.TagPath(ctx, tag.ID, p))
	}

	paths := func(files []models.FileRecord) []string {
		out := make([]string, 0, len(files))
		for _, file := range files {
			out = append(out, file.RelativePath)
		}
		return out
	}

	files, err := f.svc.GetByTag(ctx, tag.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"apollon.jpg", "folder/beach.png", "penguins.jpg"}, paths(files))

	files, err = f.svc.GetByTag(ctx, tag.ID, "/folder")
	require.NoError(t, err)
	assert.Equal(t, []string{"folder/beach.png"}, paths(files))

	for _, prefix := range []string{"folder/", "/folder/", "./folder", "folder//", "folder/./", "x/../folder"} {
		files, err = f.svc.GetByTag(ctx, tag.ID, prefix)
		require.NoError(t, err)
		assert.Equal(t, []string{"folder/beach.png"}, paths(files), "prefix %q", prefix)
	}

	files, err = f.svc.GetByTag(ctx, tag.ID, "/")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = f.svc.GetByTag(ctx, tag.ID, "nothing/")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)

	_, err = f.svc.GetByTag(ctx, "unknown", "")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestVerifyPath(t *testing.T) {
	f := newTagFixture(t)
	ctx := context.Background()
	tag := mustCreateTag(t, f.svc, "Sea")

	require.NoError(t, f.svc.TagPath(ctx, tag.ID, "penguins.jpg"))

	v, err := f.svc.VerifyPath(ctx, "penguins.jpg")
	require.NoError(t, err)
	assert.True(t, v.Match)
	assert.Equal(t, v.Stored, v.Current)

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "penguins.jpg"), []byte("replaced"), 0o644))

	v, err = f.svc.VerifyPath(ctx, "penguins.jpg")
	require.NoError(t, err)
	assert.False(t, v.Match)
	assert.NotEqual(t, v.Stored, v.Current)

	_, err = f.svc.VerifyPath(ctx, "apollon.jpg")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}
