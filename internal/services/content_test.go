package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fotos/internal/apierr"
	"fotos/internal/models"
)

func newTestContentService(t *testing.T, root string) *ContentService {
	t.Helper()
	tr := NewTranscoder(DefaultJPEGQuality)
	p := NewImageProcessor(tr, 2, 8)
	t.Cleanup(p.Shutdown)
	return NewContentService(newTestResolver(t, root), tr, p)
}

func TestServeDirectory(t *testing.T) {
	s := newTestContentService(t, contentTree(t))

	got, err := s.Serve(context.Background(), "", models.TranscodeParams{})
	require.NoError(t, err)

	listing, ok := got.(DirectoryListing)
	require.True(t, ok, "expected a directory listing, got %T", got)

	jpeg := "image/jpeg"
	assert.ElementsMatch(t, []models.FolderEntry{
		{Filename: "apollon.jpg", Mimetype: &jpeg},
		{Filename: "folder", IsDir: true},
		{Filename: "penguins.jpg", Mimetype: &jpeg},
	}, listing.Entries)
}

func TestServeRawFileMatchesChecksum(t *testing.T) {
	root := contentTree(t)
	s := newTestContentService(t, root)

	got, err := s.Serve(context.Background(), "penguins.jpg", models.TranscodeParams{})
	require.NoError(t, err)

	raw, ok := got.(RawFile)
	require.True(t, ok, "expected a raw file, got %T", got)
	assert.Equal(t, "penguins.jpg", raw.Filename)
	assert.Equal(t, "image/jpeg", raw.Mimetype)

	served, err := os.ReadFile(raw.Path)
	require.NoError(t, err)
	original, err := os.ReadFile(filepath.Join(root, "penguins.jpg"))
	require.NoError(t, err)
	assert.Equal(t, original, served)
	assert.Equal(t, int64(len(original)), raw.Size)

	res, err := s.resolver.Resolve("penguins.jpg")
	require.NoError(t, err)
	want, err := s.resolver.Checksum(res)
	require.NoError(t, err)
	sum := sha256.Sum256(served)
	assert.Equal(t, want, strings.ToUpper(hex.EncodeToString(sum[:])))
}

func TestServeResizesImage(t *testing.T) {
	s := newTestContentService(t, contentTree(t))

	got, err := s.Serve(context.Background(), "penguins.jpg", models.TranscodeParams{MaxWidth: u32(200)})
	require.NoError(t, err)

	out, ok := got.(TranscodedFile)
	require.True(t, ok, "expected a transcoded file, got %T", got)
	assert.Equal(t, "penguins.jpg", out.Filename)
	assert.Equal(t, "image/jpeg", out.Mimetype)
	assert.Equal(t, 200, out.Width)
	assert.Equal(t, 124, out.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 124, cfg.Height)
}

func TestServeResizeByHeight(t *testing.T) {
	s := newTestContentService(t, contentTree(t))

	got, err := s.Serve(context.Background(), "penguins.jpg", models.TranscodeParams{MaxHeight: u32(148)})
	require.NoError(t, err)

	out, ok := got.(TranscodedFile)
	require.True(t, ok, "expected a transcoded file, got %T", got)
	assert.Equal(t, 148, out.Height)
	assert.Equal(t, 474*148/296, out.Width)
}

func TestServeBoundAboveNativeSizeReturnsOriginal(t *testing.T) {
	s := newTestContentService(t, contentTree(t))

	got, err := s.Serve(context.Background(), "penguins.jpg", models.TranscodeParams{MaxWidth: u32(500)})
	require.NoError(t, err)

	raw, ok := got.(RawFile)
	require.True(t, ok, "expected a raw file, got %T", got)

	f, err := os.Open(raw.Path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 474, cfg.Width)
}

func TestServeNonImageIgnoresBounds(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o644))
	s := newTestContentService(t, root)

	got, err := s.Serve(context.Background(), "notes.txt", models.TranscodeParams{MaxWidth: u32(1)})
	require.NoError(t, err)

	raw, ok := got.(RawFile)
	require.True(t, ok, "expected a raw file, got %T", got)
	assert.Equal(t, "text/plain", raw.Mimetype)
}

func TestServeMissingPath(t *testing.T) {
	s := newTestContentService(t, contentTree(t))

	_, err := s.Serve(context.Background(), "not_exists", models.TranscodeParams{})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestServeWithoutProcessor(t *testing.T) {
	root := contentTree(t)
	s := NewContentService(newTestResolver(t, root), NewTranscoder(DefaultJPEGQuality), nil)

	got, err := s.Serve(context.Background(), "apollon.jpg", models.TranscodeParams{MaxHeight: u32(48), Thumbnail: true})
	require.NoError(t, err)

	out, ok := got.(TranscodedFile)
	require.True(t, ok, "expected a transcoded file, got %T", got)
	assert.Equal(t, 32, out.Width)
	assert.Equal(t, 48, out.Height)
}
