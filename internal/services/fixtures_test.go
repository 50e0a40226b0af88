package services

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// writeImage saves a solid w x h image at path, in the format implied by
// its extension.
func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := imaging.New(w, h, color.NRGBA{R: 30, G: 90, B: 160, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

// contentTree builds {apollon.jpg, folder/, penguins.jpg} with penguins.jpg
// at 474x296.
func contentTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "apollon.jpg"), 320, 480)
	writeImage(t, filepath.Join(root, "penguins.jpg"), 474, 296)
	require.NoError(t, os.Mkdir(filepath.Join(root, "folder"), 0o755))
	return root
}

func newTestResolver(t *testing.T, root string) *Resolver {
	t.Helper()
	r, err := NewResolver(root)
	require.NoError(t, err)
	return r
}

func u32(v uint32) *uint32 {
	return &v
}
