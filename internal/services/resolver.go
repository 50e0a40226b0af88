package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"fotos/internal/apierr"
	"fotos/internal/models"
)

const defaultMimetype = "application/octet-stream"

type ResourceKind int

const (
	KindFile ResourceKind = iota
	KindDirectory
)

// Resource is an existing filesystem entity below the root.
type Resource struct {
	// Path is the canonical absolute path with symlinks evaluated.
	Path string
	// RelativePath is the cleaned, slash separated path relative to the
	// root as requested. It is "" for the root itself.
	RelativePath string
}

// Filename is the last element of the requested path, not of the symlink
// target.
func (r Resource) Filename() string {
	if r.RelativePath == "" {
		return filepath.Base(r.Path)
	}
	return path.Base(r.RelativePath)
}

// Resolver maps request subpaths onto the content tree.
type Resolver struct {
	root string
}

func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}
	return &Resolver{root: canonical}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve joins subpath onto the root. Paths that do not exist, and paths
// that leave the root lexically or through a symlink, are NotFound.
func (r *Resolver) Resolve(subpath string) (Resource, error) {
	joined := filepath.Join(r.root, filepath.FromSlash(subpath))

	rel, ok := r.within(joined)
	if !ok {
		return Resource{}, apierr.NotFoundf("path %s doesn't exist", subpath)
	}

	canonical, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resource{}, apierr.NotFoundf("path %s doesn't exist", subpath)
		}
		return Resource{}, fmt.Errorf("resolve %s: %w", subpath, err)
	}
	if _, ok := r.within(canonical); !ok {
		return Resource{}, apierr.NotFoundf("path %s doesn't exist", subpath)
	}

	return Resource{Path: canonical, RelativePath: rel}, nil
}

func (r *Resolver) within(target string) (string, bool) {
	rel, err := filepath.Rel(r.root, target)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

func (r *Resolver) Classify(res Resource) (ResourceKind, error) {
	info, err := os.Stat(res.Path)
	if err != nil {
		return KindFile, fmt.Errorf("stat %s: %w", res.RelativePath, err)
	}
	if info.IsDir() {
		return KindDirectory, nil
	}
	return KindFile, nil
}

// ListEntries returns the children of a directory in the order the
// filesystem yields them.
func (r *Resolver) ListEntries(res Resource) ([]models.FolderEntry, error) {
	dir, err := os.Open(res.Path)
	if err != nil {
		return nil, fmt.Errorf("open dir %s: %w", res.RelativePath, err)
	}
	defer dir.Close()

	children, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", res.RelativePath, err)
	}

	entries := make([]models.FolderEntry, 0, len(children))
	for _, child := range children {
		isDir := child.IsDir()
		if child.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(res.Path, child.Name())); err == nil {
				isDir = info.IsDir()
			}
		}

		entry := models.FolderEntry{Filename: child.Name(), IsDir: isDir}
		if !isDir {
			mimetype := Mimetype(child.Name())
			entry.Mimetype = &mimetype
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Checksum returns the upper-case hex SHA-256 of the file content.
func (r *Resolver) Checksum(res Resource) (string, error) {
	f, err := os.Open(res.Path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", res.RelativePath, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", res.RelativePath, err)
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// Mimetype guesses the media type from the file extension.
func Mimetype(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return defaultMimetype
	}
	guessed := mime.TypeByExtension(ext)
	if guessed == "" {
		return defaultMimetype
	}
	mediatype, _, err := mime.ParseMediaType(guessed)
	if err != nil {
		return defaultMimetype
	}
	return mediatype
}
