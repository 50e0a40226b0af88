// Package store defines the persistence contract of the tag association
// store. Backends live in the postgres and sqlite subpackages.
package store

import (
	"context"
	"errors"

	"fotos/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

type Repository interface {
	// ListTags returns every tag whose name contains search, ignoring case.
	// An empty search returns all tags. Rows come back in storage order.
	ListTags(ctx context.Context, search string) ([]models.Tag, error)
	// InsertTag fails with ErrDuplicate when the exact name is taken.
	InsertTag(ctx context.Context, tag models.Tag) error
	TagExists(ctx context.Context, id string) (bool, error)

	// FileByPath fails with ErrNotFound when no record has relativePath.
	FileByPath(ctx context.Context, relativePath string) (models.FileRecord, error)
	// InsertFile fails with ErrDuplicate when the path or id is taken.
	InsertFile(ctx context.Context, file models.FileRecord) error

	// AddFileTag is a no-op when the association exists.
	AddFileTag(ctx context.Context, tagID, fileID string) error
	// RemoveFileTag reports whether an association was deleted.
	RemoveFileTag(ctx context.Context, tagID, fileID string) (bool, error)
	// FilesByTag returns the records tagged with tagID whose path starts
	// with prefix, ordered bytewise by path.
	FilesByTag(ctx context.Context, tagID, prefix string) ([]models.FileRecord, error)

	Close() error
}
