package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"fotos/internal/apierr"
	"fotos/internal/models"
	"fotos/internal/store"
)

type EventPublisher interface {
	Publish(event models.TagEvent)
}

// TagService attaches tags to files below the resolver's root.
type TagService struct {
	repo     store.Repository
	resolver *Resolver
	events   EventPublisher
}

// NewTagService builds the service. events may be nil.
func NewTagService(repo store.Repository, resolver *Resolver, events EventPublisher) *TagService {
	return &TagService{
		repo:     repo,
		resolver: resolver,
		events:   events,
	}
}

func (s *TagService) ListTags(ctx context.Context, search string) ([]models.Tag, error) {
	tags, err := s.repo.ListTags(ctx, search)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}

// CreateTag stores a new tag. Names are unique by exact comparison, so
// "Sea" and "sea" are distinct tags.
func (s *TagService) CreateTag(ctx context.Context, name string) (models.Tag, error) {
	tag := models.Tag{ID: uuid.NewString(), Tagname: name}

	err := s.repo.InsertTag(ctx, tag)
	if errors.Is(err, store.ErrDuplicate) {
		return models.Tag{}, apierr.Conflictf("tag %q already exists", name)
	}
	if err != nil {
		return models.Tag{}, err
	}

	log.Info().Str("tag_id", tag.ID).Str("tagname", name).Msg("tag created")
	s.publish(models.TagEvent{Type: models.EventTagCreated, TagID: tag.ID, Tagname: name})
	return tag, nil
}

// TagPath associates the tag with the file at subpath, creating the file
// record on first use. Repeating the call is a no-op.
func (s *TagService) TagPath(ctx context.Context, tagID, subpath string) error {
	res, err := s.resolveFile(subpath)
	if err != nil {
		return err
	}
	if err := s.requireTag(ctx, tagID); err != nil {
		return err
	}

	file, err := s.fileRecord(ctx, res)
	if err != nil {
		return err
	}
	if err := s.repo.AddFileTag(ctx, tagID, file.ID); err != nil {
		return err
	}

	s.publish(models.TagEvent{Type: models.EventPathTagged, TagID: tagID, RelativePath: file.RelativePath})
	return nil
}

// UntagPath removes the association between the tag and the file at
// subpath. The file record is kept.
func (s *TagService) UntagPath(ctx context.Context, tagID, subpath string) error {
	if err := s.requireTag(ctx, tagID); err != nil {
		return err
	}
	res, err := s.resolveFile(subpath)
	if err != nil {
		return err
	}

	file, err := s.repo.FileByPath(ctx, res.RelativePath)
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFoundf("path %s is not tagged", subpath)
	}
	if err != nil {
		return err
	}

	removed, err := s.repo.RemoveFileTag(ctx, tagID, file.ID)
	if err != nil {
		return err
	}
	if !removed {
		return apierr.NotFoundf("path %s is not tagged with %s", subpath, tagID)
	}

	s.publish(models.TagEvent{Type: models.EventPathUntagged, TagID: tagID, RelativePath: file.RelativePath})
	return nil
}

// GetByTag lists the files carrying the tag, optionally limited to paths
// starting with prefix, sorted by path.
func (s *TagService) GetByTag(ctx context.Context, tagID, prefix string) ([]models.FileRecord, error) {
	if err := s.requireTag(ctx, tagID); err != nil {
		return nil, err
	}

	files, err := s.repo.FilesByTag(ctx, tagID, normalizePrefix(prefix))
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.FileRecord{}
	}
	return files, nil
}

// VerifyPath compares the checksum stored when subpath was first tagged
// with the checksum of its content now.
func (s *TagService) VerifyPath(ctx context.Context, subpath string) (models.Verification, error) {
	res, err := s.resolveFile(subpath)
	if err != nil {
		return models.Verification{}, err
	}

	file, err := s.repo.FileByPath(ctx, res.RelativePath)
	if errors.Is(err, store.ErrNotFound) {
		return models.Verification{}, apierr.NotFoundf("path %s is not tagged", subpath)
	}
	if err != nil {
		return models.Verification{}, err
	}

	current, err := s.resolver.Checksum(res)
	if err != nil {
		return models.Verification{}, err
	}

	return models.Verification{
		RelativePath: file.RelativePath,
		Stored:       file.Csum,
		Current:      current,
		Match:        strings.EqualFold(file.Csum, current),
	}, nil
}

// normalizePrefix cleans prefix the way stored relative paths are cleaned,
// keeping a trailing slash so "folder/" does not match "folder2/".
func normalizePrefix(prefix string) string {
	cleaned := strings.TrimPrefix(path.Clean("/"+prefix), "/")
	if cleaned != "" && strings.HasSuffix(prefix, "/") {
		cleaned += "/"
	}
	return cleaned
}

func (s *TagService) resolveFile(subpath string) (Resource, error) {
	res, err := s.resolver.Resolve(subpath)
	if err != nil {
		return Resource{}, err
	}
	kind, err := s.resolver.Classify(res)
	if err != nil {
		return Resource{}, err
	}
	if kind != KindFile {
		return Resource{}, apierr.NotFoundf("path %s is not a file", subpath)
	}
	return res, nil
}

func (s *TagService) requireTag(ctx context.Context, tagID string) error {
	exists, err := s.repo.TagExists(ctx, tagID)
	if err != nil {
		return err
	}
	if !exists {
		return apierr.NotFoundf("tag %s doesn't exist", tagID)
	}
	return nil
}

// fileRecord returns the record for res, inserting it if needed. A
// concurrent insert of the same path surfaces as ErrDuplicate, after which
// the winner's row is read back.
func (s *TagService) fileRecord(ctx context.Context, res Resource) (models.FileRecord, error) {
	file, err := s.repo.FileByPath(ctx, res.RelativePath)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.FileRecord{}, err
	}

	csum, err := s.resolver.Checksum(res)
	if err != nil {
		return models.FileRecord{}, err
	}

	file = models.FileRecord{ID: uuid.NewString(), RelativePath: res.RelativePath, Csum: csum}
	err = s.repo.InsertFile(ctx, file)
	if errors.Is(err, store.ErrDuplicate) {
		log.Debug().Str("path", res.RelativePath).Msg("file record created concurrently, re-reading")
		file, err = s.repo.FileByPath(ctx, res.RelativePath)
		if err != nil {
			return models.FileRecord{}, fmt.Errorf("re-read file record: %w", err)
		}
		return file, nil
	}
	if err != nil {
		return models.FileRecord{}, err
	}

	log.Debug().Str("file_id", file.ID).Str("path", file.RelativePath).Msg("file record created")
	return file, nil
}

func (s *TagService) publish(event models.TagEvent) {
	if s.events != nil {
		s.events.Publish(event)
	}
}
