package services

import (
	"context"
	"fmt"
	"os"

	"fotos/internal/models"
)

// Content is the result of Serve. It is one of DirectoryListing, RawFile or
// TranscodedFile.
type Content interface {
	isContent()
}

type DirectoryListing struct {
	Entries []models.FolderEntry
}

// RawFile is an unmodified file; the adapter streams it from Path.
type RawFile struct {
	Path     string
	Filename string
	Mimetype string
	Size     int64
}

type TranscodedFile struct {
	Filename string
	Mimetype string
	Data     []byte
	Width    int
	Height   int
}

func (DirectoryListing) isContent() {}
func (RawFile) isContent()          {}
func (TranscodedFile) isContent()   {}

type ContentService struct {
	resolver   *Resolver
	transcoder *Transcoder
	processor  *ImageProcessor
}

// NewContentService wires the serve pipeline. processor may be nil, in which
// case resizes run on the calling goroutine.
func NewContentService(resolver *Resolver, transcoder *Transcoder, processor *ImageProcessor) *ContentService {
	return &ContentService{
		resolver:   resolver,
		transcoder: transcoder,
		processor:  processor,
	}
}

func (s *ContentService) Serve(ctx context.Context, subpath string, params models.TranscodeParams) (Content, error) {
	res, err := s.resolver.Resolve(subpath)
	if err != nil {
		return nil, err
	}

	kind, err := s.resolver.Classify(res)
	if err != nil {
		return nil, err
	}
	if kind == KindDirectory {
		entries, err := s.resolver.ListEntries(res)
		if err != nil {
			return nil, err
		}
		return DirectoryListing{Entries: entries}, nil
	}

	filename := res.Filename()
	mimetype := Mimetype(filename)

	resize, err := s.needsTranscode(res, params)
	if err != nil {
		return nil, err
	}
	if resize {
		out, err := s.resize(ctx, ResizeJob{Path: res.Path, Params: params})
		if err != nil {
			return nil, fmt.Errorf("transcode %s: %w", res.RelativePath, err)
		}
		return TranscodedFile{
			Filename: filename,
			Mimetype: mimetype,
			Data:     out.Data,
			Width:    out.Width,
			Height:   out.Height,
		}, nil
	}

	info, err := os.Stat(res.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", res.RelativePath, err)
	}
	return RawFile{
		Path:     res.Path,
		Filename: filename,
		Mimetype: mimetype,
		Size:     info.Size(),
	}, nil
}

func (s *ContentService) needsTranscode(res Resource, params models.TranscodeParams) (bool, error) {
	if !params.Bounded() || !s.transcoder.IsImage(res.Path) {
		return false, nil
	}
	resize, err := s.transcoder.NeedsResize(res.Path, params.MaxWidth, params.MaxHeight)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", res.RelativePath, err)
	}
	return resize, nil
}

func (s *ContentService) resize(ctx context.Context, job ResizeJob) (Transcoded, error) {
	if s.processor == nil {
		return s.transcoder.Resize(job.Path, job.Params)
	}
	return s.processor.Process(ctx, job)
}
