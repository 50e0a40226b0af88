package services

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	"fotos/internal/models"
)

// Transcoded is the re-encoded output of a resize, in the source format.
type Transcoded struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

type Transcoder struct {
	jpegQuality int
}

func NewTranscoder(jpegQuality int) *Transcoder {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Transcoder{jpegQuality: jpegQuality}
}

// IsImage reports whether path holds an image the transcoder can re-encode.
// Any failure to open or sniff the file means "not an image".
func (t *Transcoder) IsImage(path string) bool {
	_, format, err := probe(path)
	if err != nil {
		return false
	}
	_, err = codecFor(format, t.jpegQuality)
	return err == nil
}

// NeedsResize reports whether the image exceeds a present bound. Only the
// header is decoded.
func (t *Transcoder) NeedsResize(path string, maxWidth, maxHeight *uint32) (bool, error) {
	if maxWidth == nil && maxHeight == nil {
		return false, nil
	}

	cfg, _, err := probe(path)
	if err != nil {
		return false, fmt.Errorf("probe: %w", err)
	}

	if maxWidth != nil && uint64(cfg.Width) > uint64(*maxWidth) {
		return true, nil
	}
	if maxHeight != nil && uint64(cfg.Height) > uint64(*maxHeight) {
		return true, nil
	}
	return false, nil
}

// Resize scales the image to fit within the bounds of params and re-encodes
// it in its original format. It does not check whether a resize is needed.
func (t *Transcoder) Resize(path string, params models.TranscodeParams) (Transcoded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Transcoded{}, fmt.Errorf("read image: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Transcoded{}, fmt.Errorf("sniff image: %w", err)
	}
	c, err := codecFor(format, t.jpegQuality)
	if err != nil {
		return Transcoded{}, err
	}

	src, err := c.Decode(bytes.NewReader(raw))
	if err != nil {
		return Transcoded{}, fmt.Errorf("decode %s: %w", format, err)
	}

	bounds := src.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), params.MaxWidth, params.MaxHeight)

	filter := imaging.Lanczos
	if params.Thumbnail {
		filter = imaging.NearestNeighbor
	}
	dst := imaging.Resize(src, width, height, filter)

	var buf bytes.Buffer
	if err := c.Encode(&buf, dst); err != nil {
		return Transcoded{}, fmt.Errorf("encode %s: %w", format, err)
	}

	return Transcoded{
		Data:   buf.Bytes(),
		Format: format,
		Width:  dst.Bounds().Dx(),
		Height: dst.Bounds().Dy(),
	}, nil
}

// FitWithin scales width x height by min(maxWidth/width, maxHeight/height),
// treating a nil bound as unconstrained, and floors the result. The bound
// that wins the minimum is met exactly. Both sides are at least 1.
func FitWithin(width, height int, maxWidth, maxHeight *uint32) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	w, h := uint64(width), uint64(height)

	byWidth := func(mw uint64) (uint64, uint64) { return mw, h * mw / w }
	byHeight := func(mh uint64) (uint64, uint64) { return w * mh / h, mh }

	nw, nh := w, h
	switch {
	case maxWidth != nil && maxHeight != nil:
		mw, mh := uint64(*maxWidth), uint64(*maxHeight)
		if mw*h <= mh*w {
			nw, nh = byWidth(mw)
		} else {
			nw, nh = byHeight(mh)
		}
	case maxWidth != nil:
		nw, nh = byWidth(uint64(*maxWidth))
	case maxHeight != nil:
		nw, nh = byHeight(uint64(*maxHeight))
	}

	return int(max(nw, 1)), int(max(nh, 1))
}

func probe(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()

	return image.DecodeConfig(f)
}
