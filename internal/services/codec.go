package services

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
)

const DefaultJPEGQuality = 85

type codec interface {
	Decode(r io.Reader) (image.Image, error)
	Encode(w io.Writer, img image.Image) error
}

// jpegCodec talks to image/jpeg directly, skipping the format sniffing and
// option handling of the generic path. Quality is fixed per transcoder.
type jpegCodec struct {
	quality int
}

func (c jpegCodec) Decode(r io.Reader) (image.Image, error) {
	return jpeg.Decode(r)
}

func (c jpegCodec) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: c.quality})
}

type genericCodec struct {
	format imaging.Format
}

func (c genericCodec) Decode(r io.Reader) (image.Image, error) {
	return imaging.Decode(r)
}

func (c genericCodec) Encode(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, c.format)
}

// codecFor picks the codec for a format name as reported by
// image.DecodeConfig.
func codecFor(format string, jpegQuality int) (codec, error) {
	if format == "jpeg" {
		return jpegCodec{quality: jpegQuality}, nil
	}
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", format, err)
	}
	return genericCodec{format: f}, nil
}
