package savex

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/hengadev/savex/internal/archiverr"
)

type imageFormat int

const (
	imagePNG imageFormat = iota
	imageJPEG
)

// imageFormatOf picks the codec from the path extension.
func imageFormatOf(path string) (imageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return imagePNG, nil
	case ".jpg", ".jpeg":
		return imageJPEG, nil
	}
	return 0, archiverr.NewFormatError(path, "image extension must be .png, .jpg or .jpeg")
}

// SaveImage encodes img as PNG or JPEG, chosen by the extension of
// cfg.Path, and stores it with SaveRaw. quality only applies to JPEG; zero
// selects DefaultJPEGQuality.
func (e *Engine) SaveImage(ctx context.Context, img image.Image, quality int, cfg Config) error {
	format, err := imageFormatOf(cfg.Path)
	if err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("%w: image cannot be nil", ErrUnsupportedType)
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}

	var buf bytes.Buffer
	switch format {
	case imagePNG:
		err = png.Encode(&buf, img)
	case imageJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return fmt.Errorf("encode image %s: %w", cfg.Path, err)
	}
	return e.SaveRaw(ctx, buf.Bytes(), cfg)
}

// LoadImage loads and decodes a PNG or JPEG stored with SaveImage or
// SaveRaw.
func (e *Engine) LoadImage(ctx context.Context, cfg Config) (image.Image, error) {
	format, err := imageFormatOf(cfg.Path)
	if err != nil {
		return nil, err
	}
	data, err := e.LoadRawBytes(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch format {
	case imagePNG:
		img, err = png.Decode(bytes.NewReader(data))
	case imageJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, archiverr.NewFormatError(cfg.Path, err.Error())
	}
	return img, nil
}
