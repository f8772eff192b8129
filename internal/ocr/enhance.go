package ocr

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/zombor/invoice-extractor/internal/logger"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// Enhancer improves scan legibility before handing the page to another engine.
// The caller's image is never modified.
type Enhancer struct {
	inner Extractor
	log   zerolog.Logger
}

// NewEnhancer wraps inner
func NewEnhancer(inner Extractor) *Enhancer {
	return &Enhancer{inner: inner, log: logger.WithComponent("ocr")}
}

// Name returns the wrapped engine name
func (e *Enhancer) Name() string {
	return e.inner.Name()
}

// Extract grayscales, raises contrast and sharpens the page, then recognizes
// it. Formats imaging cannot decode are recognized as they are.
func (e *Enhancer) Extract(ctx context.Context, img *scanning.Image) (Result, error) {
	enhanced, err := Enhance(img)
	if err != nil {
		e.log.Warn().Err(err).Str("ext", img.Ext).Msg("Skipping image enhancement")
		return e.inner.Extract(ctx, img)
	}
	return e.inner.Extract(ctx, enhanced)
}

// Enhance returns a PNG copy of img prepared for recognition
func Enhance(img *scanning.Image) (*scanning.Image, error) {
	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image for enhancement: %w", err)
	}

	out := imaging.Grayscale(src)
	out = imaging.AdjustContrast(out, 30)
	out = imaging.Sharpen(out, 1.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding enhanced image: %w", err)
	}

	// The enhanced copy lives in memory only
	return &scanning.Image{
		Ext:       "png",
		Data:      buf.Bytes(),
		Converted: true,
	}, nil
}
