package ocr

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zombor/invoice-extractor/internal/logger"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

var (
	// ErrOCRFailed is returned when an engine could not process the image
	ErrOCRFailed = errors.New("OCR processing failed")
	// ErrNoResponse is returned when a cloud engine answered with nothing
	ErrNoResponse = errors.New("no response from OCR engine")
)

// Result is the recognized text of one page
type Result struct {
	// Text holds the paragraphs in reading order joined by newlines, cleaned
	Text       string
	Paragraphs []string
	// EngineConfidence is the engine's own mean confidence in 0..1, nil when
	// the engine does not report one
	EngineConfidence *float64
	Engine           string
}

// Extractor recognizes the text of a normalized page
type Extractor interface {
	Name() string
	Extract(ctx context.Context, img *scanning.Image) (Result, error)
}

// Clean replaces tabs and carriage returns with spaces and trims the result.
func Clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\r' {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// newResult assembles a Result from paragraphs in reading order and the
// per-unit confidences (0..1) the engine reported for them.
func newResult(engine string, paragraphs []string, confidences []float64) Result {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}

	r := Result{
		Text:       Clean(strings.Join(kept, "\n")),
		Paragraphs: kept,
		Engine:     engine,
	}
	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		mean := sum / float64(len(confidences))
		r.EngineConfidence = &mean
	}
	return r
}

// SoftExtractor turns engine failures into an empty result so the caller
// decides what missing text means.
type SoftExtractor struct {
	inner Extractor
	log   zerolog.Logger
}

// NewSoftExtractor wraps inner
func NewSoftExtractor(inner Extractor) *SoftExtractor {
	return &SoftExtractor{inner: inner, log: logger.WithComponent("ocr")}
}

// Name returns the wrapped engine name
func (s *SoftExtractor) Name() string {
	return s.inner.Name()
}

// Extract never returns an error
func (s *SoftExtractor) Extract(ctx context.Context, img *scanning.Image) (Result, error) {
	result, err := s.inner.Extract(ctx, img)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("engine", s.inner.Name()).
			Msg("Text recognition failed")
		return Result{Engine: s.inner.Name()}, nil
	}

	s.log.Debug().
		Str("engine", result.Engine).
		Int("paragraphs", len(result.Paragraphs)).
		Int("characters", len(result.Text)).
		Msg("Recognized text")

	return result, nil
}
