package invoice

import (
	"context"
	"math"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/zombor/invoice-extractor/internal/llm"
	"github.com/zombor/invoice-extractor/internal/logger"
	"github.com/zombor/invoice-extractor/internal/ocr"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// Normalizer produces a single raster page and a func releasing its artifacts
type Normalizer interface {
	Normalize(ctx context.Context, doc scanning.Document) (*scanning.Image, func(), error)
}

// TextExtractor recognizes the text of a page
type TextExtractor interface {
	Extract(ctx context.Context, img *scanning.Image) (ocr.Result, error)
}

// ExtractionClient asks the model for the invoice fields
type ExtractionClient interface {
	Extract(ctx context.Context, prompt string, image *llm.Image) (string, error)
}

// Validator checks the shape of the parsed fields
type Validator interface {
	Validate(fields map[string]any) error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// DefaultTimeout bounds one document from upload to envelope
const DefaultTimeout = 3 * time.Minute

// Service runs the extraction pipeline for one document at a time per call.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	normalizer Normalizer
	extractor  TextExtractor
	client     ExtractionClient
	prompts    *PromptBuilder
	validator  Validator
	timeSource TimeSource
	timeout    time.Duration
	log        zerolog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithValidator logs shape warnings for parsed fields
func WithValidator(v Validator) ServiceOption {
	return func(s *Service) {
		s.validator = v
	}
}

// WithTimeout overrides DefaultTimeout. Zero leaves only the caller's deadline.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithTimeSource replaces the clock used for processing_time
func WithTimeSource(t TimeSource) ServiceOption {
	return func(s *Service) {
		s.timeSource = t
	}
}

// NewService creates a new Service
func NewService(normalizer Normalizer, extractor TextExtractor, client ExtractionClient, prompts *PromptBuilder, opts ...ServiceOption) *Service {
	s := &Service{
		normalizer: normalizer,
		extractor:  extractor,
		client:     client,
		prompts:    prompts,
		timeSource: &defaultTimeSource{},
		timeout:    DefaultTimeout,
		log:        logger.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process converts doc into an invoice record. Every returned error is an
// *Error; no partial record accompanies it. Temporary artifacts are removed
// before Process returns, whatever the outcome.
func (s *Service) Process(ctx context.Context, doc scanning.Document) (*Result, error) {
	start := s.timeSource.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.log.With().Str("document", doc.Name).Logger()
	log.Debug().Str("state", "Start").Int("bytes", len(doc.Data)).Msg("Processing document")

	img, release, err := s.normalizer.Normalize(ctx, doc)
	if release != nil {
		defer release()
	}
	if err != nil {
		return nil, s.fail(log, KindConversion, "normalize", err)
	}
	log.Debug().Str("state", "Normalized").Bool("converted", img.Converted).Msg("Document normalized")

	recognized, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, s.fail(log, KindNoText, "recognize", err)
	}
	text := ocr.Clean(recognized.Text)
	if text == "" {
		return nil, s.fail(log, KindNoText, "recognize", nil)
	}
	log.Debug().Str("state", "Recognized").Str("engine", recognized.Engine).Int("characters", len(text)).Msg("Text recognized")

	prompt := s.prompts.Build(text)
	log.Debug().Str("state", "Prompted").Int("prompt_length", len(prompt)).Msg("Prompt built")

	var image *llm.Image
	if len(img.Data) > 0 {
		image = &llm.Image{Ext: img.Ext, Data: img.Data}
	}
	raw, err := s.client.Extract(ctx, prompt, image)
	if err != nil {
		return nil, s.fail(log, KindModelUnavailable, "extract", err)
	}
	log.Debug().Str("state", "ModelCalled").Int("response_length", len(raw)).Msg("Model responded")

	fields, err := ParseResponse(raw)
	if err != nil {
		return nil, s.fail(log, KindInvalidJSON, "parse", err)
	}
	log.Debug().Str("state", "Parsed").Int("fields", len(fields)).Msg("Response parsed")

	if s.validator != nil {
		if err := s.validator.Validate(fields); err != nil {
			log.Warn().Err(err).Msg("Model output does not match the expected shape")
		}
	}

	record := NormalizeFields(fields)
	log.Debug().Str("state", "FieldsNormalized").Int("line_items", len(record.LineItems)).Msg("Fields normalized")

	characters := utf8.RuneCountInString(text)
	result := &Result{
		Success:             true,
		InvoiceData:         record,
		OCRText:             text,
		OCRConfidence:       Confidence(characters),
		OCREngineConfidence: recognized.EngineConfidence,
		ProcessingTime:      math.Round(s.timeSource.Now().Sub(start).Seconds()*100) / 100,
		CharacterCount:      characters,
	}

	log.Info().
		Str("state", "Assembled").
		Float64("processing_time", result.ProcessingTime).
		Int("character_count", characters).
		Msg("Invoice extracted")

	return result, nil
}

func (s *Service) fail(log zerolog.Logger, kind Kind, op string, err error) *Error {
	e := newError(kind, op, err)
	log.Error().Err(e).Str("state", "Failed").Str("kind", string(kind)).Msg("Invoice processing failed")
	return e
}

// Confidence is the text volume proxy reported as ocr_confidence: a tenth of
// the character count, clamped to [70, 95]. It says nothing about how
// accurate the recognition was.
func Confidence(characters int) int {
	return min(95, max(70, characters/10))
}
