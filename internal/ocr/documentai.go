package ocr

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/zombor/invoice-extractor/internal/llm"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// documentProcessor is the subset of the Document AI client used here
type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIConfig identifies the OCR processor
type DocumentAIConfig struct {
	ProjectID       string
	Location        string // e.g. "us" or "eu"
	ProcessorID     string
	CredentialsFile string
	Languages       []string
}

// DocumentAI recognizes text with a Google Document AI OCR processor
type DocumentAI struct {
	client documentProcessor
	config DocumentAIConfig
}

// NewDocumentAI creates a Document AI engine using the regional endpoint
func NewDocumentAI(ctx context.Context, config DocumentAIConfig) (*DocumentAI, error) {
	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, fmt.Errorf("document ai project and processor are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)),
	}
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating document ai client: %w", err)
	}

	return newDocumentAIWithClient(client, config), nil
}

func newDocumentAIWithClient(client documentProcessor, config DocumentAIConfig) *DocumentAI {
	return &DocumentAI{client: client, config: config}
}

// Name returns the engine name
func (d *DocumentAI) Name() string {
	return "documentai"
}

func (d *DocumentAI) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// Extract processes the page and reads paragraphs of the first page from their text anchors
func (d *DocumentAI) Extract(ctx context.Context, img *scanning.Image) (Result, error) {
	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  img.Data,
				MimeType: llm.MIMEType(img.Ext),
			},
		},
	}
	if len(d.config.Languages) > 0 {
		req.ProcessOptions = &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{LanguageHints: d.config.Languages},
			},
		}
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: document ai call failed: %w", ErrOCRFailed, err)
	}

	doc := resp.GetDocument()
	if doc == nil {
		return Result{}, ErrNoResponse
	}
	if len(doc.GetPages()) == 0 {
		return newResult(d.Name(), []string{doc.GetText()}, nil), nil
	}

	var (
		paragraphs  []string
		confidences []float64
	)
	for _, paragraph := range doc.GetPages()[0].GetParagraphs() {
		layout := paragraph.GetLayout()
		paragraphs = append(paragraphs, anchorText(doc.GetText(), layout.GetTextAnchor()))
		if c := layout.GetConfidence(); c > 0 {
			confidences = append(confidences, float64(c))
		}
	}

	return newResult(d.Name(), paragraphs, confidences), nil
}

// anchorText resolves a text anchor's segments against the document text.
// Offsets are in bytes of the UTF-8 text.
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := seg.GetStartIndex(), seg.GetEndIndex()
		if start < 0 || end > int64(len(text)) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return strings.TrimSpace(b.String())
}

// Close closes the Document AI client
func (d *DocumentAI) Close() error {
	return d.client.Close()
}
