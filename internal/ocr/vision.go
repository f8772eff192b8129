package ocr

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

// imageAnnotator is the subset of the Vision client used here
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Vision recognizes text with Google Cloud Vision document text detection
type Vision struct {
	client    imageAnnotator
	languages []string
}

// NewVision creates a Vision engine. An empty credentialsFile uses
// application default credentials.
func NewVision(ctx context.Context, credentialsFile string, languages []string) (*Vision, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return newVisionWithClient(client, languages), nil
}

func newVisionWithClient(client imageAnnotator, languages []string) *Vision {
	return &Vision{client: client, languages: languages}
}

// Name returns the engine name
func (v *Vision) Name() string {
	return "vision"
}

// Extract sends the page inline and reads paragraphs from the full text annotation
func (v *Vision) Extract(ctx context.Context, img *scanning.Image) (Result, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: img.Data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.languages},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: vision API call failed: %w", ErrOCRFailed, err)
	}
	if len(resp.GetResponses()) == 0 {
		return Result{}, ErrNoResponse
	}

	annotation := resp.GetResponses()[0]
	if annotation.GetError() != nil {
		return Result{}, fmt.Errorf("%w: vision API error: %s", ErrOCRFailed, annotation.GetError().GetMessage())
	}

	var (
		paragraphs  []string
		confidences []float64
	)
	for _, page := range annotation.GetFullTextAnnotation().GetPages() {
		for _, block := range page.GetBlocks() {
			for _, paragraph := range block.GetParagraphs() {
				words := make([]string, 0, len(paragraph.GetWords()))
				for _, word := range paragraph.GetWords() {
					var w strings.Builder
					for _, symbol := range word.GetSymbols() {
						w.WriteString(symbol.GetText())
					}
					words = append(words, w.String())
				}
				paragraphs = append(paragraphs, strings.Join(words, " "))
				if c := paragraph.GetConfidence(); c > 0 {
					confidences = append(confidences, float64(c))
				}
			}
		}
	}

	return newResult(v.Name(), paragraphs, confidences), nil
}

// Close closes the Vision client
func (v *Vision) Close() error {
	return v.client.Close()
}
