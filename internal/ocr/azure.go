package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

// printedTextRecognizer is the subset of the Computer Vision client used here
type printedTextRecognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// Azure recognizes printed text with Azure Computer Vision
type Azure struct {
	client printedTextRecognizer
}

// NewAzure creates an Azure engine. The service detects the language itself.
func NewAzure(endpoint, apiKey string) (*Azure, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure endpoint and key are required")
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Azure{client: client}, nil
}

// Name returns the engine name
func (a *Azure) Name() string {
	return "azure"
}

// Extract treats every OCR region as a paragraph, its lines joined by spaces
func (a *Azure) Extract(ctx context.Context, img *scanning.Image) (Result, error) {
	result, err := a.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(bytes.NewReader(img.Data)), computervision.Unk)
	if err != nil {
		return Result{}, fmt.Errorf("%w: azure OCR failed: %w", ErrOCRFailed, err)
	}
	if result.Regions == nil {
		return newResult(a.Name(), nil, nil), nil
	}

	var paragraphs []string
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		var lines []string
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var words []string
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			lines = append(lines, strings.Join(words, " "))
		}
		paragraphs = append(paragraphs, strings.Join(lines, " "))
	}

	return newResult(a.Name(), paragraphs, nil), nil
}
