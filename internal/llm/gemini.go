package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the slice of the genai client Gemini uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, temperature float32, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	Close() error
}

type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) GenerateContent(ctx context.Context, model string, temperature float32, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	// GenerativeModel is a plain value; a fresh one per call keeps the temperature request-local
	m := g.client.GenerativeModel(model)
	m.SetTemperature(temperature)
	return m.GenerateContent(ctx, parts...)
}

func (g *genaiGenerator) Close() error {
	return g.generator.Close()
}

// Gemini implements Model using Google Gemini
type Gemini struct {
	generator contentGenerator
	model     string
}

// NewGemini creates a new Gemini model
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return newGeminiWithGenerator(&genaiGenerator{client: client}, modelName), nil
}

func newGeminiWithGenerator(generator contentGenerator, modelName string) *Gemini {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &Gemini{
		generator: generator,
		model:     modelName,
	}
}

// Name returns the provider and model
func (g *Gemini) Name() string {
	return "gemini/" + g.model
}

// Generate sends the image and prompt as one content turn
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	var parts []genai.Part
	if req.Image != nil {
		// genai.ImageData expects the subtype ("png"), not the full MIME type
		parts = append(parts, genai.ImageData(strings.TrimPrefix(req.Image.MIMEType(), "image/"), req.Image.Data))
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := g.generator.GenerateContent(ctx, g.model, float32(req.Temperature), parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return text.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.generator.Close()
}
