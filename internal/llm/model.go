package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable is returned when every attempt to reach the model failed
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrEmptyResponse is returned when the provider sent no candidate reply
	ErrEmptyResponse = errors.New("empty model response")
)

// Image is the page sent alongside the prompt
type Image struct {
	Ext  string
	Data []byte
}

// MIMEType derives the media type from a file extension. "jpg" is the only
// extension whose subtype differs from its name.
func MIMEType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpg" {
		ext = "jpeg"
	}
	return "image/" + ext
}

// MIMEType returns the media type of the image
func (i *Image) MIMEType() string {
	return MIMEType(i.Ext)
}

// DataURL returns the image as a base64 data URL
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Request is a single multimodal model call
type Request struct {
	Prompt      string
	Image       *Image // nil sends the prompt alone
	Temperature float64
}

// Model is a vision-capable language model provider
type Model interface {
	// Name identifies the provider and model for logging
	Name() string
	// Generate sends one request and returns the reply text
	Generate(ctx context.Context, req Request) (string, error)
	// Close releases provider resources
	Close() error
}

// New builds the Model for provider ("openai", "gemini" or "ollama")
func New(ctx context.Context, provider, apiKey, baseURL, modelName string) (Model, error) {
	switch provider {
	case "openai":
		return NewOpenAI(apiKey, baseURL, modelName)
	case "gemini":
		return NewGemini(ctx, apiKey, modelName)
	case "ollama":
		return NewOllama(baseURL, modelName)
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}
