package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama implements Model using a local Ollama server
type Ollama struct {
	llm   llms.Model
	model string
}

// NewOllama creates a new Ollama model.
// Vision models that read invoices well include llava, qwen2.5vl and llama3.2-vision.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	llm, err := ollama.New(ollama.WithModel(modelName), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("initializing ollama: %w", err)
	}

	return &Ollama{
		llm:   llm,
		model: modelName,
	}, nil
}

// Name returns the provider and model
func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

// Generate sends the image as binary content followed by the prompt
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	var parts []llms.ContentPart
	if req.Image != nil {
		parts = append(parts, llms.BinaryPart(req.Image.MIMEType(), req.Image.Data))
	}
	parts = append(parts, llms.TextPart(req.Prompt))

	resp, err := o.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: parts,
		},
	}, llms.WithTemperature(req.Temperature))
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Content, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
