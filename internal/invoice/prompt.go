package invoice

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Placeholder is the token replaced with the recognized text
const Placeholder = "<<OCR_TEXT>>"

//go:embed prompts/invoice_prompt.txt
var defaultPrompt string

// DefaultPrompt returns the built-in template
func DefaultPrompt() string {
	return defaultPrompt
}

// PromptBuilder fills the extraction template
type PromptBuilder struct {
	template string
}

// NewPromptBuilder creates a PromptBuilder for template
func NewPromptBuilder(template string) *PromptBuilder {
	return &PromptBuilder{template: template}
}

// LoadPromptBuilder reads the template at path. A missing or unreadable file
// falls back to the built-in template.
func LoadPromptBuilder(path string, log zerolog.Logger) *PromptBuilder {
	if path == "" {
		return NewPromptBuilder(defaultPrompt)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug().Str("path", path).Msg("Prompt template not found, using built-in default")
		return NewPromptBuilder(defaultPrompt)
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("Failed to read prompt template, using built-in default")
		return NewPromptBuilder(defaultPrompt)
	}

	template := string(data)
	if !strings.Contains(template, Placeholder) {
		log.Warn().Str("path", path).Msgf("Prompt template has no %s placeholder", Placeholder)
	}
	return NewPromptBuilder(template)
}

// Build substitutes the OCR text for the placeholder. Nothing else in the
// template or the text is interpreted.
func (b *PromptBuilder) Build(ocrText string) string {
	return strings.ReplaceAll(b.template, Placeholder, ocrText)
}
