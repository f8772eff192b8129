package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/invoice-extractor/internal/logger"
)

// EnvVarPrefix is the prefix for environment variables mapped onto flags,
// e.g. --model-provider is read from INVOICE_EXTRACTOR_MODEL_PROVIDER.
const EnvVarPrefix = "INVOICE_EXTRACTOR"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	Model    ModelConfig
	Retry    RetryConfig
	Prompt   PromptConfig
	Pipeline PipelineConfig
	Log      logger.Config
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	ScratchDir  string
	MaxUploadMB int
}

// OCRConfig selects and configures the text recognition engine
type OCRConfig struct {
	Engine    string // tesseract, vision, documentai, azure
	Languages string // comma separated ISO 639-1 codes
	Enhance   bool

	TesseractPath string
	TessdataDir   string

	GoogleCredentialsFile string
	DocumentAIProject     string
	DocumentAILocation    string
	DocumentAIProcessor   string

	AzureEndpoint string
	AzureKey      string
}

// ModelConfig selects the vision-capable language model
type ModelConfig struct {
	Provider    string // openai, gemini, ollama
	Name        string
	APIKey      string
	BaseURL     string
	Temperature float64
}

// RetryConfig bounds the model call retry loop
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration
	RateLimit      float64 // requests per second, 0 disables
}

// PromptConfig locates the extraction prompt template
type PromptConfig struct {
	Path string
}

// PipelineConfig holds orchestration settings
type PipelineConfig struct {
	Timeout  time.Duration
	PDFScale float64
}

// Register binds every configuration flag to fs and returns the Config they populate.
func Register(fs *ff.FlagSet) *Config {
	c := &Config{}

	fs.IntVar(&c.Server.Port, 0, "port", 5000, "HTTP server port")
	fs.StringVar(&c.Server.ScratchDir, 0, "scratch-dir", "temp_uploads", "Directory for temporary upload and conversion artifacts")
	fs.IntVar(&c.Server.MaxUploadMB, 0, "max-upload-mb", 16, "Maximum upload size in megabytes")

	fs.StringVar(&c.OCR.Engine, 0, "ocr-engine", "tesseract", "OCR engine: tesseract, vision, documentai or azure")
	fs.StringVar(&c.OCR.Languages, 0, "ocr-languages", "en,sv", "Comma separated recognition languages")
	fs.BoolVar(&c.OCR.Enhance, 0, "ocr-enhance", "Grayscale, contrast and sharpen the image before OCR")
	fs.StringVar(&c.OCR.TesseractPath, 0, "tesseract-path", "tesseract", "Tesseract binary name or path")
	fs.StringVar(&c.OCR.TessdataDir, 0, "tessdata-dir", "", "Tesseract language data directory")
	fs.StringVar(&c.OCR.GoogleCredentialsFile, 0, "google-credentials", "", "Google service account JSON file (vision, documentai)")
	fs.StringVar(&c.OCR.DocumentAIProject, 0, "documentai-project", "", "Google Cloud project for Document AI")
	fs.StringVar(&c.OCR.DocumentAILocation, 0, "documentai-location", "us", "Document AI processing location")
	fs.StringVar(&c.OCR.DocumentAIProcessor, 0, "documentai-processor", "", "Document AI OCR processor ID")
	fs.StringVar(&c.OCR.AzureEndpoint, 0, "azure-endpoint", "", "Azure Computer Vision endpoint")
	fs.StringVar(&c.OCR.AzureKey, 0, "azure-key", "", "Azure Computer Vision subscription key")

	fs.StringVar(&c.Model.Provider, 0, "model-provider", "openai", "Model provider: openai, gemini or ollama")
	fs.StringVar(&c.Model.Name, 0, "model-name", "", "Model name (provider default when empty)")
	fs.StringVar(&c.Model.APIKey, 0, "model-api-key", "", "Model API key (or OPENAI_API_KEY / GEMINI_API_KEY)")
	fs.StringVar(&c.Model.BaseURL, 0, "model-base-url", "", "Model API base URL")
	fs.Float64Var(&c.Model.Temperature, 0, "model-temperature", 0.1, "Decoding temperature")

	fs.IntVar(&c.Retry.MaxAttempts, 0, "retry-attempts", 3, "Total model call attempts")
	fs.DurationVar(&c.Retry.InitialDelay, 0, "retry-initial-delay", 2*time.Second, "Backoff before the second attempt")
	fs.DurationVar(&c.Retry.MaxDelay, 0, "retry-max-delay", 10*time.Second, "Backoff ceiling")
	fs.Float64Var(&c.Retry.Multiplier, 0, "retry-multiplier", 2, "Backoff growth factor")
	fs.DurationVar(&c.Retry.AttemptTimeout, 0, "retry-attempt-timeout", 60*time.Second, "Deadline for a single model call")
	fs.Float64Var(&c.Retry.RateLimit, 0, "model-rate-limit", 0, "Model requests per second (0 for unlimited)")

	fs.StringVar(&c.Prompt.Path, 0, "prompt-path", "prompts/invoice_prompt.txt", "Prompt template file")

	fs.DurationVar(&c.Pipeline.Timeout, 0, "pipeline-timeout", 3*time.Minute, "Deadline for one document")
	fs.Float64Var(&c.Pipeline.PDFScale, 0, "pdf-scale", 2, "Linear scale for PDF page rendering")

	logDefaults := logger.DefaultConfig()
	fs.StringVar(&c.Log.Level, 0, "log-level", logDefaults.Level, "Log level")
	fs.StringVar(&c.Log.Format, 0, "log-format", logDefaults.Format, "Log format: console or json")
	fs.StringVar(&c.Log.Output, 0, "log-output", logDefaults.Output, "Log output: stdout, stderr or a file path")

	return c
}

// ApplyEnvFallbacks fills provider API keys from their conventional variables.
func (c *Config) ApplyEnvFallbacks() {
	if c.Model.APIKey != "" {
		return
	}
	switch c.Model.Provider {
	case "openai":
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	case "gemini":
		c.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// LanguageList returns the configured recognition languages.
func (c *OCRConfig) LanguageList() []string {
	var langs []string
	for _, l := range strings.Split(c.Languages, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	switch c.OCR.Engine {
	case "tesseract", "vision":
	case "documentai":
		if c.OCR.DocumentAIProject == "" || c.OCR.DocumentAIProcessor == "" {
			return fmt.Errorf("documentai engine requires --documentai-project and --documentai-processor")
		}
	case "azure":
		if c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "" {
			return fmt.Errorf("azure engine requires --azure-endpoint and --azure-key")
		}
	default:
		return fmt.Errorf("invalid ocr engine %q", c.OCR.Engine)
	}
	if len(c.OCR.LanguageList()) == 0 {
		return fmt.Errorf("at least one ocr language is required")
	}

	switch c.Model.Provider {
	case "openai", "gemini":
		if c.Model.APIKey == "" {
			return fmt.Errorf("%s provider requires an API key", c.Model.Provider)
		}
	case "ollama":
	default:
		return fmt.Errorf("invalid model provider %q", c.Model.Provider)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature must be between 0 and 2")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1")
	}
	if c.Pipeline.PDFScale <= 0 {
		return fmt.Errorf("pdf scale must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}
