package main

import (
	"context"
	"fmt"

	"github.com/zombor/invoice-extractor/internal/config"
	"github.com/zombor/invoice-extractor/internal/invoice"
	"github.com/zombor/invoice-extractor/internal/llm"
	"github.com/zombor/invoice-extractor/internal/logger"
	"github.com/zombor/invoice-extractor/internal/ocr"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// pipeline owns the components behind one invoice.Service
type pipeline struct {
	service *invoice.Service
	closers []func() error
}

// Close releases the model and OCR clients
func (p *pipeline) Close() {
	log := logger.WithComponent("main")
	for _, c := range p.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Error closing client")
		}
	}
}

// newPipeline wires the OCR engine, model client and normalizer from cfg
func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	log := logger.WithComponent("main")
	p := &pipeline{}

	workspace, err := scanning.NewWorkspace(cfg.Server.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("scratch directory: %w", err)
	}
	normalizer := scanning.NewNormalizer(workspace, scanning.FitzRasterizer{}, cfg.Pipeline.PDFScale)

	engine, err := newOCREngine(ctx, &cfg.OCR)
	if err != nil {
		return nil, err
	}
	if closer, ok := engine.(interface{ Close() error }); ok {
		p.closers = append(p.closers, closer.Close)
	}
	log.Info().Str("engine", engine.Name()).Strs("languages", cfg.OCR.LanguageList()).Msg("OCR engine ready")

	var extractor ocr.Extractor = engine
	if cfg.OCR.Enhance {
		extractor = ocr.NewEnhancer(extractor)
	}

	model, err := llm.New(ctx, cfg.Model.Provider, cfg.Model.APIKey, cfg.Model.BaseURL, cfg.Model.Name)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("model: %w", err)
	}
	p.closers = append(p.closers, model.Close)
	log.Info().Str("provider", cfg.Model.Provider).Str("model", model.Name()).Msg("Model ready")

	client := llm.NewClient(model,
		llm.WithRetryPolicy(llm.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialDelay:   cfg.Retry.InitialDelay,
			MaxDelay:       cfg.Retry.MaxDelay,
			Multiplier:     cfg.Retry.Multiplier,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
		}),
		llm.WithTemperature(cfg.Model.Temperature),
		llm.WithRateLimit(cfg.Retry.RateLimit),
	)

	validator, err := invoice.NewFieldValidator()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("field schema: %w", err)
	}

	p.service = invoice.NewService(
		normalizer,
		ocr.NewSoftExtractor(extractor),
		client,
		invoice.LoadPromptBuilder(cfg.Prompt.Path, log),
		invoice.WithValidator(validator),
		invoice.WithTimeout(cfg.Pipeline.Timeout),
	)
	return p, nil
}

func newOCREngine(ctx context.Context, cfg *config.OCRConfig) (ocr.Extractor, error) {
	langs := cfg.LanguageList()
	switch cfg.Engine {
	case "tesseract":
		return ocr.NewTesseract(ocr.NewExecRunner(), cfg.TesseractPath, langs, cfg.TessdataDir), nil
	case "vision":
		v, err := ocr.NewVision(ctx, cfg.GoogleCredentialsFile, langs)
		if err != nil {
			return nil, fmt.Errorf("vision: %w", err)
		}
		return v, nil
	case "documentai":
		d, err := ocr.NewDocumentAI(ctx, ocr.DocumentAIConfig{
			ProjectID:       cfg.DocumentAIProject,
			Location:        cfg.DocumentAILocation,
			ProcessorID:     cfg.DocumentAIProcessor,
			CredentialsFile: cfg.GoogleCredentialsFile,
			Languages:       langs,
		})
		if err != nil {
			return nil, fmt.Errorf("documentai: %w", err)
		}
		return d, nil
	case "azure":
		a, err := ocr.NewAzure(cfg.AzureEndpoint, cfg.AzureKey)
		if err != nil {
			return nil, fmt.Errorf("azure: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("invalid ocr engine %q", cfg.Engine)
	}
}
