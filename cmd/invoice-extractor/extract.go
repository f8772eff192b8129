package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/zombor/invoice-extractor/internal/config"
	"github.com/zombor/invoice-extractor/internal/export"
	"github.com/zombor/invoice-extractor/internal/invoice"
	"github.com/zombor/invoice-extractor/internal/logger"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

type extractOptions struct {
	output    string
	outputDir string
	format    string
}

// destination returns where the result for file goes; empty means stdout.
// The source extension stays in the name so invoice.pdf and invoice.png
// land in different files.
func (o *extractOptions) destination(file string) string {
	if o.output != "" {
		return o.output
	}
	if o.outputDir == "" {
		return ""
	}
	return filepath.Join(o.outputDir, filepath.Base(file)+"."+o.format)
}

func (o *extractOptions) validate(files []string) error {
	if len(files) == 0 {
		return errors.New("extract requires at least one FILE")
	}
	if o.output != "" && o.outputDir != "" {
		return errors.New("--output and --output-dir are mutually exclusive")
	}
	if len(files) > 1 && o.outputDir == "" {
		return errors.New("--output-dir is required when extracting more than one file")
	}
	if o.output != "" {
		if _, err := export.FormatFromPath(o.output); err != nil {
			return err
		}
	}
	if o.outputDir != "" {
		if _, err := export.FormatFromPath("out." + o.format); err != nil {
			return err
		}
		seen := make(map[string]string, len(files))
		for _, file := range files {
			dest := o.destination(file)
			if prev, ok := seen[dest]; ok {
				return fmt.Errorf("%s and %s would both be written to %s", prev, file, dest)
			}
			seen[dest] = file
		}
	}
	return nil
}

func runExtract(ctx context.Context, cfg *config.Config, opts *extractOptions, files []string) error {
	if err := opts.validate(files); err != nil {
		return err
	}
	if opts.outputDir != "" {
		if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
			return fmt.Errorf("output directory: %w", err)
		}
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	log := logger.WithComponent("extract")

	var bar *progressbar.ProgressBar
	if len(files) > 1 {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(color.CyanString("Extracting")),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	failed := 0
	for _, file := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := extractFile(ctx, p.service, file)
		if err == nil {
			err = writeResult(opts.destination(file), result)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			failed++
			log.Error().Err(err).Str("file", file).Msg("Extraction failed")
			color.New(color.FgRed).Fprintf(os.Stderr, "\n✗ %s: %s\n", file, invoice.NewFailure(err).Error)
			continue
		}
		printSummary(file, result)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func extractFile(ctx context.Context, service *invoice.Service, file string) (*invoice.Result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	doc := scanning.NewDocument(scanning.SanitizeFilename(file), data)
	if !scanning.IsSupported(doc.Ext) {
		return nil, fmt.Errorf("%w: %q", scanning.ErrUnsupportedFormat, doc.Ext)
	}
	return service.Process(ctx, doc)
}

func writeResult(path string, result *invoice.Result) error {
	if path == "" {
		return export.WriteJSON(os.Stdout, result)
	}
	return export.WriteFile(path, result)
}

// printSummary reports the headline fields on stderr so stdout stays JSON
func printSummary(file string, result *invoice.Result) {
	rec := result.InvoiceData
	label := color.New(color.FgCyan).SprintFunc()

	color.New(color.FgGreen).Fprintf(os.Stderr, "\n✓ %s (%.2fs, %d characters)\n", file, result.ProcessingTime, result.CharacterCount)
	fmt.Fprintf(os.Stderr, "  %s %s\n", label("Invoice:"), orDash(rec.InvoiceNumber))
	fmt.Fprintf(os.Stderr, "  %s %s\n", label("Vendor: "), orDash(rec.VendorName))
	fmt.Fprintf(os.Stderr, "  %s %s\n", label("Date:   "), orDash(rec.InvoiceDate))
	if rec.TotalAmount != nil {
		fmt.Fprintf(os.Stderr, "  %s %.2f %s\n", label("Total:  "), *rec.TotalAmount, strings.TrimSpace(derefString(rec.Currency)))
	} else {
		fmt.Fprintf(os.Stderr, "  %s -\n", label("Total:  "))
	}
	fmt.Fprintf(os.Stderr, "  %s %d\n", label("Items:  "), len(rec.LineItems))
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
