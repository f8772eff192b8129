package scanning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"github.com/rs/zerolog"

	"github.com/zombor/invoice-extractor/internal/logger"
)

// baseDPI is the resolution MuPDF renders at for a scale of 1.
const baseDPI = 72.0

var (
	// ErrNoPages is returned when a PDF opens but contains no pages
	ErrNoPages = errors.New("document has no pages")
	// ErrUnsupportedFormat is returned for extensions outside the allow-list
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument is returned for zero-byte input
	ErrEmptyDocument = errors.New("document is empty")
)

var imageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"bmp":  true,
	"webp": true,
	"tiff": true,
	"heic": true,
	"heif": true,
}

// IsSupported reports whether ext (without the dot, any case) can be normalized.
func IsSupported(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return ext == "pdf" || imageExtensions[ext]
}

// Document is an uploaded file before normalization
type Document struct {
	Name string
	Ext  string // lowercase, without the dot
	Data []byte
}

// NewDocument derives the declared extension from name
func NewDocument(name string, data []byte) Document {
	return Document{
		Name: name,
		Ext:  strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		Data: data,
	}
}

// Image is a single raster page ready for OCR and the model
type Image struct {
	Path      string
	Ext       string
	Data      []byte
	Converted bool
}

// Rasterizer renders the first page of a paginated document
type Rasterizer interface {
	FirstPage(data []byte, dpi float64) (image.Image, error)
}

// FitzRasterizer renders PDFs with MuPDF
type FitzRasterizer struct{}

// FirstPage renders page 0 at the given resolution
func (FitzRasterizer) FirstPage(data []byte, dpi float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, ErrNoPages
	}

	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// Normalizer turns any supported document into a single raster page
type Normalizer struct {
	workspace  *Workspace
	rasterizer Rasterizer
	scale      float64
	logger     zerolog.Logger
}

// NewNormalizer creates a Normalizer that renders PDFs at scale times 72 DPI
func NewNormalizer(workspace *Workspace, rasterizer Rasterizer, scale float64) *Normalizer {
	return &Normalizer{
		workspace:  workspace,
		rasterizer: rasterizer,
		scale:      scale,
		logger:     logger.WithComponent("normalizer"),
	}
}

// Normalize stores the document in the workspace and returns its first page as
// an image. The returned release func deletes every artifact written for this
// document; it is safe to call on every path, including after an error.
func (n *Normalizer) Normalize(ctx context.Context, doc Document) (*Image, func(), error) {
	noop := func() {}

	if len(doc.Data) == 0 {
		return nil, noop, ErrEmptyDocument
	}
	if !IsSupported(doc.Ext) {
		return nil, noop, fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, noop, err
	}

	var artifacts []string
	release := func() {
		for _, path := range artifacts {
			if err := n.workspace.Remove(path); err != nil {
				n.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove artifact")
			}
		}
	}

	sourcePath, err := n.workspace.Save(n.workspace.UniqueName(doc.Name), doc.Data)
	if err != nil {
		return nil, noop, fmt.Errorf("saving document: %w", err)
	}
	artifacts = append(artifacts, sourcePath)

	var page image.Image
	switch {
	case doc.Ext == "pdf":
		page, err = n.rasterizer.FirstPage(doc.Data, baseDPI*n.scale)
		if err != nil {
			release()
			return nil, noop, fmt.Errorf("converting PDF to image: %w", err)
		}
	case isHEICFormat(doc.Data) || doc.Ext == "heic" || doc.Ext == "heif":
		page, err = heic.Decode(bytes.NewReader(doc.Data))
		if err != nil {
			release()
			return nil, noop, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		return &Image{Path: sourcePath, Ext: doc.Ext, Data: doc.Data}, release, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, page, imaging.PNG); err != nil {
		release()
		return nil, noop, fmt.Errorf("encoding PNG: %w", err)
	}

	convertedName := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath)) + "_converted.png"
	convertedPath, err := n.workspace.Save(convertedName, buf.Bytes())
	if err != nil {
		release()
		return nil, noop, fmt.Errorf("saving converted image: %w", err)
	}
	artifacts = append(artifacts, convertedPath)

	n.logger.Debug().
		Str("source", doc.Ext).
		Int("width", page.Bounds().Dx()).
		Int("height", page.Bounds().Dy()).
		Msg("Converted document to PNG")

	return &Image{Path: convertedPath, Ext: "png", Data: buf.Bytes(), Converted: true}, release, nil
}

// isHEICFormat checks for an ftyp box with a HEIF family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
