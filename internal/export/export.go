package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/invoice-extractor/internal/invoice"
)

// ErrUnknownFormat is returned for output paths that are neither .json nor .xlsx
var ErrUnknownFormat = errors.New("unknown export format")

// Format is an output file format
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	invoiceSheet   = "Invoice"
	lineItemsSheet = "Line Items"
)

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// WriteFile writes result to path in the format its extension names
func WriteFile(path string, result *invoice.Result) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, format, result); err != nil {
		return err
	}
	return f.Close()
}

// Write encodes result to w
func Write(w io.Writer, format Format, result *invoice.Result) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatXLSX:
		data, err := XLSX(result)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteJSON writes the success envelope as indented JSON
func WriteJSON(w io.Writer, result *invoice.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("json write: %w", err)
	}
	return nil
}

// XLSX returns a workbook with the invoice fields on one sheet and the line
// items on another.
func XLSX(result *invoice.Result) ([]byte, error) {
	if result == nil || result.InvoiceData == nil {
		return nil, errors.New("no invoice data to export")
	}
	rec := result.InvoiceData

	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than leaving an empty Sheet1 behind
	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, err
	}

	fields := []struct {
		label string
		value any
	}{
		{"Invoice Number", deref(rec.InvoiceNumber)},
		{"Invoice Date", deref(rec.InvoiceDate)},
		{"Due Date", deref(rec.DueDate)},
		{"Vendor Name", deref(rec.VendorName)},
		{"Vendor Address", deref(rec.VendorAddress)},
		{"Customer Name", deref(rec.CustomerName)},
		{"Customer Address", deref(rec.CustomerAddress)},
		{"Subtotal", deref(rec.Subtotal)},
		{"Tax Amount", deref(rec.TaxAmount)},
		{"Tax Rate", deref(rec.TaxRate)},
		{"Total Amount", deref(rec.TotalAmount)},
		{"Currency", deref(rec.Currency)},
		{"OCR Confidence", result.OCRConfidence},
		{"Processing Time (s)", result.ProcessingTime},
		{"Character Count", result.CharacterCount},
	}
	for i, field := range fields {
		_ = f.SetCellValue(invoiceSheet, fmt.Sprintf("A%d", i+1), field.label)
		_ = f.SetCellValue(invoiceSheet, fmt.Sprintf("B%d", i+1), field.value)
	}
	_ = f.SetColWidth(invoiceSheet, "A", "A", 22)
	_ = f.SetColWidth(invoiceSheet, "B", "B", 48)

	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return nil, err
	}
	headers := []string{"Description", "Quantity", "Unit Price", "Total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(lineItemsSheet, cell, h)
	}
	for i, item := range rec.LineItems {
		row := i + 2
		values := []any{deref(item.Description), deref(item.Quantity), deref(item.UnitPrice), deref(item.Total)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(lineItemsSheet, cell, v)
		}
	}
	_ = f.SetColWidth(lineItemsSheet, "A", "A", 48)
	_ = f.SetColWidth(lineItemsSheet, "B", "D", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// deref yields an empty cell for nulls
func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}
