package invoice

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	nonAmountChars = regexp.MustCompile(`[^0-9.]`)
	ordinalSuffix  = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
	numericDate    = regexp.MustCompile(`\b(\d{1,2})[.-](\d{1,2})[.-](\d{2,4})\b`)

	// Substrings tried in order when the whole value does not parse
	dateCandidates = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
		regexp.MustCompile(`\d{4}[./]\d{1,2}[./]\d{1,2}`),
		regexp.MustCompile(`\d{1,2}[./-]\d{1,2}[./-]\d{2,4}`),
		regexp.MustCompile(`\d{1,2}\s+[A-Za-z]{3,}\.?,?\s+\d{4}`),
		regexp.MustCompile(`[A-Za-z]{3,}\.?\s+\d{1,2},?\s+\d{4}`),
	}

	swedishMonth  = regexp.MustCompile(`(?i)\b(januari|februari|mars|maj|juni|juli|augusti|oktober)\b`)
	swedishMonths = map[string]string{
		"januari":  "January",
		"februari": "February",
		"mars":     "March",
		"maj":      "May",
		"juni":     "June",
		"juli":     "July",
		"augusti":  "August",
		"oktober":  "October",
	}
)

// NormalizeAmount converts a parsed JSON value to a float. Strings lose their
// spaces, have commas read as decimal points and drop everything outside
// [0-9.] before parsing, so "1 234,56" becomes 1234.56. Thousands separators
// written as dots or commas cannot be told apart from decimals and usually
// yield nil.
func NormalizeAmount(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(t, " ", "")
		s = strings.ReplaceAll(s, ",", ".")
		s = nonAmountChars.ReplaceAllString(s, "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

// NormalizeDate fuzzily parses date text into YYYY-MM-DD, reading ambiguous
// numeric dates day first. Surrounding words are skipped.
func NormalizeDate(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = numericDate.ReplaceAllString(s, "$1/$2/$3")
	s = swedishMonth.ReplaceAllStringFunc(s, func(m string) string {
		return swedishMonths[strings.ToLower(m)]
	})

	if t, ok := parseDayFirst(s); ok {
		return formatDate(t)
	}
	for _, re := range dateCandidates {
		for _, candidate := range re.FindAllString(s, -1) {
			if t, ok := parseDayFirst(candidate); ok {
				return formatDate(t)
			}
		}
	}
	return nil
}

func parseDayFirst(s string) (time.Time, bool) {
	t, err := dateparse.ParseIn(s, time.UTC,
		dateparse.PreferMonthFirst(false),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatDate(t time.Time) *string {
	s := t.Format("2006-01-02")
	return &s
}

// normalizeText keeps strings as they are and renders numbers without
// trailing zeros; other values become nil.
func normalizeText(v any) *string {
	switch t := v.(type) {
	case string:
		return &t
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case json.Number:
		s := t.String()
		return &s
	default:
		return nil
	}
}

// NormalizeFields builds a Record from the model's field map. Each field is
// normalized on its own; a value that does not normalize becomes nil.
func NormalizeFields(fields map[string]any) *Record {
	r := &Record{
		InvoiceNumber:   normalizeText(fields["invoice_number"]),
		InvoiceDate:     NormalizeDate(fields["invoice_date"]),
		DueDate:         NormalizeDate(fields["due_date"]),
		VendorName:      normalizeText(fields["vendor_name"]),
		VendorAddress:   normalizeText(fields["vendor_address"]),
		CustomerName:    normalizeText(fields["customer_name"]),
		CustomerAddress: normalizeText(fields["customer_address"]),
		Subtotal:        NormalizeAmount(fields["subtotal"]),
		TaxAmount:       NormalizeAmount(fields["tax_amount"]),
		TaxRate:         NormalizeAmount(fields["tax_rate"]),
		TotalAmount:     NormalizeAmount(fields["total_amount"]),
		Currency:        normalizeText(fields["currency"]),
		LineItems:       []LineItem{},
	}

	items, _ := fields["line_items"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		r.LineItems = append(r.LineItems, LineItem{
			Description: normalizeText(m["description"]),
			Quantity:    NormalizeAmount(m["quantity"]),
			UnitPrice:   NormalizeAmount(m["unit_price"]),
			Total:       NormalizeAmount(m["total"]),
		})
	}

	return r
}
