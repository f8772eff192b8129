package invoice

// LineItem is one row of the invoice body
type LineItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Total       *float64 `json:"total"`
}

// Record is the structured invoice. Dates are YYYY-MM-DD and amounts are
// parsed numbers; anything that did not normalize is null.
type Record struct {
	InvoiceNumber   *string    `json:"invoice_number"`
	InvoiceDate     *string    `json:"invoice_date"`
	DueDate         *string    `json:"due_date"`
	VendorName      *string    `json:"vendor_name"`
	VendorAddress   *string    `json:"vendor_address"`
	CustomerName    *string    `json:"customer_name"`
	CustomerAddress *string    `json:"customer_address"`
	Subtotal        *float64   `json:"subtotal"`
	TaxAmount       *float64   `json:"tax_amount"`
	TaxRate         *float64   `json:"tax_rate"`
	TotalAmount     *float64   `json:"total_amount"`
	Currency        *string    `json:"currency"`
	LineItems       []LineItem `json:"line_items"`
}

// Result is the success envelope
type Result struct {
	Success       bool    `json:"success"`
	InvoiceData   *Record `json:"invoice_data"`
	OCRText       string  `json:"ocr_text"`
	OCRConfidence int     `json:"ocr_confidence"`
	// OCREngineConfidence is the recognition engine's own mean confidence
	// (0..1), present only when the engine reports one
	OCREngineConfidence *float64 `json:"ocr_engine_confidence,omitempty"`
	ProcessingTime      float64  `json:"processing_time"`
	CharacterCount      int      `json:"character_count"`
}

// Failure is the error envelope
type Failure struct {
	Error     string `json:"error"`
	ErrorKind Kind   `json:"error_kind,omitempty"`
}

// NewFailure builds the error envelope for err. Errors that are not pipeline
// errors carry their own message and no kind.
func NewFailure(err error) Failure {
	if kind, ok := KindOf(err); ok {
		return Failure{Error: kind.Message(), ErrorKind: kind}
	}
	return Failure{Error: err.Error()}
}
