package extraction

// InvoiceData contains the structured fields extracted from an invoice
// document. Every field is optional: the document model returns null for
// anything it cannot read, and nil is preserved so downstream verification
// can tell "missing" from "empty".
type InvoiceData struct {
	InvoiceNumber *string  `json:"invoice_number"`
	InvoiceDate   *string  `json:"invoice_date"` // ISO 8601 format
	DueDate       *string  `json:"due_date"`
	Currency      *string  `json:"currency"`
	TotalAmount   *float64 `json:"total_amount"`
	TaxAmount     *float64 `json:"tax_amount"`

	VendorName          *string `json:"vendor_name"`
	VendorAddress       *string `json:"vendor_address"`
	VendorTaxID         *string `json:"vendor_tax_id"`
	VendorBankName      *string `json:"vendor_bank_name"`
	VendorBankAccount   *string `json:"vendor_bank_account"`
	VendorIFSCCode      *string `json:"vendor_ifsc_code"`
	VendorRoutingNumber *string `json:"vendor_routing_number"`

	LineItems []LineItemData `json:"line_items"`
	Notes     *string        `json:"notes"`
	Terms     *string        `json:"terms"`
}

// LineItemData is one extracted line item with numeric fields still numeric.
type LineItemData struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
}

// Extractor defines the interface for invoice field extraction
type Extractor interface {
	// ExtractInvoice analyzes an invoice document (PDF or image) and
	// extracts structured fields
	ExtractInvoice(document []byte, contentType string) (*InvoiceData, error)
	// Close closes the extractor and releases resources
	Close() error
}
