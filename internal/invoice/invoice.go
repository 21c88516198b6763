package invoice

import "time"

// Vendor is a trusted-vendor record. Email is the lookup key but is not
// unique: a vendor can legitimately appear more than once (e.g. separate
// billing entities behind one address). Optional fields are pointers;
// nil means the value is unknown, never "".
type Vendor struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          *string `json:"name"`
	Address       *string `json:"address"`
	TaxID         *string `json:"tax_id"`
	BankName      *string `json:"bank_name"`
	BankAccount   *string `json:"bank_account"`
	IFSCCode      *string `json:"ifsc_code"`
	RoutingNumber *string `json:"routing_number"`
}

// ExtractedInvoice is the payload delivered by the extraction step. Only
// VendorEmail is required; every other field may be nil and verification
// degrades gracefully to "unknown".
type ExtractedInvoice struct {
	VendorEmail   string  `json:"vendor_email"`
	VendorName    *string `json:"vendor_name"`
	VendorAddress *string `json:"vendor_address"`
	VendorTaxID   *string `json:"vendor_tax_id"`
	BankName      *string `json:"bank_name"`
	BankAccount   *string `json:"bank_account"`
	IFSCCode      *string `json:"ifsc_code"`
	RoutingNumber *string `json:"routing_number"`

	InvoiceNumber *string             `json:"invoice_number"`
	InvoiceDate   *string             `json:"invoice_date"`
	DueDate       *string             `json:"due_date"`
	Currency      *string             `json:"currency"`
	TotalAmount   *float64            `json:"total_amount"`
	TaxAmount     *float64            `json:"tax_amount"`
	LineItems     []ExtractedLineItem `json:"line_items"`
	Notes         *string             `json:"notes"`
	Terms         *string             `json:"terms"`
	FileURL       *string             `json:"file_url"`
}

// ExtractedLineItem is a line item as the document model reports it,
// numeric fields still numeric and possibly null.
type ExtractedLineItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
}

// LineItem is a persisted line item. All fields are display strings;
// values missing at extraction time are stored as the "-" placeholder so
// consumers always find the key present.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// VendorInfo is a snapshot of the vendor details as they appeared on the
// invoice at verification time. It is built from the incoming payload, not
// re-fetched from the registry, so later vendor edits never rewrite what
// was actually seen.
type VendorInfo struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          *string `json:"name"`
	Address       *string `json:"address"`
	TaxID         *string `json:"tax_id"`
	BankName      *string `json:"bank_name"`
	BankAccount   *string `json:"bank_account"`
	IFSCCode      *string `json:"ifsc_code"`
	RoutingNumber *string `json:"routing_number"`
}

// Invoice is a verified, persisted invoice with its risk flags embedded.
type Invoice struct {
	ID            string     `json:"id"`
	VendorEmail   string     `json:"vendor_email"`
	InvoiceNumber *string    `json:"invoice_number"`
	InvoiceDate   *string    `json:"invoice_date"`
	DueDate       *string    `json:"due_date"`
	Currency      *string    `json:"currency"`
	TotalAmount   string     `json:"total_amount"`
	TaxAmount     string     `json:"tax_amount"`
	Items         []LineItem `json:"items"`
	Notes         *string    `json:"notes"`
	Terms         *string    `json:"terms"`
	FileURL       *string    `json:"file_url"`
	Flags         Flags      `json:"flags"`
	VendorInfo    VendorInfo `json:"vendor_info"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Flags holds the risk indicators for one invoice. ItemizedInvoice is true
// when the invoice has no line items; the inverted name is kept for
// compatibility with existing consumers of the records.
type Flags struct {
	IncorrectVendorInfo bool `json:"incorrect_vendor_info"`
	DuplicateInvoice    Flag `json:"duplicate_invoice"`
	UnusualAmounts      Flag `json:"unusual_amounts"`
	ItemizedInvoice     bool `json:"itemized_invoice"`
}
