package invoice

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trustbill/trustbill/internal/extraction"
)

// ErrNotFound is returned when a requested invoice does not exist. It is an
// expected outcome on the unflag path, not a fault.
var ErrNotFound = errors.New("invoice not found")

// ErrMissingVendorEmail is returned when a payload arrives without the one
// field verification cannot run without.
var ErrMissingVendorEmail = errors.New("vendor email is required")

// missingValue is stored in place of numeric fields the extraction step
// could not read, so record consumers always find the key present.
const missingValue = "-"

// Percentage deviation from the vendor's historical average above which a
// total is considered unusual. The boundary is exclusive.
const deviationThresholdPct = 30

// IDGenerator generates unique IDs for invoices and vendor snapshots
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service is the verification engine. It owns no state between invocations:
// every verification is a function of the incoming payload plus the current
// store contents.
type Service struct {
	db          DB
	storage     Storage
	extractor   extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage, extractor extraction.Extractor) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, extractor extraction.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Verify runs the risk checks against one extracted invoice and records the
// normalized result in the ledger. Checks run in a fixed order: vendor
// identity first, and if that fails the duplicate and unusual-amount checks
// are skipped entirely rather than stacked on top of an already-suspect
// invoice, so those flags stay unevaluated.
func (s *Service) Verify(ext *ExtractedInvoice) (*Invoice, error) {
	if strings.TrimSpace(ext.VendorEmail) == "" {
		return nil, ErrMissingVendorEmail
	}

	var flags Flags

	vendors, err := s.db.FindVendorsByEmail(ext.VendorEmail)
	if err != nil {
		return nil, fmt.Errorf("looking up vendors: %w", err)
	}
	flags.IncorrectVendorInfo = len(vendors) == 0 || changedBankDetails(vendors, ext)

	if !flags.IncorrectVendorInfo {
		flags.DuplicateInvoice, err = s.duplicateInvoice(ext)
		if err != nil {
			return nil, err
		}
		flags.UnusualAmounts, err = s.unusualAmounts(ext)
		if err != nil {
			return nil, err
		}
	}

	flags.ItemizedInvoice = len(ext.LineItems) == 0

	inv := s.buildRecord(ext, flags)
	if err := s.db.InsertInvoice(inv); err != nil {
		return nil, fmt.Errorf("storing invoice: %w", err)
	}

	slog.Info("Invoice verified",
		"id", inv.ID,
		"vendor_email", inv.VendorEmail,
		"incorrect_vendor_info", flags.IncorrectVendorInfo,
		"duplicate_invoice", flags.DuplicateInvoice,
		"unusual_amounts", flags.UnusualAmounts,
		"itemized_invoice", flags.ItemizedInvoice,
	)
	return inv, nil
}

// changedBankDetails reports whether the invoice's banking tuple differs
// from any registered vendor's. Comparison is exact and case-sensitive; a
// value present on one side and missing on the other counts as a mismatch.
func changedBankDetails(vendors []*Vendor, ext *ExtractedInvoice) bool {
	for _, v := range vendors {
		if !strPtrEq(v.BankName, ext.BankName) ||
			!strPtrEq(v.BankAccount, ext.BankAccount) ||
			!strPtrEq(v.IFSCCode, ext.IFSCCode) ||
			!strPtrEq(v.RoutingNumber, ext.RoutingNumber) {
			return true
		}
	}
	return false
}

// duplicateInvoice reports whether this vendor already has an invoice with
// the same number. Invoice numbers are vendor-scoped; the same number from
// a different vendor is not a duplicate, and an invoice without a number
// cannot match anything.
func (s *Service) duplicateInvoice(ext *ExtractedInvoice) (Flag, error) {
	if ext.InvoiceNumber == nil {
		return FlagFalse, nil
	}
	matches, err := s.db.FindInvoicesByVendorEmailAndNumber(ext.VendorEmail, *ext.InvoiceNumber)
	if err != nil {
		return FlagNotEvaluated, fmt.Errorf("looking up duplicate invoices: %w", err)
	}
	return flagOf(len(matches) > 0), nil
}

// unusualAmounts compares the new total against the mean of the vendor's
// prior totals. No prior invoices means no baseline, so nothing is unusual.
// Prior invoices whose stored totals do not parse as numbers are excluded;
// if none parse at all the check cannot run and the flag stays unevaluated.
func (s *Service) unusualAmounts(ext *ExtractedInvoice) (Flag, error) {
	prior, err := s.db.FindInvoicesByVendorEmail(ext.VendorEmail)
	if err != nil {
		return FlagNotEvaluated, fmt.Errorf("looking up prior invoices: %w", err)
	}
	if len(prior) == 0 {
		return FlagFalse, nil
	}

	sum := decimal.Zero
	count := 0
	for _, p := range prior {
		amount, err := decimal.NewFromString(p.TotalAmount)
		if err != nil {
			continue
		}
		sum = sum.Add(amount)
		count++
	}
	if count == 0 {
		return FlagNotEvaluated, nil
	}

	mean := sum.Div(decimal.NewFromInt(int64(count)))
	if !mean.IsPositive() {
		// No meaningful baseline to deviate from.
		return FlagFalse, nil
	}

	current := decimal.Zero
	if ext.TotalAmount != nil {
		current = decimal.NewFromFloat(*ext.TotalAmount)
	}
	deviationPct := current.Sub(mean).Abs().Div(mean).Mul(decimal.NewFromInt(100))
	return flagOf(deviationPct.GreaterThan(decimal.NewFromInt(deviationThresholdPct))), nil
}

// buildRecord normalizes the extracted payload into the persisted shape and
// freezes the vendor snapshot from the fields the invoice itself carried.
func (s *Service) buildRecord(ext *ExtractedInvoice, flags Flags) *Invoice {
	items := make([]LineItem, 0, len(ext.LineItems))
	for _, li := range ext.LineItems {
		items = append(items, LineItem{
			Description: textOrPlaceholder(li.Description),
			Quantity:    amountString(li.Quantity),
			UnitPrice:   amountString(li.UnitPrice),
			Amount:      amountString(li.Amount),
		})
	}

	return &Invoice{
		ID:            s.idGenerator.Generate(),
		VendorEmail:   ext.VendorEmail,
		InvoiceNumber: ext.InvoiceNumber,
		InvoiceDate:   ext.InvoiceDate,
		DueDate:       ext.DueDate,
		Currency:      ext.Currency,
		TotalAmount:   amountString(ext.TotalAmount),
		TaxAmount:     amountString(ext.TaxAmount),
		Items:         items,
		Notes:         ext.Notes,
		Terms:         ext.Terms,
		FileURL:       ext.FileURL,
		Flags:         flags,
		VendorInfo: VendorInfo{
			ID:            s.idGenerator.Generate(),
			Email:         ext.VendorEmail,
			Name:          ext.VendorName,
			Address:       ext.VendorAddress,
			TaxID:         ext.VendorTaxID,
			BankName:      ext.BankName,
			BankAccount:   ext.BankAccount,
			IFSCCode:      ext.IFSCCode,
			RoutingNumber: ext.RoutingNumber,
		},
		CreatedAt: s.timeSource.Now(),
	}
}

// Unflag bulk-resets every flag on an existing invoice to false. It is a
// manual override, not a re-verification: even checks that were skipped at
// verification time come back false, so a reviewed invoice reads clean
// everywhere. Nothing else on the record changes.
func (s *Service) Unflag(id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	inv.Flags = Flags{
		IncorrectVendorInfo: false,
		DuplicateInvoice:    FlagFalse,
		UnusualAmounts:      FlagFalse,
		ItemizedInvoice:     false,
	}

	if err := s.db.ReplaceInvoice(inv); err != nil {
		return nil, fmt.Errorf("updating invoice: %w", err)
	}

	slog.Info("Invoice unflagged", "id", id)
	return inv, nil
}

// ProcessInbound handles one inbound email: recover the sender address,
// keep the attached document, extract structured fields from it and verify
// the result. The saved document is removed again if anything downstream
// fails, so a rejected email leaves nothing behind.
func (s *Service) ProcessInbound(from, textBody string, document []byte, contentType string) (*Invoice, error) {
	sender := extraction.SenderAddress(textBody)
	if sender == "" {
		sender = from
	}
	if strings.TrimSpace(sender) == "" {
		return nil, ErrMissingVendorEmail
	}

	name := fmt.Sprintf("invoice-%s", s.idGenerator.Generate())
	savedPath, err := s.storage.Save(name, contentType, document)
	if err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	data, err := s.extractor.ExtractInvoice(document, contentType)
	if err != nil {
		slog.Error("Failed to extract invoice",
			"sender", sender,
			"content_type", contentType,
			"document_size", len(document),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("extracting invoice: %w", err)
	}

	ext := fromExtraction(data)
	ext.VendorEmail = sender
	ext.FileURL = &savedPath

	inv, err := s.Verify(ext)
	if err != nil {
		s.storage.Delete(savedPath)
		return nil, err
	}
	return inv, nil
}

// fromExtraction maps the document model's output onto the verification
// payload. The sender address and document location are filled in by the
// caller; they come from the email, not the document.
func fromExtraction(data *extraction.InvoiceData) *ExtractedInvoice {
	items := make([]ExtractedLineItem, 0, len(data.LineItems))
	for _, li := range data.LineItems {
		items = append(items, ExtractedLineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      li.Amount,
		})
	}
	return &ExtractedInvoice{
		VendorName:    data.VendorName,
		VendorAddress: data.VendorAddress,
		VendorTaxID:   data.VendorTaxID,
		BankName:      data.VendorBankName,
		BankAccount:   data.VendorBankAccount,
		IFSCCode:      data.VendorIFSCCode,
		RoutingNumber: data.VendorRoutingNumber,
		InvoiceNumber: data.InvoiceNumber,
		InvoiceDate:   data.InvoiceDate,
		DueDate:       data.DueDate,
		Currency:      data.Currency,
		TotalAmount:   data.TotalAmount,
		TaxAmount:     data.TaxAmount,
		LineItems:     items,
		Notes:         data.Notes,
		Terms:         data.Terms,
	}
}

// AddVendor registers a vendor, generating an ID when the caller did not
// supply one.
func (s *Service) AddVendor(vendor *Vendor) error {
	if strings.TrimSpace(vendor.Email) == "" {
		return ErrMissingVendorEmail
	}
	if vendor.ID == "" {
		vendor.ID = s.idGenerator.Generate()
	}
	if err := s.db.InsertVendor(vendor); err != nil {
		return fmt.Errorf("storing vendor: %w", err)
	}
	return nil
}

// ListVendors returns all registered vendors.
func (s *Service) ListVendors() ([]*Vendor, error) {
	vendors, err := s.db.ListVendors()
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}
	return vendors, nil
}

// ListInvoices returns all recorded invoices.
func (s *Service) ListInvoices() ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoice retrieves an invoice by ID.
func (s *Service) GetInvoice(id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

// GetInvoiceDocument retrieves the stored source document for an invoice
// along with its content type.
func (s *Service) GetInvoiceDocument(id string) ([]byte, string, error) {
	inv, err := s.GetInvoice(id)
	if err != nil {
		return nil, "", err
	}
	if inv.FileURL == nil {
		return nil, "", fmt.Errorf("invoice %s has no source document: %w", id, ErrNotFound)
	}
	data, err := s.storage.Get(*inv.FileURL)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice document: %w", err)
	}
	return data, documentContentType(*inv.FileURL), nil
}

// strPtrEq compares two optional strings. Two missing values are equal;
// missing versus present is not.
func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// amountString renders a numeric field for storage. Missing values become
// the placeholder rather than being dropped.
func amountString(v *float64) string {
	if v == nil {
		return missingValue
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// textOrPlaceholder renders an optional text field for storage.
func textOrPlaceholder(v *string) string {
	if v == nil {
		return missingValue
	}
	return *v
}
