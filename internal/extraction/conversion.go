package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// invoiceExtractPrompt is the shared prompt used by all model providers.
// The field list mirrors the persisted invoice schema; the model is told to
// return null for anything it cannot read so missing values survive as
// missing instead of being invented.
const invoiceExtractPrompt = `You are an AI invoice parser. You are looking at one page of an invoice document. Carefully read all text in the image and extract the following fields:

- invoice_number: the invoice or bill number, exactly as printed
- invoice_date and due_date: in ISO 8601 format (YYYY-MM-DD)
- currency: the ISO currency code or symbol used
- total_amount and tax_amount: numeric values, not strings (e.g. 1042.50)
- vendor_name, vendor_address: the issuing business, usually in the header
- vendor_tax_id: GSTIN, VAT or tax registration number if printed
- vendor_bank_name, vendor_bank_account, vendor_ifsc_code, vendor_routing_number: the payment details block, often near the footer
- line_items: array of objects with description (string), quantity, unit_price and amount (numbers)
- notes and terms: free-text notes and terms & conditions sections

Return ONLY valid JSON in this exact format:
{
  "invoice_number": "INV-001",
  "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "currency": "USD",
  "total_amount": 0.00,
  "tax_amount": 0.00,
  "vendor_name": "...",
  "vendor_address": "...",
  "vendor_tax_id": "...",
  "vendor_bank_name": "...",
  "vendor_bank_account": "...",
  "vendor_ifsc_code": "...",
  "vendor_routing_number": "...",
  "line_items": [{"description": "...", "quantity": 0, "unit_price": 0.00, "amount": 0.00}],
  "notes": "...",
  "terms": "..."
}

Important:
- If a field is not present on the document, use null for that field
- Amounts must be numbers, not strings
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// pdfToImage renders the first page of a PDF as a PNG image. Invoices are
// overwhelmingly single-page; the fields we care about are on page one.
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// imageToPNG converts any supported image format to PNG. HEIC/HEIF (phone
// photos of paper invoices) needs its own decoder since the standard image
// package does not support it.
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks the ftyp box brands HEIC containers start with.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareDocument converts an invoice document (PDF or any supported image)
// to PNG for the vision model. Returns the PNG bytes.
func prepareDocument(document []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "application/pdf" // emailed invoices are usually PDFs
	}

	if mimeType == "application/pdf" {
		pngData, err := pdfToImage(document)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, nil
	}
	if mimeType != "image/png" || isHEICFormat(document) {
		pngData, err := imageToPNG(document, mimeType)
		if err != nil {
			return nil, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, nil
	}
	return document, nil
}
