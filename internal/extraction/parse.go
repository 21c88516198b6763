package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// fromHeaderRe pulls the address out of a quoted "From: Name <addr>" line
// inside a forwarded or piped email body.
var fromHeaderRe = regexp.MustCompile(`From:.*?<([^<>]+@[^<>]+)>`)

// SenderAddress recovers the sender email from an email text body. Returns
// "" when no From: header with an angle-bracketed address is present; the
// caller falls back to the envelope sender.
func SenderAddress(textBody string) string {
	m := fromHeaderRe.FindStringSubmatch(textBody)
	if m == nil {
		return ""
	}
	return m[1]
}

// parseInvoiceJSON parses the JSON response from the document model. Models
// wrap output in markdown fences or preamble text often enough that the
// object is located by brace matching rather than trusting the raw response.
func parseInvoiceJSON(text string) (*InvoiceData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data InvoiceData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.InvoiceDate = normalizeDate(data.InvoiceDate)
	data.DueDate = normalizeDate(data.DueDate)

	return &data, nil
}

// normalizeDate reformats common date layouts to ISO 8601. Dates that match
// no known layout are passed through untouched; an unreadable date on an
// invoice is still worth keeping as-is.
func normalizeDate(date *string) *string {
	if date == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*date)
	if trimmed == "" {
		return nil
	}

	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
		"Jan 2, 2006",
		"2 Jan 2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, trimmed); err == nil {
			iso := d.Format("2006-01-02")
			return &iso
		}
	}
	return &trimmed
}
