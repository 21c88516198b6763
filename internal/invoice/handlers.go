package invoice

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error payload with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// InboundEmail is the webhook payload delivered by the inbound mail
// provider: the plain-text body plus base64-encoded attachments.
type InboundEmail struct {
	From        string              `json:"from"`
	TextBody    string              `json:"text_body"`
	Attachments []InboundAttachment `json:"attachments"`
}

// InboundAttachment is one attached document on an inbound email.
type InboundAttachment struct {
	Name        string `json:"name"`
	Content     string `json:"content"` // base64
	ContentType string `json:"content_type"`
}

// handleInboundEmail runs the full pipeline for one emailed invoice:
// sender recovery, document storage, extraction, verification.
func (s *Server) handleInboundEmail(w http.ResponseWriter, r *http.Request) {
	var email InboundEmail
	if err := json.NewDecoder(r.Body).Decode(&email); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if email.TextBody == "" || len(email.Attachments) == 0 {
		jsonError(w, "Missing required fields in request body", http.StatusBadRequest)
		return
	}

	// Only the first attachment is the invoice; signatures and logos
	// ride along as extra attachments on real vendor emails.
	att := email.Attachments[0]
	document, err := base64.StdEncoding.DecodeString(att.Content)
	if err != nil {
		jsonError(w, "Attachment content is not valid base64", http.StatusBadRequest)
		return
	}

	inv, err := s.service.ProcessInbound(email.From, email.TextBody, document, att.ContentType)
	if err != nil {
		slog.Error("Error processing inbound email", "from", email.From, "error", err)
		if errors.Is(err, ErrMissingVendorEmail) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(inv); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleVerifyInvoice is the direct ingestion trigger: an already-extracted
// invoice payload in, the computed flags out.
func (s *Server) handleVerifyInvoice(w http.ResponseWriter, r *http.Request) {
	var ext ExtractedInvoice
	if err := json.NewDecoder(r.Body).Decode(&ext); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inv, err := s.service.Verify(&ext)
	if err != nil {
		if errors.Is(err, ErrMissingVendorEmail) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Error verifying invoice", "vendor_email", ext.VendorEmail, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	response := map[string]interface{}{
		"message":    "Invoice verification completed",
		"invoice_id": inv.ID,
		"flags":      inv.Flags,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListInvoices returns all recorded invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(invoices); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Invoice ID required", http.StatusBadRequest)
		return
	}
	inv, err := s.service.GetInvoice(id)
	if err != nil {
		corsError(w, "Invoice not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(inv); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetInvoiceFile returns the stored source document for an invoice
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Invoice ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetInvoiceDocument(id)
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleUnflagInvoice clears the flags on an existing invoice. Unknown IDs
// are a 404, not a 500: unflagging something already gone is expected.
func (s *Server) handleUnflagInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Invoice ID required", http.StatusBadRequest)
		return
	}

	inv, err := s.service.Unflag(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			jsonError(w, "Invoice not found", http.StatusNotFound)
			return
		}
		slog.Error("Error unflagging invoice", "id", id, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	response := map[string]interface{}{
		"message": "Invoice has been unflagged",
		"invoice": inv,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListVendors returns all registered vendors
func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.service.ListVendors()
	if err != nil {
		slog.Error("Error listing vendors", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(vendors); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleAddVendor registers a vendor
func (s *Server) handleAddVendor(w http.ResponseWriter, r *http.Request) {
	var vendor Vendor
	if err := json.NewDecoder(r.Body).Decode(&vendor); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.service.AddVendor(&vendor); err != nil {
		if errors.Is(err, ErrMissingVendorEmail) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Error adding vendor", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(vendor); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
