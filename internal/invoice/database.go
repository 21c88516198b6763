package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// DB defines the store operations the verification engine needs. Vendors
// and invoices live in separate buckets; email lookups are secondary-index
// style and may return multiple records.
type DB interface {
	// FindVendorsByEmail returns every vendor registered under the address.
	FindVendorsByEmail(email string) ([]*Vendor, error)

	// InsertVendor adds a vendor to the registry.
	InsertVendor(vendor *Vendor) error

	// ListVendors returns all registered vendors.
	ListVendors() ([]*Vendor, error)

	// FindInvoicesByVendorEmail returns every invoice recorded for the address.
	FindInvoicesByVendorEmail(email string) ([]*Invoice, error)

	// FindInvoicesByVendorEmailAndNumber narrows the above to one invoice number.
	FindInvoicesByVendorEmailAndNumber(email, number string) ([]*Invoice, error)

	// InsertInvoice adds a new invoice to the ledger.
	InsertInvoice(invoice *Invoice) error

	// GetInvoice retrieves an invoice by ID. Returns ErrNotFound when absent.
	GetInvoice(id string) (*Invoice, error)

	// ReplaceInvoice rewrites an existing invoice record in full.
	ReplaceInvoice(invoice *Invoice) error

	// ListInvoices returns all recorded invoices.
	ListInvoices() ([]*Invoice, error)

	// Close closes the database connection.
	Close() error
}

// DBConfig names the database file and the two buckets. Bucket names are
// configurable because deployments share one store identifier scheme across
// environments; zero values fall back to the defaults.
type DBConfig struct {
	Path           string
	VendorsBucket  string
	InvoicesBucket string
}

const (
	defaultVendorsBucket  = "vendors"
	defaultInvoicesBucket = "invoices"
)

// BoltDB implements the DB interface using BoltDB.
type BoltDB struct {
	db             *bbolt.DB
	vendorsBucket  []byte
	invoicesBucket []byte
}

// NewBoltDB opens the database file and creates the buckets if needed.
func NewBoltDB(cfg DBConfig) (*BoltDB, error) {
	if cfg.VendorsBucket == "" {
		cfg.VendorsBucket = defaultVendorsBucket
	}
	if cfg.InvoicesBucket == "" {
		cfg.InvoicesBucket = defaultInvoicesBucket
	}

	db, err := bbolt.Open(cfg.Path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	b := &BoltDB{
		db:             db,
		vendorsBucket:  []byte(cfg.VendorsBucket),
		invoicesBucket: []byte(cfg.InvoicesBucket),
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(b.vendorsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(b.invoicesBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return b, nil
}

// FindVendorsByEmail returns every vendor registered under the address.
// BoltDB has no secondary indexes, so this scans the bucket; registry sizes
// are small enough that this is fine at email-ingestion volume.
func (b *BoltDB) FindVendorsByEmail(email string) ([]*Vendor, error) {
	vendors := make([]*Vendor, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.vendorsBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var vendor Vendor
			if err := json.Unmarshal(v, &vendor); err != nil {
				return fmt.Errorf("unmarshaling vendor: %w", err)
			}
			if vendor.Email == email {
				vendors = append(vendors, &vendor)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vendors, nil
}

// InsertVendor adds a vendor to the registry.
func (b *BoltDB) InsertVendor(vendor *Vendor) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.vendorsBucket)
		data, err := json.Marshal(vendor)
		if err != nil {
			return fmt.Errorf("marshaling vendor: %w", err)
		}
		return bucket.Put([]byte(vendor.ID), data)
	})
}

// ListVendors returns all registered vendors.
func (b *BoltDB) ListVendors() ([]*Vendor, error) {
	vendors := make([]*Vendor, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.vendorsBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var vendor Vendor
			if err := json.Unmarshal(v, &vendor); err != nil {
				return fmt.Errorf("unmarshaling vendor: %w", err)
			}
			vendors = append(vendors, &vendor)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vendors, nil
}

// FindInvoicesByVendorEmail returns every invoice recorded for the address.
func (b *BoltDB) FindInvoicesByVendorEmail(email string) ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.invoicesBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var inv Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice: %w", err)
			}
			if inv.VendorEmail == email {
				invoices = append(invoices, &inv)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// FindInvoicesByVendorEmailAndNumber filters the vendor's invoices down to
// those carrying the given invoice number. Records without a number never
// match.
func (b *BoltDB) FindInvoicesByVendorEmailAndNumber(email, number string) ([]*Invoice, error) {
	all, err := b.FindInvoicesByVendorEmail(email)
	if err != nil {
		return nil, err
	}
	invoices := make([]*Invoice, 0)
	for _, inv := range all {
		if inv.InvoiceNumber != nil && *inv.InvoiceNumber == number {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

// InsertInvoice adds a new invoice to the ledger.
func (b *BoltDB) InsertInvoice(invoice *Invoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.invoicesBucket)
		data, err := json.Marshal(invoice)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		return bucket.Put([]byte(invoice.ID), data)
	})
}

// GetInvoice retrieves an invoice by ID.
func (b *BoltDB) GetInvoice(id string) (*Invoice, error) {
	var invoice *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.invoicesBucket)
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("invoice %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// ReplaceInvoice rewrites an existing invoice record in full.
func (b *BoltDB) ReplaceInvoice(invoice *Invoice) error {
	return b.InsertInvoice(invoice)
}

// ListInvoices returns all recorded invoices.
func (b *BoltDB) ListInvoices() ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.invoicesBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var inv Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice: %w", err)
			}
			invoices = append(invoices, &inv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// Close closes the database connection.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
