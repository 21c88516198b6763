package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps the original email attachment so a flagged invoice can
// always be reviewed against the document it was extracted from. Documents
// are named by the caller but typed by the store: Save appends a filename
// extension derived from the attachment content type, and the extension is
// how the content type is recovered when the document is served back.
type Storage interface {
	// Save writes a document under name, choosing a filename extension
	// from the attachment content type, and returns the stored filename.
	Save(name string, contentType string, data []byte) (string, error)

	// Get retrieves a document by path
	Get(path string) ([]byte, error)

	// Delete removes a document
	Delete(path string) error
}

// LocalStorage implements the Storage interface using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save writes a document to local storage under name plus the extension
// for its content type
func (l *LocalStorage) Save(name string, contentType string, data []byte) (string, error) {
	filename := name + documentExt(contentType)
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing document: %w", err)
	}
	return filename, nil
}

// Get retrieves a document from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	fullPath := filepath.Join(l.basePath, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return data, nil
}

// Delete removes a document from local storage
func (l *LocalStorage) Delete(path string) error {
	fullPath := filepath.Join(l.basePath, path)
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// documentExt picks a storage filename extension from the attachment type.
// Unrecognized types get no extension rather than failing the save.
func documentExt(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/heic", "image/heif":
		return ".heic"
	default:
		return ""
	}
}

// documentContentType recovers the content type of a stored document from
// its filename extension.
func documentContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".heic", ".heif":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
