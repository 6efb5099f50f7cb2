package attachment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// allowedExtensions are the evidence file types the portal accepts: ticket
// scans, boarding passes, invoices, and photos of receipts.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".heic": true,
}

var (
	errEmptyFilename = errors.New("filename required")
	errEmptyFile     = errors.New("file is empty")
)

// ValidateFilename checks that the filename is present and has an accepted
// evidence extension.
func ValidateFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return errEmptyFilename
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("file type %q not accepted as evidence", ext)
	}
	return nil
}

// ValidateUpload checks filename, content type, and size limits for a
// server-side upload.
func ValidateUpload(filename, contentType string, size, maxBytes int64) error {
	if err := ValidateFilename(filename); err != nil {
		return err
	}
	if contentType == "" {
		return errors.New("content type required")
	}
	if size <= 0 {
		return errEmptyFile
	}
	if size > maxBytes {
		return fmt.Errorf("file exceeds %d byte limit", maxBytes)
	}
	return nil
}
