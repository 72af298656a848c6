// Package extract provides text extraction from uploaded documents and web pages.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor extracts plain text from document payloads.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFile reads the file at path and returns its text content.
func (e *Extractor) ExtractFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Only the formats the
// upload contract admits are handled; anything else is an error.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".txt", "":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("no extractor for %q", ext)
	}
}
