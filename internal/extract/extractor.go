// Package extract provides text extraction from the document formats the
// pipeline ingests: PDF, DOCX, XLSX, and plain text.
package extract

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/finsight/finsight/internal/models"
)

// supported maps a lowercase extension (with dot) to its extractor.
var supported = map[string]func([]byte) (string, error){
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractXLSX,
	".txt":  extractPlain,
	".md":   extractPlain,
	".csv":  extractPlain,
}

// SupportedExtensions returns the recognized file extensions, without dots.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supported))
	for ext := range supported {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}

// IsSupported reports whether ext (with or without dot, any case) is a
// recognized document format.
func IsSupported(ext string) bool {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	_, ok := supported[strings.ToLower(ext)]
	return ok
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content. An
// unrecognized extension or an unreadable file yields an ExtractionError.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &models.ExtractionError{Path: path, Err: err}
	}
	text, err := e.ExtractBytes(content, filepath.Ext(path))
	if err != nil {
		if _, ok := err.(*models.ExtractionError); ok {
			return "", err
		}
		return "", &models.ExtractionError{Path: path, Err: err}
	}
	return text, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext may include the leading dot and is matched case-insensitively.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	fn, ok := supported[strings.ToLower(ext)]
	if !ok {
		return "", models.Validationf("unsupported file type %q (supported: %s)",
			ext, strings.Join(SupportedExtensions(), ", "))
	}
	return fn(content)
}
