// Package extract turns uploaded files into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrExtractionFailed is returned for unreadable or corrupt files. No
	// partial text is returned with it.
	ErrExtractionFailed = errors.New("failed to extract text")

	// ErrUnsupportedFormat is returned for formats without an extractor.
	// It also matches ErrExtractionFailed.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", ErrExtractionFailed)
)

const (
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
	FormatTXT      = "txt"
	FormatMarkdown = "md"
)

type extractorFunc func(data []byte) (string, error)

var extractors = map[string]extractorFunc{
	FormatPDF:      extractPDF,
	FormatDOCX:     extractDOCX,
	FormatTXT:      extractText,
	FormatMarkdown: extractMarkdown,
}

// SupportedFormats lists the format tags Extract accepts
func SupportedFormats() []string {
	return []string{FormatPDF, FormatDOCX, FormatTXT, FormatMarkdown}
}

// NormalizeFormat maps a format tag or file extension to its canonical tag
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	switch format {
	case "markdown":
		return FormatMarkdown
	case "text":
		return FormatTXT
	}
	return format
}

// FormatFromFilename returns the canonical format tag for a file name
func FormatFromFilename(name string) string {
	return NormalizeFormat(filepath.Ext(name))
}

// IsSupported reports whether format has an extractor
func IsSupported(format string) bool {
	_, ok := extractors[NormalizeFormat(format)]
	return ok
}

// Extract returns the plain text of data, interpreted as format
func Extract(data []byte, format string) (string, error) {
	format = NormalizeFormat(format)
	extractor, ok := extractors[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	text, err := extractor(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailed, format, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s file contains no text", ErrExtractionFailed, format)
	}

	return text, nil
}

func extractText(data []byte) (string, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return text, nil
}
