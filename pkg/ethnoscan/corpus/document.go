package corpus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

// Document is one ingested source text.
type Document struct {
	ID          string
	Filename    string
	Author      string
	Year        int // 0 when unknown
	Title       string
	Source      string
	RawText     string
	CleanedText string
}

// Validate checks the fields the extractor depends on.
func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: document id required", internalerr.ErrInvalidInput)
	}
	if d.Year < 0 {
		return fmt.Errorf("%w: document %s: negative year", internalerr.ErrInvalidInput, d.ID)
	}
	return nil
}

// YearString renders the year, or "" when unknown.
func (d Document) YearString() string {
	if d.Year == 0 {
		return ""
	}
	return strconv.Itoa(d.Year)
}

// Text returns the cleaned text, falling back to the raw text.
func (d Document) Text() string {
	if d.CleanedText != "" {
		return d.CleanedText
	}
	return CleanText(d.RawText)
}

// CleanText collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
