package corpus

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

// Metadata is one row of the metadata CSV.
type Metadata struct {
	DocumentID string
	Filename   string
	Author     string
	Year       int
	Title      string
	Source     string
}

type fallbackEncoding struct {
	name string
	enc  encoding.Encoding // nil for plain UTF-8
}

// Tried in order; Latin-1 decodes any byte sequence.
var fallbackEncodings = []fallbackEncoding{
	{"utf-8", nil},
	{"utf-8-sig", unicode.UTF8BOM},
	{"cp1251", charmap.Windows1251},
	{"windows-1252", charmap.Windows1252},
	{"latin-1", charmap.ISO8859_1},
}

var requiredMetadataColumns = []string{"author", "year", "title"}

// ReadMetadata parses a metadata CSV, trying several encodings and
// delimiters. Columns author, year and title are required.
func ReadMetadata(path string) ([]Metadata, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: metadata file %s", internalerr.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, fe := range fallbackEncodings {
		text, err := decode(raw, fe)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", fe.name, err)
			continue
		}
		records, err := parseDelimited(text)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", fe.name, err)
			continue
		}
		return metadataRows(path, records)
	}
	return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrDecode, path, lastErr)
}

func decode(raw []byte, fe fallbackEncoding) (string, error) {
	if fe.enc == nil {
		if !utf8.Valid(raw) {
			return "", errors.New("invalid utf-8")
		}
		return string(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))), nil
	}
	out, err := fe.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", errors.New("undefined byte")
	}
	return string(out), nil
}

// sniffDelimiter picks the candidate that occurs most often in the header.
func sniffDelimiter(text string) rune {
	header, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func parseDelimited(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func metadataRows(path string, records [][]string) ([]Metadata, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: metadata file %s is empty", internalerr.ErrInvalidInput, path)
	}
	idx := make(map[string]int)
	for i, h := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range requiredMetadataColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: metadata file %s is missing required columns: %s",
			internalerr.ErrInvalidInput, path, strings.Join(missing, ", "))
	}
	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	out := make([]Metadata, 0, len(records)-1)
	for _, rec := range records[1:] {
		m := Metadata{
			DocumentID: field(rec, "document_id"),
			Filename:   field(rec, "filename"),
			Author:     field(rec, "author"),
			Year:       parseYear(field(rec, "year")),
			Title:      field(rec, "title"),
			Source:     field(rec, "source"),
		}
		if m.DocumentID == "" {
			if m.Filename != "" {
				m.DocumentID = stem(m.Filename)
			} else {
				m.DocumentID = slug(m)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// parseYear accepts integers and integral floats such as "1763.0".
func parseYear(s string) int {
	if s == "" {
		return 0
	}
	if y, err := strconv.Atoi(s); err == nil && y > 0 {
		return y
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f == float64(int(f)) {
		return int(f)
	}
	return 0
}

func slug(m Metadata) string {
	var parts []string
	if a := strings.ReplaceAll(m.Author, " ", ""); a != "" {
		parts = append(parts, a)
	}
	if m.Year > 0 {
		parts = append(parts, strconv.Itoa(m.Year))
	}
	if t := strings.ReplaceAll(m.Title, " ", ""); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, "_")
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// NormalizeIdentifier keeps only letters and digits, lowercased, so
// "Bell_1763_Travels" and "Bell 1763 Travels" compare equal.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(nonWord.ReplaceAllString(s, ""))
}
