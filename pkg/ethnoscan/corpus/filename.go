package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

var filenamePattern = regexp.MustCompile(`^([A-Za-z0-9'’\-.]+)_(\d{4})_(.+)$`)

// ParseFilename reads Author_YYYY_Title from a file stem.
func ParseFilename(stemName string) (Metadata, bool) {
	m := filenamePattern.FindStringSubmatch(stemName)
	if m == nil {
		return Metadata{}, false
	}
	year, _ := strconv.Atoi(m[2])
	return Metadata{
		Author: strings.TrimSpace(strings.ReplaceAll(m[1], "_", " ")),
		Year:   year,
		Title:  strings.TrimSpace(strings.ReplaceAll(m[3], "_", " ")),
	}, true
}

// MetadataFromFilenames builds metadata rows for the text files in dir.
// Files whose names do not follow the pattern are logged and skipped.
func MetadataFromFilenames(dir string) ([]Metadata, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: text directory %s", internalerr.ErrNotFound, dir)
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var out []Metadata
	for _, n := range names {
		m, ok := ParseFilename(stem(n))
		if !ok {
			log.Printf("unable to parse filename: %s", n)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// WriteMetadata writes author, year, title and source columns. An existing
// file is first copied to path + ".bak".
func WriteMetadata(path string, rows []Metadata) error {
	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", prev, 0o644); err != nil {
			return fmt.Errorf("backup metadata: %w", err)
		}
		log.Printf("existing metadata backed up to %s.bak", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write([]string{"author", "year", "title", "source"})
	for _, m := range rows {
		year := ""
		if m.Year > 0 {
			year = strconv.Itoa(m.Year)
		}
		w.Write([]string{m.Author, year, m.Title, m.Source})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("metadata written to %s (%d rows)", path, len(rows))
	return nil
}
