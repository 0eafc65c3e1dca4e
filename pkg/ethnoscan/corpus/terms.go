package corpus

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

// wordList is the YAML form of a term or stopword file.
type wordList struct {
	Terms []string `yaml:"terms"`
}

// LoadTerms reads the target term spellings. A missing file is an error.
func LoadTerms(path string) ([]string, error) {
	words, err := readWordList(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: term list %s", internalerr.ErrNotFound, path)
	}
	return words, err
}

// LoadStopwords reads a stopword list. A missing file yields an empty list.
func LoadStopwords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	words, err := readWordList(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("stopword file not found at %s", path)
		return nil, nil
	}
	return words, err
}

// readWordList accepts newline-delimited text or YAML with a terms list.
// Entries are trimmed, lowercased, deduplicated and sorted.
func readWordList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var wl wordList
		if err := yaml.Unmarshal(data, &wl); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrDecode, path, err)
		}
		raw = wl.Terms
	default:
		raw = strings.Split(string(data), "\n")
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Strings(out)
	return out, nil
}
