package corpus

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

var textExtensions = map[string]bool{".txt": true, ".html": true, ".htm": true}

// LoadTexts reads every text and HTML file in dir, sorted by name, and
// attaches metadata when metadataPath names an existing file.
func LoadTexts(dir, metadataPath string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: text directory %s", internalerr.ErrNotFound, dir)
	}
	if err != nil {
		return nil, err
	}

	var meta []Metadata
	if metadataPath != "" {
		meta, err = ReadMetadata(metadataPath)
		switch {
		case errors.Is(err, internalerr.ErrNotFound):
			log.Printf("metadata file %s not found; documents will have no metadata", metadataPath)
		case err != nil:
			return nil, err
		}
	}
	index := newMetadataIndex(meta)

	var names []string
	for _, e := range entries {
		if !e.IsDir() && textExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	var unmatched []string
	for _, name := range names {
		raw, err := readText(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		d := Document{ID: stem(name), Filename: name, RawText: raw, CleanedText: CleanText(raw)}
		if m, ok := index.lookup(d.ID, name); ok {
			d.Author, d.Year, d.Title, d.Source = m.Author, m.Year, m.Title, m.Source
		} else if meta != nil {
			unmatched = append(unmatched, d.ID)
		}
		docs = append(docs, d)
	}

	if len(docs) == 0 {
		log.Printf("no text files found in %s", dir)
	}
	if meta != nil && len(docs) > 0 {
		log.Printf("metadata matched for %d/%d documents", len(docs)-len(unmatched), len(docs))
		if len(unmatched) > 0 {
			shown := unmatched
			suffix := ""
			if len(shown) > 10 {
				shown, suffix = shown[:10], "..."
			}
			log.Printf("missing metadata for documents: %s%s", strings.Join(shown, ", "), suffix)
		}
	}
	return docs, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.ToValidUTF8(string(data), "")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return htmlText(text), nil
	}
	return text, nil
}

// htmlText returns the visible text of an HTML document.
func htmlText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "head") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(buf.String())
}

type metadataIndex struct {
	byID       map[string]Metadata
	byFilename map[string]Metadata
}

// newMetadataIndex keeps the first row for each normalized key.
func newMetadataIndex(rows []Metadata) metadataIndex {
	idx := metadataIndex{byID: make(map[string]Metadata), byFilename: make(map[string]Metadata)}
	for _, m := range rows {
		if k := NormalizeIdentifier(m.DocumentID); k != "" {
			if _, ok := idx.byID[k]; !ok {
				idx.byID[k] = m
			}
		}
		if k := NormalizeIdentifier(m.Filename); k != "" {
			if _, ok := idx.byFilename[k]; !ok {
				idx.byFilename[k] = m
			}
		}
	}
	return idx
}

func (idx metadataIndex) lookup(id, filename string) (Metadata, bool) {
	if m, ok := idx.byID[NormalizeIdentifier(id)]; ok {
		return m, true
	}
	m, ok := idx.byFilename[NormalizeIdentifier(filename)]
	return m, ok
}
