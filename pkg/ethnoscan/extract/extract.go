// Package extract finds term occurrences in documents and captures a window
// of surrounding sentences for each one.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/corpus"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/segment"
)

// DefaultWindow is the number of sentences kept on each side of a match.
const DefaultWindow = 3

// Context is one term occurrence with its sentence window.
type Context struct {
	ID                  string
	DocumentID          string
	Filename            string
	Author              string
	Year                string
	Title               string
	Source              string
	MatchedTerm         string
	NormalizedTerm      string
	SentenceIndex       int
	OccurrenceIndex     int
	TargetSentence      string
	PreContext          string
	PostContext         string
	WindowText          string
	WindowSentenceCount int
}

// Extractor scans documents for terms.
type Extractor struct {
	Splitter segment.Splitter
	Window   int
}

// New returns an Extractor using prose segmentation.
func New(window int) *Extractor {
	if window < 0 {
		window = DefaultWindow
	}
	return &Extractor{Splitter: segment.Prose{}, Window: window}
}

// Pattern compiles a case-insensitive whole-word alternation of terms.
// Terms are matched literally. It returns nil for an empty term list.
func Pattern(terms []string) *regexp.Regexp {
	var alts []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			alts = append(alts, regexp.QuoteMeta(t))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(alts, "|") + `)\b`)
}

// ContextID hashes the fields that identify an occurrence.
func ContextID(documentID string, sentenceIndex int, matched, window string) string {
	sum := sha256.Sum256([]byte(documentID + "|" + strconv.Itoa(sentenceIndex) + "|" + matched + "|" + window))
	return hex.EncodeToString(sum[:])
}

// Extract returns every occurrence of terms in docs, in document order then
// position order. It only fails on cancellation or an invalid document.
func (e *Extractor) Extract(ctx context.Context, docs []corpus.Document, terms []string) ([]Context, error) {
	re := Pattern(terms)
	if re == nil {
		log.Printf("extract: empty term list, nothing to match")
		return nil, nil
	}
	var out []Context
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		out = append(out, e.extractDoc(doc, re)...)
	}
	return out, nil
}

func (e *Extractor) extractDoc(doc corpus.Document, re *regexp.Regexp) []Context {
	text := doc.Text()
	if text == "" {
		return nil
	}
	splitter := e.Splitter
	if splitter == nil {
		splitter = segment.Prose{}
	}
	w := max(e.Window, 0)
	sentences := splitter.Split(text)
	var out []Context
	occurrence := 0
	for idx, sentence := range sentences {
		matches := re.FindAllStringSubmatch(sentence, -1)
		if len(matches) == 0 {
			continue
		}
		start := max(idx-w, 0)
		stop := min(idx+w+1, len(sentences))
		window := strings.Join(sentences[start:stop], " ")
		pre := strings.Join(sentences[start:idx], " ")
		post := strings.Join(sentences[idx+1:stop], " ")
		for _, m := range matches {
			occurrence++
			out = append(out, Context{
				ID:                  ContextID(doc.ID, idx, m[0], window),
				DocumentID:          doc.ID,
				Filename:            doc.Filename,
				Author:              doc.Author,
				Year:                doc.YearString(),
				Title:               doc.Title,
				Source:              doc.Source,
				MatchedTerm:         m[0],
				NormalizedTerm:      strings.ToLower(m[1]),
				SentenceIndex:       idx,
				OccurrenceIndex:     occurrence,
				TargetSentence:      sentence,
				PreContext:          pre,
				PostContext:         post,
				WindowText:          window,
				WindowSentenceCount: stop - start,
			})
		}
	}
	return out
}
