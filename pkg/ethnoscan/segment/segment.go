// Package segment splits document text into sentences.
package segment

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// Splitter splits text into sentences, in order.
type Splitter interface {
	Split(text string) []string
}

// Prose segments with the prose punkt model.
type Prose struct{}

// Split returns the trimmed, non-empty sentences of text. Non-blank input
// always yields at least one sentence.
func (Prose) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		return []string{strings.TrimSpace(text)}
	}
	var out []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = []string{strings.TrimSpace(text)}
	}
	return out
}

// Func adapts a function to Splitter.
type Func func(text string) []string

func (f Func) Split(text string) []string { return f(text) }
