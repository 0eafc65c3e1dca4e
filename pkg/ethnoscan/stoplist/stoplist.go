package stoplist

import (
	"sort"
	"strings"
)

// Manager holds a case-insensitive stopword set.
type Manager struct {
	stops map[string]Source
}

// Source records where a stopword came from.
type Source string

const (
	FromFile   Source = "file"
	FromConfig Source = "config"
)

// NewManager creates a new stoplist manager
func NewManager(initialStops []string) *Manager {
	m := &Manager{stops: make(map[string]Source, len(initialStops))}
	for _, s := range initialStops {
		m.Add(s, FromFile)
	}
	return m
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	if m == nil {
		return false
	}
	_, ok := m.stops[strings.ToLower(token)]
	return ok
}

// Add adds a token; blank tokens are ignored.
func (m *Manager) Add(token string, src Source) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return
	}
	m.stops[token] = src
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, strings.ToLower(strings.TrimSpace(token)))
}

// Len returns the number of stopwords.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.stops)
}

// All returns all stopwords, sorted.
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}
