// Package annotate enriches text through an external completion service.
// Every request goes through a cache.Store; failures degrade to sentinel
// values instead of errors.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache"
)

// Sentinel values stored in annotation cells.
const (
	Unavailable = "unavailable"
	NoData      = "нет данных"
)

// Completer is the external text-completion capability.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Options tunes retry behaviour and prompts.
type Options struct {
	Attempts int
	Delay    time.Duration
	Timeout  time.Duration

	// CacheFailures stores Unavailable after the attempts are exhausted so
	// the same input is not retried by later runs. Such failures are
	// permanent: a rerun selects the cell but gets the cached sentinel back
	// without a request, even when forced. Disable it (cache_failures: false)
	// to let reruns recover failed cells.
	CacheFailures bool

	Group    string
	Language string

	// Sleep waits between attempts. Tests replace it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Attempts:      3,
		Delay:         3 * time.Second,
		Timeout:       40 * time.Second,
		CacheFailures: true,
		Group:         "Kalmyks",
		Language:      "Russian",
	}
}

// Annotator issues cached annotation requests.
type Annotator struct {
	store     cache.Store
	completer Completer
	opts      Options
	prompts   prompter

	flight   singleflight.Group
	calls    atomic.Int64
	warnOnce sync.Once
}

// New returns an Annotator. A nil completer means no credentials are
// configured: every cache miss yields Unavailable without a request.
func New(store cache.Store, completer Completer, opts Options) *Annotator {
	def := DefaultOptions()
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Group == "" {
		opts.Group = def.Group
	}
	if opts.Language == "" {
		opts.Language = def.Language
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Annotator{
		store:     store,
		completer: completer,
		opts:      opts,
		prompts:   prompter{group: opts.Group, language: opts.Language},
	}
}

// Calls returns the number of external requests attempted so far.
func (a *Annotator) Calls() int64 { return a.calls.Load() }

// Annotate runs task over text and returns the cached or fresh result.
func (a *Annotator) Annotate(ctx context.Context, task Task, text string) string {
	if !task.valid() {
		log.Printf("annotate: unknown task")
		return Unavailable
	}
	if task == Translate && untranslatable(text) {
		return NoData
	}
	return a.request(ctx, task, text, a.prompts.prompt(task, text))
}

// Classify returns the raw semantic category reply for text.
func (a *Annotator) Classify(ctx context.Context, text string) string {
	return a.Annotate(ctx, Classify, text)
}

// Sentiment returns the raw attitude reply for text.
func (a *Annotator) Sentiment(ctx context.Context, text string) string {
	return a.Annotate(ctx, Sentiment, text)
}

// Summarize returns a one or two sentence English summary of text.
func (a *Annotator) Summarize(ctx context.Context, text string) string {
	return a.Annotate(ctx, Summarize, text)
}

// Translate maps empty input and sentinels to NoData without a request.
func (a *Annotator) Translate(ctx context.Context, text string) string {
	return a.Annotate(ctx, Translate, text)
}

// Commentary sends prompt as-is and caches under the prompt text.
func (a *Annotator) Commentary(ctx context.Context, prompt string) string {
	return a.request(ctx, Commentary, prompt, prompt)
}

// InterpretTable asks for a short scholarly reading of a table preview.
func (a *Annotator) InterpretTable(ctx context.Context, title, sample string) string {
	return a.request(ctx, InterpretTable, title+":"+sample, a.prompts.tablePrompt(title, sample))
}

// InterpretVisual asks for an interpretation of a chart, in the output language.
func (a *Annotator) InterpretVisual(ctx context.Context, title, hint, sample string) string {
	sample = truncate(sample, visualSampleLimit)
	payload := fmt.Sprintf("%s|%s|%s", title, hint, sample)
	return a.request(ctx, InterpretVisual, payload, a.prompts.visualPrompt(title, hint, sample))
}

func untranslatable(text string) bool {
	v := strings.ToLower(strings.TrimSpace(text))
	return v == "" || v == Unavailable || v == "none" || v == NoData
}

func (a *Annotator) request(ctx context.Context, task Task, text, prompt string) string {
	key := cache.Key(task.String(), text)
	if v, ok := a.lookup(ctx, key); ok {
		return v
	}
	v, _, _ := a.flight.Do(key, func() (interface{}, error) {
		if v, ok := a.lookup(ctx, key); ok {
			return v, nil
		}
		if a.completer == nil {
			a.warnOnce.Do(func() { log.Printf("annotate: no API credentials, annotations degrade to %q", Unavailable) })
			return Unavailable, nil
		}
		result, err := a.call(ctx, task, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return Unavailable, nil
			}
			if !a.opts.CacheFailures {
				return Unavailable, nil
			}
			result = Unavailable
		}
		if perr := a.store.Put(ctx, key, result); perr != nil {
			log.Printf("annotate %s: cache write: %v", task, perr)
		}
		return result, nil
	})
	return v.(string)
}

func (a *Annotator) lookup(ctx context.Context, key string) (string, bool) {
	v, ok, err := a.store.Get(ctx, key)
	if err != nil {
		log.Printf("annotate: cache read: %v", err)
		return "", false
	}
	return v, ok
}

var errEmpty = errors.New("empty content")

func (a *Annotator) call(ctx context.Context, task Task, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= a.opts.Attempts; attempt++ {
		if attempt > 1 {
			if err := a.opts.Sleep(ctx, a.opts.Delay); err != nil {
				return "", err
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		a.calls.Add(1)
		out, err := a.attempt(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Printf("annotate %s: attempt %d/%d: %v", task, attempt, a.opts.Attempts, err)
	}
	return "", fmt.Errorf("annotate %s: %d attempts failed: %w", task, a.opts.Attempts, lastErr)
}

func (a *Annotator) attempt(ctx context.Context, prompt string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	out, err := a.completer.Complete(actx, SystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmpty
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
