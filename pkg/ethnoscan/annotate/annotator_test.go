package annotate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache/memstore"
)

type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, user)
	f.mu.Unlock()
	return f.reply(user)
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testOptions(delays *[]time.Duration) Options {
	opts := DefaultOptions()
	opts.Sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	}
	return opts
}

func TestRepeatedClassifyUsesCache(t *testing.T) {
	store := memstore.New()
	fc := &fakeCompleter{reply: func(string) (string, error) { return "  ethnographic\n", nil }}
	a := New(store, fc, testOptions(nil))
	ctx := context.Background()

	text := "The Kalmyks pitched their tents."
	first := a.Classify(ctx, text)
	second := a.Classify(ctx, text)
	if first != "ethnographic" || second != first {
		t.Fatalf("unexpected results %q / %q", first, second)
	}
	if fc.count() != 1 {
		t.Fatalf("expected one external call, got %d", fc.count())
	}
	if v, ok, _ := store.Get(ctx, cache.Key("classify", text)); !ok || v != "ethnographic" {
		t.Fatalf("expected trimmed value under classify key, got %q ok=%v", v, ok)
	}
}

func TestExhaustedAttemptsReturnUnavailable(t *testing.T) {
	var delays []time.Duration
	store := memstore.New()
	fc := &fakeCompleter{reply: func(string) (string, error) { return "", errors.New("http 503") }}
	a := New(store, fc, testOptions(&delays))
	ctx := context.Background()

	if got := a.Annotate(ctx, Sentiment, "any text"); got != Unavailable {
		t.Fatalf("expected %q, got %q", Unavailable, got)
	}
	if fc.count() != 3 {
		t.Fatalf("expected 3 attempts, got %d", fc.count())
	}
	if len(delays) != 2 || delays[0] != 3*time.Second || delays[1] != 3*time.Second {
		t.Fatalf("expected two 3s delays between attempts, got %v", delays)
	}
	if v, ok, _ := store.Get(ctx, cache.Key("sentiment", "any text")); !ok || v != Unavailable {
		t.Fatalf("failure should be cached by default, got %q ok=%v", v, ok)
	}

	// Cached failure: no further calls.
	a.Annotate(ctx, Sentiment, "any text")
	if fc.count() != 3 {
		t.Fatalf("expected cached sentinel, got %d calls", fc.count())
	}
}

// hangingCompleter blocks until the attempt context ends.
type hangingCompleter struct {
	calls atomic.Int32
	errs  chan error
}

func (h *hangingCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	h.calls.Add(1)
	<-ctx.Done()
	h.errs <- ctx.Err()
	return "", ctx.Err()
}

func TestHungAttemptTimesOut(t *testing.T) {
	var delays []time.Duration
	hc := &hangingCompleter{errs: make(chan error, 3)}
	opts := testOptions(&delays)
	opts.Timeout = 20 * time.Millisecond
	store := memstore.New()
	a := New(store, hc, opts)
	ctx := context.Background()

	start := time.Now()
	got := a.Classify(ctx, "a hanging request")
	if got != Unavailable {
		t.Fatalf("expected %q, got %q", Unavailable, got)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if n := hc.calls.Load(); n != int32(opts.Attempts) || a.Calls() != int64(opts.Attempts) {
		t.Fatalf("expected %d attempts, got %d (counter %d)", opts.Attempts, n, a.Calls())
	}
	for i := 0; i < opts.Attempts; i++ {
		if err := <-hc.errs; !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("attempt %d ended with %v, want deadline exceeded", i+1, err)
		}
	}
	if len(delays) != opts.Attempts-1 {
		t.Fatalf("expected %d delays between attempts, got %v", opts.Attempts-1, delays)
	}
	if v, ok, _ := store.Get(ctx, cache.Key("classify", "a hanging request")); !ok || v != Unavailable {
		t.Fatalf("timed out request should be cached as failure, got %q ok=%v", v, ok)
	}
}

func TestEmptyContentCountsAsFailure(t *testing.T) {
	var n int
	fc := &fakeCompleter{reply: func(string) (string, error) {
		n++
		if n < 3 {
			return "   ", nil
		}
		return "negative", nil
	}}
	a := New(memstore.New(), fc, testOptions(nil))
	if got := a.Sentiment(context.Background(), "x"); got != "negative" {
		t.Fatalf("expected negative after retries, got %q", got)
	}
	if a.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", a.Calls())
	}
}

func TestFailuresNotCachedWhenDisabled(t *testing.T) {
	store := memstore.New()
	fc := &fakeCompleter{reply: func(string) (string, error) { return "", errors.New("down") }}
	opts := testOptions(nil)
	opts.CacheFailures = false
	a := New(store, fc, opts)

	if got := a.Summarize(context.Background(), "x"); got != Unavailable {
		t.Fatalf("expected sentinel, got %q", got)
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d entries", store.Len())
	}
}

func TestMissingCredentials(t *testing.T) {
	store := memstore.New()
	a := New(store, nil, testOptions(nil))
	if got := a.Classify(context.Background(), "x"); got != Unavailable {
		t.Fatalf("expected %q, got %q", Unavailable, got)
	}
	if a.Calls() != 0 || store.Len() != 0 {
		t.Fatalf("expected no calls and no cache writes, got calls=%d entries=%d", a.Calls(), store.Len())
	}
}

func TestMissingCredentialsStillServesCache(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	store.Put(ctx, cache.Key("classify", "x"), "religious")
	a := New(store, nil, testOptions(nil))
	if got := a.Classify(ctx, "x"); got != "religious" {
		t.Fatalf("expected cached value, got %q", got)
	}
}

func TestTranslateSentinelsSkipCall(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (string, error) { return "перевод", nil }}
	a := New(memstore.New(), fc, testOptions(nil))
	ctx := context.Background()
	for _, in := range []string{"", "  ", "unavailable", "Unavailable", "none", NoData} {
		if got := a.Translate(ctx, in); got != NoData {
			t.Fatalf("Translate(%q) = %q, want %q", in, got, NoData)
		}
	}
	if fc.count() != 0 {
		t.Fatalf("expected no calls, got %d", fc.count())
	}
	if got := a.Translate(ctx, "neutral"); got != "перевод" {
		t.Fatalf("unexpected translation %q", got)
	}
}

func TestPromptsCarryGroupAndLanguage(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (string, error) { return "ok", nil }}
	opts := testOptions(nil)
	opts.Group = "Buryats"
	opts.Language = "German"
	a := New(memstore.New(), fc, opts)
	ctx := context.Background()

	a.Classify(ctx, "text one")
	a.Translate(ctx, "text two")
	if !strings.Contains(fc.prompts[0], "about Buryats") || !strings.Contains(fc.prompts[0], "'imperial'") {
		t.Fatalf("unexpected classify prompt %q", fc.prompts[0])
	}
	if !strings.Contains(fc.prompts[1], "into German") {
		t.Fatalf("unexpected translate prompt %q", fc.prompts[1])
	}
}

func TestInterpretTableKey(t *testing.T) {
	store := memstore.New()
	fc := &fakeCompleter{reply: func(string) (string, error) { return "reading", nil }}
	a := New(store, fc, testOptions(nil))
	ctx := context.Background()

	a.InterpretTable(ctx, "labels", "a,b")
	if _, ok, _ := store.Get(ctx, cache.Key("interpret-table", "labels:a,b")); !ok {
		t.Fatal("expected entry under title:sample payload")
	}
	a.Commentary(ctx, "write a note")
	if v, ok, _ := store.Get(ctx, cache.Key("commentary", "write a note")); !ok || v != "reading" {
		t.Fatalf("expected commentary entry, got %q ok=%v", v, ok)
	}
}

func TestCanceledContextNotCached(t *testing.T) {
	store := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeCompleter{reply: func(string) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	a := New(store, fc, testOptions(nil))
	if got := a.Classify(ctx, "x"); got != Unavailable {
		t.Fatalf("expected sentinel, got %q", got)
	}
	if fc.count() != 1 {
		t.Fatalf("expected retries to stop after cancel, got %d calls", fc.count())
	}
	if store.Len() != 0 {
		t.Fatal("canceled request must not be cached")
	}
}

func TestConcurrentCallersShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	fc := &fakeCompleter{reply: func(string) (string, error) {
		started.Add(1)
		<-release
		return "imperial", nil
	}}
	a := New(memstore.New(), fc, testOptions(nil))

	const n = 8
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Classify(context.Background(), "same text")
		}(i)
	}
	for started.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if fc.count() != 1 {
		t.Fatalf("expected one external call, got %d", fc.count())
	}
	for i, r := range results {
		if r != "imperial" {
			t.Fatalf("result %d = %q", i, r)
		}
	}
}

func TestUnknownTask(t *testing.T) {
	a := New(memstore.New(), nil, testOptions(nil))
	if got := a.Annotate(context.Background(), Task{}, "x"); got != Unavailable {
		t.Fatalf("expected sentinel for zero task, got %q", got)
	}
	if _, ok := ParseTask("summary"); !ok {
		t.Fatal("expected summary task")
	}
	if _, ok := ParseTask("nope"); ok {
		t.Fatal("unexpected task")
	}
}
