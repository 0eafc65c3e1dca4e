package memstore

import (
	"context"
	"testing"
)

func TestGetMissing(t *testing.T) {
	s := New()
	if _, ok, err := s.Get(context.Background(), "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Put(ctx, "k", "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "k", "second"); err != nil {
		t.Fatal(err)
	}
	v, ok, _ := s.Get(ctx, "k")
	if !ok || v != "first" {
		t.Fatalf("expected first, got %q (ok=%v)", v, ok)
	}
	if s.Len() != 1 || s.Puts() != 2 {
		t.Fatalf("unexpected counters len=%d puts=%d", s.Len(), s.Puts())
	}
}
