package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowExhaustsBucket(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0.001) {
			t.Fatalf("token %d should be available", i)
		}
	}
	if l.Allow("k", 3, 0.001) {
		t.Fatalf("bucket should be empty")
	}
}

func TestAllowIndependentKeys(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.001) {
		t.Fatalf("first token for a")
	}
	if l.Allow("a", 1, 0.001) {
		t.Fatalf("a should be exhausted")
	}
	if !l.Allow("b", 1, 0.001) {
		t.Fatalf("b has its own budget")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 50) {
		t.Fatalf("first token")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow("k", 1, 50) {
		t.Fatalf("bucket should have refilled")
	}
}

func TestWaitImmediate(t *testing.T) {
	l := New()
	if err := l.Wait(context.Background(), "k", 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitHonorsCancel(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 0.001) {
		t.Fatalf("drain token")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k", 1, 0.001); err == nil {
		t.Fatalf("expected context error on empty bucket")
	}
}
