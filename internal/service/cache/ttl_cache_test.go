package cache

import (
	"testing"
	"time"
)

func TestTTLSetMembership(t *testing.T) {
	s := NewTTLSet()
	if s.Has("a") {
		t.Fatal("empty set reported a member")
	}
	s.Add("a", time.Minute)
	if !s.Has("a") {
		t.Fatal("fresh key missing")
	}
	if s.Has("b") {
		t.Fatal("unknown key reported present")
	}
}

func TestTTLSetExpiry(t *testing.T) {
	s := NewTTLSet()
	s.Add("a", -time.Second)
	if s.Has("a") {
		t.Fatal("expired key reported present")
	}
	if s.Len() != 0 {
		t.Fatalf("expired key not dropped, len=%d", s.Len())
	}

	s.Add("keep", 0)
	if !s.Has("keep") {
		t.Fatal("zero-ttl key should not expire")
	}
}
