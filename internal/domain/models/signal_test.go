package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// API payloads are snake_case end to end; exported Go field names must
// never leak onto the wire.
func TestWireFieldNames(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	b, err := json.Marshal(Signal{Asset: "ETH-USD", Timestamp: ts, MentionsZ: 1.2, Action: ActionHold})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"asset"`, `"mentions_z"`, `"ema15"`, `"action"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("signal json missing %s: %s", key, b)
		}
	}
	if strings.Contains(string(b), "MentionsZ") {
		t.Fatalf("signal json leaks Go field names: %s", b)
	}

	b, err = json.Marshal(Item{ID: "a1", Source: SourceFeed, Asset: "ETH-USD", Timestamp: ts, Text: "x", Score: 0.4})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"id"`, `"source"`, `"score"`, `"timestamp"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("item json missing %s: %s", key, b)
		}
	}
	if strings.Contains(string(b), `"impact"`) {
		t.Fatalf("nil impact should be omitted: %s", b)
	}
}
