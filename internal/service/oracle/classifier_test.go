package oracle

import "testing"

func TestParseRelevancePlainJSON(t *testing.T) {
	rel, err := parseRelevance(`{"relevant": true, "confidence": 0.9, "labels": ["news"], "reason": "protocol upgrade"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rel.Relevant || rel.Confidence != 0.9 || len(rel.Labels) != 1 {
		t.Fatalf("unexpected relevance %+v", rel)
	}
}

func TestParseRelevanceWrappedInProse(t *testing.T) {
	reply := "Sure! Here is the verdict:\n```json\n{\"relevant\": false, \"confidence\": 0.4}\n```\nLet me know if you need more."
	rel, err := parseRelevance(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel.Relevant || rel.Confidence != 0.4 {
		t.Fatalf("unexpected relevance %+v", rel)
	}
}

func TestParseRelevanceNoJSON(t *testing.T) {
	if _, err := parseRelevance("I cannot answer that."); err == nil {
		t.Fatalf("expected error for json-free reply")
	}
}

func TestParseRelevanceGarbage(t *testing.T) {
	if _, err := parseRelevance("{relevant yes}"); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}

func TestParseRelevanceClampsConfidence(t *testing.T) {
	rel, err := parseRelevance(`{"relevant": true, "confidence": 17}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel.Confidence != 1 {
		t.Fatalf("expected clamp to 1, got %v", rel.Confidence)
	}
}

func TestLabelForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.5, "positive"},
		{-0.5, "negative"},
		{0.0, "neutral"},
		{0.14, "neutral"},
	}
	for _, c := range cases {
		if got := labelFor(c.score); got != c.want {
			t.Fatalf("labelFor(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}
