package ingest

import (
	"strings"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/config"
)

func testRules() *RuleSet {
	cfg := &config.Config{Asset: "ETH-USD"}
	r := &cfg.Ingest.Rules
	r.MinTextLen = 20
	r.MaxHashtags = 6
	r.MaxMentions = 4
	r.MaxURLs = 3
	r.MaxUpperRatio = 0.7
	r.MaxSymbolRatio = 0.3
	r.MinLikes = 2
	r.MinReposts = 1
	r.MinReplies = 1
	r.BannedKeywords = []string{"guaranteed profit", "airdrop"}
	r.MaxAge = 48 * time.Hour
	return NewRuleSet(cfg)
}

func raw(text string) *models.RawItem {
	return &models.RawItem{Source: models.SourceFeed, Asset: "ETH-USD", Text: text}
}

func TestRulesAcceptPlainText(t *testing.T) {
	reason, ok := testRules().Evaluate(raw("Ethereum network activity keeps climbing this quarter."))
	if !ok {
		t.Fatalf("expected accept, got %q", reason)
	}
}

func TestRulesRejectShortText(t *testing.T) {
	reason, ok := testRules().Evaluate(raw("eth up"))
	if ok || reason != ReasonTooShort {
		t.Fatalf("expected %s, got %q ok=%v", ReasonTooShort, reason, ok)
	}
}

func TestRulesRejectHashtagStuffing(t *testing.T) {
	text := "big move coming " + strings.Repeat("#eth ", 8)
	reason, ok := testRules().Evaluate(raw(text))
	if ok || reason != ReasonHashtags {
		t.Fatalf("expected %s, got %q ok=%v", ReasonHashtags, reason, ok)
	}
}

func TestRulesRejectMentionSpam(t *testing.T) {
	text := "look at this chart " + strings.Repeat("@trader ", 6)
	reason, ok := testRules().Evaluate(raw(text))
	if ok || reason != ReasonMentions {
		t.Fatalf("expected %s, got %q ok=%v", ReasonMentions, reason, ok)
	}
}

func TestRulesRejectLinkFarm(t *testing.T) {
	text := "read these now https://a.io https://b.io https://c.io https://d.io"
	reason, ok := testRules().Evaluate(raw(text))
	if ok || reason != ReasonURLs {
		t.Fatalf("expected %s, got %q ok=%v", ReasonURLs, reason, ok)
	}
}

func TestRulesRejectShouting(t *testing.T) {
	reason, ok := testRules().Evaluate(raw("BUY ETH RIGHT NOW BEFORE IT IS TOO LATE EVERYONE"))
	if ok || reason != ReasonUpperRatio {
		t.Fatalf("expected %s, got %q ok=%v", ReasonUpperRatio, reason, ok)
	}
}

func TestRulesRejectBannedKeyword(t *testing.T) {
	reason, ok := testRules().Evaluate(raw("join now for guaranteed profit on every single trade"))
	if ok || reason != ReasonBannedKeyword {
		t.Fatalf("expected %s, got %q ok=%v", ReasonBannedKeyword, reason, ok)
	}
}

func TestRulesRejectStaleItem(t *testing.T) {
	item := raw("interesting ethereum data point from the derivatives desk")
	item.Timestamp = time.Now().UTC().Add(-72 * time.Hour)
	reason, ok := testRules().Evaluate(item)
	if ok || reason != ReasonStale {
		t.Fatalf("expected %s, got %q ok=%v", ReasonStale, reason, ok)
	}
}

func TestRulesSkipFreshnessWithoutTimestamp(t *testing.T) {
	if reason, ok := testRules().Evaluate(raw("interesting ethereum data point from the derivatives desk")); !ok {
		t.Fatalf("expected accept, got %q", reason)
	}
}

func TestRulesRejectForeignCashtagBasket(t *testing.T) {
	reason, ok := testRules().Evaluate(raw("rotate out of $ETH and into $SOL plus $DOGE right now"))
	if ok || reason != ReasonForeignCashtag {
		t.Fatalf("expected %s, got %q ok=%v", ReasonForeignCashtag, reason, ok)
	}
}

func TestRulesAllowLoneOrOwnCashtags(t *testing.T) {
	rs := testRules()
	if reason, ok := rs.Evaluate(raw("a lone $SOL reference in an otherwise relevant post")); !ok {
		t.Fatalf("lone foreign cashtag should pass, got %q", reason)
	}
	if reason, ok := rs.Evaluate(raw("the $ETH and $eth crowd keeps accumulating quietly")); !ok {
		t.Fatalf("own cashtags should pass, got %q", reason)
	}
}

func TestRulesRejectZeroEngagement(t *testing.T) {
	item := raw("interesting ethereum data point from the derivatives desk")
	item.Engagement = &models.Engagement{}
	reason, ok := testRules().Evaluate(item)
	if ok || reason != ReasonLowEngagement {
		t.Fatalf("expected %s, got %q ok=%v", ReasonLowEngagement, reason, ok)
	}
}

func TestRulesEngagementEveryFloorRequired(t *testing.T) {
	rs := testRules()

	// likes clear their floor but reposts/replies do not
	item := raw("interesting ethereum data point from the derivatives desk")
	item.Engagement = &models.Engagement{Likes: 5}
	reason, ok := rs.Evaluate(item)
	if ok || reason != ReasonLowEngagement {
		t.Fatalf("one unmet floor must reject, got %q ok=%v", reason, ok)
	}

	item.Engagement = &models.Engagement{Likes: 2, Reposts: 1, Replies: 1}
	if reason, ok := rs.Evaluate(item); !ok {
		t.Fatalf("all floors met should accept, got %q", reason)
	}
}
