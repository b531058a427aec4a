package ingest

import (
	"testing"

	"MarketPulse/internal/domain/models"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("  ETH   breaks \n\t out  ")
	if got != "eth breaks out" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestNormalizeStripsZeroWidth(t *testing.T) {
	got := Normalize("e\u200bth pum\u200cp joi\u200dn \ufeffnow")
	if got != "eth pump join now" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestItemIDStableUnderFormatting(t *testing.T) {
	a := ItemID("ETH to the   moon", models.SourceSocial, "ETH-USD")
	b := ItemID("eth to the moon", models.SourceSocial, "ETH-USD")
	if a != b {
		t.Fatalf("formatting variants should share an id")
	}
}

func TestItemIDVariesBySourceAndAsset(t *testing.T) {
	base := ItemID("eth to the moon", models.SourceSocial, "ETH-USD")
	if ItemID("eth to the moon", models.SourceFeed, "ETH-USD") == base {
		t.Fatalf("source must contribute to identity")
	}
	if ItemID("eth to the moon", models.SourceSocial, "BTC-USD") == base {
		t.Fatalf("asset must contribute to identity")
	}
}
