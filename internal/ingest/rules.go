package ingest

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/config"
)

// Drop reasons, also used as metric labels.
const (
	ReasonTooShort       = "too_short"
	ReasonStale          = "stale"
	ReasonHashtags       = "too_many_hashtags"
	ReasonMentions       = "too_many_mentions"
	ReasonURLs           = "too_many_urls"
	ReasonUpperRatio     = "upper_ratio"
	ReasonSymbolRatio    = "symbol_ratio"
	ReasonBannedKeyword  = "banned_keyword"
	ReasonForeignCashtag = "foreign_cashtag"
	ReasonLowEngagement  = "low_engagement"
)

var cashtagRe = regexp.MustCompile(`\$[A-Za-z][A-Za-z0-9]{1,9}`)

// RuleSet is the anti-spam gate applied before an item is scored.
// First failing rule wins; there is no scoring of partial matches.
type RuleSet struct {
	minTextLen     int
	maxHashtags    int
	maxMentions    int
	maxURLs        int
	maxUpperRatio  float64
	maxSymbolRatio float64
	minLikes       int
	minReposts     int
	minReplies     int
	banned         []string
	maxAge         time.Duration
	allowedTags    map[string]bool
}

func NewRuleSet(cfg *config.Config) *RuleSet {
	r := cfg.Ingest.Rules
	banned := make([]string, len(r.BannedKeywords))
	for i, k := range r.BannedKeywords {
		banned[i] = strings.ToLower(k)
	}

	allowed := make(map[string]bool, len(r.AllowedCashtags)+1)
	for _, tag := range r.AllowedCashtags {
		allowed[strings.ToUpper(strings.TrimPrefix(tag, "$"))] = true
	}
	if len(allowed) == 0 {
		// "ETH-USD" whitelists $ETH
		ticker, _, _ := strings.Cut(cfg.Asset, "-")
		if ticker != "" {
			allowed[strings.ToUpper(ticker)] = true
		}
	}

	return &RuleSet{
		minTextLen:     r.MinTextLen,
		maxHashtags:    r.MaxHashtags,
		maxMentions:    r.MaxMentions,
		maxURLs:        r.MaxURLs,
		maxUpperRatio:  r.MaxUpperRatio,
		maxSymbolRatio: r.MaxSymbolRatio,
		minLikes:       r.MinLikes,
		minReposts:     r.MinReposts,
		minReplies:     r.MinReplies,
		banned:         banned,
		maxAge:         r.MaxAge,
		allowedTags:    allowed,
	}
}

// Evaluate returns ("", true) for acceptable items, or the reject
// reason and false.
func (rs *RuleSet) Evaluate(raw *models.RawItem) (string, bool) {
	text := strings.TrimSpace(raw.Text)
	if len([]rune(text)) < rs.minTextLen {
		return ReasonTooShort, false
	}
	if rs.maxAge > 0 && !raw.Timestamp.IsZero() && time.Since(raw.Timestamp) > rs.maxAge {
		return ReasonStale, false
	}
	if countPrefix(text, '#') > rs.maxHashtags {
		return ReasonHashtags, false
	}
	if countPrefix(text, '@') > rs.maxMentions {
		return ReasonMentions, false
	}
	if strings.Count(strings.ToLower(text), "http://")+strings.Count(strings.ToLower(text), "https://") > rs.maxURLs {
		return ReasonURLs, false
	}

	letters, uppers, symbols, total := 0, 0, 0, 0
	for _, r := range text {
		total++
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		case unicode.IsDigit(r) || unicode.IsSpace(r):
		default:
			symbols++
		}
	}
	if letters > 0 && float64(uppers)/float64(letters) > rs.maxUpperRatio {
		return ReasonUpperRatio, false
	}
	if total > 0 && float64(symbols)/float64(total) > rs.maxSymbolRatio {
		return ReasonSymbolRatio, false
	}

	lower := strings.ToLower(text)
	for _, k := range rs.banned {
		if k != "" && strings.Contains(lower, k) {
			return ReasonBannedKeyword, false
		}
	}

	// Posts pushing a basket of other tickers are shill noise. A lone
	// cashtag is tolerated whichever ticker it names.
	if cashtags := cashtagRe.FindAllString(text, -1); len(cashtags) >= 2 {
		foreign := 0
		for _, tag := range cashtags {
			if !rs.allowedTags[strings.ToUpper(strings.TrimPrefix(tag, "$"))] {
				foreign++
			}
		}
		if foreign >= 1 {
			return ReasonForeignCashtag, false
		}
	}

	// Engagement minimums apply only to items that carry counters.
	// Every floor must be met; one unmet floor rejects.
	if e := raw.Engagement; e != nil {
		if e.Likes < rs.minLikes || e.Reposts < rs.minReposts || e.Replies < rs.minReplies {
			return ReasonLowEngagement, false
		}
	}
	return "", true
}

func countPrefix(text string, marker rune) int {
	n := 0
	prevBoundary := true
	for _, r := range text {
		if r == marker && prevBoundary {
			n++
		}
		prevBoundary = unicode.IsSpace(r)
	}
	return n
}
