package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// Source pulls a batch of raw items from one upstream.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawItem, error)
}

// idleGate backs a source off when its runs keep coming back empty,
// so a quiet upstream is not hammered at full poll cadence. Any
// non-empty run resets it.
type idleGate struct {
	base time.Duration
	max  time.Duration

	mu    sync.Mutex
	wait  time.Duration
	until time.Time
}

func newIdleGate(base, max time.Duration) *idleGate {
	if base <= 0 {
		base = time.Minute
	}
	if max < base {
		max = base
	}
	return &idleGate{base: base, max: max}
}

// skip reports whether the current run should be skipped entirely.
func (g *idleGate) skip(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return now.Before(g.until)
}

// observe records the size of a completed run.
func (g *idleGate) observe(fetched int, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fetched > 0 {
		g.wait = 0
		g.until = time.Time{}
		return
	}
	if g.wait == 0 {
		g.wait = g.base
	} else {
		g.wait *= 2
		if g.wait > g.max {
			g.wait = g.max
		}
	}
	g.until = now.Add(g.wait)
}

// --- feed source ---

// FeedSource polls RSS/Atom feeds. Entries without a usable timestamp
// get the fetch time; dedup downstream makes re-polls harmless.
type FeedSource struct {
	urls   []string
	asset  string
	client *xhttp.Client
	idle   *idleGate
	l      *applogger.Logger
}

func NewFeedSource(cfg *config.Config, l *applogger.Logger) *FeedSource {
	return &FeedSource{
		urls:   cfg.Ingest.Feed.URLs,
		asset:  cfg.Asset,
		client: xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		idle:   newIdleGate(cfg.Ingest.PollInterval, cfg.Ingest.BackoffMax),
		l:      l,
	}
}

func (s *FeedSource) Name() string { return string(models.SourceFeed) }

func (s *FeedSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	if s.idle.skip(time.Now()) {
		return nil, nil
	}

	var out []models.RawItem
	var lastErr error
	for _, u := range s.urls {
		items, err := s.fetchOne(ctx, u)
		if err != nil {
			lastErr = err
			s.l.Warn("feed fetch failed", applogger.Error(err), applogger.String("url", u))
			continue
		}
		out = append(out, items...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	s.idle.observe(len(out), time.Now())
	return out, nil
}

type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Updated string `xml:"updated"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

func (s *FeedSource) fetchOne(ctx context.Context, url string) ([]models.RawItem, error) {
	var body []byte
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    url,
	}, &body)
	if err != nil {
		return nil, domrepo.Transient(fmt.Errorf("fetch feed: %w", err))
	}

	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now().UTC()
	var out []models.RawItem
	for _, it := range doc.Channel.Items {
		text := it.Title
		if it.Description != "" {
			text += ". " + it.Description
		}
		out = append(out, models.RawItem{
			Source:    models.SourceFeed,
			Asset:     s.asset,
			Timestamp: parseFeedTime(it.PubDate, now),
			Text:      text,
			URL:       it.Link,
		})
	}
	for _, e := range doc.Entries {
		text := e.Title
		if e.Summary != "" {
			text += ". " + e.Summary
		}
		out = append(out, models.RawItem{
			Source:    models.SourceFeed,
			Asset:     s.asset,
			Timestamp: parseFeedTime(e.Updated, now),
			Text:      text,
			URL:       e.Link.Href,
		})
	}
	return out, nil
}

func parseFeedTime(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// --- social source ---

// SocialSource queries a paginated social search API. Pages are
// fetched until the page budget or the per-run item budget is spent.
type SocialSource struct {
	baseURL     string
	apiKey      string
	query       string
	asset       string
	maxPerRun   int
	pagesPerRun int
	client      *xhttp.Client
	idle        *idleGate
	l           *applogger.Logger
}

type socialPost struct {
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	URL       string `json:"url"`
	Metrics   struct {
		Likes   int `json:"likes"`
		Reposts int `json:"reposts"`
		Replies int `json:"replies"`
	} `json:"metrics"`
}

type socialPage struct {
	Posts      []socialPost `json:"posts"`
	NextCursor string       `json:"next_cursor"`
}

func NewSocialSource(cfg *config.Config, l *applogger.Logger) *SocialSource {
	sc := cfg.Ingest.Social
	return &SocialSource{
		baseURL:     sc.BaseURL,
		apiKey:      sc.APIKey,
		query:       sc.Query,
		asset:       cfg.Asset,
		maxPerRun:   sc.MaxPerRun,
		pagesPerRun: sc.PagesPerRun,
		client:      xhttp.NewClient(xhttp.WithTimeout(20 * time.Second)),
		idle:        newIdleGate(cfg.Ingest.PollInterval, cfg.Ingest.BackoffMax),
		l:           l,
	}
}

func (s *SocialSource) Name() string { return string(models.SourceSocial) }

func (s *SocialSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	if s.baseURL == "" {
		return nil, nil
	}
	if s.idle.skip(time.Now()) {
		return nil, nil
	}
	pages := s.pagesPerRun
	if pages <= 0 {
		pages = 1
	}
	budget := s.maxPerRun
	if budget <= 0 {
		budget = 100
	}

	var out []models.RawItem
	cursor := ""
	for p := 0; p < pages && len(out) < budget; p++ {
		page, err := s.fetchPage(ctx, cursor, budget-len(out))
		if err != nil {
			if len(out) > 0 {
				s.l.Warn("social pagination aborted", applogger.Error(err), applogger.Int("collected", len(out)))
				break
			}
			return nil, err
		}
		now := time.Now().UTC()
		for _, post := range page.Posts {
			ts := now
			if t, err := time.Parse(time.RFC3339, post.CreatedAt); err == nil {
				ts = t.UTC()
			}
			out = append(out, models.RawItem{
				Source:    models.SourceSocial,
				Asset:     s.asset,
				Timestamp: ts,
				Text:      post.Text,
				URL:       post.URL,
				Engagement: &models.Engagement{
					Likes:   post.Metrics.Likes,
					Reposts: post.Metrics.Reposts,
					Replies: post.Metrics.Replies,
				},
			})
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	s.idle.observe(len(out), time.Now())
	return out, nil
}

func (s *SocialSource) fetchPage(ctx context.Context, cursor string, limit int) (*socialPage, error) {
	params := map[string][]string{
		"query": {s.query},
		"limit": {strconv.Itoa(limit)},
	}
	if cursor != "" {
		params["cursor"] = []string{cursor}
	}
	var page socialPage
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.baseURL + "/search",
		Headers:     map[string]string{"X-API-Key": s.apiKey},
		QueryParams: params,
	}, &page)
	if err != nil {
		return nil, domrepo.Transient(fmt.Errorf("social search: %w", err))
	}
	return &page, nil
}
