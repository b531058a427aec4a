package models

import "time"

// Source identifies where a raw item came from.
type Source string

const (
	SourceFeed         Source = "feed"
	SourceSocial       Source = "social"
	SourceNotification Source = "notification"
	SourceSeed         Source = "seed"
)

// Engagement carries optional social engagement counters for a raw item.
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// RawItem is an unscored item as delivered by a source, before
// normalization, dedup and anti-spam filtering.
type RawItem struct {
	Source     Source
	Asset      string
	Timestamp  time.Time
	Text       string
	URL        string
	Engagement *Engagement
}

// Relevance holds the classifier verdict for an item. Nil on the Item
// means classification was skipped or unavailable.
type Relevance struct {
	Relevant   bool     `json:"relevant"`
	Confidence float64  `json:"confidence"`
	Labels     []string `json:"labels,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// ImpactMeta records the detail of a deferred impact evaluation.
// Norm60 stays nil until the 60-minute horizon has been computed.
type ImpactMeta struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	P0         float64   `json:"p0"`
	P15        float64   `json:"p15"`
	P60        *float64  `json:"p60,omitempty"`
	Ret15m     float64   `json:"ret_15m"`
	Ret60m     *float64  `json:"ret_60m,omitempty"`
	Sigma15    float64   `json:"sigma15"`
	Sigma60    float64   `json:"sigma60"`
	Norm60     *float64  `json:"norm_60m,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// ScoreAt is a sentiment score paired with its item timestamp, the
// input shape of the time-aware smoothing.
type ScoreAt struct {
	Timestamp time.Time
	Score     float64
}

// Item is a scored, persisted text item. Identity is a stable hash over
// (normalized text, source, asset); text/score/source/timestamp are
// immutable once stored, only impact fields are filled in later.
type Item struct {
	ID        string      `json:"id"`
	Source    Source      `json:"source"`
	Asset     string      `json:"asset"`
	Timestamp time.Time   `json:"timestamp"`
	Text      string      `json:"text"`
	Score     float64     `json:"score"`
	Label     string      `json:"label"`
	Relevance *Relevance  `json:"relevance,omitempty"`
	Impact    *float64    `json:"impact,omitempty"`
	Meta      *ImpactMeta `json:"impact_meta,omitempty"`
	URL       string      `json:"url,omitempty"`
}
