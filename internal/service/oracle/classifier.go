package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// LabelLowConfidence is appended when the classifier answered but its
// confidence fell below the configured floor.
const LabelLowConfidence = "low_confidence"

const relevanceKeyPrefix = "relevance:"

// Classifier calls an LLM-backed relevance endpoint. It is optional
// and best-effort: a timeout or garbled reply yields nil relevance,
// never an ingestion failure. Calls are rate limited and results are
// cached by item id so re-ingested duplicates cost nothing.
type Classifier struct {
	enabled       bool
	baseURL       string
	model         string
	timeout       time.Duration
	maxQPS        float64
	minConfidence float64
	cacheTTL      time.Duration

	client  *xhttp.Client
	limiter *ratelimit.Limiter
	cache   cache.Service
	l       *applogger.Logger
	metrics domrepo.Metrics
}

type classifyRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type classifyResponse struct {
	Text string `json:"text"`
}

func NewClassifier(cfg *config.Config, limiter *ratelimit.Limiter, c cache.Service, l *applogger.Logger, m domrepo.Metrics) *Classifier {
	cc := cfg.Classifier
	return &Classifier{
		enabled:       cc.Enabled,
		baseURL:       cc.BaseURL,
		model:         cc.Model,
		timeout:       cc.Timeout,
		maxQPS:        cc.MaxQPS,
		minConfidence: cc.MinConfidence,
		cacheTTL:      cc.CacheTTL,
		client:        xhttp.NewClient(xhttp.WithTimeout(cc.Timeout)),
		limiter:       limiter,
		cache:         c,
		l:             l,
		metrics:       m,
	}
}

func (c *Classifier) Enabled() bool { return c.enabled }

// Classify returns the relevance verdict for an item, or nil when the
// classifier is disabled, rate starved, timed out, or unparseable.
func (c *Classifier) Classify(ctx context.Context, itemID, text, asset string) *models.Relevance {
	if !c.enabled {
		return nil
	}

	key := relevanceKeyPrefix + itemID
	if c.cache != nil {
		var cached models.Relevance
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return &cached
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(waitCtx, "classifier", c.maxQPS, c.maxQPS); err != nil {
		c.metrics.RecordOracleFailure("classify_ratelimited")
		return nil
	}

	var resp classifyResponse
	err := c.client.SendAndParse(waitCtx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.baseURL + "/v1/completions",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: classifyRequest{
			Model:  c.model,
			Prompt: c.prompt(text, asset),
		},
	}, &resp)
	if err != nil {
		c.metrics.RecordOracleFailure("classify")
		c.l.Warn("relevance classification skipped",
			applogger.Error(err),
			applogger.String("item", itemID),
		)
		return nil
	}

	rel, err := parseRelevance(resp.Text)
	if err != nil {
		c.metrics.RecordOracleFailure("classify_parse")
		c.l.Warn("relevance reply unparseable", applogger.Error(err))
		return nil
	}
	if rel.Confidence < c.minConfidence {
		rel.Relevant = false
		rel.Labels = append(rel.Labels, LabelLowConfidence)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, rel, c.cacheTTL); err != nil {
			c.l.Debug("relevance cache write failed", applogger.Error(err))
		}
	}
	return rel
}

// Generate asks the completion endpoint for free-form text. Shares
// the classifier's rate budget; callers must handle the error with a
// fallback of their own.
func (c *Classifier) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("classifier disabled")
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(waitCtx, "classifier", c.maxQPS, c.maxQPS); err != nil {
		c.metrics.RecordOracleFailure("generate_ratelimited")
		return "", fmt.Errorf("rate limited: %w", err)
	}

	var resp classifyResponse
	err := c.client.SendAndParse(waitCtx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.baseURL + "/v1/completions",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: classifyRequest{
			Model:  c.model,
			Prompt: prompt,
		},
	}, &resp)
	if err != nil {
		c.metrics.RecordOracleFailure("generate")
		return "", err
	}
	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return "", fmt.Errorf("empty completion")
	}
	return out, nil
}

func (c *Classifier) prompt(text, asset string) string {
	return fmt.Sprintf(
		"Judge whether the following message carries information relevant to the asset %s. "+
			"Reply with a single JSON object: {\"relevant\": bool, \"confidence\": 0..1, "+
			"\"labels\": [string], \"reason\": string}.\n\nMessage:\n%s",
		asset, text,
	)
}

// parseRelevance extracts the first JSON object embedded in a model
// reply. Models wrap JSON in prose or code fences often enough that
// strict decoding of the whole reply is a losing game.
func parseRelevance(reply string) (*models.Relevance, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object in reply")
	}
	var rel models.Relevance
	if err := json.Unmarshal([]byte(reply[start:end+1]), &rel); err != nil {
		return nil, fmt.Errorf("decode relevance: %w", err)
	}
	if rel.Confidence < 0 {
		rel.Confidence = 0
	} else if rel.Confidence > 1 {
		rel.Confidence = 1
	}
	return &rel, nil
}
