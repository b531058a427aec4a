package oracle

import (
	"context"
	"time"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// LabelUnscored marks items whose sentiment call failed. The pipeline
// still persists them so the mention count stays honest.
const LabelUnscored = "unscored"

// Scorer asks the external sentiment service for a score in [-1, 1]
// plus a label. It fails open: any transport or decode failure yields
// a neutral (0, "unscored") result rather than an error.
type Scorer struct {
	baseURL string
	client  *xhttp.Client
	l       *applogger.Logger
	metrics domrepo.Metrics
}

type scoreRequest struct {
	Text  string `json:"text"`
	Asset string `json:"asset,omitempty"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

func NewScorer(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *Scorer {
	timeout := cfg.Scoring.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Scorer{
		baseURL: cfg.Scoring.BaseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		l:       l,
		metrics: m,
	}
}

// Score returns (score, label). Never returns an error.
func (s *Scorer) Score(ctx context.Context, text, asset string) (float64, string) {
	var resp scoreResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.baseURL + "/score",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    scoreRequest{Text: text, Asset: asset},
	}, &resp)
	if err != nil {
		s.metrics.RecordOracleFailure("score")
		s.l.Warn("sentiment scoring failed, keeping item unscored",
			applogger.Error(err),
			applogger.String("asset", asset),
		)
		return 0, LabelUnscored
	}
	if resp.Score > 1 {
		resp.Score = 1
	} else if resp.Score < -1 {
		resp.Score = -1
	}
	if resp.Label == "" {
		resp.Label = labelFor(resp.Score)
	}
	return resp.Score, resp.Label
}

func labelFor(score float64) string {
	switch {
	case score >= 0.15:
		return "positive"
	case score <= -0.15:
		return "negative"
	default:
		return "neutral"
	}
}
