package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Asset       string `yaml:"asset"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Ingest struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		WindowMin    int           `yaml:"window_min"`
		DedupTTL     time.Duration `yaml:"dedup_ttl"`
		BackoffMax   time.Duration `yaml:"backoff_max"`
		Feed         struct {
			URLs []string `yaml:"urls"`
		} `yaml:"feed"`
		Social struct {
			BaseURL     string `yaml:"base_url"`
			APIKey      string `yaml:"api_key"`
			Query       string `yaml:"query"`
			MaxPerRun   int    `yaml:"max_per_run"`
			PagesPerRun int    `yaml:"pages_per_run"`
		} `yaml:"social"`
		Rules struct {
			MinTextLen     int      `yaml:"min_text_len"`
			MaxHashtags    int      `yaml:"max_hashtags"`
			MaxMentions    int      `yaml:"max_mentions"`
			MaxURLs        int      `yaml:"max_urls"`
			MaxUpperRatio  float64  `yaml:"max_upper_ratio"`
			MaxSymbolRatio float64  `yaml:"max_symbol_ratio"`
			MinLikes       int      `yaml:"min_likes"`
			MinReposts     int      `yaml:"min_reposts"`
			MinReplies     int      `yaml:"min_replies"`
			BannedKeywords []string `yaml:"banned_keywords"`
			// MaxAge rejects items published longer ago than this;
			// zero disables the freshness window.
			MaxAge time.Duration `yaml:"max_age"`
			// AllowedCashtags whitelists $TICKER tokens; empty means
			// derive from the configured asset.
			AllowedCashtags []string `yaml:"allowed_cashtags"`
		} `yaml:"rules"`
	} `yaml:"ingest"`
	Scoring struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"scoring"`
	Classifier struct {
		Enabled       bool          `yaml:"enabled"`
		BaseURL       string        `yaml:"base_url"`
		Model         string        `yaml:"model"`
		Timeout       time.Duration `yaml:"timeout"`
		MaxQPS        float64       `yaml:"max_qps"`
		MinConfidence float64       `yaml:"min_confidence"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"classifier"`
	Prices struct {
		BaseURL      string        `yaml:"base_url"`
		Symbol       string        `yaml:"symbol"`
		Timeframe    string        `yaml:"timeframe"`
		PollInterval time.Duration `yaml:"poll_interval"`
		MaxCandles   int           `yaml:"max_candles"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"prices"`
	Signal struct {
		PollInterval   time.Duration `yaml:"poll_interval"`
		HalfLife       time.Duration `yaml:"half_life"`
		Window         time.Duration `yaml:"window"`
		BaselineDays   int           `yaml:"baseline_days"`
		ThresholdUp    float64       `yaml:"threshold_up"`
		ThresholdDown  float64       `yaml:"threshold_down"`
		Hysteresis     *bool         `yaml:"hysteresis"`
		HysteresisBand float64       `yaml:"hysteresis_band"`
		EmitInterval   time.Duration `yaml:"emit_interval"`
		Weights        struct {
			Mentions  float64 `yaml:"mentions"`
			Sentiment float64 `yaml:"sentiment"`
			Momentum  float64 `yaml:"momentum"`
			RSI       float64 `yaml:"rsi"`
			Breakout  float64 `yaml:"breakout"`
		} `yaml:"weights"`
	} `yaml:"signal"`
	Impact struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		BatchLimit   int           `yaml:"batch_limit"`
	} `yaml:"impact"`
	Notify struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"notify"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("ASSET"); v != "" {
		c.Asset = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SOCIAL_API_KEY"); v != "" {
		c.Ingest.Social.APIKey = v
	}
	if v := os.Getenv("FEED_URLS"); v != "" {
		c.Ingest.Feed.URLs = strings.Split(v, ",")
	}
	if v := os.Getenv("NOTIFY_BROKERS"); v != "" {
		c.Notify.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Asset == "" {
		c.Asset = "ETH-USD"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Ingest.PollInterval <= 0 {
		c.Ingest.PollInterval = time.Minute
	}
	if c.Ingest.DedupTTL <= 0 {
		c.Ingest.DedupTTL = 24 * time.Hour
	}
	if c.Ingest.BackoffMax <= 0 {
		c.Ingest.BackoffMax = 5 * time.Minute
	}
	if c.Scoring.Timeout <= 0 {
		c.Scoring.Timeout = 10 * time.Second
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 15 * time.Second
	}
	if c.Classifier.MaxQPS <= 0 {
		c.Classifier.MaxQPS = 2
	}
	if c.Classifier.MinConfidence <= 0 {
		c.Classifier.MinConfidence = 0.6
	}
	if c.Prices.Symbol == "" {
		c.Prices.Symbol = "ETHUSDT"
	}
	if c.Prices.Timeframe == "" {
		c.Prices.Timeframe = "1m"
	}
	if c.Prices.PollInterval <= 0 {
		c.Prices.PollInterval = 30 * time.Second
	}
	if c.Prices.MaxCandles <= 0 {
		c.Prices.MaxCandles = 300
	}
	if c.Prices.Timeout <= 0 {
		c.Prices.Timeout = 10 * time.Second
	}
	if c.Signal.PollInterval <= 0 {
		c.Signal.PollInterval = time.Minute
	}
	if c.Signal.HalfLife <= 0 {
		c.Signal.HalfLife = 15 * time.Minute
	}
	if c.Signal.Window <= 0 {
		c.Signal.Window = 15 * time.Minute
	}
	if c.Signal.BaselineDays <= 0 {
		c.Signal.BaselineDays = 7
	}
	if c.Signal.ThresholdUp == 0 {
		c.Signal.ThresholdUp = 0.33
	}
	if c.Signal.ThresholdDown == 0 {
		c.Signal.ThresholdDown = -0.33
	}
	if c.Signal.Hysteresis == nil {
		on := true
		c.Signal.Hysteresis = &on
	}
	if c.Signal.HysteresisBand == 0 {
		c.Signal.HysteresisBand = 0.2
	}
	if c.Signal.EmitInterval <= 0 {
		c.Signal.EmitInterval = 5 * time.Second
	}
	w := &c.Signal.Weights
	if w.Mentions == 0 && w.Sentiment == 0 && w.Momentum == 0 && w.RSI == 0 && w.Breakout == 0 {
		w.Mentions, w.Sentiment, w.Momentum, w.RSI, w.Breakout = 0.35, 0.30, 0.25, 0.05, 0.05
	}
	if c.Impact.PollInterval <= 0 {
		c.Impact.PollInterval = time.Minute
	}
	if c.Impact.BatchLimit <= 0 {
		c.Impact.BatchLimit = 400
	}
	r := &c.Ingest.Rules
	if r.MinTextLen <= 0 {
		r.MinTextLen = 20
	}
	if r.MaxHashtags <= 0 {
		r.MaxHashtags = 6
	}
	if r.MaxMentions <= 0 {
		r.MaxMentions = 4
	}
	if r.MaxURLs <= 0 {
		r.MaxURLs = 3
	}
	if r.MaxUpperRatio <= 0 {
		r.MaxUpperRatio = 0.7
	}
	if r.MaxSymbolRatio <= 0 {
		r.MaxSymbolRatio = 0.3
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Scoring.BaseURL == "" {
		return fmt.Errorf("scoring.base_url is required")
	}
	if c.Signal.ThresholdUp <= c.Signal.ThresholdDown {
		return fmt.Errorf("signal.threshold_up must exceed signal.threshold_down")
	}
	if c.Classifier.Enabled && c.Classifier.BaseURL == "" {
		return fmt.Errorf("classifier.base_url is required when classifier is enabled")
	}
	if c.Notify.Enabled && len(c.Notify.Brokers) == 0 {
		return fmt.Errorf("notify.brokers cannot be empty when notify is enabled")
	}
	return nil
}
