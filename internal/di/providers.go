package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/handler/api"
	"MarketPulse/internal/ingest"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/notify"
	"MarketPulse/internal/service/oracle"
	"MarketPulse/internal/service/prices"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
	pkgsqlite "MarketPulse/pkg/sqlite"
)

// InitializeApp wires the full object graph from a config file path.
func InitializeApp(cfgPath string) (*server.App, error) {
	cfg, err := config.LoadWithEnv(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stdout",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	rec := metrics.New()

	dbClient, err := ProvideSQLite(cfg)
	if err != nil {
		return nil, err
	}
	store := internalrepo.NewStore(dbClient, l)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	bus := eventbus.New(eventbus.DefaultCapacity)
	limiter := ratelimit.New()

	relevanceCache, closeCache, err := ProvideCache(cfg)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}

	scorer := oracle.NewScorer(cfg, l, rec)
	classifier := oracle.NewClassifier(cfg, limiter, relevanceCache, l, rec)

	deduper := ingest.NewDeduper(store, cfg.Ingest.DedupTTL)
	rules := ingest.NewRuleSet(cfg)
	sources := []ingest.Source{
		ingest.NewFeedSource(cfg, l),
		ingest.NewSocialSource(cfg, l),
	}
	pipeline := usecase.NewPipeline(sources, rules, deduper, scorer, classifier, store, bus, rec, l)

	notifier, err := ProvideNotifier(cfg, l)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}

	computer := usecase.NewSignalComputer(cfg, store, pipeline, bus, notifier, rec, l)
	priceSync := usecase.NewPriceSync(prices.NewClient(cfg), store, l)
	impact := usecase.NewImpactCalculator(cfg, store, rec, l)

	runner := usecase.NewRunner(l, cfg.Ingest.BackoffMax,
		usecase.Loop{Name: "ingest", Interval: cfg.Ingest.PollInterval, Run: pipeline.RunOnce},
		usecase.Loop{Name: "signal", Interval: cfg.Signal.PollInterval, Run: computer.Tick},
		usecase.Loop{Name: "prices", Interval: cfg.Prices.PollInterval, Run: priceSync.RunOnce},
		usecase.Loop{Name: "impact", Interval: cfg.Impact.PollInterval, Run: impact.RunOnce},
	)

	handler := api.NewHandler(l, store, computer, bus, classifier, cfg.Asset, cfg.Prices.Symbol)

	app := server.New(cfg, l, runner, handler, notifier, dbClient)
	if closeCache != nil {
		app.AddCloser(closeCache)
	}
	return app, nil
}

// ProvideSQLite opens the embedded store.
func ProvideSQLite(cfg *config.Config) (*pkgsqlite.Client, error) {
	client, err := pkgsqlite.NewClient(
		pkgsqlite.WithPath(cfg.Storage.Path),
		pkgsqlite.WithWAL(true),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite client: %w", err)
	}
	return client, nil
}

// ProvideCache builds the relevance-result cache: layered over Redis
// when configured, in-process otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, func() error, error) {
	rc := cfg.Classifier.Redis
	if !rc.Enabled {
		mem := cache.NewMemoryCache()
		return mem, mem.Close, nil
	}

	host, port := splitAddr(rc.Addr)
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(rc.Password),
		cache.WithRedisDB(rc.DB),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	layered := cache.NewLayeredCache(redisCache)
	return layered, layered.Close, nil
}

// ProvideNotifier builds the action-transition sink.
func ProvideNotifier(cfg *config.Config, l *logger.Logger) (repository.Notifier, error) {
	if !cfg.Notify.Enabled {
		return notify.NopNotifier{}, nil
	}
	n, err := notify.NewKafkaNotifier(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("kafka notifier: %w", err)
	}
	return n, nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
