package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stock-pulse/internal/adapters/reddit"
	"stock-pulse/internal/adapters/repo"
	"stock-pulse/internal/adapters/scorer"
	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/config"
	"stock-pulse/internal/infra/db"
	"stock-pulse/internal/infra/fetch"
	applog "stock-pulse/internal/infra/log"
	"stock-pulse/internal/infra/metrics"
	"stock-pulse/internal/infra/openai"
	"stock-pulse/internal/infra/proxy"
	"stock-pulse/internal/usecase/ingest"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweeper: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	proxies := proxy.ParseList(cfg.Proxy.List, logger)
	proxyPool := proxy.NewPool(proxies, cfg.Proxy.Cooldown, logger)
	fetchClient := fetch.NewClient(proxyPool, repoAdapter, logger, cfg.Reddit.Timeout, cfg.Reddit.UserAgent)
	if len(proxies) > 0 {
		validateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		proxyPool.Validate(validateCtx, func(ctx context.Context, pr proxy.Proxy) error {
			return fetchClient.Probe(ctx, pr, cfg.Proxy.ProbeURL)
		})
		cancel()
	} else {
		logger.Warn().Msg("sweeper: список прокси пуст, запросы пойдут напрямую")
	}

	redditClient := reddit.NewClient(fetchClient, cfg.Reddit.BaseURL)

	var sentimentScorer domain.SentimentScorer
	if cfg.OpenAI.APIKey != "" {
		openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		sentimentScorer = scorer.NewOpenAI(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
		logger.Info().Str("model", cfg.OpenAI.Model).Msg("sweeper: скоринг через OpenAI")
	} else {
		sentimentScorer = scorer.NewRules()
		logger.Info().Msg("sweeper: ключ OpenAI не задан, скоринг по правилам")
	}

	svc := ingest.NewService(repoAdapter, repoAdapter, repoAdapter, redditClient, sentimentScorer, logger, ingest.Config{
		SearchLimit:  cfg.Reddit.SearchLimit,
		NewListLimit: cfg.Reddit.NewListLimit,
		ScoringBatch: cfg.Sweep.ScoringBatch,
		SleepMin:     cfg.Sweep.SleepMin,
		SleepMax:     cfg.Sweep.SleepMax,
	})

	sweeper := ingest.NewSweeper(svc, logger, cfg.Sweep.FreshnessEvery, cfg.Sweep.ScoringEvery, cfg.Sweep.DiscoveryEvery)
	logger.Info().
		Dur("freshness_every", cfg.Sweep.FreshnessEvery).
		Dur("scoring_every", cfg.Sweep.ScoringEvery).
		Dur("discovery_every", cfg.Sweep.DiscoveryEvery).
		Msg("sweeper: запуск проходов")
	sweeper.Run(ctx)
	logger.Info().Msg("sweeper: остановлен")
}
