package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"stock-pulse/internal/adapters/reddit"
	"stock-pulse/internal/adapters/repo"
	"stock-pulse/internal/adapters/scorer"
	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/cache"
	"stock-pulse/internal/infra/config"
	"stock-pulse/internal/infra/db"
	"stock-pulse/internal/infra/fetch"
	applog "stock-pulse/internal/infra/log"
	"stock-pulse/internal/infra/metrics"
	"stock-pulse/internal/infra/openai"
	"stock-pulse/internal/infra/proxy"
	"stock-pulse/internal/usecase/ingest"
)

const usage = "использование: sweepctl freshness | scoring | discovery [тикер]"

// sweepctl запускает один проход вручную и завершается. Частичные сбои внутри
// прохода обрабатываются самим проходом, код возврата ненулевой только при
// ошибках инициализации.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweepctl: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	proxies := proxy.ParseList(cfg.Proxy.List, logger)
	proxyPool := proxy.NewPool(proxies, cfg.Proxy.Cooldown, logger)
	fetchClient := fetch.NewClient(proxyPool, repoAdapter, logger, cfg.Reddit.Timeout, cfg.Reddit.UserAgent)
	redditClient := reddit.NewClient(fetchClient, cfg.Reddit.BaseURL)

	var sentimentScorer domain.SentimentScorer
	if cfg.OpenAI.APIKey != "" {
		openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		sentimentScorer = scorer.NewOpenAI(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	} else {
		sentimentScorer = scorer.NewRules()
	}

	svc := ingest.NewService(repoAdapter, repoAdapter, repoAdapter, redditClient, sentimentScorer, logger, ingest.Config{
		SearchLimit:  cfg.Reddit.SearchLimit,
		NewListLimit: cfg.Reddit.NewListLimit,
		ScoringBatch: cfg.Sweep.ScoringBatch,
		SleepMin:     cfg.Sweep.SleepMin,
		SleepMax:     cfg.Sweep.SleepMax,
	})

	var run func(context.Context) error
	switch command {
	case "freshness":
		run = svc.RunFreshnessSweep
	case "scoring":
		run = svc.RunScoringSweep
	case "discovery":
		if len(os.Args) > 2 {
			ticker := os.Args[2]
			run = func(ctx context.Context) error { return svc.DiscoverTicker(ctx, ticker) }
		} else {
			run = svc.RunDiscoverySweep
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	// при наличии Redis одновременные ручные запуски одного прохода схлопываются
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		err = redisCache.Once("sweepctl:"+command, time.Minute, func() error { return run(ctx) })
	} else {
		err = run(ctx)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("sweep", command).Msg("sweepctl: проход завершился ошибкой")
	}
	logger.Info().Str("sweep", command).Msg("sweepctl: готово")
}
