package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stock-pulse/internal/adapters/finnhub"
	"stock-pulse/internal/adapters/reddit"
	"stock-pulse/internal/adapters/repo"
	"stock-pulse/internal/adapters/scorer"
	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/cache"
	"stock-pulse/internal/infra/config"
	"stock-pulse/internal/infra/db"
	"stock-pulse/internal/infra/fetch"
	httpinfra "stock-pulse/internal/infra/http"
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

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	proxies := proxy.ParseList(cfg.Proxy.List, logger)
	proxyPool := proxy.NewPool(proxies, cfg.Proxy.Cooldown, logger)
	fetchClient := fetch.NewClient(proxyPool, repoAdapter, logger, cfg.Reddit.Timeout, cfg.Reddit.UserAgent)
	redditClient := reddit.NewClient(fetchClient, cfg.Reddit.BaseURL)

	finnhubClient := finnhub.NewClient(
		fetch.NewClient(proxyPool, repoAdapter, logger, cfg.Finnhub.Timeout, cfg.Reddit.UserAgent),
		cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey,
	)

	var sentimentScorer domain.SentimentScorer
	if cfg.OpenAI.APIKey != "" {
		openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		sentimentScorer = scorer.NewOpenAI(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	} else {
		sentimentScorer = scorer.NewRules()
	}

	ingestService := ingest.NewService(repoAdapter, repoAdapter, repoAdapter, redditClient, sentimentScorer, logger, ingest.Config{
		SearchLimit:  cfg.Reddit.SearchLimit,
		NewListLimit: cfg.Reddit.NewListLimit,
		ScoringBatch: cfg.Sweep.ScoringBatch,
		SleepMin:     cfg.Sweep.SleepMin,
		SleepMax:     cfg.Sweep.SleepMax,
	})

	var appCache domain.Cache
	if cfg.RedisAddr != "" {
		appCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	h := &handlers{
		log:     logger,
		stocks:  repoAdapter,
		symbols: finnhubClient,
		ingest:  ingestService,
		cache:   appCache,
		ttl:     cfg.Finnhub.CacheTTL,
	}

	srv := httpinfra.NewServer(logger)
	srv.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "база данных недоступна")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})
	srv.Router.Route("/api", func(r chi.Router) {
		r.Get("/stocks", h.listStocks)
		r.Post("/stocks", h.createStock)
		r.Get("/stocks/{ticker}", h.getStock)
		r.Delete("/stocks/{ticker}", h.deleteStock)
		r.Get("/symbols", h.searchSymbols)
		r.Post("/sweeps/{name}", h.triggerSweep)
	})

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: graceful shutdown не удался")
	}
}

type handlers struct {
	log     zerolog.Logger
	stocks  domain.StockRepo
	symbols domain.SymbolSearcher
	ingest  *ingest.Service
	cache   domain.Cache
	ttl     time.Duration
}

type stockRequest struct {
	Ticker            string `json:"ticker"`
	Name              string `json:"name"`
	OfficialSubreddit string `json:"official_subreddit"`
}

type stockResponse struct {
	Ticker            string `json:"ticker"`
	Name              string `json:"name,omitempty"`
	OfficialSubreddit string `json:"official_subreddit,omitempty"`
}

func toStockResponse(s domain.Stock) stockResponse {
	return stockResponse{Ticker: s.Ticker, Name: s.Name, OfficialSubreddit: s.OfficialSubreddit}
}

func (h *handlers) listStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.stocks.ListStocks(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("api: список акций")
		writeError(w, http.StatusInternalServerError, "не удалось получить список акций")
		return
	}
	resp := make([]stockResponse, 0, len(stocks))
	for _, s := range stocks {
		resp = append(resp, toStockResponse(s))
	}
	writeJSON(w, resp)
}

func (h *handlers) getStock(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	stock, err := h.stocks.GetStockByTicker(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, domain.ErrStockNotFound) {
			writeError(w, http.StatusNotFound, "акция не найдена")
			return
		}
		h.log.Error().Err(err).Str("ticker", ticker).Msg("api: чтение акции")
		writeError(w, http.StatusInternalServerError, "не удалось получить акцию")
		return
	}
	writeJSON(w, toStockResponse(stock))
}

func (h *handlers) createStock(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker обязателен")
		return
	}
	stock, err := h.stocks.UpsertStock(r.Context(), domain.Stock{
		Ticker:            req.Ticker,
		Name:              req.Name,
		OfficialSubreddit: req.OfficialSubreddit,
	})
	if err != nil {
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("api: сохранение акции")
		writeError(w, http.StatusInternalServerError, "не удалось сохранить акцию")
		return
	}

	// первичное обнаружение постов запускается в фоне и не задерживает ответ
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := h.ingest.DiscoverTicker(bgCtx, stock.Ticker); err != nil {
			h.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("api: фоновое обнаружение не удалось")
			return
		}
		h.log.Info().Str("ticker", stock.Ticker).Msg("api: фоновое обнаружение завершено")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toStockResponse(stock))
}

func (h *handlers) deleteStock(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	if err := h.stocks.DeleteStock(r.Context(), ticker); err != nil {
		if errors.Is(err, domain.ErrStockNotFound) {
			writeError(w, http.StatusNotFound, "акция не найдена")
			return
		}
		h.log.Error().Err(err).Str("ticker", ticker).Msg("api: удаление акции")
		writeError(w, http.StatusInternalServerError, "не удалось удалить акцию")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) searchSymbols(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "параметр q обязателен")
		return
	}

	cacheKey := "symbols:" + strings.ToLower(query)
	if h.cache != nil {
		if raw, err := h.cache.Get(cacheKey); err == nil {
			var cached []domain.SymbolMatch
			if json.Unmarshal(raw, &cached) == nil {
				writeJSON(w, cached)
				return
			}
		}
	}

	matches, err := h.symbols.Search(r.Context(), query)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("api: поиск символов")
		writeError(w, http.StatusBadGateway, "справочник символов недоступен")
		return
	}

	// точное совпадение тикера обновляет карточку акции
	upper := strings.ToUpper(query)
	for _, m := range matches {
		if m.Ticker != upper {
			continue
		}
		if _, err := h.stocks.UpsertStock(r.Context(), domain.Stock{Ticker: m.Ticker, Name: m.Name}); err != nil {
			h.log.Error().Err(err).Str("ticker", m.Ticker).Msg("api: обновление акции по справочнику")
		}
	}

	if h.cache != nil {
		if raw, err := json.Marshal(matches); err == nil {
			if err := h.cache.Set(cacheKey, raw, h.ttl); err != nil {
				h.log.Debug().Err(err).Str("key", cacheKey).Msg("api: не удалось закэшировать ответ")
			}
		}
	}
	writeJSON(w, matches)
}

func (h *handlers) triggerSweep(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var run func(context.Context) error
	switch name {
	case "freshness":
		run = h.ingest.RunFreshnessSweep
	case "scoring":
		run = h.ingest.RunScoringSweep
	case "discovery":
		run = h.ingest.RunDiscoverySweep
	default:
		writeError(w, http.StatusNotFound, "неизвестный проход")
		return
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		exec := func() error { return run(bgCtx) }
		var err error
		if h.cache != nil {
			// повторные ручные запуски в течение минуты схлопываются
			err = h.cache.Once("sweep:manual:"+name, time.Minute, exec)
		} else {
			err = exec()
		}
		if err != nil {
			h.log.Error().Err(err).Str("sweep", name).Msg("api: ручной проход завершился ошибкой")
			return
		}
		h.log.Info().Str("sweep", name).Msg("api: ручной проход завершён")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "started", "sweep": name})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
