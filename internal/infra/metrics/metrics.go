package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SweepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Длительность одного прохода",
		Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"sweep"})

	SweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Количество запусков проходов",
	}, []string{"sweep", "status"})

	ProxiesHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proxies_healthy",
		Help: "Количество прокси вне cooldown",
	})

	PostsFetchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posts_fetched_total",
		Help: "Количество успешно выгруженных постов",
	})

	CommentsPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comments_persisted_total",
		Help: "Количество сохранённых комментариев после фильтра",
	})

	CommentsScoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_scored_total",
		Help: "Количество оценённых комментариев",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SweepDuration,
		SweepRunsTotal,
		ProxiesHealthy,
		PostsFetchedTotal,
		CommentsPersistedTotal,
		CommentsScoredTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveSweep записывает длительность и статус одного прохода.
func ObserveSweep(sweep string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
	SweepRunsTotal.WithLabelValues(sweep, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}
