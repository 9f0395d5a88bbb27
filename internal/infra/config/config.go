package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Proxy struct {
		List     string        `envconfig:"PROXY_LIST"`
		Cooldown time.Duration `envconfig:"PROXY_COOLDOWN" default:"5m"`
		ProbeURL string        `envconfig:"PROXY_PROBE_URL" default:"https://www.reddit.com/robots.txt"`
	} `envconfig:""`

	Reddit struct {
		BaseURL      string        `envconfig:"REDDIT_BASE_URL" default:"https://www.reddit.com"`
		UserAgent    string        `envconfig:"REDDIT_USER_AGENT" default:"stock-pulse/1.0"`
		Timeout      time.Duration `envconfig:"REDDIT_TIMEOUT" default:"20s"`
		SearchLimit  int           `envconfig:"REDDIT_SEARCH_LIMIT" default:"25"`
		NewListLimit int           `envconfig:"REDDIT_NEW_LIST_LIMIT" default:"25"`
	} `envconfig:""`

	Sweep struct {
		FreshnessEvery time.Duration `envconfig:"FRESHNESS_SWEEP_EVERY" default:"5m"`
		ScoringEvery   time.Duration `envconfig:"SCORING_SWEEP_EVERY" default:"10m"`
		DiscoveryEvery time.Duration `envconfig:"DISCOVERY_SWEEP_EVERY" default:"30m"`
		ScoringBatch   int           `envconfig:"SCORING_BATCH" default:"50"`
		SleepMin       time.Duration `envconfig:"SWEEP_SLEEP_MIN" default:"2s"`
		SleepMax       time.Duration `envconfig:"SWEEP_SLEEP_MAX" default:"6s"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Finnhub struct {
		APIKey   string        `envconfig:"FINNHUB_API_KEY"`
		BaseURL  string        `envconfig:"FINNHUB_BASE_URL" default:"https://finnhub.io/api/v1"`
		Timeout  time.Duration `envconfig:"FINNHUB_TIMEOUT" default:"10s"`
		CacheTTL time.Duration `envconfig:"FINNHUB_CACHE_TTL" default:"24h"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
