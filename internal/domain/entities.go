package domain

import "time"

// Stock описывает отслеживаемую акцию.
type Stock struct {
	ID                int64
	Ticker            string
	Name              string
	OfficialSubreddit string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DiscoverySource указывает, откуда пост попал в систему.
type DiscoverySource string

const (
	// DiscoverySourceSearch пост найден через поиск Reddit.
	DiscoverySourceSearch DiscoverySource = "search"
	// DiscoverySourceSubreddit пост найден в официальном сабреддите компании.
	DiscoverySourceSubreddit DiscoverySource = "subreddit"
)

// Post представляет обнаруженный пост Reddit.
type Post struct {
	ID            int64
	StockID       int64
	ExternalID    string
	URL           string
	Source        DiscoverySource
	PostedAt      time.Time
	LastScrapedAt *time.Time
	CreatedAt     time.Time
}

// PostContent хранит снимок содержимого поста, перезаписывается при каждом обходе.
type PostContent struct {
	PostID        int64
	Title         string
	Author        string
	Score         int
	Body          string
	CommentsCount int
	ScrapedAt     time.Time
}

// Comment представляет комментарий поста после разворачивания дерева ответов.
type Comment struct {
	ID            int64
	PostID        int64
	ExternalID    string
	ParentID      string
	Depth         int
	Author        string
	Body          string
	Score         int
	CommentedAt   time.Time
	ScrapedAt     time.Time
	ScoredAt      *time.Time
	Sentiment     *float64
	FlagForDelete bool
}

// Sentiment содержит итог скоринга одного комментария.
type Sentiment struct {
	Value         float64
	FlagForDelete bool
}

// PostStub описывает пост на этапе обнаружения, до выгрузки содержимого.
type PostStub struct {
	ExternalID string
	Title      string
	URL        string
	PostedAt   time.Time
}

// PostSnapshot содержит нормализованное содержимое поста из JSON-выдачи.
type PostSnapshot struct {
	Title         string
	Author        string
	Score         int
	Body          string
	CommentsCount int
}

// ScoringItem — неоценённый комментарий вместе с тикером его акции.
type ScoringItem struct {
	CommentID int64
	Ticker    string
	Body      string
	Votes     int
}

// SymbolMatch — результат поиска тикера во внешнем справочнике.
type SymbolMatch struct {
	Ticker string
	Name   string
	Type   string
}

// RequestLogEntry фиксирует один исходящий запрос, пишется только на запись.
type RequestLogEntry struct {
	ID              string
	Service         string
	Endpoint        string
	Method          string
	StartedAt       time.Time
	DurationMS      int64
	Status          int
	Success         bool
	Proxy           string
	RequestSummary  string
	ResponseSummary string
}
