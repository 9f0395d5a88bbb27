package domain

import (
	"context"
	"time"
)

// StockRepo управляет акциями.
type StockRepo interface {
	UpsertStock(ctx context.Context, stock Stock) (Stock, error)
	GetStockByTicker(ctx context.Context, ticker string) (Stock, error)
	ListStocks(ctx context.Context) ([]Stock, error)
	DeleteStock(ctx context.Context, ticker string) error
}

// PostRepo управляет постами и снимками их содержимого.
type PostRepo interface {
	UpsertPost(ctx context.Context, post Post) (Post, error)
	ListPosts(ctx context.Context) ([]Post, error)
	SavePostContent(ctx context.Context, content PostContent) error
	AdvanceLastScrapedAt(ctx context.Context, postID int64, scrapedAt time.Time) error
}

// CommentRepo управляет комментариями и результатами скоринга.
type CommentRepo interface {
	UpsertComments(ctx context.Context, comments []Comment) error
	ListUnscored(ctx context.Context, limit int) ([]ScoringItem, error)
	SaveSentiment(ctx context.Context, commentID int64, sentiment Sentiment, scoredAt time.Time) error
}

// RequestLogRepo пишет телеметрию исходящих запросов.
type RequestLogRepo interface {
	SaveRequestLog(ctx context.Context, entry RequestLogEntry) error
}

// ContentSource отдаёт посты и комментарии источника контента.
type ContentSource interface {
	SearchPosts(ctx context.Context, query string, limit int) ([]PostStub, error)
	SubredditNew(ctx context.Context, subreddit string, limit int) ([]PostStub, error)
	PostDetail(ctx context.Context, url string) (PostSnapshot, []Comment, error)
}

// SentimentScorer оценивает тональность комментария про акцию.
type SentimentScorer interface {
	Score(ctx context.Context, ticker, body string, votes int) (Sentiment, error)
}

// SymbolSearcher ищет тикеры во внешнем справочнике символов.
type SymbolSearcher interface {
	Search(ctx context.Context, query string) ([]SymbolMatch, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
