package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.StockRepo      = (*Postgres)(nil)
	_ domain.PostRepo       = (*Postgres)(nil)
	_ domain.CommentRepo    = (*Postgres)(nil)
	_ domain.RequestLogRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// UpsertStock создаёт или обновляет акцию по тикеру.
// Пустые поля не затирают уже известные значения.
func (p *Postgres) UpsertStock(ctx context.Context, stock domain.Stock) (domain.Stock, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var (
		out       domain.Stock
		name      sql.NullString
		subreddit sql.NullString
	)
	err := p.pool.QueryRow(ctx, `
INSERT INTO stocks (ticker, name, official_subreddit)
VALUES ($1, NULLIF($2,''), NULLIF($3,''))
ON CONFLICT (ticker) DO UPDATE SET
    name = COALESCE(NULLIF(EXCLUDED.name,''), stocks.name),
    official_subreddit = COALESCE(NULLIF(EXCLUDED.official_subreddit,''), stocks.official_subreddit),
    updated_at = now()
RETURNING id, ticker, name, official_subreddit, created_at, updated_at
`, stock.Ticker, stock.Name, stock.OfficialSubreddit).Scan(&out.ID, &out.Ticker, &name, &subreddit, &out.CreatedAt, &out.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "stocks_upsert", "stocks", start, err)
	if err != nil {
		return domain.Stock{}, err
	}
	if name.Valid {
		out.Name = name.String
	}
	if subreddit.Valid {
		out.OfficialSubreddit = subreddit.String
	}
	return out, nil
}

// GetStockByTicker возвращает акцию по тикеру.
func (p *Postgres) GetStockByTicker(ctx context.Context, ticker string) (domain.Stock, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var (
		out       domain.Stock
		name      sql.NullString
		subreddit sql.NullString
	)
	err := p.pool.QueryRow(ctx, `
SELECT id, ticker, name, official_subreddit, created_at, updated_at
FROM stocks WHERE ticker=$1
`, ticker).Scan(&out.ID, &out.Ticker, &name, &subreddit, &out.CreatedAt, &out.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "stocks_get_by_ticker", "stocks", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stock{}, domain.ErrStockNotFound
	}
	if err != nil {
		return domain.Stock{}, err
	}
	if name.Valid {
		out.Name = name.String
	}
	if subreddit.Valid {
		out.OfficialSubreddit = subreddit.String
	}
	return out, nil
}

// ListStocks возвращает все отслеживаемые акции.
func (p *Postgres) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, ticker, name, official_subreddit, created_at, updated_at
FROM stocks ORDER BY ticker
`)
	metrics.ObserveNetworkRequest("postgres", "stocks_list", "stocks", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stocks []domain.Stock
	for rows.Next() {
		var (
			s         domain.Stock
			name      sql.NullString
			subreddit sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Ticker, &name, &subreddit, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if name.Valid {
			s.Name = name.String
		}
		if subreddit.Valid {
			s.OfficialSubreddit = subreddit.String
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// DeleteStock удаляет акцию; посты и комментарии уходят каскадом.
func (p *Postgres) DeleteStock(ctx context.Context, ticker string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `DELETE FROM stocks WHERE ticker=$1`, ticker)
	metrics.ObserveNetworkRequest("postgres", "stocks_delete", "stocks", start, err)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrStockNotFound
	}
	return nil
}

// UpsertPost создаёт пост или обновляет его URL; last_scraped_at не трогается.
func (p *Postgres) UpsertPost(ctx context.Context, post domain.Post) (domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var (
		out         domain.Post
		lastScraped sql.NullTime
	)
	err := p.pool.QueryRow(ctx, `
INSERT INTO posts (stock_id, external_id, url, source, posted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (external_id) DO UPDATE SET url = EXCLUDED.url
RETURNING id, stock_id, external_id, url, source, posted_at, last_scraped_at, created_at
`, post.StockID, post.ExternalID, post.URL, post.Source, post.PostedAt).Scan(
		&out.ID, &out.StockID, &out.ExternalID, &out.URL, &out.Source, &out.PostedAt, &lastScraped, &out.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "posts_upsert", "posts", start, err)
	if err != nil {
		return domain.Post{}, err
	}
	if lastScraped.Valid {
		ts := lastScraped.Time
		out.LastScrapedAt = &ts
	}
	return out, nil
}

// ListPosts возвращает все посты для планировщика свежести.
func (p *Postgres) ListPosts(ctx context.Context) ([]domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, stock_id, external_id, url, source, posted_at, last_scraped_at, created_at
FROM posts ORDER BY posted_at DESC
`)
	metrics.ObserveNetworkRequest("postgres", "posts_list", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []domain.Post
	for rows.Next() {
		var (
			post        domain.Post
			lastScraped sql.NullTime
		)
		if err := rows.Scan(&post.ID, &post.StockID, &post.ExternalID, &post.URL, &post.Source, &post.PostedAt, &lastScraped, &post.CreatedAt); err != nil {
			return nil, err
		}
		if lastScraped.Valid {
			ts := lastScraped.Time
			post.LastScrapedAt = &ts
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// SavePostContent перезаписывает снимок содержимого поста целиком.
func (p *Postgres) SavePostContent(ctx context.Context, content domain.PostContent) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO post_contents (post_id, title, author, score, body, comments_count, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (post_id) DO UPDATE SET
    title = EXCLUDED.title,
    author = EXCLUDED.author,
    score = EXCLUDED.score,
    body = EXCLUDED.body,
    comments_count = EXCLUDED.comments_count,
    scraped_at = EXCLUDED.scraped_at
`, content.PostID, content.Title, content.Author, content.Score, content.Body, content.CommentsCount, content.ScrapedAt)
	metrics.ObserveNetworkRequest("postgres", "post_contents_upsert", "post_contents", start, err)
	return err
}

// AdvanceLastScrapedAt двигает отметку обхода только вперёд.
func (p *Postgres) AdvanceLastScrapedAt(ctx context.Context, postID int64, scrapedAt time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE posts
SET last_scraped_at = GREATEST(COALESCE(last_scraped_at, to_timestamp(0)), $2)
WHERE id = $1
`, postID, scrapedAt)
	metrics.ObserveNetworkRequest("postgres", "posts_advance_scraped", "posts", start, err)
	return err
}

// UpsertComments сохраняет комментарии пачкой в одной транзакции.
// Повторный обход обновляет тело и счёт голосов, не трогая результат скоринга.
func (p *Postgres) UpsertComments(ctx context.Context, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "comments", start, err)
	if err != nil {
		return err
	}
	for _, c := range comments {
		start = time.Now()
		_, err = tx.Exec(ctx, `
INSERT INTO comments (post_id, external_id, parent_id, depth, author, body, score, commented_at, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (external_id) DO UPDATE SET
    body = EXCLUDED.body,
    score = EXCLUDED.score,
    scraped_at = EXCLUDED.scraped_at
`, c.PostID, c.ExternalID, c.ParentID, c.Depth, c.Author, c.Body, c.Score, c.CommentedAt, c.ScrapedAt)
		metrics.ObserveNetworkRequest("postgres", "comments_upsert", "comments", start, err)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("сохранение комментария %s: %w", c.ExternalID, err)
		}
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "comments", start, err)
	return err
}

// ListUnscored возвращает ограниченную пачку неоценённых комментариев с тикерами.
func (p *Postgres) ListUnscored(ctx context.Context, limit int) ([]domain.ScoringItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT c.id, s.ticker, c.body, c.score
FROM comments c
JOIN posts p ON p.id = c.post_id
JOIN stocks s ON s.id = p.stock_id
WHERE c.scored_at IS NULL
ORDER BY c.id
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "comments_list_unscored", "comments", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.ScoringItem
	for rows.Next() {
		var item domain.ScoringItem
		if err := rows.Scan(&item.CommentID, &item.Ticker, &item.Body, &item.Votes); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveSentiment записывает результат скоринга одного комментария.
func (p *Postgres) SaveSentiment(ctx context.Context, commentID int64, sentiment domain.Sentiment, scoredAt time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE comments
SET sentiment = $2, flag_for_delete = $3, scored_at = $4
WHERE id = $1
`, commentID, sentiment.Value, sentiment.FlagForDelete, scoredAt)
	metrics.ObserveNetworkRequest("postgres", "comments_save_sentiment", "comments", start, err)
	return err
}

// SaveRequestLog пишет запись телеметрии исходящего запроса.
func (p *Postgres) SaveRequestLog(ctx context.Context, entry domain.RequestLogEntry) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO request_log (id, service, endpoint, method, started_at, duration_ms, status, success, proxy, request_summary, response_summary)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`, entry.ID, entry.Service, entry.Endpoint, entry.Method, entry.StartedAt, entry.DurationMS, entry.Status, entry.Success, entry.Proxy, entry.RequestSummary, entry.ResponseSummary)
	metrics.ObserveNetworkRequest("postgres", "request_log_insert", "request_log", start, err)
	return err
}
