package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/metrics"
)

// Config задаёт пределы и паузы оркестратора.
type Config struct {
	SearchLimit  int
	NewListLimit int
	ScoringBatch int
	SleepMin     time.Duration
	SleepMax     time.Duration
}

// Service — оркестратор конвейера: обнаружение постов, обход по свежести,
// скоринг комментариев. Ошибки отдельных постов и комментариев не прерывают проход.
type Service struct {
	stocks   domain.StockRepo
	posts    domain.PostRepo
	comments domain.CommentRepo
	source   domain.ContentSource
	scorer   domain.SentimentScorer
	log      zerolog.Logger
	cfg      Config
}

// NewService создаёт оркестратор.
func NewService(stocks domain.StockRepo, posts domain.PostRepo, comments domain.CommentRepo, source domain.ContentSource, scorer domain.SentimentScorer, logger zerolog.Logger, cfg Config) *Service {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 25
	}
	if cfg.NewListLimit <= 0 {
		cfg.NewListLimit = 25
	}
	if cfg.ScoringBatch <= 0 {
		cfg.ScoringBatch = 50
	}
	return &Service{stocks: stocks, posts: posts, comments: comments, source: source, scorer: scorer, log: logger, cfg: cfg}
}

// DiscoverTicker ищет свежие посты по тикеру и заводит заглушки постов.
func (s *Service) DiscoverTicker(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("пустой тикер")
	}
	stock, err := s.stocks.UpsertStock(ctx, domain.Stock{Ticker: ticker})
	if err != nil {
		return fmt.Errorf("создание акции %s: %w", ticker, err)
	}
	stubs, err := s.source.SearchPosts(ctx, stock.Ticker, s.cfg.SearchLimit)
	if err != nil {
		return fmt.Errorf("поиск постов %s: %w", ticker, err)
	}
	s.savePostStubs(ctx, stock, stubs, domain.DiscoverySourceSearch)
	return nil
}

// RunDiscoverySweep обходит все отслеживаемые акции: поиск по тикеру и,
// если известен, официальный сабреддит. Ошибки по одной акции логируются и пропускаются.
func (s *Service) RunDiscoverySweep(ctx context.Context) error {
	runID := uuid.NewString()
	swLog := s.log.With().Str("run_id", runID).Str("sweep", "discovery").Logger()
	start := time.Now()
	swLog.Info().Msg("ingest: проход обнаружения начат")

	stocks, err := s.stocks.ListStocks(ctx)
	if err != nil {
		metrics.ObserveSweep("discovery", start, err)
		return fmt.Errorf("список акций: %w", err)
	}

	var found int
	for _, stock := range stocks {
		if ctx.Err() != nil {
			break
		}
		stubs, err := s.source.SearchPosts(ctx, stock.Ticker, s.cfg.SearchLimit)
		if err != nil {
			swLog.Error().Err(err).Str("ticker", stock.Ticker).Msg("ingest: поиск постов не удался")
		} else {
			found += s.savePostStubs(ctx, stock, stubs, domain.DiscoverySourceSearch)
		}
		s.sleepBetween(ctx)

		if stock.OfficialSubreddit == "" {
			continue
		}
		stubs, err = s.source.SubredditNew(ctx, stock.OfficialSubreddit, s.cfg.NewListLimit)
		if err != nil {
			swLog.Error().Err(err).Str("ticker", stock.Ticker).Str("subreddit", stock.OfficialSubreddit).Msg("ingest: обход сабреддита не удался")
		} else {
			found += s.savePostStubs(ctx, stock, stubs, domain.DiscoverySourceSubreddit)
		}
		s.sleepBetween(ctx)
	}

	metrics.ObserveSweep("discovery", start, nil)
	swLog.Info().Int("stocks", len(stocks)).Int("found", found).Dur("duration", time.Since(start)).Msg("ingest: проход обнаружения завершён")
	return nil
}

// RunFreshnessSweep обходит посты, которым по возрастным правилам пора обновиться.
func (s *Service) RunFreshnessSweep(ctx context.Context) error {
	runID := uuid.NewString()
	swLog := s.log.With().Str("run_id", runID).Str("sweep", "freshness").Logger()
	start := time.Now()
	swLog.Info().Msg("ingest: проход свежести начат")

	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		metrics.ObserveSweep("freshness", start, err)
		return fmt.Errorf("список постов: %w", err)
	}

	var fetched, skipped, failed int
	for _, post := range posts {
		if ctx.Err() != nil {
			break
		}
		if !ShouldScrape(time.Now().UTC(), post.PostedAt, post.LastScrapedAt) {
			skipped++
			continue
		}
		if err := s.refreshPost(ctx, post); err != nil {
			failed++
			swLog.Error().Err(err).Str("post", post.ExternalID).Msg("ingest: не удалось обновить пост")
		} else {
			fetched++
		}
		s.sleepBetween(ctx)
	}

	metrics.ObserveSweep("freshness", start, nil)
	swLog.Info().Int("fetched", fetched).Int("skipped", skipped).Int("failed", failed).Dur("duration", time.Since(start)).Msg("ingest: проход свежести завершён")
	return nil
}

// RunScoringSweep оценивает ограниченную пачку неоценённых комментариев.
// Результаты пишутся по одному: сбой в середине теряет максимум один комментарий.
func (s *Service) RunScoringSweep(ctx context.Context) error {
	runID := uuid.NewString()
	swLog := s.log.With().Str("run_id", runID).Str("sweep", "scoring").Logger()
	start := time.Now()
	swLog.Info().Msg("ingest: проход скоринга начат")

	items, err := s.comments.ListUnscored(ctx, s.cfg.ScoringBatch)
	if err != nil {
		metrics.ObserveSweep("scoring", start, err)
		return fmt.Errorf("выборка неоценённых комментариев: %w", err)
	}

	var scored, failed int
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		sentiment, err := s.scorer.Score(ctx, item.Ticker, item.Body, item.Votes)
		if err != nil {
			failed++
			metrics.CommentsScoredTotal.WithLabelValues("error").Inc()
			swLog.Error().Err(err).Int64("comment", item.CommentID).Msg("ingest: скоринг не удался, комментарий остаётся неоценённым")
			continue
		}
		if err := s.comments.SaveSentiment(ctx, item.CommentID, sentiment, time.Now().UTC()); err != nil {
			failed++
			metrics.CommentsScoredTotal.WithLabelValues("error").Inc()
			swLog.Error().Err(err).Int64("comment", item.CommentID).Msg("ingest: не удалось сохранить оценку")
			continue
		}
		scored++
		metrics.CommentsScoredTotal.WithLabelValues("success").Inc()
		s.sleepBetween(ctx)
	}

	metrics.ObserveSweep("scoring", start, nil)
	swLog.Info().Int("scored", scored).Int("failed", failed).Dur("duration", time.Since(start)).Msg("ingest: проход скоринга завершён")
	return nil
}

func (s *Service) refreshPost(ctx context.Context, post domain.Post) error {
	snapshot, comments, err := s.source.PostDetail(ctx, post.URL)
	if err != nil {
		return err
	}
	scrapedAt := time.Now().UTC()
	content := domain.PostContent{
		PostID:        post.ID,
		Title:         snapshot.Title,
		Author:        snapshot.Author,
		Score:         snapshot.Score,
		Body:          snapshot.Body,
		CommentsCount: snapshot.CommentsCount,
		ScrapedAt:     scrapedAt,
	}
	if err := s.posts.SavePostContent(ctx, content); err != nil {
		return fmt.Errorf("сохранение содержимого: %w", err)
	}

	kept := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if !KeepComment(c.Score, c.Body) {
			continue
		}
		c.PostID = post.ID
		c.ScrapedAt = scrapedAt
		kept = append(kept, c)
	}
	if err := s.comments.UpsertComments(ctx, kept); err != nil {
		return fmt.Errorf("сохранение комментариев: %w", err)
	}
	if err := s.posts.AdvanceLastScrapedAt(ctx, post.ID, scrapedAt); err != nil {
		return fmt.Errorf("отметка обхода: %w", err)
	}
	metrics.PostsFetchedTotal.Inc()
	metrics.CommentsPersistedTotal.Add(float64(len(kept)))
	return nil
}

func (s *Service) savePostStubs(ctx context.Context, stock domain.Stock, stubs []domain.PostStub, source domain.DiscoverySource) int {
	saved := 0
	for _, stub := range stubs {
		post := domain.Post{
			StockID:    stock.ID,
			ExternalID: stub.ExternalID,
			URL:        stub.URL,
			Source:     source,
			PostedAt:   stub.PostedAt,
		}
		if _, err := s.posts.UpsertPost(ctx, post); err != nil {
			s.log.Error().Err(err).Str("post", stub.ExternalID).Msg("ingest: не удалось сохранить заглушку поста")
			continue
		}
		saved++
	}
	return saved
}

// sleepBetween делает случайную паузу между сетевыми единицами работы —
// намеренный троттлинг под неявные лимиты источника.
func (s *Service) sleepBetween(ctx context.Context) {
	if s.cfg.SleepMax <= 0 {
		return
	}
	d := s.cfg.SleepMin
	if s.cfg.SleepMax > s.cfg.SleepMin {
		d += time.Duration(rand.Int63n(int64(s.cfg.SleepMax - s.cfg.SleepMin)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
