package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper запускает проходы по расписанию. На каждый вид прохода действует
// single-flight: если предыдущий запуск ещё идёт, очередной тик пропускается
// с записью в лог, запуски не копятся в очередь.
type Sweeper struct {
	svc *Service
	log zerolog.Logger

	freshnessEvery time.Duration
	scoringEvery   time.Duration
	discoveryEvery time.Duration

	freshnessMu sync.Mutex
	scoringMu   sync.Mutex
	discoveryMu sync.Mutex
}

// NewSweeper создаёт планировщик проходов.
func NewSweeper(svc *Service, logger zerolog.Logger, freshnessEvery, scoringEvery, discoveryEvery time.Duration) *Sweeper {
	return &Sweeper{
		svc:            svc,
		log:            logger,
		freshnessEvery: freshnessEvery,
		scoringEvery:   scoringEvery,
		discoveryEvery: discoveryEvery,
	}
}

// Run блокируется до отмены контекста. Запущенный проход дорабатывает до конца,
// сами циклы останавливаются кооперативно.
func (s *Sweeper) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.runEvery(ctx, "freshness", s.freshnessEvery, &s.freshnessMu, s.svc.RunFreshnessSweep)
	}()
	go func() {
		defer wg.Done()
		s.runEvery(ctx, "scoring", s.scoringEvery, &s.scoringMu, s.svc.RunScoringSweep)
	}()
	go func() {
		defer wg.Done()
		s.runEvery(ctx, "discovery", s.discoveryEvery, &s.discoveryMu, s.svc.RunDiscoverySweep)
	}()
	wg.Wait()
}

func (s *Sweeper) runEvery(ctx context.Context, name string, every time.Duration, mu *sync.Mutex, fn func(context.Context) error) {
	if every <= 0 {
		s.log.Warn().Str("sweep", name).Msg("sweeper: интервал не задан, проход отключён")
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !mu.TryLock() {
				s.log.Warn().Str("sweep", name).Msg("sweeper: предыдущий проход ещё идёт, запуск пропущен")
				continue
			}
			go func() {
				defer mu.Unlock()
				if err := fn(ctx); err != nil {
					s.log.Error().Err(err).Str("sweep", name).Msg("sweeper: проход завершился ошибкой")
				}
			}()
		}
	}
}
