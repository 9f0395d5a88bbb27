package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunEverySkipsOverlappingRuns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var starts int32
	fn := func(context.Context) error {
		atomic.AddInt32(&starts, 1)
		time.Sleep(90 * time.Millisecond)
		return nil
	}

	s := NewSweeper(nil, zerolog.Nop(), 0, 0, 0)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		s.runEvery(ctx, "test", 20*time.Millisecond, &mu, fn)
		close(done)
	}()
	<-done
	time.Sleep(100 * time.Millisecond)

	// за 200мс тиков около девяти, но из-за single-flight стартует не больше трёх
	got := atomic.LoadInt32(&starts)
	if got < 1 || got > 3 {
		t.Fatalf("ожидали 1..3 запуска, получили %d", got)
	}
}

func TestRunEveryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSweeper(nil, zerolog.Nop(), 0, 0, 0)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		s.runEvery(ctx, "test", 10*time.Millisecond, &mu, func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runEvery не остановился по отмене контекста")
	}
}
