package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/proxy"
)

type logSink struct {
	mu      sync.Mutex
	entries []domain.RequestLogEntry
	fail    bool
}

func (s *logSink) SaveRequestLog(_ context.Context, entry domain.RequestLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("сломанный сток")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func directClient(sink *logSink) *Client {
	pool := proxy.NewPool(nil, time.Minute, zerolog.Nop())
	return NewClient(pool, sink, zerolog.Nop(), 5*time.Second, "stock-pulse-test/1.0")
}

func TestGetSuccessWritesLogEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sink := &logSink{}
	client := directClient(sink)
	body, err := client.Get(context.Background(), "test", srv.URL+"/things.json")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("неожиданное тело: %s", body)
	}
	if len(sink.entries) != 1 {
		t.Fatalf("ожидали одну запись телеметрии, получили %d", len(sink.entries))
	}
	entry := sink.entries[0]
	if !entry.Success || entry.Status != 200 || entry.Endpoint != "/things.json" {
		t.Fatalf("неожиданная запись: %+v", entry)
	}
}

func TestNon2xxBecomesUpstreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := directClient(&logSink{})
	_, err := client.Get(context.Background(), "test", srv.URL)
	var httpErr *domain.UpstreamHTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("ожидали UpstreamHTTPError, получили %v", err)
	}
	if httpErr.Status != http.StatusForbidden {
		t.Fatalf("ожидали статус 403, получили %d", httpErr.Status)
	}
}

func TestDeadProxyIsDemoted(t *testing.T) {
	// порт 1 на loopback закрыт, соединение падает на уровне транспорта
	dead := proxy.Proxy{Host: "127.0.0.1", Port: "1", User: "u", Pass: "p"}
	pool := proxy.NewPool([]proxy.Proxy{dead}, time.Minute, zerolog.Nop())
	client := NewClient(pool, nil, zerolog.Nop(), 2*time.Second, "")

	_, err := client.Get(context.Background(), "test", "http://example.com/")
	var proxyErr *domain.ProxyNetworkError
	if !errors.As(err, &proxyErr) {
		t.Fatalf("ожидали ProxyNetworkError, получили %v", err)
	}
	if pool.IsAvailable(dead.ID()) {
		t.Fatalf("прокси должен быть в cooldown после сбоя соединения")
	}
}

func TestUpstreamErrorDoesNotDemoteProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	pool := proxy.NewPool(nil, time.Minute, zerolog.Nop())
	client := NewClient(pool, nil, zerolog.Nop(), 2*time.Second, "")
	_, err := client.Get(context.Background(), "test", srv.URL)
	var proxyErr *domain.ProxyNetworkError
	if errors.As(err, &proxyErr) {
		t.Fatalf("403 от источника не должен классифицироваться как сбой прокси")
	}
}

func TestLogSinkFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := directClient(&logSink{fail: true})
	if _, err := client.Get(context.Background(), "test", srv.URL); err != nil {
		t.Fatalf("ошибка стока телеметрии не должна доходить до вызывающего: %v", err)
	}
}

func TestClipTruncatesLongBody(t *testing.T) {
	long := make([]rune, summaryLimit*2)
	for i := range long {
		long[i] = 'x'
	}
	clipped := clip(string(long), summaryLimit)
	if len([]rune(clipped)) != summaryLimit+1 {
		t.Fatalf("ожидали обрезку до %d рун, получили %d", summaryLimit+1, len([]rune(clipped)))
	}
}
