package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/metrics"
	"stock-pulse/internal/infra/proxy"
)

const summaryLimit = 256

// Request описывает исходящий HTTP-запрос.
type Request struct {
	Service string
	Method  string
	URL     string
	Body    []byte
}

// Client выполняет запросы через пул прокси и пишет телеметрию в request_log.
type Client struct {
	pool      *proxy.Pool
	logs      domain.RequestLogRepo
	log       zerolog.Logger
	timeout   time.Duration
	userAgent string
}

// NewClient создаёт клиента. logs может быть nil — телеметрия тогда не пишется.
func NewClient(pool *proxy.Pool, logs domain.RequestLogRepo, logger zerolog.Logger, timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{pool: pool, logs: logs, log: logger, timeout: timeout, userAgent: userAgent}
}

// Get выполняет GET через очередной прокси пула.
func (c *Client) Get(ctx context.Context, service, rawURL string) ([]byte, error) {
	return c.Do(ctx, Request{Service: service, Method: http.MethodGet, URL: rawURL})
}

// Do выполняет запрос через очередной прокси пула (или напрямую, если пул пуст).
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	return c.doThrough(ctx, req, c.pool.Next(), true)
}

// Probe выполняет лёгкую проверку конкретного прокси, без понижения его здоровья.
func (c *Client) Probe(ctx context.Context, pr proxy.Proxy, rawURL string) error {
	_, err := c.doThrough(ctx, Request{Service: "probe", Method: http.MethodGet, URL: rawURL}, &pr, false)
	return err
}

func (c *Client) doThrough(ctx context.Context, req Request, pr *proxy.Proxy, demote bool) ([]byte, error) {
	httpClient := &http.Client{Timeout: c.timeout}
	if pr != nil {
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(pr.URL())}
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: сборка запроса: %w", req.Service, err)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	status := 0
	var respBody []byte
	resp, err := httpClient.Do(httpReq)
	if err == nil {
		status = resp.StatusCode
		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}

	switch {
	case err != nil:
		if pr != nil && isConnectionError(err) {
			if demote {
				c.pool.MarkFailed(pr.ID())
			}
			err = &domain.ProxyNetworkError{Proxy: pr.Masked(), Err: err}
		} else {
			err = fmt.Errorf("%s: запрос не выполнен: %w", req.Service, err)
		}
	case status == http.StatusProxyAuthRequired && pr != nil:
		if demote {
			c.pool.MarkFailed(pr.ID())
		}
		err = &domain.ProxyNetworkError{Proxy: pr.Masked(), Err: errors.New("прокси требует авторизацию")}
	case status < 200 || status > 299:
		err = &domain.UpstreamHTTPError{Service: req.Service, Status: status}
	}

	metrics.ObserveNetworkRequest(req.Service, strings.ToLower(req.Method), hostOf(req.URL), start, err)
	c.emitLog(req, pr, start, status, respBody, err)

	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// emitLog пишет запись телеметрии; ошибки записи глотаются и не доходят до вызывающего.
func (c *Client) emitLog(req Request, pr *proxy.Proxy, start time.Time, status int, respBody []byte, reqErr error) {
	if c.logs == nil {
		return
	}
	entry := domain.RequestLogEntry{
		ID:              uuid.NewString(),
		Service:         req.Service,
		Endpoint:        pathOf(req.URL),
		Method:          req.Method,
		StartedAt:       start.UTC(),
		DurationMS:      time.Since(start).Milliseconds(),
		Status:          status,
		Success:         reqErr == nil,
		RequestSummary:  clip(string(req.Body), summaryLimit),
		ResponseSummary: clip(string(respBody), summaryLimit),
	}
	if pr != nil {
		entry.Proxy = pr.Masked()
	}
	if reqErr != nil {
		entry.ResponseSummary = clip(reqErr.Error(), summaryLimit)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.logs.SaveRequestLog(ctx, entry); err != nil {
		c.log.Debug().Err(err).Str("service", req.Service).Msg("fetch: не удалось записать телеметрию запроса")
	}
}

// isConnectionError отличает сбои соединения от прикладных ошибок.
// Отмена контекста сбоем прокси не считается.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE, syscall.EHOSTUNREACH, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// транспортные ошибки http.Client приходят обёрнутыми в url.Error
		return true
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	return u.Host
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
