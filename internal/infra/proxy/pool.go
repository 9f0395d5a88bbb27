package proxy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-pulse/internal/infra/metrics"
)

// DefaultCooldown — окно, в течение которого упавший прокси исключён из ротации.
const DefaultCooldown = 5 * time.Minute

// Proxy описывает один исходящий прокси.
type Proxy struct {
	Host string
	Port string
	User string
	Pass string
}

// ID возвращает идентификатор прокси для карты здоровья.
func (p Proxy) ID() string {
	return p.Host + ":" + p.Port
}

// URL собирает адрес прокси для http.Transport.
func (p Proxy) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Host + ":" + p.Port}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Pass)
	}
	return u
}

// Masked возвращает представление прокси без пароля для логов и телеметрии.
func (p Proxy) Masked() string {
	if p.User == "" {
		return p.ID()
	}
	return fmt.Sprintf("%s:%s:%s:***", p.Host, p.Port, p.User)
}

// ParseList разбирает список прокси вида host:port:user:pass через запятую.
// Некорректные записи отбрасываются с предупреждением.
func ParseList(raw string, logger zerolog.Logger) []Proxy {
	var proxies []Proxy
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 || parts[0] == "" || parts[1] == "" {
			logger.Warn().Str("entry", entry).Msg("proxy: некорректная запись прокси, пропускаем")
			continue
		}
		proxies = append(proxies, Proxy{Host: parts[0], Port: parts[1], User: parts[2], Pass: parts[3]})
	}
	return proxies
}

type healthRecord struct {
	healthy     bool
	lastFailure time.Time
}

// Pool раздаёт прокси по кругу и ведёт карту их здоровья.
// Состояние живёт в памяти процесса и пересоздаётся валидацией на старте.
type Pool struct {
	mu       sync.Mutex
	proxies  []Proxy
	cursor   int
	health   map[string]healthRecord
	cooldown time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewPool создаёт пул прокси.
func NewPool(proxies []Proxy, cooldown time.Duration, logger zerolog.Logger) *Pool {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Pool{
		proxies:  proxies,
		health:   make(map[string]healthRecord, len(proxies)),
		cooldown: cooldown,
		now:      time.Now,
		log:      logger,
	}
}

// Len возвращает размер пула.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Next возвращает следующий пригодный прокси по кругу.
// nil означает прямое соединение (пул пуст). Если все прокси в cooldown,
// возвращается прокси под курсором — вызывающий повторит попытку позже.
func (p *Pool) Next() *Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return nil
	}
	start := p.cursor
	for i := 0; i < len(p.proxies); i++ {
		idx := (start + i) % len(p.proxies)
		candidate := p.proxies[idx]
		if p.isAvailableLocked(candidate.ID()) {
			p.cursor = (idx + 1) % len(p.proxies)
			return &candidate
		}
	}
	fallback := p.proxies[start]
	p.cursor = (start + 1) % len(p.proxies)
	return &fallback
}

// MarkFailed фиксирует сбой соединения через прокси.
func (p *Pool) MarkFailed(id string) {
	p.mu.Lock()
	p.health[id] = healthRecord{healthy: false, lastFailure: p.now()}
	p.mu.Unlock()
	p.log.Warn().Str("proxy", id).Msg("proxy: прокси помечен недоступным")
	p.updateGauge()
}

// IsAvailable сообщает, пригоден ли прокси прямо сейчас.
func (p *Pool) IsAvailable(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isAvailableLocked(id)
}

func (p *Pool) isAvailableLocked(id string) bool {
	rec, ok := p.health[id]
	if !ok || rec.healthy {
		return true
	}
	return p.now().Sub(rec.lastFailure) >= p.cooldown
}

// Validate прогоняет лёгкую проверку по каждому прокси и заполняет карту здоровья.
// Сбой проверки не фатален: прокси снова станет доступен после cooldown.
func (p *Pool) Validate(ctx context.Context, probe func(ctx context.Context, proxy Proxy) error) {
	p.mu.Lock()
	proxies := make([]Proxy, len(p.proxies))
	copy(proxies, p.proxies)
	p.mu.Unlock()

	for _, pr := range proxies {
		err := probe(ctx, pr)
		p.mu.Lock()
		if err != nil {
			p.health[pr.ID()] = healthRecord{healthy: false, lastFailure: p.now()}
		} else {
			p.health[pr.ID()] = healthRecord{healthy: true}
		}
		p.mu.Unlock()
		if err != nil {
			p.log.Warn().Err(err).Str("proxy", pr.Masked()).Msg("proxy: проверка не пройдена")
		} else {
			p.log.Debug().Str("proxy", pr.Masked()).Msg("proxy: проверка пройдена")
		}
	}
	p.updateGauge()
}

func (p *Pool) updateGauge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	healthy := 0
	for _, pr := range p.proxies {
		if p.isAvailableLocked(pr.ID()) {
			healthy++
		}
	}
	metrics.ProxiesHealthy.Set(float64(healthy))
}
