package proxy

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testProxies() []Proxy {
	return []Proxy{
		{Host: "10.0.0.1", Port: "8080", User: "u1", Pass: "p1"},
		{Host: "10.0.0.2", Port: "8080", User: "u2", Pass: "p2"},
		{Host: "10.0.0.3", Port: "8080", User: "u3", Pass: "p3"},
	}
}

func TestParseListDropsMalformed(t *testing.T) {
	raw := "10.0.0.1:8080:u:p, ,bad-entry,10.0.0.2:3128:user:pass,host:port"
	proxies := ParseList(raw, zerolog.Nop())
	if len(proxies) != 2 {
		t.Fatalf("ожидали 2 прокси, получили %d", len(proxies))
	}
	if proxies[0].ID() != "10.0.0.1:8080" || proxies[1].ID() != "10.0.0.2:3128" {
		t.Fatalf("неожиданные идентификаторы: %s, %s", proxies[0].ID(), proxies[1].ID())
	}
}

func TestMaskedHidesPassword(t *testing.T) {
	p := Proxy{Host: "10.0.0.1", Port: "8080", User: "user", Pass: "secret"}
	masked := p.Masked()
	if masked != "10.0.0.1:8080:user:***" {
		t.Fatalf("неожиданная маскировка: %s", masked)
	}
}

func TestNextRoundRobin(t *testing.T) {
	pool := NewPool(testProxies(), time.Minute, zerolog.Nop())
	got := []string{pool.Next().ID(), pool.Next().ID(), pool.Next().ID(), pool.Next().ID()}
	want := []string{"10.0.0.1:8080", "10.0.0.2:8080", "10.0.0.3:8080", "10.0.0.1:8080"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("шаг %d: ожидали %s, получили %s", i, want[i], got[i])
		}
	}
}

func TestNextEmptyPoolMeansDirect(t *testing.T) {
	pool := NewPool(nil, time.Minute, zerolog.Nop())
	if pool.Next() != nil {
		t.Fatalf("пустой пул должен означать прямое соединение")
	}
}

func TestNextSkipsFailedWithinCooldown(t *testing.T) {
	pool := NewPool(testProxies(), time.Minute, zerolog.Nop())
	pool.MarkFailed("10.0.0.1:8080")
	for i := 0; i < 6; i++ {
		if id := pool.Next().ID(); id == "10.0.0.1:8080" {
			t.Fatalf("шаг %d: упавший прокси выдан до истечения cooldown", i)
		}
	}
}

func TestNextFallbackWhenAllInCooldown(t *testing.T) {
	pool := NewPool(testProxies(), time.Minute, zerolog.Nop())
	for _, p := range testProxies() {
		pool.MarkFailed(p.ID())
	}
	got := pool.Next()
	if got == nil {
		t.Fatalf("ожидали прокси под курсором, получили nil")
	}
}

func TestAvailableAgainAfterCooldown(t *testing.T) {
	pool := NewPool(testProxies(), time.Minute, zerolog.Nop())
	current := time.Now()
	pool.now = func() time.Time { return current }
	pool.MarkFailed("10.0.0.2:8080")
	if pool.IsAvailable("10.0.0.2:8080") {
		t.Fatalf("прокси должен быть в cooldown")
	}
	current = current.Add(time.Minute + time.Second)
	if !pool.IsAvailable("10.0.0.2:8080") {
		t.Fatalf("после cooldown прокси снова пригоден")
	}
}
