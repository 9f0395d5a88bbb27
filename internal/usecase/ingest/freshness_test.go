package ingest

import (
	"testing"
	"time"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestShouldScrapeNeverScraped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !ShouldScrape(now, now.Add(-30*time.Minute), nil) {
		t.Fatalf("молодой пост без обходов должен обходиться")
	}
	if !ShouldScrape(now, now.Add(-6*24*time.Hour), nil) {
		t.Fatalf("пост младше недели без обходов должен обходиться")
	}
}

func TestShouldScrapeHardCutoff(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	postedAt := now.Add(-8 * 24 * time.Hour)
	if ShouldScrape(now, postedAt, nil) {
		t.Fatalf("пост старше недели не обходится даже без обходов")
	}
	if ShouldScrape(now, postedAt, ptrTime(now.Add(-30*24*time.Hour))) {
		t.Fatalf("пост старше недели не обходится при любом last_scraped_at")
	}
	// ровно 7 дней — уже за отсечкой
	if ShouldScrape(now, now.Add(-MaxPostAge), nil) {
		t.Fatalf("возраст ровно 7 дней попадает под отсечку")
	}
}

func TestShouldScrapeIntervals(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name       string
		age        time.Duration
		sinceScrap time.Duration
		want       bool
	}{
		{"младше суток, обход 5 минут назад", 2 * time.Hour, 5 * time.Minute, false},
		{"младше суток, обход 10 минут назад", 2 * time.Hour, 10 * time.Minute, true},
		{"1-3 дня, обход 30 минут назад", 30 * time.Hour, 30 * time.Minute, false},
		{"1-3 дня, обход час назад", 30 * time.Hour, time.Hour, true},
		{"3-7 дней, обход 12 часов назад", 5 * 24 * time.Hour, 12 * time.Hour, false},
		{"3-7 дней, обход сутки назад", 5 * 24 * time.Hour, 24 * time.Hour, true},
	}
	for _, tc := range cases {
		got := ShouldScrape(now, now.Add(-tc.age), ptrTime(now.Add(-tc.sinceScrap)))
		if got != tc.want {
			t.Fatalf("%s: ожидали %v, получили %v", tc.name, tc.want, got)
		}
	}
}

func TestShouldScrapeMonotonicInIdleTime(t *testing.T) {
	// при фиксированном возрасте решение не меняется с true на false
	// при росте времени с последнего обхода
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	postedAt := now.Add(-40 * time.Hour)
	fired := false
	for idle := time.Minute; idle <= 3*time.Hour; idle += time.Minute {
		got := ShouldScrape(now, postedAt, ptrTime(now.Add(-idle)))
		if fired && !got {
			t.Fatalf("решение откатилось на false при простое %v", idle)
		}
		if got {
			fired = true
		}
	}
	if !fired {
		t.Fatalf("за три часа простоя обход так и не наступил")
	}
}
