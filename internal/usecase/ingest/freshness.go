package ingest

import "time"

// MaxPostAge — жёсткая отсечка: посты старше недели не обходятся вовсе.
const MaxPostAge = 7 * 24 * time.Hour

// scrapeRule задаёт интервал повторного обхода для постов младше maxAge.
// Правила взаимоисключающие и упорядочены по возрастанию maxAge.
type scrapeRule struct {
	maxAge   time.Duration
	interval time.Duration
}

var scrapeRules = []scrapeRule{
	{maxAge: 24 * time.Hour, interval: 10 * time.Minute},
	{maxAge: 3 * 24 * time.Hour, interval: time.Hour},
	{maxAge: MaxPostAge, interval: 24 * time.Hour},
}

// ShouldScrape решает, пора ли обходить пост заново. Чистая функция без I/O,
// проверяется на синтетических часах.
func ShouldScrape(now, postedAt time.Time, lastScrapedAt *time.Time) bool {
	age := now.Sub(postedAt)
	if age >= MaxPostAge {
		return false
	}
	if lastScrapedAt == nil {
		return true
	}
	for _, rule := range scrapeRules {
		if age < rule.maxAge {
			return now.Sub(*lastScrapedAt) >= rule.interval
		}
	}
	// сюда попадаем только при рассогласованных данных
	return false
}
