package ingest

import (
	"strings"
	"testing"
)

func TestKeepComment(t *testing.T) {
	cases := []struct {
		name  string
		score int
		body  string
		want  bool
	}{
		{"низкая вовлечённость", 1, strings.Repeat("a", 50), false},
		{"короткое тело", 2, strings.Repeat("a", 9), false},
		{"отрицательный score проходит", -2, strings.Repeat("a", 10), true},
		{"граница по обоим критериям", 2, strings.Repeat("a", 10), true},
		{"ноль голосов", 0, strings.Repeat("a", 50), false},
		{"длина в рунах, не в байтах", 2, "привет биржа", true},
	}
	for _, tc := range cases {
		if got := KeepComment(tc.score, tc.body); got != tc.want {
			t.Fatalf("%s: ожидали %v, получили %v", tc.name, tc.want, got)
		}
	}
}
