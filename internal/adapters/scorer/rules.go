package scorer

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode"

	"stock-pulse/internal/domain"
)

const keywordStep = 0.02
const keywordCap = 0.10

// toneSignal связывает маркерные фразы с базовым значением тона.
type toneSignal struct {
	value   float64
	phrases []string
}

// Лестница тона: от крайне бычьего к крайне медвежьему. Базой становится
// самый сильный из совпавших сигналов, при ничьей — нейтраль.
var toneLadder = []toneSignal{
	{value: 0.90, phrases: []string{"to the moon", "massive upside", "screaming buy", "generational opportunity"}},
	{value: 0.65, phrases: []string{"bullish", "strong buy", "undervalued", "beat expectations", "great quarter", "buying more"}},
	{value: 0.30, phrases: []string{"optimistic", "looks promising", "solid quarter", "leaning long"}},
	{value: -0.30, phrases: []string{"cautious", "concerning", "underwhelming", "not convinced"}},
	{value: -0.65, phrases: []string{"bearish", "sell now", "stay away", "dead money", "missed expectations"}},
	{value: -0.90, phrases: []string{"going to zero", "bankrupt", "total scam", "fraud", "dumpster fire"}},
}

var bullishKeywords = []string{
	"growth", "execution", "execute", "catalyst", "revenue", "profitability",
	"margins", "guidance", "expansion", "adoption", "demand", "contracts",
	"backlog", "scale", "turnaround", "recovery", "momentum", "strong balance sheet",
}

var bearishKeywords = []string{
	"delay", "miss", "risk", "uncertainty", "dilution", "debt", "cash burn",
	"layoffs", "weak demand", "margin pressure", "regulatory risk", "lawsuit",
	"downgrade", "overvalued", "bad quarter", "slowdown",
}

var bareLinkRe = regexp.MustCompile(`^https?://\S+$`)

// RulesScorer — детерминированная эталонная реализация скоринга.
// Тот же контракт воспроизводит LLM-реализация, что позволяет подменять их в тестах.
type RulesScorer struct{}

var _ domain.SentimentScorer = (*RulesScorer)(nil)

// NewRules создаёт скорер.
func NewRules() *RulesScorer {
	return &RulesScorer{}
}

// Score вычисляет тональность комментария по фиксированной процедуре.
func (s *RulesScorer) Score(_ context.Context, _, body string, votes int) (domain.Sentiment, error) {
	text := strings.ToLower(body)
	value := baseTone(text)
	value += keywordShift(text, bullishKeywords)
	value -= keywordShift(text, bearishKeywords)
	value += voteAdjustment(value, votes)
	if value > 1 {
		value = 1
	}
	if value < -1 {
		value = -1
	}
	value = math.Round(value*100) / 100
	return domain.Sentiment{Value: value, FlagForDelete: flagForDelete(body)}, nil
}

func baseTone(text string) float64 {
	var pos, neg float64
	for _, sig := range toneLadder {
		for _, phrase := range sig.phrases {
			if !strings.Contains(text, phrase) {
				continue
			}
			if sig.value > pos {
				pos = sig.value
			}
			if sig.value < neg {
				neg = sig.value
			}
			break
		}
	}
	switch {
	case pos > -neg:
		return pos
	case -neg > pos:
		return neg
	default:
		return 0
	}
}

func keywordShift(text string, keywords []string) float64 {
	shift := 0.0
	for _, kw := range keywords {
		shift += keywordStep * float64(strings.Count(text, kw))
	}
	if shift > keywordCap {
		return keywordCap
	}
	return shift
}

// voteAdjustment усиливает уже накопленную оценку: знак задаёт текущая
// тональность, а не сами голоса. Нулевая оценка не сдвигается.
func voteAdjustment(running float64, votes int) float64 {
	if votes < 0 {
		votes = -votes
	}
	var magnitude float64
	switch {
	case votes <= 5:
		magnitude = 0
	case votes <= 20:
		magnitude = 0.02
	case votes <= 50:
		magnitude = 0.04
	case votes <= 100:
		magnitude = 0.05
	default:
		magnitude = 0.08
	}
	switch {
	case running > 0:
		return magnitude
	case running < 0:
		return -magnitude
	default:
		return 0
	}
}

// flagForDelete отмечает очевидно не-мнения: пустые тела, голые ссылки,
// тела без единой буквы. Тонкую off-topic классификацию делает LLM-реализация.
func flagForDelete(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return true
	}
	if bareLinkRe.MatchString(trimmed) {
		return true
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
