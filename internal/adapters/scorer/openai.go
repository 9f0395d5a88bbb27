package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"stock-pulse/internal/domain"
	openai "stock-pulse/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует SentimentScorer через OpenAI Chat Completions.
// Детерминированная процедура из RulesScorer закодирована в инструкции модели.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ domain.SentimentScorer = (*OpenAI)(nil)

// NewOpenAI создаёт LLM-скорер.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

type sentimentPayload struct {
	Sentiment     *float64 `json:"sentiment"`
	FlagForDelete bool     `json:"flag_for_delete"`
}

// Score оценивает комментарий. Любой сбой вызова или некорректный JSON
// оборачивается в ErrScoring — комментарий остаётся неоценённым.
func (s *OpenAI) Score(ctx context.Context, ticker, body string, votes int) (domain.Sentiment, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Sentiment{Value: 0, FlagForDelete: true}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Оцени тональность комментария с Reddit про акцию %s.
Процедура:
1. Выбери базовый тон из лестницы {+0.90, +0.65, +0.30, 0.00, -0.30, -0.65, -0.90} по самому сильному сигналу в тексте; при ничьей бери 0.00.
2. Прибавь +0.02 за каждое вхождение бычьего слова (growth, execution, execute, catalyst, revenue, profitability, margins, guidance, expansion, adoption, demand, contracts, backlog, scale, turnaround, recovery, momentum, strong balance sheet), суммарно не больше +0.10.
3. Вычти 0.02 за каждое вхождение медвежьего слова (delay, miss, risk, uncertainty, dilution, debt, cash burn, layoffs, weak demand, margin pressure, regulatory risk, lawsuit, downgrade, overvalued, bad quarter, slowdown), суммарно не больше -0.10.
4. Усиль оценку по модулю голосов (%d): 0 при 0-5, 0.02 при 6-20, 0.04 при 21-50, 0.05 при 51-100, 0.08 свыше 100 — знак добавки совпадает со знаком уже накопленной оценки.
5. Ограничь результат отрезком [-1, 1] и округли до двух знаков.
flag_for_delete = true, если текст не про компанию %s, является голой ссылкой на медиа или вообще не мнение об акции.
Верни строго JSON {"sentiment": число, "flag_for_delete": булево} без пояснений.
Текст комментария:
%s`, ticker, votes, ticker, clipRunes(body, 2000))

	req := openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 200,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "Ты аналитик тональности биржевых обсуждений. Следуй процедуре дословно и не добавляй комментариев.",
			},
			{
				Role:    openai.RoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: %v", domain.ErrScoring, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Sentiment{}, fmt.Errorf("%w: пустой ответ модели", domain.ErrScoring)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed sentimentPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: распаковка ответа: %v", domain.ErrScoring, err)
	}
	if parsed.Sentiment == nil {
		return domain.Sentiment{}, fmt.Errorf("%w: в ответе нет поля sentiment", domain.ErrScoring)
	}
	value := *parsed.Sentiment
	if value < -1 || value > 1 {
		return domain.Sentiment{}, fmt.Errorf("%w: значение %v вне [-1, 1]", domain.ErrScoring, value)
	}
	value = math.Round(value*100) / 100
	return domain.Sentiment{Value: value, FlagForDelete: parsed.FlagForDelete}, nil
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
