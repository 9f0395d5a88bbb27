package scorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock-pulse/internal/domain"
	openai "stock-pulse/internal/infra/openai"
)

type fakeChatClient struct {
	content string
	err     error
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: f.content}}},
	}, nil
}

func TestOpenAIScoreParsesPayload(t *testing.T) {
	s := NewOpenAI(&fakeChatClient{content: `{"sentiment": 0.42, "flag_for_delete": false}`}, "test-model", time.Second)
	got, err := s.Score(context.Background(), "NVDA", "Margins are expanding", 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.Value != 0.42 || got.FlagForDelete {
		t.Fatalf("неожиданный результат: %+v", got)
	}
}

func TestOpenAIScoreMalformedJSONIsScoringError(t *testing.T) {
	s := NewOpenAI(&fakeChatClient{content: `looks bullish to me`}, "test-model", time.Second)
	_, err := s.Score(context.Background(), "NVDA", "body", 0)
	if !errors.Is(err, domain.ErrScoring) {
		t.Fatalf("ожидали ErrScoring, получили %v", err)
	}
}

func TestOpenAIScoreOutOfRangeIsScoringError(t *testing.T) {
	s := NewOpenAI(&fakeChatClient{content: `{"sentiment": 3.5, "flag_for_delete": false}`}, "test-model", time.Second)
	_, err := s.Score(context.Background(), "NVDA", "body", 0)
	if !errors.Is(err, domain.ErrScoring) {
		t.Fatalf("ожидали ErrScoring для значения вне диапазона, получили %v", err)
	}
}

func TestOpenAIScoreTransportErrorIsScoringError(t *testing.T) {
	s := NewOpenAI(&fakeChatClient{err: errors.New("quota exceeded")}, "test-model", time.Second)
	_, err := s.Score(context.Background(), "NVDA", "body", 0)
	if !errors.Is(err, domain.ErrScoring) {
		t.Fatalf("ожидали ErrScoring, получили %v", err)
	}
}

func TestOpenAIScoreEmptyBodyFlagsWithoutCall(t *testing.T) {
	s := NewOpenAI(&fakeChatClient{err: errors.New("не должен вызываться")}, "test-model", time.Second)
	got, err := s.Score(context.Background(), "NVDA", "   ", 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !got.FlagForDelete {
		t.Fatalf("пустое тело помечается на удаление")
	}
}
