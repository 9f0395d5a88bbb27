package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/fetch"
)

const serviceName = "finnhub"

// Client ищет тикеры в справочнике символов Finnhub.
// Запросы идут через общий fetch-клиент и попадают в ту же телеметрию.
type Client struct {
	fetch   *fetch.Client
	baseURL string
	apiKey  string
}

var _ domain.SymbolSearcher = (*Client)(nil)

// NewClient создаёт клиента Finnhub.
func NewClient(fetchClient *fetch.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	return &Client{fetch: fetchClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

type searchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

// Search выполняет symbol lookup.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("finnhub: api key is empty")
	}
	endpoint := fmt.Sprintf("%s/search?q=%s&token=%s", c.baseURL, url.QueryEscape(query), c.apiKey)
	body, err := c.fetch.Get(ctx, serviceName, endpoint)
	if err != nil {
		return nil, err
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: выдача symbol lookup: %v", domain.ErrParse, err)
	}
	matches := make([]domain.SymbolMatch, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		if item.Symbol == "" {
			continue
		}
		matches = append(matches, domain.SymbolMatch{
			Ticker: item.Symbol,
			Name:   item.Description,
			Type:   item.Type,
		})
	}
	return matches, nil
}
