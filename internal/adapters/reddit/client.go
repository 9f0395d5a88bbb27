package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/fetch"
)

const serviceName = "reddit"

// Client читает JSON-выдачу Reddit через общий fetch-клиент.
type Client struct {
	fetch   *fetch.Client
	baseURL string
}

var _ domain.ContentSource = (*Client)(nil)

// NewClient создаёт клиента Reddit.
func NewClient(fetchClient *fetch.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	return &Client{fetch: fetchClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// SearchPosts ищет свежие посты по запросу.
func (c *Client) SearchPosts(ctx context.Context, query string, limit int) ([]domain.PostStub, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s&sort=new&limit=%d", c.baseURL, url.QueryEscape(query), limit)
	body, err := c.fetch.Get(ctx, serviceName, endpoint)
	if err != nil {
		return nil, err
	}
	var listing listingEnvelope
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%w: выдача поиска: %v", domain.ErrParse, err)
	}
	return c.stubsFromListing(listing), nil
}

// SubredditNew возвращает свежие посты сабреддита.
func (c *Client) SubredditNew(ctx context.Context, subreddit string, limit int) ([]domain.PostStub, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d", c.baseURL, url.PathEscape(subreddit), limit)
	body, err := c.fetch.Get(ctx, serviceName, endpoint)
	if err != nil {
		return nil, err
	}
	var listing listingEnvelope
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%w: выдача сабреддита %s: %v", domain.ErrParse, subreddit, err)
	}
	return c.stubsFromListing(listing), nil
}

// PostDetail выгружает снимок поста и развёрнутое дерево комментариев.
// JSON-представление поста — массив из двух листингов: [пост, комментарии].
func (c *Client) PostDetail(ctx context.Context, postURL string) (domain.PostSnapshot, []domain.Comment, error) {
	endpoint := strings.TrimRight(postURL, "/") + ".json"
	body, err := c.fetch.Get(ctx, serviceName, endpoint)
	if err != nil {
		return domain.PostSnapshot{}, nil, err
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(body, &pair); err != nil {
		return domain.PostSnapshot{}, nil, fmt.Errorf("%w: ожидали массив листингов: %v", domain.ErrParse, err)
	}
	if len(pair) < 2 {
		return domain.PostSnapshot{}, nil, fmt.Errorf("%w: ожидали два листинга, получили %d", domain.ErrParse, len(pair))
	}

	var postListing listingEnvelope
	if err := json.Unmarshal(pair[0], &postListing); err != nil {
		return domain.PostSnapshot{}, nil, fmt.Errorf("%w: листинг поста: %v", domain.ErrParse, err)
	}
	post, ok := firstPostNode(postListing)
	if !ok {
		return domain.PostSnapshot{}, nil, fmt.Errorf("%w: в листинге нет узла поста", domain.ErrParse)
	}

	var commentListing listingEnvelope
	if err := json.Unmarshal(pair[1], &commentListing); err != nil {
		return domain.PostSnapshot{}, nil, fmt.Errorf("%w: листинг комментариев: %v", domain.ErrParse, err)
	}

	snapshot := domain.PostSnapshot{
		Title:         post.Title,
		Author:        post.Author,
		Score:         post.Score,
		Body:          post.SelfText,
		CommentsCount: post.NumComments,
	}
	return snapshot, extractComments(&commentListing, post.Name), nil
}

func (c *Client) stubsFromListing(listing listingEnvelope) []domain.PostStub {
	var stubs []domain.PostStub
	for _, child := range listing.Data.Children {
		if child.Kind != kindPost {
			continue
		}
		var node postNode
		if err := json.Unmarshal(child.Data, &node); err != nil || node.Name == "" {
			continue
		}
		stubs = append(stubs, domain.PostStub{
			ExternalID: node.Name,
			Title:      node.Title,
			URL:        c.baseURL + node.Permalink,
			PostedAt:   time.Unix(int64(node.CreatedUTC), 0).UTC(),
		})
	}
	return stubs
}

func firstPostNode(listing listingEnvelope) (postNode, bool) {
	for _, child := range listing.Data.Children {
		if child.Kind != kindPost {
			continue
		}
		var node postNode
		if err := json.Unmarshal(child.Data, &node); err != nil {
			continue
		}
		return node, true
	}
	return postNode{}, false
}
