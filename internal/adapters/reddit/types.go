package reddit

import (
	"bytes"
	"encoding/json"
)

// Типы узлов JSON-выдачи Reddit.
const (
	kindListing = "Listing"
	kindComment = "t1"
	kindPost    = "t3"
	kindMore    = "more"
)

type listingEnvelope struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	Children []childEnvelope `json:"children"`
	After    string          `json:"after"`
}

type childEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type postNode struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	SelfText    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Subreddit   string  `json:"subreddit"`
}

type commentNode struct {
	Name       string          `json:"name"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    repliesEnvelope `json:"replies"`
}

// repliesEnvelope учитывает, что у листьев Reddit кладёт в replies пустую строку
// вместо вложенного листинга.
type repliesEnvelope struct {
	Listing *listingEnvelope
}

func (r *repliesEnvelope) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte(`""`)) || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var listing listingEnvelope
	if err := json.Unmarshal(trimmed, &listing); err != nil {
		return err
	}
	r.Listing = &listing
	return nil
}
