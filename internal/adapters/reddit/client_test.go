package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-pulse/internal/domain"
	"stock-pulse/internal/infra/fetch"
	"stock-pulse/internal/infra/proxy"
)

const searchFixture = `{"kind":"Listing","data":{"children":[
{"kind":"t3","data":{"name":"t3_aaa","title":"NVDA to the moon","permalink":"/r/stocks/comments/aaa/nvda/","created_utc":1700000000,"score":120,"num_comments":34}},
{"kind":"t3","data":{"name":"t3_bbb","title":"Thoughts on NVDA?","permalink":"/r/stocks/comments/bbb/thoughts/","created_utc":1700003600,"score":5,"num_comments":2}}
]}}`

const detailFixture = `[
{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"name":"t3_aaa","title":"NVDA earnings","author":"bull_case","selftext":"Guidance looks strong","score":321,"num_comments":2,"permalink":"/r/stocks/comments/aaa/nvda/","created_utc":1700000000}}]}},
{"kind":"Listing","data":{"children":[
{"kind":"t1","data":{"name":"t1_c1","author":"alpha","body":"Margins are expanding","score":14,"created_utc":1700000100,"replies":{"kind":"Listing","data":{"children":[{"kind":"t1","data":{"name":"t1_c2","author":"beta","body":"Agreed, demand is real","score":3,"created_utc":1700000200,"replies":""}}]}}}}
]}}
]`

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	pool := proxy.NewPool(nil, time.Minute, zerolog.Nop())
	fetchClient := fetch.NewClient(pool, nil, zerolog.Nop(), 5*time.Second, "stock-pulse-test/1.0")
	return NewClient(fetchClient, srv.URL), srv
}

func TestSearchPostsParsesStubs(t *testing.T) {
	client, srv := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Fatalf("неожиданный путь: %s", r.URL.Path)
		}
		w.Write([]byte(searchFixture))
	})
	stubs, err := client.SearchPosts(context.Background(), "NVDA", 25)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(stubs) != 2 {
		t.Fatalf("ожидали 2 поста, получили %d", len(stubs))
	}
	if stubs[0].ExternalID != "t3_aaa" {
		t.Fatalf("неожиданный внешний id: %s", stubs[0].ExternalID)
	}
	if stubs[0].URL != srv.URL+"/r/stocks/comments/aaa/nvda/" {
		t.Fatalf("неожиданный URL: %s", stubs[0].URL)
	}
	if !stubs[0].PostedAt.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("неожиданное время публикации: %v", stubs[0].PostedAt)
	}
}

func TestPostDetailParsesSnapshotAndComments(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/stocks/comments/aaa/nvda.json" {
			t.Fatalf("неожиданный путь: %s", r.URL.Path)
		}
		w.Write([]byte(detailFixture))
	})
	snapshot, comments, err := client.PostDetail(context.Background(), client.baseURL+"/r/stocks/comments/aaa/nvda/")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if snapshot.Title != "NVDA earnings" || snapshot.Score != 321 || snapshot.CommentsCount != 2 {
		t.Fatalf("неожиданный снимок: %+v", snapshot)
	}
	if len(comments) != 2 {
		t.Fatalf("ожидали 2 комментария, получили %d", len(comments))
	}
	if comments[0].ParentID != "t3_aaa" || comments[1].ParentID != "t1_c1" {
		t.Fatalf("неверные родители: %+v", comments)
	}
	if comments[1].Depth != 1 {
		t.Fatalf("ожидали глубину 1, получили %d", comments[1].Depth)
	}
}

func TestPostDetailMalformedBodyIsParseError(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kind":"Listing"}`))
	})
	_, _, err := client.PostDetail(context.Background(), client.baseURL+"/r/stocks/comments/aaa/nvda/")
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("ожидали ErrParse, получили %v", err)
	}
}

func TestSubredditNewParsesStubs(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/nvidia/new.json" {
			t.Fatalf("неожиданный путь: %s", r.URL.Path)
		}
		w.Write([]byte(searchFixture))
	})
	stubs, err := client.SubredditNew(context.Background(), "nvidia", 25)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(stubs) != 2 {
		t.Fatalf("ожидали 2 поста, получили %d", len(stubs))
	}
}
